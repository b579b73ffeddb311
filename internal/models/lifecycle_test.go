package models

import (
	"encoding/json"
	"testing"
	"time"
)

func TestLifecycleZeroValueIsActive(t *testing.T) {
	var l Lifecycle
	if l.IsDeleted() {
		t.Error("zero Lifecycle reports deleted")
	}
	if l.Ptr() != nil {
		t.Error("active Lifecycle has a deleted_at")
	}
}

func TestLifecycleDeleteIsMonotone(t *testing.T) {
	at := time.Date(2100, 1, 1, 12, 0, 0, 0, time.UTC)
	l, err := Active().Delete(at)
	if err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	got, ok := l.DeletedTime()
	if !ok || !got.Equal(at) {
		t.Errorf("DeletedTime() = %v, %v; want %v, true", got, ok, at)
	}

	if _, err := l.Delete(at.Add(time.Hour)); err == nil {
		t.Error("second Delete() succeeded, want error")
	}
}

func TestLifecycleLivingAt(t *testing.T) {
	at := time.Date(2100, 1, 1, 12, 0, 0, 0, time.UTC)
	l := DeletedAt(at)

	tests := []struct {
		name string
		t    time.Time
		want bool
	}{
		{"before deletion", at.Add(-time.Microsecond), true},
		{"at deletion", at, false},
		{"after deletion", at.Add(time.Hour), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := l.LivingAt(tt.t); got != tt.want {
				t.Errorf("LivingAt(%v) = %v, want %v", tt.t, got, tt.want)
			}
		})
	}
}

func TestLifecycleJSON(t *testing.T) {
	at := time.Date(2100, 1, 2, 3, 4, 5, 6000, time.UTC)
	for _, l := range []Lifecycle{Active(), DeletedAt(at)} {
		data, err := json.Marshal(l)
		if err != nil {
			t.Fatalf("Marshal() error = %v", err)
		}
		var back Lifecycle
		if err := json.Unmarshal(data, &back); err != nil {
			t.Fatalf("Unmarshal(%s) error = %v", data, err)
		}
		if back.IsDeleted() != l.IsDeleted() {
			t.Errorf("round trip of %s changed deleted state", data)
		}
		if bt, ok := back.DeletedTime(); ok && !bt.Equal(at) {
			t.Errorf("round trip deleted_at = %v, want %v", bt, at)
		}
	}
}

func TestUserLivingAt(t *testing.T) {
	created := time.Date(2100, 1, 1, 8, 0, 0, 0, time.UTC)
	u := User{ID: "1", CreatedAt: created, UpdatedAt: created}
	if u.LivingAt(created.Add(-time.Second)) {
		t.Error("user living before creation")
	}
	if !u.LivingAt(created) {
		t.Error("user not living at creation instant")
	}
}

func TestUserUpdateAttrs(t *testing.T) {
	color := "teal"
	u := UserUpdate{ID: "1", FavoriteColor: &color}
	attrs := u.Attrs()
	if len(attrs) != 1 || attrs[0] != UserFavoriteColor {
		t.Errorf("Attrs() = %v, want [favorite_color]", attrs)
	}
}
