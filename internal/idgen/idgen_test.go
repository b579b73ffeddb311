package idgen

import (
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/nvandessel/streamsim/internal/constants"
	"github.com/nvandessel/streamsim/internal/models"
	"github.com/nvandessel/streamsim/internal/sampling"
	"github.com/nvandessel/streamsim/internal/simerr"
)

func TestParseStrategy(t *testing.T) {
	tests := []struct {
		in      string
		want    Strategy
		wantErr bool
	}{
		{"sequential", Sequential, false},
		{" Token ", Token, false},
		{"UUID", UUID, false},
		{"snowflake", "", true},
		{"", "", true},
	}
	for _, tt := range tests {
		got, err := ParseStrategy(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseStrategy(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if err != nil && !errors.Is(err, simerr.ErrConfiguration) {
			t.Errorf("ParseStrategy(%q) error kind = %v, want configuration", tt.in, err)
		}
		if got != tt.want {
			t.Errorf("ParseStrategy(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestCounterContinuesFromWatermark(t *testing.T) {
	a, err := New(Sequential, 41, nil)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	for _, want := range []models.ID{"42", "43", "44"} {
		if got := a.Next(); got != want {
			t.Errorf("Next() = %q, want %q", got, want)
		}
	}
}

func TestCounterStartsAtOne(t *testing.T) {
	a, _ := New(Sequential, 0, nil)
	if got := a.Next(); got != "1" {
		t.Errorf("first id = %q, want 1", got)
	}
}

func TestTokenShapeAndDeterminism(t *testing.T) {
	a, _ := New(Token, 0, sampling.New(5))
	b, _ := New(Token, 0, sampling.New(5))
	seen := make(map[models.ID]bool)
	for i := 0; i < 500; i++ {
		x, y := a.Next(), b.Next()
		if x != y {
			t.Fatalf("token %d differs across equal seeds: %s vs %s", i, x, y)
		}
		if len(x) != constants.TokenLength {
			t.Fatalf("token %q has length %d", x, len(x))
		}
		if seen[x] {
			t.Fatalf("token %q repeated", x)
		}
		seen[x] = true
	}
}

func TestUUIDIsVersion4AndDeterministic(t *testing.T) {
	a, _ := New(UUID, 0, sampling.New(8))
	b, _ := New(UUID, 0, sampling.New(8))
	for i := 0; i < 50; i++ {
		x, y := a.Next(), b.Next()
		if x != y {
			t.Fatalf("uuid %d differs across equal seeds", i)
		}
		parsed, err := uuid.Parse(string(x))
		if err != nil {
			t.Fatalf("uuid.Parse(%q) error = %v", x, err)
		}
		if parsed.Version() != 4 {
			t.Errorf("uuid %s version = %d, want 4", x, parsed.Version())
		}
	}
}

func TestNewRejectsUnknownStrategy(t *testing.T) {
	if _, err := New("snowflake", 0, nil); !errors.Is(err, simerr.ErrConfiguration) {
		t.Errorf("New(snowflake) error = %v, want configuration error", err)
	}
}
