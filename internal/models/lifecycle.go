package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// Lifecycle is the soft-delete state of a row: Active, or Deleted at an
// instant. The zero value is Active. There is no transition from Deleted back
// to Active.
type Lifecycle struct {
	deleted   bool
	deletedAt time.Time
}

// Active returns the lifecycle of a living row.
func Active() Lifecycle { return Lifecycle{} }

// DeletedAt returns the lifecycle of a row soft-deleted at t.
func DeletedAt(t time.Time) Lifecycle {
	return Lifecycle{deleted: true, deletedAt: t}
}

// IsDeleted reports whether the row has been soft-deleted.
func (l Lifecycle) IsDeleted() bool { return l.deleted }

// DeletedTime returns the deletion instant, if any.
func (l Lifecycle) DeletedTime() (time.Time, bool) {
	return l.deletedAt, l.deleted
}

// LivingAt reports whether the row was not yet deleted at t.
func (l Lifecycle) LivingAt(t time.Time) bool {
	return !l.deleted || t.Before(l.deletedAt)
}

// Delete moves an Active lifecycle to Deleted(at). Deleting twice is an error.
func (l Lifecycle) Delete(at time.Time) (Lifecycle, error) {
	if l.deleted {
		return l, fmt.Errorf("already deleted at %s", l.deletedAt.Format(time.RFC3339Nano))
	}
	return DeletedAt(at), nil
}

// Ptr returns the deletion instant as a nullable pointer for storage.
func (l Lifecycle) Ptr() *time.Time {
	if !l.deleted {
		return nil
	}
	t := l.deletedAt
	return &t
}

// FromNullable rebuilds a lifecycle from a nullable deleted_at column.
func FromNullable(t *time.Time) Lifecycle {
	if t == nil {
		return Active()
	}
	return DeletedAt(*t)
}

// MarshalJSON encodes the lifecycle as the deleted_at column would: null or an
// RFC 3339 timestamp.
func (l Lifecycle) MarshalJSON() ([]byte, error) {
	return json.Marshal(l.Ptr())
}

// UnmarshalJSON decodes null or a timestamp.
func (l *Lifecycle) UnmarshalJSON(data []byte) error {
	var t *time.Time
	if err := json.Unmarshal(data, &t); err != nil {
		return err
	}
	*l = FromNullable(t)
	return nil
}
