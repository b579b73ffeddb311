// Package simerr defines the error taxonomy shared by the simulation engine.
//
// Every error the engine raises on purpose wraps one of three sentinels so
// callers can branch with errors.Is:
//   - ErrConfiguration: invalid constants or flags, raised before any write
//   - ErrPersistence: the store rejected a read or write
//   - ErrConsistency: the engine was about to break one of its own invariants
package simerr

import (
	"errors"
	"fmt"
)

var (
	// ErrConfiguration marks invalid fractions, ranges or strategy settings.
	ErrConfiguration = errors.New("configuration error")

	// ErrPersistence marks a failed read or write against the store.
	ErrPersistence = errors.New("persistence error")

	// ErrConsistency marks an internal invariant violation caught before a write.
	ErrConsistency = errors.New("consistency violation")
)

// Error carries the failing operation alongside its kind.
type Error struct {
	Kind error
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

// Unwrap exposes both the kind sentinel and the underlying cause.
func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// Configuration builds an ErrConfiguration for op.
func Configuration(op, format string, args ...any) error {
	return &Error{Kind: ErrConfiguration, Op: op, Err: fmt.Errorf(format, args...)}
}

// Consistency builds an ErrConsistency for op.
func Consistency(op, format string, args ...any) error {
	return &Error{Kind: ErrConsistency, Op: op, Err: fmt.Errorf(format, args...)}
}

// Persistence wraps a store failure. A nil err yields nil and an error that
// already carries a kind is returned unchanged.
func Persistence(op string, err error) error {
	if err == nil {
		return nil
	}
	var se *Error
	if errors.As(err, &se) {
		return err
	}
	return &Error{Kind: ErrPersistence, Op: op, Err: err}
}
