package storage

import (
	"errors"
	"fmt"
)

// Storage errors for append-only stores. Stores return them wrapped in a
// RecordError, so match with errors.Is.
var (
	// ErrNotFound is returned when a requested record does not exist.
	ErrNotFound = errors.New("not found")

	// ErrDuplicateKey is returned when a record's key is already stored.
	// Traces, events and feed records are never updated in place.
	ErrDuplicateKey = errors.New("already stored")

	// ErrInvalidInput is returned when a record is missing its key.
	ErrInvalidInput = errors.New("invalid input")
)

// Record kinds named in errors.
const (
	KindTrace      = "trace"
	KindEvent      = "event"
	KindProgress   = "progress"
	KindFeedRecord = "feed record"
)

// RecordError ties a storage error to the record it concerns.
type RecordError struct {
	Kind string
	// Key is the signature, event id, program id or record id. Empty when the
	// record has no usable key.
	Key string
	Err error
}

func (e *RecordError) Error() string {
	if e.Key == "" {
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Kind, e.Key, e.Err)
}

func (e *RecordError) Unwrap() error { return e.Err }

// NotFound reports a missing record.
func NotFound(kind, key string) error {
	return &RecordError{Kind: kind, Key: key, Err: ErrNotFound}
}

// Duplicate reports a record whose key is already stored.
func Duplicate(kind, key string) error {
	return &RecordError{Kind: kind, Key: key, Err: ErrDuplicateKey}
}

// Invalid reports a record rejected before reaching the backend.
func Invalid(kind, reason string) error {
	return &RecordError{Kind: kind, Err: fmt.Errorf("%w: %s", ErrInvalidInput, reason)}
}

// KeyOf returns the key of the record a storage error concerns, if any.
func KeyOf(err error) (string, bool) {
	var re *RecordError
	if errors.As(err, &re) && re.Key != "" {
		return re.Key, true
	}
	return "", false
}
