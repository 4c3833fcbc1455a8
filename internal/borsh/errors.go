package borsh

import (
	"errors"
	"fmt"
)

// Codec errors. All shape problems wrap ErrMismatch.
var (
	// ErrMismatch is returned when a value does not fit its layout.
	ErrMismatch = errors.New("borsh: value does not match layout")

	// ErrInvalidTag is returned when an enum tag or option flag is out of range.
	ErrInvalidTag = fmt.Errorf("%w: invalid tag", ErrMismatch)

	// ErrTruncated is returned when the input ends in the middle of a field.
	ErrTruncated = errors.New("borsh: buffer truncated")

	// ErrOverflow is returned when an encoded value exceeds the encode buffer.
	ErrOverflow = errors.New("borsh: encode buffer too small")
)

func mismatch(l Layout, v Value) error {
	if v == nil {
		return fmt.Errorf("%w: want %s, got nil", ErrMismatch, l.Kind())
	}
	return fmt.Errorf("%w: want %s, got %s", ErrMismatch, l.Kind(), v.Kind())
}
