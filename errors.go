package pe

import (
	"fmt"

	"github.com/pkg/errors"
)

// Error kinds. Every error returned by the decoders wraps exactly one
// of these, so callers can test with errors.Is().
var (
	ErrNotAPEFile                      = errors.New("not a PE file")
	ErrTruncated                       = errors.New("truncated")
	ErrSeekFailed                      = errors.New("seek failed")
	ErrUnrecognizedOptionalHeaderMagic = errors.New("unrecognized optional header magic")
)

// DecodeError carries the context of a failed read or decode.
type DecodeError struct {
	Kind error

	// Absolute file offset of the failed read.
	Offset int64

	// Number of bytes requested and the number actually available.
	Length    int
	Available int

	// Only set for ErrUnrecognizedOptionalHeaderMagic
	Magic uint16

	// Underlying I/O error, if any.
	Err error
}

func (self *DecodeError) Error() string {
	switch self.Kind {
	case ErrNotAPEFile:
		return fmt.Sprintf("%v: need at least %#x bytes", self.Kind, self.Length)

	case ErrTruncated:
		return fmt.Sprintf("%v: read of %d bytes at %#x (only %d available)",
			self.Kind, self.Length, self.Offset, self.Available)

	case ErrUnrecognizedOptionalHeaderMagic:
		return fmt.Sprintf("%v %#x at %#x", self.Kind, self.Magic, self.Offset)
	}

	if self.Err != nil {
		return fmt.Sprintf("%v: %d bytes at %#x: %v",
			self.Kind, self.Length, self.Offset, self.Err)
	}
	return fmt.Sprintf("%v: %d bytes at %#x", self.Kind, self.Length, self.Offset)
}

// Unwrap exposes both the kind and the underlying I/O error, so
// errors.Is() matches either.
func (self *DecodeError) Unwrap() []error {
	if self.Err != nil {
		return []error{self.Kind, self.Err}
	}
	return []error{self.Kind}
}

// Cause returns the underlying I/O error for github.com/pkg/errors
// users, or the kind when there is none.
func (self *DecodeError) Cause() error {
	if self.Err != nil {
		return self.Err
	}
	return self.Kind
}

func notAPEFile(min_size int64) error {
	return &DecodeError{Kind: ErrNotAPEFile, Length: int(min_size)}
}

func truncated(offset int64, length, available int, err error) error {
	return &DecodeError{
		Kind:      ErrTruncated,
		Offset:    offset,
		Length:    length,
		Available: available,
		Err:       err,
	}
}

func seekFailed(offset int64, length int, err error) error {
	return &DecodeError{
		Kind:   ErrSeekFailed,
		Offset: offset,
		Length: length,
		Err:    err,
	}
}

func unrecognizedMagic(offset int64, magic uint16) error {
	return &DecodeError{
		Kind:   ErrUnrecognizedOptionalHeaderMagic,
		Offset: offset,
		Length: 2,
		Magic:  magic,
	}
}
