// Package common provides shared error types, logging, and CD-ROM helpers used
// by every container and codec package.
package common

import (
	"errors"
	"fmt"
)

// FormatError reports bad magic, a wrong version field, or malformed nesting.
// It is fatal for the affected file or archive only.
type FormatError struct {
	Format string
	Reason string
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("%s: invalid format: %s", e.Format, e.Reason)
}

// BoundsError reports a read past the end of a buffer.
type BoundsError struct {
	Offset int
	Width  int
	Length int
}

func (e *BoundsError) Error() string {
	return fmt.Sprintf("read of %d bytes at offset %d exceeds buffer length %d", e.Width, e.Offset, e.Length)
}

// NotFoundError reports a path missing from an archive table.
type NotFoundError struct {
	Container string
	Name      string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s: %q not found", e.Container, e.Name)
}

// UnsupportedError reports a recognised but unsupported feature such as an
// unknown codec, a supplementary volume descriptor, or a cabinet version.
type UnsupportedError struct {
	Feature string
	Detail  string
}

func (e *UnsupportedError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("unsupported %s", e.Feature)
	}
	return fmt.Sprintf("unsupported %s: %s", e.Feature, e.Detail)
}

// InvalidInputError reports an input set that cannot be processed as a whole,
// for example an ISO without its cabinet seed files.
type InvalidInputError struct {
	Reason string
}

func (e *InvalidInputError) Error() string {
	return "invalid input: " + e.Reason
}

// NewFormatError is a shorthand for a *FormatError with a formatted reason.
func NewFormatError(format, reason string, args ...interface{}) error {
	return &FormatError{Format: format, Reason: fmt.Sprintf(reason, args...)}
}

// IsFormatError reports whether err wraps a *FormatError.
func IsFormatError(err error) bool {
	var target *FormatError
	return errors.As(err, &target)
}

// IsBoundsError reports whether err wraps a *BoundsError.
func IsBoundsError(err error) bool {
	var target *BoundsError
	return errors.As(err, &target)
}

// IsNotFound reports whether err wraps a *NotFoundError.
func IsNotFound(err error) bool {
	var target *NotFoundError
	return errors.As(err, &target)
}

// IsUnsupported reports whether err wraps an *UnsupportedError.
func IsUnsupported(err error) bool {
	var target *UnsupportedError
	return errors.As(err, &target)
}

// IsInvalidInput reports whether err wraps an *InvalidInputError.
func IsInvalidInput(err error) bool {
	var target *InvalidInputError
	return errors.As(err, &target)
}
