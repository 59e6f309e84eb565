package artifact

import (
	"errors"
	"fmt"
)

var (
	// ErrBadHeader indicates the bytes do not start with a class-file header
	ErrBadHeader = errors.New("bad class header")

	// ErrTruncated indicates the class file ends inside a structure
	ErrTruncated = errors.New("truncated class file")

	// ErrMalformed indicates an internally inconsistent class file
	ErrMalformed = errors.New("malformed class file")

	// ErrBadSyntax indicates a Java source file that does not parse cleanly
	ErrBadSyntax = errors.New("java source has syntax errors")
)

// ParseError is a per-artifact read failure. It never aborts a library pass.
type ParseError struct {
	Origin string
	Offset int // Byte offset of the failing structure, -1 when unknown
	Err    error
}

func (e *ParseError) Error() string {
	if e.Offset >= 0 {
		return fmt.Sprintf("%s: offset %d: %v", e.Origin, e.Offset, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Origin, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}
