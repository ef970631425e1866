package mirror

import (
	"errors"
	"fmt"
)

// ErrReadOnly is returned by Write on a property built without a Writer.
var ErrReadOnly = errors.New("property is read-only")

// ReadError reports a failed read of an external source. Property swallows
// these and keeps the stale value.
type ReadError struct {
	Source string
	Err    error
}

func (e *ReadError) Error() string {
	return fmt.Sprintf("read %s: %v", e.Source, e.Err)
}

func (e *ReadError) Unwrap() error { return e.Err }

// WriteError reports a failed write-back to an external target.
type WriteError struct {
	Target string
	Err    error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("write %s: %v", e.Target, e.Err)
}

func (e *WriteError) Unwrap() error { return e.Err }

// ParseError reports external output outside the expected vocabulary.
type ParseError struct {
	Input string
	Want  string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %q: want %s", e.Input, e.Want)
}
