package manifest

import (
	"errors"
	"fmt"
)

// ErrParse indicates a descriptor could not be read safely.
var ErrParse = errors.New("cannot parse manifest")

// ParseError describes why a descriptor could not be read.
type ParseError struct {
	Format  string
	Path    string
	Line    int
	Message string
	Err     error
}

func (e *ParseError) Error() string {
	where := e.Format
	if e.Path != "" {
		where = e.Path
	}
	if e.Line > 0 {
		where = fmt.Sprintf("%s:%d", where, e.Line)
	}
	msg := where + ": " + e.Message
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ParseError) Is(target error) bool {
	return target == ErrParse
}

func (e *ParseError) Unwrap() error {
	return e.Err
}
