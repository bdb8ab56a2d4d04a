package converter

import (
	"errors"
	"fmt"
	"io/fs"
)

// ErrMissingColumn is wrapped by a header ParseError when a required
// input column is absent.
var ErrMissingColumn = errors.New("missing column")

// IOError reports a failure to open, read, write, flush or close the input
// or the output.
type IOError struct {
	Op   string
	Path string
	Err  error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *IOError) Unwrap() error { return e.Err }

// ParseError reports input that does not fit the expected columns.
// Row is the 1-based data row, or 0 for the header.
type ParseError struct {
	Row    int
	Column string
	Err    error
}

func (e *ParseError) Error() string {
	if e.Row == 0 {
		if e.Column != "" {
			return fmt.Sprintf("header: %v %q", e.Err, e.Column)
		}
		return fmt.Sprintf("header: %v", e.Err)
	}
	return fmt.Sprintf("row %d: %v", e.Row, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// newIOError drops the *fs.PathError layer so the path is not printed twice.
func newIOError(op, path string, err error) *IOError {
	var pe *fs.PathError
	if errors.As(err, &pe) {
		err = pe.Err
	}
	return &IOError{Op: op, Path: path, Err: err}
}
