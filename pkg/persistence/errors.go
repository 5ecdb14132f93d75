// SPDX-License-Identifier: BSD-3-Clause

package persistence

import (
	"errors"
	"fmt"
)

var errIO = errors.New("persistence: statefile io failure")

// IoError wraps a failure to read or write the statefile.
type IoError struct {
	Op   string
	Path string
	Err  error
}

func (e *IoError) Error() string {
	return fmt.Sprintf("persistence: %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *IoError) Unwrap() error        { return e.Err }
func (e *IoError) Is(target error) bool { return target == errIO }

// NewIoError wraps err as an *IoError for the given operation and path.
func NewIoError(op, path string, err error) *IoError {
	return &IoError{Op: op, Path: path, Err: err}
}
