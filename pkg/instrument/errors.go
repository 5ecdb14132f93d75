// SPDX-License-Identifier: BSD-3-Clause

package instrument

import (
	"errors"
	"fmt"
)

var (
	// errIO is the sentinel wrapped by every IoError.
	errIO = errors.New("instrument: io error")
	// errProtocol is the sentinel wrapped by every ProtocolError.
	errProtocol = errors.New("instrument: protocol error")
	// errOutOfRange is the sentinel wrapped by every OutOfRangeError.
	errOutOfRange = errors.New("instrument: value out of range")
)

// IoError wraps a transport-level failure (serial timeout, broken pipe,
// closed port). Guards in pkg/cycle treat it as a reason to evaluate False
// rather than propagate.
type IoError struct {
	Op  string
	Err error
}

func (e *IoError) Error() string { return fmt.Sprintf("instrument: io error during %s: %v", e.Op, e.Err) }
func (e *IoError) Unwrap() error        { return e.Err }
func (e *IoError) Is(target error) bool { return target == errIO }

// NewIoError wraps err as an IoError attributed to op.
func NewIoError(op string, err error) *IoError {
	return &IoError{Op: op, Err: err}
}

// ProtocolError wraps a malformed or unparseable reply from an instrument.
// It is handled the same as IoError but logged at a higher severity.
type ProtocolError struct {
	Op    string
	Reply string
	Err   error
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("instrument: protocol error during %s: reply %q: %v", e.Op, e.Reply, e.Err)
}
func (e *ProtocolError) Unwrap() error        { return e.Err }
func (e *ProtocolError) Is(target error) bool { return target == errProtocol }

// NewProtocolError wraps a malformed reply as a ProtocolError.
func NewProtocolError(op, reply string, err error) *ProtocolError {
	return &ProtocolError{Op: op, Reply: reply, Err: err}
}

// OutOfRangeError indicates the caller asked for a value outside the
// instrument's accepted range. Setpoint writes clip to the bound and
// return this error alongside the clipped value actually applied.
type OutOfRangeError struct {
	Setting string
	Value   float64
	Min     float64
	Max     float64
	Clipped float64
}

func (e *OutOfRangeError) Error() string {
	return fmt.Sprintf("instrument: %s value %g out of range [%g, %g], clipped to %g", e.Setting, e.Value, e.Min, e.Max, e.Clipped)
}
func (e *OutOfRangeError) Unwrap() error { return errOutOfRange }
func (e *OutOfRangeError) Is(target error) bool { return target == errOutOfRange }
