// SPDX-License-Identifier: BSD-3-Clause

package registry

import (
	"errors"
	"fmt"
)

var (
	errOutOfRange = errors.New("registry: value out of range")
	errState      = errors.New("registry: setting blocked by current cycle state")
)

// OutOfRangeError indicates a setting write failed schema validation.
type OutOfRangeError struct {
	Key   string
	Value string
	Want  string
}

func (e *OutOfRangeError) Error() string {
	return fmt.Sprintf("registry: %s=%q rejected, want %s", e.Key, e.Value, e.Want)
}
func (e *OutOfRangeError) Unwrap() error        { return errOutOfRange }
func (e *OutOfRangeError) Is(target error) bool { return target == errOutOfRange }

// StateError indicates a setting write was blocked by the current cycle
// state, per the blocked-settings-per-state table.
type StateError struct {
	Key   string
	State string
}

func (e *StateError) Error() string {
	return fmt.Sprintf("registry: %s is blocked while in state %s", e.Key, e.State)
}
func (e *StateError) Unwrap() error        { return errState }
func (e *StateError) Is(target error) bool { return target == errState }

// ErrUnknownKey indicates a key has no schema contract and is not a known
// shadow/default key.
var ErrUnknownKey = errors.New("registry: unknown schema key")
