// SPDX-License-Identifier: BSD-3-Clause

package supervisor

import "errors"

var (
	// ErrAlreadyStarted is returned by Run if called more than once on the
	// same Supervisor.
	ErrAlreadyStarted = errors.New("supervisor: already started")

	// ErrCooldownNotAllowed is returned when a cooldown is scheduled from a
	// state other than Off or Deramping.
	ErrCooldownNotAllowed = errors.New("supervisor: cooldown scheduling only allowed from Off or Deramping")

	// ErrCooldownTooSoon is returned when the requested cold-by time is
	// sooner than the estimated time to cold from the current state.
	ErrCooldownTooSoon = errors.New("supervisor: requested time is sooner than the estimated time to cold")

	// ErrBusLost is returned from Run when the bus stayed disconnected past
	// the configured retry window. The cycle has already been aborted and
	// either reached Off or timed out waiting to. Per the CLI surface, this
	// is the one defined non-zero exit condition.
	ErrBusLost = errors.New("supervisor: bus connection lost, cycle aborted")
)
