// SPDX-License-Identifier: BSD-3-Clause

// Package instrument provides a typed facade over the three serial
// instruments the magnet cycle controller drives: a PID controller
// commanding the magnet current, a bridge supplying the cold-stage
// temperature error signal, and a mechanical heat-switch driver. Every
// operation is synchronous and bounded by a per-call timeout; callers are
// responsible for retries.
package instrument
