// SPDX-License-Identifier: BSD-3-Clause

// Package cycle implements the ADR magnet cycle's state machine: the
// ramp/soak/cool/regulate/deramp transition graph, its guard conditions,
// and its entry actions. The graph is a small ordered table rather than a
// general-purpose state-machine library, since the tie-break rule (first
// guard to evaluate true wins, within a source state) and the
// read-failure-holds-in-place semantics don't map cleanly onto a
// permit/trigger FSM abstraction.
package cycle
