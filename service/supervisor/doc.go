// SPDX-License-Identifier: BSD-3-Clause

// Package supervisor implements the Controller Supervisor: the component
// that owns the Cycle State Machine's lifecycle end to end. It connects to
// the bus, runs the startup recovery algorithm to pick an initial state,
// constructs the Machine, and then runs the stepping, telemetry, and
// settings-refresh tasks plus command dispatch for the life of the process.
//
// A single Supervisor is a service.Service; cmd/adrctl wires it into an
// oversight supervision tree alongside the embedded bus server.
package supervisor
