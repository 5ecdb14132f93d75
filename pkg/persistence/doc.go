// SPDX-License-Identifier: BSD-3-Clause

// Package persistence implements the Persistence Log: a single-line
// statefile recording the cycle's current state and the wall-clock time it
// was entered, overwritten on every state entry. Recovery treats a record
// older than StaleAfter as unusable and ignores it.
package persistence
