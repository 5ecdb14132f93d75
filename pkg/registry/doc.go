// SPDX-License-Identifier: BSD-3-Clause

// Package registry implements the Settings Registry: schema-validated
// configuration backed by the pub/sub key-value bus. Each schema key has a
// contract (an enumeration or a numeric range); a per-state block list
// prevents changes that would destabilize an active cycle.
package registry
