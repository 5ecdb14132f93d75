// SPDX-License-Identifier: BSD-3-Clause

package bus

import "errors"

var (
	// ErrNotConnected indicates the connection to the bus could not be
	// established: Connect failed to dial, or the embedded server has not
	// started.
	ErrNotConnected = errors.New("bus not connected")
	// ErrKeyNotFound names a missing key. Get does not return it; Get reports
	// a missing key through its boolean result.
	ErrKeyNotFound = errors.New("key not found")
	// ErrInvalidKey indicates a key or subject failed validation.
	ErrInvalidKey = errors.New("invalid key")
	// ErrInvalidConfiguration indicates the bus client configuration is invalid.
	ErrInvalidConfiguration = errors.New("invalid bus configuration")
	// ErrBusLost indicates sustained failure to reach the bus over the retry
	// window. Nothing in this package returns it; the Controller Supervisor
	// reports bus loss with its own supervisor.ErrBusLost.
	ErrBusLost = errors.New("bus lost")
	// ErrServerCreationFailed indicates the embedded NATS server could not be created.
	ErrServerCreationFailed = errors.New("failed to create embedded NATS server")
	// ErrServerTimeout indicates the embedded NATS server did not become ready in time.
	ErrServerTimeout = errors.New("embedded NATS server not ready")
)
