// SPDX-License-Identifier: BSD-3-Clause

package telemetry

import "errors"

var (
	// ErrInvalidConfiguration is returned when the telemetry configuration is invalid.
	ErrInvalidConfiguration = errors.New("invalid configuration")

	// ErrProviderNotInitialized is returned when attempting to use a provider that hasn't been initialized.
	ErrProviderNotInitialized = errors.New("provider not initialized")

	// ErrShutdownFailed is returned when a provider fails to shut down cleanly.
	ErrShutdownFailed = errors.New("shutdown failed")
)
