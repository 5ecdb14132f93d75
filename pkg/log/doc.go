// SPDX-License-Identifier: BSD-3-Clause

// Package log provides the structured logger shared across this module. It
// wraps zerolog's console writer behind a slog.Handler, fanned out through
// slog-multi so a second handler can be attached without touching call
// sites, plus thin adapters so the embedded NATS server and the oversight
// supervision tree log through the same handler.
//
// # Basic usage
//
//	logger := log.GetGlobalLogger()
//	logger.Info("cycle started", "state", cycle.Off)
//	logger.With("component", "instrument").Debug("serial port opened", "path", "/dev/ttyUSB0")
//
// # NATS server integration
//
//	srv.SetLoggerV2(log.NewNATSLogger(log.GetGlobalLogger()), false, false, false)
//
// # Oversight integration
//
//	tree := oversight.New(oversight.WithLogger(log.NewOversightLogger(log.GetGlobalLogger())))
package log
