// SPDX-License-Identifier: BSD-3-Clause

package log

import (
	"fmt"
	"log/slog"

	"github.com/nats-io/nats-server/v2/server"
)

// NATSLogger is an adapter that implements the NATS server.Logger interface
// using the standard library's slog.Logger for structured logging.
type NATSLogger struct {
	l *slog.Logger
}

// Fatalf logs a fatal error message with the given format and arguments.
func (l *NATSLogger) Fatalf(format string, v ...interface{}) {
	l.l.With("subsystem", "nats", "nats_level", "fatal").Error(fmt.Sprintf(format, v...))
}

// Errorf logs an error message with the given format and arguments.
func (l *NATSLogger) Errorf(format string, v ...interface{}) {
	l.l.With("subsystem", "nats", "nats_level", "error").Error(fmt.Sprintf(format, v...))
}

// Warnf logs a warning message with the given format and arguments.
func (l *NATSLogger) Warnf(format string, v ...interface{}) {
	l.l.With("subsystem", "nats", "nats_level", "warn").Warn(fmt.Sprintf(format, v...))
}

// Noticef logs a notice message with the given format and arguments.
func (l *NATSLogger) Noticef(format string, v ...interface{}) {
	l.l.With("subsystem", "nats", "nats_level", "info").Info(fmt.Sprintf(format, v...))
}

// Debugf logs a debug message with the given format and arguments.
func (l *NATSLogger) Debugf(format string, v ...interface{}) {
	l.l.With("subsystem", "nats", "nats_level", "debug").Debug(fmt.Sprintf(format, v...))
}

// Tracef logs a trace message with the given format and arguments.
func (l *NATSLogger) Tracef(format string, v ...interface{}) {
	l.l.With("subsystem", "nats", "nats_level", "trace").Debug(fmt.Sprintf(format, v...))
}

// NewNATSLogger wraps the provided slog.Logger as a NATS server.Logger, used
// by the embedded bus server in pkg/bus.
func NewNATSLogger(l *slog.Logger) server.Logger {
	return &NATSLogger{l: l}
}
