// SPDX-License-Identifier: BSD-3-Clause

package log

import (
	"log"
	"log/slog"
)

// NewStdLoggerAt creates a standard library log.Logger that writes through
// the provided slog.Logger at the given level. Useful for third-party
// libraries (the serial transport, the embedded NATS server bootstrap path)
// that expect a *log.Logger.
func NewStdLoggerAt(logger *slog.Logger, level slog.Level) *log.Logger {
	return slog.NewLogLogger(logger.Handler(), level)
}

// RedirectStdLog points the standard library log package at l so libraries
// that log through it end up in the same structured stream.
func RedirectStdLog(l *slog.Logger) {
	log.SetFlags(0)
	log.SetPrefix("")
	log.SetOutput(NewStdLoggerAt(l, slog.LevelInfo).Writer())
}
