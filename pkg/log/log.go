// SPDX-License-Identifier: BSD-3-Clause

package log

import (
	"log/slog"
	"sync"

	"github.com/rs/zerolog"
	slogmulti "github.com/samber/slog-multi"
	slogzerolog "github.com/samber/slog-zerolog/v2"
)

// NewDefaultLogger creates a new structured logger that writes human-readable
// console output via zerolog. The handler is wrapped in a fanout so a second
// handler (an OTel bridge, a file sink) can be attached later without
// touching call sites.
func NewDefaultLogger() *slog.Logger {
	zeroLogger := zerolog.
		New(zerolog.NewConsoleWriter()).
		With().
		Timestamp().
		Logger()

	return slog.New(slogmulti.Fanout(
		slogzerolog.Option{Level: slog.LevelDebug, Logger: &zeroLogger}.NewZerologHandler(),
	))
}

var (
	globalOnce   sync.Once
	globalLogger *slog.Logger
)

// GetGlobalLogger returns the process-wide logger, building it on first use.
// Callers attach their own context with .With("component", ...).
func GetGlobalLogger() *slog.Logger {
	globalOnce.Do(func() {
		globalLogger = NewDefaultLogger()
	})
	return globalLogger
}
