// SPDX-License-Identifier: BSD-3-Clause

package supervisor

import (
	"context"
	"strconv"
	"time"
)

// telemetryLoop polls the instrument at config.telemetryInterval and
// publishes every successful, non-nil reading as a bus timeseries point.
// Read-only: never touches the state machine or its lock, so it never
// stalls behind a transition.
func (s *Supervisor) telemetryLoop(ctx context.Context) error {
	ticker := time.NewTicker(s.config.telemetryInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.publishTelemetry(ctx)
		}
	}
}

func (s *Supervisor) publishTelemetry(ctx context.Context) {
	now := s.config.clock.Now()

	if v, err := s.facade.ReadInputVoltage(); err != nil {
		s.logger.DebugContext(ctx, "telemetry read failed", "key", "input-voltage", "error", err)
	} else if err := s.bus.Add(ctx, "instrument:sim960:input-voltage", formatTelemetry(v), now); err != nil {
		s.logger.WarnContext(ctx, "telemetry publish failed", "key", "input-voltage", "error", err)
	}

	if v, err := s.facade.ReadOutputVoltage(); err != nil {
		s.logger.DebugContext(ctx, "telemetry read failed", "key", "output-voltage", "error", err)
	} else if err := s.bus.Add(ctx, "instrument:sim960:output-voltage", formatTelemetry(v), now); err != nil {
		s.logger.WarnContext(ctx, "telemetry publish failed", "key", "output-voltage", "error", err)
	}

	if v, err := s.facade.GetSetpointCurrent(); err != nil {
		s.logger.DebugContext(ctx, "telemetry read failed", "key", "setpoint-current", "error", err)
	} else if err := s.bus.Add(ctx, "instrument:sim960:current", formatTelemetry(v), now); err != nil {
		s.logger.WarnContext(ctx, "telemetry publish failed", "key", "setpoint-current", "error", err)
	}
}

func formatTelemetry(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
