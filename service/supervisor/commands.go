// SPDX-License-Identifier: BSD-3-Clause

package supervisor

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/cryopilot/adrctl/pkg/bus"
	"github.com/cryopilot/adrctl/pkg/cycle"
	"github.com/cryopilot/adrctl/pkg/registry"
)

// Command subjects that are not a schema key passthrough.
const (
	commandSubjectPrefix        = "command:"
	commandSubjectGetCold       = "command:get-cold"
	commandSubjectAbortCooldown = "command:abort-cooldown"
	commandSubjectCancelSched   = "command:cancel-scheduled-cooldown"
	commandSubjectQuench        = "command:event:quenching"
	commandSubjectBeColdAt      = "command:be-cold-at"
	commandSubjectRegulatingT   = "command:regulating-temp"
)

// commandLoop drains the command and temperature-status subscriptions for
// the life of the process. Each command is dispatched synchronously:
// dispatch itself is cheap, and serializing commands keeps the Registry's
// view of "current cycle state" from shifting mid-validation.
func (s *Supervisor) commandLoop(cmdMsgs, tempMsgs <-chan bus.Message) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case msg, ok := <-cmdMsgs:
				if !ok {
					return nil
				}
				s.handleCommand(ctx, msg)
			case msg, ok := <-tempMsgs:
				if !ok {
					return nil
				}
				s.temperature.update(msg.Value)
			}
		}
	}
}

func (s *Supervisor) handleCommand(ctx context.Context, msg bus.Message) {
	switch msg.Key {
	case commandSubjectGetCold:
		s.fire(cycle.TriggerStart)
		return
	case commandSubjectAbortCooldown:
		s.fire(cycle.TriggerAbort)
		return
	case commandSubjectCancelSched:
		s.cancelScheduledCooldown(ctx)
		return
	case commandSubjectQuench:
		s.fire(cycle.TriggerQuench)
		return
	case commandSubjectBeColdAt:
		s.handleBeColdAt(ctx, msg.Value)
		return
	case commandSubjectRegulatingT:
		s.handleRegulatingTemp(ctx, msg.Value)
		return
	}

	if key, ok := strings.CutPrefix(msg.Key, commandSubjectPrefix); ok {
		s.handleSettingCommand(ctx, key, msg.Value)
		return
	}
	s.logger.WarnContext(ctx, "unrecognized command subject", "subject", msg.Key)
}

func (s *Supervisor) handleBeColdAt(ctx context.Context, value string) {
	ts, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64)
	if err != nil {
		s.logger.WarnContext(ctx, "be-cold-at: malformed unix timestamp", "value", value, "error", err)
		return
	}
	if err := s.scheduleCooldown(ctx, time.Unix(ts, 0)); err != nil {
		s.logger.WarnContext(ctx, "be-cold-at rejected", "error", err)
	}
}

func (s *Supervisor) handleRegulatingTemp(ctx context.Context, value string) {
	kelvin, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		s.logger.WarnContext(ctx, "regulating-temp: malformed value", "value", value, "error", err)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	state := s.machine.State().String()
	effective, err := s.registry.WriteBack(ctx, state, registry.KeyRegulatingTemp, formatTelemetry(kelvin))
	if err != nil {
		s.logger.WarnContext(ctx, "regulating-temp rejected", "error", err)
		return
	}
	s.params.set(registry.KeyRegulatingTemp, effective)

	f, err := strconv.ParseFloat(effective, 64)
	if err != nil {
		return
	}
	if err := s.facade.SetRegulationCeiling(f); err != nil {
		s.logger.WarnContext(ctx, "pushing regulation ceiling to bridge failed", "error", err)
	}
}

// handleSettingCommand validates and applies a device-settings:* style
// write. A StateError (blocked by the current cycle state) drops the
// command entirely, nothing reaches the bus or the instrument. An
// OutOfRangeError with a clipped value still persists and applies that
// value; only the rejection is logged. A rejection with nothing to clip to
// (an enumeration miss, a non-number) is dropped like any other failed write.
func (s *Supervisor) handleSettingCommand(ctx context.Context, key, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	state := s.machine.State().String()
	effective, err := s.registry.WriteBack(ctx, state, key, value)
	if err != nil {
		var stateErr *registry.StateError
		if errors.As(err, &stateErr) {
			s.logger.WarnContext(ctx, "setting blocked by current cycle state", "key", key, "state", state)
			return
		}
		var oorErr *registry.OutOfRangeError
		if !errors.As(err, &oorErr) || effective == "" {
			s.logger.WarnContext(ctx, "setting write failed", "key", key, "error", err)
			return
		}
		s.logger.WarnContext(ctx, "setting out of range, clipped", "key", key, "value", value, "clipped", effective)
	}

	s.params.set(key, effective)
	if _, err := s.facade.ApplySchemaSettings(map[string]string{key: effective}); err != nil {
		s.logger.WarnContext(ctx, "pushing setting to instrument failed", "key", key, "error", err)
	}
}
