// SPDX-License-Identifier: BSD-3-Clause

package supervisor

import (
	"context"
	"fmt"
	"time"

	"github.com/cryopilot/adrctl/pkg/cycle"
	"github.com/cryopilot/adrctl/pkg/registry"
)

// scheduledCooldown is the one outstanding (trigger_time, timer) pair a
// Supervisor may hold. A new request cancels and replaces it.
type scheduledCooldown struct {
	fireAt time.Time
	timer  *time.Timer
}

// estimateTimeToCold computes the minimum time to reach Regulating from
// state, given the current Cycle Parameters, the instrument's current
// setpoint current, and (for the Soaking/HsOpening branch) the number of
// seconds already spent soaking. The second return value is false when the
// estimate cannot be computed (a zero ramp or deramp rate, or a state
// cooldown scheduling isn't defined from).
func estimateTimeToCold(state cycle.State, params cycle.ParamsSource, currentSetpointAmps, elapsedSoakSeconds float64) (time.Duration, bool) {
	switch state {
	case cycle.Off, cycle.HsClosing, cycle.Ramping:
		rampRate, derampRate := params.RampRate(), params.DerampRate()
		if rampRate <= 0 || derampRate <= 0 {
			return 0, false
		}
		soak := params.SoakCurrent()
		seconds := (soak-currentSetpointAmps)/rampRate + params.SoakTime() + soak/derampRate
		return secondsToDuration(seconds), true
	case cycle.Soaking, cycle.HsOpening:
		derampRate := params.DerampRate()
		if derampRate <= 0 {
			return 0, false
		}
		soak := params.SoakCurrent()
		remainingSoak := params.SoakTime() - elapsedSoakSeconds
		if remainingSoak < 0 {
			remainingSoak = 0
		}
		seconds := remainingSoak + soak/derampRate
		return secondsToDuration(seconds), true
	case cycle.Cooling, cycle.Deramping:
		derampRate := params.DerampRate()
		if derampRate <= 0 {
			return 0, false
		}
		return secondsToDuration(currentSetpointAmps / derampRate), true
	case cycle.Regulating:
		return 0, true
	default:
		return 0, false
	}
}

func secondsToDuration(seconds float64) time.Duration {
	if seconds < 0 {
		seconds = 0
	}
	return time.Duration(seconds * float64(time.Second))
}

// scheduleCooldown validates and installs a one-shot timer that fires the
// start trigger early enough to reach Regulating by target. Only Off and
// Deramping accept a scheduled cooldown, per I6; any prior outstanding
// schedule is cancelled and replaced. Runs under s.mu, the same lock the
// stepping loop's Fire call takes, so the state read and the timer install
// are atomic with respect to a concurrent transition.
func (s *Supervisor) scheduleCooldown(ctx context.Context, target time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	state := s.machine.State()
	if state != cycle.Off && state != cycle.Deramping {
		return fmt.Errorf("%w: currently %s", ErrCooldownNotAllowed, state)
	}

	currentSetpoint, err := s.facade.GetSetpointCurrent()
	if err != nil {
		return fmt.Errorf("supervisor: reading setpoint current for cooldown estimate: %w", err)
	}

	now := s.config.clock.Now()
	var elapsedSoakSeconds float64
	if entryTime, ok := s.machine.EntryTime(cycle.Soaking); ok {
		elapsedSoakSeconds = now.Sub(entryTime).Seconds()
	}

	estimate, ok := estimateTimeToCold(state, s.params, currentSetpoint, elapsedSoakSeconds)
	if !ok {
		return fmt.Errorf("supervisor: cannot estimate time to cold from state %s with the current ramp/deramp rates", state)
	}

	if target.Before(now.Add(estimate)) {
		return fmt.Errorf("%w: target %s, estimated %s from now", ErrCooldownTooSoon, target.Format(time.RFC3339), estimate)
	}

	if s.cooldown != nil {
		s.cooldown.timer.Stop()
		s.cooldown = nil
	}

	fireAt := target.Add(-estimate)
	delay := fireAt.Sub(now)
	if delay < 0 {
		delay = 0
	}

	s.cooldown = &scheduledCooldown{fireAt: fireAt, timer: time.AfterFunc(delay, s.fireScheduledCooldown)}

	if _, err := s.registry.WriteBack(ctx, state.String(), registry.KeyCooldownScheduled, "yes"); err != nil {
		s.logger.WarnContext(ctx, "cooldown-scheduled write-back failed", "error", err)
	}
	return nil
}

func (s *Supervisor) fireScheduledCooldown() {
	s.mu.Lock()
	s.cooldown = nil
	_ = s.machine.Fire(cycle.TriggerStart)
	state := s.machine.State()
	s.mu.Unlock()

	if _, err := s.registry.WriteBack(context.Background(), state.String(), registry.KeyCooldownScheduled, "no"); err != nil {
		s.logger.Warn("cooldown-scheduled write-back failed", "error", err)
	}
}

// cancelScheduledCooldown stops and clears any outstanding cooldown timer.
// A no-op if none is scheduled.
func (s *Supervisor) cancelScheduledCooldown(ctx context.Context) {
	s.mu.Lock()
	had := s.cooldown != nil
	if had {
		s.cooldown.timer.Stop()
		s.cooldown = nil
	}
	state := s.machine.State()
	s.mu.Unlock()

	if !had {
		return
	}
	if _, err := s.registry.WriteBack(ctx, state.String(), registry.KeyCooldownScheduled, "no"); err != nil {
		s.logger.WarnContext(ctx, "cooldown-scheduled write-back failed", "error", err)
	}
}
