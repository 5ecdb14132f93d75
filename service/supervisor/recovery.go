// SPDX-License-Identifier: BSD-3-Clause

package supervisor

import (
	"log/slog"
	"math"
	"time"

	"github.com/cryopilot/adrctl/pkg/cycle"
	"github.com/cryopilot/adrctl/pkg/instrument"
	"github.com/cryopilot/adrctl/pkg/persistence"
)

// recoveryFacade is the subset of *instrument.Facade the recovery algorithm
// exercises, isolated here so tests can substitute a fake.
type recoveryFacade interface {
	GetMode() (instrument.Mode, error)
	GetSetpointCurrent() (float64, error)
	HeatswitchIsClosed() (bool, error)
	HeatswitchIsOpened() (bool, error)
	HeatswitchClose() error
	HeatswitchOpen() error
}

// recoverInitialState determines the state the Cycle State Machine should
// start in, per the startup recovery algorithm:
//
//  1. If the instrument retained its configuration across the restart and
//     reports PID mode, the cycle was Regulating: resume there directly,
//     the statefile is not consulted.
//  2. Otherwise load the statefile. A missing, unparsable, or stale record
//     falls back to Deramping, the always-safe state.
//  3. A persisted Soaking state whose setpoint current is still within soak
//     tolerance of soak_current is corrected to Ramping: the process most
//     likely crashed mid-ramp, just before the soak guard would have held.
//  4. A persisted HsClosing or HsOpening state re-issues the corresponding
//     heat-switch command, since the prior process may have died before the
//     switch finished moving.
//  5. The recovered state is checked against the heat switch's reported
//     position for consistency; any mismatch, and Off or Regulating
//     themselves (neither is legitimately recoverable via the statefile,
//     since Off implies nothing was running and Regulating is only reached
//     through the PID-mode check above), forces Deramping.
//
// The second return value is the entry time to seed the Machine with: the
// persisted entry time whenever the state comes from the statefile
// (including a Soaking record corrected to Ramping), the current time when
// resuming Regulating or falling back to Deramping.
func recoverInitialState(now time.Time, retainedConfig bool, facade recoveryFacade, params cycle.ParamsSource, log *persistence.Log, logger *slog.Logger) (cycle.State, time.Time) {
	if retainedConfig {
		mode, err := facade.GetMode()
		if err != nil {
			logger.Warn("recovery: reading instrument mode failed", "error", err)
		} else if mode.Kind == instrument.ModePID {
			return cycle.Regulating, now
		}
	}

	rec, ok, err := log.Load()
	if err != nil {
		logger.Warn("recovery: statefile load failed", "error", err)
	}
	if !ok {
		logger.Warn("recovery: no usable statefile, starting from Deramping")
		return cycle.Deramping, now
	}
	if rec.Stale(now) {
		logger.Warn("recovery: statefile is stale, starting from Deramping", "recorded_at", rec.Time)
		return cycle.Deramping, now
	}

	state, ok := cycle.ParseState(rec.State)
	if !ok {
		logger.Warn("recovery: statefile names an unrecognized state, starting from Deramping", "state", rec.State)
		return cycle.Deramping, now
	}
	entryTime := rec.Time

	if state == cycle.Soaking {
		if current, err := facade.GetSetpointCurrent(); err != nil {
			logger.Warn("recovery: reading setpoint current for soak correction failed", "error", err)
		} else if soak := params.SoakCurrent(); soak > 0 && math.Abs(current-soak) <= 0.02*soak {
			logger.Info("recovery: correcting persisted Soaking to Ramping, setpoint not yet at soak current", "setpoint", current, "soak_current", soak)
			state = cycle.Ramping
		}
	}

	switch state {
	case cycle.HsClosing:
		if err := facade.HeatswitchClose(); err != nil {
			logger.Warn("recovery: re-issuing heat-switch close failed", "error", err)
		}
	case cycle.HsOpening:
		if err := facade.HeatswitchOpen(); err != nil {
			logger.Warn("recovery: re-issuing heat-switch open failed", "error", err)
		}
	}

	if recoveredStateInconsistent(state, facade, logger) {
		logger.Warn("recovery: persisted state inconsistent with heat-switch position, starting from Deramping", "persisted_state", state.String())
		return cycle.Deramping, now
	}

	return state, entryTime
}

// recoveredStateInconsistent reports whether state cannot be trusted as the
// resume point: Off and Regulating are never legitimately recoverable via
// the statefile path, and the remaining states each imply a heat-switch
// position that must hold. A read failure is treated as inconsistent, since
// recovery has no way to confirm the state is actually safe to resume into.
func recoveredStateInconsistent(state cycle.State, facade recoveryFacade, logger *slog.Logger) bool {
	switch state {
	case cycle.Off, cycle.Regulating:
		return true
	case cycle.Ramping, cycle.Soaking:
		opened, err := facade.HeatswitchIsOpened()
		if err != nil {
			logger.Warn("recovery: reading heat-switch open position failed", "error", err)
			return true
		}
		return opened
	case cycle.Cooling:
		closed, err := facade.HeatswitchIsClosed()
		if err != nil {
			logger.Warn("recovery: reading heat-switch closed position failed", "error", err)
			return true
		}
		return closed
	default:
		return false
	}
}
