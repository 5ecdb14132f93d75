// SPDX-License-Identifier: BSD-3-Clause

package cycle

import "github.com/cryopilot/adrctl/pkg/instrument"

// action is a transition side effect. Failures are logged and swallowed:
// the machine stays consistent because the next `next` step re-evaluates
// the guard and either retries the action or stays put.
type action func(m *Machine) error

func actionNone(m *Machine) error { return nil }

func actionCloseHeatswitchAndBridgeManual(m *Machine) error {
	if err := m.instrument.HeatswitchClose(); err != nil {
		m.logf("heatswitch_close failed", err)
	}
	if err := m.instrument.BridgeToManualOutput(); err != nil {
		m.logf("bridge_to_manual failed", err)
	}
	return nil
}

func actionOpenHeatswitchAndBridgeScaled(m *Machine) error {
	if err := m.instrument.HeatswitchOpen(); err != nil {
		m.logf("heatswitch_open failed", err)
	}
	if err := m.instrument.BridgeToScaledOutput(); err != nil {
		m.logf("bridge_to_scaled failed", err)
	}
	return nil
}

func actionBridgeManual(m *Machine) error {
	if err := m.instrument.BridgeToManualOutput(); err != nil {
		m.logf("bridge_to_manual failed", err)
	}
	return nil
}

// actionIncrementCurrent ramps the setpoint up by ramp_rate * elapsed
// seconds since the last step.
func actionIncrementCurrent(m *Machine) error {
	delta := m.params.RampRate() * m.stepInterval().Seconds()
	if err := m.instrument.IncrementSetpoint(delta); err != nil {
		m.logf("increment_setpoint failed", err)
	}
	return nil
}

// actionDecrementCurrent ramps the setpoint down by deramp_rate * elapsed
// seconds since the last step.
func actionDecrementCurrent(m *Machine) error {
	delta := m.params.DerampRate() * m.stepInterval().Seconds()
	if err := m.instrument.DecrementSetpoint(delta); err != nil {
		m.logf("decrement_setpoint failed", err)
	}
	return nil
}

func actionSetModePID(m *Machine) error {
	if err := m.instrument.SetMode(instrument.Mode{Kind: instrument.ModePID}); err != nil {
		m.logf("set_mode(Pid) failed", err)
	}
	return nil
}

// actionKillCurrent is run on entry to Off. Per I5, its failure must not
// abort the transition into Off; it is logged and otherwise ignored.
func actionKillCurrent(m *Machine) error {
	if err := m.instrument.KillCurrent(); err != nil {
		m.logf("kill_current failed", err)
	}
	return nil
}
