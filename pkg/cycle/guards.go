// SPDX-License-Identifier: BSD-3-Clause

package cycle

import "github.com/cryopilot/adrctl/pkg/instrument"

// guard is a pure predicate over the Facade and Registry. A non-nil error
// means the read failed; evalGuard treats that the same as false, per the
// spec's "guard read failure holds the machine in place" rule.
type guard func(m *Machine) (bool, error)

func guardAlways(m *Machine) (bool, error) { return true, nil }

// and evaluates guards left to right, short-circuiting on the first false
// or erroring guard.
func and(guards ...guard) guard {
	return func(m *Machine) (bool, error) {
		for _, g := range guards {
			ok, err := g(m)
			if err != nil || !ok {
				return false, err
			}
		}
		return true, nil
	}
}

// not inverts a guard, but surfaces read errors unchanged rather than
// flipping them to success.
func not(g guard) guard {
	return func(m *Machine) (bool, error) {
		ok, err := g(m)
		if err != nil {
			return false, err
		}
		return !ok, nil
	}
}

func guardHeatswitchClosed(m *Machine) (bool, error) {
	closed, err := m.instrument.HeatswitchIsClosed()
	if err != nil {
		return false, &guardReadError{guard: "heatswitch_closed", err: err}
	}
	return closed, nil
}

func guardHeatswitchOpened(m *Machine) (bool, error) {
	opened, err := m.instrument.HeatswitchIsOpened()
	if err != nil {
		return false, &guardReadError{guard: "heatswitch_opened", err: err}
	}
	return opened, nil
}

func guardBridgeInScaled(m *Machine) (bool, error) {
	scaled, err := m.instrument.BridgeInScaledOutput()
	if err != nil {
		return false, &guardReadError{guard: "bridge_in_scaled", err: err}
	}
	return scaled, nil
}

// guardCurrentReadyToSoak is the Ramping->Soaking exit guard: it requires
// the setpoint to have reached the exact soak_current, not merely within
// tolerance of it. This is distinct from guardCurrentAtSoak, which governs
// Soaking's own exit rows once the machine is already holding there.
func guardCurrentReadyToSoak(m *Machine) (bool, error) {
	current, err := m.instrument.GetSetpointCurrent()
	if err != nil {
		return false, &guardReadError{guard: "current_ready_to_soak", err: err}
	}
	return current >= m.params.SoakCurrent(), nil
}

// guardCurrentAtSoak reports whether the commanded setpoint remains within
// soakTolerance of soak_current, used by Soaking's own rows to tell
// "still holding at soak" apart from "has drifted off soak current".
func guardCurrentAtSoak(m *Machine) (bool, error) {
	current, err := m.instrument.GetSetpointCurrent()
	if err != nil {
		return false, &guardReadError{guard: "current_at_soak", err: err}
	}
	return current >= m.config.soakTolerance*m.params.SoakCurrent(), nil
}

func guardSoakElapsed(m *Machine) (bool, error) {
	// Read the map directly: guards run inside Fire, which already holds m.mu.
	entered, ok := m.entryTimes[Soaking]
	if !ok {
		return false, nil
	}
	elapsed := m.config.clock.Now().Sub(entered).Seconds()
	return elapsed >= m.params.SoakTime(), nil
}

func guardInPidMode(m *Machine) (bool, error) {
	mode, err := m.instrument.GetMode()
	if err != nil {
		return false, &guardReadError{guard: "in_pid_mode", err: err}
	}
	return mode.Kind == instrument.ModePID, nil
}

// guardDeviceRegulatable compares the latest array temperature against
// regulateCeilingRatio * regulation_temp when the upper-limit flag is on;
// otherwise it is always true. A missing or failed temperature reading is
// treated as not regulatable, matching the original's "if we can't pull
// the temperature, assume unregulatable" rule.
func guardDeviceRegulatable(m *Machine) (bool, error) {
	if !m.params.UpperLimitEnforced() {
		return true, nil
	}
	kelvin, ok, err := m.temperature.Temperature()
	if err != nil {
		return false, &guardReadError{guard: "device_regulatable", err: err}
	}
	if !ok {
		return false, nil
	}
	return kelvin <= m.config.regulateCeilingRatio*m.params.RegulationTemp(), nil
}

// guardDeviceReadyForRegulate compares the latest array temperature
// against the plain regulation_temp, unconditionally (not gated by the
// upper-limit flag).
func guardDeviceReadyForRegulate(m *Machine) (bool, error) {
	kelvin, ok, err := m.temperature.Temperature()
	if err != nil {
		return false, &guardReadError{guard: "device_ready_for_regulate", err: err}
	}
	if !ok {
		return false, nil
	}
	return kelvin <= m.params.RegulationTemp(), nil
}

// guardCurrentAboveEpsilon reports whether the commanded setpoint is still
// above the deramp-complete threshold.
func guardCurrentAboveEpsilon(m *Machine) (bool, error) {
	current, err := m.instrument.GetSetpointCurrent()
	if err != nil {
		return false, &guardReadError{guard: "current_above_epsilon", err: err}
	}
	return current > m.config.derampEpsilonAmps, nil
}

// guardCoolingReadyForRegulate is the Cooling->Regulating guard: the heat
// switch opened, the bridge is scaled, and the device is within the plain
// regulation ceiling.
func guardCoolingReadyForRegulate(m *Machine) (bool, error) {
	opened, err := guardHeatswitchOpened(m)
	if err != nil || !opened {
		return false, err
	}
	scaled, err := guardBridgeInScaled(m)
	if err != nil || !scaled {
		return false, err
	}
	return guardDeviceReadyForRegulate(m)
}

// guardHsOpeningReady is the HsOpening->Cooling guard.
func guardHsOpeningReady(m *Machine) (bool, error) {
	opened, err := guardHeatswitchOpened(m)
	if err != nil || !opened {
		return false, err
	}
	return guardBridgeInScaled(m)
}

// guardRegulatingHolds is the Regulating self-loop guard.
func guardRegulatingHolds(m *Machine) (bool, error) {
	regulatable, err := guardDeviceRegulatable(m)
	if err != nil || !regulatable {
		return false, err
	}
	return guardInPidMode(m)
}
