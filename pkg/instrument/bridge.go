// SPDX-License-Identifier: BSD-3-Clause

package instrument

import "fmt"

// BridgeToScaledOutput switches the bridge to scaled (closed-loop) output,
// used while the heat switch is open and the cold stage is demagnetizing.
func (f *Facade) BridgeToScaledOutput() error {
	return f.bridge.Send("AMAN 0")
}

// BridgeToManualOutput switches the bridge to manual output, used while
// the heat switch is closed.
func (f *Facade) BridgeToManualOutput() error {
	return f.bridge.Send("AMAN 1")
}

// BridgeInScaledOutput reports whether the bridge last reported scaled
// output mode.
func (f *Facade) BridgeInScaledOutput() (bool, error) {
	return f.bridgeOutputMode("0")
}

// BridgeInManualOutput reports whether the bridge last reported manual
// output mode.
func (f *Facade) BridgeInManualOutput() (bool, error) {
	return f.bridgeOutputMode("1")
}

func (f *Facade) bridgeOutputMode(want string) (bool, error) {
	reply, err := f.bridge.Query("AMAN?")
	if err != nil {
		return false, err
	}
	switch reply {
	case "0", "1":
		return reply == want, nil
	default:
		return false, NewProtocolError("bridgeOutputMode", reply, fmt.Errorf("unexpected bridge output mode"))
	}
}

// SetRegulationCeiling pushes the regulation temperature ceiling to the
// bridge. Used when an operator updates regulating-temp directly, outside
// the device-settings:* schema path the PID controller's settings travel.
func (f *Facade) SetRegulationCeiling(kelvin float64) error {
	return f.bridge.Send("TSET " + formatFloat(kelvin))
}
