// SPDX-License-Identifier: BSD-3-Clause

package instrument

import (
	"fmt"
	"strconv"
)

// ModeKind distinguishes the two PID controller operating modes.
type ModeKind int

const (
	// ModeManual drives the output at a fixed setpoint current.
	ModeManual ModeKind = iota
	// ModePID closes the loop on the bridge's error signal.
	ModePID
)

func (k ModeKind) String() string {
	if k == ModePID {
		return "pid"
	}
	return "manual"
}

// Mode is the PID Mode tagged variant: Manual(setpoint) or Pid.
type Mode struct {
	Kind            ModeKind
	SetpointCurrent float64
}

// GetMode reads the controller's current operating mode and, when in
// manual mode, its commanded setpoint current.
func (f *Facade) GetMode() (Mode, error) {
	reply, err := f.pid.Query("AMAN?")
	if err != nil {
		return Mode{}, err
	}
	switch reply {
	case "0":
		current, err := f.GetSetpointCurrent()
		if err != nil {
			return Mode{}, err
		}
		return Mode{Kind: ModeManual, SetpointCurrent: current}, nil
	case "1":
		return Mode{Kind: ModePID}, nil
	default:
		return Mode{}, NewProtocolError("GetMode", reply, fmt.Errorf("unexpected mode code"))
	}
}

// SetMode switches the controller between Manual and Pid. Switching to
// Manual also pushes the requested setpoint current.
func (f *Facade) SetMode(m Mode) error {
	code := "0"
	if m.Kind == ModePID {
		code = "1"
	}
	if err := f.pid.Send("AMAN " + code); err != nil {
		return err
	}
	if m.Kind == ModeManual {
		return f.SetSetpointCurrent(m.SetpointCurrent)
	}
	return nil
}

// GetSetpointCurrent reads the commanded output, converted from volts via
// the configured calibration ratio.
func (f *Facade) GetSetpointCurrent() (float64, error) {
	reply, err := f.pid.Query("MOUT?")
	if err != nil {
		return 0, err
	}
	volts, err := strconv.ParseFloat(reply, 64)
	if err != nil {
		return 0, NewProtocolError("GetSetpointCurrent", reply, err)
	}
	return volts / f.config.voltsPerAmp, nil
}

// SetSetpointCurrent commands the output current, clipping to
// [0, hardware max] and returning OutOfRangeError (with the clipped value
// already applied) if the request fell outside the bound.
func (f *Facade) SetSetpointCurrent(amps float64) error {
	clipped, wasClipped := clipToRange(amps, 0, f.config.maxSetpoint)
	volts := clipped * f.config.voltsPerAmp
	if err := f.pid.Send("MOUT " + formatFloat(volts)); err != nil {
		return err
	}
	if wasClipped {
		return &OutOfRangeError{Setting: "setpoint-current", Value: amps, Min: 0, Max: f.config.maxSetpoint, Clipped: clipped}
	}
	return nil
}

// IncrementSetpoint raises the setpoint current by deltaAmps.
func (f *Facade) IncrementSetpoint(deltaAmps float64) error {
	current, err := f.GetSetpointCurrent()
	if err != nil {
		return err
	}
	return f.SetSetpointCurrent(current + deltaAmps)
}

// DecrementSetpoint lowers the setpoint current by deltaAmps.
func (f *Facade) DecrementSetpoint(deltaAmps float64) error {
	current, err := f.GetSetpointCurrent()
	if err != nil {
		return err
	}
	return f.SetSetpointCurrent(current - deltaAmps)
}

// KillCurrent forces Manual mode at zero setpoint. The caller (entry action
// for Off, I5) is responsible for logging and swallowing any error rather
// than blocking the transition.
func (f *Facade) KillCurrent() error {
	return f.SetMode(Mode{Kind: ModeManual, SetpointCurrent: 0})
}

// ReadInputVoltage reads the PID controller's error-signal input.
func (f *Facade) ReadInputVoltage() (float64, error) {
	reply, err := f.pid.Query("MMON?")
	if err != nil {
		return 0, err
	}
	v, err := strconv.ParseFloat(reply, 64)
	if err != nil {
		return 0, NewProtocolError("ReadInputVoltage", reply, err)
	}
	return v, nil
}

// ReadOutputVoltage reads the PID controller's commanded output voltage.
func (f *Facade) ReadOutputVoltage() (float64, error) {
	reply, err := f.pid.Query("OMON?")
	if err != nil {
		return 0, err
	}
	v, err := strconv.ParseFloat(reply, 64)
	if err != nil {
		return 0, NewProtocolError("ReadOutputVoltage", reply, err)
	}
	return v, nil
}
