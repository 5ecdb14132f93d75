// SPDX-License-Identifier: BSD-3-Clause

package cycle

import (
	"time"

	"github.com/cryopilot/adrctl/pkg/instrument"
)

// State is one of the eight cycle states. Off and Regulating are the only
// stable resting states; the rest are transient.
type State int

const (
	Off State = iota
	HsClosing
	Ramping
	Soaking
	HsOpening
	Cooling
	Regulating
	Deramping
)

func (s State) String() string {
	switch s {
	case Off:
		return "Off"
	case HsClosing:
		return "HsClosing"
	case Ramping:
		return "Ramping"
	case Soaking:
		return "Soaking"
	case HsOpening:
		return "HsOpening"
	case Cooling:
		return "Cooling"
	case Regulating:
		return "Regulating"
	case Deramping:
		return "Deramping"
	default:
		return "Unknown"
	}
}

// ParseState reverses State.String, for recovering a persisted state name
// back into a State. The second return value is false for any name that
// is not one of the eight cycle states.
func ParseState(name string) (State, bool) {
	switch name {
	case "Off":
		return Off, true
	case "HsClosing":
		return HsClosing, true
	case "Ramping":
		return Ramping, true
	case "Soaking":
		return Soaking, true
	case "HsOpening":
		return HsOpening, true
	case "Cooling":
		return Cooling, true
	case "Regulating":
		return Regulating, true
	case "Deramping":
		return Deramping, true
	default:
		return 0, false
	}
}

// Trigger names an event the machine can be fed.
type Trigger string

const (
	TriggerNext   Trigger = "next"
	TriggerStart  Trigger = "start"
	TriggerAbort  Trigger = "abort"
	TriggerQuench Trigger = "quench"
)

// Instrument is the subset of *instrument.Facade the machine's guards and
// actions exercise. Defined here, rather than depending on *instrument.Facade
// directly, so tests can substitute a fake without opening serial ports.
type Instrument interface {
	HeatswitchClose() error
	HeatswitchOpen() error
	HeatswitchIsClosed() (bool, error)
	HeatswitchIsOpened() (bool, error)
	BridgeToScaledOutput() error
	BridgeToManualOutput() error
	BridgeInScaledOutput() (bool, error)
	BridgeInManualOutput() (bool, error)
	GetSetpointCurrent() (float64, error)
	IncrementSetpoint(deltaAmps float64) error
	DecrementSetpoint(deltaAmps float64) error
	SetMode(m instrument.Mode) error
	GetMode() (instrument.Mode, error)
	KillCurrent() error
}

// TemperatureSource reports the latest cold-stage array temperature, as
// published by a separate monitor over the bus. ok is false when no
// reading has ever been published.
type TemperatureSource interface {
	Temperature() (kelvin float64, ok bool, err error)
}

// ParamsSource exposes the validated Cycle Parameters a guard or action
// needs. Backed by the Settings Registry in production.
type ParamsSource interface {
	RampRate() float64
	DerampRate() float64
	SoakCurrent() float64
	SoakTime() (seconds float64)
	RegulationTemp() float64
	UpperLimitEnforced() bool
}

// Persistence is the Persistence Log write path; satisfied directly by
// *persistence.Log.
type Persistence interface {
	Write(state string, now time.Time) error
}

// Publisher publishes a single key/value status update; satisfied directly
// by *bus.Client.
type Publisher interface {
	Publish(subject, value string) error
}
