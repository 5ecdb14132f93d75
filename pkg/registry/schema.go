// SPDX-License-Identifier: BSD-3-Clause

package registry

import "strconv"

// ContractKind distinguishes the two validation shapes a schema key can
// have, plus a pass-through kind for keys like the statefile path that
// carry no numeric or enumerated contract.
type ContractKind int

const (
	// KindFreeForm accepts any non-empty string.
	KindFreeForm ContractKind = iota
	// KindEnum accepts one of a fixed set of string values.
	KindEnum
	// KindRange accepts a float64 within [Min, Max].
	KindRange
)

// Contract is the per-key validation rule applied before a write reaches
// the bus or the instrument.
type Contract struct {
	Kind   ContractKind
	Values []string
	Min    float64
	Max    float64
}

func (c Contract) validate(value string) (string, error) {
	switch c.Kind {
	case KindEnum:
		for _, v := range c.Values {
			if v == value {
				return value, nil
			}
		}
		return "", &OutOfRangeError{Value: value, Want: "one of " + joinValues(c.Values)}
	case KindRange:
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return "", &OutOfRangeError{Value: value, Want: "a number"}
		}
		if f < c.Min {
			return formatFloat(c.Min), &OutOfRangeError{Value: value, Want: rangeDescription(c.Min, c.Max)}
		}
		if f > c.Max {
			return formatFloat(c.Max), &OutOfRangeError{Value: value, Want: rangeDescription(c.Min, c.Max)}
		}
		return value, nil
	default:
		if value == "" {
			return "", &OutOfRangeError{Value: value, Want: "a non-empty value"}
		}
		return value, nil
	}
}

func joinValues(values []string) string {
	out := ""
	for i, v := range values {
		if i > 0 {
			out += ", "
		}
		out += v
	}
	return out
}

func rangeDescription(min, max float64) string {
	return "[" + formatFloat(min) + ", " + formatFloat(max) + "]"
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'g', -1, 64)
}

// Schema key names for the Cycle Parameters, shared with pkg/cycle's
// ParamsSource implementation and the Controller Supervisor's command
// dispatcher so neither hardcodes a second copy of these strings.
const (
	KeyRampRate           = "device-settings:sim960:ramp-rate"
	KeyDerampRate         = "device-settings:sim960:deramp-rate"
	KeySoakCurrent        = "device-settings:sim960:soak-current"
	KeySoakTime           = "device-settings:sim960:soak-time"
	KeyRegulatingTemp     = "device-settings:sim960:regulating-temp"
	KeyUpperLimitEnforced = "device-settings:sim960:upper-limit-enforced"
	KeyStatefile          = "device-settings:sim960:statefile"
	KeyCooldownScheduled  = "device-settings:sim960:cooldown-scheduled"
	KeyMode               = "device-settings:sim960:mode"
	KeySetpointCurrent    = "device-settings:sim960:setpoint-current"
)

// DefaultSchema is the Cycle Parameters contract table plus the PID
// controller settings the Instrument Facade exposes directly, bounded by the
// given hardware slope limit (A/s, for ramp and deramp rate) and soak limit
// (A, for soak and setpoint current). The Registry's default table passes
// 1.0 A/s and 12.0 A, the latter equal to instrument.HardwareSetpointLimitAmps;
// callers with a different instrument model supply their own schema via
// WithSchema.
func DefaultSchema(hardwareSlopeLimit, hardwareSoakLimit float64) map[string]Contract {
	return map[string]Contract{
		KeyRampRate:           {Kind: KindRange, Min: 0, Max: hardwareSlopeLimit},
		KeyDerampRate:         {Kind: KindRange, Min: 0, Max: hardwareSlopeLimit},
		KeySoakCurrent:        {Kind: KindRange, Min: 0, Max: hardwareSoakLimit},
		KeySoakTime:           {Kind: KindRange, Min: 0, Max: 1e9},
		KeyRegulatingTemp:     {Kind: KindRange, Min: 0, Max: 100},
		KeyUpperLimitEnforced: {Kind: KindEnum, Values: []string{"on", "off"}},
		KeyStatefile:          {Kind: KindFreeForm},
		KeyCooldownScheduled:  {Kind: KindEnum, Values: []string{"yes", "no"}},
		KeyMode:               {Kind: KindEnum, Values: []string{"manual", "pid"}},
		KeySetpointCurrent:    {Kind: KindRange, Min: 0, Max: hardwareSoakLimit},
	}
}

// DefaultBlockedSettings is the blocked-settings-per-state table: changes
// that would destabilize an active cycle. Keyed by cycle.State.String().
func DefaultBlockedSettings() map[string][]string {
	return map[string][]string{
		"Regulating": {KeyMode},
		"Ramping":    {KeySoakCurrent},
		"Soaking":    {KeySoakCurrent, KeySoakTime},
	}
}
