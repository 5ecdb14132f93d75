// SPDX-License-Identifier: BSD-3-Clause

package instrument

import "time"

// VoltsPerAmp is the output-voltage-to-current calibration ratio for the
// PID controller's current-command channel. The original implementation
// carried this as an unmeasured TODO; it is named here explicitly so the
// conversion has exactly one home instead of an assumed 1:1 relationship.
const VoltsPerAmp = 1.0

// HardwareSetpointLimitAmps is the PID controller's maximum commandable
// current. Setpoint writes above this are clipped with a warning.
const HardwareSetpointLimitAmps = 12.0

type config struct {
	callTimeout time.Duration
	voltsPerAmp float64
	maxSetpoint float64
}

// Option configures a Facade.
type Option interface {
	apply(*config)
}

type optionFunc func(*config)

func (f optionFunc) apply(c *config) { f(c) }

// WithCallTimeout bounds every Facade operation's round-trip, default 100ms
// per spec.
func WithCallTimeout(d time.Duration) Option {
	return optionFunc(func(c *config) { c.callTimeout = d })
}

// WithVoltsPerAmp overrides the calibration ratio, for instruments that
// diverge from VoltsPerAmp.
func WithVoltsPerAmp(ratio float64) Option {
	return optionFunc(func(c *config) { c.voltsPerAmp = ratio })
}

// WithMaxSetpoint overrides HardwareSetpointLimitAmps for a different PID
// controller model.
func WithMaxSetpoint(amps float64) Option {
	return optionFunc(func(c *config) { c.maxSetpoint = amps })
}

func defaultConfig() *config {
	return &config{
		callTimeout: 100 * time.Millisecond,
		voltsPerAmp: VoltsPerAmp,
		maxSetpoint: HardwareSetpointLimitAmps,
	}
}
