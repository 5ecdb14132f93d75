// SPDX-License-Identifier: BSD-3-Clause

package cycle

import (
	"log/slog"
	"time"
)

// Clock abstracts time.Now so tests can control soak-elapsed and
// deramp-current computations deterministically.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

type config struct {
	clock                 Clock
	logger                *slog.Logger
	initialState          State
	initialStateEntryTime time.Time
	soakTolerance         float64
	derampEpsilonAmps     float64
	regulateCeilingRatio  float64
}

// Option configures a Machine.
type Option interface{ apply(*config) }

type optionFunc func(*config)

func (f optionFunc) apply(c *config) { f(c) }

// WithClock overrides the machine's time source. Defaults to the wall
// clock.
func WithClock(clock Clock) Option {
	return optionFunc(func(c *config) { c.clock = clock })
}

// WithLogger sets the logger used for swallowed-error warnings.
func WithLogger(logger *slog.Logger) Option {
	return optionFunc(func(c *config) { c.logger = logger })
}

// WithInitialState sets the state the machine starts in, normally the
// output of the Supervisor's recovery algorithm. Defaults to Deramping,
// the always-safe choice.
func WithInitialState(state State) Option {
	return optionFunc(func(c *config) { c.initialState = state })
}

// WithInitialStateEntryTime seeds the entry timestamp recorded for the
// initial state, used by the Supervisor's recovery path to carry a
// persisted Soaking entry time forward so the soak-elapsed guard measures
// from the original entry rather than from process restart. Defaults to
// the construction time when left unset.
func WithInitialStateEntryTime(t time.Time) Option {
	return optionFunc(func(c *config) { c.initialStateEntryTime = t })
}

// WithSoakTolerance sets the fraction of soak_current that counts as
// "at soak" for the current_at_soak guard. Defaults to 0.98.
func WithSoakTolerance(fraction float64) Option {
	return optionFunc(func(c *config) { c.soakTolerance = fraction })
}

// WithDerampEpsilon sets the current, in amps, below which Deramping is
// considered complete. Defaults to 1e-3.
func WithDerampEpsilon(amps float64) Option {
	return optionFunc(func(c *config) { c.derampEpsilonAmps = amps })
}

// WithRegulateCeilingRatio sets the multiple of regulation_temp used as
// the device_regulatable ceiling when the upper-limit flag is on. Defaults
// to 1.50.
func WithRegulateCeilingRatio(ratio float64) Option {
	return optionFunc(func(c *config) { c.regulateCeilingRatio = ratio })
}

func defaultConfig() *config {
	return &config{
		clock:                realClock{},
		logger:               slog.Default(),
		initialState:         Deramping,
		soakTolerance:        0.98,
		derampEpsilonAmps:    1e-3,
		regulateCeilingRatio: 1.50,
	}
}
