// SPDX-License-Identifier: BSD-3-Clause

package supervisor

import (
	"time"

	"github.com/cryopilot/adrctl/pkg/bus"
	"github.com/cryopilot/adrctl/pkg/cycle"
	"github.com/cryopilot/adrctl/pkg/registry"
)

const defaultStatefilePath = "/var/lib/adrctl/statefile"

type config struct {
	name                    string
	stepInterval            time.Duration
	telemetryInterval       time.Duration
	settingsRefreshInterval time.Duration
	busLostTimeout          time.Duration
	busLostPollInterval     time.Duration
	derampWaitTimeout       time.Duration
	childShutdownTimeout    time.Duration
	statefilePath           string
	temperatureStatusKey    string
	firstConnectKey         string
	deviceStatusPrefix      string
	clock                   cycle.Clock
	busOpts                 []bus.Option
	registryOpts            []registry.Option
}

// Option configures a Supervisor.
type Option interface{ apply(*config) }

type optionFunc func(*config)

func (f optionFunc) apply(c *config) { f(c) }

// WithName sets the supervisor's service name, used by oversight and
// reported to Name().
func WithName(name string) Option {
	return optionFunc(func(c *config) { c.name = name })
}

// WithStepInterval overrides the stepping task's period. Defaults to 1s
// (LOOP_INTERVAL per spec).
func WithStepInterval(d time.Duration) Option {
	return optionFunc(func(c *config) { c.stepInterval = d })
}

// WithTelemetryInterval overrides the telemetry task's poll period.
// Defaults to 1ms.
func WithTelemetryInterval(d time.Duration) Option {
	return optionFunc(func(c *config) { c.telemetryInterval = d })
}

// WithSettingsRefreshInterval overrides how often the Settings Registry is
// re-pulled independent of the command stream. Defaults to 10s.
func WithSettingsRefreshInterval(d time.Duration) Option {
	return optionFunc(func(c *config) { c.settingsRefreshInterval = d })
}

// WithBusLostTimeout overrides how long the bus may stay disconnected
// before it is considered fatally lost. Defaults to 5s.
func WithBusLostTimeout(d time.Duration) Option {
	return optionFunc(func(c *config) { c.busLostTimeout = d })
}

// WithDerampWaitTimeout overrides how long the bus-lost shutdown path
// waits for the cycle to reach Off after an abort before giving up.
// Defaults to 2 minutes.
func WithDerampWaitTimeout(d time.Duration) Option {
	return optionFunc(func(c *config) { c.derampWaitTimeout = d })
}

// WithStatefilePath overrides the statefile path used for crash recovery
// and every subsequent state entry. Left unset, the Supervisor resolves it
// from the device-settings:sim960:statefile schema key, falling back to
// defaultStatefilePath.
func WithStatefilePath(path string) Option {
	return optionFunc(func(c *config) { c.statefilePath = path })
}

// WithTemperatureStatusKey overrides the bus key the cold-stage array
// temperature is published on by the external monitor this module treats
// as a collaborator. Defaults to "status:array:temperature".
func WithTemperatureStatusKey(key string) Option {
	return optionFunc(func(c *config) { c.temperatureStatusKey = key })
}

// WithFirstConnectKey overrides the bus key the instrument signals a
// configuration loss on. Defaults to "instrument:sim960:first-connect".
func WithFirstConnectKey(key string) Option {
	return optionFunc(func(c *config) { c.firstConnectKey = key })
}

// WithClock overrides the time source used for recovery staleness checks,
// cooldown scheduling, and the bus-lost watchdog.
func WithClock(clock cycle.Clock) Option {
	return optionFunc(func(c *config) { c.clock = clock })
}

// WithBusOptions appends options passed through to bus.Connect.
func WithBusOptions(opts ...bus.Option) Option {
	return optionFunc(func(c *config) { c.busOpts = append(c.busOpts, opts...) })
}

// WithRegistryOptions appends options passed through to registry.New.
func WithRegistryOptions(opts ...registry.Option) Option {
	return optionFunc(func(c *config) { c.registryOpts = append(c.registryOpts, opts...) })
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

func defaultConfig() *config {
	return &config{
		name:                    "supervisor",
		stepInterval:            time.Second,
		telemetryInterval:       time.Millisecond,
		settingsRefreshInterval: 10 * time.Second,
		busLostTimeout:          5 * time.Second,
		busLostPollInterval:     200 * time.Millisecond,
		derampWaitTimeout:       2 * time.Minute,
		childShutdownTimeout:    10 * time.Second,
		temperatureStatusKey:    "status:array:temperature",
		firstConnectKey:         "instrument:sim960:first-connect",
		deviceStatusPrefix:      "status:device:sim960",
		clock:                   realClock{},
	}
}
