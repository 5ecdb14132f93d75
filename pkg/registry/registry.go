// SPDX-License-Identifier: BSD-3-Clause

package registry

import (
	"context"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

// Bus is the subset of pkg/bus.Client the Registry needs. Defined here so
// the Registry can be tested against a fake without importing pkg/bus, and
// so pkg/cycle can depend on pkg/registry without a cycle back through bus.
type Bus interface {
	Set(ctx context.Context, key, value string) error
	Get(ctx context.Context, key string) (string, bool, error)
}

// defaultKey returns the shadow key a setting's factory default is stored
// under, e.g. "device-settings:sim960:ramp-rate" ->
// "device-defaults:sim960:ramp-rate".
func defaultKey(key string) string {
	return strings.Replace(key, "device-settings:", "device-defaults:", 1)
}

type config struct {
	schema  map[string]Contract
	blocked map[string][]string
}

// Option configures a Registry.
type Option interface{ apply(*config) }

type optionFunc func(*config)

func (f optionFunc) apply(c *config) { f(c) }

// WithSchema overrides the default per-key contract table.
func WithSchema(schema map[string]Contract) Option {
	return optionFunc(func(c *config) { c.schema = schema })
}

// WithBlockedSettings overrides the default blocked-settings-per-state table.
func WithBlockedSettings(blocked map[string][]string) Option {
	return optionFunc(func(c *config) { c.blocked = blocked })
}

func defaultConfig() *config {
	return &config{
		schema:  DefaultSchema(1.0, 12.0),
		blocked: DefaultBlockedSettings(),
	}
}

// Registry validates and applies settings writes against the schema and
// the current cycle state's block list, persisting accepted values to the
// bus's key-value store.
type Registry struct {
	config *config
	bus    Bus
	tracer trace.Tracer
}

// New constructs a Registry over the given Bus.
func New(bus Bus, opts ...Option) *Registry {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt.apply(cfg)
	}
	return &Registry{
		config: cfg,
		bus:    bus,
		tracer: otel.Tracer("github.com/cryopilot/adrctl/pkg/registry"),
	}
}

// Validate checks value against key's contract, returning the effective
// value to store (which may differ from value when a numeric contract
// clips an out-of-range write) and an *OutOfRangeError describing the
// rejection. A key with no contract is rejected with ErrUnknownKey.
func (r *Registry) Validate(key, value string) (string, error) {
	contract, ok := r.config.schema[key]
	if !ok {
		return "", ErrUnknownKey
	}
	effective, err := contract.validate(value)
	if oor, ok := err.(*OutOfRangeError); ok {
		oor.Key = key
		return effective, oor
	}
	return effective, err
}

// IsBlocked reports whether key is on state's block list.
func (r *Registry) IsBlocked(state, key string) bool {
	for _, blockedKey := range r.config.blocked[state] {
		if blockedKey == key {
			return true
		}
	}
	return false
}

// WriteBack validates value against key's schema and, absent a block on
// state, persists the effective value to the bus. It returns the effective
// value actually stored.
func (r *Registry) WriteBack(ctx context.Context, state, key, value string) (string, error) {
	if r.IsBlocked(state, key) {
		return "", &StateError{Key: key, State: state}
	}
	effective, err := r.Validate(key, value)
	if err != nil {
		if _, ok := err.(*OutOfRangeError); !ok || effective == "" {
			return "", err
		}
		// Clipped: still persist the clipped value, but report the rejection.
		if setErr := r.bus.Set(ctx, key, effective); setErr != nil {
			return "", setErr
		}
		return effective, err
	}
	if err := r.bus.Set(ctx, key, effective); err != nil {
		return "", err
	}
	return effective, nil
}

// Pull reads every schema key's current value from the bus, falling back
// to the key's default-shadow-key value when unset.
func (r *Registry) Pull(ctx context.Context) (map[string]string, error) {
	settings := make(map[string]string, len(r.config.schema))
	for key := range r.config.schema {
		value, ok, err := r.bus.Get(ctx, key)
		if err != nil {
			return nil, err
		}
		if !ok {
			value, ok, err = r.bus.Get(ctx, defaultKey(key))
			if err != nil {
				return nil, err
			}
			if !ok {
				continue
			}
		}
		settings[key] = value
	}
	return settings, nil
}

// ResetToDefault restores key to its factory default (read from its
// default-shadow-key) and writes it back through Set, returning the
// restored value.
func (r *Registry) ResetToDefault(ctx context.Context, key string) (string, error) {
	if _, ok := r.config.schema[key]; !ok {
		return "", ErrUnknownKey
	}
	value, ok, err := r.bus.Get(ctx, defaultKey(key))
	if err != nil {
		return "", err
	}
	if !ok {
		return "", ErrUnknownKey
	}
	if err := r.bus.Set(ctx, key, value); err != nil {
		return "", err
	}
	return value, nil
}
