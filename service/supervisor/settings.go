// SPDX-License-Identifier: BSD-3-Clause

package supervisor

import (
	"context"
	"log/slog"
	"strconv"
	"sync"

	"github.com/cryopilot/adrctl/pkg/registry"
)

// paramsCache is a periodically refreshed, command-updated view over the
// Settings Registry's Cycle Parameters, implementing cycle.ParamsSource
// without a bus round trip on every guard evaluation.
type paramsCache struct {
	reg    *registry.Registry
	logger *slog.Logger

	mu     sync.RWMutex
	values map[string]string
}

func newParamsCache(reg *registry.Registry, logger *slog.Logger) *paramsCache {
	return &paramsCache{reg: reg, logger: logger, values: make(map[string]string)}
}

// Refresh re-pulls every schema setting from the bus, independent of the
// command stream: covers a missed command or a value changed by another
// client directly against the bus.
func (p *paramsCache) Refresh(ctx context.Context) error {
	settings, err := p.reg.Pull(ctx)
	if err != nil {
		return err
	}
	p.mu.Lock()
	for k, v := range settings {
		p.values[k] = v
	}
	p.mu.Unlock()
	return nil
}

// set records a value accepted by a command handler immediately, ahead of
// the next Refresh.
func (p *paramsCache) set(key, value string) {
	p.mu.Lock()
	p.values[key] = value
	p.mu.Unlock()
}

func (p *paramsCache) value(key string) (string, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	v, ok := p.values[key]
	return v, ok
}

func (p *paramsCache) floatOr(key string, def float64) float64 {
	v, ok := p.value(key)
	if !ok {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return def
	}
	return f
}

func (p *paramsCache) RampRate() float64       { return p.floatOr(registry.KeyRampRate, 0) }
func (p *paramsCache) DerampRate() float64     { return p.floatOr(registry.KeyDerampRate, 0) }
func (p *paramsCache) SoakCurrent() float64    { return p.floatOr(registry.KeySoakCurrent, 0) }
func (p *paramsCache) SoakTime() float64       { return p.floatOr(registry.KeySoakTime, 0) }
func (p *paramsCache) RegulationTemp() float64 { return p.floatOr(registry.KeyRegulatingTemp, 0) }

func (p *paramsCache) UpperLimitEnforced() bool {
	v, _ := p.value(registry.KeyUpperLimitEnforced)
	return v == "on"
}
