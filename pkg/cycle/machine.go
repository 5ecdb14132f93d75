// SPDX-License-Identifier: BSD-3-Clause

package cycle

import (
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

// Machine is the cycle state machine: current state, per-state entry
// timestamps, and the table of guarded transitions. Its own plain mutex
// protects it; the Supervisor serializes its calls into the machine under a
// separate lock of its own.
type Machine struct {
	config *config

	instrument  Instrument
	temperature TemperatureSource
	params      ParamsSource
	persistence Persistence
	publisher   Publisher
	tracer      trace.Tracer

	mu         sync.Mutex
	state      State
	entryTimes map[State]time.Time
	lastStep   time.Time
}

// New constructs a Machine. The initial state normally comes from the
// Supervisor's recovery algorithm via WithInitialState; absent that, it
// defaults to Deramping, which is always safe.
func New(instrument Instrument, temperature TemperatureSource, params ParamsSource, persistence Persistence, publisher Publisher, opts ...Option) *Machine {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt.apply(cfg)
	}
	now := cfg.clock.Now()
	entryTime := now
	if !cfg.initialStateEntryTime.IsZero() {
		entryTime = cfg.initialStateEntryTime
	}
	return &Machine{
		config:      cfg,
		instrument:  instrument,
		temperature: temperature,
		params:      params,
		persistence: persistence,
		publisher:   publisher,
		tracer:      otel.Tracer("github.com/cryopilot/adrctl/pkg/cycle"),
		state:       cfg.initialState,
		entryTimes:  map[State]time.Time{cfg.initialState: entryTime},
		lastStep:    now,
	}
}

// State returns the machine's current state.
func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// EntryTime returns when s was last entered, if ever.
func (m *Machine) EntryTime(s State) (time.Time, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.entryTimes[s]
	return t, ok
}

// Fire feeds trigger to the machine. abort and quench always match and
// take precedence over any pending next; start only matches from Off or
// Deramping; next looks up the ordered row list for the current state and
// fires the first row whose guard evaluates true. A trigger with no
// matching row is a no-op. Fire never returns an error: guard and action
// failures are swallowed per the transition failure semantics, logged
// through the configured logger.
func (m *Machine) Fire(trigger Trigger) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.config.clock.Now()

	matched, ok := m.resolve(trigger)
	if !ok {
		m.lastStep = now
		return nil
	}

	if matched.action != nil {
		_ = matched.action(m)
	}

	if matched.to != m.state {
		m.state = matched.to
		m.entryTimes[matched.to] = now
		if err := m.persistence.Write(matched.to.String(), now); err != nil {
			m.logf("persistence write failed", err)
		}
		if err := m.publisher.Publish("status:magnet:state", matched.to.String()); err != nil {
			m.logf("publish failed", err)
		}
		if matched.to == Off {
			_ = actionKillCurrent(m)
		}
	}

	m.lastStep = now
	return nil
}

func (m *Machine) resolve(trigger Trigger) (row, bool) {
	switch trigger {
	case TriggerAbort, TriggerQuench:
		r, ok := wildcardRows[trigger]
		return r, ok
	case TriggerStart:
		r, ok := startRows[m.state]
		return r, ok
	case TriggerNext:
		for _, r := range nextTable[m.state] {
			ok, err := r.guard(m)
			if err != nil {
				m.logf("guard evaluation failed", err)
				continue
			}
			if ok {
				return r, true
			}
		}
		return row{}, false
	default:
		return row{}, false
	}
}

// stepInterval is the wall-clock time elapsed since the previous Fire
// call, used to scale ramp/deramp current increments.
func (m *Machine) stepInterval() time.Duration {
	return m.config.clock.Now().Sub(m.lastStep)
}

func (m *Machine) logf(msg string, err error) {
	m.config.logger.Warn(msg, "error", err, "state", m.state.String())
}
