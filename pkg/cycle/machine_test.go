// SPDX-License-Identifier: BSD-3-Clause

package cycle

import (
	"testing"
	"time"

	"github.com/cryopilot/adrctl/pkg/instrument"
)

type fakeInstrument struct {
	hsClosed     bool
	hsOpened     bool
	bridgeScaled bool
	mode         instrument.Mode
	setpoint     float64

	hsCloseErr error
	hsOpenErr  error

	killCalls int
}

func (f *fakeInstrument) HeatswitchClose() error {
	if f.hsCloseErr != nil {
		return f.hsCloseErr
	}
	f.hsClosed, f.hsOpened = true, false
	return nil
}

func (f *fakeInstrument) HeatswitchOpen() error {
	if f.hsOpenErr != nil {
		return f.hsOpenErr
	}
	f.hsClosed, f.hsOpened = false, true
	return nil
}

func (f *fakeInstrument) HeatswitchIsClosed() (bool, error) { return f.hsClosed, nil }
func (f *fakeInstrument) HeatswitchIsOpened() (bool, error) { return f.hsOpened, nil }

func (f *fakeInstrument) BridgeToScaledOutput() error { f.bridgeScaled = true; return nil }
func (f *fakeInstrument) BridgeToManualOutput() error { f.bridgeScaled = false; return nil }
func (f *fakeInstrument) BridgeInScaledOutput() (bool, error) { return f.bridgeScaled, nil }
func (f *fakeInstrument) BridgeInManualOutput() (bool, error) { return !f.bridgeScaled, nil }

func (f *fakeInstrument) GetSetpointCurrent() (float64, error) { return f.setpoint, nil }
func (f *fakeInstrument) IncrementSetpoint(delta float64) error {
	f.setpoint += delta
	return nil
}
func (f *fakeInstrument) DecrementSetpoint(delta float64) error {
	f.setpoint -= delta
	if f.setpoint < 0 {
		f.setpoint = 0
	}
	return nil
}

func (f *fakeInstrument) SetMode(m instrument.Mode) error { f.mode = m; return nil }
func (f *fakeInstrument) GetMode() (instrument.Mode, error) { return f.mode, nil }

func (f *fakeInstrument) KillCurrent() error {
	f.killCalls++
	f.mode = instrument.Mode{Kind: instrument.ModeManual, SetpointCurrent: 0}
	f.setpoint = 0
	return nil
}

type fakeTemperature struct {
	kelvin float64
	ok     bool
}

func (f *fakeTemperature) Temperature() (float64, bool, error) { return f.kelvin, f.ok, nil }

type fakeParams struct {
	rampRate, derampRate, soakCurrent, soakTime, regulationTemp float64
	upperLimitEnforced                                          bool
}

func (p *fakeParams) RampRate() float64            { return p.rampRate }
func (p *fakeParams) DerampRate() float64          { return p.derampRate }
func (p *fakeParams) SoakCurrent() float64         { return p.soakCurrent }
func (p *fakeParams) SoakTime() float64            { return p.soakTime }
func (p *fakeParams) RegulationTemp() float64      { return p.regulationTemp }
func (p *fakeParams) UpperLimitEnforced() bool     { return p.upperLimitEnforced }

type fakePersistence struct {
	writes []string
}

func (f *fakePersistence) Write(state string, now time.Time) error {
	f.writes = append(f.writes, state)
	return nil
}

type fakePublisher struct {
	published []string
}

func (f *fakePublisher) Publish(subject, value string) error {
	f.published = append(f.published, value)
	return nil
}

type fakeClock struct{ now time.Time }

func (c *fakeClock) Now() time.Time { return c.now }
func (c *fakeClock) advance(d time.Duration) { c.now = c.now.Add(d) }

func newTestMachine(t *testing.T, instr *fakeInstrument, params *fakeParams) (*Machine, *fakePersistence, *fakePublisher, *fakeClock) {
	t.Helper()
	persist := &fakePersistence{}
	pub := &fakePublisher{}
	clock := &fakeClock{now: time.Unix(1_000_000, 0)}
	temp := &fakeTemperature{kelvin: 0.05, ok: true}
	m := New(instr, temp, params, persist, pub, WithClock(clock), WithInitialState(Off))
	return m, persist, pub, clock
}

func TestNominalCooldown(t *testing.T) {
	instr := &fakeInstrument{}
	params := &fakeParams{rampRate: 0.005, derampRate: 0.005, soakCurrent: 9.4, soakTime: 1800, regulationTemp: 0.100}
	m, _, _, clock := newTestMachine(t, instr, params)

	if err := m.Fire(TriggerStart); err != nil {
		t.Fatalf("start: %v", err)
	}
	if m.State() != HsClosing {
		t.Fatalf("expected HsClosing after start, got %v", m.State())
	}

	if err := m.Fire(TriggerNext); err != nil {
		t.Fatalf("next: %v", err)
	}
	if m.State() != Ramping {
		t.Fatalf("expected Ramping once heat switch closed, got %v", m.State())
	}

	for instr.setpoint < params.soakCurrent {
		clock.advance(time.Second)
		if err := m.Fire(TriggerNext); err != nil {
			t.Fatalf("next during ramp: %v", err)
		}
	}
	// The increment that reaches soak_current leaves the machine in Ramping;
	// the following next sees current >= soak_current and moves to Soaking.
	clock.advance(time.Second)
	if err := m.Fire(TriggerNext); err != nil {
		t.Fatalf("next at soak current: %v", err)
	}
	if m.State() != Soaking {
		t.Fatalf("expected Soaking once at soak current, got %v", m.State())
	}

	clock.advance(1801 * time.Second)
	if err := m.Fire(TriggerNext); err != nil {
		t.Fatalf("next after soak: %v", err)
	}
	if m.State() != HsOpening {
		t.Fatalf("expected HsOpening after soak elapsed, got %v", m.State())
	}

	if err := m.Fire(TriggerNext); err != nil {
		t.Fatalf("next: %v", err)
	}
	if m.State() != Cooling {
		t.Fatalf("expected Cooling once heat switch opened and bridge scaled, got %v", m.State())
	}

	if err := m.Fire(TriggerNext); err != nil {
		t.Fatalf("next: %v", err)
	}
	if m.State() != Regulating {
		t.Fatalf("expected Regulating once device ready, got %v", m.State())
	}
	if instr.mode.Kind != instrument.ModePID {
		t.Fatalf("expected PID mode in Regulating, got %v", instr.mode.Kind)
	}
}

func TestHeatswitchFailsToClose(t *testing.T) {
	instr := &fakeInstrument{hsCloseErr: errIOStub}
	params := &fakeParams{soakCurrent: 9.4}
	m, _, _, clock := newTestMachine(t, instr, params)

	if err := m.Fire(TriggerStart); err != nil {
		t.Fatalf("start: %v", err)
	}
	for i := 0; i < 10; i++ {
		clock.advance(time.Second)
		if err := m.Fire(TriggerNext); err != nil {
			t.Fatalf("next: %v", err)
		}
		if m.State() != HsClosing {
			t.Fatalf("expected to stay in HsClosing, got %v", m.State())
		}
	}
}

func TestQuenchDuringSoak(t *testing.T) {
	instr := &fakeInstrument{hsClosed: true, setpoint: 9.4}
	params := &fakeParams{soakCurrent: 9.4, soakTime: 1800}
	m, persist, _, _ := newTestMachine(t, instr, params)

	m.state = Soaking
	m.entryTimes[Soaking] = m.config.clock.Now()

	if err := m.Fire(TriggerQuench); err != nil {
		t.Fatalf("quench: %v", err)
	}
	if m.State() != Off {
		t.Fatalf("expected Off after quench, got %v", m.State())
	}
	if instr.killCalls != 1 {
		t.Fatalf("expected kill_current to run once, got %d calls", instr.killCalls)
	}
	if got := persist.writes[len(persist.writes)-1]; got != "Off" {
		t.Fatalf("expected persistence write of Off, got %q", got)
	}
}

func TestSoakToleranceBoundary(t *testing.T) {
	params := &fakeParams{soakCurrent: 9.4}
	instr := &fakeInstrument{}
	m, _, _, _ := newTestMachine(t, instr, params)

	instr.setpoint = 0.979 * params.soakCurrent
	if ok, _ := guardCurrentAtSoak(m); ok {
		t.Fatal("expected current_at_soak false at 0.979x soak_current")
	}
	instr.setpoint = 0.981 * params.soakCurrent
	if ok, _ := guardCurrentAtSoak(m); !ok {
		t.Fatal("expected current_at_soak true at 0.981x soak_current")
	}
}

func TestEveryTransitionPersistsAndPublishes(t *testing.T) {
	instr := &fakeInstrument{hsClosed: true}
	params := &fakeParams{soakCurrent: 1, derampRate: 1}
	m, persist, pub, clock := newTestMachine(t, instr, params)

	m.state = Off
	clock.advance(time.Second)
	if err := m.Fire(TriggerStart); err != nil {
		t.Fatalf("start: %v", err)
	}
	if len(persist.writes) != 1 || len(pub.published) != 1 {
		t.Fatalf("expected exactly one persistence write and one publish, got %d/%d", len(persist.writes), len(pub.published))
	}
	if persist.writes[0] != "HsClosing" || pub.published[0] != "HsClosing" {
		t.Fatalf("unexpected recorded entry: %q / %q", persist.writes[0], pub.published[0])
	}
}

func TestOffSelfLoopDoesNotReenter(t *testing.T) {
	instr := &fakeInstrument{}
	params := &fakeParams{}
	m, persist, _, clock := newTestMachine(t, instr, params)

	clock.advance(time.Second)
	if err := m.Fire(TriggerNext); err != nil {
		t.Fatalf("next: %v", err)
	}
	if m.State() != Off {
		t.Fatalf("expected to remain Off, got %v", m.State())
	}
	if len(persist.writes) != 0 {
		t.Fatalf("expected no re-entry persistence write while holding in Off, got %d", len(persist.writes))
	}
	if instr.killCalls != 0 {
		t.Fatalf("expected kill_current not to re-run on self-loop, got %d calls", instr.killCalls)
	}
}

func TestAbortTakesPrecedence(t *testing.T) {
	instr := &fakeInstrument{}
	params := &fakeParams{soakCurrent: 9.4}
	m, _, _, _ := newTestMachine(t, instr, params)
	m.state = Ramping

	if err := m.Fire(TriggerAbort); err != nil {
		t.Fatalf("abort: %v", err)
	}
	if m.State() != Deramping {
		t.Fatalf("expected Deramping after abort, got %v", m.State())
	}
}

var errIOStub = &instrument.IoError{Op: "test", Err: errTest}

type stubError struct{ s string }

func (e *stubError) Error() string { return e.s }

var errTest = &stubError{s: "stub io failure"}
