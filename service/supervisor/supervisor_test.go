// SPDX-License-Identifier: BSD-3-Clause

package supervisor

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/cryopilot/adrctl/pkg/bus"
	"github.com/cryopilot/adrctl/pkg/cycle"
	"github.com/cryopilot/adrctl/pkg/instrument"
)

// fakeFacade satisfies the facade interface entirely in memory, so the
// Supervisor's startup sequencing and command dispatch can be exercised
// against a real embedded bus without opening a serial port.
type fakeFacade struct {
	hsClosed     bool
	hsOpened     bool
	bridgeScaled bool
	mode         instrument.Mode
	setpoint     float64
}

func (f *fakeFacade) HeatswitchClose() error { f.hsClosed, f.hsOpened = true, false; return nil }
func (f *fakeFacade) HeatswitchOpen() error  { f.hsClosed, f.hsOpened = false, true; return nil }
func (f *fakeFacade) HeatswitchIsClosed() (bool, error) { return f.hsClosed, nil }
func (f *fakeFacade) HeatswitchIsOpened() (bool, error) { return f.hsOpened, nil }

func (f *fakeFacade) BridgeToScaledOutput() error       { f.bridgeScaled = true; return nil }
func (f *fakeFacade) BridgeToManualOutput() error       { f.bridgeScaled = false; return nil }
func (f *fakeFacade) BridgeInScaledOutput() (bool, error) { return f.bridgeScaled, nil }
func (f *fakeFacade) BridgeInManualOutput() (bool, error) { return !f.bridgeScaled, nil }

func (f *fakeFacade) GetSetpointCurrent() (float64, error) { return f.setpoint, nil }
func (f *fakeFacade) IncrementSetpoint(delta float64) error { f.setpoint += delta; return nil }
func (f *fakeFacade) DecrementSetpoint(delta float64) error {
	f.setpoint -= delta
	if f.setpoint < 0 {
		f.setpoint = 0
	}
	return nil
}

func (f *fakeFacade) SetMode(m instrument.Mode) error        { f.mode = m; return nil }
func (f *fakeFacade) GetMode() (instrument.Mode, error)       { return f.mode, nil }
func (f *fakeFacade) KillCurrent() error {
	f.mode = instrument.Mode{Kind: instrument.ModeManual}
	f.setpoint = 0
	return nil
}

func (f *fakeFacade) ReadDeviceInfo() (instrument.DeviceInfo, error) {
	return instrument.DeviceInfo{Model: "SIM960", Firmware: "1.0", Serial: "TEST"}, nil
}
func (f *fakeFacade) ApplySchemaSettings(settings map[string]string) (map[string]string, error) {
	return settings, nil
}
func (f *fakeFacade) ReadInputVoltage() (float64, error)  { return 0.1, nil }
func (f *fakeFacade) ReadOutputVoltage() (float64, error) { return 0.2, nil }
func (f *fakeFacade) SetRegulationCeiling(kelvin float64) error { return nil }

func newTestSupervisor(t *testing.T) (*Supervisor, *fakeFacade, *bus.EmbeddedServer) {
	t.Helper()
	srv := bus.NewEmbeddedServer("supervisor-test-bus")
	f := &fakeFacade{}
	sup := New(f,
		WithStatefilePath(filepath.Join(t.TempDir(), "statefile")),
		WithStepInterval(10*time.Millisecond),
		WithTelemetryInterval(10*time.Millisecond),
		WithSettingsRefreshInterval(time.Hour),
		WithBusOptions(bus.WithBucketName("supervisor-test-bucket"), bus.WithStreamName("SUPERVISOR_TEST")),
	)
	return sup, f, srv
}

func TestSupervisorStartsOffAndDispatchesGetCold(t *testing.T) {
	sup, facade, srv := newTestSupervisor(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	busDone := make(chan error, 1)
	go func() { busDone <- srv.Run(ctx, nil) }()

	supDone := make(chan error, 1)
	go func() { supDone <- sup.Run(ctx, srv.ConnProvider()) }()

	deadline := time.Now().Add(2 * time.Second)
	for sup.machine == nil && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if sup.machine == nil {
		t.Fatal("supervisor never constructed its state machine")
	}
	// With no statefile, recovery starts the machine in Deramping; at zero
	// setpoint current the first step takes it to Off.
	deadline = time.Now().Add(2 * time.Second)
	for sup.machine.State() != cycle.Off && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if got := sup.machine.State(); got != cycle.Off {
		t.Fatalf("got state %s, want Off once the recovered Deramping completes", got)
	}

	if err := sup.bus.Publish(commandSubjectGetCold, ""); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	deadline = time.Now().Add(2 * time.Second)
	for sup.machine.State() == cycle.Off && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if got := sup.machine.State(); got != cycle.HsClosing {
		t.Fatalf("got state %s after get-cold, want HsClosing", got)
	}
	if !facade.hsClosed {
		t.Fatal("expected heat switch close to have been commanded")
	}

	cancel()
	<-supDone
	<-busDone
}

func TestSupervisorRejectsCooldownWithoutConfiguredRates(t *testing.T) {
	sup, _, srv := newTestSupervisor(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	busDone := make(chan error, 1)
	go func() { busDone <- srv.Run(ctx, nil) }()

	supDone := make(chan error, 1)
	go func() { supDone <- sup.Run(ctx, srv.ConnProvider()) }()

	deadline := time.Now().Add(2 * time.Second)
	for sup.machine == nil && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if sup.machine == nil {
		t.Fatal("supervisor never constructed its state machine")
	}

	// No ramp/deramp rate was ever pushed to the Registry in this test, so
	// the estimate is undefined and the schedule must be rejected even
	// though Off is itself a valid source state.
	if err := sup.scheduleCooldown(ctx, time.Now().Add(time.Hour)); err == nil {
		t.Fatal("expected scheduleCooldown to reject an unestimable request")
	}

	cancel()
	<-supDone
	<-busDone
}
