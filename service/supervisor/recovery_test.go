// SPDX-License-Identifier: BSD-3-Clause

package supervisor

import (
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/cryopilot/adrctl/pkg/cycle"
	"github.com/cryopilot/adrctl/pkg/instrument"
	"github.com/cryopilot/adrctl/pkg/persistence"
)

type fakeRecoveryFacade struct {
	mode        instrument.Mode
	modeErr     error
	setpoint    float64
	setpointErr error
	hsClosed    bool
	hsOpened    bool
	hsErr       error
	closeCalls  int
	openCalls   int
}

func (f *fakeRecoveryFacade) GetMode() (instrument.Mode, error) { return f.mode, f.modeErr }
func (f *fakeRecoveryFacade) GetSetpointCurrent() (float64, error) {
	return f.setpoint, f.setpointErr
}
func (f *fakeRecoveryFacade) HeatswitchIsClosed() (bool, error) { return f.hsClosed, f.hsErr }
func (f *fakeRecoveryFacade) HeatswitchIsOpened() (bool, error) { return f.hsOpened, f.hsErr }
func (f *fakeRecoveryFacade) HeatswitchClose() error             { f.closeCalls++; return nil }
func (f *fakeRecoveryFacade) HeatswitchOpen() error              { f.openCalls++; return nil }

type fakeParams struct {
	rampRate, derampRate, soakCurrent, soakTime, regulationTemp float64
}

func (p *fakeParams) RampRate() float64            { return p.rampRate }
func (p *fakeParams) DerampRate() float64          { return p.derampRate }
func (p *fakeParams) SoakCurrent() float64         { return p.soakCurrent }
func (p *fakeParams) SoakTime() float64            { return p.soakTime }
func (p *fakeParams) RegulationTemp() float64      { return p.regulationTemp }
func (p *fakeParams) UpperLimitEnforced() bool     { return false }

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(discardWriter{}, nil))
}

type discardWriter struct{}

func (discardWriter) Write(p []byte) (int, error) { return len(p), nil }

func TestRecoverInitialStateRetainedConfigPID(t *testing.T) {
	facade := &fakeRecoveryFacade{mode: instrument.Mode{Kind: instrument.ModePID}}
	log := persistence.New(filepath.Join(t.TempDir(), "statefile"))

	state, _ := recoverInitialState(time.Now(), true, facade, &fakeParams{}, log, discardLogger())
	if state != cycle.Regulating {
		t.Fatalf("got %s, want Regulating", state)
	}
}

func TestRecoverInitialStateNoStatefile(t *testing.T) {
	facade := &fakeRecoveryFacade{}
	log := persistence.New(filepath.Join(t.TempDir(), "statefile"))

	state, _ := recoverInitialState(time.Now(), false, facade, &fakeParams{}, log, discardLogger())
	if state != cycle.Deramping {
		t.Fatalf("got %s, want Deramping", state)
	}
}

func TestRecoverInitialStateStaleStatefile(t *testing.T) {
	facade := &fakeRecoveryFacade{hsClosed: true}
	path := filepath.Join(t.TempDir(), "statefile")
	log := persistence.New(path)

	old := time.Now().Add(-2 * persistence.StaleAfter)
	if err := log.Write("Ramping", old); err != nil {
		t.Fatalf("Write: %v", err)
	}

	state, _ := recoverInitialState(time.Now(), false, facade, &fakeParams{}, log, discardLogger())
	if state != cycle.Deramping {
		t.Fatalf("got %s, want Deramping", state)
	}
}

func TestRecoverInitialStateSoakingCorrectedToRamping(t *testing.T) {
	facade := &fakeRecoveryFacade{hsOpened: false, setpoint: 0.995}
	path := filepath.Join(t.TempDir(), "statefile")
	log := persistence.New(path)
	// Whole seconds, so the statefile's float-seconds encoding round-trips exactly.
	entryTime := time.Now().Add(-5 * time.Minute).Truncate(time.Second)
	if err := log.Write("Soaking", entryTime); err != nil {
		t.Fatalf("Write: %v", err)
	}

	state, gotEntry := recoverInitialState(time.Now(), false, facade, &fakeParams{soakCurrent: 1.0}, log, discardLogger())
	if state != cycle.Ramping {
		t.Fatalf("got %s, want Ramping", state)
	}
	if !gotEntry.Equal(entryTime) {
		t.Fatalf("entry time not carried forward: got %s, want %s", gotEntry, entryTime)
	}
}

func TestRecoverInitialStateSoakingStaysWhenFarFromSoak(t *testing.T) {
	facade := &fakeRecoveryFacade{setpoint: 0.2}
	path := filepath.Join(t.TempDir(), "statefile")
	log := persistence.New(path)
	if err := log.Write("Soaking", time.Now()); err != nil {
		t.Fatalf("Write: %v", err)
	}

	state, _ := recoverInitialState(time.Now(), false, facade, &fakeParams{soakCurrent: 1.0}, log, discardLogger())
	if state != cycle.Soaking {
		t.Fatalf("got %s, want Soaking", state)
	}
}

func TestRecoverInitialStateHsClosingReissuesClose(t *testing.T) {
	facade := &fakeRecoveryFacade{hsOpened: false}
	path := filepath.Join(t.TempDir(), "statefile")
	log := persistence.New(path)
	if err := log.Write("HsClosing", time.Now()); err != nil {
		t.Fatalf("Write: %v", err)
	}

	state, _ := recoverInitialState(time.Now(), false, facade, &fakeParams{}, log, discardLogger())
	if state != cycle.HsClosing {
		t.Fatalf("got %s, want HsClosing", state)
	}
	if facade.closeCalls != 1 {
		t.Fatalf("got %d heat-switch close calls, want 1", facade.closeCalls)
	}
}

func TestRecoverInitialStateOffAlwaysForcedToDeramping(t *testing.T) {
	facade := &fakeRecoveryFacade{}
	path := filepath.Join(t.TempDir(), "statefile")
	log := persistence.New(path)
	if err := log.Write("Off", time.Now()); err != nil {
		t.Fatalf("Write: %v", err)
	}

	state, _ := recoverInitialState(time.Now(), false, facade, &fakeParams{}, log, discardLogger())
	if state != cycle.Deramping {
		t.Fatalf("got %s, want Deramping", state)
	}
}

func TestRecoverInitialStateRegulatingWithoutPIDForcedToDeramping(t *testing.T) {
	facade := &fakeRecoveryFacade{}
	path := filepath.Join(t.TempDir(), "statefile")
	log := persistence.New(path)
	if err := log.Write("Regulating", time.Now()); err != nil {
		t.Fatalf("Write: %v", err)
	}

	state, _ := recoverInitialState(time.Now(), false, facade, &fakeParams{}, log, discardLogger())
	if state != cycle.Deramping {
		t.Fatalf("got %s, want Deramping", state)
	}
}

func TestRecoverInitialStateRampingInconsistentWithOpenSwitchForcesDeramping(t *testing.T) {
	facade := &fakeRecoveryFacade{hsOpened: true, setpoint: 0.1}
	path := filepath.Join(t.TempDir(), "statefile")
	log := persistence.New(path)
	if err := log.Write("Ramping", time.Now()); err != nil {
		t.Fatalf("Write: %v", err)
	}

	state, _ := recoverInitialState(time.Now(), false, facade, &fakeParams{soakCurrent: 1.0}, log, discardLogger())
	if state != cycle.Deramping {
		t.Fatalf("got %s, want Deramping", state)
	}
}
