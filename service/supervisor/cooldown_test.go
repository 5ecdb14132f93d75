// SPDX-License-Identifier: BSD-3-Clause

package supervisor

import (
	"testing"
	"time"

	"github.com/cryopilot/adrctl/pkg/cycle"
)

func TestEstimateTimeToColdFromOff(t *testing.T) {
	params := &fakeParams{rampRate: 0.01, derampRate: 0.02, soakCurrent: 1.0, soakTime: 600}
	got, ok := estimateTimeToCold(cycle.Off, params, 0, 0)
	if !ok {
		t.Fatal("expected an estimate")
	}
	want := secondsToDuration(1.0/0.01 + 600 + 1.0/0.02)
	if got != want {
		t.Fatalf("got %s, want %s", got, want)
	}
}

func TestEstimateTimeToColdFromSoaking(t *testing.T) {
	params := &fakeParams{derampRate: 0.02, soakCurrent: 1.0, soakTime: 600}
	got, ok := estimateTimeToCold(cycle.Soaking, params, 0.995, 100)
	if !ok {
		t.Fatal("expected an estimate")
	}
	want := secondsToDuration((600 - 100) + 1.0/0.02)
	if got != want {
		t.Fatalf("got %s, want %s", got, want)
	}
}

func TestEstimateTimeToColdFromSoakingClampsElapsedPastSoakTime(t *testing.T) {
	params := &fakeParams{derampRate: 0.02, soakCurrent: 1.0, soakTime: 600}
	got, ok := estimateTimeToCold(cycle.Soaking, params, 0.995, 900)
	if !ok {
		t.Fatal("expected an estimate")
	}
	want := secondsToDuration(1.0 / 0.02)
	if got != want {
		t.Fatalf("got %s, want %s", got, want)
	}
}

func TestEstimateTimeToColdFromDeramping(t *testing.T) {
	params := &fakeParams{derampRate: 0.02}
	got, ok := estimateTimeToCold(cycle.Deramping, params, 0.5, 0)
	if !ok {
		t.Fatal("expected an estimate")
	}
	want := secondsToDuration(0.5 / 0.02)
	if got != want {
		t.Fatalf("got %s, want %s", got, want)
	}
}

func TestEstimateTimeToColdFromRegulatingIsZero(t *testing.T) {
	got, ok := estimateTimeToCold(cycle.Regulating, &fakeParams{}, 0, 0)
	if !ok {
		t.Fatal("expected an estimate")
	}
	if got != 0 {
		t.Fatalf("got %s, want 0", got)
	}
}

func TestEstimateTimeToColdRejectsZeroRates(t *testing.T) {
	if _, ok := estimateTimeToCold(cycle.Off, &fakeParams{}, 0, 0); ok {
		t.Fatal("expected no estimate with a zero ramp rate")
	}
}

func TestEstimateTimeToColdFromHsOpeningRejectsZeroDerampRate(t *testing.T) {
	if _, ok := estimateTimeToCold(cycle.HsOpening, &fakeParams{}, 0, 0); ok {
		t.Fatal("HsOpening shares the soaking branch and should reject a zero deramp rate")
	}
}

func TestSecondsToDurationClampsNegative(t *testing.T) {
	if got := secondsToDuration(-5); got != 0 {
		t.Fatalf("got %s, want 0", got)
	}
}

func TestSecondsToDurationConverts(t *testing.T) {
	if got, want := secondsToDuration(1.5), 1500*time.Millisecond; got != want {
		t.Fatalf("got %s, want %s", got, want)
	}
}
