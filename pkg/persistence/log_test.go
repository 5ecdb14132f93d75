// SPDX-License-Identifier: BSD-3-Clause

package persistence

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestWriteLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "statefile")
	l := New(path)

	now := time.Now()
	if err := l.Write("Soaking", now); err != nil {
		t.Fatalf("Write: %v", err)
	}

	rec, ok, err := l.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !ok {
		t.Fatal("expected a record to be present")
	}
	if rec.State != "Soaking" {
		t.Fatalf("unexpected state: %q", rec.State)
	}
	if diff := rec.Time.Sub(now); diff > time.Second || diff < -time.Second {
		t.Fatalf("timestamp not within 1s of write: %v", diff)
	}
}

func TestLoadMissingFile(t *testing.T) {
	l := New(filepath.Join(t.TempDir(), "does-not-exist"))
	_, ok, err := l.Load()
	if err != nil {
		t.Fatalf("Load on missing file should not error: %v", err)
	}
	if ok {
		t.Fatal("expected no record for missing file")
	}
}

func TestLoadMalformedLine(t *testing.T) {
	path := filepath.Join(t.TempDir(), "statefile")
	l := New(path)
	if err := os.WriteFile(path, []byte("not-a-valid-line"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	_, ok, err := l.Load()
	if err != nil {
		t.Fatalf("Load on malformed line should not error: %v", err)
	}
	if ok {
		t.Fatal("expected no record for malformed line")
	}
}

func TestRecordStale(t *testing.T) {
	rec := Record{Time: time.Unix(1000, 0), State: "Soaking"}
	if !rec.Stale(time.Unix(1_000_000_000, 0)) {
		t.Fatal("expected record to be stale after 3600s")
	}
	if rec.Stale(time.Unix(1100, 0)) {
		t.Fatal("did not expect record to be stale after 100s")
	}
}
