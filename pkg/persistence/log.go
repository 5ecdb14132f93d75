// SPDX-License-Identifier: BSD-3-Clause

package persistence

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"
)

// StaleAfter is the age beyond which a persisted record is ignored during
// recovery.
const StaleAfter = 3600 * time.Second

// Record is one parsed statefile entry: the wall-clock time a cycle state
// was entered and the state's name.
type Record struct {
	Time  time.Time
	State string
}

// Stale reports whether the record is older than StaleAfter as of now.
func (r Record) Stale(now time.Time) bool {
	return now.Sub(r.Time) > StaleAfter
}

// Log is the statefile: a single line overwritten on every state entry,
// guarded by a mutex since the stepping loop and command handlers may both
// trigger writes.
type Log struct {
	mu   sync.Mutex
	path string
}

// New returns a Log backed by path. The file is created on first Write; it
// need not exist yet.
func New(path string) *Log {
	return &Log{path: path}
}

// Write overwrites the statefile with the given state entered at now.
func (l *Log) Write(state string, now time.Time) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	line := fmt.Sprintf("%f:%s", float64(now.UnixNano())/1e9, state)
	if err := os.WriteFile(l.path, []byte(line), 0o644); err != nil {
		return NewIoError("write", l.path, err)
	}
	return nil
}

// Load reads and parses the statefile's single line. A missing file,
// unreadable file, or malformed line all yield (Record{}, false, nil): per
// the original implementation, a load failure is not itself a fatal error,
// it simply means no usable prior state exists.
func (l *Log) Load() (Record, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	data, err := os.ReadFile(l.path)
	if err != nil {
		return Record{}, false, nil
	}
	line := strings.TrimSpace(string(data))
	idx := strings.IndexByte(line, ':')
	if idx < 0 {
		return Record{}, false, nil
	}
	seconds, err := strconv.ParseFloat(line[:idx], 64)
	if err != nil {
		return Record{}, false, nil
	}
	state := line[idx+1:]
	if state == "" {
		return Record{}, false, nil
	}
	whole := int64(seconds)
	frac := seconds - float64(whole)
	return Record{
		Time:  time.Unix(whole, int64(frac*1e9)),
		State: state,
	}, true, nil
}

// Path returns the statefile path the Log was constructed with.
func (l *Log) Path() string {
	return l.path
}
