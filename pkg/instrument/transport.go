// SPDX-License-Identifier: BSD-3-Clause

package instrument

import (
	"bufio"
	"strings"
	"sync"
	"time"

	"github.com/tarm/serial"
)

// Transport is a line-oriented ASCII request/response channel to a single
// instrument. SerialTransport is the production implementation; tests
// substitute a fake.
type Transport interface {
	// Query sends cmd terminated by "\n" and returns the single-line reply
	// with its terminator stripped.
	Query(cmd string) (string, error)
	// Send sends cmd without waiting for a reply.
	Send(cmd string) error
	// Close releases the underlying device handle.
	Close() error
}

// SerialTransport is a Transport backed by a line-oriented ASCII serial
// device, matching spec's "line-oriented ASCII, \n terminator" external
// interface.
type SerialTransport struct {
	mu      sync.Mutex
	path    string
	baud    int
	timeout time.Duration

	port   *serial.Port
	reader *bufio.Reader
}

// NewSerialTransport constructs a SerialTransport. The device is not opened
// until the first Query/Send call, making Open idempotent and safe to call
// from multiple recovery paths.
func NewSerialTransport(path string, baud int, timeout time.Duration) *SerialTransport {
	return &SerialTransport{path: path, baud: baud, timeout: timeout}
}

// Open opens the serial port if it is not already open. Safe to call
// repeatedly.
func (t *SerialTransport) Open() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.openLocked()
}

func (t *SerialTransport) openLocked() error {
	if t.port != nil {
		return nil
	}
	port, err := serial.OpenPort(&serial.Config{
		Name:        t.path,
		Baud:        t.baud,
		ReadTimeout: t.timeout,
	})
	if err != nil {
		return NewIoError("open", err)
	}
	t.port = port
	t.reader = bufio.NewReader(port)
	return nil
}

// Send writes cmd terminated by "\n" without reading a reply.
func (t *SerialTransport) Send(cmd string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.openLocked(); err != nil {
		return err
	}
	if _, err := t.port.Write([]byte(cmd + "\n")); err != nil {
		t.closeLocked()
		return NewIoError("send", err)
	}
	return nil
}

// Query writes cmd and returns the next line read back, with its "\n"
// terminator stripped.
func (t *SerialTransport) Query(cmd string) (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.openLocked(); err != nil {
		return "", err
	}
	if _, err := t.port.Write([]byte(cmd + "\n")); err != nil {
		t.closeLocked()
		return "", NewIoError("query", err)
	}
	line, err := t.reader.ReadString('\n')
	if err != nil {
		t.closeLocked()
		return "", NewIoError("query", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// Close releases the serial port, if open.
func (t *SerialTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.closeLocked()
}

func (t *SerialTransport) closeLocked() error {
	if t.port == nil {
		return nil
	}
	err := t.port.Close()
	t.port = nil
	t.reader = nil
	return err
}
