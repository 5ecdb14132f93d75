// SPDX-License-Identifier: BSD-3-Clause

package instrument

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

// DeviceInfo is the reply to *IDN? style identification queries.
type DeviceInfo struct {
	Model    string
	Firmware string
	Serial   string
}

// Facade is the typed wrapper over the PID controller, bridge, and
// heat-switch driver used by the Cycle State Machine and the Settings
// Registry. All methods are synchronous and bounded by the configured
// call timeout; retries are the caller's responsibility.
type Facade struct {
	config *config
	pid    Transport
	bridge Transport
	hs     Transport
	tracer trace.Tracer
}

// New constructs a Facade over already-open transports. Use NewSerial for
// the common case of three serial devices.
func New(pid, bridge, heatswitch Transport, opts ...Option) *Facade {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt.apply(cfg)
	}
	return &Facade{
		config: cfg,
		pid:    pid,
		bridge: bridge,
		hs:     heatswitch,
		tracer: otel.Tracer("github.com/cryopilot/adrctl/pkg/instrument"),
	}
}

// NewSerial constructs a Facade backed by three serial devices at the given
// paths, sharing the same baud rate and call timeout.
func NewSerial(pidPath, bridgePath, hsPath string, baud int, opts ...Option) *Facade {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt.apply(cfg)
	}
	return New(
		NewSerialTransport(pidPath, baud, cfg.callTimeout),
		NewSerialTransport(bridgePath, baud, cfg.callTimeout),
		NewSerialTransport(hsPath, baud, cfg.callTimeout),
		opts...,
	)
}

// ReadDeviceInfo queries the PID controller's identification string.
func (f *Facade) ReadDeviceInfo() (DeviceInfo, error) {
	reply, err := f.pid.Query("*IDN?")
	if err != nil {
		return DeviceInfo{}, err
	}
	parts := strings.Split(reply, ",")
	if len(parts) < 4 {
		return DeviceInfo{}, NewProtocolError("ReadDeviceInfo", reply, fmt.Errorf("expected 4 comma-separated fields"))
	}
	return DeviceInfo{
		Model:    strings.TrimSpace(parts[1]),
		Firmware: strings.TrimSpace(parts[3]),
		Serial:   strings.TrimSpace(parts[2]),
	}, nil
}

// schemaSetters maps the trailing segment of a device-settings:* key to the
// Facade operation that applies it. Keys with no entry pass through
// unchanged, matching ApplySchemaSettings' idempotence requirement for
// settings the Facade has no opinion about (those stay the Settings
// Registry's concern alone).
var schemaSetters = map[string]func(f *Facade, value string) (string, error){
	"mode": func(f *Facade, value string) (string, error) {
		mode := Mode{Kind: ModeManual}
		if value == "pid" {
			mode.Kind = ModePID
		}
		if err := f.SetMode(mode); err != nil {
			return "", err
		}
		return value, nil
	},
	"setpoint-current": func(f *Facade, value string) (string, error) {
		amps, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return "", NewProtocolError("ApplySchemaSettings", value, err)
		}
		if err := f.SetSetpointCurrent(amps); err != nil {
			var oor *OutOfRangeError
			if !errors.As(err, &oor) {
				return "", err
			}
			return formatFloat(oor.Clipped), nil
		}
		return formatFloat(amps), nil
	},
}

// ApplySchemaSettings pushes every (key, value) pair through the Facade and
// returns the effective values actually applied. Idempotent: applying the
// same map twice yields identical output, since clipped values are
// re-applied as themselves on the second pass.
func (f *Facade) ApplySchemaSettings(settings map[string]string) (map[string]string, error) {
	effective := make(map[string]string, len(settings))
	for key, value := range settings {
		setter, ok := schemaSetters[lastSegment(key)]
		if !ok {
			effective[key] = value
			continue
		}
		applied, err := setter(f, value)
		if err != nil {
			return effective, err
		}
		effective[key] = applied
	}
	return effective, nil
}

func lastSegment(key string) string {
	if i := strings.LastIndexByte(key, ':'); i >= 0 {
		return key[i+1:]
	}
	return key
}

func clipToRange(value, min, max float64) (float64, bool) {
	if value < min {
		return min, true
	}
	if value > max {
		return max, true
	}
	return value, false
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
