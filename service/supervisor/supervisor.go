// SPDX-License-Identifier: BSD-3-Clause

package supervisor

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"cirello.io/oversight/v2"
	"github.com/arunsworld/nursery"
	"github.com/nats-io/nats.go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/cryopilot/adrctl/pkg/bus"
	"github.com/cryopilot/adrctl/pkg/cycle"
	"github.com/cryopilot/adrctl/pkg/instrument"
	"github.com/cryopilot/adrctl/pkg/log"
	"github.com/cryopilot/adrctl/pkg/persistence"
	"github.com/cryopilot/adrctl/pkg/registry"
	"github.com/cryopilot/adrctl/service"
)

// facade is the instrument.Facade surface the Supervisor needs beyond what
// cycle.Instrument and recoveryFacade already cover.
type facade interface {
	cycle.Instrument
	recoveryFacade
	ReadDeviceInfo() (instrument.DeviceInfo, error)
	ApplySchemaSettings(settings map[string]string) (map[string]string, error)
	ReadInputVoltage() (float64, error)
	ReadOutputVoltage() (float64, error)
	SetRegulationCeiling(kelvin float64) error
}

// Supervisor is the Controller Supervisor: it owns the Cycle State
// Machine's lifecycle, from startup recovery through the stepping,
// telemetry, and settings-refresh tasks, to command dispatch.
//
// A single mutex (mu) coordinates everything that is not already internal
// to the Machine: cooldown scheduling and direct Registry/Facade writes
// from command handling. Nothing under mu ever blocks for longer than one
// Facade round trip, and no call path reacquires mu while already holding
// it, so a plain sync.Mutex is sufficient.
type Supervisor struct {
	config *config
	facade facade

	bus            *bus.Client
	registry       *registry.Registry
	persistenceLog *persistence.Log
	machine        *cycle.Machine
	params         *paramsCache
	temperature    *temperatureSource

	mu       sync.Mutex
	cooldown *scheduledCooldown
	started  bool

	logger *slog.Logger
	tracer trace.Tracer
}

var _ service.Service = (*Supervisor)(nil)

// New constructs a Supervisor over facade, the already-open connection to
// the PID controller, bridge, and heat switch. Call Run to start it.
func New(f facade, opts ...Option) *Supervisor {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt.apply(cfg)
	}
	return &Supervisor{config: cfg, facade: f}
}

// Name returns the Supervisor's configured service name.
func (s *Supervisor) Name() string { return s.config.name }

// Run connects to the bus, recovers the cycle's initial state, and runs
// the stepping, telemetry, settings-refresh, and command tasks until ctx
// is cancelled or the bus is lost beyond its retry window. Returns
// ErrBusLost in the latter case; on ordinary shutdown it returns the error
// the cancelled tasks report, such as ctx.Err() from the bus watchdog.
func (s *Supervisor) Run(ctx context.Context, ipcConn nats.InProcessConnProvider) error {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return ErrAlreadyStarted
	}
	s.started = true
	s.mu.Unlock()

	s.logger = log.GetGlobalLogger().With("service", s.config.name)
	s.tracer = otel.Tracer("github.com/cryopilot/adrctl/service/supervisor")

	ctx, span := s.tracer.Start(ctx, "supervisor.Run")
	defer span.End()

	busClient, err := bus.Connect(ctx, ipcConn, s.config.busOpts...)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("supervisor: bus connect: %w", err)
	}
	s.bus = busClient
	defer s.bus.Close()

	s.registry = registry.New(s.bus, s.config.registryOpts...)
	s.temperature = newTemperatureSource()
	s.params = newParamsCache(s.registry, s.logger)

	if err := s.params.Refresh(ctx); err != nil {
		s.logger.WarnContext(ctx, "initial settings pull failed", "error", err)
	}

	s.persistenceLog = persistence.New(s.resolveStatefilePath())

	now := s.config.clock.Now()
	retained := s.instrumentRetainedConfig(ctx)
	initialState, entryTime := recoverInitialState(now, retained, s.facade, s.params, s.persistenceLog, s.logger)
	s.logger.InfoContext(ctx, "recovered initial cycle state", "state", initialState.String(), "retained_config", retained)

	s.machine = cycle.New(s.facade, s.temperature, s.params, s.persistenceLog, s.bus,
		cycle.WithInitialState(initialState),
		cycle.WithInitialStateEntryTime(entryTime),
		cycle.WithLogger(s.logger),
		cycle.WithClock(s.config.clock),
	)

	if err := s.bus.Publish("status:magnet:state", initialState.String()); err != nil {
		s.logger.WarnContext(ctx, "publishing recovered state failed", "error", err)
	}

	if retained {
		s.publishDeviceInfo(ctx)
	} else {
		s.pushFullSchema(ctx)
	}

	cmdMsgs, err := s.bus.Subscribe(ctx, "command:>")
	if err != nil {
		return fmt.Errorf("supervisor: subscribe commands: %w", err)
	}
	tempMsgs, err := s.bus.Subscribe(ctx, s.config.temperatureStatusKey)
	if err != nil {
		return fmt.Errorf("supervisor: subscribe temperature: %w", err)
	}

	tree := oversight.New(
		oversight.NeverHalt(),
		oversight.DefaultRestartStrategy(),
		oversight.WithLogger(log.NewOversightLogger(s.logger)),
	)
	childTimeout := oversight.Timeout(s.config.childShutdownTimeout)
	if err := tree.Add(s.steppingLoop, oversight.Transient(), childTimeout, "stepping"); err != nil {
		return fmt.Errorf("supervisor: add stepping task: %w", err)
	}
	if err := tree.Add(s.telemetryLoop, oversight.Transient(), childTimeout, "telemetry"); err != nil {
		return fmt.Errorf("supervisor: add telemetry task: %w", err)
	}
	if err := tree.Add(s.settingsRefreshLoop, oversight.Transient(), childTimeout, "settings-refresh"); err != nil {
		return fmt.Errorf("supervisor: add settings-refresh task: %w", err)
	}
	if err := tree.Add(s.commandLoop(cmdMsgs, tempMsgs), oversight.Transient(), childTimeout, "commands"); err != nil {
		return fmt.Errorf("supervisor: add command task: %w", err)
	}

	supervise := func(ctx context.Context, c chan error) {
		c <- tree.Start(ctx)
	}
	watchdog := func(ctx context.Context, c chan error) {
		c <- s.busWatchdog(ctx)
	}

	return nursery.RunConcurrentlyWithContext(ctx, supervise, watchdog)
}

// fire feeds trigger to the state machine under the Supervisor's lock, so
// a stepping-loop next and a command-triggered start/abort never race on
// which fires first.
func (s *Supervisor) fire(trigger cycle.Trigger) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_ = s.machine.Fire(trigger)
}

func (s *Supervisor) steppingLoop(ctx context.Context) error {
	ticker := time.NewTicker(s.config.stepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.fire(cycle.TriggerNext)
		}
	}
}

func (s *Supervisor) settingsRefreshLoop(ctx context.Context) error {
	ticker := time.NewTicker(s.config.settingsRefreshInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := s.params.Refresh(ctx); err != nil {
				s.logger.WarnContext(ctx, "settings refresh failed", "error", err)
			}
		}
	}
}

// busWatchdog declares the bus fatally lost once it has been disconnected
// continuously for config.busLostTimeout: it aborts the running cycle and
// waits up to config.derampWaitTimeout for it to reach Off before
// returning ErrBusLost, so a process restart does not interrupt an
// in-progress deramp.
func (s *Supervisor) busWatchdog(ctx context.Context) error {
	ticker := time.NewTicker(s.config.busLostPollInterval)
	defer ticker.Stop()

	var lostSince time.Time
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if s.bus.Connected() {
				lostSince = time.Time{}
				continue
			}
			now := s.config.clock.Now()
			if lostSince.IsZero() {
				lostSince = now
				continue
			}
			if now.Sub(lostSince) < s.config.busLostTimeout {
				continue
			}
			s.logger.Error("bus disconnected beyond retry window, aborting cycle and shutting down")
			s.fire(cycle.TriggerAbort)
			s.waitForOff(ctx)
			return ErrBusLost
		}
	}
}

func (s *Supervisor) waitForOff(ctx context.Context) {
	deadline := s.config.clock.Now().Add(s.config.derampWaitTimeout)
	ticker := time.NewTicker(s.config.busLostPollInterval)
	defer ticker.Stop()
	for s.machine.State() != cycle.Off {
		if s.config.clock.Now().After(deadline) {
			s.logger.Warn("gave up waiting for Off after bus-lost abort", "state", s.machine.State().String())
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (s *Supervisor) resolveStatefilePath() string {
	if s.config.statefilePath != "" {
		return s.config.statefilePath
	}
	if v, ok := s.params.value(registry.KeyStatefile); ok && v != "" {
		return v
	}
	return defaultStatefilePath
}

// instrumentRetainedConfig reports whether the instrument kept its
// configuration across this process's restart. The instrument signals a
// configuration loss explicitly on firstConnectKey; absence of the key (no
// signal was ever published) is treated as "retained", the common case on
// an ordinary Supervisor restart against an instrument that never lost
// power.
func (s *Supervisor) instrumentRetainedConfig(ctx context.Context) bool {
	value, ok, err := s.bus.Get(ctx, s.config.firstConnectKey)
	if err != nil {
		s.logger.WarnContext(ctx, "reading first-connect signal failed, assuming configuration lost", "error", err)
		return false
	}
	if !ok {
		return true
	}
	return value != "yes"
}

func (s *Supervisor) publishDeviceInfo(ctx context.Context) {
	info, err := s.facade.ReadDeviceInfo()
	if err != nil {
		s.logger.WarnContext(ctx, "reading device info failed", "error", err)
		return
	}
	fields := map[string]string{"model": info.Model, "firmware": info.Firmware, "sn": info.Serial}
	for suffix, value := range fields {
		if err := s.bus.Publish(s.config.deviceStatusPrefix+":"+suffix, value); err != nil {
			s.logger.WarnContext(ctx, "publishing device info failed", "field", suffix, "error", err)
		}
	}
}

// pushFullSchema is the first-connect path: every schema setting currently
// on the bus is pushed down to the instrument, and whatever the instrument
// actually applied (after any hardware-side clipping) is written back so
// the Registry's view matches reality.
func (s *Supervisor) pushFullSchema(ctx context.Context) {
	settings, err := s.registry.Pull(ctx)
	if err != nil {
		s.logger.WarnContext(ctx, "schema pull for first-connect push failed", "error", err)
		return
	}
	effective, err := s.facade.ApplySchemaSettings(settings)
	if err != nil {
		s.logger.WarnContext(ctx, "applying schema settings to instrument failed", "error", err)
	}
	for key, value := range effective {
		if _, err := s.registry.WriteBack(ctx, cycle.Off.String(), key, value); err != nil {
			s.logger.WarnContext(ctx, "writing back effective setting failed", "key", key, "error", err)
		}
	}
	s.publishDeviceInfo(ctx)
	if err := s.params.Refresh(ctx); err != nil {
		s.logger.WarnContext(ctx, "settings refresh after first-connect push failed", "error", err)
	}
}
