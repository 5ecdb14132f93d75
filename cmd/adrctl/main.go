// SPDX-License-Identifier: BSD-3-Clause

// Command adrctl runs the Controller Supervisor: it opens the PID
// controller, bridge, and heat-switch serial devices, connects to the
// pub/sub bus, and drives the Cycle State Machine for the life of the
// process. Per the CLI surface, the only defined non-zero exit is 1, on a
// bus connection lost beyond its retry window after the cycle has aborted.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cirello.io/oversight/v2"
	"github.com/arunsworld/nursery"
	"github.com/google/uuid"
	"github.com/nats-io/nats.go"

	"github.com/cryopilot/adrctl/pkg/bus"
	"github.com/cryopilot/adrctl/pkg/instrument"
	"github.com/cryopilot/adrctl/pkg/log"
	"github.com/cryopilot/adrctl/pkg/process"
	"github.com/cryopilot/adrctl/pkg/telemetry"
	"github.com/cryopilot/adrctl/service/supervisor"
)

func main() {
	var (
		pidDevice        = flag.String("pid-device", "/dev/ttyUSB0", "serial device path for the PID controller")
		bridgeDevice     = flag.String("bridge-device", "/dev/ttyUSB1", "serial device path for the bridge")
		heatswitchDevice = flag.String("heatswitch-device", "/dev/ttyUSB2", "serial device path for the heat switch")
		baud             = flag.Int("baud", 9600, "shared baud rate for all three serial devices")
		callTimeout      = flag.Duration("call-timeout", 100*time.Millisecond, "round-trip timeout for a single instrument command")

		busURL       = flag.String("bus-url", "", "NATS server URL; empty runs an embedded in-process server")
		busBucket    = flag.String("bus-bucket", "adrctl-settings", "JetStream KV bucket name")
		busStream    = flag.String("bus-stream", "ADRCTL_TELEMETRY", "JetStream telemetry stream name")
		embeddedHost = flag.String("embedded-host", "127.0.0.1", "TCP listen address for the embedded bus server (only used without -bus-url)")
		embeddedPort = flag.Int("embedded-port", -1, "TCP listen port for the embedded bus server; -1 disables the TCP listener")
		storeDir     = flag.String("store-dir", "", "JetStream storage directory for the embedded bus server; empty uses a directory under the system temp dir")

		statefilePath = flag.String("statefile", "", "statefile path; empty resolves from the device-settings:sim960:statefile schema key")
		taskTimeout   = flag.Duration("task-timeout", 10*time.Second, "per-child startup/shutdown timeout in the supervision tree")
	)
	flag.Parse()

	telemetry.DefaultSetup()

	l := log.GetGlobalLogger().With("instance_id", uuid.New().String())
	l.Info("starting adrctl")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	facade := instrument.NewSerial(*pidDevice, *bridgeDevice, *heatswitchDevice, *baud,
		instrument.WithCallTimeout(*callTimeout),
	)

	sup := supervisor.New(facade,
		supervisor.WithStatefilePath(*statefilePath),
		supervisor.WithBusOptions(
			bus.WithURL(*busURL),
			bus.WithBucketName(*busBucket),
			bus.WithStreamName(*busStream),
		),
	)

	var embedded *bus.EmbeddedServer
	if *busURL == "" {
		embedded = bus.NewEmbeddedServer("adrctl-bus",
			bus.WithEmbeddedStoreDir(*storeDir),
			bus.WithEmbeddedHostPort(*embeddedHost, *embeddedPort),
		)
	}

	tree := oversight.New(
		oversight.NeverHalt(),
		oversight.DefaultRestartStrategy(),
		oversight.WithLogger(log.NewOversightLogger(l)),
	)

	if embedded != nil {
		if err := tree.Add(process.New(embedded, nil), oversight.Transient(), oversight.Timeout(*taskTimeout), embedded.Name()); err != nil {
			l.Error("failed to add embedded bus server to supervision tree", "error", err)
			os.Exit(1)
		}
	}

	supervise := func(ctx context.Context, c chan error) {
		c <- tree.Start(ctx)
	}

	spawnSupervisor := func(ctx context.Context, c chan error) {
		var conn nats.InProcessConnProvider
		if embedded != nil {
			conn = embedded.ConnProvider()
		}
		if err := tree.Add(process.New(sup, conn), oversight.Transient(), oversight.Timeout(*taskTimeout), sup.Name()); err != nil {
			c <- fmt.Errorf("adding supervisor to supervision tree: %w", err)
			return
		}
	}

	l.InfoContext(ctx, "starting child routines")
	err := nursery.RunConcurrentlyWithContext(ctx, supervise, spawnSupervisor)

	switch {
	case err == nil, errors.Is(err, context.Canceled):
		os.Exit(0)
	case errors.Is(err, supervisor.ErrBusLost):
		l.Error("exiting after bus loss", "error", err)
		os.Exit(1)
	default:
		l.Error("exiting after supervision tree error", "error", err)
		os.Exit(1)
	}
}
