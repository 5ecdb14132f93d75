// SPDX-License-Identifier: BSD-3-Clause

package bus

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"time"

	"github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"

	"github.com/cryopilot/adrctl/pkg/log"
	"github.com/cryopilot/adrctl/service"
)

var _ service.Service = (*EmbeddedServer)(nil)

// EmbeddedServer runs a single-process NATS server with JetStream enabled,
// used for standalone operation and integration tests. Production
// deployments that already run a NATS cluster skip this and point Client at
// it directly with WithURL.
type EmbeddedServer struct {
	name            string
	storeDir        string
	startupTimeout  time.Duration
	shutdownTimeout time.Duration
	host            string
	port            int

	srv    *server.Server
	logger *slog.Logger
}

// EmbeddedOption configures an EmbeddedServer.
type EmbeddedOption func(*EmbeddedServer)

// WithEmbeddedStoreDir sets the JetStream storage directory. An empty
// string (the default) leaves the choice to the NATS server, which stores
// JetStream files under the system temp directory; the data is not kept in
// memory only.
func WithEmbeddedStoreDir(dir string) EmbeddedOption {
	return func(e *EmbeddedServer) { e.storeDir = dir }
}

// WithEmbeddedHostPort sets the TCP listener the embedded server binds in
// addition to its in-process transport. A negative port (the default, -1)
// disables the TCP listener entirely; other services reach it only
// in-process.
func WithEmbeddedHostPort(host string, port int) EmbeddedOption {
	return func(e *EmbeddedServer) { e.host = host; e.port = port }
}

// NewEmbeddedServer constructs an embedded NATS server. Call Run to start it.
func NewEmbeddedServer(name string, opts ...EmbeddedOption) *EmbeddedServer {
	e := &EmbeddedServer{
		name:            name,
		startupTimeout:  5 * time.Second,
		shutdownTimeout: 5 * time.Second,
		host:            "127.0.0.1",
		port:            -1,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Name implements service.Service.
func (e *EmbeddedServer) Name() string {
	return e.name
}

// Run implements service.Service: it starts the embedded NATS server and
// blocks until ctx is canceled, then shuts it down gracefully.
func (e *EmbeddedServer) Run(ctx context.Context, ipcConn nats.InProcessConnProvider) error {
	if ipcConn != nil {
		return fmt.Errorf("bus: embedded server does not consume an IPC connection")
	}

	e.logger = log.GetGlobalLogger().With("service", e.name)

	opts := &server.Options{
		ServerName: e.name,
		Host:       e.host,
		Port:       e.port,
		DontListen: e.port < 0,
		JetStream:  true,
		StoreDir:   e.storeDir,
		NoSigs:     true,
		NoLog:      true,
	}

	srv, err := server.NewServer(opts)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrServerCreationFailed, err)
	}
	e.srv = srv
	e.srv.SetLoggerV2(log.NewNATSLogger(e.logger), false, false, false)

	e.logger.InfoContext(ctx, "starting embedded bus server", "store_dir", e.storeDir)
	e.srv.Start()

	if !e.srv.ReadyForConnections(e.startupTimeout) {
		e.srv.Shutdown()
		return fmt.Errorf("%w: after %s", ErrServerTimeout, e.startupTimeout)
	}

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), e.shutdownTimeout)
	defer cancel()

	e.logger.InfoContext(shutdownCtx, "shutting down embedded bus server")
	e.srv.LameDuckShutdown()

	done := make(chan struct{})
	go func() {
		defer close(done)
		e.srv.Shutdown()
	}()
	select {
	case <-done:
	case <-shutdownCtx.Done():
		e.logger.WarnContext(shutdownCtx, "embedded bus server shutdown timed out")
	}

	return ctx.Err()
}

// ConnProvider returns a nats.InProcessConnProvider for other services (or
// Client.Connect) to dial this server without a TCP round-trip. It blocks
// until the server has started or the startup timeout elapses.
func (e *EmbeddedServer) ConnProvider() nats.InProcessConnProvider {
	deadline := time.Now().Add(e.startupTimeout)
	for e.srv == nil && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	return &connProvider{srv: e.srv}
}

type connProvider struct {
	srv *server.Server
}

func (p *connProvider) InProcessConn() (net.Conn, error) {
	if p.srv == nil {
		return nil, ErrNotConnected
	}
	if !p.srv.ReadyForConnections(time.Minute) {
		return nil, ErrServerTimeout
	}
	return p.srv.InProcessConn()
}
