// SPDX-License-Identifier: BSD-3-Clause

package bus

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/cryopilot/adrctl/pkg/log"
)

// Message is one (key, value) pair delivered to a Subscribe channel.
type Message struct {
	Key   string
	Value string
}

// Client is the pub/sub key-value bus used throughout this module:
// device-settings:*/instrument:* configuration, status:* publications,
// command:<key> ingestion, and a timeseries Add for telemetry.
type Client struct {
	config *config
	nc     *nats.Conn
	js     jetstream.JetStream
	kv     jetstream.KeyValue
	logger *slog.Logger
	tracer trace.Tracer
}

// Connect dials the bus, either over the network (WithURL) or in-process
// against an embedded server, and binds (creating if absent) the
// configured KV bucket and telemetry stream.
func Connect(ctx context.Context, connProvider nats.InProcessConnProvider, opts ...Option) (*Client, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt.apply(cfg)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	c := &Client{
		config: cfg,
		logger: log.GetGlobalLogger().With("component", "bus"),
		tracer: otel.Tracer("github.com/cryopilot/adrctl/pkg/bus"),
	}

	ctx, span := c.tracer.Start(ctx, "Connect")
	defer span.End()

	natsOpts := []nats.Option{
		nats.Name(cfg.name),
		nats.Timeout(cfg.connectTimeout),
		nats.ReconnectWait(cfg.reconnectWait),
		nats.MaxReconnects(cfg.maxReconnects),
	}
	if connProvider != nil {
		natsOpts = append(natsOpts, nats.InProcessServer(connProvider))
	}

	url := cfg.url
	if url == "" {
		url = nats.DefaultURL
	}

	nc, err := nats.Connect(url, natsOpts...)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("%w: %w", ErrNotConnected, err)
	}
	c.nc = nc

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("bus: jetstream init: %w", err)
	}
	c.js = js

	kv, err := js.KeyValue(ctx, cfg.bucketName)
	if errors.Is(err, jetstream.ErrBucketNotFound) {
		kv, err = js.CreateKeyValue(ctx, jetstream.KeyValueConfig{Bucket: cfg.bucketName})
	}
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("bus: KV bucket %q: %w", cfg.bucketName, err)
	}
	c.kv = kv

	_, err = js.Stream(ctx, cfg.streamName)
	if errors.Is(err, jetstream.ErrStreamNotFound) {
		_, err = js.CreateStream(ctx, jetstream.StreamConfig{
			Name:     cfg.streamName,
			Subjects: []string{"timeseries." + cfg.streamName + ".>"},
			MaxAge:   24 * time.Hour,
		})
	}
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("bus: stream %q: %w", cfg.streamName, err)
	}

	return c, nil
}

// Set stores a value under key, overwriting any prior value.
func (c *Client) Set(ctx context.Context, key, value string) error {
	if key == "" {
		return ErrInvalidKey
	}
	ctx, span := c.tracer.Start(ctx, "Set")
	defer span.End()
	if _, err := c.kv.Put(ctx, kvSafeKey(key), []byte(value)); err != nil {
		span.RecordError(err)
		return fmt.Errorf("bus: set %q: %w", key, err)
	}
	return nil
}

// Get returns the current value for key. The second return value reports
// whether the key was present.
func (c *Client) Get(ctx context.Context, key string) (string, bool, error) {
	if key == "" {
		return "", false, ErrInvalidKey
	}
	ctx, span := c.tracer.Start(ctx, "Get")
	defer span.End()

	entry, err := c.kv.Get(ctx, kvSafeKey(key))
	if errors.Is(err, jetstream.ErrKeyNotFound) {
		return "", false, nil
	}
	if err != nil {
		span.RecordError(err)
		return "", false, fmt.Errorf("bus: get %q: %w", key, err)
	}
	return string(entry.Value()), true, nil
}

// Add appends a timeseries point for key at ts.
func (c *Client) Add(ctx context.Context, key, value string, ts time.Time) error {
	if key == "" {
		return ErrInvalidKey
	}
	ctx, span := c.tracer.Start(ctx, "Add")
	defer span.End()

	subject := fmt.Sprintf("timeseries.%s.%s", c.config.streamName, key)
	payload := fmt.Sprintf("%d:%s", ts.UnixNano(), value)
	if _, err := c.js.Publish(ctx, subject, []byte(payload)); err != nil {
		span.RecordError(err)
		return fmt.Errorf("bus: add %q: %w", key, err)
	}
	return nil
}

// Publish sends a one-shot value to subject without persisting it, used for
// status:* publications and command acknowledgements.
func (c *Client) Publish(subject, value string) error {
	if subject == "" {
		return ErrInvalidKey
	}
	if err := c.nc.Publish(subject, []byte(value)); err != nil {
		return fmt.Errorf("bus: publish %q: %w", subject, err)
	}
	return nil
}

// Subscribe yields (key, value) pairs published on any of the given
// subjects. Subjects may use NATS wildcards (command:>). The returned
// channel is closed when ctx is done.
func (c *Client) Subscribe(ctx context.Context, subjects ...string) (<-chan Message, error) {
	out := make(chan Message, 64)
	subs := make([]*nats.Subscription, 0, len(subjects))

	for _, subject := range subjects {
		subject := subject
		sub, err := c.nc.Subscribe(subject, func(msg *nats.Msg) {
			select {
			case out <- Message{Key: msg.Subject, Value: string(msg.Data)}:
			case <-ctx.Done():
			}
		})
		if err != nil {
			for _, s := range subs {
				_ = s.Unsubscribe()
			}
			close(out)
			return nil, fmt.Errorf("bus: subscribe %q: %w", subject, err)
		}
		subs = append(subs, sub)
	}

	go func() {
		<-ctx.Done()
		for _, s := range subs {
			_ = s.Unsubscribe()
		}
		close(out)
	}()

	return out, nil
}

// Connected reports whether the underlying NATS connection believes it is
// connected. The Supervisor's bus watchdog uses this to decide when
// sustained failure should surface as its ErrBusLost.
func (c *Client) Connected() bool {
	return c.nc != nil && c.nc.IsConnected()
}

// Close drains and closes the underlying connection.
func (c *Client) Close() {
	if c.nc != nil {
		_ = c.nc.Drain()
	}
}

// kvSafeKey translates a colon-delimited bus key (device-settings:sim960:ramp-rate)
// into a JetStream KV-legal key, which disallows colons. Dots are the KV
// equivalent separator.
func kvSafeKey(key string) string {
	out := make([]byte, len(key))
	for i := 0; i < len(key); i++ {
		if key[i] == ':' {
			out[i] = '.'
		} else {
			out[i] = key[i]
		}
	}
	return string(out)
}
