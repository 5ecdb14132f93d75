// SPDX-License-Identifier: BSD-3-Clause

package bus

import (
	"context"
	"testing"
	"time"
)

func newTestClient(t *testing.T) (*Client, func()) {
	t.Helper()

	srv := NewEmbeddedServer("test-bus")
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- srv.Run(ctx, nil) }()

	client, err := Connect(ctx, srv.ConnProvider(),
		WithBucketName("test-bucket"),
		WithStreamName("TEST_STREAM"),
	)
	if err != nil {
		cancel()
		t.Fatalf("Connect: %v", err)
	}

	return client, func() {
		client.Close()
		cancel()
		<-done
	}
}

func TestSetGetRoundTrip(t *testing.T) {
	client, stop := newTestClient(t)
	defer stop()

	ctx := context.Background()
	if err := client.Set(ctx, "device-settings:sim960:ramp-rate", "0.005"); err != nil {
		t.Fatalf("Set: %v", err)
	}

	value, ok, err := client.Get(ctx, "device-settings:sim960:ramp-rate")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !ok {
		t.Fatalf("Get: expected key to be present")
	}
	if value != "0.005" {
		t.Fatalf("Get: got %q, want %q", value, "0.005")
	}
}

func TestGetMissingKey(t *testing.T) {
	client, stop := newTestClient(t)
	defer stop()

	_, ok, err := client.Get(context.Background(), "device-settings:sim960:does-not-exist")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if ok {
		t.Fatalf("Get: expected key to be absent")
	}
}

func TestSubscribeReceivesPublish(t *testing.T) {
	client, stop := newTestClient(t)
	defer stop()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	msgs, err := client.Subscribe(ctx, "command:sim960:ramp-rate")
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}

	if err := client.Publish("command:sim960:ramp-rate", "0.007"); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	select {
	case msg := <-msgs:
		if msg.Value != "0.007" {
			t.Fatalf("Subscribe: got value %q, want %q", msg.Value, "0.007")
		}
	case <-ctx.Done():
		t.Fatal("Subscribe: timed out waiting for message")
	}
}

func TestAddTimeseries(t *testing.T) {
	client, stop := newTestClient(t)
	defer stop()

	ctx := context.Background()
	if err := client.Add(ctx, "instrument:sim960:current", "4.2", time.Now()); err != nil {
		t.Fatalf("Add: %v", err)
	}
}
