// SPDX-License-Identifier: BSD-3-Clause

// Package telemetry wires up tracer and meter handles shared by every
// package in this module. No OTLP exporter is configured by default: spans
// and instruments are generated so the code paths that record them are
// exercised, but DefaultSetup alone produces a standalone binary with
// nothing dialing out. A real collector is one Setup call with exporter
// wiring away from being attached (left out here because nothing in this
// repo retrieves that piece of the teacher's stack, see DESIGN.md).
package telemetry

import (
	"context"
	"errors"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

// Provider owns the tracer and meter providers for this process.
type Provider struct {
	config *Config
	tp     *sdktrace.TracerProvider
	mp     *sdkmetric.MeterProvider
}

// NewProvider builds a Provider from the given options, each backed by its
// own SDK provider with no exporter attached.
func NewProvider(opts ...Option) (*Provider, error) {
	config := DefaultConfig()
	for _, opt := range opts {
		opt(config)
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}

	res := resource.NewSchemaless(
		semconv.ServiceName(config.serviceName),
		semconv.ServiceVersion(config.serviceVersion),
	)

	p := &Provider{config: config}

	if config.enableTraces {
		p.tp = sdktrace.NewTracerProvider(
			sdktrace.WithResource(res),
			sdktrace.WithSampler(sdktrace.TraceIDRatioBased(config.samplingRatio)),
		)
	}
	if config.enableMetrics {
		p.mp = sdkmetric.NewMeterProvider(sdkmetric.WithResource(res))
	}

	return p, nil
}

// Tracer returns a named tracer, falling back to a no-op tracer when
// tracing was disabled.
func (p *Provider) Tracer(name string) trace.Tracer {
	if p.tp == nil {
		return otel.GetTracerProvider().Tracer(name)
	}
	return p.tp.Tracer(name)
}

// Meter returns a named meter, falling back to a no-op meter when metrics
// were disabled.
func (p *Provider) Meter(name string) metric.Meter {
	if p.mp == nil {
		return otel.GetMeterProvider().Meter(name)
	}
	return p.mp.Meter(name)
}

// Shutdown flushes and releases the underlying SDK providers.
func (p *Provider) Shutdown(ctx context.Context) error {
	var errs []error
	if p.tp != nil {
		if err := p.tp.Shutdown(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if p.mp != nil {
		if err := p.mp.Shutdown(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return errors.Join(append([]error{ErrShutdownFailed}, errs...)...)
	}
	return nil
}

var (
	setupMutex     sync.Mutex
	globalProvider *Provider
	defaultOnce    sync.Once
)

// DefaultSetup initializes telemetry with the default configuration. It is
// safe to call multiple times; only the first call takes effect.
func DefaultSetup() {
	defaultOnce.Do(func() {
		_, _ = Setup(context.Background())
	})
}

// Setup installs a new global Provider built from opts and returns a
// shutdown function. Calling Setup again after a prior successful call
// replaces the global provider, shutting the old one down first.
func Setup(ctx context.Context, opts ...Option) (func(context.Context) error, error) {
	setupMutex.Lock()
	defer setupMutex.Unlock()

	provider, err := NewProvider(opts...)
	if err != nil {
		return nil, err
	}

	if globalProvider != nil {
		_ = globalProvider.Shutdown(ctx)
	}
	globalProvider = provider
	if provider.tp != nil {
		otel.SetTracerProvider(provider.tp)
	}
	if provider.mp != nil {
		otel.SetMeterProvider(provider.mp)
	}

	return func(shutdownCtx context.Context) error {
		setupMutex.Lock()
		defer setupMutex.Unlock()
		if globalProvider != provider {
			return nil
		}
		err := provider.Shutdown(shutdownCtx)
		globalProvider = nil
		return err
	}, nil
}

// GetTracer returns a tracer from the global provider, initializing it with
// defaults on first use.
func GetTracer(name string) trace.Tracer {
	setupMutex.Lock()
	if globalProvider == nil {
		setupMutex.Unlock()
		DefaultSetup()
		setupMutex.Lock()
	}
	defer setupMutex.Unlock()
	if globalProvider == nil {
		return otel.GetTracerProvider().Tracer(name)
	}
	return globalProvider.Tracer(name)
}

// GetMeter returns a meter from the global provider, initializing it with
// defaults on first use.
func GetMeter(name string) metric.Meter {
	setupMutex.Lock()
	if globalProvider == nil {
		setupMutex.Unlock()
		DefaultSetup()
		setupMutex.Lock()
	}
	defer setupMutex.Unlock()
	if globalProvider == nil {
		return otel.GetMeterProvider().Meter(name)
	}
	return globalProvider.Meter(name)
}

// IsInitialized reports whether a global provider has been installed.
func IsInitialized() bool {
	setupMutex.Lock()
	defer setupMutex.Unlock()
	return globalProvider != nil
}
