// Package observe provides the observability primitives of the assistant:
// OpenTelemetry metrics, tracing, trace-aware logging and HTTP middleware.
//
// Metrics go through the OpenTelemetry API and are exported to Prometheus by
// [InitProvider] for scraping on /metrics. Tests build their own [Metrics]
// with [NewMetrics] and a private meter provider.
package observe

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope of every instrument.
const meterName = "github.com/xgamer1399-cpu/Dr.arvin-AI-pro"

// Metrics holds the application's instruments. Safe for concurrent use.
type Metrics struct {
	// Live conversations.
	LiveSessionsActive  metric.Int64UpDownCounter
	LiveSessionDuration metric.Float64Histogram
	LiveChunksSent      metric.Int64Counter // attribute kind: audio|file
	LiveChunksReceived  metric.Int64Counter
	LiveDecodeFailures  metric.Int64Counter
	LiveInterruptions   metric.Int64Counter

	// Model providers, by provider and kind (chat, media, live).
	ProviderRequests metric.Int64Counter // plus attribute status
	ProviderDuration metric.Float64Histogram
	ProviderErrors   metric.Int64Counter

	// HTTP handlers, by method, route and status.
	HTTPRequestDuration metric.Float64Histogram
}

// Histogram bounds in seconds. Provider calls range from fast completions to
// long thinking-budget replies; live conversations up to an hour.
var (
	latencyBuckets = []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60}
	sessionBuckets = []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800, 3600}
)

// instruments creates instruments on one meter and remembers the first
// failure so that construction reads as a flat list.
type instruments struct {
	meter metric.Meter
	errs  []error
}

func (in *instruments) counter(name, desc string) metric.Int64Counter {
	c, err := in.meter.Int64Counter(name, metric.WithDescription(desc))
	in.note(name, err)
	return c
}

func (in *instruments) upDown(name, desc string) metric.Int64UpDownCounter {
	c, err := in.meter.Int64UpDownCounter(name, metric.WithDescription(desc))
	in.note(name, err)
	return c
}

func (in *instruments) seconds(name, desc string, bounds []float64) metric.Float64Histogram {
	opts := []metric.Float64HistogramOption{metric.WithDescription(desc), metric.WithUnit("s")}
	if bounds != nil {
		opts = append(opts, metric.WithExplicitBucketBoundaries(bounds...))
	}
	h, err := in.meter.Float64Histogram(name, opts...)
	in.note(name, err)
	return h
}

func (in *instruments) note(name string, err error) {
	if err != nil {
		in.errs = append(in.errs, fmt.Errorf("observe: instrument %s: %w", name, err))
	}
}

// NewMetrics creates every instrument on mp.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	in := &instruments{meter: mp.Meter(meterName)}
	m := &Metrics{
		LiveSessionsActive:  in.upDown("arvin.live.sessions.active", "Number of running live conversations."),
		LiveSessionDuration: in.seconds("arvin.live.session.duration", "Duration of live conversations.", sessionBuckets),
		LiveChunksSent:      in.counter("arvin.live.chunks.sent", "Realtime inputs sent to the live session by kind."),
		LiveChunksReceived:  in.counter("arvin.live.chunks.received", "Model audio chunks received from the live session."),
		LiveDecodeFailures:  in.counter("arvin.live.decode.failures", "Inbound audio chunks skipped because they could not be decoded."),
		LiveInterruptions:   in.counter("arvin.live.interruptions", "Model turns interrupted by the user speaking."),

		ProviderRequests: in.counter("arvin.provider.requests", "Provider calls by provider, kind and status."),
		ProviderDuration: in.seconds("arvin.provider.duration", "Latency of provider calls.", latencyBuckets),
		ProviderErrors:   in.counter("arvin.provider.errors", "Failed provider calls and failovers by provider and kind."),

		HTTPRequestDuration: in.seconds("arvin.http.request.duration", "HTTP request latency by method, route and status.", nil),
	}
	if err := errors.Join(in.errs...); err != nil {
		return nil, err
	}
	return m, nil
}

// DefaultMetrics returns a process-wide [Metrics] built on the global meter
// provider at first use. Install the provider with [InitProvider] first.
var DefaultMetrics = sync.OnceValue(func() *Metrics {
	m, err := NewMetrics(otel.GetMeterProvider())
	if err != nil {
		panic(err)
	}
	return m
})

// RecordProviderRequest records one provider call with its outcome and
// latency.
func (m *Metrics) RecordProviderRequest(ctx context.Context, provider, kind, status string, d time.Duration) {
	who := attribute.NewSet(attribute.String("provider", provider), attribute.String("kind", kind))
	m.ProviderRequests.Add(ctx, 1, metric.WithAttributeSet(who), metric.WithAttributes(attribute.String("status", status)))
	m.ProviderDuration.Record(ctx, d.Seconds(), metric.WithAttributeSet(who))
}

// RecordProviderError counts a failed call or a failover away from provider.
func (m *Metrics) RecordProviderError(ctx context.Context, provider, kind string) {
	m.ProviderErrors.Add(ctx, 1, metric.WithAttributes(
		attribute.String("provider", provider),
		attribute.String("kind", kind),
	))
}

// LiveStarted marks a live conversation as running.
func (m *Metrics) LiveStarted(ctx context.Context) {
	m.LiveSessionsActive.Add(ctx, 1)
}

// LiveEnded records the end of a live conversation that ran for d.
func (m *Metrics) LiveEnded(ctx context.Context, d time.Duration) {
	m.LiveSessionsActive.Add(ctx, -1)
	m.LiveSessionDuration.Record(ctx, d.Seconds())
}

// RecordLiveSent counts one realtime input of the given kind.
func (m *Metrics) RecordLiveSent(ctx context.Context, kind string) {
	m.LiveChunksSent.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", kind)))
}
