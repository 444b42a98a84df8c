// Package observe provides application-wide observability primitives for
// NewsCast: OpenTelemetry metrics, distributed tracing, structured logging,
// and HTTP middleware that ties them together.
//
// Metrics are recorded through the OpenTelemetry Metrics API. A Prometheus
// exporter bridge is available via [InitProvider] so that metrics can still be
// scraped via the standard /metrics endpoint. A package-level default
// [Metrics] instance ([DefaultMetrics]) is provided for convenience; tests
// should use [NewMetrics] with a custom [metric.MeterProvider] to avoid
// cross-test pollution.
package observe

import (
	"context"
	"sync"
	"sync/atomic"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all NewsCast metrics.
const meterName = "github.com/MrWong99/newscast"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use: the underlying OTel types handle
// their own synchronisation.
//
// Alongside the OTel instruments, Metrics keeps a handful of process-local
// totals so the admin dashboard can show real numbers without scraping
// Prometheus. See [Metrics.Stats].
type Metrics struct {
	// --- Provider calls ---

	// ProviderDuration tracks remote provider latency. Use with attributes:
	//   attribute.String("provider", ...), attribute.String("kind", ...)
	ProviderDuration metric.Float64Histogram

	// ProviderRequests counts provider API calls. Use with attributes:
	//   attribute.String("provider", ...), attribute.String("kind", ...), attribute.String("status", ...)
	ProviderRequests metric.Int64Counter

	// ProviderErrors counts provider errors. Use with attributes:
	//   attribute.String("provider", ...), attribute.String("kind", ...)
	ProviderErrors metric.Int64Counter

	// CircuitTransitions counts circuit breaker state changes. Use with
	// attribute.String("breaker", ...), attribute.String("to", ...).
	CircuitTransitions metric.Int64Counter

	// --- Generation pipeline ---

	// GenerationDuration tracks the latency of each pipeline stage. Use with
	// attribute.String("stage", ...).
	GenerationDuration metric.Float64Histogram

	// GenerationFailures counts failed generations by the stage that failed.
	GenerationFailures metric.Int64Counter

	// --- Playback ---

	// PlaybackSessions counts Play transitions.
	PlaybackSessions metric.Int64Counter

	// PlaybackAutoStops counts sessions that ran to the end of the asset.
	PlaybackAutoStops metric.Int64Counter

	// VisualizationSamples counts visualization reads.
	VisualizationSamples metric.Int64Counter

	// --- Voice lab ---

	// VoiceClones counts voices produced by the voice lab.
	VoiceClones metric.Int64Counter

	// --- Gauges ---

	// ActiveListeners tracks the number of connected stream listeners.
	ActiveListeners metric.Int64UpDownCounter

	// --- HTTP middleware ---

	// HTTPRequestDuration tracks HTTP request processing time. Use with attributes:
	//   attribute.String("method", ...), attribute.String("path", ...)
	HTTPRequestDuration metric.Float64Histogram

	totals totals
}

// totals mirrors a subset of the instruments as plain counters.
type totals struct {
	providerRequests atomic.Int64
	providerErrors   atomic.Int64
	generations      atomic.Int64
	failures         atomic.Int64
	playbacks        atomic.Int64
	clones           atomic.Int64
	listeners        atomic.Int64
	httpRequests     atomic.Int64
	trips            atomic.Int64
}

// Stats is a point-in-time copy of the process-local totals.
type Stats struct {
	ProviderRequests int64 `json:"provider_requests"`
	ProviderErrors   int64 `json:"provider_errors"`
	Generations      int64 `json:"generations"`
	Failures         int64 `json:"generation_failures"`
	Playbacks        int64 `json:"playback_sessions"`
	Clones           int64 `json:"voice_clones"`
	Listeners        int64 `json:"active_listeners"`
	HTTPRequests     int64 `json:"http_requests"`
	CircuitTrips     int64 `json:"circuit_trips"`
}

// latencyBuckets defines histogram bucket boundaries (in seconds) suited to
// generative API calls, which range from sub-second to tens of seconds.
var latencyBuckets = []float64{
	0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20, 40, 60,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	// Histograms.
	if met.ProviderDuration, err = m.Float64Histogram("newscast.provider.duration",
		metric.WithDescription("Latency of remote provider calls by provider and kind."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.GenerationDuration, err = m.Float64Histogram("newscast.generation.duration",
		metric.WithDescription("Latency of each broadcast generation stage."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}

	// Counters.
	if met.ProviderRequests, err = m.Int64Counter("newscast.provider.requests",
		metric.WithDescription("Total provider API requests by provider, kind, and status."),
	); err != nil {
		return nil, err
	}
	if met.ProviderErrors, err = m.Int64Counter("newscast.provider.errors",
		metric.WithDescription("Total provider errors by provider and kind."),
	); err != nil {
		return nil, err
	}
	if met.CircuitTransitions, err = m.Int64Counter("newscast.provider.circuit_transitions",
		metric.WithDescription("Total circuit breaker state changes by breaker and target state."),
	); err != nil {
		return nil, err
	}
	if met.GenerationFailures, err = m.Int64Counter("newscast.generation.failures",
		metric.WithDescription("Total failed generations by failing stage."),
	); err != nil {
		return nil, err
	}
	if met.PlaybackSessions, err = m.Int64Counter("newscast.playback.sessions",
		metric.WithDescription("Total playback sessions started."),
	); err != nil {
		return nil, err
	}
	if met.PlaybackAutoStops, err = m.Int64Counter("newscast.playback.auto_stops",
		metric.WithDescription("Total playback sessions that reached the end of the broadcast."),
	); err != nil {
		return nil, err
	}
	if met.VisualizationSamples, err = m.Int64Counter("newscast.playback.visualization_samples",
		metric.WithDescription("Total visualization samples served."),
	); err != nil {
		return nil, err
	}
	if met.VoiceClones, err = m.Int64Counter("newscast.voicelab.clones",
		metric.WithDescription("Total voices created by the voice lab."),
	); err != nil {
		return nil, err
	}

	// Gauges (UpDownCounters).
	if met.ActiveListeners, err = m.Int64UpDownCounter("newscast.stream.active_listeners",
		metric.WithDescription("Number of connected playback stream listeners."),
	); err != nil {
		return nil, err
	}

	// HTTP middleware histogram.
	if met.HTTPRequestDuration, err = m.Float64Histogram("newscast.http.request.duration",
		metric.WithDescription("HTTP request latency by method and path."),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}

	return met, nil
}

// defaultMetrics is the lazily-initialised package-level Metrics instance.
var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level [Metrics] instance, creating it on
// first call using [otel.GetMeterProvider]. Subsequent calls return the same
// pointer. Panics if instrument creation fails (should not happen with the
// global provider).
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		var err error
		defaultMetrics, err = NewMetrics(otel.GetMeterProvider())
		if err != nil {
			panic("observe: failed to create default metrics: " + err.Error())
		}
	})
	return defaultMetrics
}

// Attr is a convenience alias for [attribute.String] to reduce verbosity at
// call sites.
func Attr(key, value string) attribute.KeyValue {
	return attribute.String(key, value)
}

// RecordProviderRequest is a convenience method that records a provider
// request counter increment with the standard attribute set.
func (m *Metrics) RecordProviderRequest(ctx context.Context, provider, kind, status string) {
	m.totals.providerRequests.Add(1)
	m.ProviderRequests.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("provider", provider),
			attribute.String("kind", kind),
			attribute.String("status", status),
		),
	)
}

// RecordProviderError is a convenience method that records a provider error
// counter increment.
func (m *Metrics) RecordProviderError(ctx context.Context, provider, kind string) {
	m.totals.providerErrors.Add(1)
	m.ProviderErrors.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("provider", provider),
			attribute.String("kind", kind),
		),
	)
}

// RecordProviderDuration records the latency of one provider call.
func (m *Metrics) RecordProviderDuration(ctx context.Context, provider, kind string, seconds float64) {
	m.ProviderDuration.Record(ctx, seconds,
		metric.WithAttributes(
			attribute.String("provider", provider),
			attribute.String("kind", kind),
		),
	)
}

// RecordStage records the latency of one generation stage.
func (m *Metrics) RecordStage(ctx context.Context, stage string, seconds float64) {
	m.GenerationDuration.Record(ctx, seconds,
		metric.WithAttributes(attribute.String("stage", stage)),
	)
}

// RecordGeneration counts one finished generation. An empty failedStage
// means success.
func (m *Metrics) RecordGeneration(ctx context.Context, failedStage string) {
	m.totals.generations.Add(1)
	if failedStage == "" {
		return
	}
	m.totals.failures.Add(1)
	m.GenerationFailures.Add(ctx, 1,
		metric.WithAttributes(attribute.String("stage", failedStage)),
	)
}

// RecordCircuitTransition counts one breaker state change. Transitions to
// "open" also count as a trip in [Stats].
func (m *Metrics) RecordCircuitTransition(ctx context.Context, breaker, to string) {
	if to == "open" {
		m.totals.trips.Add(1)
	}
	m.CircuitTransitions.Add(ctx, 1, metric.WithAttributes(
		attribute.String("breaker", breaker),
		attribute.String("to", to),
	))
}

// RecordPlaybackSession counts one Play transition.
func (m *Metrics) RecordPlaybackSession(ctx context.Context) {
	m.totals.playbacks.Add(1)
	m.PlaybackSessions.Add(ctx, 1)
}

// RecordAutoStop counts one session that ran to the end.
func (m *Metrics) RecordAutoStop(ctx context.Context) {
	m.PlaybackAutoStops.Add(ctx, 1)
}

// RecordVisualizationSample counts one visualization read.
func (m *Metrics) RecordVisualizationSample(ctx context.Context) {
	m.VisualizationSamples.Add(ctx, 1)
}

// RecordVoiceClone counts one voice created by the lab. trainer names the
// trainer implementation.
func (m *Metrics) RecordVoiceClone(ctx context.Context, trainer string) {
	m.totals.clones.Add(1)
	m.VoiceClones.Add(ctx, 1, metric.WithAttributes(attribute.String("trainer", trainer)))
}

// ListenerJoined increments the active listener gauge.
func (m *Metrics) ListenerJoined(ctx context.Context) {
	m.totals.listeners.Add(1)
	m.ActiveListeners.Add(ctx, 1)
}

// ListenerLeft decrements the active listener gauge.
func (m *Metrics) ListenerLeft(ctx context.Context) {
	m.totals.listeners.Add(-1)
	m.ActiveListeners.Add(ctx, -1)
}

// Stats returns a copy of the process-local totals.
func (m *Metrics) Stats() Stats {
	return Stats{
		ProviderRequests: m.totals.providerRequests.Load(),
		ProviderErrors:   m.totals.providerErrors.Load(),
		Generations:      m.totals.generations.Load(),
		Failures:         m.totals.failures.Load(),
		Playbacks:        m.totals.playbacks.Load(),
		Clones:           m.totals.clones.Load(),
		Listeners:        m.totals.listeners.Load(),
		HTTPRequests:     m.totals.httpRequests.Load(),
		CircuitTrips:     m.totals.trips.Load(),
	}
}
