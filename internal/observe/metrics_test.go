package observe

import (
	"context"
	"testing"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

// newTestMetrics returns a Metrics instance backed by a ManualReader for
// programmatic metric inspection.
func newTestMetrics(t *testing.T) (*Metrics, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })

	m, err := NewMetrics(mp)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	return m, reader
}

// collect gathers all metric data from the reader.
func collect(t *testing.T, reader *sdkmetric.ManualReader) metricdata.ResourceMetrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect: %v", err)
	}
	return rm
}

// findMetric searches for a metric by name across all scope metrics.
func findMetric(rm metricdata.ResourceMetrics, name string) *metricdata.Metrics {
	for _, sm := range rm.ScopeMetrics {
		for i := range sm.Metrics {
			if sm.Metrics[i].Name == name {
				return &sm.Metrics[i]
			}
		}
	}
	return nil
}

func TestNewMetrics_CreatesWithoutError(t *testing.T) {
	m, _ := newTestMetrics(t)
	if m == nil {
		t.Fatal("NewMetrics returned nil")
	}
}

func TestHistogramObservation(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	histograms := []struct {
		name string
		h    metric.Float64Histogram
	}{
		{"newscast.provider.duration", m.ProviderDuration},
		{"newscast.generation.duration", m.GenerationDuration},
	}

	for _, tc := range histograms {
		tc.h.Record(ctx, 0.123)
		tc.h.Record(ctx, 0.456)
	}

	rm := collect(t, reader)

	for _, tc := range histograms {
		t.Run(tc.name, func(t *testing.T) {
			met := findMetric(rm, tc.name)
			if met == nil {
				t.Fatalf("metric %q not found", tc.name)
			}
			hist, ok := met.Data.(metricdata.Histogram[float64])
			if !ok {
				t.Fatalf("metric %q is not a histogram", tc.name)
			}
			if len(hist.DataPoints) == 0 {
				t.Fatalf("metric %q has no data points", tc.name)
			}
			if got := hist.DataPoints[0].Count; got != 2 {
				t.Errorf("sample count = %d, want 2", got)
			}
		})
	}
}

// sumFor returns the value of the data point of the named sum whose
// attributes include key=value. An empty key matches the first point.
func sumFor(t *testing.T, rm metricdata.ResourceMetrics, name, key, value string) int64 {
	t.Helper()
	met := findMetric(rm, name)
	if met == nil {
		t.Fatalf("metric %q not found", name)
	}
	sum, ok := met.Data.(metricdata.Sum[int64])
	if !ok {
		t.Fatalf("metric %q is not a sum", name)
	}
	for _, dp := range sum.DataPoints {
		if key == "" {
			return dp.Value
		}
		for _, kv := range dp.Attributes.ToSlice() {
			if string(kv.Key) == key && kv.Value.AsString() == value {
				return dp.Value
			}
		}
	}
	t.Fatalf("metric %q: no data point with %s=%s", name, key, value)
	return 0
}

func TestCounterIncrement(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.RecordProviderRequest(ctx, "gemini", "llm", "ok")
	m.RecordProviderRequest(ctx, "gemini", "llm", "ok")
	m.RecordProviderRequest(ctx, "gemini", "llm", "error")

	rm := collect(t, reader)
	if got := sumFor(t, rm, "newscast.provider.requests", "status", "ok"); got != 2 {
		t.Errorf("ok requests = %d, want 2", got)
	}
	if got := sumFor(t, rm, "newscast.provider.requests", "status", "error"); got != 1 {
		t.Errorf("error requests = %d, want 1", got)
	}
}

func TestProviderErrorsCounter(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.RecordProviderError(ctx, "openai", "tts")

	rm := collect(t, reader)
	if got := sumFor(t, rm, "newscast.provider.errors", "kind", "tts"); got != 1 {
		t.Errorf("counter value = %d, want 1", got)
	}
}

func TestCircuitTransitions(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.RecordCircuitTransition(ctx, "tts/gemini", "open")
	m.RecordCircuitTransition(ctx, "tts/gemini", "half-open")
	m.RecordCircuitTransition(ctx, "tts/gemini", "open")
	m.RecordCircuitTransition(ctx, "tts/gemini", "closed")

	rm := collect(t, reader)
	if got := sumFor(t, rm, "newscast.provider.circuit_transitions", "to", "open"); got != 2 {
		t.Errorf("open transitions = %d, want 2", got)
	}
	if got := m.Stats().CircuitTrips; got != 2 {
		t.Errorf("Stats().CircuitTrips = %d, want 2", got)
	}
}

func TestGenerationFailuresByStage(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.RecordGeneration(ctx, "")
	m.RecordGeneration(ctx, "summarize")
	m.RecordGeneration(ctx, "summarize")
	m.RecordGeneration(ctx, "speech")

	rm := collect(t, reader)
	if got := sumFor(t, rm, "newscast.generation.failures", "stage", "summarize"); got != 2 {
		t.Errorf("summarize failures = %d, want 2", got)
	}
	if got := sumFor(t, rm, "newscast.generation.failures", "stage", "speech"); got != 1 {
		t.Errorf("speech failures = %d, want 1", got)
	}
}

func TestPlaybackAndVoiceLabCounters(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.RecordPlaybackSession(ctx)
	m.RecordPlaybackSession(ctx)
	m.RecordAutoStop(ctx)
	m.RecordVisualizationSample(ctx)
	m.RecordVoiceClone(ctx, "simulated")

	rm := collect(t, reader)
	checks := []struct {
		name string
		want int64
	}{
		{"newscast.playback.sessions", 2},
		{"newscast.playback.auto_stops", 1},
		{"newscast.playback.visualization_samples", 1},
	}
	for _, tc := range checks {
		if got := sumFor(t, rm, tc.name, "", ""); got != tc.want {
			t.Errorf("%s = %d, want %d", tc.name, got, tc.want)
		}
	}
	if got := sumFor(t, rm, "newscast.voicelab.clones", "trainer", "simulated"); got != 1 {
		t.Errorf("clones = %d, want 1", got)
	}
}

func TestActiveListenersGauge(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.ListenerJoined(ctx)
	m.ListenerJoined(ctx)
	m.ListenerJoined(ctx)
	m.ListenerLeft(ctx)

	rm := collect(t, reader)
	if got := sumFor(t, rm, "newscast.stream.active_listeners", "", ""); got != 2 {
		t.Errorf("gauge value = %d, want 2", got)
	}
}

func TestStats_MirrorsCounters(t *testing.T) {
	m, _ := newTestMetrics(t)
	ctx := context.Background()

	m.RecordProviderRequest(ctx, "gemini", "tts", "ok")
	m.RecordProviderError(ctx, "gemini", "tts")
	m.RecordGeneration(ctx, "")
	m.RecordGeneration(ctx, "cover")
	m.RecordPlaybackSession(ctx)
	m.RecordVoiceClone(ctx, "provider")
	m.ListenerJoined(ctx)

	got := m.Stats()
	want := Stats{
		ProviderRequests: 1,
		ProviderErrors:   1,
		Generations:      2,
		Failures:         1,
		Playbacks:        1,
		Clones:           1,
		Listeners:        1,
	}
	if got != want {
		t.Errorf("Stats() = %+v, want %+v", got, want)
	}
}

func TestHTTPRequestDuration(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.HTTPRequestDuration.Record(ctx, 0.05,
		metric.WithAttributes(
			attribute.String("method", "GET"),
			attribute.String("path", "/healthz"),
		),
	)

	rm := collect(t, reader)
	met := findMetric(rm, "newscast.http.request.duration")
	if met == nil {
		t.Fatal("metric not found")
	}
	hist, ok := met.Data.(metricdata.Histogram[float64])
	if !ok {
		t.Fatal("metric is not a histogram")
	}
	if len(hist.DataPoints) == 0 {
		t.Fatal("no data points")
	}
	if got := hist.DataPoints[0].Count; got != 1 {
		t.Errorf("sample count = %d, want 1", got)
	}
}

func TestDefaultMetrics_ReturnsSameInstance(t *testing.T) {
	// DefaultMetrics uses the global OTel provider so we just check
	// that repeated calls return the same pointer.
	a := DefaultMetrics()
	b := DefaultMetrics()
	if a != b {
		t.Error("DefaultMetrics returned different pointers")
	}
}
