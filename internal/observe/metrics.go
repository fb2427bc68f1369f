// Package observe provides application-wide observability primitives for
// Ordervox: OpenTelemetry metrics, distributed tracing, structured logging,
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

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all Ordervox metrics.
const meterName = "github.com/ordervox/ordervox"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use — the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// --- Latency histograms per pipeline stage ---

	// STTDuration tracks speech-to-text transcription latency.
	STTDuration metric.Float64Histogram

	// ClassifyDuration tracks intent classification latency.
	ClassifyDuration metric.Float64Histogram

	// ParseDuration tracks command parsing latency, including the menu
	// resolution tool loop.
	ParseDuration metric.Float64Histogram

	// ExecuteDuration tracks command batch execution latency.
	ExecuteDuration metric.Float64Histogram

	// TTSDuration tracks text-to-speech synthesis latency.
	TTSDuration metric.Float64Histogram

	// TurnDuration tracks end-to-end audio turn latency.
	TurnDuration metric.Float64Histogram

	// --- Counters ---

	// Turns counts processed turns. Use with attributes:
	//   attribute.String("intent", ...), attribute.String("outcome", ...)
	Turns metric.Int64Counter

	// Commands counts executed commands. Use with attributes:
	//   attribute.String("intent", ...), attribute.String("status", ...)
	Commands metric.Int64Counter

	// SafetyBlocks counts transcripts rejected by the safety gate.
	SafetyBlocks metric.Int64Counter

	// VoiceCacheHits counts TTS cache lookups. Use with attribute:
	//   attribute.String("source", "index"|"store"|"synthesized")
	VoiceCacheHits metric.Int64Counter

	// ProviderRequests counts provider API calls. Use with attributes:
	//   attribute.String("provider", ...), attribute.String("kind", ...), attribute.String("status", ...)
	ProviderRequests metric.Int64Counter

	// ProviderErrors counts provider errors. Use with attributes:
	//   attribute.String("provider", ...), attribute.String("kind", ...)
	ProviderErrors metric.Int64Counter

	// --- Gauges ---

	// ActiveSessions tracks the number of live drive-thru sessions.
	ActiveSessions metric.Int64UpDownCounter

	// --- HTTP middleware ---

	// HTTPRequestDuration tracks HTTP request processing time. Use with attributes:
	//   attribute.String("method", ...), attribute.String("path", ...)
	HTTPRequestDuration metric.Float64Histogram
}

// latencyBuckets defines histogram bucket boundaries (in seconds) optimised
// for voice-pipeline latencies.
var latencyBuckets = []float64{
	0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	histogram := func(name, desc string) metric.Float64Histogram {
		if err != nil {
			return nil
		}
		var h metric.Float64Histogram
		h, err = m.Float64Histogram(name,
			metric.WithDescription(desc),
			metric.WithUnit("s"),
			metric.WithExplicitBucketBoundaries(latencyBuckets...),
		)
		return h
	}

	met.STTDuration = histogram("ordervox.stt.duration", "Latency of speech-to-text transcription.")
	met.ClassifyDuration = histogram("ordervox.classify.duration", "Latency of intent classification.")
	met.ParseDuration = histogram("ordervox.parse.duration", "Latency of command parsing and menu resolution.")
	met.ExecuteDuration = histogram("ordervox.execute.duration", "Latency of command batch execution.")
	met.TTSDuration = histogram("ordervox.tts.duration", "Latency of text-to-speech synthesis.")
	met.TurnDuration = histogram("ordervox.turn.duration", "End-to-end audio turn latency.")
	if err != nil {
		return nil, err
	}

	if met.Turns, err = m.Int64Counter("ordervox.turns",
		metric.WithDescription("Total processed turns by intent and batch outcome."),
	); err != nil {
		return nil, err
	}
	if met.Commands, err = m.Int64Counter("ordervox.commands",
		metric.WithDescription("Total executed commands by intent and result status."),
	); err != nil {
		return nil, err
	}
	if met.SafetyBlocks, err = m.Int64Counter("ordervox.safety.blocks",
		metric.WithDescription("Total transcripts blocked by the safety gate."),
	); err != nil {
		return nil, err
	}
	if met.VoiceCacheHits, err = m.Int64Counter("ordervox.voice.cache_lookups",
		metric.WithDescription("Total TTS cache lookups by source."),
	); err != nil {
		return nil, err
	}
	if met.ProviderRequests, err = m.Int64Counter("ordervox.provider.requests",
		metric.WithDescription("Total provider API requests by provider, kind, and status."),
	); err != nil {
		return nil, err
	}
	if met.ProviderErrors, err = m.Int64Counter("ordervox.provider.errors",
		metric.WithDescription("Total provider errors by provider and kind."),
	); err != nil {
		return nil, err
	}

	if met.ActiveSessions, err = m.Int64UpDownCounter("ordervox.active_sessions",
		metric.WithDescription("Number of live drive-thru sessions."),
	); err != nil {
		return nil, err
	}

	if met.HTTPRequestDuration, err = m.Float64Histogram("ordervox.http.request.duration",
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

// RecordTurn records one processed turn with its intent and batch outcome.
func (m *Metrics) RecordTurn(ctx context.Context, intent, outcome string) {
	m.Turns.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("intent", intent),
			attribute.String("outcome", outcome),
		),
	)
}

// RecordCommand records one executed command with its intent and result
// status.
func (m *Metrics) RecordCommand(ctx context.Context, intent, status string) {
	m.Commands.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("intent", intent),
			attribute.String("status", status),
		),
	)
}

// RecordProviderRequest is a convenience method that records a provider
// request counter increment with the standard attribute set.
func (m *Metrics) RecordProviderRequest(ctx context.Context, provider, kind, status string) {
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
	m.ProviderErrors.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("provider", provider),
			attribute.String("kind", kind),
		),
	)
}
