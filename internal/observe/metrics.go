// Package observe provides application-wide observability primitives for
// charterline: OpenTelemetry metrics, distributed tracing, structured logging,
// and HTTP middleware that ties them together.
//
// Metrics are recorded through the OpenTelemetry Metrics API. A Prometheus
// exporter bridge is available via [InitProvider] so that metrics can be
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

// meterName is the instrumentation scope name used for all charterline
// metrics.
const meterName = "github.com/MrWong99/charterline"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use; the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// --- Latency histograms ---

	// TranscriptDuration tracks how long the controller spends processing one
	// transcript line.
	TranscriptDuration metric.Float64Histogram

	// --- Counters ---

	// Transcripts counts processed transcript lines. Use with attribute:
	//   attribute.String("kind", ...)
	Transcripts metric.Int64Counter

	// Captures counts finalised field values. Use with attributes:
	//   attribute.String("field", ...), attribute.String("source", ...)
	Captures metric.Int64Counter

	// Navigations counts executed navigation commands. Use with attribute:
	//   attribute.String("command", ...)
	Navigations metric.Int64Counter

	// Prompts counts messages sent to the spoken agent. Use with attribute:
	//   attribute.String("kind", ...)
	Prompts metric.Int64Counter

	// ExternalEdits counts field values changed outside the voice session.
	ExternalEdits metric.Int64Counter

	// --- Error counters ---

	// SendFailures counts transport send failures. Use with attribute:
	//   attribute.String("message", ...)
	SendFailures metric.Int64Counter

	// --- Gauges ---

	// ActiveSessions tracks the number of initialised voice sessions.
	ActiveSessions metric.Int64UpDownCounter

	// --- HTTP middleware ---

	// HTTPRequestDuration tracks HTTP request processing time. Use with attributes:
	//   attribute.String("method", ...), attribute.String("path", ...)
	HTTPRequestDuration metric.Float64Histogram
}

// latencyBuckets defines histogram bucket boundaries (in seconds) for
// in-process transcript handling, which is typically sub-millisecond.
var latencyBuckets = []float64{
	0.0001, 0.00025, 0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	// Histograms.
	if met.TranscriptDuration, err = m.Float64Histogram("charterline.transcript.duration",
		metric.WithDescription("Time spent processing one transcript line."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}

	// Counters.
	if met.Transcripts, err = m.Int64Counter("charterline.transcripts",
		metric.WithDescription("Total transcript lines by classification kind."),
	); err != nil {
		return nil, err
	}
	if met.Captures, err = m.Int64Counter("charterline.captures",
		metric.WithDescription("Total captured field values by field and source."),
	); err != nil {
		return nil, err
	}
	if met.Navigations, err = m.Int64Counter("charterline.navigations",
		metric.WithDescription("Total navigation commands by command."),
	); err != nil {
		return nil, err
	}
	if met.Prompts, err = m.Int64Counter("charterline.prompts",
		metric.WithDescription("Total agent prompts by kind."),
	); err != nil {
		return nil, err
	}
	if met.ExternalEdits, err = m.Int64Counter("charterline.external_edits",
		metric.WithDescription("Total field edits made outside the voice session."),
	); err != nil {
		return nil, err
	}

	// Error counters.
	if met.SendFailures, err = m.Int64Counter("charterline.send.failures",
		metric.WithDescription("Total transport send failures by message type."),
	); err != nil {
		return nil, err
	}

	// Gauges (UpDownCounters).
	if met.ActiveSessions, err = m.Int64UpDownCounter("charterline.active_sessions",
		metric.WithDescription("Number of initialised voice capture sessions."),
	); err != nil {
		return nil, err
	}

	// HTTP middleware histogram.
	if met.HTTPRequestDuration, err = m.Float64Histogram("charterline.http.request.duration",
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

// RecordTranscript records one processed transcript line and its duration.
func (m *Metrics) RecordTranscript(ctx context.Context, kind string, seconds float64) {
	attrs := metric.WithAttributes(attribute.String("kind", kind))
	m.Transcripts.Add(ctx, 1, attrs)
	m.TranscriptDuration.Record(ctx, seconds, attrs)
}

// RecordCapture records a finalised field value. source is the path that
// produced it (e.g. "value", "correction", "rewrite", "raw_fallback").
func (m *Metrics) RecordCapture(ctx context.Context, field, source string) {
	m.Captures.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("field", field),
			attribute.String("source", source),
		),
	)
}

// RecordNavigation records an executed navigation command.
func (m *Metrics) RecordNavigation(ctx context.Context, command string) {
	m.Navigations.Add(ctx, 1, metric.WithAttributes(attribute.String("command", command)))
}

// RecordPrompt records a prompt sent to the agent.
func (m *Metrics) RecordPrompt(ctx context.Context, kind string) {
	m.Prompts.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", kind)))
}

// RecordExternalEdit records a field edit made outside the session.
func (m *Metrics) RecordExternalEdit(ctx context.Context, field string) {
	m.ExternalEdits.Add(ctx, 1, metric.WithAttributes(attribute.String("field", field)))
}

// RecordSendFailure records a failed transport send.
func (m *Metrics) RecordSendFailure(ctx context.Context, message string) {
	m.SendFailures.Add(ctx, 1, metric.WithAttributes(attribute.String("message", message)))
}
