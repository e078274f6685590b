// Package o11y abstracts the metrics and tracing surface the client
// core actually exercises (reconnect counters and gauges, per-call
// latency histograms, one span per callService/CLI/action round trip)
// so pkg/rosbridge/client never imports an SDK directly. A nil
// provider on Builder.WithObservability is a no-op, matching the rest
// of the client's optional-dependency pattern.
package o11y

import (
	"context"
)

// MetricsProvider is implemented by pkg/rosbridge/otel.Provider and is
// installed via Builder.WithObservability. Client.onReconnectScheduled
// and Client.traceOperation are its only callers.
type MetricsProvider interface {
	Counter(name string) Counter
	Histogram(name string) Histogram
	Gauge(name string) Gauge
}

// TracingProvider starts one span per traced operation; Client.traceOperation
// is its only caller.
type TracingProvider interface {
	StartSpan(ctx context.Context, name string) (context.Context, Span)
}

// Counter is a monotonically increasing metric, used for
// rosbridge_reconnects_total.
type Counter interface {
	Add(ctx context.Context, value int64, labels ...Label)
}

// Histogram records a distribution, used for the
// rosbridge_<op>_duration_ms series recorded around each service, CLI,
// action, and cancel round trip.
type Histogram interface {
	Record(ctx context.Context, value float64, labels ...Label)
}

// Gauge holds the most recently observed value, used for
// rosbridge_reconnect_attempt.
type Gauge interface {
	Set(ctx context.Context, value float64, labels ...Label)
}

// Span is one traced operation's span.
type Span interface {
	SetAttributes(labels ...Label)
	SetStatus(code SpanStatusCode, description string)
	End()
}

// Label is a metric or span attribute key-value pair.
type Label struct {
	Key   string
	Value string
}

// SpanStatusCode mirrors the OpenTelemetry span status vocabulary
// without requiring callers to import the SDK.
type SpanStatusCode int

const (
	SpanStatusUnset SpanStatusCode = iota
	SpanStatusOK
	SpanStatusError
)
