// Package telemetry provides the default Tracer/Meter capability handles
// (model.Tracer / model.Meter) consumed by MiddlewarePipeline (C4) and
// MonitoringMiddleware (C10). External callers may inject their own
// implementation of these interfaces (spec §1: tracer/meter are an external
// collaborator); this package supplies a Prometheus-backed default so the
// gateway is self-sufficient out of the box, promoting prometheus/
// client_golang from an indirect (controller-runtime) dependency to a direct
// one actually exercised by the core.
package telemetry

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/meshgate/mcp-gateway/internal/model"
)

// PromMeter is a model.Meter backed by Prometheus client_golang vectors.
type PromMeter struct {
	durations *prometheus.HistogramVec
	counters  *prometheus.CounterVec
}

// NewPromMeter registers the gateway's histogram/counter vectors on reg.
func NewPromMeter(reg prometheus.Registerer) *PromMeter {
	m := &PromMeter{
		durations: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "mcp_gateway",
			Name:      "call_duration_ms",
			Help:      "Duration of upstream MCP calls in milliseconds.",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 16),
		}, []string{"metric", "connection_id", "tool_name"}),
		counters: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mcp_gateway",
			Name:      "call_total",
			Help:      "Count of upstream MCP calls by outcome.",
		}, []string{"metric", "connection_id", "tool_name"}),
	}
	reg.MustRegister(m.durations, m.counters)
	return m
}

func (m *PromMeter) RecordDuration(name string, durationMS float64, attrs map[string]string) {
	m.durations.With(labelsFor(name, attrs)).Observe(durationMS)
}

func (m *PromMeter) IncrCounter(name string, attrs map[string]string) {
	m.counters.With(labelsFor(name, attrs)).Inc()
}

func labelsFor(name string, attrs map[string]string) prometheus.Labels {
	return prometheus.Labels{
		"metric":        name,
		"connection_id": attrs["connection.id"],
		"tool_name":     attrs["tool.name"],
	}
}

// NoopTracer satisfies model.Tracer without recording anything; used when no
// tracer is injected. Spans still End correctly so callers never branch on
// whether tracing is enabled.
type NoopTracer struct{}

func (NoopTracer) StartSpan(ctx context.Context, _ string, _ map[string]string) (context.Context, model.Span) {
	return ctx, noopSpan{}
}

type noopSpan struct{}

func (noopSpan) End(error) {}

// SimpleTracer is a minimal span recorder usable without an external tracing
// backend: each span stamps its start time and, on End, passes name, attrs,
// duration and error to OnEnd (if set). Exists to give StartSpan somewhere to
// go if the caller wants basic local visibility without standing up
// OpenTelemetry.
type SimpleTracer struct {
	OnEnd func(name string, attrs map[string]string, duration time.Duration, err error)
}

func (t *SimpleTracer) StartSpan(ctx context.Context, name string, attrs map[string]string) (context.Context, model.Span) {
	return ctx, &simpleSpan{tracer: t, name: name, attrs: attrs, start: time.Now()}
}

type simpleSpan struct {
	tracer *SimpleTracer
	name   string
	attrs  map[string]string
	start  time.Time
}

func (s *simpleSpan) End(err error) {
	if s.tracer.OnEnd != nil {
		s.tracer.OnEnd(s.name, s.attrs, time.Since(s.start), err)
	}
}
