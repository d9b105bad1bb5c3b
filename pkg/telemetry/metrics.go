package telemetry

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/wardenai/warden-oss/pkg/domain"
)

var (
	metricsOnce            sync.Once
	metricsInitErr         error
	stageExecutionCounter  metric.Int64Counter
	stageDenialCounter     metric.Int64Counter
	stageRedactionCounter  metric.Int64Counter
	stageLatencyHistogram  metric.Float64Histogram
	upstreamFailureCounter metric.Int64Counter
)

// StageMetrics captures the fields needed to record pipeline stage telemetry.
type StageMetrics struct {
	PrincipalID string
	Stage       string
	Outcome     domain.DecisionKind
	Redactions  int
	Duration    time.Duration
}

// RecordStageMetrics emits counters and histograms that describe stage
// execution behaviour.
func RecordStageMetrics(ctx context.Context, m StageMetrics) {
	if err := ensureMetrics(); err != nil {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.String("principal.id", m.PrincipalID),
		attribute.String("stage.name", m.Stage),
		attribute.String("stage.outcome", string(m.Outcome)),
	}

	stageExecutionCounter.Add(ctx, 1, metric.WithAttributes(attrs...))

	if m.Duration > 0 {
		stageLatencyHistogram.Record(ctx, float64(m.Duration)/float64(time.Millisecond), metric.WithAttributes(attrs...))
	}

	if m.Redactions > 0 {
		stageRedactionCounter.Add(ctx, int64(m.Redactions), metric.WithAttributes(attrs...))
	}

	if m.Outcome == domain.DecisionDeny {
		stageDenialCounter.Add(ctx, 1, metric.WithAttributes(attrs...))
	}
}

// RecordUpstreamFailure counts a model-client failure.
func RecordUpstreamFailure(ctx context.Context, timeout bool) {
	if err := ensureMetrics(); err != nil {
		return
	}
	upstreamFailureCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.Bool("upstream.timeout", timeout),
	))
}

func ensureMetrics() error {
	metricsOnce.Do(func() {
		meter := otel.GetMeterProvider().Meter("warden.gateway")

		stageExecutionCounter, metricsInitErr = meter.Int64Counter(
			"warden.stage.executions_total",
			metric.WithDescription("Pipeline stage executions partitioned by outcome"),
			metric.WithUnit("{count}"),
		)
		if metricsInitErr != nil {
			return
		}

		stageDenialCounter, metricsInitErr = meter.Int64Counter(
			"warden.stage.denials_total",
			metric.WithDescription("Terminal denials emitted by pipeline stages"),
			metric.WithUnit("{count}"),
		)
		if metricsInitErr != nil {
			return
		}

		stageRedactionCounter, metricsInitErr = meter.Int64Counter(
			"warden.stage.redactions_total",
			metric.WithDescription("Sensitive spans masked during stage execution"),
			metric.WithUnit("{count}"),
		)
		if metricsInitErr != nil {
			return
		}

		upstreamFailureCounter, metricsInitErr = meter.Int64Counter(
			"warden.upstream.failures_total",
			metric.WithDescription("Model client failures partitioned by timeout"),
			metric.WithUnit("{count}"),
		)
		if metricsInitErr != nil {
			return
		}

		stageLatencyHistogram, metricsInitErr = meter.Float64Histogram(
			"warden.stage.duration_ms",
			metric.WithDescription("Observed stage execution latency"),
			metric.WithUnit("ms"),
		)
	})

	return metricsInitErr
}

// RecordDecision attaches a coarse-grained decision event to the provided
// span without leaking request content.
func RecordDecision(span trace.Span, d domain.Decision) {
	if span == nil || !span.IsRecording() {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.String("decision.kind", string(d.Kind)),
		attribute.String("decision.stage", d.Stage),
		attribute.Bool("decision.terminal", d.Terminal()),
	}
	if d.PolicyName != "" {
		attrs = append(attrs, attribute.String("decision.policy", d.PolicyName))
	}
	if d.Reason != "" {
		attrs = append(attrs, attribute.String("decision.reason", d.Reason))
	}

	span.AddEvent("gateway.decision", trace.WithAttributes(attrs...))
}
