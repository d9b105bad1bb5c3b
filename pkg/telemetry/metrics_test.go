package telemetry

import (
	"context"
	"testing"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/wardenai/warden-oss/pkg/domain"
)

func withManualReader(t *testing.T) *sdkmetric.ManualReader {
	t.Helper()

	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	prev := otel.GetMeterProvider()
	otel.SetMeterProvider(provider)
	t.Cleanup(func() {
		otel.SetMeterProvider(prev)
	})

	ResetMetricsForTest()
	return reader
}

func collectMetrics(t *testing.T, reader *sdkmetric.ManualReader) map[string]metricdata.Metrics {
	t.Helper()

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("collect metrics: %v", err)
	}

	metrics := map[string]metricdata.Metrics{}
	for _, scope := range rm.ScopeMetrics {
		for _, m := range scope.Metrics {
			metrics[m.Name] = m
		}
	}
	return metrics
}

func TestRecordStageMetrics(t *testing.T) {
	reader := withManualReader(t)

	RecordStageMetrics(context.Background(), StageMetrics{
		PrincipalID: "agent-1",
		Stage:       "tool_authorization",
		Outcome:     domain.DecisionDeny,
		Redactions:  2,
		Duration:    150 * time.Millisecond,
	})

	metrics := collectMetrics(t, reader)

	sumExec, ok := metrics["warden.stage.executions_total"]
	if !ok {
		t.Fatalf("missing executions metric")
	}
	execData, ok := sumExec.Data.(metricdata.Sum[int64])
	if !ok {
		t.Fatalf("unexpected data type for executions metric")
	}
	if len(execData.DataPoints) != 1 {
		t.Fatalf("expected 1 datapoint, got %d", len(execData.DataPoints))
	}
	if execData.DataPoints[0].Value != 1 {
		t.Fatalf("expected executions count 1, got %d", execData.DataPoints[0].Value)
	}
	if value, ok := execData.DataPoints[0].Attributes.Value(attribute.Key("stage.name")); !ok || value.AsString() != "tool_authorization" {
		t.Fatalf("expected stage.name attribute to be tool_authorization, got %v", value)
	}

	sumDeny, ok := metrics["warden.stage.denials_total"]
	if !ok {
		t.Fatalf("missing denials metric")
	}
	denyData := sumDeny.Data.(metricdata.Sum[int64])
	if denyData.DataPoints[0].Value != 1 {
		t.Fatalf("expected denial count 1, got %d", denyData.DataPoints[0].Value)
	}

	sumRedact, ok := metrics["warden.stage.redactions_total"]
	if !ok {
		t.Fatalf("missing redactions metric")
	}
	redactData := sumRedact.Data.(metricdata.Sum[int64])
	if redactData.DataPoints[0].Value != 2 {
		t.Fatalf("expected redaction count 2, got %d", redactData.DataPoints[0].Value)
	}

	hist, ok := metrics["warden.stage.duration_ms"]
	if !ok {
		t.Fatalf("missing duration metric")
	}
	histData := hist.Data.(metricdata.Histogram[float64])
	if histData.DataPoints[0].Count != 1 {
		t.Fatalf("expected histogram count 1, got %d", histData.DataPoints[0].Count)
	}
	if histData.DataPoints[0].Sum != 150 {
		t.Fatalf("expected histogram sum 150, got %v", histData.DataPoints[0].Sum)
	}
}

func TestRecordStageMetrics_AllowEmitsNoDenial(t *testing.T) {
	reader := withManualReader(t)

	RecordStageMetrics(context.Background(), StageMetrics{
		PrincipalID: "agent-1",
		Stage:       "completed",
		Outcome:     domain.DecisionAllow,
	})

	metrics := collectMetrics(t, reader)
	if m, ok := metrics["warden.stage.denials_total"]; ok {
		if data, ok := m.Data.(metricdata.Sum[int64]); ok && len(data.DataPoints) > 0 {
			t.Fatalf("allow outcome must not increment the denial counter: %+v", data.DataPoints)
		}
	}
}

func TestRecordUpstreamFailure(t *testing.T) {
	reader := withManualReader(t)

	RecordUpstreamFailure(context.Background(), true)

	metrics := collectMetrics(t, reader)
	sum, ok := metrics["warden.upstream.failures_total"]
	if !ok {
		t.Fatalf("missing upstream failures metric")
	}
	data := sum.Data.(metricdata.Sum[int64])
	if data.DataPoints[0].Value != 1 {
		t.Fatalf("expected failure count 1, got %d", data.DataPoints[0].Value)
	}
	if value, ok := data.DataPoints[0].Attributes.Value(attribute.Key("upstream.timeout")); !ok || !value.AsBool() {
		t.Fatalf("expected upstream.timeout attribute true")
	}
}

func TestRecordDecision(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider()
	tp.RegisterSpanProcessor(recorder)
	tracer := tp.Tracer("test")

	_, span := tracer.Start(context.Background(), "mediate")
	RecordDecision(span, domain.Decision{
		Kind:       domain.DecisionAllow,
		Stage:      "completed",
		PolicyName: "DLP Policy",
		Reason:     "completed",
	})
	span.End()

	spans := recorder.Ended()
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}
	events := spans[0].Events()
	if len(events) != 1 {
		t.Fatalf("expected 1 decision event, got %d", len(events))
	}
	event := events[0]
	if event.Name != "gateway.decision" {
		t.Fatalf("unexpected event name %q", event.Name)
	}

	attrs := attribute.NewSet(event.Attributes...)
	if value, ok := attrs.Value(attribute.Key("decision.kind")); !ok || value.AsString() != "allow" {
		t.Fatalf("expected decision.kind allow, got %v", value)
	}
	if value, ok := attrs.Value(attribute.Key("decision.terminal")); !ok || !value.AsBool() {
		t.Fatalf("expected decision.terminal true for an allow")
	}
	if value, ok := attrs.Value(attribute.Key("decision.policy")); !ok || value.AsString() != "DLP Policy" {
		t.Fatalf("expected decision.policy, got %v", value)
	}

	if err := tp.Shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown tracer provider: %v", err)
	}
}
