package telemetry

import (
	"context"
	"errors"
	"testing"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"
)

func TestBeginAndRunStepSuccess(t *testing.T) {
	t.Parallel()

	tracer, recorder := newTestTracer()
	op, err := Begin(context.Background(), tracer, "login-valid", Plan{Steps: []PlannedStep{
		{ID: "step-1", Title: "navigate /login"},
		{ID: "step-2", Title: "assert visible .dashboard"},
	}})
	if err != nil {
		t.Fatalf("Begin() error = %v", err)
	}

	if err := op.RunStep(op.Context(), "step-1", func(context.Context) error { return nil }); err != nil {
		t.Fatalf("RunStep() error = %v", err)
	}
	op.End("passed", nil)

	spans := recorder.Ended()
	if len(spans) != 2 {
		t.Fatalf("ended span count = %d, want 2", len(spans))
	}

	root := findSpanByName(spans, "login-valid")
	if root == nil {
		t.Fatal("missing scenario span")
	}
	if len(root.Events()) == 0 {
		t.Fatal("expected plan event on scenario span")
	}
	if root.Events()[0].Name != PlanEventName {
		t.Fatalf("plan event name = %q, want %q", root.Events()[0].Name, PlanEventName)
	}
	if getAttr(root.Attributes(), VerdictKey) != "passed" {
		t.Fatalf("verdict attribute = %q, want passed", getAttr(root.Attributes(), VerdictKey))
	}

	child := findSpanByName(spans, "step-1")
	if child == nil {
		t.Fatal("missing step span")
	}
	if child.Parent().SpanID() != root.SpanContext().SpanID() {
		t.Fatalf("step parent span id = %s, want %s", child.Parent().SpanID(), root.SpanContext().SpanID())
	}
}

func TestRunStepFailureSetsErrorStatus(t *testing.T) {
	t.Parallel()

	tracer, recorder := newTestTracer()
	op, err := Begin(context.Background(), tracer, "stocks", Plan{Steps: []PlannedStep{{ID: "step-1", Title: "assert api"}}})
	if err != nil {
		t.Fatalf("Begin() error = %v", err)
	}

	boom := errors.New("boom")
	err = op.RunStep(op.Context(), "step-1", func(context.Context) error { return boom })
	if !errors.Is(err, boom) {
		t.Fatalf("RunStep() error = %v, want boom", err)
	}
	op.End("error", err)

	spans := recorder.Ended()
	child := findSpanByName(spans, "step-1")
	if child == nil {
		t.Fatal("missing failed step span")
	}
	if child.Status().Code != codes.Error {
		t.Fatalf("step status code = %v, want %v", child.Status().Code, codes.Error)
	}
	if child.Status().Description != "boom" {
		t.Fatalf("step status description = %q, want boom", child.Status().Description)
	}
}

func TestBeginRejectsDuplicateStepIDs(t *testing.T) {
	t.Parallel()

	tracer, _ := newTestTracer()
	_, err := Begin(context.Background(), tracer, "dup", Plan{Steps: []PlannedStep{
		{ID: "step-1", Title: "a"},
		{ID: "step-1", Title: "b"},
	}})
	if err == nil {
		t.Fatal("Begin() error = nil, want duplicate id error")
	}
}

func newTestTracer() (trace.Tracer, *tracetest.SpanRecorder) {
	recorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	return provider.Tracer("telemetry-test"), recorder
}

func findSpanByName(spans []sdktrace.ReadOnlySpan, name string) sdktrace.ReadOnlySpan {
	for _, span := range spans {
		if span.Name() == name {
			return span
		}
	}
	return nil
}

func getAttr(attrs []attribute.KeyValue, key string) string {
	for _, attr := range attrs {
		if string(attr.Key) == key {
			return attr.Value.AsString()
		}
	}
	return ""
}
