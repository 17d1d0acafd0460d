// Package telemetry emits one trace span per scenario with child spans
// per step. The CLI installs a span processor that renders these as
// streaming step lines; a future OTLP exporter plugs in the same way.
package telemetry

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	PlanEventName  = "scenic.plan"
	PlanVersion    = "1"
	PlanVersionKey = "scenic.plan.version"
	PlanJSONKey    = "scenic.plan.json"
	VerdictKey     = "scenic.verdict"
)

// PlannedStep is one step announced ahead of execution so observers
// can render pending work.
type PlannedStep struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

// Plan lists a scenario's steps in declared order.
type Plan struct {
	Steps []PlannedStep `json:"steps"`
}

// Operation is the span wrapping one scenario execution.
type Operation struct {
	ctx    context.Context
	tracer trace.Tracer
	span   trace.Span
}

// Begin opens the scenario span and announces its step plan.
func Begin(ctx context.Context, tracer trace.Tracer, scenarioName string, plan Plan) (*Operation, error) {
	if tracer == nil {
		return nil, fmt.Errorf("begin scenario telemetry: tracer is required")
	}
	if err := validatePlan(plan); err != nil {
		return nil, fmt.Errorf("begin scenario telemetry: %w", err)
	}

	scenarioName = strings.TrimSpace(scenarioName)
	if scenarioName == "" {
		scenarioName = "scenario"
	}

	planJSON, err := json.Marshal(plan)
	if err != nil {
		return nil, fmt.Errorf("begin scenario telemetry: marshal plan: %w", err)
	}

	spanCtx, span := tracer.Start(ctx, scenarioName, trace.WithAttributes(
		attribute.String(PlanVersionKey, PlanVersion),
		attribute.String(PlanJSONKey, string(planJSON)),
	))
	span.AddEvent(PlanEventName, trace.WithAttributes(
		attribute.String(PlanVersionKey, PlanVersion),
		attribute.String(PlanJSONKey, string(planJSON)),
	))

	return &Operation{ctx: spanCtx, tracer: tracer, span: span}, nil
}

func (o *Operation) Context() context.Context {
	if o == nil {
		return context.Background()
	}
	return o.ctx
}

// RunStep executes fn inside a child span named by the step id. A step
// error is recorded on the span and returned unchanged.
func (o *Operation) RunStep(ctx context.Context, id string, fn func(context.Context) error) error {
	if fn == nil {
		return nil
	}

	stepID := strings.TrimSpace(id)
	if stepID == "" {
		return fmt.Errorf("run telemetry step: step id is required")
	}
	if o == nil || o.tracer == nil {
		return fn(ctx)
	}

	if ctx == nil {
		ctx = o.ctx
	}

	stepCtx, span := o.tracer.Start(ctx, stepID)
	defer span.End()

	err := fn(stepCtx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, strings.TrimSpace(err.Error()))
		return err
	}
	return nil
}

// End closes the scenario span, stamping the final verdict status.
func (o *Operation) End(verdict string, err error) {
	if o == nil || o.span == nil {
		return
	}
	o.span.SetAttributes(attribute.String(VerdictKey, verdict))
	if err != nil {
		o.span.RecordError(err)
		o.span.SetStatus(codes.Error, strings.TrimSpace(err.Error()))
	}
	o.span.End()
}

func validatePlan(plan Plan) error {
	seen := make(map[string]struct{}, len(plan.Steps))
	for i, step := range plan.Steps {
		stepID := strings.TrimSpace(step.ID)
		if stepID == "" {
			return fmt.Errorf("step %d has empty id", i)
		}
		if _, exists := seen[stepID]; exists {
			return fmt.Errorf("duplicate step id %q", stepID)
		}
		seen[stepID] = struct{}{}
	}
	return nil
}
