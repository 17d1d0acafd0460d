package ui

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"sync"

	"scenic/pkg/telemetry"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

// TelemetryOutput renders scenario and step spans as streaming console
// lines: a header per scenario, one "[ok]" / "[x]" line per step, and
// a colored verdict when the scenario span closes.
type TelemetryOutput struct {
	provider *sdktrace.TracerProvider
}

// NewTelemetryOutput writes step lines to w (typically stderr, so
// stdout stays machine-readable).
func NewTelemetryOutput(w io.Writer) *TelemetryOutput {
	processor := &stepSpanProcessor{w: w, titles: make(map[string]string)}
	return &TelemetryOutput{
		provider: sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(processor)),
	}
}

func (o *TelemetryOutput) Tracer(name string) trace.Tracer {
	return o.provider.Tracer(name)
}

func (o *TelemetryOutput) Close() {
	if o == nil || o.provider == nil {
		return
	}
	_ = o.provider.Shutdown(context.Background())
}

type stepSpanProcessor struct {
	w      io.Writer
	mu     sync.Mutex
	titles map[string]string
}

func (p *stepSpanProcessor) OnStart(_ context.Context, span sdktrace.ReadWriteSpan) {
	if span.Parent().IsValid() {
		return
	}

	planJSON := attributeValue(span.Attributes(), telemetry.PlanJSONKey)
	if strings.TrimSpace(planJSON) == "" {
		return
	}
	var plan telemetry.Plan
	if err := json.Unmarshal([]byte(planJSON), &plan); err != nil {
		return
	}

	p.mu.Lock()
	for _, step := range plan.Steps {
		p.titles[step.ID] = step.Title
	}
	p.mu.Unlock()

	fmt.Fprintln(p.w, InfoMsg("%s", span.Name()))
}

func (p *stepSpanProcessor) OnEnd(span sdktrace.ReadOnlySpan) {
	if !span.Parent().IsValid() {
		if verdict := attributeValue(span.Attributes(), telemetry.VerdictKey); verdict != "" {
			fmt.Fprintf(p.w, "  %s %s\n", Status(verdict), Muted(span.Name()))
		}
		return
	}

	p.mu.Lock()
	title := p.titles[span.Name()]
	p.mu.Unlock()
	if title == "" {
		title = span.Name()
	}

	status := span.Status()
	if status.Code == codes.Error {
		msg := strings.TrimSpace(status.Description)
		if msg != "" {
			fmt.Fprintf(p.w, "  [x] %s (%s)\n", title, msg)
		} else {
			fmt.Fprintf(p.w, "  [x] %s\n", title)
		}
		return
	}
	fmt.Fprintf(p.w, "  [ok] %s\n", title)
}

func (p *stepSpanProcessor) Shutdown(context.Context) error   { return nil }
func (p *stepSpanProcessor) ForceFlush(context.Context) error { return nil }

func attributeValue(attrs []attribute.KeyValue, key string) string {
	for _, attr := range attrs {
		if string(attr.Key) == key {
			return attr.Value.AsString()
		}
	}
	return ""
}
