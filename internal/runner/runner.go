// Package runner executes scenarios sequentially against a single
// shared session and converts every outcome — pass, assertion failure,
// timeout, panic — into a Verdict. Nothing a scenario does can crash
// the run; partial results always survive.
package runner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"

	"scenic/internal/check"
	"scenic/internal/probe"
	"scenic/internal/scenario"
	"scenic/pkg/telemetry"
)

// Driver is the browser surface a scenario needs. One driver (a fresh
// tab) is created per scenario so console and network state never
// bleed between scenarios. The browser process behind it is shared.
type Driver interface {
	Navigate(ctx context.Context, route string, wp *scenario.WaitPolicy) error
	Fill(ctx context.Context, selector, value string) error
	Click(ctx context.Context, selector string) error
	ElementVisible(ctx context.Context, selector string) (bool, error)
	Text(ctx context.Context, selector string) (string, error)
	Count(ctx context.Context, selector string) (int, error)
	Location(ctx context.Context) (string, error)
	Screenshot(ctx context.Context, path string) error

	// Evidence drains buffered console errors and failed requests,
	// rendered for a verdict detail. Empty when nothing happened.
	Evidence() string
}

// Prober issues direct API calls with the run's session credentials.
type Prober interface {
	Call(ctx context.Context, method, path string, body []byte) (probe.Result, error)
}

// NewDriverFunc opens a fresh Driver. The returned func releases it.
type NewDriverFunc func() (Driver, func(), error)

// Runner executes scenarios in declared order.
type Runner struct {
	newDriver       NewDriverFunc
	prober          Prober
	tracer          trace.Tracer
	artifactsDir    string
	scenarioTimeout time.Duration
	onVerdict       func(Verdict)
}

// Option configures a Runner.
type Option func(*Runner)

// WithTracer emits a span per scenario and per step.
func WithTracer(tracer trace.Tracer) Option {
	return func(r *Runner) { r.tracer = tracer }
}

// WithScenarioTimeout bounds each scenario; on expiry the scenario is
// recorded as ERROR and the run moves on.
func WithScenarioTimeout(d time.Duration) Option {
	return func(r *Runner) { r.scenarioTimeout = d }
}

// WithArtifactsDir sets where screenshots land.
func WithArtifactsDir(dir string) Option {
	return func(r *Runner) { r.artifactsDir = dir }
}

// WithOnVerdict streams each verdict as it is reached, before the next
// scenario starts.
func WithOnVerdict(fn func(Verdict)) Option {
	return func(r *Runner) { r.onVerdict = fn }
}

// New creates a Runner. newDriver and prober are required.
func New(newDriver NewDriverFunc, prober Prober, opts ...Option) *Runner {
	check.Assert(newDriver != nil, "runner.New: newDriver must not be nil")
	check.Assert(prober != nil, "runner.New: prober must not be nil")

	r := &Runner{
		newDriver:       newDriver,
		prober:          prober,
		artifactsDir:    "artifacts",
		scenarioTimeout: 2 * time.Minute,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run executes every scenario in order and returns the report. It
// never returns an error: every failure mode is a verdict.
func (r *Runner) Run(ctx context.Context, scenarios []*scenario.Scenario) *Report {
	report := &Report{
		ID:        time.Now().UTC().Format("20060102-150405") + "-" + uuid.NewString()[:8],
		Timestamp: time.Now().UTC(),
	}

	for _, sc := range scenarios {
		verdict := r.runScenario(ctx, report.ID, sc)
		report.append(verdict)
		if r.onVerdict != nil {
			r.onVerdict(verdict)
		}
	}
	return report
}

func (r *Runner) runScenario(ctx context.Context, runID string, sc *scenario.Scenario) (verdict Verdict) {
	started := time.Now()
	phase := PhasePending

	verdict = Verdict{ScenarioName: sc.Name}
	defer func() {
		// A panicking step is an infrastructure defect, never a
		// product failure, and must not take the run down.
		if rec := recover(); rec != nil {
			verdict.Status = StatusError
			verdict.Detail = fmt.Sprintf("panic: %v", rec)
		}
		verdict.DurationMs = time.Since(started).Milliseconds()
	}()

	driver, release, err := r.newDriver()
	if err != nil {
		verdict.Status = StatusError
		verdict.Detail = fmt.Sprintf("open driver: %v", err)
		return verdict
	}
	defer release()

	scCtx, cancel := context.WithTimeout(ctx, r.scenarioTimeout)
	defer cancel()

	op := r.beginTelemetry(scCtx, sc)
	phase = phase.Transition(PhaseRunning)

	status, detail := r.executeSteps(scCtx, op, runID, sc, driver)

	if evidence := driver.Evidence(); evidence != "" && status != StatusPassed {
		if detail != "" {
			detail += " | "
		}
		detail += evidence
	}

	// Always capture a completion screenshot for audit, on a fresh
	// deadline because the scenario's own may already be spent.
	shotCtx, shotCancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	shotPath := filepath.Join(r.artifactsDir, runID, sanitizeFilename(sc.Name)+".png")
	if err := driver.Screenshot(shotCtx, shotPath); err != nil {
		slog.Warn("completion screenshot failed", "scenario", sc.Name, "err", err)
	} else {
		verdict.ScreenshotPath = shotPath
	}
	shotCancel()

	verdict.Status = status
	verdict.Detail = detail

	switch status {
	case StatusPassed:
		phase = phase.Transition(PhasePassed)
	case StatusFailed:
		phase = phase.Transition(PhaseFailed)
	case StatusError:
		phase = phase.Transition(PhaseErrored)
	}
	_ = phase

	op.End(string(status), nil)
	return verdict
}

// executeSteps walks the steps in declared order and stops at the
// first false assertion (FAILED) or step error (ERROR).
func (r *Runner) executeSteps(ctx context.Context, op *telemetry.Operation, runID string, sc *scenario.Scenario, driver Driver) (Status, string) {
	for i, step := range sc.Steps {
		stepID := fmt.Sprintf("step-%d", i+1)
		var (
			res     stepResult
			stepErr error
		)
		// The returned error feeds the step span so failed assertions
		// render as failed steps; verdict classification still comes
		// from res and stepErr separately.
		run := func(stepCtx context.Context) error {
			res, stepErr = r.executeStep(stepCtx, runID, sc.Name, step, driver)
			if stepErr != nil {
				return stepErr
			}
			if !res.ok {
				return errors.New(res.detail)
			}
			return nil
		}
		if op != nil {
			_ = op.RunStep(op.Context(), stepID, run)
		} else {
			_ = run(ctx)
		}

		if stepErr != nil {
			return StatusError, fmt.Sprintf("step %d (%s): %v", i+1, step, stepErr)
		}
		if !res.ok {
			return StatusFailed, fmt.Sprintf("step %d (%s): %s", i+1, step, res.detail)
		}
	}
	return StatusPassed, ""
}

func (r *Runner) beginTelemetry(ctx context.Context, sc *scenario.Scenario) *telemetry.Operation {
	if r.tracer == nil {
		return nil
	}
	plan := telemetry.Plan{Steps: make([]telemetry.PlannedStep, len(sc.Steps))}
	for i, step := range sc.Steps {
		plan.Steps[i] = telemetry.PlannedStep{
			ID:    fmt.Sprintf("step-%d", i+1),
			Title: step.String(),
		}
	}
	op, err := telemetry.Begin(ctx, r.tracer, sc.Name, plan)
	if err != nil {
		slog.Debug("scenario telemetry disabled", "scenario", sc.Name, "err", err)
		return nil
	}
	return op
}
