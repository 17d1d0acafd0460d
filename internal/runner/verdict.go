package runner

import (
	"time"

	"scenic/internal/check"
)

// Status is a terminal scenario outcome. FAILED means the application
// misbehaved (an assertion was false); ERROR means the harness or the
// environment broke (timeout, crash, transport failure). Keeping the
// two apart tells you which side owns the fix.
type Status string

const (
	StatusPassed Status = "PASSED"
	StatusFailed Status = "FAILED"
	StatusError  Status = "ERROR"
)

// Phase is the scenario lifecycle state.
type Phase uint8

const (
	PhasePending Phase = iota + 1
	PhaseRunning
	PhasePassed
	PhaseFailed
	PhaseErrored
)

func (p Phase) String() string {
	switch p {
	case PhasePending:
		return "pending"
	case PhaseRunning:
		return "running"
	case PhasePassed:
		return "passed"
	case PhaseFailed:
		return "failed"
	case PhaseErrored:
		return "errored"
	default:
		return "unknown"
	}
}

// Transition enforces the PENDING -> RUNNING -> terminal lifecycle.
func (p Phase) Transition(to Phase) Phase {
	ok := false
	switch p {
	case PhasePending:
		ok = to == PhaseRunning
	case PhaseRunning:
		ok = to == PhasePassed || to == PhaseFailed || to == PhaseErrored
	}
	check.Assertf(ok, "scenario phase transition: %s -> %s", p, to)
	if !ok {
		return p
	}
	return to
}

// Verdict records one completed scenario. Immutable once appended.
type Verdict struct {
	ScenarioName   string `json:"scenarioName"`
	Status         Status `json:"status"`
	Detail         string `json:"detail,omitempty"`
	DurationMs     int64  `json:"durationMs"`
	ScreenshotPath string `json:"screenshotPath,omitempty"`
}

// Totals tallies verdicts by status.
type Totals struct {
	Total  int `json:"total"`
	Passed int `json:"passed"`
	Failed int `json:"failed"`
	Errors int `json:"errors"`
}

// Report aggregates every verdict of one invocation. Verdicts are
// append-only and owned by the runner until the run finishes.
type Report struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Totals    Totals    `json:"totals"`
	Verdicts  []Verdict `json:"verdicts"`
}

func (r *Report) append(v Verdict) {
	r.Verdicts = append(r.Verdicts, v)
	r.Totals.Total++
	switch v.Status {
	case StatusPassed:
		r.Totals.Passed++
	case StatusFailed:
		r.Totals.Failed++
	case StatusError:
		r.Totals.Errors++
	}
}

// Exit codes: any FAILED beats any ERROR, so a product regression is
// never masked by a flaky environment in CI gating.
const (
	ExitOK     = 0
	ExitFailed = 1
	ExitError  = 2
)

// ExitCode maps the report to the process exit code.
func (r *Report) ExitCode() int {
	switch {
	case r.Totals.Failed > 0:
		return ExitFailed
	case r.Totals.Errors > 0:
		return ExitError
	default:
		return ExitOK
	}
}
