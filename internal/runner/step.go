package runner

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"scenic/internal/assert"
	"scenic/internal/scenario"
)

// stepResult separates the two failure axes: ok=false is a semantic
// assertion failure (product defect), while the error return of
// executeStep is an execution failure (infrastructure defect).
type stepResult struct {
	ok     bool
	detail string
}

var stepOK = stepResult{ok: true}

func (r *Runner) executeStep(ctx context.Context, runID, scenarioName string, step scenario.Step, driver Driver) (stepResult, error) {
	switch step.Kind {
	case scenario.KindNavigate:
		if err := driver.Navigate(ctx, step.Navigate, step.Wait); err != nil {
			return stepResult{}, err
		}
		return stepOK, nil

	case scenario.KindFill:
		if err := driver.Fill(ctx, step.Fill.Selector, step.Fill.Value); err != nil {
			return stepResult{}, err
		}
		return stepOK, nil

	case scenario.KindClick:
		if err := driver.Click(ctx, step.Click); err != nil {
			return stepResult{}, err
		}
		return stepOK, nil

	case scenario.KindAssertVisible:
		return toStepResult(assert.ElementExists(ctx, driver, step.AssertVisible))

	case scenario.KindAssertText:
		return toStepResult(assert.TextContains(ctx, driver, step.AssertText.Selector, step.AssertText.Contains))

	case scenario.KindAssertRows:
		return toStepResult(assert.RowCount(ctx, driver, step.AssertRows.Selector, step.AssertRows.Op, step.AssertRows.Count))

	case scenario.KindAssertNoErrorBanner:
		return toStepResult(assert.NoErrorBanner(ctx, driver))

	case scenario.KindAssertURL:
		current, err := driver.Location(ctx)
		if err != nil {
			return stepResult{}, err
		}
		res := assert.URLPrefix(current, step.AssertURL.Prefix)
		return stepResult{ok: res.OK, detail: res.Detail}, nil

	case scenario.KindAssertAPI:
		return r.executeAPIStep(ctx, step.AssertAPI)

	case scenario.KindScreenshot:
		path := filepath.Join(r.artifactsDir, runID,
			sanitizeFilename(scenarioName)+"_"+sanitizeFilename(step.Screenshot)+".png")
		if err := driver.Screenshot(ctx, path); err != nil {
			return stepResult{}, err
		}
		return stepOK, nil

	default:
		return stepResult{}, fmt.Errorf("unknown step kind %q", step.Kind)
	}
}

// executeAPIStep probes the backend once and checks status, then the
// optional array envelope. A transport failure is an error (ERROR);
// a wrong status or shape is an assertion failure (FAILED).
func (r *Runner) executeAPIStep(ctx context.Context, step *scenario.AssertAPIStep) (stepResult, error) {
	var body []byte
	if step.Body != "" {
		body = []byte(step.Body)
	}
	res, err := r.prober.Call(ctx, step.Method, step.Path, body)
	if err != nil {
		return stepResult{}, err
	}

	if status := assert.ResponseStatus(res, step.Status); !status.OK {
		return stepResult{detail: status.Detail}, nil
	}
	if step.ArrayAt != "" {
		if shape := assert.JSONArrayAt(res, step.ArrayAt); !shape.OK {
			return stepResult{detail: shape.Detail}, nil
		}
	}
	return stepOK, nil
}

func toStepResult(res assert.Result, err error) (stepResult, error) {
	if err != nil {
		return stepResult{}, err
	}
	return stepResult{ok: res.OK, detail: res.Detail}, nil
}

// sanitizeFilename keeps scenario and label names safe as file names.
func sanitizeFilename(name string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(name) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	if b.Len() == 0 {
		return "scenario"
	}
	return b.String()
}
