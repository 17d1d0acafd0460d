package runner

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"
	"time"

	"scenic/internal/probe"
	"scenic/internal/scenario"
)

type fakeDriver struct {
	visible       map[string]bool
	text          map[string]string
	count         map[string]int
	location      string
	navErr        error
	blockNavigate bool
	panicOnClick  bool
	evidence      string
	screenshotErr error
	shots         []string
}

func (f *fakeDriver) Navigate(ctx context.Context, route string, _ *scenario.WaitPolicy) error {
	if f.blockNavigate {
		<-ctx.Done()
		return ctx.Err()
	}
	return f.navErr
}

func (f *fakeDriver) Fill(context.Context, string, string) error { return nil }

func (f *fakeDriver) Click(context.Context, string) error {
	if f.panicOnClick {
		panic("tab crashed")
	}
	return nil
}

func (f *fakeDriver) ElementVisible(_ context.Context, sel string) (bool, error) {
	return f.visible[sel], nil
}

func (f *fakeDriver) Text(_ context.Context, sel string) (string, error) {
	return f.text[sel], nil
}

func (f *fakeDriver) Count(_ context.Context, sel string) (int, error) {
	return f.count[sel], nil
}

func (f *fakeDriver) Location(context.Context) (string, error) {
	return f.location, nil
}

func (f *fakeDriver) Screenshot(_ context.Context, path string) error {
	if f.screenshotErr != nil {
		return f.screenshotErr
	}
	f.shots = append(f.shots, path)
	return nil
}

func (f *fakeDriver) Evidence() string { return f.evidence }

type fakeProber struct {
	res probe.Result
	err error
}

func (f *fakeProber) Call(context.Context, string, string, []byte) (probe.Result, error) {
	return f.res, f.err
}

func driverFactory(d *fakeDriver) NewDriverFunc {
	return func() (Driver, func(), error) { return d, func() {}, nil }
}

func mustParse(t *testing.T, body string) *scenario.Scenario {
	t.Helper()
	sc, err := scenario.Parse([]byte(body), nil)
	if err != nil {
		t.Fatalf("parse scenario: %v", err)
	}
	return sc
}

func TestRunAllPassedAndStreaming(t *testing.T) {
	d := &fakeDriver{visible: map[string]bool{".dashboard": true}}
	var streamed []string
	r := New(driverFactory(d), &fakeProber{},
		WithArtifactsDir(t.TempDir()),
		WithOnVerdict(func(v Verdict) { streamed = append(streamed, v.ScenarioName) }),
	)

	scenarios := []*scenario.Scenario{
		mustParse(t, "name: a\nsteps:\n  - navigate: /\n  - assert-visible: .dashboard\n"),
		mustParse(t, "name: b\nsteps:\n  - navigate: /stocks\n"),
	}
	report := r.Run(t.Context(), scenarios)

	if len(report.Verdicts) != len(scenarios) {
		t.Fatalf("verdict count = %d, want %d", len(report.Verdicts), len(scenarios))
	}
	if report.Totals.Passed != 2 || report.Totals.Failed != 0 || report.Totals.Errors != 0 {
		t.Fatalf("unexpected totals: %+v", report.Totals)
	}
	if report.ExitCode() != ExitOK {
		t.Fatalf("exit code = %d, want 0", report.ExitCode())
	}
	if len(streamed) != 2 || streamed[0] != "a" || streamed[1] != "b" {
		t.Fatalf("verdicts not streamed in order: %v", streamed)
	}
	if report.Verdicts[0].ScreenshotPath == "" {
		t.Fatal("expected completion screenshot path")
	}
}

func TestFalseAssertionIsFailed(t *testing.T) {
	d := &fakeDriver{} // nothing visible
	r := New(driverFactory(d), &fakeProber{}, WithArtifactsDir(t.TempDir()))

	report := r.Run(t.Context(), []*scenario.Scenario{
		mustParse(t, "name: login\nsteps:\n  - assert-visible: .dashboard\n"),
	})

	v := report.Verdicts[0]
	if v.Status != StatusFailed {
		t.Fatalf("status = %s, want FAILED", v.Status)
	}
	if !strings.Contains(v.Detail, ".dashboard") {
		t.Fatalf("detail should name the selector: %q", v.Detail)
	}
	if report.ExitCode() != ExitFailed {
		t.Fatalf("exit code = %d, want 1", report.ExitCode())
	}
}

func TestStepErrorIsError(t *testing.T) {
	d := &fakeDriver{navErr: errors.New("net::ERR_CONNECTION_REFUSED")}
	r := New(driverFactory(d), &fakeProber{}, WithArtifactsDir(t.TempDir()))

	report := r.Run(t.Context(), []*scenario.Scenario{
		mustParse(t, "name: nav\nsteps:\n  - navigate: /\n"),
	})

	v := report.Verdicts[0]
	if v.Status != StatusError {
		t.Fatalf("status = %s, want ERROR", v.Status)
	}
	if report.ExitCode() != ExitError {
		t.Fatalf("exit code = %d, want 2", report.ExitCode())
	}
}

func TestFailedBeatsErrorInExitCode(t *testing.T) {
	report := &Report{}
	report.append(Verdict{ScenarioName: "a", Status: StatusFailed})
	report.append(Verdict{ScenarioName: "b", Status: StatusError})
	if report.ExitCode() != ExitFailed {
		t.Fatalf("exit code = %d, want 1", report.ExitCode())
	}
}

func TestPanicIsError(t *testing.T) {
	d := &fakeDriver{panicOnClick: true}
	r := New(driverFactory(d), &fakeProber{}, WithArtifactsDir(t.TempDir()))

	report := r.Run(t.Context(), []*scenario.Scenario{
		mustParse(t, "name: crash\nsteps:\n  - click: \"#go\"\n"),
		mustParse(t, "name: after\nsteps:\n  - navigate: /\n"),
	})

	if report.Verdicts[0].Status != StatusError {
		t.Fatalf("status = %s, want ERROR", report.Verdicts[0].Status)
	}
	if !strings.Contains(report.Verdicts[0].Detail, "panic") {
		t.Fatalf("detail should record the panic: %q", report.Verdicts[0].Detail)
	}
	// the run must survive and execute the next scenario
	if report.Verdicts[1].Status != StatusPassed {
		t.Fatalf("second scenario status = %s, want PASSED", report.Verdicts[1].Status)
	}
}

func TestDriverOpenFailureIsError(t *testing.T) {
	factory := func() (Driver, func(), error) { return nil, nil, errors.New("browser gone") }
	r := New(factory, &fakeProber{}, WithArtifactsDir(t.TempDir()))

	report := r.Run(t.Context(), []*scenario.Scenario{
		mustParse(t, "name: x\nsteps:\n  - navigate: /\n"),
	})
	if report.Verdicts[0].Status != StatusError {
		t.Fatalf("status = %s, want ERROR", report.Verdicts[0].Status)
	}
}

func TestScenarioTimeoutIsErrorAndRunContinues(t *testing.T) {
	blocked := &fakeDriver{blockNavigate: true}
	healthy := &fakeDriver{}
	drivers := []*fakeDriver{blocked, healthy}
	i := 0
	factory := func() (Driver, func(), error) {
		d := drivers[i]
		i++
		return d, func() {}, nil
	}

	r := New(factory, &fakeProber{},
		WithArtifactsDir(t.TempDir()),
		WithScenarioTimeout(50*time.Millisecond),
	)
	report := r.Run(t.Context(), []*scenario.Scenario{
		mustParse(t, "name: slow\nsteps:\n  - navigate: /\n"),
		mustParse(t, "name: quick\nsteps:\n  - navigate: /\n"),
	})

	if report.Verdicts[0].Status != StatusError {
		t.Fatalf("timed-out scenario status = %s, want ERROR", report.Verdicts[0].Status)
	}
	if report.Verdicts[1].Status != StatusPassed {
		t.Fatalf("follow-up scenario status = %s, want PASSED", report.Verdicts[1].Status)
	}
}

func TestEvidenceAppendedOnFailure(t *testing.T) {
	d := &fakeDriver{evidence: "requests: /api/stocks -> 500"}
	r := New(driverFactory(d), &fakeProber{}, WithArtifactsDir(t.TempDir()))

	report := r.Run(t.Context(), []*scenario.Scenario{
		mustParse(t, "name: banner\nsteps:\n  - assert-visible: .dashboard\n"),
	})
	if !strings.Contains(report.Verdicts[0].Detail, "/api/stocks -> 500") {
		t.Fatalf("evidence missing from detail: %q", report.Verdicts[0].Detail)
	}
}

func TestScreenshotFailureDoesNotChangeVerdict(t *testing.T) {
	d := &fakeDriver{screenshotErr: errors.New("capture failed")}
	r := New(driverFactory(d), &fakeProber{}, WithArtifactsDir(t.TempDir()))

	report := r.Run(t.Context(), []*scenario.Scenario{
		mustParse(t, "name: ok\nsteps:\n  - navigate: /\n"),
	})
	v := report.Verdicts[0]
	if v.Status != StatusPassed {
		t.Fatalf("status = %s, want PASSED", v.Status)
	}
	if v.ScreenshotPath != "" {
		t.Fatalf("screenshot path should be empty on capture failure: %q", v.ScreenshotPath)
	}
}

func TestURLAssertion(t *testing.T) {
	body := "name: landing\nsteps:\n  - assert-url:\n      prefix: /dashboard\n"

	d := &fakeDriver{location: "http://app.local/dashboard/home"}
	r := New(driverFactory(d), &fakeProber{}, WithArtifactsDir(t.TempDir()))
	if got := r.Run(t.Context(), []*scenario.Scenario{mustParse(t, body)}).Verdicts[0].Status; got != StatusPassed {
		t.Fatalf("prefix match: status = %s", got)
	}

	d = &fakeDriver{location: "http://app.local/login"}
	r = New(driverFactory(d), &fakeProber{}, WithArtifactsDir(t.TempDir()))
	v := r.Run(t.Context(), []*scenario.Scenario{mustParse(t, body)}).Verdicts[0]
	if v.Status != StatusFailed {
		t.Fatalf("prefix mismatch: status = %s", v.Status)
	}
	if !strings.Contains(v.Detail, "/dashboard") {
		t.Fatalf("detail should name the wanted prefix: %q", v.Detail)
	}
}

func TestAPIStepStatusMismatchIsFailed(t *testing.T) {
	p := &fakeProber{res: probe.Result{Status: http.StatusInternalServerError, Body: []byte("boom")}}
	r := New(driverFactory(&fakeDriver{}), p, WithArtifactsDir(t.TempDir()))

	report := r.Run(t.Context(), []*scenario.Scenario{
		mustParse(t, "name: api\nsteps:\n  - assert-api:\n      method: GET\n      path: /inventory/stocks\n      status: 200\n"),
	})
	if report.Verdicts[0].Status != StatusFailed {
		t.Fatalf("status = %s, want FAILED", report.Verdicts[0].Status)
	}
}

func TestAPIStepTransportFailureIsError(t *testing.T) {
	p := &fakeProber{err: &probe.NetworkError{Method: "GET", URL: "http://x", Err: errors.New("refused")}}
	r := New(driverFactory(&fakeDriver{}), p, WithArtifactsDir(t.TempDir()))

	report := r.Run(t.Context(), []*scenario.Scenario{
		mustParse(t, "name: api\nsteps:\n  - assert-api:\n      method: GET\n      path: /ping\n      status: 200\n"),
	})
	if report.Verdicts[0].Status != StatusError {
		t.Fatalf("status = %s, want ERROR", report.Verdicts[0].Status)
	}
}

func TestAPIStepArrayEnvelope(t *testing.T) {
	good := &fakeProber{res: probe.Result{Status: 200, Body: []byte(`{"data":[]}`)}}
	bad := &fakeProber{res: probe.Result{Status: 200, Body: []byte(`{"data":{}}`)}}
	body := "name: api\nsteps:\n  - assert-api:\n      method: GET\n      path: /inventory/stocks\n      status: 200\n      array-at: data\n"

	r := New(driverFactory(&fakeDriver{}), good, WithArtifactsDir(t.TempDir()))
	if got := r.Run(t.Context(), []*scenario.Scenario{mustParse(t, body)}).Verdicts[0].Status; got != StatusPassed {
		t.Fatalf("array envelope pass: status = %s", got)
	}

	r = New(driverFactory(&fakeDriver{}), bad, WithArtifactsDir(t.TempDir()))
	if got := r.Run(t.Context(), []*scenario.Scenario{mustParse(t, body)}).Verdicts[0].Status; got != StatusFailed {
		t.Fatalf("array envelope fail: status = %s", got)
	}
}

func TestRunIsDeterministic(t *testing.T) {
	body := "name: same\nsteps:\n  - assert-visible: .dashboard\n"
	run := func() Status {
		d := &fakeDriver{visible: map[string]bool{".dashboard": true}}
		r := New(driverFactory(d), &fakeProber{}, WithArtifactsDir(t.TempDir()))
		return r.Run(t.Context(), []*scenario.Scenario{mustParse(t, body)}).Verdicts[0].Status
	}
	if run() != run() {
		t.Fatal("identical scenario against identical state must yield the same verdict")
	}
}

func TestPhaseLifecycle(t *testing.T) {
	for _, terminal := range []Phase{PhasePassed, PhaseFailed, PhaseErrored} {
		p := PhasePending.Transition(PhaseRunning)
		if got := p.Transition(terminal); got != terminal {
			t.Fatalf("running -> %s: got %s", terminal, got)
		}
	}
}
