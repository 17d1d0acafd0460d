// Package scenario defines the declarative test scenario model.
//
// A scenario is a named, ordered list of steps loaded from a YAML file.
// Steps are a tagged variant: exactly one step key per list entry. Once
// loaded a scenario is never mutated; the runner only reads it.
package scenario

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Kind names a step variant. The value doubles as the YAML key.
type Kind string

const (
	KindNavigate            Kind = "navigate"
	KindFill                Kind = "fill"
	KindClick               Kind = "click"
	KindAssertVisible       Kind = "assert-visible"
	KindAssertText          Kind = "assert-text"
	KindAssertRows          Kind = "assert-rows"
	KindAssertNoErrorBanner Kind = "assert-no-error-banner"
	KindAssertURL           Kind = "assert-url"
	KindAssertAPI           Kind = "assert-api"
	KindScreenshot          Kind = "screenshot"
)

// WaitPolicy declares when a navigation counts as settled.
// Zero values fall back to the harness navigate timeout.
type WaitPolicy struct {
	Selector    string        // wait until this selector is visible
	NetworkIdle time.Duration // no in-flight requests for this long
	Timeout     time.Duration // hard ceiling
}

func (w *WaitPolicy) UnmarshalYAML(value *yaml.Node) error {
	var raw struct {
		Selector    string `yaml:"selector"`
		NetworkIdle string `yaml:"network-idle"`
		Timeout     string `yaml:"timeout"`
	}
	if err := value.Decode(&raw); err != nil {
		return err
	}
	w.Selector = raw.Selector
	var err error
	if raw.NetworkIdle != "" {
		if w.NetworkIdle, err = time.ParseDuration(raw.NetworkIdle); err != nil {
			return fmt.Errorf("wait.network-idle: %w", err)
		}
	}
	if raw.Timeout != "" {
		if w.Timeout, err = time.ParseDuration(raw.Timeout); err != nil {
			return fmt.Errorf("wait.timeout: %w", err)
		}
	}
	return nil
}

// FillStep types a value into a form field.
type FillStep struct {
	Selector string `yaml:"selector"`
	Value    string `yaml:"value"`
}

// AssertTextStep checks an element's text contains a substring.
type AssertTextStep struct {
	Selector string `yaml:"selector"`
	Contains string `yaml:"contains"`
}

// AssertRowsStep compares the number of elements matching a selector.
// Op is one of ==, !=, >, >=, <, <=.
type AssertRowsStep struct {
	Selector string `yaml:"selector"`
	Op       string `yaml:"op"`
	Count    int    `yaml:"count"`
}

// AssertURLStep checks the tab's current URL path starts with Prefix,
// e.g. post-login landing on /dashboard.
type AssertURLStep struct {
	Prefix string `yaml:"prefix"`
}

// AssertAPIStep probes the backend directly, bypassing the UI.
// ArrayAt optionally names a top-level JSON field that must be an array.
type AssertAPIStep struct {
	Method  string `yaml:"method"`
	Path    string `yaml:"path"`
	Body    string `yaml:"body"`
	Status  int    `yaml:"status"`
	ArrayAt string `yaml:"array-at"`
}

// Step is a tagged variant; exactly one pointer field is non-nil and
// Kind names which. Navigate steps carry an optional WaitPolicy.
type Step struct {
	Kind Kind

	Navigate      string
	Wait          *WaitPolicy
	Fill          *FillStep
	Click         string
	AssertVisible string
	AssertText    *AssertTextStep
	AssertRows    *AssertRowsStep
	AssertURL     *AssertURLStep
	AssertAPI     *AssertAPIStep
	Screenshot    string
}

func (s *Step) UnmarshalYAML(value *yaml.Node) error {
	var raw struct {
		Navigate            string          `yaml:"navigate"`
		Wait                *WaitPolicy     `yaml:"wait"`
		Fill                *FillStep       `yaml:"fill"`
		Click               string          `yaml:"click"`
		AssertVisible       string          `yaml:"assert-visible"`
		AssertText          *AssertTextStep `yaml:"assert-text"`
		AssertRows          *AssertRowsStep `yaml:"assert-rows"`
		AssertNoErrorBanner *bool           `yaml:"assert-no-error-banner"`
		AssertURL           *AssertURLStep  `yaml:"assert-url"`
		AssertAPI           *AssertAPIStep  `yaml:"assert-api"`
		Screenshot          string          `yaml:"screenshot"`
	}
	if err := value.Decode(&raw); err != nil {
		return err
	}

	var kinds []Kind
	if raw.Navigate != "" {
		kinds = append(kinds, KindNavigate)
	}
	if raw.Fill != nil {
		kinds = append(kinds, KindFill)
	}
	if raw.Click != "" {
		kinds = append(kinds, KindClick)
	}
	if raw.AssertVisible != "" {
		kinds = append(kinds, KindAssertVisible)
	}
	if raw.AssertText != nil {
		kinds = append(kinds, KindAssertText)
	}
	if raw.AssertRows != nil {
		kinds = append(kinds, KindAssertRows)
	}
	if raw.AssertNoErrorBanner != nil && *raw.AssertNoErrorBanner {
		kinds = append(kinds, KindAssertNoErrorBanner)
	}
	if raw.AssertURL != nil {
		kinds = append(kinds, KindAssertURL)
	}
	if raw.AssertAPI != nil {
		kinds = append(kinds, KindAssertAPI)
	}
	if raw.Screenshot != "" {
		kinds = append(kinds, KindScreenshot)
	}

	if len(kinds) != 1 {
		return fmt.Errorf("step must declare exactly one action, got %d (line %d)", len(kinds), value.Line)
	}
	if raw.Wait != nil && kinds[0] != KindNavigate {
		return fmt.Errorf("wait is only valid on navigate steps (line %d)", value.Line)
	}

	s.Kind = kinds[0]
	s.Navigate = raw.Navigate
	s.Wait = raw.Wait
	s.Fill = raw.Fill
	s.Click = raw.Click
	s.AssertVisible = raw.AssertVisible
	s.AssertText = raw.AssertText
	s.AssertRows = raw.AssertRows
	s.AssertURL = raw.AssertURL
	s.AssertAPI = raw.AssertAPI
	s.Screenshot = raw.Screenshot
	return nil
}

// String renders a short human label for verdict details and step spans.
func (s Step) String() string {
	switch s.Kind {
	case KindNavigate:
		return "navigate " + s.Navigate
	case KindFill:
		return "fill " + s.Fill.Selector
	case KindClick:
		return "click " + s.Click
	case KindAssertVisible:
		return "assert visible " + s.AssertVisible
	case KindAssertText:
		return fmt.Sprintf("assert text %s contains %q", s.AssertText.Selector, s.AssertText.Contains)
	case KindAssertRows:
		return fmt.Sprintf("assert rows %s %s %d", s.AssertRows.Selector, s.AssertRows.Op, s.AssertRows.Count)
	case KindAssertNoErrorBanner:
		return "assert no error banner"
	case KindAssertURL:
		return "assert url " + s.AssertURL.Prefix + "*"
	case KindAssertAPI:
		return fmt.Sprintf("assert api %s %s -> %d", s.AssertAPI.Method, s.AssertAPI.Path, s.AssertAPI.Status)
	case KindScreenshot:
		return "screenshot " + s.Screenshot
	default:
		return string(s.Kind)
	}
}

// Scenario is a named, ordered sequence of steps. Immutable once loaded.
type Scenario struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	Steps       []Step `yaml:"steps"`
}

// Validate checks structural invariants the unmarshaler cannot see.
func (sc *Scenario) Validate() error {
	if strings.TrimSpace(sc.Name) == "" {
		return fmt.Errorf("scenario name is required")
	}
	if len(sc.Steps) == 0 {
		return fmt.Errorf("scenario %q has no steps", sc.Name)
	}
	for i, step := range sc.Steps {
		if err := validateStep(step); err != nil {
			return fmt.Errorf("scenario %q step %d: %w", sc.Name, i+1, err)
		}
	}
	return nil
}

func validateStep(step Step) error {
	switch step.Kind {
	case KindFill:
		if step.Fill.Selector == "" {
			return fmt.Errorf("fill requires a selector")
		}
	case KindAssertText:
		if step.AssertText.Selector == "" || step.AssertText.Contains == "" {
			return fmt.Errorf("assert-text requires selector and contains")
		}
	case KindAssertRows:
		switch step.AssertRows.Op {
		case "==", "!=", ">", ">=", "<", "<=":
		default:
			return fmt.Errorf("assert-rows: invalid op %q", step.AssertRows.Op)
		}
		if step.AssertRows.Selector == "" {
			return fmt.Errorf("assert-rows requires a selector")
		}
	case KindAssertURL:
		if step.AssertURL.Prefix == "" {
			return fmt.Errorf("assert-url requires a prefix")
		}
	case KindAssertAPI:
		a := step.AssertAPI
		if a.Method == "" || a.Path == "" {
			return fmt.Errorf("assert-api requires method and path")
		}
		if a.Status == 0 {
			return fmt.Errorf("assert-api requires an expected status")
		}
	}
	return nil
}

// Parse decodes one scenario document and validates it. Fill values may
// reference ${vars}; unknown variables are left untouched so selectors
// containing dollar signs survive.
func Parse(data []byte, vars map[string]string) (*Scenario, error) {
	var sc Scenario
	if err := yaml.Unmarshal(data, &sc); err != nil {
		return nil, fmt.Errorf("parse scenario: %w", err)
	}
	expand(&sc, vars)
	if err := sc.Validate(); err != nil {
		return nil, err
	}
	return &sc, nil
}

// LoadFile reads and parses a single scenario file.
func LoadFile(path string, vars map[string]string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenario: %w", err)
	}
	sc, err := Parse(data, vars)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	return sc, nil
}

// LoadDir loads every *.yaml and *.yml file under dir, sorted by file
// name so execution order is stable across machines.
func LoadDir(dir string, vars map[string]string) ([]*Scenario, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read scenario dir: %w", err)
	}

	var paths []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := filepath.Ext(e.Name())
		if ext == ".yaml" || ext == ".yml" {
			paths = append(paths, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(paths)

	seen := make(map[string]string, len(paths))
	scenarios := make([]*Scenario, 0, len(paths))
	for _, p := range paths {
		sc, err := LoadFile(p, vars)
		if err != nil {
			return nil, err
		}
		if prev, dup := seen[sc.Name]; dup {
			return nil, fmt.Errorf("duplicate scenario name %q in %s and %s", sc.Name, prev, filepath.Base(p))
		}
		seen[sc.Name] = filepath.Base(p)
		scenarios = append(scenarios, sc)
	}
	return scenarios, nil
}

func expand(sc *Scenario, vars map[string]string) {
	if len(vars) == 0 {
		return
	}
	mapping := func(name string) string {
		if v, ok := vars[name]; ok {
			return v
		}
		return "${" + name + "}"
	}
	for i := range sc.Steps {
		if sc.Steps[i].Fill != nil {
			sc.Steps[i].Fill.Value = os.Expand(sc.Steps[i].Fill.Value, mapping)
		}
		if sc.Steps[i].AssertAPI != nil {
			sc.Steps[i].AssertAPI.Body = os.Expand(sc.Steps[i].AssertAPI.Body, mapping)
		}
	}
}
