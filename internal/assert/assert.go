// Package assert holds the semantic checks scenarios are built from.
// Every predicate is read-only: it inspects a page or an API response
// and returns a Result, never an action. A false Result is a product
// verdict (FAILED); an error from the page reader is an infrastructure
// verdict (ERROR) and is surfaced to the runner untouched.
package assert

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"scenic/internal/probe"
)

// PageReader is the read-only DOM surface predicates evaluate against.
// The browser driver implements it; tests substitute fakes.
type PageReader interface {
	ElementVisible(ctx context.Context, selector string) (bool, error)
	Text(ctx context.Context, selector string) (string, error)
	Count(ctx context.Context, selector string) (int, error)
}

// Result is a verdict for one predicate: OK plus a human-readable
// explanation. Detail is always set so failures read well in reports.
type Result struct {
	OK     bool
	Detail string
}

func pass(format string, args ...any) Result {
	return Result{OK: true, Detail: fmt.Sprintf(format, args...)}
}

func fail(format string, args ...any) Result {
	return Result{OK: false, Detail: fmt.Sprintf(format, args...)}
}

// ElementExists checks the selector matches a visible element.
func ElementExists(ctx context.Context, p PageReader, selector string) (Result, error) {
	visible, err := p.ElementVisible(ctx, selector)
	if err != nil {
		return Result{}, err
	}
	if !visible {
		return fail("no visible element matches %q", selector), nil
	}
	return pass("element %q visible", selector), nil
}

// TextContains checks the element's text contains substr.
func TextContains(ctx context.Context, p PageReader, selector, substr string) (Result, error) {
	text, err := p.Text(ctx, selector)
	if err != nil {
		return Result{}, err
	}
	if !strings.Contains(text, substr) {
		return fail("text of %q is %q, want substring %q", selector, truncate(text, 120), substr), nil
	}
	return pass("text of %q contains %q", selector, substr), nil
}

// RowCount compares the number of elements matching selector against
// want using op (==, !=, >, >=, <, <=).
func RowCount(ctx context.Context, p PageReader, selector, op string, want int) (Result, error) {
	got, err := p.Count(ctx, selector)
	if err != nil {
		return Result{}, err
	}
	ok, err := compare(got, op, want)
	if err != nil {
		return Result{}, err
	}
	if !ok {
		return fail("%d element(s) match %q, want %s %d", got, selector, op, want), nil
	}
	return pass("%d element(s) match %q (%s %d)", got, selector, op, want), nil
}

// Error banner selectors seen across the application under test.
// noErrorBannerSelectors is a package variable so a future config knob
// can extend it without touching the predicate.
var noErrorBannerSelectors = []string{
	".error-banner",
	".alert-danger",
	".ant-message-error",
	".Toastify__toast--error",
	`[role="alert"].error`,
}

// NoErrorBanner checks none of the known error banner selectors are
// visible on the page.
func NoErrorBanner(ctx context.Context, p PageReader) (Result, error) {
	for _, sel := range noErrorBannerSelectors {
		visible, err := p.ElementVisible(ctx, sel)
		if err != nil {
			return Result{}, err
		}
		if visible {
			text, err := p.Text(ctx, sel)
			if err != nil {
				text = "(unreadable)"
			}
			return fail("error banner %q visible: %s", sel, truncate(text, 120)), nil
		}
	}
	return pass("no error banner visible"), nil
}

// URLPrefix checks the current URL's path starts with prefix. The
// scheme and host are ignored so scenarios stay portable across
// deployments.
func URLPrefix(current, prefix string) Result {
	u, err := url.Parse(current)
	if err != nil {
		return fail("current URL %q does not parse: %v", current, err)
	}
	if !strings.HasPrefix(u.Path, prefix) {
		return fail("current URL path is %q, want prefix %q", u.Path, prefix)
	}
	return pass("url path %q matches %s*", u.Path, prefix)
}

// ResponseStatus checks a probe result's HTTP status.
func ResponseStatus(res probe.Result, want int) Result {
	if res.Status != want {
		return fail("status %d, want %d; body: %s", res.Status, want, truncate(string(res.Body), 200))
	}
	return pass("status %d", want)
}

// JSONArrayAt checks the response body is a JSON object whose named
// top-level field is an array (e.g. the "data" envelope).
func JSONArrayAt(res probe.Result, field string) Result {
	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(res.Body, &envelope); err != nil {
		return fail("body is not a JSON object: %v", err)
	}
	raw, ok := envelope[field]
	if !ok {
		return fail("body has no %q field", field)
	}
	var arr []json.RawMessage
	if err := json.Unmarshal(raw, &arr); err != nil {
		return fail("field %q is not an array", field)
	}
	return pass("field %q is an array of %d element(s)", field, len(arr))
}

func compare(got int, op string, want int) (bool, error) {
	switch op {
	case "==":
		return got == want, nil
	case "!=":
		return got != want, nil
	case ">":
		return got > want, nil
	case ">=":
		return got >= want, nil
	case "<":
		return got < want, nil
	case "<=":
		return got <= want, nil
	default:
		return false, fmt.Errorf("invalid comparator %q", op)
	}
}

func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return s[:n] + "…"
}
