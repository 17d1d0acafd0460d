package assert

import (
	"context"
	"errors"
	"strings"
	"testing"

	"scenic/internal/probe"
)

// fakePage is a canned-answer PageReader.
type fakePage struct {
	visible map[string]bool
	text    map[string]string
	count   map[string]int
	err     error
}

func (f *fakePage) ElementVisible(_ context.Context, sel string) (bool, error) {
	return f.visible[sel], f.err
}

func (f *fakePage) Text(_ context.Context, sel string) (string, error) {
	return f.text[sel], f.err
}

func (f *fakePage) Count(_ context.Context, sel string) (int, error) {
	return f.count[sel], f.err
}

func TestElementExists(t *testing.T) {
	p := &fakePage{visible: map[string]bool{".dashboard": true}}

	res, err := ElementExists(t.Context(), p, ".dashboard")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.OK {
		t.Fatalf("expected pass: %s", res.Detail)
	}

	res, err = ElementExists(t.Context(), p, ".missing")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.OK {
		t.Fatal("expected failure for missing element")
	}
	if !strings.Contains(res.Detail, ".missing") {
		t.Fatalf("detail should name the selector: %q", res.Detail)
	}
}

func TestElementExistsPropagatesReaderError(t *testing.T) {
	p := &fakePage{err: errors.New("target crashed")}
	_, err := ElementExists(t.Context(), p, ".x")
	if err == nil {
		t.Fatal("reader errors must propagate, not become failures")
	}
}

func TestTextContains(t *testing.T) {
	p := &fakePage{text: map[string]string{".page-title": "Stock Overview"}}

	res, err := TextContains(t.Context(), p, ".page-title", "Stock")
	if err != nil || !res.OK {
		t.Fatalf("expected pass, got res=%+v err=%v", res, err)
	}

	res, err = TextContains(t.Context(), p, ".page-title", "Sales")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.OK {
		t.Fatal("expected failure")
	}
	if !strings.Contains(res.Detail, "Stock Overview") {
		t.Fatalf("detail should quote the actual text: %q", res.Detail)
	}
}

func TestRowCount(t *testing.T) {
	p := &fakePage{count: map[string]int{"tbody tr": 5}}

	cases := []struct {
		op   string
		want int
		ok   bool
	}{
		{"==", 5, true},
		{"!=", 5, false},
		{">=", 1, true},
		{">", 5, false},
		{"<", 10, true},
		{"<=", 4, false},
	}
	for _, tc := range cases {
		res, err := RowCount(t.Context(), p, "tbody tr", tc.op, tc.want)
		if err != nil {
			t.Fatalf("%s %d: %v", tc.op, tc.want, err)
		}
		if res.OK != tc.ok {
			t.Fatalf("%s %d: got %v want %v (%s)", tc.op, tc.want, res.OK, tc.ok, res.Detail)
		}
	}

	if _, err := RowCount(t.Context(), p, "tbody tr", "~", 1); err == nil {
		t.Fatal("expected error for invalid comparator")
	}
}

func TestNoErrorBanner(t *testing.T) {
	clean := &fakePage{}
	res, err := NoErrorBanner(t.Context(), clean)
	if err != nil || !res.OK {
		t.Fatalf("expected pass, got res=%+v err=%v", res, err)
	}

	dirty := &fakePage{
		visible: map[string]bool{".alert-danger": true},
		text:    map[string]string{".alert-danger": "Failed to load stocks"},
	}
	res, err = NoErrorBanner(t.Context(), dirty)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.OK {
		t.Fatal("expected failure when a banner is visible")
	}
	if !strings.Contains(res.Detail, "Failed to load stocks") {
		t.Fatalf("detail should include the banner text: %q", res.Detail)
	}
}

func TestURLPrefix(t *testing.T) {
	ok := URLPrefix("http://app.local/dashboard/home?tab=1", "/dashboard")
	if !ok.OK {
		t.Fatalf("expected pass: %s", ok.Detail)
	}

	miss := URLPrefix("http://app.local/login", "/dashboard")
	if miss.OK {
		t.Fatal("expected failure for wrong path")
	}
	if !strings.Contains(miss.Detail, "/login") {
		t.Fatalf("detail should include the actual path: %q", miss.Detail)
	}
}

func TestResponseStatus(t *testing.T) {
	res := ResponseStatus(probe.Result{Status: 200}, 200)
	if !res.OK {
		t.Fatalf("expected pass: %s", res.Detail)
	}

	res = ResponseStatus(probe.Result{Status: 500, Body: []byte("internal")}, 200)
	if res.OK {
		t.Fatal("expected failure")
	}
	if !strings.Contains(res.Detail, "500") || !strings.Contains(res.Detail, "internal") {
		t.Fatalf("detail should include status and body: %q", res.Detail)
	}
}

func TestJSONArrayAt(t *testing.T) {
	ok := JSONArrayAt(probe.Result{Body: []byte(`{"data":[{"id":1},{"id":2}]}`)}, "data")
	if !ok.OK {
		t.Fatalf("expected pass: %s", ok.Detail)
	}

	missing := JSONArrayAt(probe.Result{Body: []byte(`{"items":[]}`)}, "data")
	if missing.OK {
		t.Fatal("expected failure for missing field")
	}

	notArray := JSONArrayAt(probe.Result{Body: []byte(`{"data":{"id":1}}`)}, "data")
	if notArray.OK {
		t.Fatal("expected failure for non-array field")
	}

	notJSON := JSONArrayAt(probe.Result{Body: []byte(`<html>`)}, "data")
	if notJSON.OK {
		t.Fatal("expected failure for non-JSON body")
	}
}
