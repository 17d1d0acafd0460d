package browser

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/chromedp/chromedp"

	"scenic/internal/scenario"
)

// NavigationError reports a page that never reached its settled state.
type NavigationError struct {
	Route string
	Err   error
}

func (e *NavigationError) Error() string {
	return fmt.Sprintf("navigate %s: %v", e.Route, e.Err)
}

func (e *NavigationError) Unwrap() error { return e.Err }

// IsNavigationError reports whether err came from a navigation wait.
func IsNavigationError(err error) bool {
	var ne *NavigationError
	return errors.As(err, &ne)
}

const (
	networkIdlePollInterval = 100 * time.Millisecond
	defaultNetworkIdle      = 500 * time.Millisecond
)

// Page is one browser tab. All methods honor ctx cancellation; reads
// never mutate the page.
type Page struct {
	ctx    context.Context
	cancel context.CancelFunc
	events *eventBuffer
}

// Close discards the tab and everything buffered for it.
func (p *Page) Close() {
	if p == nil {
		return
	}
	p.cancel()
}

// DrainEvents returns and clears the console/network evidence captured
// since the last drain.
func (p *Page) DrainEvents() Events {
	return p.events.Drain()
}

func (p *Page) enableNetwork() error {
	return chromedp.Run(p.ctx, enableNetworkAction())
}

// Goto drives the tab to baseURL+route and blocks until the wait
// policy is satisfied. A nil policy waits for network idle with the
// fallback timeout. The DOM is settled when Goto returns.
func (p *Page) Goto(ctx context.Context, baseURL, route string, wp *scenario.WaitPolicy, fallbackTimeout time.Duration) error {
	url := strings.TrimRight(baseURL, "/") + "/" + strings.TrimLeft(route, "/")

	timeout := fallbackTimeout
	if wp != nil && wp.Timeout > 0 {
		timeout = wp.Timeout
	}
	tctx, cancel := context.WithTimeout(p.run(ctx), timeout)
	defer cancel()

	if err := chromedp.Run(tctx, chromedp.Navigate(url)); err != nil {
		return &NavigationError{Route: route, Err: err}
	}

	if wp != nil && wp.Selector != "" {
		if err := chromedp.Run(tctx, chromedp.WaitVisible(wp.Selector, chromedp.ByQuery)); err != nil {
			return &NavigationError{Route: route, Err: fmt.Errorf("wait for %q: %w", wp.Selector, err)}
		}
		return nil
	}

	idle := defaultNetworkIdle
	if wp != nil && wp.NetworkIdle > 0 {
		idle = wp.NetworkIdle
	}
	if err := p.waitNetworkIdle(tctx, idle); err != nil {
		return &NavigationError{Route: route, Err: err}
	}
	return nil
}

// waitNetworkIdle polls the event buffer until no request has been in
// flight for the idle window. Condition + timeout + poll interval, not
// a fixed sleep.
func (p *Page) waitNetworkIdle(ctx context.Context, idle time.Duration) error {
	ticker := time.NewTicker(networkIdlePollInterval)
	defer ticker.Stop()
	for {
		if p.events.idle(idle) {
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("network idle: %w", ctx.Err())
		case <-ticker.C:
		}
	}
}

// Fill types value into the field matching selector, replacing any
// existing content.
func (p *Page) Fill(ctx context.Context, selector, value string) error {
	return chromedp.Run(p.run(ctx),
		chromedp.WaitVisible(selector, chromedp.ByQuery),
		chromedp.Clear(selector, chromedp.ByQuery),
		chromedp.SendKeys(selector, value, chromedp.ByQuery),
	)
}

// Click clicks the first visible element matching selector.
func (p *Page) Click(ctx context.Context, selector string) error {
	return chromedp.Run(p.run(ctx),
		chromedp.WaitVisible(selector, chromedp.ByQuery),
		chromedp.Click(selector, chromedp.ByQuery),
	)
}

// ElementVisible reports whether selector matches an element that is
// actually rendered. It does not wait; assertions observe the page as
// it is.
func (p *Page) ElementVisible(ctx context.Context, selector string) (bool, error) {
	js := fmt.Sprintf(`(() => {
		const el = document.querySelector(%s);
		if (!el) return false;
		const style = getComputedStyle(el);
		return style.display !== 'none' && style.visibility !== 'hidden' && el.getClientRects().length > 0;
	})()`, jsString(selector))

	var visible bool
	if err := chromedp.Run(p.run(ctx), chromedp.Evaluate(js, &visible)); err != nil {
		return false, fmt.Errorf("evaluate visibility of %q: %w", selector, err)
	}
	return visible, nil
}

// Text returns the text content of the first element matching
// selector, or "" when no element matches.
func (p *Page) Text(ctx context.Context, selector string) (string, error) {
	js := fmt.Sprintf(`(() => {
		const el = document.querySelector(%s);
		return el ? el.textContent : '';
	})()`, jsString(selector))

	var text string
	if err := chromedp.Run(p.run(ctx), chromedp.Evaluate(js, &text)); err != nil {
		return "", fmt.Errorf("read text of %q: %w", selector, err)
	}
	return text, nil
}

// Count returns the number of elements matching selector.
func (p *Page) Count(ctx context.Context, selector string) (int, error) {
	js := fmt.Sprintf(`document.querySelectorAll(%s).length`, jsString(selector))

	var count int
	if err := chromedp.Run(p.run(ctx), chromedp.Evaluate(js, &count)); err != nil {
		return 0, fmt.Errorf("count %q: %w", selector, err)
	}
	return count, nil
}

// Location returns the tab's current URL.
func (p *Page) Location(ctx context.Context) (string, error) {
	var url string
	if err := chromedp.Run(p.run(ctx), chromedp.Location(&url)); err != nil {
		return "", fmt.Errorf("read location: %w", err)
	}
	return url, nil
}

// Screenshot captures the full page as PNG at path.
func (p *Page) Screenshot(ctx context.Context, path string) error {
	var buf []byte
	if err := chromedp.Run(p.run(ctx), chromedp.FullScreenshot(&buf, 90)); err != nil {
		return fmt.Errorf("capture screenshot: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create screenshot dir: %w", err)
	}
	if err := os.WriteFile(path, buf, 0o644); err != nil {
		return fmt.Errorf("write screenshot: %w", err)
	}
	return nil
}

// run merges the caller's deadline/cancellation with the tab context.
// chromedp actions must run on the tab context, but the step deadline
// arrives on ctx; the merged context honors both.
func (p *Page) run(ctx context.Context) context.Context {
	merged, cancel := context.WithCancel(p.ctx)
	if deadline, ok := ctx.Deadline(); ok {
		merged, cancel = context.WithDeadline(p.ctx, deadline)
	}
	go func() {
		select {
		case <-ctx.Done():
			cancel()
		case <-merged.Done():
		}
	}()
	return merged
}

// jsString safely embeds s as a JavaScript string literal.
func jsString(s string) string {
	data, _ := json.Marshal(s)
	return string(data)
}
