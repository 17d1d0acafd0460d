// Package browser drives headless Chrome over the DevTools protocol.
// One Browser is launched per run; scenarios share it sequentially and
// each gets a fresh Page (tab) with its own event buffer.
package browser

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/chromedp/chromedp"

	"scenic/internal/check"
)

// Options configures how the browser is obtained.
type Options struct {
	Headless  bool
	RemoteURL string // DevTools ws:// endpoint; empty launches a local Chrome
	Width     int
	Height    int
}

// Browser owns the allocator and browser-level chromedp contexts.
type Browser struct {
	ctx     context.Context
	cancels []context.CancelFunc
}

// Launch starts (or attaches to) a Chrome instance. The returned
// Browser must be closed to release the process or connection.
func Launch(ctx context.Context, opts Options) (*Browser, error) {
	check.Assert(ctx != nil, "browser.Launch: context must not be nil")

	if opts.Width == 0 {
		opts.Width = 1920
	}
	if opts.Height == 0 {
		opts.Height = 1080
	}

	var (
		allocCtx    context.Context
		cancelAlloc context.CancelFunc
	)
	if opts.RemoteURL != "" {
		allocCtx, cancelAlloc = chromedp.NewRemoteAllocator(ctx, opts.RemoteURL)
	} else {
		execOpts := append(chromedp.DefaultExecAllocatorOptions[:],
			chromedp.Flag("headless", opts.Headless),
			chromedp.Flag("disable-gpu", true),
			chromedp.WindowSize(opts.Width, opts.Height),
		)
		allocCtx, cancelAlloc = chromedp.NewExecAllocator(ctx, execOpts...)
	}

	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx,
		chromedp.WithLogf(func(format string, args ...any) {
			slog.Debug("chromedp", "msg", fmt.Sprintf(format, args...))
		}),
	)

	// Run a no-op so the browser starts now and a bad endpoint or
	// missing binary fails here instead of mid-scenario.
	if err := chromedp.Run(browserCtx); err != nil {
		cancelBrowser()
		cancelAlloc()
		return nil, fmt.Errorf("start browser: %w", err)
	}

	return &Browser{
		ctx:     browserCtx,
		cancels: []context.CancelFunc{cancelBrowser, cancelAlloc},
	}, nil
}

// NewPage opens a fresh tab with network events enabled and an empty
// event buffer. Close the page when its scenario completes so console
// and network state never leak into the next scenario.
func (b *Browser) NewPage() (*Page, error) {
	pageCtx, cancel := chromedp.NewContext(b.ctx)

	p := &Page{
		ctx:    pageCtx,
		cancel: cancel,
		events: newEventBuffer(),
	}
	p.events.attach(pageCtx)

	if err := p.enableNetwork(); err != nil {
		cancel()
		return nil, fmt.Errorf("enable network events: %w", err)
	}
	return p, nil
}

// Close shuts the browser down.
func (b *Browser) Close() {
	if b == nil {
		return
	}
	if err := chromedp.Cancel(b.ctx); err != nil {
		slog.Debug("browser cancel", "err", err)
	}
	for _, cancel := range b.cancels {
		cancel()
	}
}
