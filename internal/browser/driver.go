package browser

import (
	"context"
	"time"

	"scenic/internal/scenario"
)

// PageDriver binds a Page to a base URL and default navigation
// deadline. It satisfies the runner's step-execution interface.
type PageDriver struct {
	page       *Page
	baseURL    string
	navTimeout time.Duration
}

// NewPageDriver wraps an open tab for one scenario.
func NewPageDriver(page *Page, baseURL string, navTimeout time.Duration) *PageDriver {
	return &PageDriver{page: page, baseURL: baseURL, navTimeout: navTimeout}
}

func (d *PageDriver) Navigate(ctx context.Context, route string, wp *scenario.WaitPolicy) error {
	return d.page.Goto(ctx, d.baseURL, route, wp, d.navTimeout)
}

func (d *PageDriver) Fill(ctx context.Context, selector, value string) error {
	return d.page.Fill(ctx, selector, value)
}

func (d *PageDriver) Click(ctx context.Context, selector string) error {
	return d.page.Click(ctx, selector)
}

func (d *PageDriver) ElementVisible(ctx context.Context, selector string) (bool, error) {
	return d.page.ElementVisible(ctx, selector)
}

func (d *PageDriver) Text(ctx context.Context, selector string) (string, error) {
	return d.page.Text(ctx, selector)
}

func (d *PageDriver) Count(ctx context.Context, selector string) (int, error) {
	return d.page.Count(ctx, selector)
}

func (d *PageDriver) Location(ctx context.Context) (string, error) {
	return d.page.Location(ctx)
}

func (d *PageDriver) Screenshot(ctx context.Context, path string) error {
	return d.page.Screenshot(ctx, path)
}

// Evidence drains the tab's buffered console errors and failed
// requests so each scenario reports only its own noise.
func (d *PageDriver) Evidence() string {
	return d.page.DrainEvents().Summary()
}
