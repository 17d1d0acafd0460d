// Package preflight checks the environment before a run starts:
// target reachability and host clock skew. Findings are advisory —
// they are reported, but never stop a run, because an unreachable
// target should surface as scenario verdicts, not a refusal to start.
package preflight

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/beevik/ntp"
)

const (
	defaultNTPPool      = "pool.ntp.org"
	defaultNTPThreshold = 500 * time.Millisecond
	defaultHTTPTimeout  = 10 * time.Second
)

// Finding is one preflight observation.
type Finding struct {
	Name   string
	OK     bool
	Detail string
}

// Checker runs the preflight checks. The query and probe functions are
// injectable so tests never reach the network.
type Checker struct {
	BaseURL string
	APIURL  string

	pool      string
	threshold time.Duration
	client    *http.Client

	QueryFunc func(pool string) (*ntp.Response, error)
}

// NewChecker configures checks against the given frontend and API URLs.
func NewChecker(baseURL, apiURL string) *Checker {
	return &Checker{
		BaseURL:   baseURL,
		APIURL:    apiURL,
		pool:      defaultNTPPool,
		threshold: defaultNTPThreshold,
		client:    &http.Client{Timeout: defaultHTTPTimeout},
	}
}

// Run executes every check and returns all findings. It never returns
// an error: a failed check is a finding with OK=false.
func (c *Checker) Run(ctx context.Context) []Finding {
	findings := make([]Finding, 0, 3)
	findings = append(findings, c.reach(ctx, "frontend", c.BaseURL))
	if c.APIURL != "" && c.APIURL != c.BaseURL {
		findings = append(findings, c.reach(ctx, "api", c.APIURL))
	}
	findings = append(findings, c.clockSkew())
	return findings
}

// reach considers any HTTP response — including 4xx/5xx — proof the
// target is up; only transport failures count as unreachable.
func (c *Checker) reach(ctx context.Context, name, url string) Finding {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Finding{Name: name, Detail: fmt.Sprintf("%s: %v", url, err)}
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return Finding{Name: name, Detail: fmt.Sprintf("%s unreachable: %v", url, err)}
	}
	resp.Body.Close()
	return Finding{Name: name, OK: true, Detail: fmt.Sprintf("%s responded %d", url, resp.StatusCode)}
}

func (c *Checker) clockSkew() Finding {
	query := c.QueryFunc
	if query == nil {
		query = ntp.Query
	}
	resp, err := query(c.pool)
	if err != nil {
		return Finding{Name: "clock", Detail: fmt.Sprintf("ntp query %s: %v", c.pool, err)}
	}
	offset := resp.ClockOffset
	if offset.Abs() >= c.threshold {
		return Finding{Name: "clock", Detail: fmt.Sprintf("host clock is %s off; token expiry checks may misbehave", offset)}
	}
	return Finding{Name: "clock", OK: true, Detail: fmt.Sprintf("offset %s", offset)}
}
