// Package probe issues direct HTTP calls against the backend API,
// bypassing the browser, to validate contract shape independent of
// rendering. A probe never retries: a failed call is a failed probe,
// and retry policy belongs to the scenario author.
package probe

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// NetworkError reports a transport-level probe failure (dial, timeout,
// malformed response). An HTTP error status is NOT a NetworkError; the
// status is data for assertions.
type NetworkError struct {
	Method string
	URL    string
	Err    error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("probe %s %s: %v", e.Method, e.URL, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// IsNetworkError reports whether err is a probe transport failure.
func IsNetworkError(err error) bool {
	var ne *NetworkError
	return errors.As(err, &ne)
}

// Result is the observed response of one probe call.
type Result struct {
	Status int
	Body   []byte
	Header http.Header
}

const maxBodyBytes = 4 << 20 // plenty for list endpoints, bounded for audit logs

// Client calls the backend API with the run's session credentials.
type Client struct {
	baseURL    string
	token      string
	cookies    []*http.Cookie
	httpClient *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithToken sets a bearer token attached to every call.
func WithToken(token string) Option {
	return func(c *Client) { c.token = strings.TrimSpace(token) }
}

// WithCookies attaches session cookies captured from the browser.
func WithCookies(cookies []*http.Cookie) Option {
	return func(c *Client) { c.cookies = cookies }
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// New creates a probe client for the API base URL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Call issues a single HTTP request. Path is joined to the base URL.
// JSON is assumed for non-empty bodies.
func (c *Client) Call(ctx context.Context, method, path string, body []byte) (Result, error) {
	url := c.baseURL + "/" + strings.TrimLeft(path, "/")

	var reader io.Reader
	if len(body) > 0 {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return Result{}, &NetworkError{Method: method, URL: url, Err: err}
	}
	if len(body) > 0 {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	for _, ck := range c.cookies {
		req.AddCookie(ck)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Result{}, &NetworkError{Method: method, URL: url, Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return Result{}, &NetworkError{Method: method, URL: url, Err: fmt.Errorf("read body: %w", err)}
	}

	return Result{Status: resp.StatusCode, Body: data, Header: resp.Header}, nil
}
