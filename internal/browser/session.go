package browser

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/chromedp/cdproto/storage"
	"github.com/chromedp/chromedp"

	"scenic/internal/probe"
	"scenic/internal/scenario"
)

// AuthError reports a failed session acquisition. Nothing runs without
// a session, so the run aborts on this error.
type AuthError struct {
	Mode string
	Err  error
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("acquire session (%s): %v", e.Mode, e.Err)
}

func (e *AuthError) Unwrap() error { return e.Err }

// IsAuthError reports whether err is a session acquisition failure.
func IsAuthError(err error) bool {
	var ae *AuthError
	return errors.As(err, &ae)
}

// Session is the capability every scenario shares. Read-only after
// acquisition: scenarios must never mutate it.
type Session struct {
	Token   string
	Cookies []*http.Cookie
}

// LoginSpec describes how to obtain a session for the run.
type LoginSpec struct {
	Mode    string // "form" or "token"
	BaseURL string // frontend origin (form mode)
	APIURL  string // backend origin (token mode)

	Route            string // login page route
	TokenPath        string // token endpoint path
	UsernameSelector string
	PasswordSelector string
	SubmitSelector   string
	SuccessSelector  string // visible once the post-login page landed

	Username string
	Password string
	Timeout  time.Duration
}

// localStorage keys the application is known to park tokens under.
var tokenStorageKeys = []string{"access_token", "token", "auth_token"}

// AcquireSession performs the login flow once per run. Form mode
// drives the browser through the login page and lifts the cookie jar
// and any stored token; token mode posts credentials straight to the
// token endpoint. Either way a failure is an AuthError.
func AcquireSession(ctx context.Context, page *Page, spec LoginSpec) (*Session, error) {
	if spec.Timeout <= 0 {
		spec.Timeout = 15 * time.Second
	}

	switch spec.Mode {
	case "token":
		return acquireTokenSession(ctx, spec)
	case "form":
		if page == nil {
			return nil, &AuthError{Mode: spec.Mode, Err: fmt.Errorf("form login requires a page")}
		}
		return acquireFormSession(ctx, page, spec)
	default:
		return nil, &AuthError{Mode: spec.Mode, Err: fmt.Errorf("unknown login mode")}
	}
}

func acquireFormSession(ctx context.Context, page *Page, spec LoginSpec) (*Session, error) {
	wp := &scenario.WaitPolicy{Selector: spec.UsernameSelector, Timeout: spec.Timeout}
	if err := page.Goto(ctx, spec.BaseURL, spec.Route, wp, spec.Timeout); err != nil {
		return nil, &AuthError{Mode: spec.Mode, Err: err}
	}

	if err := page.Fill(ctx, spec.UsernameSelector, spec.Username); err != nil {
		return nil, &AuthError{Mode: spec.Mode, Err: fmt.Errorf("fill username: %w", err)}
	}
	if err := page.Fill(ctx, spec.PasswordSelector, spec.Password); err != nil {
		return nil, &AuthError{Mode: spec.Mode, Err: fmt.Errorf("fill password: %w", err)}
	}
	if err := page.Click(ctx, spec.SubmitSelector); err != nil {
		return nil, &AuthError{Mode: spec.Mode, Err: fmt.Errorf("submit login: %w", err)}
	}

	// The expected post-login navigation must land within the timeout.
	tctx, cancel := context.WithTimeout(page.run(ctx), spec.Timeout)
	defer cancel()
	if err := chromedp.Run(tctx, chromedp.WaitVisible(spec.SuccessSelector, chromedp.ByQuery)); err != nil {
		return nil, &AuthError{Mode: spec.Mode, Err: fmt.Errorf("post-login wait for %q: %w", spec.SuccessSelector, err)}
	}

	sess := &Session{}
	var lifted string
	for _, key := range tokenStorageKeys {
		js := fmt.Sprintf(`window.localStorage.getItem(%s) || ''`, jsString(key))
		if err := chromedp.Run(tctx, chromedp.Evaluate(js, &lifted)); err != nil {
			return nil, &AuthError{Mode: spec.Mode, Err: fmt.Errorf("read stored token: %w", err)}
		}
		if lifted != "" {
			sess.Token = lifted
			break
		}
	}

	cookies, err := liftCookies(tctx)
	if err != nil {
		return nil, &AuthError{Mode: spec.Mode, Err: err}
	}
	sess.Cookies = cookies

	if sess.Token == "" && len(sess.Cookies) == 0 {
		return nil, &AuthError{Mode: spec.Mode, Err: fmt.Errorf("login landed but produced no token or cookies")}
	}
	return sess, nil
}

func acquireTokenSession(ctx context.Context, spec LoginSpec) (*Session, error) {
	body, err := json.Marshal(map[string]string{
		"username": spec.Username,
		"password": spec.Password,
	})
	if err != nil {
		return nil, &AuthError{Mode: spec.Mode, Err: err}
	}

	tctx, cancel := context.WithTimeout(ctx, spec.Timeout)
	defer cancel()

	res, err := probe.New(spec.APIURL).Call(tctx, http.MethodPost, spec.TokenPath, body)
	if err != nil {
		return nil, &AuthError{Mode: spec.Mode, Err: err}
	}
	if res.Status < 200 || res.Status > 299 {
		return nil, &AuthError{Mode: spec.Mode, Err: fmt.Errorf("token endpoint returned %d", res.Status)}
	}

	token := extractToken(res.Body)
	if token == "" {
		return nil, &AuthError{Mode: spec.Mode, Err: fmt.Errorf("token endpoint returned no recognizable token")}
	}
	return &Session{Token: token}, nil
}

// extractToken digs a bearer token out of a login response, accepting
// the flat and enveloped shapes the backend has used over time.
func extractToken(body []byte) string {
	var flat map[string]json.RawMessage
	if err := json.Unmarshal(body, &flat); err != nil {
		return ""
	}
	read := func(m map[string]json.RawMessage) string {
		for _, key := range tokenStorageKeys {
			raw, ok := m[key]
			if !ok {
				continue
			}
			var s string
			if err := json.Unmarshal(raw, &s); err == nil && s != "" {
				return s
			}
		}
		return ""
	}
	if tok := read(flat); tok != "" {
		return tok
	}
	if data, ok := flat["data"]; ok {
		var nested map[string]json.RawMessage
		if err := json.Unmarshal(data, &nested); err == nil {
			return read(nested)
		}
	}
	return ""
}

func liftCookies(ctx context.Context) ([]*http.Cookie, error) {
	var out []*http.Cookie
	err := chromedp.Run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		cookies, err := storage.GetCookies().Do(ctx)
		if err != nil {
			return fmt.Errorf("read cookies: %w", err)
		}
		for _, c := range cookies {
			out = append(out, &http.Cookie{
				Name:   c.Name,
				Value:  c.Value,
				Path:   c.Path,
				Domain: c.Domain,
			})
		}
		return nil
	}))
	if err != nil {
		return nil, err
	}
	return out, nil
}
