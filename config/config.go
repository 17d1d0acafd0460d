// Package config holds harness configuration for a test run.
//
// Config is stored at $XDG_CONFIG_HOME/scenic/config.yaml (defaults to
// ~/.config/scenic/config.yaml). Every value can be overridden by a
// SCENIC_* environment variable so CI never bakes URLs or credentials
// into scenario files.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Login modes supported by the session helper.
const (
	LoginForm  = "form"  // submit the login form through the browser
	LoginToken = "token" // POST credentials to the token endpoint directly
)

// Duration wraps time.Duration with YAML string parsing ("15s", "2m").
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	parsed, err := time.ParseDuration(value.Value)
	if err != nil {
		return fmt.Errorf("parse duration %q: %w", value.Value, err)
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Credentials identifies the test account used for the whole run.
type Credentials struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// Login describes how a session is acquired before scenarios run.
type Login struct {
	Mode             string `yaml:"mode"`              // form or token
	Route            string `yaml:"route"`             // login page route (form mode)
	TokenPath        string `yaml:"token-path"`        // token endpoint path (token mode)
	UsernameSelector string `yaml:"username-selector"` // form mode selectors
	PasswordSelector string `yaml:"password-selector"`
	SubmitSelector   string `yaml:"submit-selector"`
	SuccessSelector  string `yaml:"success-selector"` // visible once login landed
}

// DockerBrowser configures an optional Docker-provisioned headless Chrome.
type DockerBrowser struct {
	Enabled  bool   `yaml:"enabled"`
	Image    string `yaml:"image"`
	HostPort int    `yaml:"host-port"`
}

// Browser configures how the browser context is obtained.
type Browser struct {
	Headless  bool          `yaml:"headless"`
	RemoteURL string        `yaml:"remote-url,omitempty"` // DevTools ws:// endpoint
	Docker    DockerBrowser `yaml:"docker"`
	Width     int           `yaml:"width"`
	Height    int           `yaml:"height"`
}

// Config is the full harness configuration.
type Config struct {
	BaseURL         string      `yaml:"base-url"` // frontend under test
	APIURL          string      `yaml:"api-url"`  // backend API
	Credentials     Credentials `yaml:"credentials"`
	Login           Login       `yaml:"login"`
	Browser         Browser     `yaml:"browser"`
	ScenarioDir     string      `yaml:"scenario-dir"`
	ArtifactsDir    string      `yaml:"artifacts-dir"`
	ScenarioTimeout Duration    `yaml:"scenario-timeout"`
	NavigateTimeout Duration    `yaml:"navigate-timeout"`
}

// Default returns a Config with every optional field filled in.
func Default() *Config {
	return &Config{
		Login: Login{
			Mode:             LoginForm,
			Route:            "/login",
			TokenPath:        "/api/auth/login",
			UsernameSelector: `input[name="username"]`,
			PasswordSelector: `input[name="password"]`,
			SubmitSelector:   `button[type="submit"]`,
			SuccessSelector:  `.dashboard`,
		},
		Browser: Browser{
			Headless: true,
			Width:    1920,
			Height:   1080,
			Docker: DockerBrowser{
				Image:    "chromedp/headless-shell:latest",
				HostPort: 9222,
			},
		},
		ScenarioDir:     "scenarios",
		ArtifactsDir:    "artifacts",
		ScenarioTimeout: Duration(2 * time.Minute),
		NavigateTimeout: Duration(15 * time.Second),
	}
}

// Path returns the config file location. It respects XDG_CONFIG_HOME,
// falling back to ~/.config/scenic/config.yaml.
func Path() string {
	dir := os.Getenv("XDG_CONFIG_HOME")
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return filepath.Join(".config", "scenic", "config.yaml")
		}
		dir = filepath.Join(home, ".config")
	}
	return filepath.Join(dir, "scenic", "config.yaml")
}

// Load reads the config file at path, or Path() when path is empty, then
// applies SCENIC_* environment overrides. A missing file is not an error;
// defaults plus environment still produce a usable Config.
func Load(path string) (*Config, error) {
	if path == "" {
		path = Path()
	}

	cfg := Default()
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	case errors.Is(err, os.ErrNotExist):
		// defaults + env only
	default:
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg.applyEnv()
	return cfg, nil
}

// Save writes the config to disk, creating directories as needed.
func (c *Config) Save(path string) error {
	if path == "" {
		path = Path()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// Validate checks the fields every run needs.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.BaseURL) == "" {
		return fmt.Errorf("base-url is required (SCENIC_BASE_URL)")
	}
	if strings.TrimSpace(c.APIURL) == "" {
		return fmt.Errorf("api-url is required (SCENIC_API_URL)")
	}
	if c.Credentials.Username == "" || c.Credentials.Password == "" {
		return fmt.Errorf("credentials are required (SCENIC_USERNAME, SCENIC_PASSWORD)")
	}
	switch c.Login.Mode {
	case LoginForm, LoginToken:
	default:
		return fmt.Errorf("invalid login mode %q", c.Login.Mode)
	}
	return nil
}

func (c *Config) applyEnv() {
	setString := func(dst *string, key string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	setString(&c.BaseURL, "SCENIC_BASE_URL")
	setString(&c.APIURL, "SCENIC_API_URL")
	setString(&c.Credentials.Username, "SCENIC_USERNAME")
	setString(&c.Credentials.Password, "SCENIC_PASSWORD")
	setString(&c.ScenarioDir, "SCENIC_SCENARIO_DIR")
	setString(&c.ArtifactsDir, "SCENIC_ARTIFACTS_DIR")
	setString(&c.Browser.RemoteURL, "SCENIC_BROWSER_URL")

	if v := os.Getenv("SCENIC_HEADLESS"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.Browser.Headless = b
		}
	}
}
