package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Login.Mode != LoginForm {
		t.Fatalf("unexpected login mode: %q", cfg.Login.Mode)
	}
	if !cfg.Browser.Headless {
		t.Fatal("expected headless default")
	}
	if cfg.ScenarioTimeout.Std() != 2*time.Minute {
		t.Fatalf("unexpected scenario timeout: %v", cfg.ScenarioTimeout.Std())
	}
}

func TestLoadFileAndEnvOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	body := `base-url: http://localhost:3000
api-url: http://localhost:8000/api
credentials:
  username: file-user
  password: file-pass
scenario-timeout: 30s
`
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	t.Setenv("SCENIC_USERNAME", "env-user")
	t.Setenv("SCENIC_HEADLESS", "false")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.BaseURL != "http://localhost:3000" {
		t.Fatalf("unexpected base url: %q", cfg.BaseURL)
	}
	if cfg.Credentials.Username != "env-user" {
		t.Fatalf("env should win over file, got %q", cfg.Credentials.Username)
	}
	if cfg.Credentials.Password != "file-pass" {
		t.Fatalf("unexpected password: %q", cfg.Credentials.Password)
	}
	if cfg.Browser.Headless {
		t.Fatal("SCENIC_HEADLESS=false should disable headless")
	}
	if cfg.ScenarioTimeout.Std() != 30*time.Second {
		t.Fatalf("unexpected timeout: %v", cfg.ScenarioTimeout.Std())
	}
}

func TestValidate(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error without base-url")
	}

	cfg.BaseURL = "http://localhost:3000"
	cfg.APIURL = "http://localhost:8000/api"
	cfg.Credentials = Credentials{Username: "admin", Password: "secret"}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}

	cfg.Login.Mode = "oauth"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for unknown login mode")
	}
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "config.yaml")
	cfg := Default()
	cfg.BaseURL = "http://app.test"
	if err := cfg.Save(path); err != nil {
		t.Fatalf("save: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if loaded.BaseURL != "http://app.test" {
		t.Fatalf("round trip lost base-url: %q", loaded.BaseURL)
	}
}
