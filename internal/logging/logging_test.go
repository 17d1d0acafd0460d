package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

func TestConfigureRejectsUnknownLevel(t *testing.T) {
	if err := Configure("verbose"); err == nil {
		t.Fatal("expected error for unknown level")
	}
}

func TestConfigureWriterRejectsUnknownFormat(t *testing.T) {
	var buf bytes.Buffer
	if err := ConfigureWriter(&buf, LevelInfo, "xml"); err == nil {
		t.Fatal("expected error for unknown format")
	}
}

func TestConfigureWriterJSONEmitsJSON(t *testing.T) {
	var buf bytes.Buffer
	if err := ConfigureWriter(&buf, LevelInfo, FormatJSON); err != nil {
		t.Fatalf("configure: %v", err)
	}
	slog.Info("probe", "scenario", "login")

	line := strings.TrimSpace(buf.String())
	var entry map[string]any
	if err := json.Unmarshal([]byte(line), &entry); err != nil {
		t.Fatalf("expected JSON log line, got %q: %v", line, err)
	}
	if entry["msg"] != "probe" {
		t.Fatalf("unexpected msg: %v", entry["msg"])
	}
}

func TestConfigureWriterRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	if err := ConfigureWriter(&buf, LevelWarn, FormatText); err != nil {
		t.Fatalf("configure: %v", err)
	}
	slog.Info("dropped")
	slog.Warn("kept")

	out := buf.String()
	if strings.Contains(out, "dropped") {
		t.Fatalf("info line should be filtered: %q", out)
	}
	if !strings.Contains(out, "kept") {
		t.Fatalf("warn line missing: %q", out)
	}
}
