// Package report persists a finished run as JSON and HTML artifacts.
// Emission is best-effort: a write failure is logged by the caller and
// never changes the run's verdicts or exit code.
package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"scenic/internal/runner"
)

const (
	jsonName = "report.json"
	htmlName = "report.html"
)

// WriteJSON writes the machine-readable report under <dir>/<run-id>/
// and returns the file path.
func WriteJSON(dir string, rep *runner.Report) (string, error) {
	out := filepath.Join(dir, rep.ID)
	if err := os.MkdirAll(out, 0o755); err != nil {
		return "", fmt.Errorf("create report dir: %w", err)
	}

	data, err := json.MarshalIndent(rep, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode report: %w", err)
	}

	path := filepath.Join(out, jsonName)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write report: %w", err)
	}
	return path, nil
}

// ReadJSON loads a previously written report.
func ReadJSON(path string) (*runner.Report, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read report: %w", err)
	}
	var rep runner.Report
	if err := json.Unmarshal(data, &rep); err != nil {
		return nil, fmt.Errorf("decode report %s: %w", path, err)
	}
	return &rep, nil
}
