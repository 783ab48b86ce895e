package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"sigs.k8s.io/yaml"
)

const (
	FormatJSON = "json"
	FormatYAML = "yaml"
)

// FileName builds <dir>/<run-id>-<workload>.<ext>; an empty workload means
// the whole catalog was measured.
func FileName(dir, runID, workload, format string) string {
	if workload == "" {
		workload = "all"
	}
	ext := FormatJSON
	if format == FormatYAML {
		ext = FormatYAML
	}
	return filepath.Join(dir, fmt.Sprintf("%s-%s.%s", runID, workload, ext))
}

func WriteJSON(path string, payload any) error {
	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}
	return writeFile(path, append(data, '\n'))
}

func WriteYAML(path string, payload any) error {
	data, err := yaml.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}
	return writeFile(path, data)
}

func writeFile(path string, data []byte) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create output dir: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write report %s: %w", path, err)
	}
	return nil
}
