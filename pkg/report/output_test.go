package report

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"k8s-coldstart-benchmark/pkg/coldstart"
)

func TestWriteJSON(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "out.json")
	payload := map[string]any{"ok": true}

	if err := WriteJSON(path, payload); err != nil {
		t.Fatalf("WriteJSON failed: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read output: %v", err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if decoded["ok"] != true {
		t.Fatalf("expected ok=true, got %v", decoded["ok"])
	}
}

func TestWriteYAMLKeepsStateVariants(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.yaml")
	payload := map[string]any{
		"sample": coldstart.StateSample{ElapsedMs: 900, State: coldstart.Waiting{Reason: "ContainerCreating"}},
	}
	if err := WriteYAML(path, payload); err != nil {
		t.Fatalf("WriteYAML failed: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read output: %v", err)
	}
	out := string(data)
	for _, want := range []string{"waiting:", "reason: ContainerCreating", "elapsed_ms: 900"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in output, got:\n%s", want, out)
		}
	}
}

func TestFileName(t *testing.T) {
	cases := []struct {
		workload, format, want string
	}{
		{"ratings", "json", filepath.Join("results", "run-1-ratings.json")},
		{"", "json", filepath.Join("results", "run-1-all.json")},
		{"", "yaml", filepath.Join("results", "run-1-all.yaml")},
		{"details", "", filepath.Join("results", "run-1-details.json")},
	}
	for _, tc := range cases {
		if got := FileName("results", "run-1", tc.workload, tc.format); got != tc.want {
			t.Fatalf("expected %q, got %q", tc.want, got)
		}
	}
}
