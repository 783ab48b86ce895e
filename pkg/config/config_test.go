package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatalf("expected error for an explicit missing file")
	}

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Namespace != "bookinfo" {
		t.Errorf("Namespace = %v, want bookinfo", cfg.Namespace)
	}
	if cfg.Sidecar != "istio-proxy" {
		t.Errorf("Sidecar = %v, want istio-proxy", cfg.Sidecar)
	}
	if cfg.Restart.ReadyTimeout != 120*time.Second {
		t.Errorf("Restart.ReadyTimeout = %v, want 120s", cfg.Restart.ReadyTimeout)
	}
	if cfg.Restart.Cooldown != 10*time.Second {
		t.Errorf("Restart.Cooldown = %v, want 10s", cfg.Restart.Cooldown)
	}
	if cfg.Poll.Interval != time.Second || cfg.Poll.Iterations != 120 {
		t.Errorf("Poll = %+v, want 1s x 120", cfg.Poll)
	}
	if !cfg.Watch.Enabled {
		t.Errorf("Watch.Enabled = false, want true")
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}

	catalog, err := cfg.Catalog()
	if err != nil {
		t.Fatalf("Catalog() error = %v", err)
	}
	if got := len(catalog.Names()); got != 4 {
		t.Errorf("default catalog size = %d, want 4", got)
	}
}

func TestLoad_WithConfigFile(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	configContent := `
context: kind-mesh
namespace: shop
sidecar: linkerd-proxy
workloads:
  - name: frontend
  - name: cart
    selector: app=cart,tier=backend
    deployment: cart-v2
restart:
  strategy: scale
  ready_timeout: 45s
  cooldown: 0s
output:
  format: yaml
elasticsearch:
  addresses:
    - http://localhost:9200
`
	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Context != "kind-mesh" || cfg.Namespace != "shop" || cfg.Sidecar != "linkerd-proxy" {
		t.Errorf("unexpected top-level values: %+v", cfg)
	}
	if cfg.Restart.Strategy != "scale" || cfg.Restart.ReadyTimeout != 45*time.Second || cfg.Restart.Cooldown != 0 {
		t.Errorf("unexpected restart config: %+v", cfg.Restart)
	}
	if cfg.Output.Format != "yaml" {
		t.Errorf("Output.Format = %v, want yaml", cfg.Output.Format)
	}
	if len(cfg.Elasticsearch.Addresses) != 1 {
		t.Errorf("Elasticsearch.Addresses = %v, want one address", cfg.Elasticsearch.Addresses)
	}
	if cfg.Poll.Iterations != 120 {
		t.Errorf("Poll.Iterations = %d, want default 120", cfg.Poll.Iterations)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}

	catalog, err := cfg.Catalog()
	if err != nil {
		t.Fatalf("Catalog() error = %v", err)
	}
	frontend, err := catalog.Lookup("frontend")
	if err != nil {
		t.Fatalf("Lookup(frontend) error = %v", err)
	}
	if frontend.Selector != "app=frontend" {
		t.Errorf("frontend selector = %v, want app=frontend", frontend.Selector)
	}
	cart, _ := catalog.Lookup("cart")
	if cart.DeploymentName() != "cart-v2" || cart.Selector != "app=cart,tier=backend" {
		t.Errorf("unexpected cart workload: %+v", cart)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("COLDSTARTBENCH_NAMESPACE", "staging")
	t.Setenv("COLDSTARTBENCH_RESTART_COOLDOWN", "3s")
	t.Setenv("COLDSTARTBENCH_METRICS_PORT", "0")
	t.Setenv("COLDSTARTBENCH_LOG_FORMAT", "json")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Namespace != "staging" {
		t.Errorf("Namespace = %v, want staging", cfg.Namespace)
	}
	if cfg.Restart.Cooldown != 3*time.Second {
		t.Errorf("Restart.Cooldown = %v, want 3s", cfg.Restart.Cooldown)
	}
	if cfg.Metrics.Port != 0 {
		t.Errorf("Metrics.Port = %d, want 0", cfg.Metrics.Port)
	}
	if cfg.Log.Format != "json" {
		t.Errorf("Log.Format = %v, want json", cfg.Log.Format)
	}
}

func TestValidate(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	cfg.Namespace = " "
	cfg.Restart.Strategy = "rollout"
	cfg.Poll.Iterations = 0
	cfg.Output.Format = "xml"
	cfg.Workloads = []WorkloadConfig{{Name: "a"}, {Name: "a"}}

	err = cfg.Validate()
	if err == nil {
		t.Fatalf("expected validation errors")
	}
	for _, want := range []string{"namespace", "restart.strategy", "poll.iterations", "output.format", "duplicate workload"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("expected %q in %v", want, err)
		}
	}
}
