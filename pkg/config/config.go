package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"k8s-coldstart-benchmark/pkg/coldstart"

	"github.com/spf13/viper"
)

const (
	EnvPrefix      = "COLDSTARTBENCH"
	configFileName = "coldstartbench.yaml"
)

type Config struct {
	Kubeconfig      string              `mapstructure:"kubeconfig"`
	Context         string              `mapstructure:"context"`
	ExpectedContext string              `mapstructure:"expected_context"`
	Namespace       string              `mapstructure:"namespace"`
	Environment     string              `mapstructure:"environment"`
	Sidecar         string              `mapstructure:"sidecar"`
	Workloads       []WorkloadConfig    `mapstructure:"workloads"`
	Client          ClientConfig        `mapstructure:"client"`
	Restart         RestartConfig       `mapstructure:"restart"`
	Poll            PollConfig          `mapstructure:"poll"`
	Watch           WatchConfig         `mapstructure:"watch"`
	Output          OutputConfig        `mapstructure:"output"`
	Metrics         MetricsConfig       `mapstructure:"metrics"`
	Elasticsearch   ElasticsearchConfig `mapstructure:"elasticsearch"`
	Log             LogConfig           `mapstructure:"log"`
}

type WorkloadConfig struct {
	Name       string `mapstructure:"name" json:"name"`
	Selector   string `mapstructure:"selector" json:"selector,omitempty"`
	Deployment string `mapstructure:"deployment" json:"deployment,omitempty"`
}

type ClientConfig struct {
	QPS   float32 `mapstructure:"qps"`
	Burst int     `mapstructure:"burst"`
}

type RestartConfig struct {
	Strategy     string        `mapstructure:"strategy"`
	ReadyTimeout time.Duration `mapstructure:"ready_timeout"`
	Cooldown     time.Duration `mapstructure:"cooldown"`
}

type PollConfig struct {
	Interval   time.Duration `mapstructure:"interval"`
	Iterations int           `mapstructure:"iterations"`
}

type WatchConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	Settle  time.Duration `mapstructure:"settle"`
	// EventsFile replaces the API watch with a JSON-per-line stream; "-" is stdin.
	EventsFile string `mapstructure:"events_file"`
}

type OutputConfig struct {
	Dir    string `mapstructure:"dir"`
	Format string `mapstructure:"format"`
	Path   string `mapstructure:"path"`
}

type MetricsConfig struct {
	Port int `mapstructure:"port"`
}

type ElasticsearchConfig struct {
	Addresses []string `mapstructure:"addresses"`
	Username  string   `mapstructure:"username"`
	Password  string   `mapstructure:"password"`
	APIKey    string   `mapstructure:"api_key"`
	Index     string   `mapstructure:"index"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("kubeconfig", "")
	v.SetDefault("context", "")
	v.SetDefault("expected_context", "")
	v.SetDefault("namespace", "bookinfo")
	v.SetDefault("environment", "minikube-istio-bookinfo")
	v.SetDefault("sidecar", "istio-proxy")
	v.SetDefault("workloads", []map[string]any{})
	v.SetDefault("client.qps", 200)
	v.SetDefault("client.burst", 400)
	v.SetDefault("restart.strategy", "delete")
	v.SetDefault("restart.ready_timeout", "120s")
	v.SetDefault("restart.cooldown", "10s")
	v.SetDefault("poll.interval", "1s")
	v.SetDefault("poll.iterations", 120)
	v.SetDefault("watch.enabled", true)
	v.SetDefault("watch.settle", "5s")
	v.SetDefault("watch.events_file", "")
	v.SetDefault("output.dir", "results")
	v.SetDefault("output.format", "json")
	v.SetDefault("output.path", "")
	v.SetDefault("metrics.port", 8080)
	v.SetDefault("elasticsearch.addresses", []string{})
	v.SetDefault("elasticsearch.username", "")
	v.SetDefault("elasticsearch.password", "")
	v.SetDefault("elasticsearch.api_key", "")
	v.SetDefault("elasticsearch.index", "coldstart-reports")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
}

// Load reads cfgFile, or the first of ./coldstartbench.yaml and
// $HOME/.coldstartbench/config.yaml that exists, then applies
// COLDSTARTBENCH_* environment overrides. A missing default file is not an error.
func Load(cfgFile string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if cfgFile == "" {
		cfgFile = discover()
	}
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return &cfg, nil
}

func discover() string {
	candidates := []string{configFileName}
	if home, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates, filepath.Join(home, ".coldstartbench", "config.yaml"))
	}
	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

func (c *Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.Namespace) == "" {
		errs = append(errs, errors.New("namespace is required"))
	}
	switch c.Restart.Strategy {
	case "delete", "scale", "evict":
	default:
		errs = append(errs, fmt.Errorf("restart.strategy must be delete, scale or evict, got %q", c.Restart.Strategy))
	}
	if c.Restart.ReadyTimeout <= 0 {
		errs = append(errs, errors.New("restart.ready_timeout must be positive"))
	}
	if c.Restart.Cooldown < 0 {
		errs = append(errs, errors.New("restart.cooldown must not be negative"))
	}
	if c.Poll.Interval <= 0 {
		errs = append(errs, errors.New("poll.interval must be positive"))
	}
	if c.Poll.Iterations <= 0 {
		errs = append(errs, errors.New("poll.iterations must be positive"))
	}
	if c.Watch.Settle < 0 {
		errs = append(errs, errors.New("watch.settle must not be negative"))
	}
	switch c.Output.Format {
	case "json", "yaml":
	default:
		errs = append(errs, fmt.Errorf("output.format must be json or yaml, got %q", c.Output.Format))
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("log.format must be text or json, got %q", c.Log.Format))
	}
	if c.Metrics.Port < 0 || c.Metrics.Port > 65535 {
		errs = append(errs, fmt.Errorf("metrics.port out of range: %d", c.Metrics.Port))
	}
	if _, err := c.Catalog(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// Catalog returns the configured workloads, or the Bookinfo services when none are set.
func (c *Config) Catalog() (*coldstart.Catalog, error) {
	if len(c.Workloads) == 0 {
		return coldstart.NewCatalog(coldstart.DefaultWorkloads())
	}
	workloads := make([]coldstart.Workload, 0, len(c.Workloads))
	for _, w := range c.Workloads {
		workloads = append(workloads, coldstart.Workload{
			Name:       w.Name,
			Selector:   w.Selector,
			Deployment: w.Deployment,
		})
	}
	return coldstart.NewCatalog(workloads)
}
