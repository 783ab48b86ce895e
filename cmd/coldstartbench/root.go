package main

import (
	"fmt"
	"os"

	"k8s-coldstart-benchmark/pkg/config"
	"k8s-coldstart-benchmark/pkg/k8s"
	"k8s-coldstart-benchmark/pkg/logging"

	"github.com/spf13/cobra"
	"k8s.io/client-go/kubernetes"
)

var (
	cfgFile     string
	kubeconfig  string
	kubeContext string
	namespace   string
	clientQPS   float32
	clientBurst int
	metricsPort int
	logLevel    string
	logFormat   string

	settings *config.Config
)

var rootCmd = &cobra.Command{
	Use:           "coldstartbench",
	Short:         "Pod cold start timing harness for service mesh workloads",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgFile)
		if err != nil {
			return err
		}
		applyRootFlags(cmd, cfg)
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("invalid configuration: %w", err)
		}
		logging.InitLogger(logging.Options{Level: cfg.Log.Level, Format: cfg.Log.Format})
		settings = cfg
		return nil
	},
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "Config file (default ./coldstartbench.yaml or $HOME/.coldstartbench/config.yaml)")
	flags.StringVar(&kubeconfig, "kubeconfig", "", "Path to the kubeconfig file")
	flags.StringVar(&kubeContext, "context", "", "Kubeconfig context to use")
	flags.StringVarP(&namespace, "namespace", "n", "", "Namespace of the tracked workloads")
	flags.Float32Var(&clientQPS, "client-qps", 200, "Kubernetes client QPS")
	flags.IntVar(&clientBurst, "client-burst", 400, "Kubernetes client burst")
	flags.IntVar(&metricsPort, "metrics-port", 8080, "Port for Prometheus metrics (0 disables)")
	flags.StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	flags.StringVar(&logFormat, "log-format", "text", "Log format (text, json)")
}

// applyRootFlags lets explicitly set flags win over file and environment values.
func applyRootFlags(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("kubeconfig") {
		cfg.Kubeconfig = kubeconfig
	}
	if flags.Changed("context") {
		cfg.Context = kubeContext
	}
	if flags.Changed("namespace") {
		cfg.Namespace = namespace
	}
	if flags.Changed("client-qps") {
		cfg.Client.QPS = clientQPS
	}
	if flags.Changed("client-burst") {
		cfg.Client.Burst = clientBurst
	}
	if flags.Changed("metrics-port") {
		cfg.Metrics.Port = metricsPort
	}
	if flags.Changed("log-level") {
		cfg.Log.Level = logLevel
	}
	if flags.Changed("log-format") {
		cfg.Log.Format = logFormat
	}
}

func newClient(cfg *config.Config) (kubernetes.Interface, k8s.ClientInfo, error) {
	return k8s.NewClient(k8s.ClientConfig{
		Kubeconfig:      cfg.Kubeconfig,
		Context:         cfg.Context,
		ExpectedContext: cfg.ExpectedContext,
		QPS:             cfg.Client.QPS,
		Burst:           cfg.Client.Burst,
	})
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
