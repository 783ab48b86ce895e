package main

import (
	"time"

	"k8s-coldstart-benchmark/pkg/config"
	"k8s-coldstart-benchmark/pkg/logging"
	benchsvc "k8s-coldstart-benchmark/pkg/service/benchmark"

	"github.com/spf13/cobra"
)

var (
	outputPath   string
	outputDir    string
	outputFormat string
	strategy     string
	readyTimeout time.Duration
	cooldown     time.Duration
	eventsFile   string
	noWatch      bool
)

var measureCmd = &cobra.Command{
	Use:   "measure",
	Short: "Restart every tracked workload in turn and measure its cold start",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runMeasurement(cmd, "")
	},
}

func init() {
	addRunFlags(measureCmd)
	rootCmd.AddCommand(measureCmd)
}

func addRunFlags(cmd *cobra.Command) {
	flags := cmd.Flags()
	flags.StringVarP(&outputPath, "output", "o", "", "Write the report to this file (default <output-dir>/<run-id>-<workload|all>.<format>)")
	flags.StringVar(&outputDir, "output-dir", "", "Directory for report files")
	flags.StringVar(&outputFormat, "format", "", "Report format (json, yaml)")
	flags.StringVar(&strategy, "strategy", "", "Restart strategy (delete, scale, evict)")
	flags.DurationVar(&readyTimeout, "ready-timeout", 0, "Wall-clock limit for a workload to become ready")
	flags.DurationVar(&cooldown, "cooldown", 0, "Pause between workloads")
	flags.StringVar(&eventsFile, "events-file", "", "Read events as JSON lines from a file instead of watching the API (- for stdin)")
	flags.BoolVar(&noWatch, "no-watch", false, "Do not record cluster events")
}

func applyRunFlags(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("output-dir") {
		cfg.Output.Dir = outputDir
	}
	if flags.Changed("format") {
		cfg.Output.Format = outputFormat
	}
	if flags.Changed("output") {
		cfg.Output.Path = outputPath
	}
	if flags.Changed("strategy") {
		cfg.Restart.Strategy = strategy
	}
	if flags.Changed("ready-timeout") {
		cfg.Restart.ReadyTimeout = readyTimeout
	}
	if flags.Changed("cooldown") {
		cfg.Restart.Cooldown = cooldown
	}
	if flags.Changed("events-file") {
		cfg.Watch.EventsFile = eventsFile
	}
	if noWatch {
		cfg.Watch.Enabled = false
	}
}

func runMeasurement(cmd *cobra.Command, workload string) error {
	applyRunFlags(cmd, settings)
	if err := settings.Validate(); err != nil {
		return err
	}

	client, info, err := newClient(settings)
	if err != nil {
		return err
	}

	runner := benchsvc.Runner{
		Client:  client,
		Config:  settings,
		Cluster: info,
		Logger:  logging.GetLogger(),
		Out:     cmd.OutOrStdout(),
	}
	_, err = runner.Run(cmd.Context(), benchsvc.RunConfig{Workload: workload})
	return err
}
