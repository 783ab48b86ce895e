package benchmark

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"k8s-coldstart-benchmark/pkg/coldstart"
	"k8s-coldstart-benchmark/pkg/config"
	"k8s-coldstart-benchmark/pkg/console"
	"k8s-coldstart-benchmark/pkg/k8s"
	"k8s-coldstart-benchmark/pkg/logging"
	"k8s-coldstart-benchmark/pkg/metrics"
	"k8s-coldstart-benchmark/pkg/report"
	"k8s-coldstart-benchmark/pkg/restart"
	"k8s-coldstart-benchmark/pkg/service/preflight"
	"k8s-coldstart-benchmark/pkg/watcher"

	"k8s.io/client-go/kubernetes"
	"k8s.io/utils/clock"
)

const (
	defaultResultsDir = "results"
	watcherStopWait   = 5 * time.Second
)

type Runner struct {
	Client  kubernetes.Interface
	Config  *config.Config
	Cluster k8s.ClientInfo
	Logger  *slog.Logger
	Clock   clock.Clock
	// Events overrides the configured event source with a JSON-per-line stream.
	Events io.Reader
	// Out receives the console summary; nil skips it.
	Out           io.Writer
	SkipPreflight bool
}

type RunConfig struct {
	Workload   string
	OutputPath string
	OutputDir  string
	Format     string
}

// Run measures the planned workloads and always writes the report, including
// after a cancellation. The returned error is the run's first failure.
func (r *Runner) Run(ctx context.Context, cfg RunConfig) (*report.Document, error) {
	if r.Client == nil {
		return nil, fmt.Errorf("client is required")
	}
	if r.Config == nil {
		return nil, fmt.Errorf("config is required")
	}
	logger := r.Logger
	if logger == nil {
		logger = logging.GetLogger()
	}
	clk := r.Clock
	if clk == nil {
		clk = clock.RealClock{}
	}
	settings := r.Config

	catalog, err := settings.Catalog()
	if err != nil {
		return nil, err
	}
	if cfg.OutputDir == "" {
		cfg.OutputDir = settings.Output.Dir
	}
	if cfg.Format == "" {
		cfg.Format = settings.Output.Format
	}
	if cfg.OutputPath == "" {
		cfg.OutputPath = settings.Output.Path
	}
	plan, err := (&PlanBuilder{Now: clk.Now, Catalog: catalog}).Build(cfg)
	if err != nil {
		return nil, err
	}

	if !r.SkipPreflight {
		svc := preflight.NewPreflightService(r.Client, logger)
		if _, err := svc.Check(ctx, settings.Namespace, plan.Workloads); err != nil {
			return nil, err
		}
	}

	ctxRun, cancel := context.WithCancel(ctx)
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case sig := <-sigCh:
			logger.Info("signal received", logging.StringField("signal", sig.String()))
			cancel()
		case <-ctxRun.Done():
		}
	}()

	logger.Info("run id", logging.StringField("value", plan.RunID))
	logger.Info("namespace", logging.StringField("value", settings.Namespace))
	logger.Info("workloads", logging.StringField("value", workloadNames(plan.Workloads)))
	logger.Info("results file path", logging.StringField("value", plan.OutputPath))

	srv := metrics.StartMetricsServer(settings.Metrics.Port, logger)
	defer func() {
		if err := metrics.StopMetricsServer(srv); err != nil {
			logger.Warn("metrics server shutdown failed", logging.ErrorField(err))
		}
	}()
	metrics.RunInfo.WithLabelValues(settings.Environment, plan.RunID).Set(1)
	defer metrics.RunInfo.WithLabelValues(settings.Environment, plan.RunID).Set(0)

	session := coldstart.NewSession(catalog, settings.Sidecar)
	phaseRec := NewPhaseRecorder(session, clk, logger)
	_ = phaseRec.Record("run:start")

	var w *watcher.Watcher
	watchCtx, stopWatch := context.WithCancel(ctxRun)
	defer stopWatch()
	if settings.Watch.Enabled || r.Events != nil {
		source, closeSource, err := r.eventSource()
		if err != nil {
			logger.Error("event source unavailable, continuing without events", logging.ErrorField(err))
		} else {
			defer closeSource()
			w = watcher.New(source, session, watcher.WithLogger(logger), watcher.WithClock(clk))
			w.Start(watchCtx)
			r.settle(ctxRun, clk, phaseRec, "settle:before")
		}
	}

	restarter, err := restart.NewRestarter(settings.Restart.Strategy, r.Client, settings.Namespace, clk, settings.Restart.ReadyTimeout)
	if err != nil {
		return nil, err
	}
	orch := restart.New(r.Client, session, restarter, restart.Config{
		Namespace:      settings.Namespace,
		ReadyTimeout:   settings.Restart.ReadyTimeout,
		Cooldown:       settings.Restart.Cooldown,
		PollInterval:   settings.Poll.Interval,
		PollIterations: settings.Poll.Iterations,
		RecordPhase:    phaseRec.Record,
	}, restart.WithLogger(logger), restart.WithClock(clk))

	_, runErr := orch.RunAll(ctxRun, plan.Workloads)
	if runErr != nil {
		logger.Warn("run interrupted, writing partial report", logging.ErrorField(runErr))
	}

	if w != nil {
		r.settle(ctxRun, clk, phaseRec, "settle:after")
		stopWatch()
		select {
		case <-w.Done():
		case <-time.After(watcherStopWait):
			logger.Warn("event watcher did not stop in time")
		}
		stats := w.Stats()
		logger.Info("event watcher stats",
			logging.IntField("received", stats.Received),
			logging.IntField("accepted", stats.Accepted),
			logging.IntField("malformed", stats.Malformed),
			logging.IntField("fallback_timestamps", stats.Fallback),
		)
	}
	_ = phaseRec.Record("run:end")

	doc := report.Build(report.BuildInput{
		RunID:       plan.RunID,
		Environment: settings.Environment,
		Namespace:   settings.Namespace,
		Cluster:     report.Cluster{Context: r.Cluster.Context, Server: r.Cluster.Server},
		Config:      newRunSettings(settings, plan),
		Phases:      phaseRec.Phases(),
		Snapshot:    session.Snapshot(),
		Now:         clk.Now(),
	})

	sink := r.sink(context.WithoutCancel(ctx), plan, logger)
	if err := sink.Save(context.WithoutCancel(ctx), doc); err != nil {
		return doc, errors.Join(runErr, err)
	}
	logSummary(logger, doc, plan.OutputPath)
	if r.Out != nil {
		if err := console.Render(r.Out, doc); err != nil {
			logger.Warn("console summary failed", logging.ErrorField(err))
		}
	}
	return doc, runErr
}

func (r *Runner) eventSource() (watcher.Source, func(), error) {
	noop := func() {}
	if r.Events != nil {
		return &watcher.LineSource{Reader: r.Events}, noop, nil
	}
	switch path := r.Config.Watch.EventsFile; path {
	case "":
		return &watcher.APISource{Client: r.Client, Namespace: r.Config.Namespace}, noop, nil
	case "-":
		return &watcher.LineSource{Reader: os.Stdin}, noop, nil
	default:
		f, err := os.Open(path)
		if err != nil {
			return nil, noop, fmt.Errorf("open events file: %w", err)
		}
		return &watcher.LineSource{Reader: f}, func() { _ = f.Close() }, nil
	}
}

// settle gives late events time to arrive around the restarts.
func (r *Runner) settle(ctx context.Context, clk clock.Clock, phaseRec *PhaseRecorder, name string) {
	d := r.Config.Watch.Settle
	if d <= 0 || ctx.Err() != nil {
		return
	}
	_ = phaseRec.Record(name)
	select {
	case <-ctx.Done():
	case <-clk.After(d):
	}
}

func (r *Runner) sink(ctx context.Context, plan Plan, logger *slog.Logger) report.Sink {
	file := &report.FileSink{Path: plan.OutputPath, Format: plan.Format}
	es := r.Config.Elasticsearch
	if len(es.Addresses) == 0 {
		return file
	}
	elastic, err := report.NewElasticSink(ctx, report.ElasticConfig{
		Addresses: es.Addresses,
		Username:  es.Username,
		Password:  es.Password,
		APIKey:    es.APIKey,
		Index:     es.Index,
	})
	if err != nil {
		logger.Warn("elasticsearch sink disabled", logging.ErrorField(err))
		return file
	}
	return report.NewMultiSink(file, elastic, logger)
}

// runSettings is the part of the configuration recorded in the report.
type runSettings struct {
	Workloads      []coldstart.Workload `json:"workloads"`
	Sidecar        string               `json:"sidecar"`
	Strategy       string               `json:"restart_strategy"`
	ReadyTimeout   string               `json:"ready_timeout"`
	Cooldown       string               `json:"cooldown"`
	PollInterval   string               `json:"poll_interval"`
	PollIterations int                  `json:"poll_iterations"`
	WatchEnabled   bool                 `json:"watch_enabled"`
	Settle         string               `json:"settle"`
}

func newRunSettings(cfg *config.Config, plan Plan) runSettings {
	return runSettings{
		Workloads:      plan.Workloads,
		Sidecar:        cfg.Sidecar,
		Strategy:       cfg.Restart.Strategy,
		ReadyTimeout:   cfg.Restart.ReadyTimeout.String(),
		Cooldown:       cfg.Restart.Cooldown.String(),
		PollInterval:   cfg.Poll.Interval.String(),
		PollIterations: cfg.Poll.Iterations,
		WatchEnabled:   cfg.Watch.Enabled,
		Settle:         cfg.Watch.Settle.String(),
	}
}
