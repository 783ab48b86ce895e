package benchmark

import (
	"fmt"
	"log/slog"

	"k8s-coldstart-benchmark/pkg/logging"
	"k8s-coldstart-benchmark/pkg/report"
	"k8s-coldstart-benchmark/pkg/stages"
)

func logBreakdown(logger *slog.Logger, msg string, b stages.PodBreakdown) {
	attrs := []any{
		logging.StringField("workload", b.Workload),
		logging.StringField("pod", b.Pod),
		logging.StringField("scheduling_delay", optionalMillis(b.SchedulingDelayMs)),
		logging.StringField("total_ready", optionalMillis(b.TotalReadyMs)),
		logging.StringField("events", report.FormatMilestones(b.Events)),
	}
	for _, c := range b.Containers {
		attrs = append(attrs, logging.StringField(c.Name, fmt.Sprintf("pull=%s app=%s delay=%s",
			optionalMillis(c.ImagePullMs), optionalMillis(c.AppStartupMs), optionalMillis(c.StartupDelayMs))))
	}
	if len(b.Anomalies) > 0 {
		attrs = append(attrs, logging.IntField("anomalies", len(b.Anomalies)))
	}
	logger.Info(msg, attrs...)
}

func logSummary(logger *slog.Logger, doc *report.Document, path string) {
	ready, total := 0, len(doc.Cycles)
	for _, c := range doc.Cycles {
		if c.Completed() {
			ready++
		}
	}
	logger.Info("run summary",
		logging.StringField("run_id", doc.RunID),
		logging.StringField("cycles_ready", fmt.Sprintf("%d/%d", ready, total)),
		logging.IntField("pods_analyzed", len(doc.TimingAnalysis)),
		logging.StringField("output", path),
	)
	if doc.Statistics.NoData {
		logger.Warn("no timing data", logging.StringField("reason", doc.Statistics.Message))
	}
	for _, w := range doc.Statistics.Workloads {
		logger.Info("workload statistics",
			logging.StringField("workload", w.Workload),
			logging.StringField("ready", fmt.Sprintf("%d/%d", w.Ready, w.Cycles)),
			logging.StringField("total_ready_mean", statMean(w.TotalReady)),
			logging.StringField("image_pull_mean", statMean(w.ImagePull)),
			logging.StringField("app_startup_mean", statMean(w.AppStartup)),
		)
	}
}

func optionalMillis(v *float64) string {
	if v == nil {
		return "-"
	}
	return logging.FormatMillis(*v)
}

func statMean(s *report.Stats) string {
	if s == nil {
		return "-"
	}
	return logging.FormatMillis(s.Mean)
}
