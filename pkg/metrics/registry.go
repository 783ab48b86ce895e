package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RunInfo = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "coldstartbench_run_info",
		Help: "1 if a measurement run is currently active",
	}, []string{"environment", "run_id"})

	RestartsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "coldstartbench_restarts_total",
		Help: "Workload restarts by outcome",
	}, []string{"workload", "outcome"})

	ColdStartSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "coldstartbench_cold_start_seconds",
		Help:    "Time from restart trigger to all containers ready",
		Buckets: []float64{1, 2, 5, 10, 15, 20, 30, 45, 60, 90, 120, 300},
	}, []string{"workload"})

	PollErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "coldstartbench_poll_errors_total",
		Help: "Pod status queries that failed and were skipped",
	}, []string{"workload"})

	EventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "coldstartbench_events_total",
		Help: "Pod events recorded by the event watcher",
	}, []string{"reason"})

	PhaseTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "coldstartbench_phase_total",
		Help: "Count of phase markers emitted",
	}, []string{"phase"})
)

var Registry = prometheus.NewRegistry()

func init() {
	Registry.MustRegister(RunInfo)
	Registry.MustRegister(RestartsTotal)
	Registry.MustRegister(ColdStartSeconds)
	Registry.MustRegister(PollErrorsTotal)
	Registry.MustRegister(EventsTotal)
	Registry.MustRegister(PhaseTotal)
}
