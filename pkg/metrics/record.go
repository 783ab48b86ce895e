package metrics

func RecordPhase(name string) {
	PhaseTotal.WithLabelValues(name).Inc()
}

func RecordRestart(workload, outcome string) {
	RestartsTotal.WithLabelValues(workload, outcome).Inc()
}

func RecordColdStart(workload string, ms float64) {
	ColdStartSeconds.WithLabelValues(workload).Observe(ms / 1000)
}

func RecordPollError(workload string) {
	PollErrorsTotal.WithLabelValues(workload).Inc()
}

func RecordEvent(reason string) {
	EventsTotal.WithLabelValues(reason).Inc()
}
