package report

import (
	"math"

	"k8s-coldstart-benchmark/pkg/coldstart"
	"k8s-coldstart-benchmark/pkg/stages"
)

const noDataMessage = "no cycle stabilized; nothing to aggregate"

type Stats struct {
	Count  int     `json:"count"`
	Mean   float64 `json:"mean"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	Stddev float64 `json:"stddev"`
}

type WorkloadStats struct {
	Workload            string `json:"workload"`
	Cycles              int    `json:"cycles"`
	Ready               int    `json:"ready"`
	TimedOut            int    `json:"timed_out"`
	Failed              int    `json:"failed"`
	SchedulingDelay     *Stats `json:"scheduling_delay_ms,omitempty"`
	MainStartupDelay    *Stats `json:"main_container_startup_delay_ms,omitempty"`
	SidecarStartupDelay *Stats `json:"sidecar_startup_delay_ms,omitempty"`
	TotalReady          *Stats `json:"total_ready_time_ms,omitempty"`
	ImagePull           *Stats `json:"image_pull_and_creation_ms,omitempty"`
	AppStartup          *Stats `json:"application_startup_ms,omitempty"`
	NoData              bool   `json:"no_data,omitempty"`
}

type Statistics struct {
	Workloads []WorkloadStats `json:"workloads"`
	NoData    bool            `json:"no_data,omitempty"`
	Message   string          `json:"message,omitempty"`
}

func (s Statistics) Workload(name string) (WorkloadStats, bool) {
	for _, w := range s.Workloads {
		if w.Workload == name {
			return w, true
		}
	}
	return WorkloadStats{}, false
}

type samples struct {
	scheduling, mainDelay, sidecarDelay, totalReady, imagePull, appStartup []float64
}

// Aggregate groups breakdowns by workload. Only pods of cycles that reached
// Ready contribute values; timed out and failed cycles are only counted.
func Aggregate(cycles []coldstart.Cycle, breakdowns []stages.PodBreakdown) Statistics {
	var order []string
	byWorkload := map[string]*WorkloadStats{}
	values := map[string]*samples{}
	entry := func(name string) *WorkloadStats {
		if w, ok := byWorkload[name]; ok {
			return w
		}
		order = append(order, name)
		byWorkload[name] = &WorkloadStats{Workload: name}
		values[name] = &samples{}
		return byWorkload[name]
	}

	for _, c := range cycles {
		w := entry(c.Workload)
		w.Cycles++
		switch c.Outcome {
		case coldstart.OutcomeReady:
			w.Ready++
		case coldstart.OutcomeTimedOut:
			w.TimedOut++
		case coldstart.OutcomeFailed:
			w.Failed++
		}
	}

	for _, b := range breakdowns {
		if !b.Completed() {
			continue
		}
		entry(b.Workload)
		v := values[b.Workload]
		v.scheduling = appendPresent(v.scheduling, b.SchedulingDelayMs)
		v.totalReady = appendPresent(v.totalReady, b.TotalReadyMs)
		for _, c := range b.Containers {
			if c.Sidecar {
				v.sidecarDelay = appendPresent(v.sidecarDelay, c.StartupDelayMs)
				continue
			}
			v.mainDelay = appendPresent(v.mainDelay, c.StartupDelayMs)
			v.imagePull = appendPresent(v.imagePull, c.ImagePullMs)
			v.appStartup = appendPresent(v.appStartup, c.AppStartupMs)
		}
	}

	out := Statistics{Workloads: make([]WorkloadStats, 0, len(order))}
	measured := false
	for _, name := range order {
		w := byWorkload[name]
		v := values[name]
		w.SchedulingDelay = computeStats(v.scheduling)
		w.MainStartupDelay = computeStats(v.mainDelay)
		w.SidecarStartupDelay = computeStats(v.sidecarDelay)
		w.TotalReady = computeStats(v.totalReady)
		w.ImagePull = computeStats(v.imagePull)
		w.AppStartup = computeStats(v.appStartup)
		w.NoData = w.SchedulingDelay == nil && w.MainStartupDelay == nil && w.SidecarStartupDelay == nil &&
			w.TotalReady == nil && w.ImagePull == nil && w.AppStartup == nil
		if !w.NoData {
			measured = true
		}
		out.Workloads = append(out.Workloads, *w)
	}
	if !measured {
		out.NoData = true
		out.Message = noDataMessage
	}
	return out
}

func appendPresent(values []float64, v *float64) []float64 {
	if v == nil {
		return values
	}
	return append(values, *v)
}

func computeStats(values []float64) *Stats {
	if len(values) == 0 {
		return nil
	}
	s := Stats{Count: len(values), Min: values[0], Max: values[0]}
	var sum float64
	for _, v := range values {
		sum += v
		s.Min = math.Min(s.Min, v)
		s.Max = math.Max(s.Max, v)
	}
	s.Mean = sum / float64(len(values))
	s.Stddev = stddev(values)
	return &s
}

// stddev is the population standard deviation.
func stddev(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	mean := 0.0
	for _, v := range values {
		mean += v
	}
	mean /= float64(len(values))
	var sum float64
	for _, v := range values {
		diff := v - mean
		sum += diff * diff
	}
	return math.Sqrt(sum / float64(len(values)))
}
