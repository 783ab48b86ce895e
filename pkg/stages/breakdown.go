package stages

import (
	"sort"

	"k8s-coldstart-benchmark/pkg/coldstart"
)

const (
	anomalyNegative = "negative_interval"
	anomalyFallback = "fallback_timestamp"
)

// Anomaly is a derived interval that was withheld from the breakdown.
type Anomaly struct {
	Field   string  `json:"field"`
	ValueMs float64 `json:"value_ms"`
	Reason  string  `json:"reason"`
}

type ContainerBreakdown struct {
	Name               string    `json:"name"`
	Sidecar            bool      `json:"is_sidecar"`
	WaitingToRunningMs *float64  `json:"waiting_to_running_ms,omitempty"`
	NotReadyToReadyMs  *float64  `json:"not_ready_to_ready_ms,omitempty"`
	TotalStartupMs     *float64  `json:"total_startup_ms,omitempty"`
	ImagePullMs        *float64  `json:"image_pull_and_creation_ms,omitempty"`
	ImagePullPct       *float64  `json:"image_pull_and_creation_pct,omitempty"`
	AppStartupMs       *float64  `json:"application_startup_ms,omitempty"`
	AppStartupPct      *float64  `json:"application_startup_pct,omitempty"`
	StartupDelayMs     *float64  `json:"startup_delay_ms,omitempty"`
	StartedAtDelayMs   *float64  `json:"started_at_delay_ms,omitempty"`
	Anomalies          []Anomaly `json:"anomalies,omitempty"`
}

type EventMilestone struct {
	Reason    string  `json:"reason"`
	Stage     string  `json:"stage"`
	ElapsedMs float64 `json:"elapsed_ms"`
	DeltaMs   float64 `json:"delta_ms"`
	Fallback  bool    `json:"fallback,omitempty"`
}

type PodBreakdown struct {
	Pod               string               `json:"pod_name"`
	Workload          string               `json:"workload"`
	Cycle             int                  `json:"cycle"`
	Outcome           coldstart.Outcome    `json:"outcome"`
	SchedulingDelayMs *float64             `json:"scheduling_delay_ms,omitempty"`
	TotalReadyMs      *float64             `json:"total_ready_time_ms,omitempty"`
	Containers        []ContainerBreakdown `json:"containers"`
	Events            []EventMilestone     `json:"event_milestones,omitempty"`
	Anomalies         []Anomaly            `json:"anomalies,omitempty"`
}

// Completed reports whether the pod belongs to a cycle that stabilized.
func (b PodBreakdown) Completed() bool {
	return b.Outcome == coldstart.OutcomeReady
}

// Extract derives one breakdown per pod observed by the poller, ordered by
// cycle and then by first sighting.
func Extract(snap coldstart.Snapshot) []PodBreakdown {
	pods := snap.PodsByName()
	out := make([]PodBreakdown, 0, len(snap.Pods))
	for _, cycle := range snap.Cycles {
		for _, name := range cycle.Pods {
			pod, ok := pods[name]
			if !ok {
				continue
			}
			out = append(out, ExtractPod(cycle, pod))
		}
	}
	return out
}

func ExtractPod(cycle coldstart.Cycle, pod coldstart.PodObservation) PodBreakdown {
	b := PodBreakdown{
		Pod:      pod.Name,
		Workload: cycle.Workload,
		Cycle:    cycle.Index,
		Outcome:  cycle.Outcome,
	}

	var scheduling *float64
	switch {
	case pod.CreatedAt.Fallback || cycle.Trigger.Fallback:
		b.Anomalies = append(b.Anomalies, Anomaly{Field: "scheduling_delay_ms", ValueMs: pod.CreatedAt.Sub(cycle.Trigger), Reason: anomalyFallback})
	default:
		scheduling = checked(&b.Anomalies, "scheduling_delay_ms", pod.CreatedAt.Sub(cycle.Trigger))
	}
	b.SchedulingDelayMs = scheduling

	allFinalReady := len(pod.Containers) > 0
	var readyAt float64
	for _, c := range pod.Containers {
		b.Containers = append(b.Containers, extractContainer(c, pod, scheduling))
		last, ok := c.Last()
		if !ok || !last.Ready {
			allFinalReady = false
			continue
		}
		if first, ok := firstReady(c.History); ok && first > readyAt {
			readyAt = first
		}
	}
	if allFinalReady {
		b.TotalReadyMs = checked(&b.Anomalies, "total_ready_time_ms", readyAt)
	}

	b.Events = eventMilestones(pod.Events, cycle.Trigger, &b.Anomalies)
	return b
}

func extractContainer(c coldstart.ContainerObservation, pod coldstart.PodObservation, scheduling *float64) ContainerBreakdown {
	out := ContainerBreakdown{Name: c.Name, Sidecar: c.Sidecar}
	anomalies := &out.Anomalies

	w2r, hasW2R := WaitingToRunning(c.History)
	if hasW2R {
		out.WaitingToRunningMs = checked(anomalies, "waiting_to_running_ms", w2r)
	}
	r2r, hasR2R := NotReadyToReady(c.History)
	if hasR2R {
		out.NotReadyToReadyMs = checked(anomalies, "not_ready_to_ready_ms", r2r)
	}
	if last, ok := c.Last(); ok && last.Ready {
		out.TotalStartupMs = checked(anomalies, "total_startup_ms", last.ElapsedMs)
	}

	if hasW2R {
		out.ImagePullMs = checked(anomalies, "image_pull_and_creation_ms", w2r)
		out.ImagePullPct = percentOf(out.ImagePullMs, out.TotalStartupMs)
	}
	if hasW2R && hasR2R {
		out.AppStartupMs = checked(anomalies, "application_startup_ms", r2r-w2r)
		out.AppStartupPct = percentOf(out.AppStartupMs, out.TotalStartupMs)
	}

	if running, ok := firstRunning(c.History); ok {
		if scheduling != nil {
			out.StartupDelayMs = checked(anomalies, "startup_delay_ms", running.ElapsedMs-*scheduling)
		}
		if r, _ := running.State.(coldstart.Running); !r.StartedAt.IsZero() && !pod.CreatedAt.Fallback {
			started := coldstart.TimestampFromTime(r.StartedAt, r.StartedAt)
			out.StartedAtDelayMs = checked(anomalies, "started_at_delay_ms", started.Sub(pod.CreatedAt))
		}
	}
	return out
}

// eventMilestones keeps the first occurrence of each lifecycle reason, relative to the trigger.
func eventMilestones(events []coldstart.LifecycleEvent, trigger coldstart.Timestamp, anomalies *[]Anomaly) []EventMilestone {
	firsts := map[string]coldstart.LifecycleEvent{}
	for _, ev := range events {
		if !ev.Lifecycle() {
			continue
		}
		if _, ok := firsts[ev.Reason]; ok {
			continue
		}
		firsts[ev.Reason] = ev
	}
	out := make([]EventMilestone, 0, len(firsts))
	for reason, ev := range firsts {
		stage, _ := coldstart.StageForReason(reason)
		m := EventMilestone{
			Reason:    reason,
			Stage:     stage,
			ElapsedMs: ev.At.Sub(trigger),
			Fallback:  ev.At.Fallback,
		}
		switch {
		case m.Fallback:
			*anomalies = append(*anomalies, Anomaly{Field: "event:" + reason, ValueMs: m.ElapsedMs, Reason: anomalyFallback})
		case m.ElapsedMs < 0:
			*anomalies = append(*anomalies, Anomaly{Field: "event:" + reason, ValueMs: m.ElapsedMs, Reason: anomalyNegative})
		}
		out = append(out, m)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].ElapsedMs == out[j].ElapsedMs {
			return reasonOrder(out[i].Reason) < reasonOrder(out[j].Reason)
		}
		return out[i].ElapsedMs < out[j].ElapsedMs
	})
	for i := range out {
		if i == 0 {
			out[i].DeltaMs = out[i].ElapsedMs
			continue
		}
		out[i].DeltaMs = out[i].ElapsedMs - out[i-1].ElapsedMs
	}
	return out
}

func reasonOrder(reason string) int {
	for i, r := range coldstart.LifecycleReasons {
		if r == reason {
			return i
		}
	}
	return len(coldstart.LifecycleReasons)
}

func percentOf(part, total *float64) *float64 {
	if part == nil || total == nil || *total <= 0 {
		return nil
	}
	pct := *part / *total * 100
	return &pct
}

// checked withholds negative intervals and records them as anomalies.
func checked(anomalies *[]Anomaly, field string, v float64) *float64 {
	if v < 0 {
		*anomalies = append(*anomalies, Anomaly{Field: field, ValueMs: v, Reason: anomalyNegative})
		return nil
	}
	return &v
}
