package stages

import (
	"testing"
	"time"

	"k8s-coldstart-benchmark/pkg/coldstart"

	"github.com/stretchr/testify/require"
)

var trigger = time.Date(2024, 7, 23, 10, 0, 0, 0, time.UTC)

func ms(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}

func ts(d time.Duration) coldstart.Timestamp {
	return coldstart.TimestampFromTime(trigger.Add(d), trigger)
}

func sample(elapsed time.Duration, ready bool, state coldstart.ContainerState) coldstart.StateSample {
	return coldstart.StateSample{Timestamp: trigger.Add(elapsed), ElapsedMs: ms(elapsed), Ready: ready, State: state}
}

func TestWaitingToRunning(t *testing.T) {
	t.Parallel()
	started := trigger.Add(time.Second)
	history := []coldstart.StateSample{
		sample(500*time.Millisecond, false, coldstart.Waiting{Reason: "ContainerCreating"}),
		sample(800*time.Millisecond, false, coldstart.Waiting{Reason: "ContainerCreating"}),
		sample(1200*time.Millisecond, false, coldstart.Running{StartedAt: started}),
		sample(1500*time.Millisecond, false, coldstart.Running{StartedAt: started}),
	}
	got, ok := WaitingToRunning(history)
	require.True(t, ok)
	require.Equal(t, 1200.0, got)

	_, ok = WaitingToRunning(history[2:])
	require.False(t, ok)
	_, ok = WaitingToRunning(nil)
	require.False(t, ok)
}

func TestNotReadyToReady(t *testing.T) {
	t.Parallel()
	history := []coldstart.StateSample{
		sample(time.Second, false, nil),
		sample(2*time.Second, false, nil),
		sample(3*time.Second, true, nil),
		sample(4*time.Second, true, nil),
	}
	got, ok := NotReadyToReady(history)
	require.True(t, ok)
	require.Equal(t, 3000.0, got)

	_, ok = NotReadyToReady(history[2:])
	require.False(t, ok)
}

func scenarioPod() (coldstart.Cycle, coldstart.PodObservation) {
	cycle := coldstart.Cycle{Index: 0, Workload: "ratings", Trigger: ts(0), Outcome: coldstart.OutcomeReady, Pods: []string{"ratings-v1-abc"}}
	started := trigger.Add(1300 * time.Millisecond)
	pod := coldstart.PodObservation{
		Name:      "ratings-v1-abc",
		Workload:  "ratings",
		CreatedAt: ts(300 * time.Millisecond),
		Containers: []coldstart.ContainerObservation{{
			Name: "ratings",
			History: []coldstart.StateSample{
				sample(500*time.Millisecond, false, coldstart.Waiting{Reason: "ContainerCreating"}),
				sample(1200*time.Millisecond, false, coldstart.Running{StartedAt: started}),
				sample(2000*time.Millisecond, true, coldstart.Running{StartedAt: started}),
			},
		}},
	}
	return cycle, pod
}

func TestExtractColdStartScenario(t *testing.T) {
	t.Parallel()
	cycle, pod := scenarioPod()
	b := ExtractPod(cycle, pod)

	require.Empty(t, b.Anomalies)
	require.True(t, b.Completed())
	require.InDelta(t, 300.0, *b.SchedulingDelayMs, 0.001)
	require.InDelta(t, 2000.0, *b.TotalReadyMs, 0.001)

	c := b.Containers[0]
	require.InDelta(t, 900.0, *c.StartupDelayMs, 0.001)
	require.InDelta(t, 1000.0, *c.StartedAtDelayMs, 0.001)
	require.InDelta(t, 1200.0, *c.WaitingToRunningMs, 0.001)
	require.InDelta(t, 2000.0, *c.NotReadyToReadyMs, 0.001)
	require.InDelta(t, 1200.0, *c.ImagePullMs, 0.001)
	require.InDelta(t, 800.0, *c.AppStartupMs, 0.001)
	require.InDelta(t, 2000.0, *c.TotalStartupMs, 0.001)
	require.InDelta(t, 60.0, *c.ImagePullPct, 0.001)
	require.InDelta(t, 40.0, *c.AppStartupPct, 0.001)
}

func TestExtractOmitsWhenNeverReady(t *testing.T) {
	t.Parallel()
	cycle, pod := scenarioPod()
	cycle.Outcome = coldstart.OutcomeTimedOut
	pod.Containers[0].History = pod.Containers[0].History[:2]

	b := ExtractPod(cycle, pod)
	require.False(t, b.Completed())
	require.Nil(t, b.TotalReadyMs)
	c := b.Containers[0]
	require.Nil(t, c.TotalStartupMs)
	require.Nil(t, c.NotReadyToReadyMs)
	require.Nil(t, c.AppStartupMs)
	require.Nil(t, c.AppStartupPct)
	require.Nil(t, c.ImagePullPct)
	require.NotNil(t, c.ImagePullMs)
}

func TestExtractAlreadyRunningContainer(t *testing.T) {
	t.Parallel()
	cycle, pod := scenarioPod()
	pod.Containers[0].History = pod.Containers[0].History[1:]

	c := ExtractPod(cycle, pod).Containers[0]
	require.Nil(t, c.WaitingToRunningMs)
	require.Nil(t, c.ImagePullMs)
	require.Nil(t, c.AppStartupMs)
	require.NotNil(t, c.NotReadyToReadyMs)
	require.InDelta(t, 900.0, *c.StartupDelayMs, 0.001)
}

func TestExtractFlagsNegativeAndFallback(t *testing.T) {
	t.Parallel()
	cycle, pod := scenarioPod()
	pod.CreatedAt = ts(-2 * time.Second)

	b := ExtractPod(cycle, pod)
	require.Nil(t, b.SchedulingDelayMs)
	require.Equal(t, []Anomaly{{Field: "scheduling_delay_ms", ValueMs: -2000, Reason: "negative_interval"}}, b.Anomalies)
	require.Nil(t, b.Containers[0].StartupDelayMs)

	pod.CreatedAt = coldstart.Timestamp{Ms: ts(0).Ms, Fallback: true}
	b = ExtractPod(cycle, pod)
	require.Nil(t, b.SchedulingDelayMs)
	require.Len(t, b.Anomalies, 1)
	require.Equal(t, "fallback_timestamp", b.Anomalies[0].Reason)
	require.Nil(t, b.Containers[0].StartedAtDelayMs)
}

func TestEventMilestones(t *testing.T) {
	t.Parallel()
	cycle, pod := scenarioPod()
	pod.Events = []coldstart.LifecycleEvent{
		{Pod: pod.Name, Reason: "Pulling", At: ts(600 * time.Millisecond)},
		{Pod: pod.Name, Reason: "Scheduled", At: ts(350 * time.Millisecond)},
		{Pod: pod.Name, Reason: "BackOff", At: ts(400 * time.Millisecond)},
		{Pod: pod.Name, Reason: "Pulled", At: ts(1000 * time.Millisecond)},
		{Pod: pod.Name, Reason: "Pulling", At: ts(5000 * time.Millisecond)},
		{Pod: pod.Name, Reason: "Started", At: coldstart.Timestamp{Ms: ts(9 * time.Second).Ms, Fallback: true}},
	}

	b := ExtractPod(cycle, pod)
	require.Len(t, b.Events, 4)
	require.Equal(t, "pod_scheduled", b.Events[0].Stage)
	require.InDelta(t, 350.0, b.Events[0].DeltaMs, 0.001)
	require.Equal(t, "image_pulling", b.Events[1].Stage)
	require.InDelta(t, 600.0, b.Events[1].ElapsedMs, 0.001)
	require.InDelta(t, 250.0, b.Events[1].DeltaMs, 0.001)
	require.Equal(t, "image_pulled", b.Events[2].Stage)
	require.InDelta(t, 400.0, b.Events[2].DeltaMs, 0.001)
	require.True(t, b.Events[3].Fallback)
	require.Len(t, b.Anomalies, 1)
	require.Equal(t, "event:Started", b.Anomalies[0].Field)
}

func TestEventMilestonesKeepFirstSeen(t *testing.T) {
	t.Parallel()
	cycle, pod := scenarioPod()
	pod.Events = []coldstart.LifecycleEvent{
		{Pod: pod.Name, Reason: "Scheduled", At: coldstart.Timestamp{Ms: ts(8 * time.Second).Ms, Fallback: true}},
		{Pod: pod.Name, Reason: "Scheduled", At: ts(350 * time.Millisecond)},
	}

	b := ExtractPod(cycle, pod)
	require.Len(t, b.Events, 1)
	require.True(t, b.Events[0].Fallback)
	require.InDelta(t, 8000.0, b.Events[0].ElapsedMs, 0.001)
	require.Len(t, b.Anomalies, 1)
	require.Equal(t, "event:Scheduled", b.Anomalies[0].Field)
	require.Equal(t, anomalyFallback, b.Anomalies[0].Reason)
}

func TestExtractSnapshotOrder(t *testing.T) {
	t.Parallel()
	cycle, pod := scenarioPod()
	other := pod
	other.Name = "ratings-v1-def"
	cycle.Pods = []string{"ratings-v1-def", "ratings-v1-abc", "vanished"}
	noise := coldstart.PodObservation{Name: "ratings-v1-old", Cycle: -1}

	got := Extract(coldstart.Snapshot{Pods: []coldstart.PodObservation{pod, noise, other}, Cycles: []coldstart.Cycle{cycle}})
	require.Len(t, got, 2)
	require.Equal(t, "ratings-v1-def", got[0].Pod)
	require.Equal(t, "ratings-v1-abc", got[1].Pod)
}
