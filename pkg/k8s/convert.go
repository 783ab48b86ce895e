package k8s

import (
	"time"

	"k8s-coldstart-benchmark/pkg/coldstart"

	corev1 "k8s.io/api/core/v1"
)

func ContainerState(state corev1.ContainerState) coldstart.ContainerState {
	switch {
	case state.Running != nil:
		return coldstart.Running{StartedAt: state.Running.StartedAt.Time}
	case state.Terminated != nil:
		return coldstart.Terminated{Reason: state.Terminated.Reason, ExitCode: state.Terminated.ExitCode}
	case state.Waiting != nil:
		return coldstart.Waiting{Reason: state.Waiting.Reason, Message: state.Waiting.Message}
	default:
		return nil
	}
}

func ContainerSample(status corev1.ContainerStatus, now time.Time, elapsedMs float64) coldstart.StateSample {
	return coldstart.StateSample{
		Timestamp:    now,
		ElapsedMs:    elapsedMs,
		Ready:        status.Ready,
		RestartCount: status.RestartCount,
		State:        ContainerState(status.State),
	}
}

func CreationTimestamp(pod *corev1.Pod, now time.Time) coldstart.Timestamp {
	return coldstart.TimestampFromTime(pod.CreationTimestamp.Time, now)
}

// AllContainersReady is false until every container in the pod spec has
// reported a ready status.
func AllContainersReady(pod *corev1.Pod) bool {
	if len(pod.Status.ContainerStatuses) == 0 || len(pod.Status.ContainerStatuses) < len(pod.Spec.Containers) {
		return false
	}
	for _, cs := range pod.Status.ContainerStatuses {
		if !cs.Ready {
			return false
		}
	}
	return true
}
