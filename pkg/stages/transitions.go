package stages

import "k8s-coldstart-benchmark/pkg/coldstart"

// WaitingToRunning returns the elapsed time of the first sample that is
// running right after a waiting one.
func WaitingToRunning(history []coldstart.StateSample) (float64, bool) {
	for i := 1; i < len(history); i++ {
		if coldstart.IsWaiting(history[i-1].State) && coldstart.IsRunning(history[i].State) {
			return history[i].ElapsedMs, true
		}
	}
	return 0, false
}

// NotReadyToReady returns the elapsed time of the first false to true flip of the ready flag.
func NotReadyToReady(history []coldstart.StateSample) (float64, bool) {
	for i := 1; i < len(history); i++ {
		if !history[i-1].Ready && history[i].Ready {
			return history[i].ElapsedMs, true
		}
	}
	return 0, false
}

func firstRunning(history []coldstart.StateSample) (coldstart.StateSample, bool) {
	for _, s := range history {
		if coldstart.IsRunning(s.State) {
			return s, true
		}
	}
	return coldstart.StateSample{}, false
}

func firstReady(history []coldstart.StateSample) (float64, bool) {
	for _, s := range history {
		if s.Ready {
			return s.ElapsedMs, true
		}
	}
	return 0, false
}
