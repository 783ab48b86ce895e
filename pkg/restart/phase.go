package restart

import "k8s-coldstart-benchmark/pkg/coldstart"

// Phase is the state of one workload restart:
// NotStarted -> Deleting -> WaitingForReady -> Ready | TimedOut.
// Failed is reached when the restart itself fails or the run is cancelled.
type Phase string

const (
	PhaseNotStarted      Phase = "NotStarted"
	PhaseDeleting        Phase = "Deleting"
	PhaseWaitingForReady Phase = "WaitingForReady"
	PhaseReady           Phase = "Ready"
	PhaseTimedOut        Phase = "TimedOut"
	PhaseFailed          Phase = "Failed"
)

var transitions = map[Phase][]Phase{
	PhaseNotStarted:      {PhaseDeleting},
	PhaseDeleting:        {PhaseWaitingForReady, PhaseFailed},
	PhaseWaitingForReady: {PhaseReady, PhaseTimedOut, PhaseFailed},
}

func (p Phase) Terminal() bool {
	return p == PhaseReady || p == PhaseTimedOut || p == PhaseFailed
}

func (p Phase) CanTransition(next Phase) bool {
	for _, allowed := range transitions[p] {
		if allowed == next {
			return true
		}
	}
	return false
}

func (p Phase) Outcome() coldstart.Outcome {
	switch p {
	case PhaseReady:
		return coldstart.OutcomeReady
	case PhaseTimedOut:
		return coldstart.OutcomeTimedOut
	case PhaseFailed:
		return coldstart.OutcomeFailed
	default:
		return coldstart.OutcomePending
	}
}
