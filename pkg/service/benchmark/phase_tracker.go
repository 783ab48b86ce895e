package benchmark

import (
	"log/slog"
	"strings"
	"sync"

	"k8s-coldstart-benchmark/pkg/coldstart"
	"k8s-coldstart-benchmark/pkg/logging"
	"k8s-coldstart-benchmark/pkg/metrics"
	"k8s-coldstart-benchmark/pkg/report"
	"k8s-coldstart-benchmark/pkg/stages"

	"k8s.io/utils/clock"
)

// PhaseRecorder keeps the run's phase markers and logs the stage breakdown of
// the latest cycle whenever a restart reaches a terminal phase.
type PhaseRecorder struct {
	session *coldstart.Session
	clock   clock.PassiveClock
	logger  *slog.Logger

	mu     sync.Mutex
	phases []report.PhaseMarker
}

func NewPhaseRecorder(session *coldstart.Session, clk clock.PassiveClock, logger *slog.Logger) *PhaseRecorder {
	if logger == nil {
		logger = logging.GetLogger()
	}
	if clk == nil {
		clk = clock.RealClock{}
	}
	return &PhaseRecorder{
		session: session,
		clock:   clk,
		logger:  logger,
	}
}

func (p *PhaseRecorder) Record(name string) error {
	now := p.clock.Now()
	p.mu.Lock()
	p.phases = append(p.phases, report.PhaseMarker{Name: name, Time: now})
	p.mu.Unlock()
	metrics.RecordPhase(name)

	switch name {
	case "restart:ready", "restart:timeout":
		p.logLatestCycle(name)
	}
	return nil
}

func (p *PhaseRecorder) Phases() []report.PhaseMarker {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]report.PhaseMarker, len(p.phases))
	copy(out, p.phases)
	return out
}

func (p *PhaseRecorder) logLatestCycle(phase string) {
	if p.session == nil {
		return
	}
	snap := p.session.Snapshot()
	if len(snap.Cycles) == 0 {
		return
	}
	cycle := snap.Cycles[len(snap.Cycles)-1]
	pods := snap.PodsByName()
	for _, name := range cycle.Pods {
		pod, ok := pods[name]
		if !ok {
			continue
		}
		logBreakdown(p.logger, cycleDoneMessage(phase), stages.ExtractPod(cycle, pod))
	}
}

func cycleDoneMessage(phase string) string {
	switch phase {
	case "restart:ready":
		return "cycle breakdown"
	case "restart:timeout":
		return "cycle breakdown (timed out)"
	default:
		return strings.ReplaceAll(phase, "restart:", "cycle ")
	}
}
