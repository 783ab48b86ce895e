package poller

import (
	"context"
	"log/slog"
	"time"

	"k8s-coldstart-benchmark/pkg/coldstart"
	"k8s-coldstart-benchmark/pkg/k8s"
	"k8s-coldstart-benchmark/pkg/logging"
	"k8s-coldstart-benchmark/pkg/metrics"

	"k8s.io/apimachinery/pkg/util/wait"
	"k8s.io/client-go/kubernetes"
	"k8s.io/utils/clock"
)

const (
	DefaultInterval   = time.Second
	DefaultIterations = 120
)

type Request struct {
	Cycle      int
	Namespace  string
	Workload   coldstart.Workload
	Trigger    time.Time
	Interval   time.Duration
	Iterations int
}

type Result struct {
	Iterations     int      `json:"iterations"`
	Errors         int      `json:"errors"`
	AllReady       bool     `json:"all_ready"`
	ReadyElapsedMs float64  `json:"ready_elapsed_ms,omitempty"`
	Pods           []string `json:"pods"`
	// Interrupted is set when ctx ended before readiness or the iteration cap.
	Interrupted bool `json:"interrupted,omitempty"`
}

// Poller samples pod and container status for one workload at a fixed cadence.
type Poller struct {
	client  kubernetes.Interface
	session *coldstart.Session
	clock   clock.PassiveClock
	logger  *slog.Logger
}

func New(client kubernetes.Interface, session *coldstart.Session, clk clock.PassiveClock, logger *slog.Logger) *Poller {
	if clk == nil {
		clk = clock.RealClock{}
	}
	if logger == nil {
		logger = logging.GetLogger()
	}
	return &Poller{client: client, session: session, clock: clk, logger: logger}
}

// Run blocks until every container of the observed pods is ready, the
// iteration budget is spent, or ctx ends. Failed queries count as missed ticks.
func (p *Poller) Run(ctx context.Context, req Request) (Result, error) {
	if req.Interval <= 0 {
		req.Interval = DefaultInterval
	}
	if req.Iterations <= 0 {
		req.Iterations = DefaultIterations
	}
	if _, err := p.session.Cycle(req.Cycle); err != nil {
		return Result{}, err
	}

	var result Result
	err := wait.PollUntilContextCancel(ctx, req.Interval, true, func(ctx context.Context) (bool, error) {
		result.Iterations++
		done := p.tick(ctx, req, &result)
		if done {
			return true, nil
		}
		return result.Iterations >= req.Iterations, nil
	})
	if err != nil {
		if wait.Interrupted(err) {
			result.Interrupted = true
			return result, nil
		}
		return result, err
	}
	if !result.AllReady {
		p.logger.Warn("poll budget exhausted before ready",
			logging.StringField("workload", req.Workload.Name),
			logging.IntField("iterations", result.Iterations),
		)
	}
	return result, nil
}

func (p *Poller) tick(ctx context.Context, req Request, result *Result) bool {
	pods, err := k8s.ListPods(ctx, p.client, req.Namespace, req.Workload.Selector)
	if err != nil {
		if ctx.Err() != nil {
			return false
		}
		result.Errors++
		metrics.RecordPollError(req.Workload.Name)
		p.logger.Warn("pod status query failed, skipping sample",
			logging.StringField("workload", req.Workload.Name),
			logging.IntField("iteration", result.Iterations),
			logging.ErrorField(err),
		)
		return false
	}

	now := p.clock.Now()
	elapsed := float64(now.Sub(req.Trigger)) / float64(time.Millisecond)

	observed := 0
	allReady := true
	for i := range pods {
		pod := &pods[i]
		if k8s.Terminating(pod) {
			continue
		}
		observed++
		first, err := p.session.ObservePod(req.Cycle, pod.Name, k8s.CreationTimestamp(pod, now), elapsed)
		if err != nil {
			p.logger.Error("record pod failed", logging.StringField("pod", pod.Name), logging.ErrorField(err))
			continue
		}
		if first {
			result.Pods = append(result.Pods, pod.Name)
			p.logger.Info("pod observed",
				logging.StringField("pod", pod.Name),
				logging.MillisField("elapsed", elapsed),
			)
		}
		for _, status := range pod.Status.ContainerStatuses {
			sample := k8s.ContainerSample(status, now, elapsed)
			if err := p.session.AppendSample(pod.Name, status.Name, sample); err != nil {
				p.logger.Warn("sample rejected",
					logging.StringField("pod", pod.Name),
					logging.StringField("container", status.Name),
					logging.ErrorField(err),
				)
			}
		}
		if !k8s.AllContainersReady(pod) {
			allReady = false
		}
	}

	if observed == 0 || !allReady {
		return false
	}
	result.AllReady = true
	result.ReadyElapsedMs = elapsed
	if err := p.session.AddCycleMilestone(req.Cycle, coldstart.MilestoneAllReady, elapsed); err != nil {
		p.logger.Error("record milestone failed", logging.ErrorField(err))
	}
	p.logger.Info("all containers ready",
		logging.StringField("workload", req.Workload.Name),
		logging.MillisField("elapsed", elapsed),
	)
	return true
}
