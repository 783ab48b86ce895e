package restart

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"k8s-coldstart-benchmark/pkg/coldstart"
	"k8s-coldstart-benchmark/pkg/k8s"
	"k8s-coldstart-benchmark/pkg/logging"
	"k8s-coldstart-benchmark/pkg/metrics"
	"k8s-coldstart-benchmark/pkg/poller"
	"k8s-coldstart-benchmark/pkg/report"

	"k8s.io/client-go/kubernetes"
	"k8s.io/utils/clock"
)

const (
	DefaultReadyTimeout = 120 * time.Second
	DefaultCooldown     = 10 * time.Second
)

type Config struct {
	Namespace      string
	ReadyTimeout   time.Duration
	Cooldown       time.Duration
	PollInterval   time.Duration
	PollIterations int
	RecordPhase    func(name string) error
}

type CycleResult struct {
	Workload string        `json:"workload"`
	Cycle    int           `json:"cycle"`
	Phase    Phase         `json:"phase"`
	Trigger  time.Time     `json:"trigger"`
	Reason   string        `json:"reason,omitempty"`
	Poll     poller.Result `json:"poll"`
}

// Orchestrator restarts workloads strictly one at a time. A workload that
// fails or times out is recorded and the next one is measured anyway.
type Orchestrator struct {
	client    kubernetes.Interface
	session   *coldstart.Session
	restarter Restarter
	poller    *poller.Poller
	cfg       Config
	logger    *slog.Logger
	clock     clock.Clock
}

type Option func(*Orchestrator)

func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) {
		o.logger = logger
	}
}

func WithClock(c clock.Clock) Option {
	return func(o *Orchestrator) {
		o.clock = c
	}
}

func WithPoller(p *poller.Poller) Option {
	return func(o *Orchestrator) {
		o.poller = p
	}
}

func New(client kubernetes.Interface, session *coldstart.Session, restarter Restarter, cfg Config, opts ...Option) *Orchestrator {
	if cfg.ReadyTimeout <= 0 {
		cfg.ReadyTimeout = DefaultReadyTimeout
	}
	if cfg.Cooldown < 0 {
		cfg.Cooldown = 0
	}
	o := &Orchestrator{
		client:    client,
		session:   session,
		restarter: restarter,
		cfg:       cfg,
		logger:    logging.GetLogger(),
		clock:     clock.RealClock{},
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.poller == nil {
		o.poller = poller.New(client, session, o.clock, o.logger)
	}
	return o
}

func (o *Orchestrator) RunAll(ctx context.Context, workloads []coldstart.Workload) ([]CycleResult, error) {
	results := make([]CycleResult, 0, len(workloads))
	for i, w := range workloads {
		res := o.RunOne(ctx, w)
		results = append(results, res)
		if err := ctx.Err(); err != nil {
			return results, err
		}
		if i == len(workloads)-1 || o.cfg.Cooldown == 0 {
			continue
		}
		if err := o.mark("cooldown:start", logging.DurationField("duration", o.cfg.Cooldown)); err != nil {
			return results, err
		}
		select {
		case <-ctx.Done():
			return results, ctx.Err()
		case <-o.clock.After(o.cfg.Cooldown):
		}
	}
	return results, nil
}

func (o *Orchestrator) RunOne(ctx context.Context, w coldstart.Workload) CycleResult {
	res := CycleResult{Workload: w.Name, Cycle: -1, Phase: PhaseNotStarted}
	_ = o.mark("restart:start", logging.StringField("workload", w.Name), logging.StringField("selector", w.Selector))

	o.transition(&res, PhaseDeleting)
	trigger, err := o.restarter.Restart(ctx, w)
	res.Trigger = trigger
	res.Cycle = o.session.BeginCycle(w.Name, trigger)
	if err != nil {
		o.fail(ctx, &res, fmt.Errorf("restart %s: %w", w.Name, err))
		return res
	}
	_ = o.mark("restart:triggered", logging.StringField("workload", w.Name))

	o.transition(&res, PhaseWaitingForReady)
	waitCtx, cancel := context.WithTimeout(ctx, o.cfg.ReadyTimeout)
	defer cancel()

	poll, err := o.poller.Run(waitCtx, poller.Request{
		Cycle:      res.Cycle,
		Namespace:  o.cfg.Namespace,
		Workload:   w,
		Trigger:    trigger,
		Interval:   o.cfg.PollInterval,
		Iterations: o.cfg.PollIterations,
	})
	res.Poll = poll
	if err != nil {
		o.fail(ctx, &res, fmt.Errorf("poll %s: %w", w.Name, err))
		return res
	}
	if ctx.Err() != nil {
		o.fail(ctx, &res, ctx.Err())
		return res
	}

	if poll.AllReady {
		o.transition(&res, PhaseReady)
		metrics.RecordColdStart(w.Name, poll.ReadyElapsedMs)
		_ = o.mark("restart:ready",
			logging.StringField("workload", w.Name),
			logging.MillisField("elapsed", poll.ReadyElapsedMs),
			logging.IntField("iterations", poll.Iterations),
		)
	} else {
		o.transition(&res, PhaseTimedOut)
		res.Reason = timeoutReason(poll, o.cfg.ReadyTimeout)
		_ = o.mark("restart:timeout", logging.StringField("workload", w.Name), logging.StringField("reason", res.Reason))
		o.logDiagnostics(ctx, w)
	}
	o.close(&res)
	return res
}

// timeoutReason tells a spent poll budget apart from the wall-clock deadline.
func timeoutReason(poll poller.Result, timeout time.Duration) string {
	if poll.Interrupted {
		return fmt.Sprintf("not ready within %s", timeout)
	}
	return fmt.Sprintf("poll budget exhausted after %d iterations", poll.Iterations)
}

func (o *Orchestrator) transition(res *CycleResult, next Phase) {
	if !res.Phase.CanTransition(next) {
		o.logger.Error("invalid restart phase transition",
			logging.StringField("workload", res.Workload),
			logging.StringField("from", string(res.Phase)),
			logging.StringField("to", string(next)),
		)
	}
	o.logger.Debug("restart phase",
		logging.StringField("workload", res.Workload),
		logging.StringField("phase", string(next)),
	)
	res.Phase = next
}

func (o *Orchestrator) fail(ctx context.Context, res *CycleResult, err error) {
	o.transition(res, PhaseFailed)
	res.Reason = err.Error()
	if ctx.Err() != nil || errors.Is(err, context.Canceled) {
		res.Reason = "canceled"
	}
	_ = o.mark("restart:failed", logging.StringField("workload", res.Workload), logging.ErrorField(err))
	o.close(res)
}

func (o *Orchestrator) close(res *CycleResult) {
	if res.Cycle >= 0 {
		if err := o.session.CloseCycle(res.Cycle, coldstart.CycleClose{
			Outcome:        res.Phase.Outcome(),
			Reason:         res.Reason,
			PollIterations: res.Poll.Iterations,
			PollErrors:     res.Poll.Errors,
		}); err != nil {
			o.logger.Error("close cycle failed", logging.ErrorField(err))
		}
	}
	metrics.RecordRestart(res.Workload, string(res.Phase.Outcome()))
}

func (o *Orchestrator) logDiagnostics(ctx context.Context, w coldstart.Workload) {
	diagCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	summary, err := k8s.SummarizePods(diagCtx, o.client, o.cfg.Namespace, w.Selector)
	if err != nil {
		o.logger.Warn("pod diagnostics unavailable", logging.StringField("workload", w.Name), logging.ErrorField(err))
		return
	}
	o.logger.Info("pod state summary",
		logging.StringField("workload", w.Name),
		logging.StringField("ready", fmt.Sprintf("%d/%d", summary.Ready, summary.Total)),
		logging.StringField("pending", fmt.Sprintf("%d", summary.Pending)),
		logging.StringField("reasons", report.FormatReasons(summary.Messages, 3)),
	)
}

func (o *Orchestrator) mark(name string, attrs ...slog.Attr) error {
	o.logger.Info(formatPhaseMessage(name), attrsToArgs(attrs)...)
	if o.cfg.RecordPhase != nil {
		return o.cfg.RecordPhase(name)
	}
	return nil
}

func formatPhaseMessage(name string) string {
	switch name {
	case "restart:start":
		return "restart start"
	case "restart:triggered":
		return "restart triggered, waiting for ready"
	case "restart:ready":
		return "workload stabilized"
	case "restart:timeout":
		return "workload failed to stabilize"
	default:
		return strings.ReplaceAll(name, ":", " ")
	}
}

func attrsToArgs(attrs []slog.Attr) []any {
	args := make([]any, 0, len(attrs))
	for _, attr := range attrs {
		args = append(args, attr)
	}
	return args
}
