package watcher

import (
	"context"
	"log/slog"
	"sync"

	"k8s-coldstart-benchmark/pkg/coldstart"
	"k8s-coldstart-benchmark/pkg/logging"
	"k8s-coldstart-benchmark/pkg/metrics"

	"k8s.io/utils/clock"
)

type Stats struct {
	Received  int `json:"received"`
	Accepted  int `json:"accepted"`
	Foreign   int `json:"skipped_kind"`
	Untracked int `json:"skipped_untracked"`
	Malformed int `json:"malformed"`
	Fallback  int `json:"fallback_timestamps"`
}

// Watcher appends the events of tracked pods to a Session from a single
// background goroutine.
type Watcher struct {
	source  Source
	session *coldstart.Session
	logger  *slog.Logger
	clock   clock.PassiveClock

	mu    sync.Mutex
	stats Stats
	done  chan struct{}
}

type Option func(*Watcher)

func WithLogger(logger *slog.Logger) Option {
	return func(w *Watcher) {
		w.logger = logger
	}
}

func WithClock(c clock.PassiveClock) Option {
	return func(w *Watcher) {
		w.clock = c
	}
}

func New(source Source, session *coldstart.Session, opts ...Option) *Watcher {
	w := &Watcher{
		source:  source,
		session: session,
		logger:  logging.GetLogger(),
		clock:   clock.RealClock{},
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	if ls, ok := source.(*LineSource); ok && ls.Malformed == nil {
		ls.Malformed = w.malformed
	}
	return w
}

func (w *Watcher) Start(ctx context.Context) {
	go w.Run(ctx)
}

// Run consumes the source until it ends or ctx is done. A source that cannot
// start is logged once and never retried.
func (w *Watcher) Run(ctx context.Context) {
	defer close(w.done)

	events, err := w.source.Stream(ctx)
	if err != nil {
		w.logger.Error("event watcher start failed, continuing without events", logging.ErrorField(err))
		return
	}
	w.logger.Info("event watcher started")
	for {
		select {
		case <-ctx.Done():
			w.logger.Info("event watcher stopped")
			return
		case raw, ok := <-events:
			if !ok {
				if ctx.Err() == nil {
					w.logger.Warn("event stream ended, no further events will be recorded")
				}
				return
			}
			w.Handle(raw)
		}
	}
}

func (w *Watcher) Done() <-chan struct{} {
	return w.done
}

// Handle filters one event and records it. It reports whether the event was kept.
func (w *Watcher) Handle(raw RawEvent) bool {
	w.mu.Lock()
	w.stats.Received++
	w.mu.Unlock()

	if raw.InvolvedObject.Kind != "Pod" {
		w.count(func(s *Stats) { s.Foreign++ })
		return false
	}
	pod := raw.InvolvedObject.Name
	workload, ok := w.session.ResolveWorkload(pod)
	if !ok {
		w.count(func(s *Stats) { s.Untracked++ })
		return false
	}

	at := coldstart.NormalizeTimestamp(raw.Timestamp(), w.clock.Now())
	if at.Fallback {
		w.count(func(s *Stats) { s.Fallback++ })
		w.logger.Debug("event timestamp unparseable, using now",
			logging.StringField("pod", pod),
			logging.StringField("reason", raw.Reason),
		)
	}
	w.session.RecordEvent(workload, coldstart.LifecycleEvent{
		Pod:     pod,
		Type:    raw.Type,
		Reason:  raw.Reason,
		Message: raw.Message,
		At:      at,
	})
	w.count(func(s *Stats) { s.Accepted++ })
	metrics.RecordEvent(raw.Reason)
	w.logger.Debug("pod event",
		logging.StringField("pod", pod),
		logging.StringField("workload", workload),
		logging.StringField("reason", raw.Reason),
	)
	return true
}

func (w *Watcher) Stats() Stats {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.stats
}

func (w *Watcher) malformed(line string, err error) {
	w.count(func(s *Stats) { s.Malformed++ })
	w.logger.Debug("skipping malformed event line", logging.ErrorField(err))
}

func (w *Watcher) count(fn func(*Stats)) {
	w.mu.Lock()
	fn(&w.stats)
	w.mu.Unlock()
}
