package restart

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"k8s-coldstart-benchmark/pkg/coldstart"
	"k8s-coldstart-benchmark/pkg/report"
	"k8s-coldstart-benchmark/pkg/stages"

	"github.com/stretchr/testify/require"
	appsv1 "k8s.io/api/apps/v1"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/client-go/kubernetes/fake"
	k8stesting "k8s.io/client-go/testing"
)

const ns = "bookinfo"

type stubRestarter struct {
	mu    sync.Mutex
	calls []string
	fail  map[string]error
}

func (s *stubRestarter) Restart(_ context.Context, w coldstart.Workload) (time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, w.Name)
	return time.Now(), s.fail[w.Name]
}

func pod(name, app string, ready bool) *corev1.Pod {
	cond := corev1.ConditionFalse
	state := corev1.ContainerState{Waiting: &corev1.ContainerStateWaiting{Reason: "ContainerCreating"}}
	if ready {
		cond = corev1.ConditionTrue
		state = corev1.ContainerState{Running: &corev1.ContainerStateRunning{StartedAt: metav1.Now()}}
	}
	return &corev1.Pod{
		ObjectMeta: metav1.ObjectMeta{
			Name:              name,
			Namespace:         ns,
			Labels:            map[string]string{"app": app},
			CreationTimestamp: metav1.Now(),
		},
		Spec: corev1.PodSpec{Containers: []corev1.Container{{Name: app}}},
		Status: corev1.PodStatus{
			Phase:             corev1.PodRunning,
			Conditions:        []corev1.PodCondition{{Type: corev1.PodReady, Status: cond}},
			ContainerStatuses: []corev1.ContainerStatus{{Name: app, Ready: ready, State: state}},
		},
	}
}

func newSession(t *testing.T) *coldstart.Session {
	t.Helper()
	catalog, err := coldstart.NewCatalog(coldstart.DefaultWorkloads())
	require.NoError(t, err)
	return coldstart.NewSession(catalog, "istio-proxy")
}

func lookup(t *testing.T, s *coldstart.Session, names ...string) []coldstart.Workload {
	t.Helper()
	out := make([]coldstart.Workload, 0, len(names))
	for _, name := range names {
		w, err := s.Catalog().Lookup(name)
		require.NoError(t, err)
		out = append(out, w)
	}
	return out
}

func TestRunAllContinuesAfterFailure(t *testing.T) {
	client := fake.NewSimpleClientset(
		pod("ratings-v1-a", "ratings", true),
		pod("productpage-v1-a", "productpage", true),
	)
	session := newSession(t)
	restarter := &stubRestarter{fail: map[string]error{"details": errors.New("forbidden")}}

	var phases []string
	o := New(client, session, restarter, Config{
		Namespace:    ns,
		ReadyTimeout: 5 * time.Second,
		Cooldown:     time.Millisecond,
		PollInterval: 10 * time.Millisecond,
		RecordPhase: func(name string) error {
			phases = append(phases, name)
			return nil
		},
	})

	results, err := o.RunAll(context.Background(), lookup(t, session, "ratings", "details", "productpage"))
	require.NoError(t, err)
	require.Equal(t, []string{"ratings", "details", "productpage"}, restarter.calls)
	require.Len(t, results, 3)

	require.Equal(t, PhaseReady, results[0].Phase)
	require.True(t, results[0].Poll.AllReady)
	require.Equal(t, []string{"ratings-v1-a"}, results[0].Poll.Pods)

	require.Equal(t, PhaseFailed, results[1].Phase)
	require.Contains(t, results[1].Reason, "forbidden")

	require.Equal(t, PhaseReady, results[2].Phase)

	snap := session.Snapshot()
	require.Len(t, snap.Cycles, 3)
	require.Equal(t, coldstart.OutcomeReady, snap.Cycles[0].Outcome)
	require.Equal(t, coldstart.OutcomeFailed, snap.Cycles[1].Outcome)
	require.Equal(t, coldstart.OutcomeReady, snap.Cycles[2].Outcome)

	cooldowns := 0
	for _, p := range phases {
		if p == "cooldown:start" {
			cooldowns++
		}
	}
	require.Equal(t, 2, cooldowns)
	require.Equal(t, "restart:ready", phases[len(phases)-1])
}

func TestRunOneTimesOut(t *testing.T) {
	client := fake.NewSimpleClientset(pod("details-v1-a", "details", false))
	session := newSession(t)
	o := New(client, session, &stubRestarter{}, Config{
		Namespace:      ns,
		ReadyTimeout:   100 * time.Millisecond,
		PollInterval:   10 * time.Millisecond,
		PollIterations: 1000,
	})

	res := o.RunOne(context.Background(), lookup(t, session, "details")[0])
	require.Equal(t, PhaseTimedOut, res.Phase)
	require.NotEmpty(t, res.Reason)
	require.True(t, res.Poll.Interrupted)
	require.False(t, res.Poll.AllReady)
	require.Positive(t, res.Poll.Iterations)

	cycle, err := session.Cycle(res.Cycle)
	require.NoError(t, err)
	require.Equal(t, coldstart.OutcomeTimedOut, cycle.Outcome)
	require.Equal(t, res.Poll.Iterations, cycle.PollIterations)
}

func TestRunOneSpentPollBudgetIsIncomplete(t *testing.T) {
	client := fake.NewSimpleClientset(pod("details-v1-a", "details", false))
	session := newSession(t)
	o := New(client, session, &stubRestarter{}, Config{
		Namespace:      ns,
		ReadyTimeout:   5 * time.Second,
		PollInterval:   10 * time.Millisecond,
		PollIterations: 3,
	})

	flipped := make(chan struct{})
	go func() {
		defer close(flipped)
		time.Sleep(200 * time.Millisecond)
		_, _ = client.CoreV1().Pods(ns).Update(context.Background(), pod("details-v1-a", "details", true), metav1.UpdateOptions{})
	}()

	res := o.RunOne(context.Background(), lookup(t, session, "details")[0])
	<-flipped
	require.Equal(t, PhaseTimedOut, res.Phase)
	require.Contains(t, res.Reason, "poll budget exhausted")
	require.False(t, res.Poll.Interrupted)
	require.Equal(t, 3, res.Poll.Iterations)

	snap := session.Snapshot()
	require.Equal(t, coldstart.OutcomeTimedOut, snap.Cycles[res.Cycle].Outcome)

	stats, ok := report.Aggregate(snap.Cycles, stages.Extract(snap)).Workload("details")
	require.True(t, ok)
	require.Equal(t, 1, stats.TimedOut)
	require.Nil(t, stats.SchedulingDelay)
	require.Nil(t, stats.TotalReady)
}

func TestRunAllStopsDuringCooldown(t *testing.T) {
	client := fake.NewSimpleClientset(
		pod("ratings-v1-a", "ratings", true),
		pod("details-v1-a", "details", true),
	)
	session := newSession(t)
	restarter := &stubRestarter{}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	o := New(client, session, restarter, Config{
		Namespace:    ns,
		Cooldown:     time.Hour,
		PollInterval: 10 * time.Millisecond,
		RecordPhase: func(name string) error {
			if name == "cooldown:start" {
				cancel()
			}
			return nil
		},
	})

	results, err := o.RunAll(ctx, lookup(t, session, "ratings", "details"))
	require.ErrorIs(t, err, context.Canceled)
	require.Len(t, results, 1)
	require.Equal(t, []string{"ratings"}, restarter.calls)
}

func TestRunOneCanceled(t *testing.T) {
	client := fake.NewSimpleClientset(pod("reviews-v1-a", "reviews", false))
	session := newSession(t)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	cancelCtx, stop := context.WithCancel(ctx)
	time.AfterFunc(30*time.Millisecond, stop)

	o := New(client, session, &stubRestarter{}, Config{
		Namespace:    ns,
		ReadyTimeout: time.Minute,
		PollInterval: 10 * time.Millisecond,
	})
	res := o.RunOne(cancelCtx, lookup(t, session, "reviews")[0])
	require.Equal(t, PhaseFailed, res.Phase)
	require.Equal(t, "canceled", res.Reason)
}

func TestPhaseTransitions(t *testing.T) {
	t.Parallel()
	require.True(t, PhaseNotStarted.CanTransition(PhaseDeleting))
	require.False(t, PhaseNotStarted.CanTransition(PhaseReady))
	require.True(t, PhaseWaitingForReady.CanTransition(PhaseTimedOut))
	require.False(t, PhaseReady.CanTransition(PhaseFailed))
	require.True(t, PhaseTimedOut.Terminal())
	require.False(t, PhaseWaitingForReady.Terminal())
	require.Equal(t, coldstart.OutcomeTimedOut, PhaseTimedOut.Outcome())
	require.Equal(t, coldstart.OutcomePending, PhaseDeleting.Outcome())
}

func TestDeleteRestarter(t *testing.T) {
	t.Parallel()
	client := fake.NewSimpleClientset(
		pod("ratings-v1-a", "ratings", true),
		pod("details-v1-a", "details", true),
	)
	r, err := NewRestarter(StrategyDelete, client, ns, nil, 0)
	require.NoError(t, err)

	trigger, err := r.Restart(context.Background(), coldstart.Workload{Name: "ratings", Selector: "app=ratings"})
	require.NoError(t, err)
	require.False(t, trigger.IsZero())

	pods, err := client.CoreV1().Pods(ns).List(context.Background(), metav1.ListOptions{})
	require.NoError(t, err)
	require.Len(t, pods.Items, 1)
	require.Equal(t, "details-v1-a", pods.Items[0].Name)
}

func TestScaleRestarter(t *testing.T) {
	t.Parallel()
	replicas := int32(2)
	client := fake.NewSimpleClientset(&appsv1.Deployment{
		ObjectMeta: metav1.ObjectMeta{Name: "ratings", Namespace: ns},
		Spec:       appsv1.DeploymentSpec{Replicas: &replicas},
	})
	r, err := NewRestarter(StrategyScale, client, ns, nil, time.Second)
	require.NoError(t, err)

	_, err = r.Restart(context.Background(), coldstart.Workload{Name: "ratings", Selector: "app=ratings"})
	require.NoError(t, err)

	dep, err := client.AppsV1().Deployments(ns).Get(context.Background(), "ratings", metav1.GetOptions{})
	require.NoError(t, err)
	require.Equal(t, int32(2), *dep.Spec.Replicas)

	_, err = r.Restart(context.Background(), coldstart.Workload{Name: "missing", Selector: "app=missing"})
	require.Error(t, err)

	_, err = NewRestarter("rollout", client, ns, nil, 0)
	require.Error(t, err)
}

func TestEvictRestarter(t *testing.T) {
	t.Parallel()
	client := fake.NewSimpleClientset(pod("ratings-v1-a", "ratings", true))
	evictions := 0
	client.PrependReactor("create", "pods", func(action k8stesting.Action) (bool, runtime.Object, error) {
		if action.GetSubresource() == "eviction" {
			evictions++
			return true, nil, nil
		}
		return false, nil, nil
	})
	r, err := NewRestarter(StrategyEvict, client, ns, nil, 0)
	require.NoError(t, err)

	trigger, err := r.Restart(context.Background(), coldstart.Workload{Name: "ratings", Selector: "app=ratings"})
	require.NoError(t, err)
	require.False(t, trigger.IsZero())
	require.Equal(t, 1, evictions)
}
