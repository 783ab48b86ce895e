package watcher

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"k8s-coldstart-benchmark/pkg/coldstart"

	"github.com/stretchr/testify/require"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/watch"
	"k8s.io/client-go/kubernetes/fake"
	k8stesting "k8s.io/client-go/testing"
	clocktesting "k8s.io/utils/clock/testing"
)

func newSession(t *testing.T) *coldstart.Session {
	t.Helper()
	catalog, err := coldstart.NewCatalog(coldstart.DefaultWorkloads())
	require.NoError(t, err)
	return coldstart.NewSession(catalog, "istio-proxy")
}

func waitDone(t *testing.T, w *Watcher) {
	t.Helper()
	select {
	case <-w.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for watcher to stop")
	}
}

const stream = `{"type":"Normal","reason":"Scheduled","firstTimestamp":"2024-07-23T10:00:00Z","involvedObject":{"kind":"Pod","name":"ratings-v1-abc"}}
not json at all
{"type":"Normal","reason":"Pulling","eventTime":"2024-07-23T10:00:00.500000Z","involvedObject":{"kind":"Pod","name":"ratings-v1-abc"}}

{"type":"Normal","reason":"ScalingReplicaSet","firstTimestamp":"2024-07-23T10:00:00Z","involvedObject":{"kind":"Deployment","name":"ratings-v1"}}
{"type":"Normal","reason":"Scheduled","firstTimestamp":"2024-07-23T10:00:00Z","involvedObject":{"kind":"Pod","name":"mysql-0"}}
{"type":"Normal","reason":"Started","involvedObject":{"kind":"Pod","name":"details-v1-xyz"}}
{"broken":
`

func TestWatcherFiltersLineStream(t *testing.T) {
	t.Parallel()
	session := newSession(t)
	now := time.Date(2024, 7, 23, 11, 0, 0, 0, time.UTC)
	w := New(&LineSource{Reader: strings.NewReader(stream)}, session, WithClock(clocktesting.NewFakePassiveClock(now)))

	w.Run(context.Background())

	stats := w.Stats()
	require.Equal(t, 5, stats.Received)
	require.Equal(t, 3, stats.Accepted)
	require.Equal(t, 1, stats.Foreign)
	require.Equal(t, 1, stats.Untracked)
	require.Equal(t, 2, stats.Malformed)
	require.Equal(t, 1, stats.Fallback)

	pods := session.Snapshot().PodsByName()
	ratings := pods["ratings-v1-abc"]
	require.Equal(t, "ratings", ratings.Workload)
	require.Len(t, ratings.Events, 2)
	require.Equal(t, "Scheduled", ratings.Events[0].Reason)
	require.InDelta(t, 500.0, ratings.Events[1].At.Sub(ratings.Events[0].At), 0.001)

	details := pods["details-v1-xyz"]
	require.True(t, details.Events[0].At.Fallback)
	require.InDelta(t, float64(now.UnixNano())/1e6, details.Events[0].At.Ms, 0.001)

	_, ok := pods["mysql-0"]
	require.False(t, ok)
}

type failingSource struct{}

func (failingSource) Stream(context.Context) (<-chan RawEvent, error) {
	return nil, errors.New("kubectl not found")
}

func TestWatcherStartFailureDoesNotPanic(t *testing.T) {
	t.Parallel()
	w := New(failingSource{}, newSession(t))
	w.Start(context.Background())
	waitDone(t, w)
	require.Equal(t, Stats{}, w.Stats())
}

func TestWatcherAPISource(t *testing.T) {
	t.Parallel()
	client := fake.NewSimpleClientset()
	fakeWatcher := watch.NewFake()
	client.PrependWatchReactor("events", k8stesting.DefaultWatchReactor(fakeWatcher, nil))
	session := newSession(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	w := New(&APISource{Client: client, Namespace: "bookinfo"}, session)
	w.Start(ctx)

	first := time.Date(2024, 7, 23, 10, 0, 0, 0, time.UTC)
	fakeWatcher.Add(&corev1.Event{
		ObjectMeta:     metav1.ObjectMeta{Name: "e1", Namespace: "bookinfo"},
		InvolvedObject: corev1.ObjectReference{Kind: "Pod", Name: "productpage-v1-1"},
		Type:           corev1.EventTypeNormal,
		Reason:         "Pulled",
		FirstTimestamp: metav1.NewTime(first),
	})

	require.Eventually(t, func() bool {
		return w.Stats().Accepted == 1
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	waitDone(t, w)

	pod := session.Snapshot().PodsByName()["productpage-v1-1"]
	require.Len(t, pod.Events, 1)
	require.False(t, pod.Events[0].At.Fallback)
	require.InDelta(t, float64(first.UnixNano())/1e6, pod.Events[0].At.Ms, 0.001)
}

func TestRawEventTimestampPreference(t *testing.T) {
	t.Parallel()
	require.Equal(t, "a", RawEvent{FirstTimestamp: "a", EventTime: "b"}.Timestamp())
	require.Equal(t, "b", RawEvent{EventTime: "b", LastTimestamp: "c"}.Timestamp())
	require.Equal(t, "c", RawEvent{LastTimestamp: "c"}.Timestamp())
	require.Equal(t, "", RawEvent{}.Timestamp())
}
