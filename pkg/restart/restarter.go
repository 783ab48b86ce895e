package restart

import (
	"context"
	"fmt"
	"time"

	"k8s-coldstart-benchmark/pkg/coldstart"
	"k8s-coldstart-benchmark/pkg/k8s"

	"k8s.io/client-go/kubernetes"
	"k8s.io/utils/clock"
)

const (
	StrategyDelete = "delete"
	StrategyScale  = "scale"
	StrategyEvict  = "evict"
)

// Restarter forces a workload through a cold start and returns the trigger instant.
type Restarter interface {
	Restart(ctx context.Context, w coldstart.Workload) (time.Time, error)
}

func NewRestarter(strategy string, client kubernetes.Interface, namespace string, clk clock.PassiveClock, timeout time.Duration) (Restarter, error) {
	if clk == nil {
		clk = clock.RealClock{}
	}
	switch strategy {
	case "", StrategyDelete:
		return &DeleteRestarter{Client: client, Namespace: namespace, Clock: clk}, nil
	case StrategyEvict:
		return &EvictRestarter{Client: client, Namespace: namespace, Clock: clk}, nil
	case StrategyScale:
		return &ScaleRestarter{Client: client, Namespace: namespace, Clock: clk, DrainTimeout: timeout}, nil
	default:
		return nil, fmt.Errorf("unknown restart strategy %q", strategy)
	}
}

// DeleteRestarter deletes the workload's pods and lets the controller replace them.
type DeleteRestarter struct {
	Client    kubernetes.Interface
	Namespace string
	Clock     clock.PassiveClock
}

func (r *DeleteRestarter) Restart(ctx context.Context, w coldstart.Workload) (time.Time, error) {
	trigger := r.Clock.Now()
	if _, err := k8s.DeletePods(ctx, r.Client, r.Namespace, w.Selector); err != nil {
		return trigger, err
	}
	return trigger, nil
}

// EvictRestarter goes through the Eviction API, so a PodDisruptionBudget can
// refuse the restart.
type EvictRestarter struct {
	Client    kubernetes.Interface
	Namespace string
	Clock     clock.PassiveClock
}

func (r *EvictRestarter) Restart(ctx context.Context, w coldstart.Workload) (time.Time, error) {
	trigger := r.Clock.Now()
	if _, err := k8s.EvictPods(ctx, r.Client, r.Namespace, w.Selector); err != nil {
		return trigger, err
	}
	return trigger, nil
}

// ScaleRestarter scales the Deployment to zero, waits for its pods to go away,
// then scales it back. The trigger is the scale-up.
type ScaleRestarter struct {
	Client       kubernetes.Interface
	Namespace    string
	Clock        clock.PassiveClock
	DrainTimeout time.Duration
}

func (r *ScaleRestarter) Restart(ctx context.Context, w coldstart.Workload) (time.Time, error) {
	name := w.DeploymentName()
	replicas, err := k8s.ScaleDeployment(ctx, r.Client, r.Namespace, name, 0)
	if err != nil {
		return r.Clock.Now(), err
	}
	if replicas == 0 {
		replicas = 1
	}
	if err := k8s.WaitForPodsGone(ctx, r.Client, r.Namespace, w.Selector, r.DrainTimeout); err != nil {
		return r.Clock.Now(), fmt.Errorf("wait for %s pods to go: %w", name, err)
	}
	trigger := r.Clock.Now()
	if _, err := k8s.ScaleDeployment(ctx, r.Client, r.Namespace, name, replicas); err != nil {
		return trigger, err
	}
	return trigger, nil
}
