package k8s

import (
	"context"
	"fmt"

	corev1 "k8s.io/api/core/v1"
	policyv1 "k8s.io/api/policy/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"
)

// EvictPods evicts every pod matching the selector through the Eviction API,
// so PodDisruptionBudgets are honoured. Mirror and DaemonSet pods are skipped.
func EvictPods(ctx context.Context, client kubernetes.Interface, namespace, labelSelector string) ([]string, error) {
	pods, err := ListPods(ctx, client, namespace, labelSelector)
	if err != nil {
		return nil, err
	}
	evicted := make([]string, 0, len(pods))
	for _, pod := range pods {
		if Terminating(&pod) || isMirrorPod(&pod) || isDaemonSetPod(&pod) {
			continue
		}
		eviction := &policyv1.Eviction{
			ObjectMeta: metav1.ObjectMeta{
				Name:      pod.Name,
				Namespace: pod.Namespace,
			},
		}
		err := client.PolicyV1().Evictions(pod.Namespace).Evict(ctx, eviction)
		if err != nil && !apierrors.IsNotFound(err) {
			return evicted, fmt.Errorf("evict pod %s: %w", pod.Name, err)
		}
		evicted = append(evicted, pod.Name)
	}
	return evicted, nil
}

func isDaemonSetPod(pod *corev1.Pod) bool {
	for _, ref := range pod.OwnerReferences {
		if ref.Kind == "DaemonSet" {
			return true
		}
	}
	return false
}

func isMirrorPod(pod *corev1.Pod) bool {
	_, ok := pod.Annotations[corev1.MirrorPodAnnotationKey]
	return ok
}
