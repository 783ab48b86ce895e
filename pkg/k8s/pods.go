package k8s

import (
	"context"
	"fmt"

	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"
)

func ListPods(ctx context.Context, client kubernetes.Interface, namespace, labelSelector string) ([]corev1.Pod, error) {
	pods, err := client.CoreV1().Pods(namespace).List(ctx, metav1.ListOptions{
		LabelSelector: labelSelector,
	})
	if err != nil {
		return nil, fmt.Errorf("list pods %q: %w", labelSelector, err)
	}
	return pods.Items, nil
}

// DeletePods deletes every pod matching the selector and returns their names.
// Pods that disappear in between are not an error.
func DeletePods(ctx context.Context, client kubernetes.Interface, namespace, labelSelector string) ([]string, error) {
	pods, err := ListPods(ctx, client, namespace, labelSelector)
	if err != nil {
		return nil, err
	}
	deleted := make([]string, 0, len(pods))
	for _, pod := range pods {
		if Terminating(&pod) {
			continue
		}
		err := client.CoreV1().Pods(namespace).Delete(ctx, pod.Name, metav1.DeleteOptions{})
		if err != nil && !apierrors.IsNotFound(err) {
			return deleted, fmt.Errorf("delete pod %s: %w", pod.Name, err)
		}
		deleted = append(deleted, pod.Name)
	}
	return deleted, nil
}

type PodSummary struct {
	Total    int32
	Ready    int32
	Pending  int32
	Messages map[string]int
}

// SummarizePods explains why pods behind a selector are not ready yet.
func SummarizePods(ctx context.Context, client kubernetes.Interface, namespace, labelSelector string) (PodSummary, error) {
	pods, err := ListPods(ctx, client, namespace, labelSelector)
	if err != nil {
		return PodSummary{}, err
	}

	summary := PodSummary{Messages: map[string]int{}}
	for _, pod := range pods {
		if Terminating(&pod) {
			continue
		}
		summary.Total++
		if IsPodReady(&pod) {
			summary.Ready++
			continue
		}
		summary.Pending++
		if reason, message := podSchedulingFailure(&pod); message != "" {
			key := reason
			if key == "" {
				key = "unspecified"
			}
			summary.Messages[fmt.Sprintf("%s: %s", key, message)]++
		}
		for _, cs := range pod.Status.ContainerStatuses {
			if cs.State.Waiting != nil && cs.State.Waiting.Reason != "" {
				summary.Messages[fmt.Sprintf("%s: %s", cs.Name, cs.State.Waiting.Reason)]++
			}
		}
	}
	return summary, nil
}

func podSchedulingFailure(pod *corev1.Pod) (string, string) {
	for _, cond := range pod.Status.Conditions {
		if cond.Type == corev1.PodScheduled && cond.Status == corev1.ConditionFalse {
			return cond.Reason, cond.Message
		}
	}
	return "", ""
}

func IsPodReady(pod *corev1.Pod) bool {
	for _, cond := range pod.Status.Conditions {
		if cond.Type == corev1.PodReady && cond.Status == corev1.ConditionTrue {
			return true
		}
	}
	return false
}

func Terminating(pod *corev1.Pod) bool {
	return pod.DeletionTimestamp != nil
}
