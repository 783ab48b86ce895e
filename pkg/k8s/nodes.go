package k8s

import (
	"context"
	"fmt"
	"sort"

	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"
)

// NodeSummary tells whether replacement pods have anywhere to land.
type NodeSummary struct {
	Total       int      `json:"total"`
	Schedulable int      `json:"schedulable"`
	Cordoned    []string `json:"cordoned,omitempty"`
	NotReady    []string `json:"not_ready,omitempty"`
}

func SummarizeNodes(ctx context.Context, client kubernetes.Interface) (NodeSummary, error) {
	list, err := client.CoreV1().Nodes().List(ctx, metav1.ListOptions{})
	if err != nil {
		return NodeSummary{}, fmt.Errorf("list nodes: %w", err)
	}
	summary := NodeSummary{Total: len(list.Items)}
	for _, node := range list.Items {
		cordoned := isCordoned(&node)
		ready := isNodeReady(&node)
		if cordoned {
			summary.Cordoned = append(summary.Cordoned, node.Name)
		}
		if !ready {
			summary.NotReady = append(summary.NotReady, node.Name)
		}
		if !cordoned && ready {
			summary.Schedulable++
		}
	}
	sort.Strings(summary.Cordoned)
	sort.Strings(summary.NotReady)
	return summary, nil
}

func isCordoned(node *corev1.Node) bool {
	if node.Spec.Unschedulable {
		return true
	}
	for _, taint := range node.Spec.Taints {
		if taint.Key == corev1.TaintNodeUnschedulable && taint.Effect == corev1.TaintEffectNoSchedule {
			return true
		}
	}
	return false
}

func isNodeReady(node *corev1.Node) bool {
	for _, cond := range node.Status.Conditions {
		if cond.Type == corev1.NodeReady {
			return cond.Status == corev1.ConditionTrue
		}
	}
	return false
}
