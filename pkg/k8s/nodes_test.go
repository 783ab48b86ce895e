package k8s

import (
	"context"
	"testing"

	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes/fake"
)

func readyNode(name string) *corev1.Node {
	return &corev1.Node{
		ObjectMeta: metav1.ObjectMeta{Name: name},
		Status: corev1.NodeStatus{Conditions: []corev1.NodeCondition{
			{Type: corev1.NodeReady, Status: corev1.ConditionTrue},
		}},
	}
}

func TestSummarizeNodes(t *testing.T) {
	cordoned := readyNode("b")
	cordoned.Spec.Unschedulable = true
	tainted := readyNode("c")
	tainted.Spec.Taints = []corev1.Taint{{Key: "node.kubernetes.io/unschedulable", Effect: corev1.TaintEffectNoSchedule}}
	notReady := &corev1.Node{ObjectMeta: metav1.ObjectMeta{Name: "d"}}

	client := fake.NewSimpleClientset(readyNode("a"), cordoned, tainted, notReady)
	got, err := SummarizeNodes(context.Background(), client)
	if err != nil {
		t.Fatalf("SummarizeNodes failed: %v", err)
	}
	if got.Total != 4 || got.Schedulable != 1 {
		t.Fatalf("expected 4 total / 1 schedulable, got %d / %d", got.Total, got.Schedulable)
	}
	if len(got.Cordoned) != 2 || got.Cordoned[0] != "b" || got.Cordoned[1] != "c" {
		t.Fatalf("unexpected cordoned nodes: %v", got.Cordoned)
	}
	if len(got.NotReady) != 1 || got.NotReady[0] != "d" {
		t.Fatalf("unexpected not ready nodes: %v", got.NotReady)
	}
}
