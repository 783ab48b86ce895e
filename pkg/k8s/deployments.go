package k8s

import (
	"context"
	"fmt"

	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"
)

// ScaleDeployment sets the replica count and returns the previous one.
func ScaleDeployment(ctx context.Context, client kubernetes.Interface, namespace, name string, replicas int32) (int32, error) {
	dep, err := client.AppsV1().Deployments(namespace).Get(ctx, name, metav1.GetOptions{})
	if err != nil {
		return 0, fmt.Errorf("get deployment %s: %w", name, err)
	}
	previous := int32(1)
	if dep.Spec.Replicas != nil {
		previous = *dep.Spec.Replicas
	}
	if previous == replicas {
		return previous, nil
	}
	dep.Spec.Replicas = &replicas
	if _, err := client.AppsV1().Deployments(namespace).Update(ctx, dep, metav1.UpdateOptions{}); err != nil {
		return previous, fmt.Errorf("scale deployment %s to %d: %w", name, replicas, err)
	}
	return previous, nil
}
