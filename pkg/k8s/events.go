package k8s

import (
	"context"
	"fmt"

	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"
)

const podEventsSelector = "involvedObject.kind=Pod"

// WatchEvents streams pod events of a namespace until ctx is done or the
// server closes the watch. The returned channel is closed in both cases.
func WatchEvents(ctx context.Context, client kubernetes.Interface, namespace string) (<-chan corev1.Event, error) {
	watcher, err := client.CoreV1().Events(namespace).Watch(ctx, metav1.ListOptions{
		FieldSelector: podEventsSelector,
	})
	if err != nil {
		return nil, fmt.Errorf("watch events: %w", err)
	}
	ch := make(chan corev1.Event)
	go func() {
		defer close(ch)
		defer watcher.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.ResultChan():
				if !ok {
					return
				}
				evt, ok := event.Object.(*corev1.Event)
				if !ok {
					continue
				}
				select {
				case ch <- *evt:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return ch, nil
}
