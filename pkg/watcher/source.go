package watcher

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"k8s-coldstart-benchmark/pkg/k8s"

	corev1 "k8s.io/api/core/v1"
	"k8s.io/client-go/kubernetes"
)

// RawEvent mirrors the JSON shape of a cluster event as kubectl prints it.
type RawEvent struct {
	Type           string         `json:"type"`
	Reason         string         `json:"reason"`
	Message        string         `json:"message"`
	FirstTimestamp string         `json:"firstTimestamp"`
	EventTime      string         `json:"eventTime"`
	LastTimestamp  string         `json:"lastTimestamp"`
	InvolvedObject InvolvedObject `json:"involvedObject"`
}

type InvolvedObject struct {
	Kind      string `json:"kind"`
	Name      string `json:"name"`
	Namespace string `json:"namespace"`
}

// Timestamp returns the first non-empty of firstTimestamp, eventTime and lastTimestamp.
func (e RawEvent) Timestamp() string {
	for _, ts := range []string{e.FirstTimestamp, e.EventTime, e.LastTimestamp} {
		if ts != "" {
			return ts
		}
	}
	return ""
}

// Source is a live feed of cluster events.
type Source interface {
	Stream(ctx context.Context) (<-chan RawEvent, error)
}

type APISource struct {
	Client    kubernetes.Interface
	Namespace string
}

func (s *APISource) Stream(ctx context.Context) (<-chan RawEvent, error) {
	if s.Client == nil {
		return nil, fmt.Errorf("client is required")
	}
	events, err := k8s.WatchEvents(ctx, s.Client, s.Namespace)
	if err != nil {
		return nil, err
	}
	out := make(chan RawEvent)
	go func() {
		defer close(out)
		for evt := range events {
			select {
			case out <- rawFromAPI(evt):
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

func rawFromAPI(evt corev1.Event) RawEvent {
	raw := RawEvent{
		Type:    evt.Type,
		Reason:  evt.Reason,
		Message: evt.Message,
		InvolvedObject: InvolvedObject{
			Kind:      evt.InvolvedObject.Kind,
			Name:      evt.InvolvedObject.Name,
			Namespace: evt.InvolvedObject.Namespace,
		},
	}
	if !evt.FirstTimestamp.IsZero() {
		raw.FirstTimestamp = evt.FirstTimestamp.UTC().Format(time.RFC3339)
	}
	if !evt.EventTime.IsZero() {
		raw.EventTime = evt.EventTime.UTC().Format(time.RFC3339Nano)
	}
	if !evt.LastTimestamp.IsZero() {
		raw.LastTimestamp = evt.LastTimestamp.UTC().Format(time.RFC3339)
	}
	return raw
}

// LineSource reads one JSON event per line, e.g. a recorded
// `kubectl get events --watch -o json | jq -c .` stream.
type LineSource struct {
	Reader io.Reader
	// Malformed is called for every line that is not a JSON event.
	Malformed func(line string, err error)
}

func (s *LineSource) Stream(ctx context.Context) (<-chan RawEvent, error) {
	if s.Reader == nil {
		return nil, fmt.Errorf("reader is required")
	}
	out := make(chan RawEvent)
	go func() {
		defer close(out)
		scanner := bufio.NewScanner(s.Reader)
		scanner.Buffer(make([]byte, 64*1024), 1024*1024)
		for scanner.Scan() {
			line := scanner.Bytes()
			if len(line) == 0 {
				continue
			}
			var raw RawEvent
			if err := json.Unmarshal(line, &raw); err != nil {
				if s.Malformed != nil {
					s.Malformed(string(line), err)
				}
				continue
			}
			select {
			case out <- raw:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}
