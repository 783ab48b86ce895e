package preflight

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"k8s-coldstart-benchmark/pkg/coldstart"
	"k8s-coldstart-benchmark/pkg/k8s"
	"k8s-coldstart-benchmark/pkg/logging"
	"k8s-coldstart-benchmark/pkg/report"

	"k8s.io/client-go/kubernetes"
)

type WorkloadState struct {
	Workload string `json:"workload"`
	Pods     int32  `json:"pods"`
	Ready    int32  `json:"ready"`
	Pending  int32  `json:"pending"`
	Reasons  string `json:"reasons"`
}

type Result struct {
	Namespace string          `json:"namespace"`
	Nodes     k8s.NodeSummary `json:"nodes"`
	Workloads []WorkloadState `json:"workloads"`
}

// Healthy reports whether every workload has at least one pod and all of them are ready.
func (r Result) Healthy() bool {
	for _, w := range r.Workloads {
		if w.Pods == 0 || w.Ready != w.Pods {
			return false
		}
	}
	return true
}

type PreflightService struct {
	client kubernetes.Interface
	logger *slog.Logger
}

func NewPreflightService(client kubernetes.Interface, logger *slog.Logger) *PreflightService {
	if logger == nil {
		logger = logging.GetLogger()
	}
	return &PreflightService{
		client: client,
		logger: logger,
	}
}

// Check inspects the cluster before anything is restarted. It refuses to run
// when the namespace does not exist or no node can take replacement pods;
// unhealthy workloads are only reported.
func (s *PreflightService) Check(ctx context.Context, namespace string, workloads []coldstart.Workload) (Result, error) {
	result := Result{Namespace: namespace}

	exists, err := k8s.NamespaceExists(ctx, s.client, namespace)
	if err != nil {
		return result, err
	}
	if !exists {
		return result, fmt.Errorf("refusing to run: namespace %q does not exist", namespace)
	}

	nodes, err := k8s.SummarizeNodes(ctx, s.client)
	if err != nil {
		return result, err
	}
	result.Nodes = nodes
	if nodes.Schedulable == 0 {
		return result, fmt.Errorf("refusing to run: no schedulable node (cordoned: %s, not ready: %s)",
			joinOrNone(nodes.Cordoned), joinOrNone(nodes.NotReady))
	}

	for _, w := range workloads {
		summary, err := k8s.SummarizePods(ctx, s.client, namespace, w.Selector)
		if err != nil {
			return result, err
		}
		state := WorkloadState{
			Workload: w.Name,
			Pods:     summary.Total,
			Ready:    summary.Ready,
			Pending:  summary.Pending,
			Reasons:  report.FormatReasons(summary.Messages, 3),
		}
		result.Workloads = append(result.Workloads, state)

		level := slog.LevelInfo
		if state.Pods == 0 || state.Ready != state.Pods {
			level = slog.LevelWarn
		}
		s.logger.Log(ctx, level, "workload state",
			logging.StringField("workload", w.Name),
			logging.StringField("ready", fmt.Sprintf("%d/%d", state.Ready, state.Pods)),
			logging.StringField("reasons", state.Reasons),
		)
	}
	return result, nil
}

func joinOrNone(values []string) string {
	if len(values) == 0 {
		return "none"
	}
	return strings.Join(values, ", ")
}
