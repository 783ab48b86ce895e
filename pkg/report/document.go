package report

import (
	"time"

	"k8s-coldstart-benchmark/pkg/coldstart"
	"k8s-coldstart-benchmark/pkg/stages"
)

const DefaultAnalysisMethod = "event_watch_with_state_polling"

type Cluster struct {
	Context string `json:"context"`
	Server  string `json:"server"`
}

type PhaseMarker struct {
	Name string    `json:"name"`
	Time time.Time `json:"time"`
}

// Document is the run artifact, written once when the run ends.
type Document struct {
	RunID             string                                      `json:"run_id"`
	AnalysisTimestamp time.Time                                   `json:"analysis_timestamp"`
	AnalysisMethod    string                                      `json:"analysis_method"`
	Environment       string                                      `json:"environment"`
	Namespace         string                                      `json:"namespace"`
	Cluster           Cluster                                     `json:"cluster"`
	Config            any                                         `json:"config,omitempty"`
	Phases            []PhaseMarker                               `json:"phases"`
	Cycles            []coldstart.Cycle                           `json:"cycles"`
	PodEvents         map[string][]coldstart.LifecycleEvent       `json:"pod_events"`
	ContainerStates   map[string][]coldstart.ContainerObservation `json:"container_states"`
	TimingAnalysis    []stages.PodBreakdown                       `json:"timing_analysis"`
	Statistics        Statistics                                  `json:"service_statistics"`
}

type BuildInput struct {
	RunID          string
	AnalysisMethod string
	Environment    string
	Namespace      string
	Cluster        Cluster
	Config         any
	Phases         []PhaseMarker
	Snapshot       coldstart.Snapshot
	Now            time.Time
}

func Build(in BuildInput) *Document {
	if in.AnalysisMethod == "" {
		in.AnalysisMethod = DefaultAnalysisMethod
	}
	if in.Now.IsZero() {
		in.Now = time.Now()
	}
	breakdowns := stages.Extract(in.Snapshot)
	doc := &Document{
		RunID:             in.RunID,
		AnalysisTimestamp: in.Now.UTC(),
		AnalysisMethod:    in.AnalysisMethod,
		Environment:       in.Environment,
		Namespace:         in.Namespace,
		Cluster:           in.Cluster,
		Config:            in.Config,
		Phases:            append([]PhaseMarker{}, in.Phases...),
		Cycles:            append([]coldstart.Cycle{}, in.Snapshot.Cycles...),
		PodEvents:         map[string][]coldstart.LifecycleEvent{},
		ContainerStates:   map[string][]coldstart.ContainerObservation{},
		TimingAnalysis:    breakdowns,
		Statistics:        Aggregate(in.Snapshot.Cycles, breakdowns),
	}
	for _, pod := range in.Snapshot.Pods {
		if len(pod.Events) > 0 {
			doc.PodEvents[pod.Name] = pod.Events
		}
		if len(pod.Containers) > 0 {
			doc.ContainerStates[pod.Name] = pod.Containers
		}
	}
	return doc
}
