package coldstart

// LifecycleEvent is a cluster event attached to a tracked pod.
type LifecycleEvent struct {
	Pod     string    `json:"pod"`
	Type    string    `json:"type,omitempty"`
	Reason  string    `json:"reason"`
	Message string    `json:"message,omitempty"`
	At      Timestamp `json:"timestamp"`
}

var lifecycleStages = map[string]string{
	"Scheduled": "pod_scheduled",
	"Pulling":   "image_pulling",
	"Pulled":    "image_pulled",
	"Created":   "container_created",
	"Started":   "container_started",
	"Ready":     "pod_ready",
}

// LifecycleReasons is the whitelist in the order a cold start goes through it.
var LifecycleReasons = []string{"Scheduled", "Pulling", "Pulled", "Created", "Started", "Ready"}

func StageForReason(reason string) (string, bool) {
	stage, ok := lifecycleStages[reason]
	return stage, ok
}

func (e LifecycleEvent) Lifecycle() bool {
	_, ok := lifecycleStages[e.Reason]
	return ok
}
