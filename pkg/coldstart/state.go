package coldstart

import (
	"encoding/json"
	"time"
)

// ContainerState is one of Waiting, Running or Terminated. A nil state means
// the container status was not reported yet.
type ContainerState interface {
	Kind() string
	isContainerState()
}

type Waiting struct {
	Reason  string `json:"reason,omitempty"`
	Message string `json:"message,omitempty"`
}

type Running struct {
	StartedAt time.Time `json:"startedAt,omitzero"`
}

type Terminated struct {
	Reason   string `json:"reason,omitempty"`
	ExitCode int32  `json:"exitCode"`
}

func (Waiting) Kind() string    { return "waiting" }
func (Running) Kind() string    { return "running" }
func (Terminated) Kind() string { return "terminated" }

func (Waiting) isContainerState()    {}
func (Running) isContainerState()    {}
func (Terminated) isContainerState() {}

func IsWaiting(s ContainerState) bool {
	_, ok := s.(Waiting)
	return ok
}

func IsRunning(s ContainerState) bool {
	_, ok := s.(Running)
	return ok
}

type stateJSON struct {
	Waiting    *Waiting    `json:"waiting,omitempty"`
	Running    *Running    `json:"running,omitempty"`
	Terminated *Terminated `json:"terminated,omitempty"`
}

func encodeState(s ContainerState) stateJSON {
	switch v := s.(type) {
	case Waiting:
		return stateJSON{Waiting: &v}
	case Running:
		return stateJSON{Running: &v}
	case Terminated:
		return stateJSON{Terminated: &v}
	default:
		return stateJSON{}
	}
}

func decodeState(s stateJSON) ContainerState {
	switch {
	case s.Running != nil:
		return *s.Running
	case s.Terminated != nil:
		return *s.Terminated
	case s.Waiting != nil:
		return *s.Waiting
	default:
		return nil
	}
}

// StateSample is one poll of one container.
type StateSample struct {
	Timestamp    time.Time
	ElapsedMs    float64
	Ready        bool
	RestartCount int32
	State        ContainerState
}

type sampleJSON struct {
	TimestampMs  float64   `json:"timestamp_ms"`
	ElapsedMs    float64   `json:"elapsed_ms"`
	Ready        bool      `json:"ready"`
	RestartCount int32     `json:"restart_count"`
	State        stateJSON `json:"state"`
}

func (s StateSample) MarshalJSON() ([]byte, error) {
	return json.Marshal(sampleJSON{
		TimestampMs:  millis(s.Timestamp),
		ElapsedMs:    s.ElapsedMs,
		Ready:        s.Ready,
		RestartCount: s.RestartCount,
		State:        encodeState(s.State),
	})
}

func (s *StateSample) UnmarshalJSON(data []byte) error {
	var raw sampleJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*s = StateSample{
		Timestamp:    time.UnixMicro(int64(raw.TimestampMs * 1000)).UTC(),
		ElapsedMs:    raw.ElapsedMs,
		Ready:        raw.Ready,
		RestartCount: raw.RestartCount,
		State:        decodeState(raw.State),
	}
	return nil
}
