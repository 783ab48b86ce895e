package coldstart

import (
	"errors"
	"fmt"
)

var ErrOutOfOrderSample = errors.New("sample elapsed time goes backwards")

type ContainerObservation struct {
	Name         string        `json:"name"`
	Sidecar      bool          `json:"is_sidecar"`
	Ready        bool          `json:"ready"`
	RestartCount int32         `json:"restart_count"`
	History      []StateSample `json:"states_history"`
}

// Append keeps History monotonic in elapsed time. Identical repeats are kept.
func (c *ContainerObservation) Append(s StateSample) error {
	if n := len(c.History); n > 0 && s.ElapsedMs < c.History[n-1].ElapsedMs {
		return fmt.Errorf("%w: container %s: %.1fms after %.1fms", ErrOutOfOrderSample, c.Name, s.ElapsedMs, c.History[n-1].ElapsedMs)
	}
	c.History = append(c.History, s)
	c.Ready = s.Ready
	c.RestartCount = s.RestartCount
	return nil
}

func (c *ContainerObservation) Last() (StateSample, bool) {
	if len(c.History) == 0 {
		return StateSample{}, false
	}
	return c.History[len(c.History)-1], true
}

func (c ContainerObservation) clone() ContainerObservation {
	out := c
	out.History = make([]StateSample, len(c.History))
	copy(out.History, c.History)
	return out
}

type Milestone struct {
	Name      string  `json:"name"`
	ElapsedMs float64 `json:"elapsed_ms"`
}

type PodObservation struct {
	Name       string                 `json:"pod_name"`
	Workload   string                 `json:"workload"`
	Cycle      int                    `json:"cycle"`
	CreatedAt  Timestamp              `json:"creation_timestamp"`
	Containers []ContainerObservation `json:"containers"`
	Events     []LifecycleEvent       `json:"events"`
	Milestones []Milestone            `json:"milestones,omitempty"`
}

func (p *PodObservation) container(name string) *ContainerObservation {
	for i := range p.Containers {
		if p.Containers[i].Name == name {
			return &p.Containers[i]
		}
	}
	return nil
}

func (p *PodObservation) hasMilestone(name string) bool {
	for _, m := range p.Milestones {
		if m.Name == name {
			return true
		}
	}
	return false
}

func (p PodObservation) clone() PodObservation {
	out := p
	out.Containers = make([]ContainerObservation, 0, len(p.Containers))
	for _, c := range p.Containers {
		out.Containers = append(out.Containers, c.clone())
	}
	out.Events = append([]LifecycleEvent(nil), p.Events...)
	out.Milestones = append([]Milestone(nil), p.Milestones...)
	return out
}
