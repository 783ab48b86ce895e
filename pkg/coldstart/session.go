package coldstart

import (
	"fmt"
	"sync"
	"time"
)

type Outcome string

const (
	OutcomePending  Outcome = "pending"
	OutcomeReady    Outcome = "ready"
	OutcomeTimedOut Outcome = "timed_out"
	OutcomeFailed   Outcome = "failed"
)

const (
	MilestonePodCreated       = "pod_created"
	MilestoneAllReady         = "all_containers_ready"
	milestoneContainerReadyFm = "%s_ready"
)

// Cycle is one restart of one workload.
type Cycle struct {
	Index          int         `json:"index"`
	Workload       string      `json:"workload"`
	Trigger        Timestamp   `json:"trigger"`
	Outcome        Outcome     `json:"outcome"`
	Reason         string      `json:"reason,omitempty"`
	Pods           []string    `json:"pods"`
	Milestones     []Milestone `json:"milestones,omitempty"`
	PollIterations int         `json:"poll_iterations"`
	PollErrors     int         `json:"poll_errors"`
}

func (c Cycle) Completed() bool {
	return c.Outcome == OutcomeReady
}

type CycleClose struct {
	Outcome        Outcome
	Reason         string
	PollIterations int
	PollErrors     int
}

type Snapshot struct {
	Pods   []PodObservation
	Cycles []Cycle
}

// Session accumulates every observation of one measurement run. The event
// watcher and the poller write to it concurrently; all access goes through mu.
type Session struct {
	catalog *Catalog
	sidecar string

	mu     sync.RWMutex
	pods   map[string]*PodObservation
	order  []string
	cycles []Cycle
}

func NewSession(catalog *Catalog, sidecar string) *Session {
	return &Session{
		catalog: catalog,
		sidecar: sidecar,
		pods:    map[string]*PodObservation{},
	}
}

func (s *Session) Catalog() *Catalog {
	return s.catalog
}

func (s *Session) IsSidecar(container string) bool {
	return s.sidecar != "" && container == s.sidecar
}

func (s *Session) BeginCycle(workload string, trigger time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := len(s.cycles)
	s.cycles = append(s.cycles, Cycle{
		Index:    idx,
		Workload: workload,
		Trigger:  TimestampFromTime(trigger, trigger),
		Outcome:  OutcomePending,
	})
	return idx
}

func (s *Session) CloseCycle(idx int, c CycleClose) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cycle, err := s.cycleLocked(idx)
	if err != nil {
		return err
	}
	cycle.Outcome = c.Outcome
	cycle.Reason = c.Reason
	cycle.PollIterations = c.PollIterations
	cycle.PollErrors = c.PollErrors
	return nil
}

func (s *Session) Cycle(idx int) (Cycle, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if idx < 0 || idx >= len(s.cycles) {
		return Cycle{}, fmt.Errorf("cycle %d not found", idx)
	}
	return cloneCycle(s.cycles[idx]), nil
}

func (s *Session) AddCycleMilestone(idx int, name string, elapsedMs float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cycle, err := s.cycleLocked(idx)
	if err != nil {
		return err
	}
	cycle.Milestones = append(cycle.Milestones, Milestone{Name: name, ElapsedMs: elapsedMs})
	return nil
}

// ResolveWorkload prefers the selector-based registration made by the poller
// and falls back to the catalog's pod name prefix match.
func (s *Session) ResolveWorkload(pod string) (string, bool) {
	s.mu.RLock()
	obs, ok := s.pods[pod]
	s.mu.RUnlock()
	if ok && obs.Workload != "" {
		return obs.Workload, true
	}
	if s.catalog == nil {
		return "", false
	}
	w, ok := s.catalog.MatchPod(pod)
	if !ok {
		return "", false
	}
	return w.Name, true
}

func (s *Session) RecordEvent(workload string, ev LifecycleEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	obs := s.podLocked(ev.Pod)
	if obs.Workload == "" {
		obs.Workload = workload
	}
	obs.Events = append(obs.Events, ev)
}

// ObservePod registers a pod seen by the poller during cycle idx and reports
// whether this is its first sighting in that cycle.
func (s *Session) ObservePod(idx int, pod string, createdAt Timestamp, elapsedMs float64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cycle, err := s.cycleLocked(idx)
	if err != nil {
		return false, err
	}
	obs := s.podLocked(pod)
	obs.Workload = cycle.Workload
	obs.Cycle = idx
	obs.CreatedAt = createdAt

	for _, name := range cycle.Pods {
		if name == pod {
			return false, nil
		}
	}
	cycle.Pods = append(cycle.Pods, pod)
	if !obs.hasMilestone(MilestonePodCreated) {
		obs.Milestones = append(obs.Milestones, Milestone{Name: MilestonePodCreated, ElapsedMs: elapsedMs})
	}
	if len(cycle.Pods) == 1 {
		cycle.Milestones = append(cycle.Milestones, Milestone{Name: MilestonePodCreated, ElapsedMs: elapsedMs})
	}
	return true, nil
}

func (s *Session) AppendSample(pod, container string, sample StateSample) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	obs, ok := s.pods[pod]
	if !ok {
		return fmt.Errorf("pod %s not observed", pod)
	}
	c := obs.container(container)
	if c == nil {
		obs.Containers = append(obs.Containers, ContainerObservation{
			Name:    container,
			Sidecar: s.IsSidecar(container),
		})
		c = &obs.Containers[len(obs.Containers)-1]
	}
	wasReady := false
	for _, prev := range c.History {
		if prev.Ready {
			wasReady = true
			break
		}
	}
	if err := c.Append(sample); err != nil {
		return err
	}
	if sample.Ready && !wasReady {
		obs.Milestones = append(obs.Milestones, Milestone{
			Name:      fmt.Sprintf(milestoneContainerReadyFm, container),
			ElapsedMs: sample.ElapsedMs,
		})
	}
	return nil
}

func (s *Session) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap := Snapshot{
		Pods:   make([]PodObservation, 0, len(s.order)),
		Cycles: make([]Cycle, 0, len(s.cycles)),
	}
	for _, name := range s.order {
		snap.Pods = append(snap.Pods, s.pods[name].clone())
	}
	for _, c := range s.cycles {
		snap.Cycles = append(snap.Cycles, cloneCycle(c))
	}
	return snap
}

func (s *Session) podLocked(name string) *PodObservation {
	obs, ok := s.pods[name]
	if !ok {
		obs = &PodObservation{Name: name, Cycle: -1}
		s.pods[name] = obs
		s.order = append(s.order, name)
	}
	return obs
}

func (s *Session) cycleLocked(idx int) (*Cycle, error) {
	if idx < 0 || idx >= len(s.cycles) {
		return nil, fmt.Errorf("cycle %d not found", idx)
	}
	return &s.cycles[idx], nil
}

func cloneCycle(c Cycle) Cycle {
	out := c
	out.Pods = append([]string(nil), c.Pods...)
	out.Milestones = append([]Milestone(nil), c.Milestones...)
	return out
}

// PodsByName indexes a snapshot's pods.
func (s Snapshot) PodsByName() map[string]PodObservation {
	out := make(map[string]PodObservation, len(s.Pods))
	for _, p := range s.Pods {
		out[p.Name] = p
	}
	return out
}
