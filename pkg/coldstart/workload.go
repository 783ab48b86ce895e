package coldstart

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrUnknownWorkload = errors.New("unknown workload")
	ErrNoWorkloads     = errors.New("no workloads configured")
)

// Workload is one tracked service. Pods are owned through Selector; Name is
// also the prefix Deployment-generated pod names start with.
type Workload struct {
	Name       string `json:"name"`
	Selector   string `json:"selector"`
	Deployment string `json:"deployment,omitempty"`
}

func (w Workload) DeploymentName() string {
	if w.Deployment != "" {
		return w.Deployment
	}
	return w.Name
}

type Catalog struct {
	workloads []Workload
	byName    map[string]int
}

func NewCatalog(workloads []Workload) (*Catalog, error) {
	if len(workloads) == 0 {
		return nil, ErrNoWorkloads
	}
	c := &Catalog{
		workloads: make([]Workload, 0, len(workloads)),
		byName:    make(map[string]int, len(workloads)),
	}
	for _, w := range workloads {
		if w.Name == "" {
			return nil, fmt.Errorf("workload without name")
		}
		if _, dup := c.byName[w.Name]; dup {
			return nil, fmt.Errorf("duplicate workload %q", w.Name)
		}
		if w.Selector == "" {
			w.Selector = "app=" + w.Name
		}
		c.byName[w.Name] = len(c.workloads)
		c.workloads = append(c.workloads, w)
	}
	return c, nil
}

func DefaultWorkloads() []Workload {
	names := []string{"productpage", "details", "reviews", "ratings"}
	out := make([]Workload, 0, len(names))
	for _, name := range names {
		out = append(out, Workload{Name: name, Selector: "app=" + name})
	}
	return out
}

func (c *Catalog) Lookup(name string) (Workload, error) {
	idx, ok := c.byName[strings.TrimSpace(name)]
	if !ok {
		return Workload{}, fmt.Errorf("%w %q (valid: %s)", ErrUnknownWorkload, name, strings.Join(c.Names(), ", "))
	}
	return c.workloads[idx], nil
}

func (c *Catalog) Names() []string {
	out := make([]string, 0, len(c.workloads))
	for _, w := range c.workloads {
		out = append(out, w.Name)
	}
	return out
}

func (c *Catalog) Workloads() []Workload {
	out := make([]Workload, len(c.workloads))
	copy(out, c.workloads)
	return out
}

// MatchPod resolves a pod that was never seen through a selector query. The
// longest matching "<name>-" prefix wins so "reviews" and "reviews-v2" stay apart.
func (c *Catalog) MatchPod(podName string) (Workload, bool) {
	best := -1
	for i, w := range c.workloads {
		if !strings.HasPrefix(podName, w.Name+"-") {
			continue
		}
		if best < 0 || len(w.Name) > len(c.workloads[best].Name) {
			best = i
		}
	}
	if best < 0 {
		return Workload{}, false
	}
	return c.workloads[best], true
}
