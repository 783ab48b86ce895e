package benchmark

import (
	"fmt"
	"strings"
	"time"

	"k8s-coldstart-benchmark/pkg/coldstart"
	"k8s-coldstart-benchmark/pkg/report"
)

type Plan struct {
	RunID      string
	Workloads  []coldstart.Workload
	OutputPath string
	Format     string
	// Target is the single workload name, empty when the whole catalog runs.
	Target string
}

type PlanBuilder struct {
	Now     func() time.Time
	Catalog *coldstart.Catalog
}

func NewPlanBuilder(catalog *coldstart.Catalog) *PlanBuilder {
	return &PlanBuilder{Now: time.Now, Catalog: catalog}
}

func (b *PlanBuilder) Build(cfg RunConfig) (Plan, error) {
	if b.Catalog == nil {
		return Plan{}, fmt.Errorf("workload catalog is required")
	}
	now := b.Now
	if now == nil {
		now = time.Now
	}

	plan := Plan{
		RunID:  now().Format("20060102-150405"),
		Format: cfg.Format,
		Target: strings.TrimSpace(cfg.Workload),
	}
	if plan.Format == "" {
		plan.Format = report.FormatJSON
	}

	if plan.Target != "" {
		w, err := b.Catalog.Lookup(plan.Target)
		if err != nil {
			return Plan{}, err
		}
		plan.Workloads = []coldstart.Workload{w}
	} else {
		plan.Workloads = b.Catalog.Workloads()
	}

	plan.OutputPath = cfg.OutputPath
	if plan.OutputPath == "" {
		dir := cfg.OutputDir
		if dir == "" {
			dir = defaultResultsDir
		}
		plan.OutputPath = report.FileName(dir, plan.RunID, plan.Target, plan.Format)
	}
	return plan, nil
}

func workloadNames(workloads []coldstart.Workload) string {
	names := make([]string, 0, len(workloads))
	for _, w := range workloads {
		names = append(names, w.Name)
	}
	return strings.Join(names, ",")
}
