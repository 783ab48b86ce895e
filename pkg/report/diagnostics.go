package report

import (
	"cmp"
	"fmt"
	"slices"
	"strings"

	"k8s-coldstart-benchmark/pkg/logging"
	"k8s-coldstart-benchmark/pkg/stages"
)

// FormatMilestones renders an event timeline as "stage=+delta" pairs.
func FormatMilestones(events []stages.EventMilestone) string {
	if len(events) == 0 {
		return "-"
	}
	parts := make([]string, 0, len(events))
	for _, ev := range events {
		parts = append(parts, fmt.Sprintf("%s=+%s", ev.Stage, logging.FormatMillis(ev.DeltaMs)))
	}
	return strings.Join(parts, " ")
}

// FormatReasons lists the most frequent waiting or scheduling reasons,
// most common first, capped at limit entries.
func FormatReasons(reasons map[string]int, limit int) string {
	if len(reasons) == 0 {
		return "none"
	}
	names := make([]string, 0, len(reasons))
	for name := range reasons {
		names = append(names, name)
	}
	slices.SortFunc(names, func(a, b string) int {
		if c := cmp.Compare(reasons[b], reasons[a]); c != 0 {
			return c
		}
		return strings.Compare(a, b)
	})
	if limit > 0 && len(names) > limit {
		names = names[:limit]
	}
	parts := make([]string, len(names))
	for i, name := range names {
		parts[i] = fmt.Sprintf("%s (x%d)", name, reasons[name])
	}
	return strings.Join(parts, "; ")
}
