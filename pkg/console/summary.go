package console

import (
	"fmt"
	"io"
	"strings"

	"k8s-coldstart-benchmark/pkg/coldstart"
	"k8s-coldstart-benchmark/pkg/logging"
	"k8s-coldstart-benchmark/pkg/report"

	"github.com/charmbracelet/lipgloss"
)

var columns = []struct {
	title string
	width int
}{
	{"WORKLOAD", 14},
	{"CYCLES", 8},
	{"READY", 7},
	{"SCHED", 10},
	{"PULL", 10},
	{"APP", 10},
	{"TOTAL", 10},
	{"STDDEV", 10},
}

// Render writes the end-of-run summary: one row per workload plus the
// cycles that did not stabilize.
func Render(w io.Writer, doc *report.Document) error {
	_, err := io.WriteString(w, Summary(doc)+"\n")
	return err
}

func Summary(doc *report.Document) string {
	sections := []string{
		titleStyle.Render(fmt.Sprintf("Cold start summary %s", doc.RunID)),
		dimStyle.Render(fmt.Sprintf("namespace=%s environment=%s context=%s", doc.Namespace, doc.Environment, doc.Cluster.Context)),
	}

	if doc.Statistics.NoData && len(doc.Statistics.Workloads) == 0 {
		sections = append(sections, warningStyle.Render(noDataText(doc.Statistics)))
		return borderStyle.Render(lipgloss.JoinVertical(lipgloss.Left, sections...))
	}

	rows := []string{headerRow()}
	for _, ws := range doc.Statistics.Workloads {
		rows = append(rows, workloadRow(ws))
	}
	sections = append(sections, lipgloss.JoinVertical(lipgloss.Left, rows...))

	if failed := failedCycles(doc.Cycles); len(failed) > 0 {
		sections = append(sections, lipgloss.JoinVertical(lipgloss.Left, failed...))
	}
	if doc.Statistics.NoData {
		sections = append(sections, warningStyle.Render(noDataText(doc.Statistics)))
	}
	return borderStyle.Render(lipgloss.JoinVertical(lipgloss.Left, sections...))
}

func noDataText(s report.Statistics) string {
	if s.Message != "" {
		return s.Message
	}
	return "no data"
}

func headerRow() string {
	cells := make([]string, 0, len(columns))
	for _, c := range columns {
		cells = append(cells, headerStyle.Width(c.width).Render(c.title))
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, cells...)
}

func workloadRow(ws report.WorkloadStats) string {
	values := []string{
		ws.Workload,
		fmt.Sprintf("%d", ws.Cycles),
		fmt.Sprintf("%d/%d", ws.Ready, ws.Cycles),
		mean(ws.SchedulingDelay),
		mean(ws.ImagePull),
		mean(ws.AppStartup),
		mean(ws.TotalReady),
		spread(ws.TotalReady),
	}
	style := successStyle
	switch {
	case ws.NoData:
		style = errorStyle
	case ws.Ready < ws.Cycles:
		style = warningStyle
	}
	cells := make([]string, 0, len(values))
	for i, v := range values {
		cells = append(cells, style.Width(columns[i].width).Render(v))
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, cells...)
}

func failedCycles(cycles []coldstart.Cycle) []string {
	var out []string
	for _, c := range cycles {
		if c.Outcome == coldstart.OutcomeReady {
			continue
		}
		line := fmt.Sprintf("cycle %d %s: %s", c.Index, c.Workload, c.Outcome)
		if c.Reason != "" {
			line += " (" + strings.TrimSpace(c.Reason) + ")"
		}
		out = append(out, errorStyle.Render(line))
	}
	return out
}

func mean(s *report.Stats) string {
	if s == nil {
		return "-"
	}
	return logging.FormatMillis(s.Mean)
}

func spread(s *report.Stats) string {
	if s == nil || s.Count < 2 {
		return "-"
	}
	return logging.FormatMillis(s.Stddev)
}
