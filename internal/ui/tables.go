package ui

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"fabdrop/internal/fabric"
	"fabdrop/internal/ingest"
	"fabdrop/internal/observability"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
)

func newTable(w io.Writer, header ...string) *tablewriter.Table {
	table := tablewriter.NewWriter(w)
	table.SetHeader(header)
	table.SetBorder(false)
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(false)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	return table
}

// StepTable renders pipeline steps with their outcome and duration.
func StepTable(w io.Writer, steps []observability.Step, total time.Duration) {
	table := newTable(w, "#", "Step", "Status", "Time", "Details")
	for _, s := range steps {
		duration := ""
		if s.Status != observability.StepSkipped {
			duration = formatDuration(s.Duration)
		}
		detail := s.Detail
		if s.Err != nil {
			detail = firstLine(s.Err.Error())
		}
		table.Append([]string{fmt.Sprintf("%d", s.Number), s.Name, stepStatus(s.Status), duration, detail})
	}
	table.SetFooter([]string{"", "", "Total", formatDuration(total), ""})
	table.Render()
}

func stepStatus(status observability.StepStatus) string {
	if !supportsColor {
		return string(status)
	}
	switch status {
	case observability.StepDone:
		return color.GreenString(string(status))
	case observability.StepFailed:
		return color.RedString(string(status))
	default:
		return color.YellowString(string(status))
	}
}

// RefreshTable renders a dataset's refresh history, newest first.
func RefreshTable(w io.Writer, refreshes []fabric.Refresh) {
	table := newTable(w, "Started", "Ended", "Type", "Status")
	for _, r := range refreshes {
		table.Append([]string{r.StartTime, r.EndTime, r.RefreshType, r.Status})
	}
	table.Render()
}

// ImportTable renders per-section record counts of an import.
func ImportTable(w io.Writer, report *ingest.Report, counts map[string]int) {
	sources := make(map[string][]string)
	for _, s := range report.Sheets {
		sources[s.Key] = append(sources[s.Key], s.Sheet)
	}
	kept := make(map[string]bool, len(report.Kept))
	for _, k := range report.Kept {
		kept[k] = true
	}

	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	table := newTable(w, "Section", "Records", "Source")
	for _, k := range keys {
		source := strings.Join(sources[k], ", ")
		if kept[k] {
			source = "kept from existing file"
		}
		table.Append([]string{k, fmt.Sprintf("%d", counts[k]), source})
	}
	table.SetFooter([]string{"Total", fmt.Sprintf("%d", report.Total), ""})
	table.Render()
}

// KeyValueTable renders ordered key/value pairs.
func KeyValueTable(w io.Writer, pairs [][2]string) {
	table := tablewriter.NewWriter(w)
	table.SetBorder(false)
	table.SetAutoWrapText(false)
	table.SetColumnSeparator("")
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	for _, p := range pairs {
		table.Append([]string{p[0] + ":", p[1]})
	}
	table.Render()
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
