package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"squeeze/internal/batch"
)

type SummaryRow struct {
	Label string
	Value string
}

// FormatKB renders a kilobyte figure in binary units.
func FormatKB(kb float64) string {
	if kb <= 0 {
		return "0 B"
	}
	return humanize.IBytes(uint64(kb * 1024))
}

// StatsRows is the standard summary of a finished batch.
func StatsRows(st batch.Stats) []SummaryRow {
	rows := []SummaryRow{
		{Label: "Images compressed", Value: fmt.Sprintf("%d/%d", st.Ready, st.Count)},
		{Label: "Original size", Value: FormatKB(st.OriginalTotalKB)},
		{Label: "Compressed size", Value: FormatKB(st.CompressedTotalKB)},
		{Label: "Space saved", Value: fmt.Sprintf("%s (%.1f%%)", FormatKB(st.SavedKB), st.ReductionPercent)},
	}
	if st.Errored > 0 {
		rows = append(rows, SummaryRow{Label: "Errors", Value: fmt.Sprintf("%d", st.Errored)})
	}
	if st.MetadataStripped > 0 {
		rows = append(rows, SummaryRow{Label: "Metadata stripped", Value: fmt.Sprintf("%d", st.MetadataStripped)})
	}
	return rows
}

func RenderSummary(rows []SummaryRow) string {
	labelWidth := 0
	valueWidth := 0
	for _, row := range rows {
		if len(row.Label) > labelWidth {
			labelWidth = len(row.Label)
		}
		if len(row.Value) > valueWidth {
			valueWidth = len(row.Value)
		}
	}

	hline := strings.Repeat("-", labelWidth+valueWidth+3)
	lines := []string{hline}

	for _, row := range rows {
		label := padRight(row.Label, labelWidth)
		value := padRight(row.Value, valueWidth)
		line := fmt.Sprintf("%s | %s", labelStyle.Render(label), valueStyle.Render(value))
		lines = append(lines, line)
	}

	lines = append(lines, hline)
	return strings.Join(lines, "\n")
}

func padRight(s string, width int) string {
	if len(s) >= width {
		return s
	}
	return s + strings.Repeat(" ", width-len(s))
}

var (
	valueStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("15")).Bold(true)
)
