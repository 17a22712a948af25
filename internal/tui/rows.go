package tui

import (
	"fmt"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/Iron-Ham/seda/internal/scaling"
	"github.com/Iron-Ham/seda/internal/seda"
)

// Headers are the column titles of the stage table.
var Headers = []string{"STAGE", "STATUS", "POOL", "QUEUE", "RATE/MS", "ACTION", "ACCEPTED", "PROCESSED", "FAILED", "DROPPED", "REASON"}

// Row formats one stage's statistics. The last decision reason is taken
// from monitor when it has one for the stage; monitor may be nil.
func Row(st seda.Stats, monitor *scaling.Monitor) []string {
	reason := ""
	if monitor != nil {
		if rec, ok := monitor.Latest(st.Name); ok {
			reason = rec.Decision.Reason
		}
	}
	return []string{
		st.Name,
		st.Status.String(),
		fmt.Sprintf("%d [%d-%d]", st.PoolSize, st.MinPoolSize, st.MaxPoolSize),
		strconv.Itoa(st.QueueSize),
		strconv.FormatFloat(st.ProcessRate, 'f', 3, 64),
		st.LastAction.String(),
		strconv.FormatInt(st.Accepted, 10),
		strconv.FormatInt(st.Processed, 10),
		strconv.FormatInt(st.Failed, 10),
		strconv.FormatInt(st.Dropped+st.RejectsDiscarded, 10),
		reason,
	}
}

// Rows formats every stage in stats.
func Rows(stats []seda.Stats, monitor *scaling.Monitor) [][]string {
	rows := make([][]string, len(stats))
	for i, st := range stats {
		rows[i] = Row(st, monitor)
	}
	return rows
}

// RenderStats renders stats as a bordered, colored table for one-shot
// terminal output.
func RenderStats(stats []seda.Stats, monitor *scaling.Monitor) string {
	const (
		statusCol = 1
		actionCol = 5
	)
	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(BorderColor)).
		Headers(Headers...).
		Rows(Rows(stats, monitor)...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return Header
			}
			if row < 0 || row >= len(stats) {
				return Cell
			}
			switch col {
			case statusCol:
				return Cell.Foreground(StatusColor(stats[row].Status))
			case actionCol:
				return Cell.Foreground(ActionColor(stats[row].LastAction))
			}
			return Cell
		})
	return t.Render()
}
