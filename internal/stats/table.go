package stats

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/mattn/go-runewidth"

	"github.com/verte-zerg/tiertrain/internal/model"
)

// Column is one column of a session table.
type Column struct {
	Title string
	Right bool
}

// TierColumns heads the per-tier table, in TierCells order.
var TierColumns = []Column{
	{Title: "Tier"},
	{Title: "Sessions", Right: true},
	{Title: "Avg Duration", Right: true},
	{Title: "Focus", Right: true},
}

// HistoryColumns heads the session history table, in HistoryCells order.
var HistoryColumns = []Column{
	{Title: "Date"},
	{Title: "Duration", Right: true},
	{Title: "Tier", Right: true},
	{Title: "Level"},
	{Title: "Focus"},
	{Title: "Explore (s)", Right: true},
	{Title: "Focus (s)", Right: true},
}

// TierCells formats one per-tier aggregate.
func TierCells(r TierRow) []string {
	return []string{
		r.Tier.Tag(),
		strconv.Itoa(r.Sessions),
		formatDuration(r.AvgDuration),
		fmt.Sprintf("%.0f%%", r.FocusRate*100),
	}
}

// HistoryCells formats one session.
func HistoryCells(s model.TrainingSession) []string {
	focus := "no"
	if s.FocusPhaseUsed {
		focus = "yes"
	}
	return []string{
		s.Date.Local().Format("2006-01-02 15:04"),
		formatDuration(seconds(s.DurationSeconds)),
		strconv.Itoa(int(s.ContentTier)),
		s.Level.String(),
		focus,
		phaseSeconds(s.ExplorationSeconds),
		phaseSeconds(s.FocusSeconds),
	}
}

func phaseSeconds(v float64) string {
	if v == model.NotRecorded {
		return "-"
	}
	return fmt.Sprintf("%.1f", v)
}

// Newest returns up to n sessions, newest first. n <= 0 returns them all.
func Newest(sessions []model.TrainingSession, n int) []model.TrainingSession {
	if n <= 0 || n > len(sessions) {
		n = len(sessions)
	}
	out := make([]model.TrainingSession, 0, n)
	for i := len(sessions) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, sessions[i])
	}
	return out
}

// columnWidths sizes each column to its widest cell, title included.
func columnWidths(cols []Column, rows [][]string) []int {
	widths := make([]int, len(cols))
	for i, c := range cols {
		widths[i] = runewidth.StringWidth(c.Title)
	}
	for _, row := range rows {
		for i := 0; i < len(cols) && i < len(row); i++ {
			if w := runewidth.StringWidth(row[i]); w > widths[i] {
				widths[i] = w
			}
		}
	}
	return widths
}

// layoutTable renders the header and rows, one space between columns.
func layoutTable(cols []Column, rows [][]string) []string {
	if len(cols) == 0 {
		return nil
	}
	widths := columnWidths(cols, rows)
	titles := make([]string, len(cols))
	for i, c := range cols {
		titles[i] = c.Title
	}
	lines := make([]string, 0, len(rows)+1)
	lines = append(lines, layoutRow(cols, widths, titles))
	for _, row := range rows {
		lines = append(lines, layoutRow(cols, widths, row))
	}
	return lines
}

func layoutRow(cols []Column, widths []int, cells []string) string {
	var b strings.Builder
	for i, c := range cols {
		cell := ""
		if i < len(cells) {
			cell = cells[i]
		}
		if i > 0 {
			b.WriteByte(' ')
		}
		pad := widths[i] - runewidth.StringWidth(cell)
		if pad < 0 {
			pad = 0
		}
		if c.Right {
			b.WriteString(strings.Repeat(" ", pad) + cell)
		} else {
			b.WriteString(cell + strings.Repeat(" ", pad))
		}
	}
	return strings.TrimRight(b.String(), " ")
}

func writeTable(w io.Writer, title string, cols []Column, rows [][]string) error {
	if len(rows) == 0 {
		return nil
	}
	if _, err := fmt.Fprintln(w, title); err != nil {
		return err
	}
	for _, line := range layoutTable(cols, rows) {
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintln(w, "")
	return err
}

// RenderTierTable prints per-tier aggregates.
func RenderTierTable(w io.Writer, rows []TierRow) error {
	cells := make([][]string, 0, len(rows))
	for _, r := range rows {
		cells = append(cells, TierCells(r))
	}
	return writeTable(w, "Per-Tier", TierColumns, cells)
}

// RenderHistory prints the newest n sessions.
func RenderHistory(w io.Writer, sessions []model.TrainingSession, n int) error {
	recent := Newest(sessions, n)
	cells := make([][]string, 0, len(recent))
	for _, s := range recent {
		cells = append(cells, HistoryCells(s))
	}
	return writeTable(w, "Recent Sessions", HistoryColumns, cells)
}
