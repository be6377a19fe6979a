// Package stats contains statistics calculations and reporting.
package stats

import (
	"fmt"
	"io"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/verte-zerg/tiertrain/internal/model"
)

const sparkChars = " .:-=+*#%@"

// Summary aggregates a run of sessions.
type Summary struct {
	Count          int
	AvgDuration    time.Duration
	BestDuration   time.Duration
	FocusRate      float64
	FastCount      int
	AvgExploration float64
	AvgFocus       float64
	// Timed counts sessions that carry phase timings.
	Timed int
}

// Summarize computes a Summary. Phase averages skip sessions whose timings
// were not recorded. A session is fast when it used the focus phase and
// finished under fastThreshold.
func Summarize(sessions []model.TrainingSession, fastThreshold time.Duration) Summary {
	s := Summary{Count: len(sessions)}
	if len(sessions) == 0 {
		return s
	}
	var total, explorationSum, focusSum float64
	focusUsed := 0
	best := math.Inf(1)
	for _, sess := range sessions {
		total += sess.DurationSeconds
		if sess.DurationSeconds < best {
			best = sess.DurationSeconds
		}
		if sess.FocusPhaseUsed {
			focusUsed++
			if seconds(sess.DurationSeconds) < fastThreshold {
				s.FastCount++
			}
		}
		if sess.ExplorationSeconds != model.NotRecorded && sess.FocusSeconds != model.NotRecorded {
			explorationSum += sess.ExplorationSeconds
			focusSum += sess.FocusSeconds
			s.Timed++
		}
	}
	count := float64(len(sessions))
	s.AvgDuration = seconds(total / count)
	s.BestDuration = seconds(best)
	s.FocusRate = float64(focusUsed) / count
	if s.Timed > 0 {
		s.AvgExploration = explorationSum / float64(s.Timed)
		s.AvgFocus = focusSum / float64(s.Timed)
	}
	return s
}

func seconds(v float64) time.Duration {
	return time.Duration(v * float64(time.Second))
}

// MovingAverage computes a rolling mean over the provided window size.
func MovingAverage(values []float64, window int) []float64 {
	if window <= 1 || len(values) == 0 {
		out := make([]float64, len(values))
		copy(out, values)
		return out
	}
	out := make([]float64, len(values))
	var sum float64
	for i := 0; i < len(values); i++ {
		sum += values[i]
		if i >= window {
			sum -= values[i-window]
		}
		den := float64(i + 1)
		if i >= window {
			den = float64(window)
		}
		out[i] = sum / den
	}
	return out
}

// Sparkline renders a single-line ASCII sparkline for the values.
func Sparkline(values []float64) string {
	if len(values) == 0 {
		return ""
	}
	minVal, maxVal := minMax(values)
	if math.Abs(maxVal-minVal) < 1e-9 {
		return strings.Repeat(string(sparkChars[len(sparkChars)/2]), len(values))
	}
	var b strings.Builder
	for _, v := range values {
		pos := (v - minVal) / (maxVal - minVal)
		idx := int(math.Round(pos * float64(len(sparkChars)-1)))
		if idx < 0 {
			idx = 0
		}
		if idx >= len(sparkChars) {
			idx = len(sparkChars) - 1
		}
		b.WriteByte(sparkChars[idx])
	}
	return b.String()
}

func minMax(values []float64) (float64, float64) {
	minVal, maxVal := values[0], values[0]
	for _, v := range values[1:] {
		if v < minVal {
			minVal = v
		}
		if v > maxVal {
			maxVal = v
		}
	}
	return minVal, maxVal
}

// Durations extracts session lengths in seconds.
func Durations(sessions []model.TrainingSession) []float64 {
	out := make([]float64, len(sessions))
	for i, s := range sessions {
		out[i] = s.DurationSeconds
	}
	return out
}

// RenderSummary prints the summary block.
func RenderSummary(w io.Writer, s Summary) error {
	if s.Count == 0 {
		_, err := fmt.Fprintln(w, "No sessions found.")
		return err
	}
	lines := []string{
		"Summary",
		fmt.Sprintf("Sessions: %d", s.Count),
		fmt.Sprintf("Avg duration: %s", formatDuration(s.AvgDuration)),
		fmt.Sprintf("Best duration: %s", formatDuration(s.BestDuration)),
		fmt.Sprintf("Focus used: %.0f%%", s.FocusRate*100),
		fmt.Sprintf("Fast sessions: %d", s.FastCount),
	}
	if s.Timed > 0 {
		lines = append(lines,
			fmt.Sprintf("Avg exploration: %.1fs", s.AvgExploration),
			fmt.Sprintf("Avg focus: %.1fs", s.AvgFocus))
	}
	lines = append(lines, "")
	for _, line := range lines {
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	return nil
}

// RenderTrend prints duration and moving-average sparklines.
func RenderTrend(w io.Writer, sessions []model.TrainingSession, window int) error {
	if len(sessions) == 0 {
		return nil
	}
	durations := Durations(sessions)
	lines := []string{
		"Trend (oldest to newest)",
		"Duration: " + Sparkline(durations),
		fmt.Sprintf("Avg(%d):   %s", window, Sparkline(MovingAverage(durations, window))),
		"",
	}
	for _, line := range lines {
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	return nil
}

// TierRow aggregates the sessions played at one tier.
type TierRow struct {
	Tier        model.Tier
	Sessions    int
	AvgDuration time.Duration
	FocusRate   float64
}

// ByTier groups sessions per tier, lowest tier first.
func ByTier(sessions []model.TrainingSession) []TierRow {
	type acc struct {
		count, focus int
		total        float64
	}
	groups := map[model.Tier]*acc{}
	for _, s := range sessions {
		tier := model.ClampTier(s.ContentTier)
		g, ok := groups[tier]
		if !ok {
			g = &acc{}
			groups[tier] = g
		}
		g.count++
		g.total += s.DurationSeconds
		if s.FocusPhaseUsed {
			g.focus++
		}
	}
	rows := make([]TierRow, 0, len(groups))
	for tier, g := range groups {
		rows = append(rows, TierRow{
			Tier:        tier,
			Sessions:    g.count,
			AvgDuration: seconds(g.total / float64(g.count)),
			FocusRate:   float64(g.focus) / float64(g.count),
		})
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Tier < rows[j].Tier })
	return rows
}

// formatDuration renders mm:ss, or h:mm:ss past an hour.
func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	h := int(d / time.Hour)
	m := int(d%time.Hour) / int(time.Minute)
	s := int(d%time.Minute) / int(time.Second)
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%02d:%02d", m, s)
}

// FormatDuration is the exported mm:ss formatter used by the session UI.
func FormatDuration(d time.Duration) string {
	return formatDuration(d)
}
