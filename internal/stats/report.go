package stats

import (
	"context"
	"io"
	"time"

	"github.com/verte-zerg/tiertrain/internal/model"
)

// DefaultLimit is how many recent sessions a report covers.
const DefaultLimit = 100

// RecentRows is how many sessions the plain report lists individually.
const RecentRows = 10

// SessionLister reads the session history.
type SessionLister interface {
	ListSessions(ctx context.Context, limit int) ([]model.TrainingSession, error)
}

// Report contains precomputed data for stats rendering.
type Report struct {
	Sessions []model.TrainingSession
	Summary  Summary
	Tiers    []TierRow
}

// BuildReport loads the last limit sessions and aggregates them.
func BuildReport(ctx context.Context, st SessionLister, limit int, fastThreshold time.Duration) (Report, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}
	sessions, err := st.ListSessions(ctx, limit)
	if err != nil {
		return Report{}, err
	}
	return Report{
		Sessions: sessions,
		Summary:  Summarize(sessions, fastThreshold),
		Tiers:    ByTier(sessions),
	}, nil
}

// Render writes the whole report. width <= 0 sizes the chart to the terminal.
func (r Report) Render(w io.Writer, window, width int) error {
	if err := RenderSummary(w, r.Summary); err != nil {
		return err
	}
	if len(r.Sessions) == 0 {
		return nil
	}
	if err := RenderTrend(w, r.Sessions, window); err != nil {
		return err
	}
	if err := RenderChart(w, "Duration (s)", Durations(r.Sessions), width, 0); err != nil {
		return err
	}
	if err := RenderTierTable(w, r.Tiers); err != nil {
		return err
	}
	return RenderHistory(w, r.Sessions, RecentRows)
}
