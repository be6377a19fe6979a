package statsui

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/verte-zerg/tiertrain/internal/model"
)

type fakeLister struct {
	sessions []model.TrainingSession
	err      error
	limits   []int
}

func (f *fakeLister) ListSessions(_ context.Context, limit int) ([]model.TrainingSession, error) {
	f.limits = append(f.limits, limit)
	if f.err != nil {
		return nil, f.err
	}
	if limit > 0 && len(f.sessions) > limit {
		return f.sessions[len(f.sessions)-limit:], nil
	}
	return f.sessions, nil
}

func sampleSessions() []model.TrainingSession {
	base := time.Date(2026, 2, 1, 20, 0, 0, 0, time.UTC)
	return []model.TrainingSession{
		{ID: 1, Date: base, DurationSeconds: 90, Level: model.LevelIntern, ContentTier: 1, ExplorationSeconds: 90},
		{ID: 2, Date: base.Add(time.Hour), DurationSeconds: 40, Level: model.LevelIntern, ContentTier: 2, FocusPhaseUsed: true, ExplorationSeconds: 30, FocusSeconds: 10},
		{ID: 3, Date: base.Add(2 * time.Hour), DurationSeconds: 55, Level: model.LevelJunior, ContentTier: 2, ExplorationSeconds: model.NotRecorded, FocusSeconds: model.NotRecorded},
	}
}

func runes(s string) tea.KeyMsg { return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)} }

func TestViewFitsWindow(t *testing.T) {
	m := NewModel(&fakeLister{sessions: sampleSessions()}, Config{FastThreshold: time.Minute})
	m.Update(tea.WindowSizeMsg{Width: 100, Height: 30})
	view := m.View()
	assert.Len(t, strings.Split(view, "\n"), 30)
	assert.Contains(t, view, "Overview")
	assert.Contains(t, view, "Avg Duration")
}

func TestTabsShowTables(t *testing.T) {
	m := NewModel(&fakeLister{sessions: sampleSessions()}, Config{FastThreshold: time.Minute})
	m.Update(tea.WindowSizeMsg{Width: 100, Height: 30})

	m.Update(tea.KeyMsg{Type: tea.KeyRight})
	assert.Equal(t, tabTiers, m.activeTab)
	assert.Contains(t, m.View(), "Tier 2")

	m.Update(runes("l"))
	assert.Equal(t, tabHistory, m.activeTab)
	assert.Contains(t, m.View(), "Junior")

	m.Update(runes("l"))
	assert.Equal(t, tabOverview, m.activeTab)
}

func TestHistoryRowsNewestFirst(t *testing.T) {
	rows := historyRows(sampleSessions())
	require.Len(t, rows, 3)
	assert.Equal(t, "Junior", rows[0][3])
	assert.Equal(t, "-", rows[0][5])
	assert.Equal(t, "yes", rows[1][4])
	assert.Equal(t, "01:30", rows[2][1])
}

func TestLastInputReloads(t *testing.T) {
	lister := &fakeLister{sessions: sampleSessions()}
	m := NewModel(lister, Config{})
	m.Update(tea.WindowSizeMsg{Width: 100, Height: 30})

	m.Update(runes("/"))
	require.True(t, m.lastMode)
	m.lastInput.SetValue("2")
	m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	assert.False(t, m.lastMode)
	assert.Equal(t, 2, m.cfg.Last)
	assert.Len(t, m.report.Sessions, 2)
	assert.Equal(t, []int{100, 2}, lister.limits)
}

func TestLastInputRejectsGarbage(t *testing.T) {
	m := NewModel(&fakeLister{sessions: sampleSessions()}, Config{})
	m.Update(tea.WindowSizeMsg{Width: 100, Height: 30})
	m.Update(runes("/"))
	m.lastInput.SetValue("zero")
	m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	assert.True(t, m.lastMode)
	assert.Contains(t, m.View(), "invalid value")

	m.Update(tea.KeyMsg{Type: tea.KeyEsc})
	assert.False(t, m.lastMode)
}

func TestLoadErrorIsShown(t *testing.T) {
	m := NewModel(&fakeLister{err: errors.New("database is locked")}, Config{})
	m.Update(tea.WindowSizeMsg{Width: 100, Height: 20})
	assert.Contains(t, m.View(), "database is locked")
}

func TestEmptyHistory(t *testing.T) {
	m := NewModel(&fakeLister{}, Config{})
	m.Update(tea.WindowSizeMsg{Width: 80, Height: 20})
	assert.Contains(t, m.View(), "No sessions found.")
}

func TestCurveWindowSteps(t *testing.T) {
	assert.Equal(t, 5, nextCurveWindow(1))
	assert.Equal(t, 15, nextCurveWindow(10))
	assert.Equal(t, 10, nextCurveWindow(7))
	assert.Equal(t, 1, prevCurveWindow(5))
	assert.Equal(t, 5, prevCurveWindow(7))
}

func TestQuit(t *testing.T) {
	m := NewModel(&fakeLister{}, Config{})
	_, cmd := m.Update(runes("q"))
	require.NotNil(t, cmd)
	assert.Equal(t, tea.Quit(), cmd())
}
