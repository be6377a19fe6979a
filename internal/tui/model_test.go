package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/verte-zerg/tiertrain/internal/clock"
	"github.com/verte-zerg/tiertrain/internal/model"
	"github.com/verte-zerg/tiertrain/internal/pick"
	"github.com/verte-zerg/tiertrain/internal/session"
)

type staticSource struct {
	content session.Content
}

func (s staticSource) Load(context.Context) (session.Content, error) { return s.content, nil }

func paths(prefix string, n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("/cache/%s/%02d.jpg", prefix, i)
	}
	return out
}

func startedEngine(t *testing.T, clk clock.Clock, withFocus bool) *session.Engine {
	t.Helper()
	content := session.Content{Exploration: paths("explore", 5)}
	if withFocus {
		content.Focus = paths("focus", 2)
		content.RequireFocus = true
	}
	e := session.New(session.Options{
		Source:       staticSource{content: content},
		Picker:       pick.NewWithSeed(7),
		DisplayCount: 5,
		Clock:        clk,
		TickInterval: time.Hour,
	})
	require.NoError(t, e.Start(context.Background()))
	t.Cleanup(e.Abort)
	return e
}

func keyMsg(k tea.KeyType) tea.KeyMsg { return tea.KeyMsg{Type: k} }

func runes(s string) tea.KeyMsg { return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)} }

func TestNavigationKeys(t *testing.T) {
	e := startedEngine(t, clock.NewFake(time.Unix(0, 0)), false)
	m := NewModel(context.Background(), e, nil, nil)

	m.Update(keyMsg(tea.KeyRight))
	idx, _ := e.Position()
	assert.Equal(t, 2, idx)
	m.Update(runes("h"))
	m.Update(keyMsg(tea.KeyLeft))
	idx, _ = e.Position()
	assert.Equal(t, 5, idx)
}

func TestFocusWithoutFocusContentShowsStatus(t *testing.T) {
	e := startedEngine(t, clock.NewFake(time.Unix(0, 0)), false)
	m := NewModel(context.Background(), e, nil, nil)
	m.Update(runes("f"))
	assert.Equal(t, session.StateExploration, e.State())
	assert.Contains(t, m.View(), "no focus image")
}

func TestFinishFlow(t *testing.T) {
	clk := clock.NewFake(time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC))
	e := startedEngine(t, clk, true)
	m := NewModel(context.Background(), e, nil, nil)

	clk.Advance(4 * time.Second)
	m.Update(runes("f"))
	require.Equal(t, session.StateFocus, e.State())
	assert.Contains(t, m.View(), "Focus")

	clk.Advance(2 * time.Second)
	_, cmd := m.Update(keyMsg(tea.KeyEnter))
	require.NotNil(t, cmd)
	m.Update(cmd())

	sess, ok, err := m.Result()
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, sess.FocusPhaseUsed)
	assert.InDelta(t, 6.0, sess.DurationSeconds, 0.01)
	assert.Contains(t, m.View(), "Session complete")
	assert.Contains(t, m.View(), "00:06")

	_, cmd = m.Update(runes("x"))
	require.NotNil(t, cmd)
	assert.Equal(t, tea.Quit(), cmd())
}

func TestSecondFinishKeyIsIgnored(t *testing.T) {
	clk := clock.NewFake(time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC))
	e := startedEngine(t, clk, true)
	m := NewModel(context.Background(), e, nil, nil)

	clk.Advance(3 * time.Second)
	_, first := m.Update(keyMsg(tea.KeyEnter))
	require.NotNil(t, first)
	_, second := m.Update(keyMsg(tea.KeyEnter))
	assert.Nil(t, second)

	m.Update(first())
	m.Update(finishedMsg{err: session.ErrInvalidState})

	sess, ok, err := m.Result()
	require.NoError(t, err)
	assert.True(t, ok)
	assert.InDelta(t, 3.0, sess.DurationSeconds, 0.01)
}

func TestQuitAborts(t *testing.T) {
	e := startedEngine(t, clock.NewFake(time.Unix(0, 0)), false)
	m := NewModel(context.Background(), e, nil, nil)
	_, cmd := m.Update(runes("q"))
	require.NotNil(t, cmd)
	assert.Equal(t, session.StateIdle, e.State())
	_, ok, err := m.Result()
	assert.False(t, ok)
	assert.NoError(t, err)
}

func TestOpenReportsErrors(t *testing.T) {
	e := startedEngine(t, clock.NewFake(time.Unix(0, 0)), false)
	var opened string
	m := NewModel(context.Background(), e, nil, func(p string) error {
		opened = p
		return errors.New("no viewer")
	})
	m.Update(runes("o"))
	assert.Equal(t, e.Current(), opened)
	assert.Contains(t, m.View(), "open failed: no viewer")
}

func TestTicksUpdateElapsed(t *testing.T) {
	e := startedEngine(t, clock.NewFake(time.Unix(0, 0)), false)
	ticks := make(chan time.Duration, 1)
	m := NewModel(context.Background(), e, ticks, nil)

	Forward(ticks)(75 * time.Second)
	Forward(ticks)(76 * time.Second)
	cmd := m.Init()
	require.NotNil(t, cmd)
	_, next := m.Update(cmd())
	assert.NotNil(t, next)
	assert.Contains(t, m.View(), "01:15")
}

func TestViewPlacesContent(t *testing.T) {
	e := startedEngine(t, clock.NewFake(time.Unix(0, 0)), false)
	m := NewModel(context.Background(), e, nil, nil)
	m.Update(tea.WindowSizeMsg{Width: 80, Height: 20})
	view := m.View()
	assert.Equal(t, 20, len(strings.Split(view, "\n")))
	assert.Contains(t, view, "1/5")
	assert.Contains(t, view, "/cache/explore")
}

func TestDownloadModelCollectsResults(t *testing.T) {
	tiers := []model.Tier{1, 2}
	m := NewDownloadModel(context.Background(), tiers, func(_ context.Context, report func(model.Progress)) map[model.Tier]int {
		report(model.Progress{Tier: 1, Total: 2})
		report(model.Progress{Tier: 1, Downloaded: 2, Total: 2})
		return map[model.Tier]int{1: 2, 2: 0}
	})
	assert.Nil(t, m.Results())

	cmd := m.Init()
	for i := 0; i < 10 && cmd != nil; i++ {
		msg := cmd()
		if _, ok := msg.(downloadDoneMsg); ok {
			m.Update(msg)
			break
		}
		_, cmd = m.Update(msg)
	}
	assert.Equal(t, map[model.Tier]int{1: 2, 2: 0}, m.Results())
	view := m.View()
	assert.Contains(t, view, "2/2")
	assert.Contains(t, view, "waiting")
}
