// Package tui provides the Bubble Tea session and download interfaces.
package tui

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/verte-zerg/tiertrain/internal/model"
	"github.com/verte-zerg/tiertrain/internal/session"
	"github.com/verte-zerg/tiertrain/internal/stats"
)

var (
	phaseStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#C89A3A")).Bold(true)
	focusStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF4D4F")).Bold(true)
	nameStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#F0F0F0")).Bold(true)
	dirStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#8C8C8C"))
	footerStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#6E6E6E"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF4D4F"))
	summaryStyle = lipgloss.NewStyle().
			Padding(1, 2).
			Border(lipgloss.RoundedBorder(), true).
			BorderForeground(lipgloss.Color("#4A4A4A"))
)

type tickMsg time.Duration

type finishedMsg struct {
	session model.TrainingSession
	err     error
}

// Forward returns an OnTick callback that hands elapsed times to ch
// without blocking. Pass the receiving end to NewModel.
func Forward(ch chan<- time.Duration) func(time.Duration) {
	return func(d time.Duration) {
		select {
		case ch <- d:
		default:
		}
	}
}

// Opener shows a file in an external viewer.
type Opener func(path string) error

// Model implements the Bubble Tea session UI. The engine must already be
// started.
type Model struct {
	ctx    context.Context
	engine *session.Engine
	nav    session.Navigator
	ticks  <-chan time.Duration
	open   Opener

	keys keyMap
	help help.Model

	width  int
	height int

	elapsed time.Duration
	status  string

	finishing bool
	done      bool
	result    model.TrainingSession
	err       error
}

// NewModel constructs a session TUI model.
func NewModel(ctx context.Context, engine *session.Engine, ticks <-chan time.Duration, open Opener) *Model {
	return &Model{
		ctx:    ctx,
		engine: engine,
		nav:    engine.Navigator(),
		ticks:  ticks,
		open:   open,
		keys:   defaultKeys(),
		help:   help.New(),
	}
}

// Result reports the recorded session once the program has exited. ok is
// false when the session was aborted.
func (m *Model) Result() (model.TrainingSession, bool, error) {
	if !m.done {
		return model.TrainingSession{}, false, nil
	}
	return m.result, m.err == nil, m.err
}

// Init implements tea.Model.
func (m *Model) Init() tea.Cmd {
	return waitForTick(m.ticks)
}

func waitForTick(ticks <-chan time.Duration) tea.Cmd {
	if ticks == nil {
		return nil
	}
	return func() tea.Msg {
		d, ok := <-ticks
		if !ok {
			return nil
		}
		return tickMsg(d)
	}
}

func finish(ctx context.Context, e *session.Engine) tea.Cmd {
	return func() tea.Msg {
		s, err := e.Finish(ctx)
		return finishedMsg{session: s, err: err}
	}
}

// Update implements tea.Model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		return m, nil
	case tickMsg:
		if m.done {
			return m, nil
		}
		m.elapsed = time.Duration(msg)
		return m, waitForTick(m.ticks)
	case finishedMsg:
		if m.done {
			return m, nil
		}
		m.done = true
		m.result = msg.session
		m.err = msg.err
		return m, nil
	case tea.KeyMsg:
		return m.handleKey(msg)
	default:
		return m, nil
	}
}

func (m *Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.done {
		return m, tea.Quit
	}
	m.status = ""
	switch {
	case key.Matches(msg, m.keys.Quit):
		m.engine.Abort()
		return m, tea.Quit
	case key.Matches(msg, m.keys.Next):
		m.nav.Next()
	case key.Matches(msg, m.keys.Prev):
		m.nav.Prev()
	case key.Matches(msg, m.keys.Focus):
		if !m.engine.SwitchToFocus() && m.engine.State() == session.StateExploration {
			m.status = "no focus image for this session"
		}
	case key.Matches(msg, m.keys.Finish):
		if m.finishing {
			return m, nil
		}
		m.finishing = true
		return m, finish(m.ctx, m.engine)
	case key.Matches(msg, m.keys.Open):
		if m.open != nil {
			if err := m.open(m.engine.Current()); err != nil {
				m.status = fmt.Sprintf("open failed: %v", err)
			}
		}
	case key.Matches(msg, m.keys.Help):
		m.help.ShowAll = !m.help.ShowAll
	}
	return m, nil
}

// View implements tea.Model.
func (m *Model) View() string {
	var content string
	if m.done {
		content = m.renderSummary()
	} else {
		content = m.renderCurrent()
	}
	footer := m.help.View(m.keys)
	if m.status != "" {
		footer = errorStyle.Render(m.status) + "  " + footer
	}
	if m.width == 0 || m.height == 0 {
		return content + "\n" + footer
	}
	if m.height < 3 {
		return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, content)
	}
	footerHeight := lipgloss.Height(footer)
	body := lipgloss.Place(m.width, m.height-footerHeight, lipgloss.Center, lipgloss.Center, content)
	return body + "\n" + lipgloss.PlaceHorizontal(m.width, lipgloss.Center, footer)
}

func (m *Model) renderCurrent() string {
	state := m.engine.State()
	header := phaseStyle.Render("Exploration")
	if state == session.StateFocus {
		header = focusStyle.Render("Focus")
	}
	idx, size := m.engine.Position()
	elapsed := m.elapsed
	if live := m.engine.Elapsed(); live > elapsed {
		elapsed = live
	}
	segments := []string{header, stats.FormatDuration(elapsed)}
	if state == session.StateExploration {
		segments = append(segments, fmt.Sprintf("%d/%d", idx, size))
	}
	current := m.engine.Current()
	lines := []string{
		strings.Join(segments, footerStyle.Render("  ·  ")),
		"",
		nameStyle.Render(filepath.Base(current)),
		dirStyle.Render(filepath.Dir(current)),
	}
	return strings.Join(lines, "\n")
}

func (m *Model) renderSummary() string {
	if m.err != nil {
		return errorStyle.Render(fmt.Sprintf("Failed to record session: %v", m.err))
	}
	s := m.result
	focus := "no"
	if s.FocusPhaseUsed {
		focus = "yes"
	}
	lines := []string{
		phaseStyle.Render("Session complete"),
		"",
		fmt.Sprintf("Duration:    %s", stats.FormatDuration(secondsToDuration(s.DurationSeconds))),
		fmt.Sprintf("Tier:        %d", int(s.ContentTier)),
		fmt.Sprintf("Focus used:  %s", focus),
	}
	if s.ExplorationSeconds != model.NotRecorded {
		lines = append(lines, fmt.Sprintf("Exploration: %.1fs", s.ExplorationSeconds))
	}
	if s.FocusPhaseUsed && s.FocusSeconds != model.NotRecorded {
		lines = append(lines, fmt.Sprintf("Focus:       %.1fs", s.FocusSeconds))
	}
	lines = append(lines, "", footerStyle.Render("press any key to exit"))
	return summaryStyle.Render(strings.Join(lines, "\n"))
}

func secondsToDuration(v float64) time.Duration {
	return time.Duration(v * float64(time.Second))
}
