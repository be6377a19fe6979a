package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/verte-zerg/tiertrain/internal/model"
)

const progressBuffer = 64

// DownloadFunc runs a download, reporting through report.
type DownloadFunc func(ctx context.Context, report func(model.Progress)) map[model.Tier]int

type progressMsg model.Progress

type downloadDoneMsg struct{}

// DownloadModel shows per-tier download progress bars.
type DownloadModel struct {
	cancel  context.CancelFunc
	updates chan model.Progress
	done    chan struct{}
	run     func()

	bar     progress.Model
	tiers   []model.Tier
	current map[model.Tier]model.Progress

	results  map[model.Tier]int
	finished bool
}

// NewDownloadModel prepares a download over tiers; it starts on Init.
func NewDownloadModel(ctx context.Context, tiers []model.Tier, fn DownloadFunc) *DownloadModel {
	ctx, cancel := context.WithCancel(ctx)
	m := &DownloadModel{
		cancel:  cancel,
		updates: make(chan model.Progress, progressBuffer),
		done:    make(chan struct{}),
		bar:     progress.New(progress.WithDefaultGradient(), progress.WithWidth(40)),
		tiers:   tiers,
		current: make(map[model.Tier]model.Progress, len(tiers)),
	}
	m.run = func() {
		defer close(m.done)
		defer close(m.updates)
		m.results = fn(ctx, func(p model.Progress) { m.updates <- p })
	}
	return m
}

// Results returns the per-tier downloaded counts after the program exits.
func (m *DownloadModel) Results() map[model.Tier]int {
	if !m.finished {
		return nil
	}
	return m.results
}

// Init implements tea.Model.
func (m *DownloadModel) Init() tea.Cmd {
	go m.run()
	return m.waitForProgress()
}

func (m *DownloadModel) waitForProgress() tea.Cmd {
	return func() tea.Msg {
		p, ok := <-m.updates
		if !ok {
			<-m.done
			return downloadDoneMsg{}
		}
		return progressMsg(p)
	}
}

// Update implements tea.Model.
func (m *DownloadModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC || msg.String() == "q" {
			m.cancel()
		}
		return m, nil
	case tea.WindowSizeMsg:
		width := msg.Width - 24
		if width > 60 {
			width = 60
		}
		if width < 10 {
			width = 10
		}
		m.bar.Width = width
		return m, nil
	case progressMsg:
		m.current[msg.Tier] = model.Progress(msg)
		return m, m.waitForProgress()
	case downloadDoneMsg:
		m.finished = true
		m.cancel()
		return m, tea.Quit
	default:
		return m, nil
	}
}

// View implements tea.Model.
func (m *DownloadModel) View() string {
	var b strings.Builder
	b.WriteString(phaseStyle.Render("Downloading content"))
	b.WriteString("\n\n")
	for _, tier := range m.tiers {
		p, ok := m.current[tier]
		percent := 0.0
		if ok && p.Total > 0 {
			percent = float64(p.Downloaded) / float64(p.Total)
		}
		counts := dirStyle.Render("waiting")
		if ok {
			counts = fmt.Sprintf("%d/%d", p.Downloaded, p.Total)
		}
		fmt.Fprintf(&b, "%-7s %s %s\n", tier.Tag(), m.bar.ViewAs(percent), counts)
	}
	b.WriteString("\n")
	b.WriteString(footerStyle.Render("q: cancel"))
	return b.String()
}
