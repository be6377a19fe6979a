// Package session runs one training session: a shuffled exploration set,
// an optional single focus image and the elapsed-time clock.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/verte-zerg/tiertrain/internal/clock"
	"github.com/verte-zerg/tiertrain/internal/logger"
	"github.com/verte-zerg/tiertrain/internal/model"
	"github.com/verte-zerg/tiertrain/internal/pick"
)

// DefaultDisplayCount is the exploration set size.
const DefaultDisplayCount = 20

// DefaultTickInterval is the clock resolution delivered to OnTick.
const DefaultTickInterval = time.Second

var (
	// ErrInsufficientContent means the source had nothing to show.
	ErrInsufficientContent = errors.New("insufficient content")
	// ErrInvalidState is returned when an operation does not apply to the current state.
	ErrInvalidState = errors.New("invalid session state")
)

// State is the session lifecycle position.
type State int

// Session states.
const (
	StateIdle State = iota
	StateLoading
	StateExploration
	StateFocus
	StateFinished
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateLoading:
		return "loading"
	case StateExploration:
		return "exploration"
	case StateFocus:
		return "focus"
	case StateFinished:
		return "finished"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Recorder persists a finished session and applies progression.
type Recorder interface {
	RecordSession(ctx context.Context, o model.SessionOutcome) (model.TrainingSession, error)
}

// Options configure an Engine.
type Options struct {
	Source       Source
	Recorder     Recorder
	Picker       *pick.Picker
	DisplayCount int
	Clock        clock.Clock
	TickInterval time.Duration
	// OnTick receives the elapsed time once per tick. It runs on its own
	// goroutine; ticks that arrive while it is busy are dropped.
	OnTick func(time.Duration)
	Logger logger.Logger
}

// Engine is the session state machine. Safe for concurrent use.
type Engine struct {
	opts Options
	log  logger.Logger

	mu         sync.Mutex
	state      State
	display    []string
	index      int
	focus      []string
	focusItem  string
	startedAt  time.Time
	switchedAt time.Time
	switched   bool
	finalTime  time.Duration

	ticker *ticker
}

// New constructs an Engine in the Idle state.
func New(opts Options) *Engine {
	if opts.Picker == nil {
		opts.Picker = pick.New()
	}
	if opts.DisplayCount <= 0 {
		opts.DisplayCount = DefaultDisplayCount
	}
	if opts.Clock == nil {
		opts.Clock = clock.System{}
	}
	if opts.TickInterval <= 0 {
		opts.TickInterval = DefaultTickInterval
	}
	if opts.Logger == nil {
		opts.Logger = logger.NewNop()
	}
	return &Engine{
		opts: opts,
		log:  opts.Logger.With(logger.String("component", "session")),
	}
}

// Start loads content and enters the exploration phase. Missing content
// returns ErrInsufficientContent and leaves the engine Idle.
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	if e.state != StateIdle {
		st := e.state
		e.mu.Unlock()
		return fmt.Errorf("start from %s: %w", st, ErrInvalidState)
	}
	e.state = StateLoading
	e.mu.Unlock()

	content, err := e.opts.Source.Load(ctx)
	if err != nil {
		e.log.Warn("content load incomplete", logger.Error(err))
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if len(content.Exploration) == 0 || (content.RequireFocus && len(content.Focus) == 0) {
		e.state = StateIdle
		return fmt.Errorf("%w: %d exploration, %d focus", ErrInsufficientContent,
			len(content.Exploration), len(content.Focus))
	}
	e.display = e.opts.Picker.Subset(content.Exploration, e.opts.DisplayCount)
	e.focus = append([]string(nil), content.Focus...)
	e.index = 0
	e.startedAt = e.opts.Clock.Now()
	e.state = StateExploration
	e.ticker = startTicker(e.opts.Clock, e.startedAt, e.opts.TickInterval, e.opts.OnTick)
	e.log.Info("session started",
		logger.Int("display", len(e.display)), logger.Int("focus", len(e.focus)))
	return nil
}

// Advance moves dir steps through the exploration set, wrapping around.
// It reports whether the position changed.
func (e *Engine) Advance(dir int) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	n := len(e.display)
	if e.state != StateExploration || n <= 1 || dir == 0 {
		return false
	}
	e.index = ((e.index+dir)%n + n) % n
	return true
}

// SwitchToFocus draws one focus image and drops the exploration set. It
// applies once, from the exploration phase, when focus content exists;
// otherwise it does nothing and returns false.
func (e *Engine) SwitchToFocus() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state != StateExploration || e.switched || len(e.focus) == 0 {
		return false
	}
	e.switchedAt = e.opts.Clock.Now()
	e.switched = true
	e.focusItem = e.opts.Picker.One(e.focus)
	e.display = nil
	e.index = 0
	e.state = StateFocus
	return true
}

// Finish stops the clock, computes the phase timings and hands the outcome
// to the recorder. The engine is Finished even when recording fails.
func (e *Engine) Finish(ctx context.Context) (model.TrainingSession, error) {
	e.mu.Lock()
	if e.state != StateExploration && e.state != StateFocus {
		st := e.state
		e.mu.Unlock()
		return model.TrainingSession{}, fmt.Errorf("finish from %s: %w", st, ErrInvalidState)
	}
	t := e.ticker
	e.ticker = nil
	finishedAt := e.opts.Clock.Now()
	outcome := e.outcome(finishedAt)
	e.finalTime = outcome.Duration
	e.state = StateFinished
	e.mu.Unlock()

	t.stop()

	e.log.Info("session finished",
		logger.Duration("duration", outcome.Duration), logger.Bool("focus", outcome.FocusPhaseUsed))
	if e.opts.Recorder == nil {
		return model.TrainingSession{
			Date:               outcome.FinishedAt,
			DurationSeconds:    outcome.Duration.Seconds(),
			FocusPhaseUsed:     outcome.FocusPhaseUsed,
			ExplorationSeconds: outcome.ExplorationSeconds,
			FocusSeconds:       outcome.FocusSeconds,
		}, nil
	}
	return e.opts.Recorder.RecordSession(ctx, outcome)
}

func (e *Engine) outcome(finishedAt time.Time) model.SessionOutcome {
	total := finishedAt.Sub(e.startedAt)
	o := model.SessionOutcome{
		FinishedAt:         finishedAt,
		Duration:           total,
		FocusPhaseUsed:     e.switched,
		ExplorationSeconds: total.Seconds(),
	}
	if e.switched {
		o.ExplorationSeconds = e.switchedAt.Sub(e.startedAt).Seconds()
		o.FocusSeconds = finishedAt.Sub(e.switchedAt).Seconds()
	}
	return o
}

// Abort stops a running session without recording it and returns to Idle.
func (e *Engine) Abort() {
	e.mu.Lock()
	t := e.ticker
	e.ticker = nil
	if e.state == StateExploration || e.state == StateFocus {
		e.reset()
	}
	e.mu.Unlock()
	t.stop()
}

func (e *Engine) reset() {
	e.state = StateIdle
	e.display = nil
	e.focus = nil
	e.focusItem = ""
	e.index = 0
	e.switched = false
	e.startedAt = time.Time{}
	e.switchedAt = time.Time{}
}

// State returns the current state.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Current returns the image on screen, or "" outside the active phases.
func (e *Engine) Current() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	switch e.state {
	case StateExploration:
		if len(e.display) == 0 {
			return ""
		}
		return e.display[e.index]
	case StateFocus:
		return e.focusItem
	}
	return ""
}

// Position returns the 1-based index and size of the exploration set.
func (e *Engine) Position() (int, int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state != StateExploration {
		return 0, 0
	}
	return e.index + 1, len(e.display)
}

// FocusAvailable reports whether SwitchToFocus would apply.
func (e *Engine) FocusAvailable() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state == StateExploration && !e.switched && len(e.focus) > 0
}

// Elapsed returns the running time, frozen once finished.
func (e *Engine) Elapsed() time.Duration {
	e.mu.Lock()
	defer e.mu.Unlock()
	switch e.state {
	case StateExploration, StateFocus:
		return e.opts.Clock.Now().Sub(e.startedAt)
	case StateFinished:
		return e.finalTime
	}
	return 0
}

// Navigator moves through the exploration set.
type Navigator interface {
	Next()
	Prev()
}

// Navigator returns the input-facing navigation capability.
func (e *Engine) Navigator() Navigator {
	return navigator{e: e}
}

type navigator struct {
	e *Engine
}

func (n navigator) Next() { n.e.Advance(1) }
func (n navigator) Prev() { n.e.Advance(-1) }
