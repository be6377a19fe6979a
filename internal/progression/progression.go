// Package progression owns the user progress record: points, levels and the
// content tier unlocked by fast sessions.
package progression

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/verte-zerg/tiertrain/internal/logger"
	"github.com/verte-zerg/tiertrain/internal/model"
	"github.com/verte-zerg/tiertrain/internal/store"
)

// Defaults for the tier unlock rule.
const (
	DefaultFastThreshold   = 60 * time.Second
	DefaultStreakToAdvance = 5
	DefaultSessionCost     = 100
)

// ErrInsufficientPoints is returned by PurchaseSession when the balance is too low.
var ErrInsufficientPoints = errors.New("not enough points")

// Store is the persistence the engine needs.
type Store interface {
	GetProgress(ctx context.Context) (model.UserProgress, error)
	SaveProgress(ctx context.Context, p model.UserProgress) error
	GetTask(ctx context.Context, id int64) (model.RoadmapTask, error)
	ListTasksByLevel(ctx context.Context, level model.Level) ([]model.RoadmapTask, error)
	ResetTasks(ctx context.Context) error
	// CompleteTask marks the task done and saves p atomically.
	CompleteTask(ctx context.Context, taskID int64, p model.UserProgress) error
	// RecordSession appends the session and saves p atomically.
	RecordSession(ctx context.Context, session model.TrainingSession, p model.UserProgress) (int64, error)
}

// Rules parameterize the tier unlock rule.
type Rules struct {
	FastThreshold   time.Duration
	StreakToAdvance int
}

// DefaultRules returns the standard rule set.
func DefaultRules() Rules {
	return Rules{FastThreshold: DefaultFastThreshold, StreakToAdvance: DefaultStreakToAdvance}
}

// Qualifies reports whether a session counts toward the fast streak.
func (r Rules) Qualifies(o model.SessionOutcome) bool {
	return o.FocusPhaseUsed && o.Duration < r.FastThreshold
}

// Apply returns p updated for one finished session. A qualifying session
// extends the streak and, when the streak reaches StreakToAdvance below the
// top tier, unlocks the next tier and restarts the streak. Anything else
// breaks the streak.
func (r Rules) Apply(p model.UserProgress, o model.SessionOutcome) model.UserProgress {
	p.ContentTier = model.ClampTier(p.ContentTier)
	p.SessionsAtLevel++
	if !r.Qualifies(o) {
		p.FastSessionStreak = 0
		return p
	}
	p.FastSessionStreak++
	if p.FastSessionStreak >= r.StreakToAdvance && p.ContentTier < model.MaxTier {
		p.ContentTier++
		p.FastSessionStreak = 0
	}
	return p
}

// ApplySessionOutcome applies the default rules.
func ApplySessionOutcome(p model.UserProgress, o model.SessionOutcome) model.UserProgress {
	return DefaultRules().Apply(p, o)
}

// Engine serializes every read-modify-write of the progress record.
type Engine struct {
	store Store
	rules Rules
	log   logger.Logger
	mu    sync.Mutex
}

// New constructs an Engine.
func New(store Store, rules Rules, log logger.Logger) *Engine {
	if rules.FastThreshold <= 0 {
		rules.FastThreshold = DefaultFastThreshold
	}
	if rules.StreakToAdvance <= 0 {
		rules.StreakToAdvance = DefaultStreakToAdvance
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &Engine{store: store, rules: rules, log: log.With(logger.String("component", "progression"))}
}

// Progress returns the current record.
func (e *Engine) Progress(ctx context.Context) (model.UserProgress, error) {
	return e.store.GetProgress(ctx)
}

// RecordSession appends the finished session, stamped with the current
// level and clamped tier, then applies the unlock rule.
func (e *Engine) RecordSession(ctx context.Context, o model.SessionOutcome) (model.TrainingSession, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	p, err := e.store.GetProgress(ctx)
	if err != nil {
		return model.TrainingSession{}, err
	}
	session := model.TrainingSession{
		Date:               o.FinishedAt,
		DurationSeconds:    o.Duration.Seconds(),
		Level:              p.Level,
		ContentTier:        model.ClampTier(p.ContentTier),
		FocusPhaseUsed:     o.FocusPhaseUsed,
		ExplorationSeconds: o.ExplorationSeconds,
		FocusSeconds:       o.FocusSeconds,
	}
	next := e.rules.Apply(p, o)
	id, err := e.store.RecordSession(ctx, session, next)
	if err != nil {
		return model.TrainingSession{}, err
	}
	session.ID = id
	if next.ContentTier != p.ContentTier {
		e.log.Info("content tier unlocked", logger.Int("tier", int(next.ContentTier)))
	}
	return session, nil
}

// CompleteTask marks a task done and awards its points. Completing an
// already completed task changes nothing. When every task of the current
// level is done the user advances a level. The task flag, the points and
// the level change are written together, so a failed write can be retried.
func (e *Engine) CompleteTask(ctx context.Context, taskID int64) (model.UserProgress, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	task, err := e.store.GetTask(ctx, taskID)
	if err != nil {
		return model.UserProgress{}, err
	}
	if task.Completed {
		return e.store.GetProgress(ctx)
	}
	p, err := e.store.GetProgress(ctx)
	if err != nil {
		return model.UserProgress{}, err
	}
	p.Points += task.PointsReward
	levelUp, err := e.levelDone(ctx, p.Level, task.ID)
	if err != nil {
		return model.UserProgress{}, err
	}
	if levelUp {
		p.Level = p.Level.Next()
		p.SessionsAtLevel = 0
	}
	if err := e.store.CompleteTask(ctx, task.ID, p); err != nil {
		if errors.Is(err, store.ErrAlreadyCompleted) {
			return e.store.GetProgress(ctx)
		}
		return model.UserProgress{}, err
	}
	if levelUp {
		e.log.Info("level up", logger.String("level", p.Level.String()))
	}
	return p, nil
}

// levelDone reports whether completing taskID finishes every task of level.
func (e *Engine) levelDone(ctx context.Context, level model.Level, taskID int64) (bool, error) {
	if level >= model.LevelLead {
		return false, nil
	}
	tasks, err := e.store.ListTasksByLevel(ctx, level)
	if err != nil {
		return false, err
	}
	if len(tasks) == 0 {
		return false, nil
	}
	for _, t := range tasks {
		if !t.Completed && t.ID != taskID {
			return false, nil
		}
	}
	return true, nil
}

// CanBuySession reports whether the balance covers cost.
func (e *Engine) CanBuySession(ctx context.Context, cost int) (bool, error) {
	p, err := e.store.GetProgress(ctx)
	if err != nil {
		return false, err
	}
	return p.Points >= cost, nil
}

// PurchaseSession deducts cost from the balance.
func (e *Engine) PurchaseSession(ctx context.Context, cost int) (model.UserProgress, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	p, err := e.store.GetProgress(ctx)
	if err != nil {
		return model.UserProgress{}, err
	}
	if p.Points < cost {
		return p, fmt.Errorf("%w: have %d, need %d", ErrInsufficientPoints, p.Points, cost)
	}
	p.Points -= cost
	if err := e.store.SaveProgress(ctx, p); err != nil {
		return model.UserProgress{}, err
	}
	return p, nil
}

// ResetTasks marks every task incomplete and returns points, level and
// session count to their starting values.
func (e *Engine) ResetTasks(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.store.ResetTasks(ctx)
}
