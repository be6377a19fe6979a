package progression

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/verte-zerg/tiertrain/internal/model"
	"github.com/verte-zerg/tiertrain/internal/store"
)

var (
	fast    = model.SessionOutcome{Duration: 30 * time.Second, FocusPhaseUsed: true}
	slow    = model.SessionOutcome{Duration: 90 * time.Second, FocusPhaseUsed: true}
	noFocus = model.SessionOutcome{Duration: 20 * time.Second}
)

func applyAll(p model.UserProgress, outcomes ...model.SessionOutcome) model.UserProgress {
	for _, o := range outcomes {
		p = ApplySessionOutcome(p, o)
	}
	return p
}

func TestStreakMustBeContiguous(t *testing.T) {
	p := applyAll(model.DefaultProgress(), fast, fast, slow, fast)
	assert.Equal(t, 1, p.FastSessionStreak)
	assert.Equal(t, model.Tier(1), p.ContentTier)
	assert.Equal(t, 4, p.SessionsAtLevel)
}

func TestNoFocusBreaksStreak(t *testing.T) {
	p := applyAll(model.DefaultProgress(), fast, fast, noFocus)
	assert.Equal(t, 0, p.FastSessionStreak)
}

func TestThresholdIsExclusive(t *testing.T) {
	atLimit := model.SessionOutcome{Duration: 60 * time.Second, FocusPhaseUsed: true}
	assert.False(t, DefaultRules().Qualifies(atLimit))
	assert.True(t, DefaultRules().Qualifies(model.SessionOutcome{Duration: 59 * time.Second, FocusPhaseUsed: true}))
}

func TestFiveFastSessionsAdvanceTier(t *testing.T) {
	start := model.DefaultProgress()
	start.ContentTier = 3

	p := applyAll(start, fast, fast, fast, fast, fast)
	assert.Equal(t, model.Tier(4), p.ContentTier)
	assert.Equal(t, 0, p.FastSessionStreak)

	p = ApplySessionOutcome(p, fast)
	assert.Equal(t, model.Tier(4), p.ContentTier)
	assert.Equal(t, 1, p.FastSessionStreak)
}

func TestTierCeiling(t *testing.T) {
	start := model.DefaultProgress()
	start.ContentTier = model.MaxTier
	p := start
	for i := 0; i < 12; i++ {
		p = ApplySessionOutcome(p, fast)
	}
	assert.Equal(t, model.MaxTier, p.ContentTier)
}

func TestOutOfRangeTierIsClamped(t *testing.T) {
	start := model.DefaultProgress()
	start.ContentTier = 12
	assert.Equal(t, model.MaxTier, ApplySessionOutcome(start, slow).ContentTier)
	start.ContentTier = 0
	assert.Equal(t, model.MinTier, ApplySessionOutcome(start, slow).ContentTier)
}

func TestCustomRules(t *testing.T) {
	r := Rules{FastThreshold: 10 * time.Second, StreakToAdvance: 2}
	p := r.Apply(model.DefaultProgress(), model.SessionOutcome{Duration: 5 * time.Second, FocusPhaseUsed: true})
	p = r.Apply(p, model.SessionOutcome{Duration: 5 * time.Second, FocusPhaseUsed: true})
	assert.Equal(t, model.Tier(2), p.ContentTier)
	assert.False(t, r.Qualifies(fast))
}

func openStore(t *testing.T) *store.Store {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "tiertrain.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func TestRecordSessionStampsAndAppends(t *testing.T) {
	ctx := context.Background()
	st := openStore(t)
	p, err := st.GetProgress(ctx)
	require.NoError(t, err)
	p.ContentTier = 11
	p.Level = model.LevelMiddle
	require.NoError(t, st.SaveProgress(ctx, p))

	eng := New(st, DefaultRules(), nil)
	finished := time.Date(2026, 4, 2, 21, 0, 0, 0, time.UTC)
	sess, err := eng.RecordSession(ctx, model.SessionOutcome{
		FinishedAt:         finished,
		Duration:           15 * time.Second,
		FocusPhaseUsed:     true,
		ExplorationSeconds: 10,
		FocusSeconds:       5,
	})
	require.NoError(t, err)
	assert.NotZero(t, sess.ID)
	assert.Equal(t, model.MaxTier, sess.ContentTier)
	assert.Equal(t, model.LevelMiddle, sess.Level)
	assert.InDelta(t, 15.0, sess.DurationSeconds, 0.001)

	sessions, err := st.ListSessions(ctx, 10)
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.True(t, sessions[0].Date.Equal(finished))
	assert.Equal(t, 10.0, sessions[0].ExplorationSeconds)
	assert.Equal(t, 5.0, sessions[0].FocusSeconds)

	after, err := st.GetProgress(ctx)
	require.NoError(t, err)
	assert.Equal(t, model.MaxTier, after.ContentTier)
	assert.Equal(t, 1, after.FastSessionStreak)
	assert.Equal(t, 1, after.SessionsAtLevel)
}

func TestRecordSessionUnlocksTier(t *testing.T) {
	ctx := context.Background()
	st := openStore(t)
	eng := New(st, DefaultRules(), nil)
	for i := 0; i < 5; i++ {
		_, err := eng.RecordSession(ctx, fast)
		require.NoError(t, err)
	}
	p, err := eng.Progress(ctx)
	require.NoError(t, err)
	assert.Equal(t, model.Tier(2), p.ContentTier)
	assert.Equal(t, 0, p.FastSessionStreak)
}

func tasksAt(t *testing.T, st *store.Store, level model.Level) []model.RoadmapTask {
	t.Helper()
	tasks, err := st.ListTasksByLevel(context.Background(), level)
	require.NoError(t, err)
	require.NotEmpty(t, tasks)
	return tasks
}

func TestCompleteTaskIsIdempotent(t *testing.T) {
	ctx := context.Background()
	st := openStore(t)
	eng := New(st, DefaultRules(), nil)
	task := tasksAt(t, st, model.LevelIntern)[0]

	p, err := eng.CompleteTask(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, task.PointsReward, p.Points)

	p, err = eng.CompleteTask(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, task.PointsReward, p.Points)
}

func TestCompletingLevelAdvances(t *testing.T) {
	ctx := context.Background()
	st := openStore(t)
	eng := New(st, DefaultRules(), nil)

	_, err := eng.RecordSession(ctx, slow)
	require.NoError(t, err)

	total := 0
	var p model.UserProgress
	for _, task := range tasksAt(t, st, model.LevelIntern) {
		total += task.PointsReward
		p, err = eng.CompleteTask(ctx, task.ID)
		require.NoError(t, err)
	}
	assert.Equal(t, model.LevelJunior, p.Level)
	assert.Equal(t, 0, p.SessionsAtLevel)
	assert.Equal(t, total, p.Points)

	stored, err := st.GetProgress(ctx)
	require.NoError(t, err)
	assert.Equal(t, p, stored)
}

func TestLeadDoesNotAdvance(t *testing.T) {
	ctx := context.Background()
	st := openStore(t)
	p, err := st.GetProgress(ctx)
	require.NoError(t, err)
	p.Level = model.LevelLead
	require.NoError(t, st.SaveProgress(ctx, p))

	eng := New(st, DefaultRules(), nil)
	for _, task := range tasksAt(t, st, model.LevelLead) {
		p, err = eng.CompleteTask(ctx, task.ID)
		require.NoError(t, err)
	}
	assert.Equal(t, model.LevelLead, p.Level)
}

func TestCompleteUnknownTask(t *testing.T) {
	eng := New(openStore(t), DefaultRules(), nil)
	_, err := eng.CompleteTask(context.Background(), 9999)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestPurchaseSession(t *testing.T) {
	ctx := context.Background()
	st := openStore(t)
	eng := New(st, DefaultRules(), nil)

	ok, err := eng.CanBuySession(ctx, DefaultSessionCost)
	require.NoError(t, err)
	assert.False(t, ok)
	_, err = eng.PurchaseSession(ctx, DefaultSessionCost)
	assert.ErrorIs(t, err, ErrInsufficientPoints)

	p, err := st.GetProgress(ctx)
	require.NoError(t, err)
	p.Points = 250
	require.NoError(t, st.SaveProgress(ctx, p))

	ok, err = eng.CanBuySession(ctx, DefaultSessionCost)
	require.NoError(t, err)
	assert.True(t, ok)
	p, err = eng.PurchaseSession(ctx, DefaultSessionCost)
	require.NoError(t, err)
	assert.Equal(t, 150, p.Points)
}

func TestResetTasks(t *testing.T) {
	ctx := context.Background()
	st := openStore(t)
	eng := New(st, DefaultRules(), nil)
	for _, task := range tasksAt(t, st, model.LevelIntern) {
		_, err := eng.CompleteTask(ctx, task.ID)
		require.NoError(t, err)
	}
	require.NoError(t, eng.ResetTasks(ctx))

	p, err := eng.Progress(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, p.Points)
	assert.Equal(t, model.LevelIntern, p.Level)
	for _, task := range tasksAt(t, st, model.LevelIntern) {
		assert.False(t, task.Completed)
	}
}

// failingStore refuses the combined writes while fail is set.
type failingStore struct {
	*store.Store
	fail bool
}

func (f *failingStore) CompleteTask(ctx context.Context, taskID int64, p model.UserProgress) error {
	if f.fail {
		return store.ErrPersistence
	}
	return f.Store.CompleteTask(ctx, taskID, p)
}

func (f *failingStore) RecordSession(ctx context.Context, s model.TrainingSession, p model.UserProgress) (int64, error) {
	if f.fail {
		return 0, store.ErrPersistence
	}
	return f.Store.RecordSession(ctx, s, p)
}

func TestCompleteTaskAfterFailedWriteAwardsOnce(t *testing.T) {
	ctx := context.Background()
	st := &failingStore{Store: openStore(t), fail: true}
	eng := New(st, DefaultRules(), nil)
	task := tasksAt(t, st.Store, model.LevelIntern)[0]

	_, err := eng.CompleteTask(ctx, task.ID)
	require.ErrorIs(t, err, store.ErrPersistence)

	got, err := st.GetTask(ctx, task.ID)
	require.NoError(t, err)
	assert.False(t, got.Completed)

	st.fail = false
	p, err := eng.CompleteTask(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, task.PointsReward, p.Points)

	p, err = eng.CompleteTask(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, task.PointsReward, p.Points)
}

func TestRecordSessionAfterFailedWriteKeepsStreak(t *testing.T) {
	ctx := context.Background()
	st := &failingStore{Store: openStore(t), fail: true}
	eng := New(st, DefaultRules(), nil)

	_, err := eng.RecordSession(ctx, fast)
	require.ErrorIs(t, err, store.ErrPersistence)
	sessions, err := st.ListSessions(ctx, 0)
	require.NoError(t, err)
	assert.Empty(t, sessions)

	st.fail = false
	_, err = eng.RecordSession(ctx, fast)
	require.NoError(t, err)

	sessions, err = st.ListSessions(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, sessions, 1)
	p, err := eng.Progress(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, p.FastSessionStreak)
}

func TestCompleteTaskCompletedElsewhere(t *testing.T) {
	ctx := context.Background()
	st := openStore(t)
	eng := New(st, DefaultRules(), nil)
	task := tasksAt(t, st, model.LevelIntern)[0]

	require.NoError(t, st.CompleteTask(ctx, task.ID, model.UserProgress{ID: 1, Level: model.LevelIntern, ContentTier: 1, Points: 7}))

	p, err := eng.CompleteTask(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, 7, p.Points)
}
