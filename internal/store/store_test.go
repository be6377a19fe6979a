package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/verte-zerg/tiertrain/internal/model"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	st, err := Open(filepath.Join(t.TempDir(), "tiertrain.db"))
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = st.Close()
	})
	return st
}

func TestOpenSeedsDefaults(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	p, err := st.GetProgress(ctx)
	require.NoError(t, err)
	assert.Equal(t, model.DefaultProgress(), p)

	tasks, err := st.ListTasks(ctx)
	require.NoError(t, err)
	assert.Len(t, tasks, len(seedTasks))

	intern, err := st.ListTasksByLevel(ctx, model.LevelIntern)
	require.NoError(t, err)
	assert.Len(t, intern, 2)
}

func TestReopenDoesNotReseed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tiertrain.db")
	st, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, st.SaveProgress(context.Background(), model.UserProgress{ID: 1, Points: 42, Level: model.LevelJunior, ContentTier: 3}))
	require.NoError(t, st.Close())

	st, err = Open(path)
	require.NoError(t, err)
	defer func() { _ = st.Close() }()
	p, err := st.GetProgress(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 42, p.Points)
	tasks, err := st.ListTasks(context.Background())
	require.NoError(t, err)
	assert.Len(t, tasks, len(seedTasks))
}

func TestCompleteTaskAndReset(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	tasks, err := st.ListTasks(ctx)
	require.NoError(t, err)
	task := tasks[0]
	require.NoError(t, st.CompleteTask(ctx, task.ID, model.UserProgress{ID: 1, Points: 300, Level: model.LevelMiddle, SessionsAtLevel: 4, ContentTier: 5}))

	got, err := st.GetTask(ctx, task.ID)
	require.NoError(t, err)
	assert.True(t, got.Completed)

	err = st.CompleteTask(ctx, task.ID, model.UserProgress{ID: 1, Points: 999})
	require.ErrorIs(t, err, ErrAlreadyCompleted)
	p, err := st.GetProgress(ctx)
	require.NoError(t, err)
	assert.Equal(t, 300, p.Points)

	require.NoError(t, st.ResetTasks(ctx))

	got, err = st.GetTask(ctx, task.ID)
	require.NoError(t, err)
	assert.False(t, got.Completed)
	p, err = st.GetProgress(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, p.Points)
	assert.Equal(t, model.LevelIntern, p.Level)
	assert.Equal(t, model.Tier(5), p.ContentTier, "reset leaves content tier alone")
}

func TestGetTaskNotFound(t *testing.T) {
	st := openTestStore(t)
	_, err := st.GetTask(context.Background(), 9999)
	require.ErrorIs(t, err, ErrNotFound)
	require.False(t, errors.Is(err, ErrPersistence))
}

func TestListSessionsOrderAndLimit(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		_, err := st.AppendSession(ctx, model.TrainingSession{
			Date:               base.Add(time.Duration(i) * time.Hour),
			DurationSeconds:    float64(30 + i),
			Level:              model.LevelIntern,
			ContentTier:        2,
			FocusPhaseUsed:     i%2 == 0,
			ExplorationSeconds: 10,
			FocusSeconds:       model.NotRecorded,
		})
		require.NoError(t, err)
	}

	all, err := st.ListSessions(ctx, 0)
	require.NoError(t, err)
	require.Len(t, all, 5)
	assert.True(t, all[0].Date.Before(all[4].Date))

	last, err := st.ListSessions(ctx, 2)
	require.NoError(t, err)
	require.Len(t, last, 2)
	assert.Equal(t, 33.0, last[0].DurationSeconds)
	assert.Equal(t, 34.0, last[1].DurationSeconds)
	assert.True(t, last[1].FocusPhaseUsed)
	assert.Equal(t, model.NotRecorded, last[1].FocusSeconds)
	assert.Equal(t, model.Tier(2), last[1].ContentTier)
}

func TestRetryOnceRecovers(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	st := FromDB(db)
	st.delay = time.Millisecond

	mock.ExpectExec("UPDATE user_progress").WillReturnError(errors.New("database is locked"))
	mock.ExpectExec("UPDATE user_progress").WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, st.SaveProgress(context.Background(), model.DefaultProgress()))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRetryOnceThenSurfaces(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	st := FromDB(db)
	st.delay = time.Millisecond

	mock.ExpectExec("INSERT INTO training_sessions").WillReturnError(errors.New("disk I/O error"))
	mock.ExpectExec("INSERT INTO training_sessions").WillReturnError(errors.New("disk I/O error"))

	_, err = st.AppendSession(context.Background(), model.TrainingSession{Date: time.Now()})
	require.ErrorIs(t, err, ErrPersistence)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordSessionWritesSessionAndProgress(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	id, err := st.RecordSession(ctx,
		model.TrainingSession{Date: time.Now(), DurationSeconds: 40, Level: model.LevelIntern, ContentTier: 1},
		model.UserProgress{ID: 1, Level: model.LevelIntern, SessionsAtLevel: 1, ContentTier: 1, FastSessionStreak: 1})
	require.NoError(t, err)
	assert.NotZero(t, id)

	sessions, err := st.ListSessions(ctx, 0)
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	p, err := st.GetProgress(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, p.FastSessionStreak)
}

func TestCompleteTaskRollsBackWhenProgressFails(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	st := FromDB(db)
	st.delay = time.Millisecond

	for i := 0; i < 2; i++ {
		mock.ExpectBegin()
		mock.ExpectExec("UPDATE roadmap_tasks SET completed = 1").WithArgs(int64(3)).WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec("UPDATE user_progress").WillReturnError(errors.New("disk I/O error"))
		mock.ExpectRollback()
	}

	err = st.CompleteTask(context.Background(), 3, model.UserProgress{ID: 1, Points: 50})
	require.ErrorIs(t, err, ErrPersistence)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordSessionRollsBackWhenProgressFails(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	st := FromDB(db)
	st.delay = time.Millisecond

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO training_sessions").WillReturnResult(sqlmock.NewResult(7, 1))
	mock.ExpectExec("UPDATE user_progress").WillReturnError(errors.New("database is locked"))
	mock.ExpectRollback()
	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO training_sessions").WillReturnResult(sqlmock.NewResult(8, 1))
	mock.ExpectExec("UPDATE user_progress").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	id, err := st.RecordSession(context.Background(), model.TrainingSession{Date: time.Now()}, model.DefaultProgress())
	require.NoError(t, err)
	assert.Equal(t, int64(8), id)
	require.NoError(t, mock.ExpectationsWereMet())
}
