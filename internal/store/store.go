// Package store handles SQLite persistence.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/verte-zerg/tiertrain/internal/model"

	_ "modernc.org/sqlite" // SQLite driver.
)

var (
	// ErrPersistence wraps any store failure that survived the retry.
	ErrPersistence = errors.New("persistence error")
	// ErrNotFound is returned when a requested row does not exist.
	ErrNotFound = errors.New("not found")
	// ErrAlreadyCompleted is returned by CompleteTask for a task that is done.
	ErrAlreadyCompleted = errors.New("task already completed")
)

const retryDelay = 50 * time.Millisecond

// Store wraps SQLite access for progress, tasks and session history.
type Store struct {
	db    *sql.DB
	delay time.Duration
}

// Open opens or creates the SQLite database, applies migrations and seeds
// the singleton progress row and roadmap tasks on first run.
func Open(path string) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	store := &Store{db: db, delay: retryDelay}
	if err := store.migrate(context.Background()); err != nil {
		if cerr := db.Close(); cerr != nil {
			// Best-effort close on migration failure.
			_ = cerr
		}
		return nil, err
	}
	return store, nil
}

// FromDB wraps an existing handle without migrating it.
func FromDB(db *sql.DB) *Store {
	return &Store{db: db, delay: retryDelay}
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS user_progress (
			id INTEGER PRIMARY KEY,
			points INTEGER NOT NULL DEFAULT 0,
			level INTEGER NOT NULL DEFAULT 1,
			sessions_at_level INTEGER NOT NULL DEFAULT 0,
			content_tier INTEGER NOT NULL DEFAULT 1,
			fast_session_streak INTEGER NOT NULL DEFAULT 0
		);`,
		`CREATE TABLE IF NOT EXISTS roadmap_tasks (
			id INTEGER PRIMARY KEY,
			title TEXT NOT NULL,
			description TEXT NOT NULL,
			level INTEGER NOT NULL,
			points_reward INTEGER NOT NULL,
			completed INTEGER NOT NULL DEFAULT 0
		);`,
		`CREATE TABLE IF NOT EXISTS training_sessions (
			id INTEGER PRIMARY KEY,
			date TEXT NOT NULL,
			duration_seconds REAL NOT NULL,
			level INTEGER NOT NULL,
			content_tier INTEGER NOT NULL DEFAULT 1,
			focus_phase_used INTEGER NOT NULL DEFAULT 0,
			exploration_seconds REAL NOT NULL DEFAULT -1,
			focus_seconds REAL NOT NULL DEFAULT -1
		);`,
		`CREATE INDEX IF NOT EXISTS idx_roadmap_tasks_level ON roadmap_tasks(level);`,
		`CREATE INDEX IF NOT EXISTS idx_training_sessions_date ON training_sessions(date);`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return s.seed(ctx)
}

func (s *Store) seed(ctx context.Context) error {
	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM user_progress`).Scan(&count); err != nil {
		return err
	}
	if count > 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			if rerr := tx.Rollback(); rerr != nil {
				// Best-effort rollback.
				_ = rerr
			}
		}
	}()
	def := model.DefaultProgress()
	if _, err = tx.ExecContext(ctx,
		`INSERT INTO user_progress (id, points, level, sessions_at_level, content_tier, fast_session_streak)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		def.ID, def.Points, int(def.Level), def.SessionsAtLevel, int(def.ContentTier), def.FastSessionStreak,
	); err != nil {
		return err
	}
	for _, task := range seedTasks {
		if _, err = tx.ExecContext(ctx,
			`INSERT INTO roadmap_tasks (title, description, level, points_reward, completed) VALUES (?, ?, ?, ?, 0)`,
			task.Title, task.Description, int(task.Level), task.PointsReward,
		); err != nil {
			return err
		}
	}
	err = tx.Commit()
	return err
}

var seedTasks = []model.RoadmapTask{
	{Title: "LeetCode Easy", Description: "Solve 50 easy problems", Level: model.LevelIntern, PointsReward: 50},
	{Title: "Read Book", Description: "Read an introductory language book", Level: model.LevelIntern, PointsReward: 100},
	{Title: "Build TODO App", Description: "Create a TODO app with SQLite", Level: model.LevelJunior, PointsReward: 150},
	{Title: "LeetCode Medium", Description: "Solve 100 medium problems", Level: model.LevelJunior, PointsReward: 200},
	{Title: "Microservices", Description: "Build a microservices project", Level: model.LevelMiddle, PointsReward: 300},
	{Title: "Cloud Deploy", Description: "Deploy an app to a cloud provider", Level: model.LevelMiddle, PointsReward: 250},
	{Title: "Optimization", Description: "Optimize a high-load system", Level: model.LevelSenior, PointsReward: 400},
	{Title: "Code Review", Description: "Conduct 50 code reviews", Level: model.LevelSenior, PointsReward: 300},
	{Title: "Team Lead", Description: "Lead a team of 3 developers", Level: model.LevelLead, PointsReward: 500},
	{Title: "AI Integration", Description: "Integrate an ML model", Level: model.LevelLead, PointsReward: 450},
}

// retry runs fn, retrying once after a short delay. Errors marked with
// backoff.Permanent are not retried.
func (s *Store) retry(ctx context.Context, op string, fn func() error) error {
	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewConstantBackOff(s.delay), 1), ctx)
	err := backoff.Retry(fn, policy)
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrNotFound) || errors.Is(err, ErrAlreadyCompleted) {
		return err
	}
	return fmt.Errorf("%s: %w: %w", op, ErrPersistence, err)
}

// GetProgress returns the singleton progress row.
func (s *Store) GetProgress(ctx context.Context) (model.UserProgress, error) {
	var p model.UserProgress
	err := s.retry(ctx, "get progress", func() error {
		var level, tier int
		row := s.db.QueryRowContext(ctx,
			`SELECT id, points, level, sessions_at_level, content_tier, fast_session_streak FROM user_progress WHERE id = 1`)
		if err := row.Scan(&p.ID, &p.Points, &level, &p.SessionsAtLevel, &tier, &p.FastSessionStreak); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return backoff.Permanent(ErrNotFound)
			}
			return err
		}
		p.Level = model.Level(level)
		p.ContentTier = model.Tier(tier)
		return nil
	})
	return p, err
}

// SaveProgress overwrites the singleton progress row.
func (s *Store) SaveProgress(ctx context.Context, p model.UserProgress) error {
	return s.retry(ctx, "save progress", func() error {
		return saveProgress(ctx, s.db, p)
	})
}

// ListTasks returns all roadmap tasks ordered by level then id.
func (s *Store) ListTasks(ctx context.Context) ([]model.RoadmapTask, error) {
	return s.queryTasks(ctx, "list tasks",
		`SELECT id, title, description, level, points_reward, completed FROM roadmap_tasks ORDER BY level, id`)
}

// ListTasksByLevel returns the roadmap tasks of one level.
func (s *Store) ListTasksByLevel(ctx context.Context, level model.Level) ([]model.RoadmapTask, error) {
	return s.queryTasks(ctx, "list tasks by level",
		`SELECT id, title, description, level, points_reward, completed FROM roadmap_tasks WHERE level = ? ORDER BY id`,
		int(level))
}

func (s *Store) queryTasks(ctx context.Context, op, query string, args ...any) ([]model.RoadmapTask, error) {
	var tasks []model.RoadmapTask
	err := s.retry(ctx, op, func() error {
		tasks = nil
		rows, err := s.db.QueryContext(ctx, query, args...)
		if err != nil {
			return err
		}
		defer func() {
			if cerr := rows.Close(); cerr != nil {
				// Best-effort rows close.
				_ = cerr
			}
		}()
		for rows.Next() {
			task, err := scanTask(rows)
			if err != nil {
				return err
			}
			tasks = append(tasks, task)
		}
		return rows.Err()
	})
	return tasks, err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanTask(row scanner) (model.RoadmapTask, error) {
	var t model.RoadmapTask
	var level, completed int
	if err := row.Scan(&t.ID, &t.Title, &t.Description, &level, &t.PointsReward, &completed); err != nil {
		return model.RoadmapTask{}, err
	}
	t.Level = model.Level(level)
	t.Completed = completed != 0
	return t, nil
}

// GetTask returns one task by id.
func (s *Store) GetTask(ctx context.Context, id int64) (model.RoadmapTask, error) {
	var task model.RoadmapTask
	err := s.retry(ctx, "get task", func() error {
		row := s.db.QueryRowContext(ctx,
			`SELECT id, title, description, level, points_reward, completed FROM roadmap_tasks WHERE id = ?`, id)
		t, err := scanTask(row)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return backoff.Permanent(fmt.Errorf("task %d: %w", id, ErrNotFound))
			}
			return err
		}
		task = t
		return nil
	})
	return task, err
}

// CompleteTask marks a task completed and stores p in one transaction.
// ErrAlreadyCompleted is returned, with nothing written, when the task was
// completed before.
func (s *Store) CompleteTask(ctx context.Context, taskID int64, p model.UserProgress) error {
	return s.withTx(ctx, "complete task", func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`UPDATE roadmap_tasks SET completed = 1 WHERE id = ? AND completed = 0`, taskID)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return backoff.Permanent(fmt.Errorf("task %d: %w", taskID, ErrAlreadyCompleted))
		}
		return saveProgress(ctx, tx, p)
	})
}

// ResetTasks marks every task incomplete and resets points and roadmap level.
func (s *Store) ResetTasks(ctx context.Context) error {
	return s.withTx(ctx, "reset tasks", func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `UPDATE roadmap_tasks SET completed = 0`); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx,
			`UPDATE user_progress SET points = 0, level = ?, sessions_at_level = 0 WHERE id = 1`,
			int(model.LevelIntern))
		return err
	})
}

// AppendSession stores a finished session. History rows are never updated.
func (s *Store) AppendSession(ctx context.Context, session model.TrainingSession) (int64, error) {
	var id int64
	err := s.retry(ctx, "append session", func() error {
		var err error
		id, err = insertSession(ctx, s.db, session)
		return err
	})
	return id, err
}

// RecordSession appends session and stores p in one transaction.
func (s *Store) RecordSession(ctx context.Context, session model.TrainingSession, p model.UserProgress) (int64, error) {
	var id int64
	err := s.withTx(ctx, "record session", func(tx *sql.Tx) error {
		var err error
		if id, err = insertSession(ctx, tx, session); err != nil {
			return err
		}
		return saveProgress(ctx, tx, p)
	})
	return id, err
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func insertSession(ctx context.Context, db execer, session model.TrainingSession) (int64, error) {
	res, err := db.ExecContext(ctx,
		`INSERT INTO training_sessions (date, duration_seconds, level, content_tier, focus_phase_used, exploration_seconds, focus_seconds)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		session.Date.UTC().Format(time.RFC3339Nano),
		session.DurationSeconds,
		int(session.Level),
		int(session.ContentTier),
		boolToInt(session.FocusPhaseUsed),
		session.ExplorationSeconds,
		session.FocusSeconds,
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func saveProgress(ctx context.Context, db execer, p model.UserProgress) error {
	_, err := db.ExecContext(ctx,
		`UPDATE user_progress SET points = ?, level = ?, sessions_at_level = ?, content_tier = ?, fast_session_streak = ? WHERE id = 1`,
		p.Points, int(p.Level), p.SessionsAtLevel, int(p.ContentTier), p.FastSessionStreak)
	return err
}

// withTx runs fn inside one transaction; the whole transaction is retried.
func (s *Store) withTx(ctx context.Context, op string, fn func(tx *sql.Tx) error) error {
	return s.retry(ctx, op, func() (err error) {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		defer func() {
			if err != nil {
				if rerr := tx.Rollback(); rerr != nil {
					// Best-effort rollback.
					_ = rerr
				}
			}
		}()
		if err = fn(tx); err != nil {
			return err
		}
		err = tx.Commit()
		return err
	})
}

// ListSessions returns the most recent limit sessions, oldest first.
// A limit <= 0 returns the whole history.
func (s *Store) ListSessions(ctx context.Context, limit int) ([]model.TrainingSession, error) {
	query := `SELECT id, date, duration_seconds, level, content_tier, focus_phase_used, exploration_seconds, focus_seconds
		FROM training_sessions ORDER BY date ASC, id ASC`
	args := []any{}
	if limit > 0 {
		query = `SELECT * FROM (
			SELECT id, date, duration_seconds, level, content_tier, focus_phase_used, exploration_seconds, focus_seconds
			FROM training_sessions ORDER BY date DESC, id DESC LIMIT ?
		) ORDER BY date ASC, id ASC`
		args = append(args, limit)
	}
	var sessions []model.TrainingSession
	err := s.retry(ctx, "list sessions", func() error {
		sessions = nil
		rows, err := s.db.QueryContext(ctx, query, args...)
		if err != nil {
			return err
		}
		defer func() {
			if cerr := rows.Close(); cerr != nil {
				// Best-effort rows close.
				_ = cerr
			}
		}()
		for rows.Next() {
			var ts model.TrainingSession
			var date string
			var level, tier, focusUsed int
			if err := rows.Scan(&ts.ID, &date, &ts.DurationSeconds, &level, &tier, &focusUsed, &ts.ExplorationSeconds, &ts.FocusSeconds); err != nil {
				return err
			}
			parsed, err := time.Parse(time.RFC3339Nano, date)
			if err != nil {
				return backoff.Permanent(err)
			}
			ts.Date = parsed
			ts.Level = model.Level(level)
			ts.ContentTier = model.Tier(tier)
			ts.FocusPhaseUsed = focusUsed != 0
			sessions = append(sessions, ts)
		}
		return rows.Err()
	})
	return sessions, err
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
