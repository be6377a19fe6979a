package main

import (
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/verte-zerg/tiertrain/internal/config"
	"github.com/verte-zerg/tiertrain/internal/model"
	"github.com/verte-zerg/tiertrain/internal/progression"
	"github.com/verte-zerg/tiertrain/internal/store"
)

var (
	tasksAll   bool
	tasksLevel string
	shopCost   int
)

func newTasksCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tasks",
		Short: "Roadmap tasks",
		Args:  cobra.NoArgs,
		RunE:  runTasksListCmd,
	}
	list := &cobra.Command{
		Use:   "list",
		Short: "List tasks for the current level",
		Args:  cobra.NoArgs,
		RunE:  runTasksListCmd,
	}
	list.Flags().BoolVar(&tasksAll, "all", false, "list tasks of every level")
	list.Flags().StringVar(&tasksLevel, "level", "", "list tasks of one level (intern, junior, middle, senior, lead)")

	complete := &cobra.Command{
		Use:   "complete ID",
		Short: "Mark a task completed and collect its points",
		Args:  cobra.ExactArgs(1),
		RunE:  runTasksCompleteCmd,
	}
	reset := &cobra.Command{
		Use:   "reset",
		Short: "Reset tasks, points and level",
		Args:  cobra.NoArgs,
		RunE:  runTasksResetCmd,
	}
	cmd.AddCommand(list, complete, reset)
	return cmd
}

func runTasksListCmd(cmd *cobra.Command, _ []string) error {
	return withApp(func(a *app) error {
		st, err := a.openStore()
		if err != nil {
			return err
		}
		ctx := cmd.Context()
		p, err := st.GetProgress(ctx)
		if err != nil {
			return err
		}
		level, err := taskLevel(tasksLevel, p.Level)
		if err != nil {
			return err
		}
		var tasks []model.RoadmapTask
		if tasksAll {
			tasks, err = st.ListTasks(ctx)
		} else {
			tasks, err = st.ListTasksByLevel(ctx, level)
		}
		if err != nil {
			return err
		}
		return writeTasks(cmd.OutOrStdout(), tasks)
	})
}

// taskLevel resolves --level, defaulting to the user's current level.
func taskLevel(name string, current model.Level) (model.Level, error) {
	if name == "" {
		return current, nil
	}
	level, err := model.ParseLevel(name)
	if err != nil {
		return 0, fmt.Errorf("--level: %w", err)
	}
	return level, nil
}

func writeTasks(w io.Writer, tasks []model.RoadmapTask) error {
	if len(tasks) == 0 {
		_, err := fmt.Fprintln(w, "No tasks.")
		return err
	}
	for _, t := range tasks {
		mark := " "
		if t.Completed {
			mark = "x"
		}
		if _, err := fmt.Fprintf(w, "[%s] %3d  %-7s %-40s +%d\n", mark, t.ID, t.Level, t.Title, t.PointsReward); err != nil {
			return err
		}
		if t.Description != "" {
			if _, err := fmt.Fprintf(w, "          %s\n", t.Description); err != nil {
				return err
			}
		}
	}
	return nil
}

func runTasksCompleteCmd(cmd *cobra.Command, args []string) error {
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid task id %q", args[0])
	}
	return withApp(func(a *app) error {
		prog, err := a.progression()
		if err != nil {
			return err
		}
		p, err := prog.CompleteTask(cmd.Context(), id)
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("task %d not found", id)
		}
		if err != nil {
			return err
		}
		return writeProgress(cmd.OutOrStdout(), p)
	})
}

func runTasksResetCmd(cmd *cobra.Command, _ []string) error {
	return withApp(func(a *app) error {
		prog, err := a.progression()
		if err != nil {
			return err
		}
		if err := prog.ResetTasks(cmd.Context()); err != nil {
			return err
		}
		_, err = fmt.Fprintln(cmd.OutOrStdout(), "Tasks, points and level reset.")
		return err
	})
}

func newShopCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "shop",
		Short: "Spend points",
	}
	buy := &cobra.Command{
		Use:   "buy",
		Short: "Buy an extra session",
		Args:  cobra.NoArgs,
		RunE:  runShopBuyCmd,
	}
	buy.Flags().IntVar(&shopCost, "cost", config.DefaultSessionCost, "points to spend")
	cmd.AddCommand(buy)
	return cmd
}

func runShopBuyCmd(cmd *cobra.Command, _ []string) error {
	return withApp(func(a *app) error {
		applyIntConfig(cmd, "cost", &shopCost, &a.settings.SessionCost)
		if shopCost < 0 {
			return fmt.Errorf("--cost must be >= 0")
		}
		prog, err := a.progression()
		if err != nil {
			return err
		}
		p, err := prog.PurchaseSession(cmd.Context(), shopCost)
		if errors.Is(err, progression.ErrInsufficientPoints) {
			return fmt.Errorf("cannot buy session: %w", err)
		}
		if err != nil {
			return err
		}
		if _, err := fmt.Fprintf(cmd.OutOrStdout(), "Bought a session for %d points.\n", shopCost); err != nil {
			return err
		}
		return writeProgress(cmd.OutOrStdout(), p)
	})
}

func newProgressCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "progress",
		Short: "Show points, level and unlocked tier",
		Args:  cobra.NoArgs,
		RunE:  runProgressCmd,
	}
}

func runProgressCmd(cmd *cobra.Command, _ []string) error {
	return withApp(func(a *app) error {
		prog, err := a.progression()
		if err != nil {
			return err
		}
		p, err := prog.Progress(cmd.Context())
		if err != nil {
			return err
		}
		return writeProgress(cmd.OutOrStdout(), p)
	})
}

func writeProgress(w io.Writer, p model.UserProgress) error {
	_, err := fmt.Fprintf(w,
		"Level: %s\nPoints: %d\nSessions at level: %d\nContent tier: %d/%d\nFast streak: %d/%d\n",
		p.Level, p.Points, p.SessionsAtLevel,
		int(model.ClampTier(p.ContentTier)), int(model.MaxTier),
		p.FastSessionStreak, progression.DefaultStreakToAdvance)
	return err
}
