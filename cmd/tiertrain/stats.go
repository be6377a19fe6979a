package main

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/verte-zerg/tiertrain/internal/stats"
	"github.com/verte-zerg/tiertrain/internal/statsui"
)

const defaultCurveWindow = 10

var (
	statsLast        int
	statsCurveWindow int
	statsPlain       bool
)

func newStatsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show session stats",
		Args:  cobra.NoArgs,
		RunE:  runStatsCmd,
	}
	cmd.Flags().IntVar(&statsLast, "last", stats.DefaultLimit, "limit to last N sessions")
	cmd.Flags().IntVar(&statsCurveWindow, "window", defaultCurveWindow, "moving average window")
	cmd.Flags().BoolVar(&statsPlain, "plain", false, "print a text report instead of the TUI")
	return cmd
}

func runStatsCmd(cmd *cobra.Command, _ []string) error {
	if statsLast <= 0 {
		return fmt.Errorf("--last must be > 0")
	}
	if statsCurveWindow <= 0 {
		return fmt.Errorf("--window must be > 0")
	}
	return withApp(func(a *app) error {
		st, err := a.openStore()
		if err != nil {
			return err
		}
		if statsPlain || !isTerminal() {
			report, err := stats.BuildReport(cmd.Context(), st, statsLast, a.settings.FastThreshold)
			if err != nil {
				return fmt.Errorf("failed to build report: %w", err)
			}
			width := 0
			if !isTerminal() {
				width = 60
			}
			return report.Render(cmd.OutOrStdout(), statsCurveWindow, width)
		}
		m := statsui.NewModel(st, statsui.Config{
			Last:          statsLast,
			CurveWindow:   statsCurveWindow,
			FastThreshold: a.settings.FastThreshold,
		})
		program := tea.NewProgram(m, tea.WithAltScreen())
		if _, err := program.Run(); err != nil {
			return fmt.Errorf("failed to run stats TUI: %w", err)
		}
		return nil
	})
}
