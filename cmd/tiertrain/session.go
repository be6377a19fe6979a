package main

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/verte-zerg/tiertrain/internal/config"
	"github.com/verte-zerg/tiertrain/internal/logger"
	"github.com/verte-zerg/tiertrain/internal/session"
	"github.com/verte-zerg/tiertrain/internal/stats"
	"github.com/verte-zerg/tiertrain/internal/tui"
)

const (
	sourceCache = "cache"
	sourceUser  = "user"
)

var (
	sessionSource  string
	sessionDisplay int
)

func newSessionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "session",
		Short: "Run a training session",
		Args:  cobra.NoArgs,
		RunE:  runSessionCmd,
	}
	addSessionFlags(cmd)
	return cmd
}

func addSessionFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&sessionSource, "source", sourceCache, "content source (cache or user)")
	cmd.Flags().IntVar(&sessionDisplay, "display", config.DefaultDisplayCount, "images in the exploration set")
}

func runSessionCmd(cmd *cobra.Command, _ []string) error {
	return withApp(func(a *app) error {
		applyIntConfig(cmd, "display", &sessionDisplay, &a.settings.DisplayCount)
		if sessionDisplay <= 0 {
			return fmt.Errorf("--display must be > 0")
		}
		if !isTerminal() {
			return fmt.Errorf("session requires an interactive terminal")
		}
		prog, err := a.progression()
		if err != nil {
			return err
		}

		var source session.Source
		switch strings.ToLower(strings.TrimSpace(sessionSource)) {
		case sourceCache:
			source = session.CacheSource{
				Cache:    a.localCache(),
				Progress: prog,
			}
		case sourceUser:
			source = session.UserSource{Library: a.library}
		default:
			return fmt.Errorf("--source must be %q or %q", sourceCache, sourceUser)
		}

		ctx := cmd.Context()
		ticks := make(chan time.Duration, 1)
		engine := session.New(session.Options{
			Source:       source,
			Recorder:     prog,
			DisplayCount: sessionDisplay,
			OnTick:       tui.Forward(ticks),
			Logger:       a.log,
		})
		if err := engine.Start(ctx); err != nil {
			if errors.Is(err, session.ErrInsufficientContent) {
				return insufficientContentError(sessionSource, err)
			}
			return fmt.Errorf("failed to start session: %w", err)
		}

		m := tui.NewModel(ctx, engine, ticks, openWithViewer(a.log))
		program := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))
		if _, err := program.Run(); err != nil {
			engine.Abort()
			return fmt.Errorf("failed to run TUI: %w", err)
		}

		result, ok, err := m.Result()
		if err != nil {
			return fmt.Errorf("failed to record session: %w", err)
		}
		if !ok {
			logErrln("Session aborted; nothing recorded.")
			return nil
		}
		p, err := prog.Progress(ctx)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if _, err := fmt.Fprintf(out, "Session %s  tier %d  focus %t\n",
			stats.FormatDuration(time.Duration(result.DurationSeconds*float64(time.Second))),
			int(result.ContentTier), result.FocusPhaseUsed); err != nil {
			return fmt.Errorf("failed to write output: %w", err)
		}
		if _, err := fmt.Fprintf(out, "Tier %d  streak %d  level %s\n",
			int(p.ContentTier), p.FastSessionStreak, p.Level); err != nil {
			return fmt.Errorf("failed to write output: %w", err)
		}
		return nil
	})
}

func insufficientContentError(source string, err error) error {
	lines := []string{fmt.Sprintf("cannot start session: %v", err)}
	if source == sourceUser {
		lines = append(lines,
			"Import exploration images: tiertrain content import --role exploration FILES...",
			"Import focus images: tiertrain content import --role focus FILES...")
	} else {
		lines = append(lines, "Download images: tiertrain cache download")
	}
	return fmt.Errorf("%s", strings.Join(lines, "\n"))
}

// openWithViewer launches TIERTRAIN_VIEWER, or the platform opener, on a file.
func openWithViewer(log logger.Logger) tui.Opener {
	return func(path string) error {
		if path == "" {
			return fmt.Errorf("nothing to open")
		}
		parts := strings.Fields(os.Getenv("TIERTRAIN_VIEWER"))
		if len(parts) == 0 {
			switch runtime.GOOS {
			case "darwin":
				parts = []string{"open"}
			case "windows":
				parts = []string{"rundll32", "url.dll,FileProtocolHandler"}
			default:
				parts = []string{"xdg-open"}
			}
		}
		c := exec.Command(parts[0], append(parts[1:], path)...)
		if err := c.Start(); err != nil {
			return err
		}
		go func() {
			if err := c.Wait(); err != nil {
				log.Warn("viewer exited with error", logger.String("path", path), logger.Error(err))
			}
		}()
		return nil
	}
}
