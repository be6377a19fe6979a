// Package main provides the CLI entrypoint for tiertrain.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/multierr"
	"golang.org/x/term"

	"github.com/verte-zerg/tiertrain/internal/cache"
	"github.com/verte-zerg/tiertrain/internal/config"
	"github.com/verte-zerg/tiertrain/internal/fetcher"
	"github.com/verte-zerg/tiertrain/internal/logger"
	"github.com/verte-zerg/tiertrain/internal/metrics"
	"github.com/verte-zerg/tiertrain/internal/model"
	"github.com/verte-zerg/tiertrain/internal/progression"
	"github.com/verte-zerg/tiertrain/internal/scrape"
	"github.com/verte-zerg/tiertrain/internal/store"
	"github.com/verte-zerg/tiertrain/internal/tokenbroker"
	"github.com/verte-zerg/tiertrain/internal/usercontent"
)

func main() {
	// A missing .env is the common case.
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	rootCmd := newRootCmd()
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "tiertrain",
		Short:         "Tiered image habit trainer",
		SilenceUsage:  true,
		SilenceErrors: false,
		RunE:          runSessionCmd,
	}
	addSessionFlags(rootCmd)

	rootCmd.AddCommand(newSessionCmd())
	rootCmd.AddCommand(newCacheCmd())
	rootCmd.AddCommand(newContentCmd())
	rootCmd.AddCommand(newTasksCmd())
	rootCmd.AddCommand(newShopCmd())
	rootCmd.AddCommand(newProgressCmd())
	rootCmd.AddCommand(newStatsCmd())
	rootCmd.AddCommand(newConfigCmd())
	rootCmd.AddCommand(newCredentialsCmd())

	return rootCmd
}

// app holds the collaborators built from the resolved settings.
type app struct {
	settings config.Settings
	log      logger.Logger
	registry *prometheus.Registry
	metrics  *metrics.Metrics

	st      *store.Store
	library *usercontent.Library
}

func loadSettings() (config.Settings, error) {
	fileCfg, err := config.LoadConfig(config.DefaultConfigPath())
	if err != nil {
		return config.Settings{}, fmt.Errorf("failed to load config: %w", err)
	}
	settings, err := fileCfg.Resolve()
	if err != nil {
		return config.Settings{}, fmt.Errorf("invalid config: %w", err)
	}
	return settings, nil
}

func newApp() (*app, error) {
	settings, err := loadSettings()
	if err != nil {
		return nil, err
	}
	log, err := logger.New(logger.Config{
		Level:       settings.LogLevel,
		OutputPaths: []string{settings.LogPath},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}
	registry := prometheus.NewRegistry()
	return &app{
		settings: settings,
		log:      log,
		registry: registry,
		metrics:  metrics.New(registry),
		library:  usercontent.New(config.AppDataDir(), log),
	}, nil
}

// openStore opens the database on first use.
func (a *app) openStore() (*store.Store, error) {
	if a.st != nil {
		return a.st, nil
	}
	st, err := store.Open(config.DefaultDBPath())
	if err != nil {
		return nil, fmt.Errorf("failed to open db: %w", err)
	}
	a.st = st
	return st, nil
}

func (a *app) progression() (*progression.Engine, error) {
	st, err := a.openStore()
	if err != nil {
		return nil, err
	}
	rules := progression.Rules{
		FastThreshold:   a.settings.FastThreshold,
		StreakToAdvance: progression.DefaultStreakToAdvance,
	}
	return progression.New(st, rules, a.log), nil
}

func (a *app) cache() *cache.Cache {
	s := a.settings
	client := &http.Client{Timeout: 30 * time.Second}
	creds := config.LoadCredentials(config.DefaultCredentialsPath(), a.log)
	if !creds.Valid() {
		a.log.Info("no oauth credentials; using public mirrors only")
	}
	broker := tokenbroker.New(tokenbroker.Options{
		AuthHost:   s.AuthHost,
		UserAgent:  s.UserAgent,
		HTTPClient: client,
		Logger:     a.log,
	})
	listings := fetcher.New(fetcher.Options{
		OAuthHost:   s.OAuthHost,
		MirrorHosts: s.MirrorHosts,
		Community:   s.Community,
		UserAgent:   s.UserAgent,
		PageSize:    s.PageSize,
		MaxPages:    s.MaxPages,
		PageDelay:   s.PageDelay,
		MinYield:    s.MinYield,
		Retries:     s.Retries,
		Credentials: creds,
		Tokens:      broker,
		HTTPClient:  client,
		Logger:      a.log,
		Metrics:     a.metrics,
	})
	fallback := scrape.New(scrape.Options{
		Host:       s.ScrapeHost,
		Query:      s.ScrapeQuery,
		HTTPClient: client,
		Logger:     a.log,
	})
	return cache.New(cache.Options{
		Root:           config.DefaultCacheRoot(),
		Listings:       listings,
		Fallback:       fallback,
		UserAgent:      s.UserAgent,
		Retries:        s.Retries,
		SniffExtension: s.SniffExtension,
		Logger:         a.log,
		Metrics:        a.metrics,
	})
}

// localCache serves cached files only; it never touches the network.
func (a *app) localCache() *cache.Cache {
	return cache.New(cache.Options{Root: config.DefaultCacheRoot(), Logger: a.log})
}

func (a *app) Close() error {
	var err error
	if a.st != nil {
		err = multierr.Append(err, a.st.Close())
	}
	// Sync on stderr returns EINVAL on some platforms.
	if serr := a.log.Sync(); serr != nil && !errors.Is(serr, syscall.EINVAL) {
		err = multierr.Append(err, serr)
	}
	return err
}

// withApp builds the app, runs fn and closes it.
func withApp(fn func(a *app) error) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer func() {
		if cerr := a.Close(); cerr != nil {
			logErrf("failed to close: %v\n", cerr)
		}
	}()
	return fn(a)
}

func parseTierFlag(v int) (*model.Tier, error) {
	if v == 0 {
		return nil, nil
	}
	tier, err := model.ParseTier(v)
	if err != nil {
		return nil, fmt.Errorf("--tier: %w", err)
	}
	return &tier, nil
}

func isTerminal() bool {
	return term.IsTerminal(int(os.Stdin.Fd())) && term.IsTerminal(int(os.Stdout.Fd()))
}

func logErrf(format string, args ...any) {
	if _, err := fmt.Fprintf(os.Stderr, format, args...); err != nil {
		// Best-effort logging to stderr.
		_ = err
	}
}

func logErrln(args ...any) {
	if _, err := fmt.Fprintln(os.Stderr, args...); err != nil {
		// Best-effort logging to stderr.
		_ = err
	}
}
