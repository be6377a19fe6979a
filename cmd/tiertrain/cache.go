package main

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/dustin/go-humanize"
	dto "github.com/prometheus/client_model/go"
	"github.com/spf13/cobra"

	"github.com/verte-zerg/tiertrain/internal/cache"
	"github.com/verte-zerg/tiertrain/internal/config"
	"github.com/verte-zerg/tiertrain/internal/model"
	"github.com/verte-zerg/tiertrain/internal/tui"
)

var (
	cacheTier    int
	cacheMax     int
	cacheMetrics bool
	cachePlain   bool
	clearTier    int
	listTier     int
	urlsTier     int
)

func newCacheCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Manage the tier image cache",
	}

	download := &cobra.Command{
		Use:   "download",
		Short: "Download images for one tier or all tiers",
		Args:  cobra.NoArgs,
		RunE:  runCacheDownloadCmd,
	}
	download.Flags().IntVar(&cacheTier, "tier", 0, "tier to download (default: all)")
	download.Flags().IntVar(&cacheMax, "max", config.DefaultMaxPerTier, "images per tier")
	download.Flags().BoolVar(&cacheMetrics, "metrics", false, "print fetch and download counters when done")
	download.Flags().BoolVar(&cachePlain, "plain", false, "print progress lines instead of progress bars")

	list := &cobra.Command{
		Use:   "list",
		Short: "List cached image paths",
		Args:  cobra.NoArgs,
		RunE:  runCacheListCmd,
	}
	list.Flags().IntVar(&listTier, "tier", 0, "tier to list (default: all)")

	urls := &cobra.Command{
		Use:   "urls",
		Short: "Print candidate image URLs for a tier without downloading",
		Args:  cobra.NoArgs,
		RunE:  runCacheURLsCmd,
	}
	urls.Flags().IntVar(&urlsTier, "tier", int(model.MinTier), "tier to query")

	statsCmd := &cobra.Command{
		Use:   "stats",
		Short: "Show cached files and sizes per tier",
		Args:  cobra.NoArgs,
		RunE:  runCacheStatsCmd,
	}

	clearCmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete cached images",
		Args:  cobra.NoArgs,
		RunE:  runCacheClearCmd,
	}
	clearCmd.Flags().IntVar(&clearTier, "tier", 0, "tier to clear (default: all)")

	cmd.AddCommand(download, list, urls, statsCmd, clearCmd)
	return cmd
}

func runCacheDownloadCmd(cmd *cobra.Command, _ []string) error {
	return withApp(func(a *app) error {
		applyIntConfig(cmd, "max", &cacheMax, &a.settings.MaxPerTier)
		if cacheMax <= 0 {
			return fmt.Errorf("--max must be > 0")
		}
		tier, err := parseTierFlag(cacheTier)
		if err != nil {
			return err
		}
		c := a.cache()
		tiers := model.AllTiers()
		run := func(ctx context.Context, report func(model.Progress)) map[model.Tier]int {
			return c.DownloadAllTiers(ctx, cacheMax, report)
		}
		if tier != nil {
			tiers = []model.Tier{*tier}
			run = func(ctx context.Context, report func(model.Progress)) map[model.Tier]int {
				return map[model.Tier]int{*tier: c.DownloadTier(ctx, *tier, cacheMax, report)}
			}
		}

		ctx := cmd.Context()
		var results map[model.Tier]int
		if isTerminal() && !cachePlain {
			m := tui.NewDownloadModel(ctx, tiers, run)
			if _, err := tea.NewProgram(m, tea.WithContext(ctx)).Run(); err != nil {
				return fmt.Errorf("failed to run download UI: %w", err)
			}
			results = m.Results()
		} else {
			results = run(ctx, plainProgress(cmd.ErrOrStderr()))
		}

		out := cmd.OutOrStdout()
		for _, t := range tiers {
			n, ok := results[t]
			status := fmt.Sprintf("%d downloaded", n)
			if !ok {
				status = "skipped"
			}
			if _, err := fmt.Fprintf(out, "%s: %s\n", t.Tag(), status); err != nil {
				return fmt.Errorf("failed to write output: %w", err)
			}
		}
		if cacheMetrics {
			families, err := a.registry.Gather()
			if err != nil {
				return fmt.Errorf("failed to gather metrics: %w", err)
			}
			if err := writeMetrics(out, families); err != nil {
				return fmt.Errorf("failed to write output: %w", err)
			}
		}
		return ctx.Err()
	})
}

// plainProgress prints a line whenever a tier's total is known and when it completes.
func plainProgress(w io.Writer) func(model.Progress) {
	return func(p model.Progress) {
		if p.Downloaded == 0 || p.Downloaded == p.Total {
			if _, err := fmt.Fprintf(w, "%s: %d/%d\n", p.Tier.Tag(), p.Downloaded, p.Total); err != nil {
				// Best-effort progress output.
				_ = err
			}
		}
	}
}

// writeMetrics prints counter samples as name{labels} value, sorted by name.
func writeMetrics(w io.Writer, families []*dto.MetricFamily) error {
	sort.Slice(families, func(i, j int) bool { return families[i].GetName() < families[j].GetName() })
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			labels := make([]string, 0, len(m.GetLabel()))
			for _, lp := range m.GetLabel() {
				labels = append(labels, fmt.Sprintf("%s=%q", lp.GetName(), lp.GetValue()))
			}
			value := m.GetCounter().GetValue()
			if g := m.GetGauge(); g != nil {
				value = g.GetValue()
			}
			if _, err := fmt.Fprintf(w, "%s{%s} %g\n", mf.GetName(), strings.Join(labels, ","), value); err != nil {
				return err
			}
		}
	}
	return nil
}

func runCacheListCmd(cmd *cobra.Command, _ []string) error {
	return withApp(func(a *app) error {
		tier, err := parseTierFlag(listTier)
		if err != nil {
			return err
		}
		tiers := model.AllTiers()
		if tier != nil {
			tiers = []model.Tier{*tier}
		}
		c := a.localCache()
		out := cmd.OutOrStdout()
		for _, t := range tiers {
			for _, p := range c.CachedPaths(t) {
				if _, err := fmt.Fprintln(out, p); err != nil {
					return fmt.Errorf("failed to write output: %w", err)
				}
			}
		}
		return nil
	})
}

func runCacheURLsCmd(cmd *cobra.Command, _ []string) error {
	return withApp(func(a *app) error {
		tier, err := model.ParseTier(urlsTier)
		if err != nil {
			return fmt.Errorf("--tier: %w", err)
		}
		urls := a.cache().CandidateURLs(cmd.Context(), tier)
		if len(urls) == 0 {
			logErrf("No candidate URLs found for %s.\n", tier.Tag())
			return nil
		}
		for _, u := range urls {
			if _, err := fmt.Fprintln(cmd.OutOrStdout(), u); err != nil {
				return fmt.Errorf("failed to write output: %w", err)
			}
		}
		return nil
	})
}

func runCacheStatsCmd(cmd *cobra.Command, _ []string) error {
	return withApp(func(a *app) error {
		c := a.localCache()
		return writeCacheStats(cmd.OutOrStdout(), c.Root(), c.Stats())
	})
}

func runCacheClearCmd(cmd *cobra.Command, _ []string) error {
	return withApp(func(a *app) error {
		tier, err := parseTierFlag(clearTier)
		if err != nil {
			return err
		}
		if err := a.localCache().Clear(tier); err != nil {
			return err
		}
		target := "all tiers"
		if tier != nil {
			target = tier.Tag()
		}
		_, err = fmt.Fprintf(cmd.OutOrStdout(), "Cleared %s.\n", target)
		return err
	})
}

func writeCacheStats(w io.Writer, root string, tiers []cache.TierStats) error {
	if _, err := fmt.Fprintf(w, "Cache: %s\n", root); err != nil {
		return err
	}
	var files int
	var size int64
	for _, t := range tiers {
		files += t.Files
		size += t.Bytes
		if _, err := fmt.Fprintf(w, "%-7s %5d files %10s\n", t.Tier.Tag(), t.Files, humanize.Bytes(uint64(t.Bytes))); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintf(w, "%-7s %5d files %10s\n", "Total", files, humanize.Bytes(uint64(size)))
	return err
}
