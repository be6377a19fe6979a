// Package cache keeps per-tier image files on disk, named by content hash so
// every cached image is unique.
package cache

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/verte-zerg/tiertrain/internal/logger"
	"github.com/verte-zerg/tiertrain/internal/metrics"
	"github.com/verte-zerg/tiertrain/internal/model"
)

// FallbackThreshold is the primary yield under which live sessions for the
// top tier also pull scraped URLs.
const FallbackThreshold = 20

// FallbackLimit caps scraped URLs for live sessions.
const FallbackLimit = 50

const maxImageBytes = 32 << 20

// ListingSource supplies tier-tagged items.
type ListingSource interface {
	FetchForTier(ctx context.Context, tier model.Tier) []model.ContentItem
}

// FallbackSource supplies extra image URLs for the top tier.
type FallbackSource interface {
	FetchFallbackImages(ctx context.Context, maxCount int) []string
}

// ProgressFunc receives (tier, downloaded, total) updates.
type ProgressFunc func(model.Progress)

// Options configure a Cache.
type Options struct {
	Root           string
	Listings       ListingSource
	Fallback       FallbackSource
	HTTPClient     *http.Client
	UserAgent      string
	Retries        int
	RetryInterval  time.Duration
	SniffExtension bool
	Logger         logger.Logger
	Metrics        *metrics.Metrics
}

// Cache downloads and serves tier images.
type Cache struct {
	opts   Options
	client *http.Client
	log    logger.Logger
}

// New constructs a Cache rooted at opts.Root.
func New(opts Options) *Cache {
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: 60 * time.Second}
	}
	if opts.Logger == nil {
		opts.Logger = logger.NewNop()
	}
	if opts.RetryInterval <= 0 {
		opts.RetryInterval = 500 * time.Millisecond
	}
	return &Cache{
		opts:   opts,
		client: opts.HTTPClient,
		log:    opts.Logger.With(logger.String("component", "cache")),
	}
}

// Root returns the cache root directory.
func (c *Cache) Root() string {
	return c.opts.Root
}

// CandidateURLs returns image URLs for tier without downloading anything.
// The top tier is topped up from the fallback source when the primary yield
// is under FallbackThreshold.
func (c *Cache) CandidateURLs(ctx context.Context, tier model.Tier) []string {
	urls := newURLSet()
	urls.addItems(c.listings(ctx, tier), 0)
	if tier == model.MaxTier && urls.len() < FallbackThreshold && c.opts.Fallback != nil {
		urls.add(c.opts.Fallback.FetchFallbackImages(ctx, FallbackLimit), 0)
	}
	return urls.list
}

// DownloadTier fetches up to maxCount images for tier into its directory and
// returns how many candidates ended up satisfied, either stored or already
// present. Per-item failures are logged and skipped.
func (c *Cache) DownloadTier(ctx context.Context, tier model.Tier, maxCount int, progress ProgressFunc) int {
	report := func(downloaded, total int) {
		if progress != nil {
			progress(model.Progress{Tier: tier, Downloaded: downloaded, Total: total})
		}
	}
	report(0, maxCount)

	dir := c.tierDir(tier)
	hashes, err := existingHashes(dir)
	if err != nil {
		c.log.Error("prepare tier directory", logger.Int("tier", int(tier)), logger.Error(err))
		return 0
	}

	candidates := c.downloadCandidates(ctx, tier, maxCount)
	total := len(candidates)
	report(0, total)
	c.log.Info("downloading tier", logger.Int("tier", int(tier)), logger.Int("candidates", total))

	downloaded := 0
	for _, u := range candidates {
		if ctx.Err() != nil {
			break
		}
		result, err := c.downloadOne(ctx, dir, u, hashes)
		c.opts.Metrics.Download(result)
		if err != nil {
			c.log.Warn("download failed", logger.String("url", u), logger.Error(err))
		} else {
			downloaded++
		}
		report(downloaded, total)
	}
	c.log.Info("tier done", logger.Int("tier", int(tier)), logger.Int("downloaded", downloaded))
	return downloaded
}

// DownloadAllTiers runs DownloadTier for every tier in order and returns the
// per-tier counts. Tiers not reached before cancellation are absent.
func (c *Cache) DownloadAllTiers(ctx context.Context, maxPerTier int, progress ProgressFunc) map[model.Tier]int {
	out := make(map[model.Tier]int, model.MaxTier)
	for _, tier := range model.AllTiers() {
		if ctx.Err() != nil {
			break
		}
		out[tier] = c.DownloadTier(ctx, tier, maxPerTier, progress)
	}
	return out
}

func (c *Cache) downloadCandidates(ctx context.Context, tier model.Tier, maxCount int) []string {
	urls := newURLSet()
	urls.addItems(c.listings(ctx, tier), maxCount)
	if tier == model.MaxTier && urls.len() < maxCount && c.opts.Fallback != nil {
		urls.add(c.opts.Fallback.FetchFallbackImages(ctx, maxCount-urls.len()), maxCount)
	}
	return urls.list
}

func (c *Cache) listings(ctx context.Context, tier model.Tier) []model.ContentItem {
	if c.opts.Listings == nil {
		return nil
	}
	return c.opts.Listings.FetchForTier(ctx, tier)
}

func (c *Cache) downloadOne(ctx context.Context, dir, u string, hashes map[string]struct{}) (string, error) {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = c.opts.RetryInterval
	b := backoff.WithContext(backoff.WithMaxRetries(policy, uint64(c.opts.Retries)), ctx)

	data, err := backoff.RetryWithData(func() ([]byte, error) {
		return c.fetch(ctx, u)
	}, b)
	if err != nil {
		return metrics.ResultFailed, err
	}

	hash := contentHash(data)
	if _, ok := hashes[hash]; ok {
		return metrics.ResultDuplicate, nil
	}
	ext, err := c.extension(u, data)
	if err != nil {
		return metrics.ResultFailed, err
	}
	if err := writeAtomic(dir, hash+ext, data); err != nil {
		return metrics.ResultFailed, err
	}
	hashes[hash] = struct{}{}
	return metrics.ResultStored, nil
}

func (c *Cache) fetch(ctx context.Context, u string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, http.NoBody)
	if err != nil {
		return nil, backoff.Permanent(fmt.Errorf("failed to create request: %w", err))
	}
	if c.opts.UserAgent != "" {
		req.Header.Set("User-Agent", c.opts.UserAgent)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, backoff.Permanent(ctx.Err())
		}
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode != http.StatusOK {
		err := fmt.Errorf("unexpected status: %s", resp.Status)
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			return nil, err
		}
		return nil, backoff.Permanent(err)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxImageBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read body: %w", err)
	}
	if len(data) == 0 {
		return nil, backoff.Permanent(fmt.Errorf("empty body"))
	}
	return data, nil
}

// urlSet keeps URLs unique case-insensitively in first-seen order.
type urlSet struct {
	seen map[string]struct{}
	list []string
}

func newURLSet() *urlSet {
	return &urlSet{seen: map[string]struct{}{}, list: []string{}}
}

func (s *urlSet) len() int { return len(s.list) }

// add appends urls until limit is reached; limit <= 0 means no limit.
func (s *urlSet) add(urls []string, limit int) {
	for _, u := range urls {
		if limit > 0 && len(s.list) >= limit {
			return
		}
		if u == "" {
			continue
		}
		key := strings.ToLower(u)
		if _, ok := s.seen[key]; ok {
			continue
		}
		s.seen[key] = struct{}{}
		s.list = append(s.list, u)
	}
}

func (s *urlSet) addItems(items []model.ContentItem, limit int) {
	urls := make([]string, 0, len(items))
	for _, it := range items {
		urls = append(urls, it.URL)
	}
	s.add(urls, limit)
}
