// Package fetcher retrieves tier-tagged image listings from the community
// listing API, authenticated first and through public mirrors after.
package fetcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/time/rate"

	"github.com/verte-zerg/tiertrain/internal/logger"
	"github.com/verte-zerg/tiertrain/internal/metrics"
	"github.com/verte-zerg/tiertrain/internal/model"
)

// Source labels for metrics and logs.
const (
	SourceAuthenticated = "authenticated"
	SourceMirror        = "mirror"
)

const maxBodyBytes = 8 << 20

// TokenSource supplies bearer tokens for the authenticated endpoint.
type TokenSource interface {
	Token(ctx context.Context, creds model.Credentials) (string, error)
	Invalidate()
}

// Options configure a Fetcher.
type Options struct {
	OAuthHost   string
	MirrorHosts []string
	Community   string
	UserAgent   string
	PageSize    int
	MaxPages    int
	PageDelay   time.Duration
	MinYield    int
	Retries     int

	Credentials model.Credentials
	Tokens      TokenSource
	HTTPClient  *http.Client
	Logger      logger.Logger
	Metrics     *metrics.Metrics

	// RetryInterval is the initial backoff between attempts.
	RetryInterval time.Duration
}

// Fetcher pages through listings and returns the items tagged for a tier.
type Fetcher struct {
	opts   Options
	client *http.Client
	log    logger.Logger
}

// New constructs a Fetcher.
func New(opts Options) *Fetcher {
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: 30 * time.Second}
	}
	if opts.Logger == nil {
		opts.Logger = logger.NewNop()
	}
	if opts.PageSize <= 0 {
		opts.PageSize = 100
	}
	if opts.MaxPages <= 0 {
		opts.MaxPages = 1
	}
	if opts.RetryInterval <= 0 {
		opts.RetryInterval = 500 * time.Millisecond
	}
	return &Fetcher{
		opts:   opts,
		client: opts.HTTPClient,
		log:    opts.Logger.With(logger.String("component", "fetcher")),
	}
}

// FetchForTier returns items whose tag matches tier. Authenticated results
// are used alone when they reach the minimum yield; otherwise every mirror
// is paged and the results are merged, unique by URL. Request failures
// degrade the result and are never returned.
func (f *Fetcher) FetchForTier(ctx context.Context, tier model.Tier) []model.ContentItem {
	match := tierMatcher(tier)
	merged := newMerger()

	if f.opts.Credentials.Valid() && f.opts.Tokens != nil {
		tok, err := f.opts.Tokens.Token(ctx, f.opts.Credentials)
		if err != nil {
			f.log.Warn("token unavailable, using mirrors", logger.Error(err))
		} else {
			merged.add(f.paginate(ctx, SourceAuthenticated, f.opts.OAuthHost, tok, match)...)
			if len(merged.items) >= f.opts.MinYield {
				f.log.Info("authenticated fetch",
					logger.Int("tier", int(tier)), logger.Int("items", len(merged.items)))
				return merged.items
			}
		}
	}

	for _, host := range f.opts.MirrorHosts {
		if ctx.Err() != nil {
			break
		}
		merged.add(f.paginate(ctx, SourceMirror, host, "", match)...)
	}
	f.log.Info("fetched tier", logger.Int("tier", int(tier)), logger.Int("items", len(merged.items)))
	return merged.items
}

func (f *Fetcher) paginate(ctx context.Context, source, host, token string, match *regexp.Regexp) []model.ContentItem {
	limit := rate.Inf
	if f.opts.PageDelay > 0 {
		limit = rate.Every(f.opts.PageDelay)
	}
	limiter := rate.NewLimiter(limit, 1)

	var items []model.ContentItem
	after := ""
	for i := 0; i < f.opts.MaxPages; i++ {
		if err := limiter.Wait(ctx); err != nil {
			break
		}
		p, err := f.fetchPage(ctx, host, after, token, match)
		if err != nil {
			f.opts.Metrics.Page(source, metrics.PageError)
			f.log.Warn("listing page failed",
				logger.String("source", source), logger.String("host", host), logger.Error(err))
			break
		}
		f.opts.Metrics.Page(source, metrics.PageOK)
		f.opts.Metrics.Items(source, len(p.items))
		items = append(items, p.items...)
		if p.after == "" {
			break
		}
		after = p.after
	}
	return items
}

type statusError struct {
	code int
}

func (e *statusError) Error() string {
	return fmt.Sprintf("unexpected status %d", e.code)
}

func retryable(code int) bool {
	return code == http.StatusTooManyRequests || code >= 500
}

func (f *Fetcher) fetchPage(ctx context.Context, host, after, token string, match *regexp.Regexp) (page, error) {
	u, err := f.listingURL(host, after)
	if err != nil {
		return page{}, err
	}
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = f.opts.RetryInterval
	b := backoff.WithContext(backoff.WithMaxRetries(policy, uint64(f.opts.Retries)), ctx)

	body, err := backoff.RetryWithData(func() ([]byte, error) {
		return f.get(ctx, u, token)
	}, b)
	if err != nil {
		return page{}, err
	}
	return parsePage(body, match)
}

func (f *Fetcher) get(ctx context.Context, u, token string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, backoff.Permanent(err)
	}
	if f.opts.UserAgent != "" {
		req.Header.Set("User-Agent", f.opts.UserAgent)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := f.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, backoff.Permanent(ctx.Err())
		}
		return nil, err
	}
	defer func() {
		// Best-effort close.
		_ = resp.Body.Close()
	}()
	if resp.StatusCode != http.StatusOK {
		serr := &statusError{code: resp.StatusCode}
		if resp.StatusCode == http.StatusUnauthorized && token != "" && f.opts.Tokens != nil {
			f.opts.Tokens.Invalidate()
		}
		if retryable(resp.StatusCode) {
			return nil, serr
		}
		return nil, backoff.Permanent(serr)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, err
	}
	return body, nil
}

func (f *Fetcher) listingURL(host, after string) (string, error) {
	base := strings.TrimRight(host, "/")
	if base == "" {
		return "", errors.New("empty listing host")
	}
	path := "/hot.json"
	if f.opts.Community != "" {
		path = "/r/" + url.PathEscape(f.opts.Community) + "/hot.json"
	}
	q := url.Values{}
	q.Set("limit", strconv.Itoa(f.opts.PageSize))
	q.Set("raw_json", "1")
	if after != "" {
		q.Set("after", after)
	}
	return base + path + "?" + q.Encode(), nil
}
