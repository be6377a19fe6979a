// Package scrape collects fallback image URLs from a pin search page.
package scrape

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/verte-zerg/tiertrain/internal/logger"
)

const (
	searchPath    = "/search/pins/"
	minURLLength  = 30
	maxPageBytes  = 16 << 20
	browserAgent  = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0 Safari/537.36"
	acceptHeaders = "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8"
)

var pinImage = regexp.MustCompile(`(?i)https://i\.pinimg\.com/[^\s"'<>]+\.(?:jpg|jpeg|png|webp)`)

// Options configure a Scraper.
type Options struct {
	Host       string
	Query      string
	UserAgent  string
	HTTPClient *http.Client
	Logger     logger.Logger
}

// Scraper fetches one search page and extracts image URLs from it.
type Scraper struct {
	opts   Options
	client *http.Client
	log    logger.Logger
}

// New constructs a Scraper.
func New(opts Options) *Scraper {
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: 30 * time.Second}
	}
	if opts.Logger == nil {
		opts.Logger = logger.NewNop()
	}
	if opts.UserAgent == "" {
		opts.UserAgent = browserAgent
	}
	return &Scraper{
		opts:   opts,
		client: opts.HTTPClient,
		log:    opts.Logger.With(logger.String("component", "scrape")),
	}
}

// FetchFallbackImages returns up to maxCount image URLs. Any failure yields
// an empty list.
func (s *Scraper) FetchFallbackImages(ctx context.Context, maxCount int) []string {
	if maxCount <= 0 {
		return []string{}
	}
	body, err := s.fetch(ctx)
	if err != nil {
		s.log.Warn("search page failed", logger.Error(err))
		return []string{}
	}
	urls := Extract(body, maxCount)
	s.log.Info("scraped fallback images", logger.Int("count", len(urls)))
	return urls
}

func (s *Scraper) fetch(ctx context.Context) ([]byte, error) {
	u := strings.TrimRight(s.opts.Host, "/") + searchPath + "?q=" + url.QueryEscape(s.opts.Query)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", s.opts.UserAgent)
	req.Header.Set("Accept", acceptHeaders)
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() {
		// Best-effort close.
		_ = resp.Body.Close()
	}()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return io.ReadAll(io.LimitReader(resp.Body, maxPageBytes))
}

// Extract pulls pin image URLs out of raw markup: regex matches over the
// whole document first, then img src and srcset attributes.
func Extract(body []byte, maxCount int) []string {
	c := newCollector(maxCount)
	for _, m := range pinImage.FindAll(body, -1) {
		if c.full() {
			return c.urls
		}
		c.add(string(m))
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return c.urls
	}
	doc.Find("img").EachWithBreak(func(_ int, img *goquery.Selection) bool {
		if src, ok := img.Attr("src"); ok {
			c.addMatches(src)
		}
		if srcset, ok := img.Attr("srcset"); ok {
			for _, candidate := range strings.Split(srcset, ",") {
				fields := strings.Fields(candidate)
				if len(fields) > 0 {
					c.addMatches(fields[0])
				}
			}
		}
		return !c.full()
	})
	return c.urls
}

type collector struct {
	max  int
	seen map[string]struct{}
	urls []string
}

func newCollector(max int) *collector {
	return &collector{max: max, seen: map[string]struct{}{}, urls: []string{}}
}

func (c *collector) full() bool {
	return len(c.urls) >= c.max
}

func (c *collector) addMatches(s string) {
	for _, m := range pinImage.FindAllString(s, -1) {
		c.add(m)
	}
}

func (c *collector) add(raw string) {
	if c.full() {
		return
	}
	u := strings.TrimRight(raw, `\"'`)
	if len(u) < minURLLength || strings.Contains(u, "avatar") || strings.Contains(u, "logo") {
		return
	}
	key := strings.ToLower(u)
	if _, ok := c.seen[key]; ok {
		return
	}
	c.seen[key] = struct{}{}
	c.urls = append(c.urls, u)
}
