// Package config provides configuration helpers and TOML parsing.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

// Defaults applied when neither the config file nor a flag sets a value.
const (
	DefaultOAuthHost     = "https://oauth.reddit.com"
	DefaultAuthHost      = "https://www.reddit.com"
	DefaultCommunity     = "pics"
	DefaultUserAgent     = "tiertrain/1.0"
	DefaultPageSize      = 100
	DefaultMaxPages      = 20
	DefaultPageDelay     = 400 * time.Millisecond
	DefaultMinYield      = 15
	DefaultRetries       = 2
	DefaultScrapeHost    = "https://www.pinterest.com"
	DefaultScrapeQuery   = "landscape photography"
	DefaultScrapeMax     = 50
	DefaultMaxPerTier    = 50
	DefaultDisplayCount  = 20
	DefaultFastThreshold = 60 * time.Second
	DefaultSessionCost   = 100
)

// DefaultMirrorHosts are the unauthenticated listing mirrors.
var DefaultMirrorHosts = []string{"https://www.reddit.com", "https://old.reddit.com"}

// FileConfig represents the TOML configuration file.
type FileConfig struct {
	Fetch   FetchConfig   `toml:"fetch"`
	Scrape  ScrapeConfig  `toml:"scrape"`
	Cache   CacheConfig   `toml:"cache"`
	Session SessionConfig `toml:"session"`
	Log     LogConfig     `toml:"log"`
}

// FetchConfig maps listing API settings.
type FetchConfig struct {
	OAuthHost   *string  `toml:"oauth-host"`
	AuthHost    *string  `toml:"auth-host"`
	MirrorHosts []string `toml:"mirror-hosts"`
	Community   *string  `toml:"community"`
	UserAgent   *string  `toml:"user-agent"`
	PageSize    *int     `toml:"page-size"`
	MaxPages    *int     `toml:"max-pages"`
	PageDelayMs *int     `toml:"page-delay-ms"`
	MinYield    *int     `toml:"min-yield"`
	Retries     *int     `toml:"retries"`
}

// ScrapeConfig maps secondary source settings.
type ScrapeConfig struct {
	Host  *string `toml:"host"`
	Query *string `toml:"query"`
	Max   *int    `toml:"max"`
}

// CacheConfig maps content cache settings.
type CacheConfig struct {
	MaxPerTier     *int  `toml:"max-per-tier"`
	SniffExtension *bool `toml:"sniff-extension"`
}

// SessionConfig maps session settings.
type SessionConfig struct {
	DisplayCount     *int `toml:"display-count"`
	FastThresholdSec *int `toml:"fast-threshold-sec"`
	Cost             *int `toml:"cost"`
}

// LogConfig maps logging settings.
type LogConfig struct {
	Level *string `toml:"level"`
	Path  *string `toml:"path"`
}

// Settings is the resolved configuration with defaults applied.
type Settings struct {
	OAuthHost   string
	AuthHost    string
	MirrorHosts []string
	Community   string
	UserAgent   string
	PageSize    int
	MaxPages    int
	PageDelay   time.Duration
	MinYield    int
	Retries     int

	ScrapeHost  string
	ScrapeQuery string
	ScrapeMax   int

	MaxPerTier     int
	SniffExtension bool

	DisplayCount  int
	FastThreshold time.Duration
	SessionCost   int

	LogLevel string
	LogPath  string
}

// LoadConfig reads a TOML config from the given path. Missing file is not an error.
func LoadConfig(path string) (FileConfig, error) {
	if path == "" {
		return FileConfig{}, fmt.Errorf("config path is empty")
	}
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return FileConfig{}, nil
		}
		return FileConfig{}, fmt.Errorf("failed to stat config: %w", err)
	}
	var cfg FileConfig
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return FileConfig{}, fmt.Errorf("failed to decode config: %w", err)
	}
	return cfg, nil
}

// Resolve applies defaults to unset values and validates the result.
func (c FileConfig) Resolve() (Settings, error) {
	s := Settings{
		OAuthHost:      stringOr(c.Fetch.OAuthHost, DefaultOAuthHost),
		AuthHost:       stringOr(c.Fetch.AuthHost, DefaultAuthHost),
		MirrorHosts:    DefaultMirrorHosts,
		Community:      stringOr(c.Fetch.Community, DefaultCommunity),
		UserAgent:      stringOr(c.Fetch.UserAgent, DefaultUserAgent),
		PageSize:       intOr(c.Fetch.PageSize, DefaultPageSize),
		MaxPages:       intOr(c.Fetch.MaxPages, DefaultMaxPages),
		PageDelay:      DefaultPageDelay,
		MinYield:       intOr(c.Fetch.MinYield, DefaultMinYield),
		Retries:        intOr(c.Fetch.Retries, DefaultRetries),
		ScrapeHost:     stringOr(c.Scrape.Host, DefaultScrapeHost),
		ScrapeQuery:    stringOr(c.Scrape.Query, DefaultScrapeQuery),
		ScrapeMax:      intOr(c.Scrape.Max, DefaultScrapeMax),
		MaxPerTier:     intOr(c.Cache.MaxPerTier, DefaultMaxPerTier),
		DisplayCount:   intOr(c.Session.DisplayCount, DefaultDisplayCount),
		FastThreshold:  DefaultFastThreshold,
		SessionCost:    intOr(c.Session.Cost, DefaultSessionCost),
		LogLevel:       stringOr(c.Log.Level, "info"),
		LogPath:        stringOr(c.Log.Path, DefaultLogPath()),
		SniffExtension: c.Cache.SniffExtension != nil && *c.Cache.SniffExtension,
	}
	if len(c.Fetch.MirrorHosts) > 0 {
		s.MirrorHosts = append([]string(nil), c.Fetch.MirrorHosts...)
	}
	if c.Fetch.PageDelayMs != nil {
		s.PageDelay = time.Duration(*c.Fetch.PageDelayMs) * time.Millisecond
	}
	if c.Session.FastThresholdSec != nil {
		s.FastThreshold = time.Duration(*c.Session.FastThresholdSec) * time.Second
	}
	if err := s.validate(); err != nil {
		return Settings{}, err
	}
	return s, nil
}

func (s Settings) validate() error {
	if s.PageSize <= 0 || s.PageSize > 100 {
		return fmt.Errorf("fetch.page-size must be between 1 and 100")
	}
	if s.MaxPages <= 0 {
		return fmt.Errorf("fetch.max-pages must be > 0")
	}
	if s.PageDelay < 0 {
		return fmt.Errorf("fetch.page-delay-ms must be >= 0")
	}
	if s.Retries < 0 {
		return fmt.Errorf("fetch.retries must be >= 0")
	}
	if s.Community == "" {
		return fmt.Errorf("fetch.community must not be empty")
	}
	if s.ScrapeMax < 0 {
		return fmt.Errorf("scrape.max must be >= 0")
	}
	if s.MaxPerTier <= 0 {
		return fmt.Errorf("cache.max-per-tier must be > 0")
	}
	if s.DisplayCount <= 0 {
		return fmt.Errorf("session.display-count must be > 0")
	}
	if s.FastThreshold <= 0 {
		return fmt.Errorf("session.fast-threshold-sec must be > 0")
	}
	if s.SessionCost < 0 {
		return fmt.Errorf("session.cost must be >= 0")
	}
	return nil
}

func stringOr(v *string, def string) string {
	if v == nil || *v == "" {
		return def
	}
	return *v
}

func intOr(v *int, def int) int {
	if v == nil {
		return def
	}
	return *v
}

// DefaultConfigTemplate is written by `tiertrain config` when no file exists.
func DefaultConfigTemplate() string {
	return fmt.Sprintf(`# tiertrain configuration
# Uncomment a value to enable it. CLI flags override config values.

[fetch]
# oauth-host = %q
# auth-host = %q
# mirror-hosts = [%q, %q]
# community = %q
# user-agent = %q
# page-size = %d
# max-pages = %d
# page-delay-ms = %d
# min-yield = %d          # Authenticated items needed before mirrors are skipped
# retries = %d            # Per-request retries on transient failures

[scrape]
# host = %q
# query = %q
# max = %d

[cache]
# max-per-tier = %d
# sniff-extension = false # Name cached files by content type instead of URL

[session]
# display-count = %d
# fast-threshold-sec = %d
# cost = %d

[log]
# level = "info"
# path = %q
`,
		DefaultOAuthHost,
		DefaultAuthHost,
		DefaultMirrorHosts[0], DefaultMirrorHosts[1],
		DefaultCommunity,
		DefaultUserAgent,
		DefaultPageSize,
		DefaultMaxPages,
		DefaultPageDelay.Milliseconds(),
		DefaultMinYield,
		DefaultRetries,
		DefaultScrapeHost,
		DefaultScrapeQuery,
		DefaultScrapeMax,
		DefaultMaxPerTier,
		DefaultDisplayCount,
		int(DefaultFastThreshold.Seconds()),
		DefaultSessionCost,
		DefaultLogPath(),
	)
}
