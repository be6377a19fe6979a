// Package tokenbroker acquires and caches OAuth bearer tokens for the
// listing API.
package tokenbroker

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
	"golang.org/x/sync/singleflight"

	"github.com/verte-zerg/tiertrain/internal/clock"
	"github.com/verte-zerg/tiertrain/internal/logger"
	"github.com/verte-zerg/tiertrain/internal/model"
)

// TokenPath is appended to the auth host.
const TokenPath = "/api/v1/access_token"

// DefaultLifetime is how long a token is reused; the provider issues
// one-hour tokens.
const DefaultLifetime = 55 * time.Minute

const refreshTimeout = 30 * time.Second

// ErrNoCredentials is returned when Token is called without usable credentials.
var ErrNoCredentials = errors.New("no oauth credentials")

// Options configure a Broker.
type Options struct {
	AuthHost   string
	UserAgent  string
	HTTPClient *http.Client
	Clock      clock.Clock
	Lifetime   time.Duration
	Logger     logger.Logger
}

// Broker hands out cached bearer tokens and coalesces concurrent refreshes
// into a single token request.
type Broker struct {
	tokenURL string
	client   *http.Client
	clock    clock.Clock
	lifetime time.Duration
	log      logger.Logger

	group singleflight.Group

	mu        sync.Mutex
	clientID  string
	token     string
	expiresAt time.Time
}

// New constructs a Broker.
func New(opts Options) *Broker {
	if opts.Clock == nil {
		opts.Clock = clock.System{}
	}
	if opts.Lifetime <= 0 {
		opts.Lifetime = DefaultLifetime
	}
	if opts.Logger == nil {
		opts.Logger = logger.NewNop()
	}
	base := opts.HTTPClient
	if base == nil {
		base = &http.Client{Timeout: 30 * time.Second}
	}
	client := *base
	client.Transport = &userAgentTransport{base: base.Transport, userAgent: opts.UserAgent}
	return &Broker{
		tokenURL: strings.TrimRight(opts.AuthHost, "/") + TokenPath,
		client:   &client,
		clock:    opts.Clock,
		lifetime: opts.Lifetime,
		log:      opts.Logger.With(logger.String("component", "tokenbroker")),
	}
}

// Token returns a valid bearer token, requesting a new one when the cached
// token is missing or expired. Failures are returned immediately and leave
// the cache untouched.
func (b *Broker) Token(ctx context.Context, creds model.Credentials) (string, error) {
	if !creds.Valid() {
		return "", ErrNoCredentials
	}
	if tok, ok := b.cached(creds.ClientID); ok {
		return tok, nil
	}
	ch := b.group.DoChan(creds.ClientID, func() (any, error) {
		if tok, ok := b.cached(creds.ClientID); ok {
			return tok, nil
		}
		// Joined callers share this refresh; it outlives the caller that started it.
		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), refreshTimeout)
		defer cancel()
		tok, err := b.request(rctx, creds)
		if err != nil {
			return "", err
		}
		b.mu.Lock()
		b.clientID = creds.ClientID
		b.token = tok
		b.expiresAt = b.clock.Now().Add(b.lifetime)
		b.mu.Unlock()
		b.log.Debug("acquired token", logger.Duration("lifetime", b.lifetime))
		return tok, nil
	})
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		if res.Shared {
			b.log.Debug("joined in-flight token refresh")
		}
		return res.Val.(string), nil
	}
}

// Invalidate drops the cached token so the next call refreshes it.
func (b *Broker) Invalidate() {
	b.mu.Lock()
	b.token = ""
	b.expiresAt = time.Time{}
	b.mu.Unlock()
}

func (b *Broker) cached(clientID string) (string, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.token == "" || b.clientID != clientID {
		return "", false
	}
	if !b.clock.Now().Before(b.expiresAt) {
		return "", false
	}
	return b.token, true
}

func (b *Broker) request(ctx context.Context, creds model.Credentials) (string, error) {
	cfg := clientcredentials.Config{
		ClientID:     creds.ClientID,
		ClientSecret: creds.ClientSecret,
		TokenURL:     b.tokenURL,
		AuthStyle:    oauth2.AuthStyleInHeader,
	}
	ctx = context.WithValue(ctx, oauth2.HTTPClient, b.client)
	tok, err := cfg.Token(ctx)
	if err != nil {
		b.log.Warn("token request failed", logger.Error(err))
		return "", fmt.Errorf("token request: %w", err)
	}
	if tok.AccessToken == "" {
		return "", fmt.Errorf("token request: empty access_token")
	}
	return tok.AccessToken, nil
}

type userAgentTransport struct {
	base      http.RoundTripper
	userAgent string
}

func (t *userAgentTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	base := t.base
	if base == nil {
		base = http.DefaultTransport
	}
	if t.userAgent == "" {
		return base.RoundTrip(req)
	}
	clone := req.Clone(req.Context())
	clone.Header.Set("User-Agent", t.userAgent)
	return base.RoundTrip(clone)
}
