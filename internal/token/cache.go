// MedLink - Managed Real-Time Connections for Telemedicine Clients
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/medlink

package token

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/tomtom215/medlink/internal/logging"
	"github.com/tomtom215/medlink/internal/metrics"
)

const (
	// DefaultLifetime is the assumed validity of an issued token.
	DefaultLifetime = time.Hour

	// DefaultRefreshBuffer is how long before expiry a cached token stops being served.
	DefaultRefreshBuffer = 5 * time.Minute

	flightKey = "token"
)

// Option configures a Cache.
type Option func(*Cache)

// WithLifetime sets the validity assumed for each fetched token.
func WithLifetime(d time.Duration) Option {
	return func(c *Cache) { c.lifetime = d }
}

// WithRefreshBuffer sets the safety margin before expiry.
func WithRefreshBuffer(d time.Duration) Option {
	return func(c *Cache) { c.buffer = d }
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) { c.now = now }
}

// Cache holds at most one connection token and de-duplicates fetches: while a
// fetch is in flight every caller waits on it instead of starting another.
type Cache struct {
	fetcher  Fetcher
	lifetime time.Duration
	buffer   time.Duration
	now      func() time.Time

	group singleflight.Group

	mu        sync.RWMutex
	token     string
	expiresAt time.Time
	// gen is bumped by Invalidate; a fetch started under an older gen does
	// not touch the cache when it completes.
	gen uint64
}

// NewCache creates a token cache backed by fetcher.
func NewCache(fetcher Fetcher, opts ...Option) *Cache {
	c := &Cache{
		fetcher:  fetcher,
		lifetime: DefaultLifetime,
		buffer:   DefaultRefreshBuffer,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Token returns a token valid beyond the refresh buffer, fetching one if needed.
//
// If ctx is cancelled while waiting, Token returns ctx.Err() and the shared
// fetch keeps running for the other waiters.
func (c *Cache) Token(ctx context.Context) (string, error) {
	if tok, ok := c.cached(); ok {
		metrics.TokenCacheHits.Inc()
		return tok, nil
	}
	metrics.TokenCacheMisses.Inc()

	fetchCtx := context.WithoutCancel(ctx)
	ch := c.group.DoChan(flightKey, func() (interface{}, error) {
		return c.refresh(fetchCtx)
	})

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(string), nil
	}
}

// Invalidate drops the cached token so the next Token call fetches a new one.
func (c *Cache) Invalidate() {
	c.mu.Lock()
	c.token = ""
	c.expiresAt = time.Time{}
	c.gen++
	c.mu.Unlock()

	c.group.Forget(flightKey)
	logging.Debug().Str("component", "token-cache").Msg("Cached token invalidated")
}

// ExpiresAt returns the expiry of the cached token, or the zero time.
func (c *Cache) ExpiresAt() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.expiresAt
}

func (c *Cache) cached() (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.token == "" {
		return "", false
	}
	if !c.now().Add(c.buffer).Before(c.expiresAt) {
		return "", false
	}
	return c.token, true
}

func (c *Cache) refresh(ctx context.Context) (string, error) {
	// A caller that missed just as the previous flight finished lands here
	// after the token was stored.
	if tok, ok := c.cached(); ok {
		return tok, nil
	}

	c.mu.RLock()
	gen := c.gen
	c.mu.RUnlock()

	start := time.Now()
	tok, err := c.fetcher.Fetch(ctx)
	if err == nil && tok == "" {
		err = &FetchError{Err: errEmptyToken}
	}
	metrics.RecordTokenFetch(time.Since(start), err)

	c.mu.Lock()
	defer c.mu.Unlock()

	if gen != c.gen {
		if err != nil {
			return "", asFetchError(err)
		}
		logging.Ctx(ctx).Debug().Str("component", "token-cache").Msg("Discarding token fetched before invalidation")
		return tok, nil
	}

	if err != nil {
		c.token = ""
		c.expiresAt = time.Time{}
		logging.Ctx(ctx).Warn().Err(err).Str("component", "token-cache").Msg("Token fetch failed")
		return "", asFetchError(err)
	}

	c.token = tok
	c.expiresAt = c.now().Add(c.lifetime)
	logging.Ctx(ctx).Debug().
		Str("component", "token-cache").
		Str("token", logging.RedactToken(tok)).
		Time("expires_at", c.expiresAt).
		Msg("Token refreshed")
	return tok, nil
}
