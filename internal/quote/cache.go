package quote

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

const (
	quoteTTL  = 6 * time.Hour
	searchTTL = 5 * time.Minute

	// batchLimit bounds concurrent upstream fetches in a batch lookup.
	batchLimit = 4
)

// Cache wraps a Provider with per-symbol freshness windows. Concurrent
// refreshes for the same symbol collapse to a single upstream fetch.
type Cache struct {
	provider Provider
	logger   *slog.Logger

	mu       sync.RWMutex
	quotes   map[string]cachedQuote
	searches map[string]cachedSearch

	flight singleflight.Group
}

type cachedQuote struct {
	quote     Quote
	fetchedAt time.Time
}

type cachedSearch struct {
	hits      []Security
	fetchedAt time.Time
}

func NewCache(p Provider, logger *slog.Logger) *Cache {
	return &Cache{
		provider: p,
		logger:   logger.With("component", "quote_cache"),
		quotes:   make(map[string]cachedQuote),
		searches: make(map[string]cachedSearch),
	}
}

// GetPrice returns the cached quote when inside the freshness window and
// refetches otherwise. A failed refetch returns the error; expired entries
// are not served stale, so valuation sees a visible miss instead of an old
// price.
func (c *Cache) GetPrice(ctx context.Context, symbol string) (Quote, error) {
	if q, ok := c.freshQuote(symbol); ok {
		return q, nil
	}

	v, err, _ := c.flight.Do("quote:"+symbol, func() (any, error) {
		// A collapsed caller may have refreshed while we waited on the key.
		if q, ok := c.freshQuote(symbol); ok {
			return q, nil
		}
		q, err := c.provider.Quote(ctx, symbol)
		if err != nil {
			return Quote{}, err
		}
		now := time.Now()
		c.mu.Lock()
		c.quotes[symbol] = cachedQuote{quote: q, fetchedAt: now}
		c.mu.Unlock()
		return q, nil
	})
	if err != nil {
		return Quote{}, err
	}
	return v.(Quote), nil
}

func (c *Cache) freshQuote(symbol string) (Quote, bool) {
	c.mu.RLock()
	e, ok := c.quotes[symbol]
	c.mu.RUnlock()
	if !ok || time.Since(e.fetchedAt) >= quoteTTL {
		return Quote{}, false
	}
	q := e.quote
	q.FromCache = true
	return q, true
}

// GetPrices resolves a batch of symbols. Duplicates collapse to one lookup,
// distinct symbols fetch concurrently up to batchLimit in flight, and one
// symbol's failure never fails the others.
func (c *Cache) GetPrices(ctx context.Context, symbols []string) map[string]Result {
	distinct := dedupe(symbols)

	results := make([]Result, len(distinct))
	g := new(errgroup.Group)
	g.SetLimit(batchLimit)
	for i, symbol := range distinct {
		g.Go(func() error {
			q, err := c.GetPrice(ctx, symbol)
			results[i] = Result{Quote: q, Err: err}
			return nil
		})
	}
	// Outcomes are carried per symbol; the group itself never errors.
	_ = g.Wait()

	out := make(map[string]Result, len(distinct))
	for i, symbol := range distinct {
		out[symbol] = results[i]
	}
	return out
}

// Refresh refetches every symbol regardless of freshness. A successful fetch
// replaces the cached entry; a failed one keeps whatever was cached so a bad
// provider run never empties the cache, and carries the error in its Result.
func (c *Cache) Refresh(ctx context.Context, symbols []string) map[string]Result {
	distinct := dedupe(symbols)

	results := make([]Result, len(distinct))
	g := new(errgroup.Group)
	g.SetLimit(batchLimit)
	for i, symbol := range distinct {
		g.Go(func() error {
			q, err := c.provider.Quote(ctx, symbol)
			if err != nil {
				c.logger.Warn("price refresh failed", "symbol", symbol, "error", err)
				results[i] = Result{Err: err}
				return nil
			}
			c.mu.Lock()
			c.quotes[symbol] = cachedQuote{quote: q, fetchedAt: time.Now()}
			c.mu.Unlock()
			results[i] = Result{Quote: q}
			return nil
		})
	}
	_ = g.Wait()

	out := make(map[string]Result, len(distinct))
	for i, symbol := range distinct {
		out[symbol] = results[i]
	}
	return out
}

func dedupe(symbols []string) []string {
	seen := make(map[string]struct{}, len(symbols))
	distinct := make([]string, 0, len(symbols))
	for _, s := range symbols {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		distinct = append(distinct, s)
	}
	return distinct
}

// Search returns symbol search hits, cached for a short window since users
// type queries interactively and repeats are common.
func (c *Cache) Search(ctx context.Context, query string) ([]Security, error) {
	key := strings.ToLower(strings.TrimSpace(query))

	if hits, ok := c.freshSearch(key); ok {
		return hits, nil
	}

	v, err, _ := c.flight.Do("search:"+key, func() (any, error) {
		if hits, ok := c.freshSearch(key); ok {
			return hits, nil
		}
		hits, err := c.provider.Search(ctx, query)
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		c.searches[key] = cachedSearch{hits: hits, fetchedAt: time.Now()}
		c.mu.Unlock()
		return hits, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]Security), nil
}

func (c *Cache) freshSearch(key string) ([]Security, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.searches[key]
	if !ok || time.Since(e.fetchedAt) >= searchTTL {
		return nil, false
	}
	return e.hits, true
}
