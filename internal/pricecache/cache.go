// Package pricecache memoizes upstream quotes for a short window and collapses
// concurrent lookups of the same symbol into a single upstream fetch.
package pricecache

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/NasaVasa/pricewatch/internal/domain"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
	"golang.org/x/sync/singleflight"
)

var errAbsent = errors.New("price unavailable")

type Options struct {
	// Retention bounds how long any quote is kept, independent of the
	// freshness window callers ask for. Zero disables pruning.
	Retention time.Duration
	// MaxConcurrent caps in-flight upstream fetches across all callers.
	MaxConcurrent int
}

type entry struct {
	quote     domain.Quote
	fetchedAt time.Time
}

type Cache struct {
	source domain.PriceSource
	opts   Options
	logger *zap.Logger
	now    func() time.Time

	upstream *semaphore.Weighted
	group    singleflight.Group

	mu      sync.RWMutex
	entries map[string]entry
}

func New(source domain.PriceSource, opts Options, logger *zap.Logger) *Cache {
	if opts.MaxConcurrent <= 0 {
		opts.MaxConcurrent = 1
	}
	return &Cache{
		source:   source,
		opts:     opts,
		logger:   logger,
		now:      time.Now,
		upstream: semaphore.NewWeighted(int64(opts.MaxConcurrent)),
		entries:  make(map[string]entry),
	}
}

// GetOrFetch returns a quote for every requested symbol that is either cached
// no older than maxAge or could be fetched now. Unresolvable symbols are
// absent from the result.
func (c *Cache) GetOrFetch(ctx context.Context, symbols []string, maxAge time.Duration) map[string]domain.Quote {
	result := make(map[string]domain.Quote, len(symbols))
	stale := make([]string, 0, len(symbols))

	now := c.now()
	c.mu.Lock()
	c.pruneLocked(now)
	seen := make(map[string]struct{}, len(symbols))
	for _, symbol := range symbols {
		if _, dup := seen[symbol]; dup {
			continue
		}
		seen[symbol] = struct{}{}
		if e, ok := c.entries[symbol]; ok && now.Sub(e.fetchedAt) <= maxAge {
			result[symbol] = e.quote
			cacheHitsTotal.Inc()
			continue
		}
		cacheMissesTotal.Inc()
		stale = append(stale, symbol)
	}
	c.mu.Unlock()

	if len(stale) == 0 {
		return result
	}

	var resultMu sync.Mutex
	g := new(errgroup.Group)
	g.SetLimit(c.opts.MaxConcurrent)
	for _, symbol := range stale {
		g.Go(func() error {
			quote, ok := c.resolve(ctx, symbol, maxAge)
			if ok {
				resultMu.Lock()
				result[symbol] = quote
				resultMu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()

	return result
}

// Len reports the number of retained quotes.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Prune drops every quote fetched longer ago than the retention ceiling.
func (c *Cache) Prune() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pruneLocked(c.now())
}

func (c *Cache) resolve(ctx context.Context, symbol string, maxAge time.Duration) (domain.Quote, bool) {
	ch := c.group.DoChan(symbol, func() (interface{}, error) {
		// A flight that finished between our freshness check and this call
		// already stored the quote.
		if quote, ok := c.fresh(symbol, maxAge); ok {
			return quote, nil
		}

		// The flight outlives any single waiter; only the upstream timeout
		// bounds it.
		fetchCtx := context.WithoutCancel(ctx)
		if err := c.upstream.Acquire(fetchCtx, 1); err != nil {
			return nil, err
		}
		quotes := c.source.Fetch(fetchCtx, []string{symbol})
		c.upstream.Release(1)

		quote, ok := quotes[symbol]
		if !ok {
			upstreamFetchesTotal.WithLabelValues(c.source.Name(), "absent").Inc()
			c.logger.Debug("price absent", zap.String("symbol", symbol), zap.String("source", c.source.Name()))
			return nil, errAbsent
		}
		upstreamFetchesTotal.WithLabelValues(c.source.Name(), "ok").Inc()
		c.store(symbol, quote)
		return quote, nil
	})

	select {
	case <-ctx.Done():
		return domain.Quote{}, false
	case res := <-ch:
		if res.Err != nil {
			return domain.Quote{}, false
		}
		return res.Val.(domain.Quote), true
	}
}

func (c *Cache) fresh(symbol string, maxAge time.Duration) (domain.Quote, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[symbol]
	if !ok || c.now().Sub(e.fetchedAt) > maxAge {
		return domain.Quote{}, false
	}
	return e.quote, true
}

func (c *Cache) store(symbol string, quote domain.Quote) {
	c.mu.Lock()
	c.entries[symbol] = entry{quote: quote, fetchedAt: c.now()}
	cacheEntries.Set(float64(len(c.entries)))
	c.mu.Unlock()
}

func (c *Cache) pruneLocked(now time.Time) int {
	if c.opts.Retention <= 0 {
		return 0
	}
	dropped := 0
	for symbol, e := range c.entries {
		if now.Sub(e.fetchedAt) > c.opts.Retention {
			delete(c.entries, symbol)
			dropped++
		}
	}
	if dropped > 0 {
		cacheEntries.Set(float64(len(c.entries)))
	}
	return dropped
}
