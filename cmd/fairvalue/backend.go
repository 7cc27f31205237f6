package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/seenimoa/fairvalue/internal/cache"
	"github.com/seenimoa/fairvalue/internal/screener"
)

// backend is the financials service together with its cache lifecycle.
type backend struct {
	svc   *screener.Service
	sweep func(ctx context.Context) (int64, error) // drop entries older than the TTL
	close func()
}

// openBackend wires the Screener.in client and the configured cache store
// into a financials service.
func openBackend(ctx context.Context) (*backend, error) {
	client := screener.NewClient(screener.ClientConfig{
		BaseURL:      cfg.Screener.BaseURL,
		UserAgent:    cfg.Screener.UserAgent,
		Timeout:      cfg.Screener.Timeout(),
		RatePerSec:   cfg.Screener.RatePerSec,
		Consolidated: cfg.Screener.Consolidated,
	})
	ttl := cfg.Cache.TTL()

	b := &backend{close: func() {}}
	var store cache.Store[screener.Financials]

	switch cfg.Cache.Backend {
	case "postgres":
		pool, err := cache.Connect(ctx, cfg.Cache.DatabaseURL)
		if err != nil {
			return nil, err
		}
		pg := cache.NewPostgres[screener.Financials](pool, cfg.Cache.Table)
		if err := pg.EnsureSchema(ctx); err != nil {
			pool.Close()
			return nil, fmt.Errorf("cache schema: %w", err)
		}
		store = pg
		b.close = pool.Close
		b.sweep = func(ctx context.Context) (int64, error) {
			return pg.Purge(ctx, time.Now().Add(-ttl))
		}
	default:
		mem := cache.NewMemory[screener.Financials]()
		store = mem
		b.sweep = func(context.Context) (int64, error) {
			return int64(mem.Cleanup(time.Now(), ttl)), nil
		}
	}

	b.svc = screener.NewService(client, cache.NewLoader(store, ttl), cfg.Cache.ConcurrentFetches)
	return b, nil
}

// runSweeper drops stale cache entries every interval until ctx is done.
func (b *backend) runSweeper(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := b.sweep(ctx)
			if err != nil {
				slog.Warn("cache sweep failed", "error", err)
				continue
			}
			if n > 0 {
				slog.Debug("cache sweep", "removed", n)
			}
		}
	}
}
