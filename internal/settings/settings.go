// Package settings caches slow-changing restaurant settings fetched from
// the central store.
package settings

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"posd/internal/common/logger"
)

// Provider fetches the current delivery fee. The Postgres gateway
// satisfies it; tests use ProviderFunc.
type Provider interface {
	DeliveryFee(ctx context.Context) (float64, error)
}

type ProviderFunc func(ctx context.Context) (float64, error)

func (f ProviderFunc) DeliveryFee(ctx context.Context) (float64, error) { return f(ctx) }

// Cache is a TTL cache over a Provider. An explicit Invalidate (admin
// settings update, watched file change) drops the value before the TTL.
type Cache struct {
	mu        sync.Mutex
	p         Provider
	ttl       time.Duration
	fee       float64
	fetchedAt time.Time
	now       func() time.Time
}

func NewCache(p Provider, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Cache{p: p, ttl: ttl, now: time.Now}
}

// WithClock injects a clock for tests.
func (c *Cache) WithClock(now func() time.Time) *Cache {
	c.now = now
	return c
}

func (c *Cache) DeliveryFee(ctx context.Context) (float64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.fetchedAt.IsZero() && c.now().Sub(c.fetchedAt) < c.ttl {
		return c.fee, nil
	}
	fee, err := c.p.DeliveryFee(ctx)
	if err != nil {
		if !c.fetchedAt.IsZero() {
			// serve the stale value; only a cold cache propagates the error
			return c.fee, nil
		}
		return 0, fmt.Errorf("fetch delivery fee: %w", err)
	}
	c.fee = fee
	c.fetchedAt = c.now()
	return fee, nil
}

func (c *Cache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fetchedAt = time.Time{}
}

// Watch invalidates the cache whenever the settings file changes, so an
// on-site settings edit takes effect without waiting out the TTL. Blocks
// until ctx is done.
func (c *Cache) Watch(ctx context.Context, path string, lg *logger.Logger) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer w.Close()
	if err := w.Add(path); err != nil {
		return fmt.Errorf("watch %s: %w", path, err)
	}
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) {
				lg.Debug("settings_file_changed", map[string]any{"file": ev.Name})
				c.Invalidate()
			}
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			lg.Warn("settings_watch_error", err, nil)
		}
	}
}
