// Package catalog owns the portal's in-process catalog cache. One Cache is
// constructed at startup and injected into everything that reads series data;
// writes go through it so the entry is dropped the moment anything changes.
package catalog

import (
	"context"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/example/fiction-portal/internal/platform/metrics"
	"github.com/example/fiction-portal/services/portal/internal/gateway"
)

// FreshnessWindow is how long a fetched catalog stays authoritative.
const FreshnessWindow = 30 * time.Second

type entry struct {
	series    []gateway.Series
	fetchedAt time.Time
}

// Cache is a single-flight, time-boxed cache of the full catalog. Reads
// degrade to the default collection instead of erroring; mutations always
// invalidate, whether the store accepted the write or not.
type Cache struct {
	gw      gateway.Gateway
	log     *zap.Logger
	metrics *metrics.Collector
	ttl     time.Duration
	now     func() time.Time

	busConn    *nats.Conn
	busSubject string

	mu    sync.RWMutex
	entry *entry

	group singleflight.Group
}

// Option configures the Cache.
type Option func(*Cache)

func WithLogger(log *zap.Logger) Option {
	return func(c *Cache) { c.log = log }
}

func WithMetrics(m *metrics.Collector) Option {
	return func(c *Cache) { c.metrics = m }
}

func WithTTL(ttl time.Duration) Option {
	return func(c *Cache) { c.ttl = ttl }
}

func WithClock(now func() time.Time) Option {
	return func(c *Cache) { c.now = now }
}

// WithInvalidationBus wires the cache to catalog change events so every
// replica drops its entry when the store commits a write, not just the one
// that issued it. Options only record the conn and subject; New subscribes
// after all options are applied.
func WithInvalidationBus(nc *nats.Conn, subject string) Option {
	return func(c *Cache) {
		c.busConn = nc
		c.busSubject = subject
	}
}

func New(gw gateway.Gateway, opts ...Option) *Cache {
	c := &Cache{
		gw:  gw,
		log: zap.NewNop(),
		ttl: FreshnessWindow,
		now: time.Now,
	}
	for _, o := range opts {
		o(c)
	}
	c.subscribeInvalidation()
	return c
}

func (c *Cache) subscribeInvalidation() {
	if c.busConn == nil || c.busSubject == "" {
		return
	}
	_, err := c.busConn.Subscribe(c.busSubject, func(*nats.Msg) {
		c.Invalidate()
	})
	if err != nil {
		c.log.Warn("cache invalidation subscribe failed", zap.Error(err))
	}
}

// GetAll returns the catalog, serving the cached entry while it is fresh and
// refetching otherwise. An empty or failed fetch yields the default
// collection; only real, non-empty results are cached.
func (c *Cache) GetAll(ctx context.Context) []gateway.Series {
	if series, ok := c.cached(true); ok {
		c.markHit()
		return series
	}
	c.markMiss()

	v, _, _ := c.group.Do("catalog", func() (any, error) {
		series, err := c.gw.ListSeries(ctx)
		if err != nil {
			c.log.Warn("catalog fetch failed, serving defaults", zap.Error(err))
			c.markFallback()
			return DefaultSeries(), nil
		}
		if len(series) == 0 {
			c.markFallback()
			return DefaultSeries(), nil
		}
		c.store(series)
		return series, nil
	})
	return v.([]gateway.Series)
}

// GetAllSync returns the last cached collection regardless of age, or the
// defaults before anything was ever fetched. First-paint only; callers must
// not assume it reflects the latest remote state.
func (c *Cache) GetAllSync() []gateway.Series {
	if series, ok := c.cached(false); ok {
		c.markHit()
		return series
	}
	c.markFallback()
	return DefaultSeries()
}

// GetByID resolves one series: fresh cache first, then the gateway, then the
// default collection. Gateway failures are absorbed, not surfaced.
func (c *Cache) GetByID(ctx context.Context, id string) (gateway.Series, bool) {
	if series, ok := c.cached(true); ok {
		if sr, found := findSeries(series, id); found {
			c.markHit()
			return sr, true
		}
	}
	c.markMiss()

	sr, err := c.gw.GetSeries(ctx, id)
	if err == nil {
		return sr, true
	}
	c.log.Debug("series fetch failed, checking defaults", zap.String("id", id), zap.Error(err))
	return findSeries(DefaultSeries(), id)
}

// ─── mutations ──────────────────────────────────────────────────────────────

// AddSeries writes through to the store. The cache is dropped on every
// outcome so the next read is authoritative.
func (c *Cache) AddSeries(ctx context.Context, in gateway.SeriesInput) (gateway.Series, error) {
	defer c.Invalidate()
	return c.gw.CreateSeries(ctx, in)
}

func (c *Cache) DeleteSeries(ctx context.Context, id string) error {
	defer c.Invalidate()
	return c.gw.DeleteSeries(ctx, id)
}

func (c *Cache) AddChapter(ctx context.Context, seriesID string, in gateway.ChapterInput) (gateway.Chapter, error) {
	defer c.Invalidate()
	return c.gw.AppendChapter(ctx, seriesID, in)
}

func (c *Cache) DeleteChapter(ctx context.Context, seriesID, chapterID string) error {
	defer c.Invalidate()
	return c.gw.RemoveChapter(ctx, seriesID, chapterID)
}

func (c *Cache) UpdateChapter(ctx context.Context, seriesID, chapterID string, patch gateway.ChapterPatch) (gateway.Chapter, error) {
	defer c.Invalidate()
	return c.gw.PatchChapter(ctx, seriesID, chapterID, patch)
}

// Invalidate drops the cache entry. Idempotent and safe from any goroutine.
func (c *Cache) Invalidate() {
	c.mu.Lock()
	had := c.entry != nil
	c.entry = nil
	c.mu.Unlock()
	if had && c.metrics != nil {
		c.metrics.CacheInvalidation()
	}
}

// ─── internals ──────────────────────────────────────────────────────────────

func (c *Cache) cached(checkFreshness bool) ([]gateway.Series, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.entry == nil {
		return nil, false
	}
	if checkFreshness && c.now().Sub(c.entry.fetchedAt) >= c.ttl {
		return nil, false
	}
	out := make([]gateway.Series, len(c.entry.series))
	copy(out, c.entry.series)
	return out, true
}

func (c *Cache) store(series []gateway.Series) {
	c.mu.Lock()
	c.entry = &entry{series: series, fetchedAt: c.now()}
	c.mu.Unlock()
}

func (c *Cache) markHit() {
	if c.metrics != nil {
		c.metrics.CacheHit()
	}
}

func (c *Cache) markMiss() {
	if c.metrics != nil {
		c.metrics.CacheMiss()
	}
}

func (c *Cache) markFallback() {
	if c.metrics != nil {
		c.metrics.DefaultFallback()
	}
}

func findSeries(series []gateway.Series, id string) (gateway.Series, bool) {
	for _, sr := range series {
		if sr.ID == id {
			return sr, true
		}
	}
	return gateway.Series{}, false
}
