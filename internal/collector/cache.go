package collector

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"

	"TrendSentinel/internal/logging"
	"TrendSentinel/internal/metrics"
	"TrendSentinel/internal/model"
)

// CacheEntry is one cached series with the time it was fetched.
type CacheEntry struct {
	Bars      []model.OHLCV `json:"bars"`
	FetchedAt time.Time     `json:"fetched_at"`
}

// CacheStore persists cache entries. Implementations may expire entries on
// their own; CachedSource enforces freshness regardless.
type CacheStore interface {
	Get(ctx context.Context, key string) (*CacheEntry, bool, error)
	Set(ctx context.Context, key string, entry *CacheEntry, ttl time.Duration) error
}

// CachedSource decorates a Source with a time-bounded cache keyed by source,
// timeframe and resolved bar count. Concurrent misses for one key share a
// single upstream call, and entries older than TTL are never served.
type CachedSource struct {
	inner   Source
	store   CacheStore
	ttl     time.Duration
	group   singleflight.Group
	now     func() time.Time
	log     *logrus.Entry
	metrics *metrics.Metrics
}

// NewCachedSource wraps inner. m may be nil.
func NewCachedSource(inner Source, store CacheStore, ttl time.Duration, logger *logrus.Logger, m *metrics.Metrics) *CachedSource {
	return &CachedSource{
		inner:   inner,
		store:   store,
		ttl:     ttl,
		now:     time.Now,
		log:     logging.Component(logger, "cache"),
		metrics: m,
	}
}

func (c *CachedSource) Name() string { return c.inner.Name() }

func (c *CachedSource) key(tf model.Timeframe, h model.Horizon) string {
	return fmt.Sprintf("%s:%s:%d", c.inner.Name(), tf, h.BarCount(tf))
}

func (c *CachedSource) Fetch(ctx context.Context, tf model.Timeframe, h model.Horizon) ([]model.OHLCV, error) {
	key := c.key(tf, h)
	if bars, ok := c.lookup(ctx, key); ok {
		return bars, nil
	}

	v, err, shared := c.group.Do(key, func() (any, error) {
		// Another caller may have filled the entry while we waited.
		if bars, ok := c.lookup(ctx, key); ok {
			return bars, nil
		}
		c.metrics.CacheResult("miss")
		bars, err := c.inner.Fetch(ctx, tf, h)
		if err != nil {
			return nil, err
		}
		entry := &CacheEntry{Bars: bars, FetchedAt: c.now()}
		if err := c.store.Set(ctx, key, entry, c.ttl); err != nil {
			c.log.WithError(err).WithField("key", key).Warn("cache write failed")
		}
		return bars, nil
	})
	if err != nil {
		return nil, err
	}
	if shared {
		c.log.WithField("key", key).Debug("shared in-flight fetch")
	}
	return cloneBars(v.([]model.OHLCV)), nil
}

func (c *CachedSource) lookup(ctx context.Context, key string) ([]model.OHLCV, bool) {
	entry, ok, err := c.store.Get(ctx, key)
	if err != nil {
		c.log.WithError(err).WithField("key", key).Warn("cache read failed")
		return nil, false
	}
	if !ok || c.now().Sub(entry.FetchedAt) >= c.ttl {
		return nil, false
	}
	c.metrics.CacheResult("hit")
	return cloneBars(entry.Bars), true
}

func cloneBars(bars []model.OHLCV) []model.OHLCV {
	return append([]model.OHLCV(nil), bars...)
}
