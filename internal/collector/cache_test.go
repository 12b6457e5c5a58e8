package collector

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"TrendSentinel/internal/metrics"
	"TrendSentinel/internal/model"
)

func TestCachedSource_SingleFlight(t *testing.T) {
	bars := rampBars(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), time.Hour, 24)
	inner := &fakeSource{name: "binance", bars: bars, delay: 50 * time.Millisecond}
	m := metrics.NewMetrics(prometheus.NewRegistry())
	cached := NewCachedSource(inner, NewMemoryStore(), time.Minute, quietLogger(), m)

	var wg sync.WaitGroup
	results := make([][]model.OHLCV, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			got, err := cached.Fetch(context.Background(), model.Timeframe1h, model.Days(1))
			assert.NoError(t, err)
			results[i] = got
		}(i)
	}
	wg.Wait()

	assert.EqualValues(t, 1, inner.calls.Load())
	for _, got := range results {
		assert.Equal(t, bars, got)
	}
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CacheLookups.WithLabelValues("miss")))
}

func TestCachedSource_ExpiresAfterTTL(t *testing.T) {
	inner := &fakeSource{name: "binance", bars: rampBars(fixedNow, time.Hour, 3)}
	cached := NewCachedSource(inner, NewMemoryStore(), time.Minute, quietLogger(), nil)
	now := fixedNow
	cached.now = func() time.Time { return now }
	ctx := context.Background()

	_, err := cached.Fetch(ctx, model.Timeframe1h, model.Bars(3))
	require.NoError(t, err)
	now = now.Add(59 * time.Second)
	_, err = cached.Fetch(ctx, model.Timeframe1h, model.Bars(3))
	require.NoError(t, err)
	assert.EqualValues(t, 1, inner.calls.Load())

	now = now.Add(time.Second)
	_, err = cached.Fetch(ctx, model.Timeframe1h, model.Bars(3))
	require.NoError(t, err)
	assert.EqualValues(t, 2, inner.calls.Load())
}

func TestCachedSource_KeysByResolvedBarCount(t *testing.T) {
	inner := &fakeSource{name: "binance", bars: rampBars(fixedNow, time.Hour, 24)}
	cached := NewCachedSource(inner, NewMemoryStore(), time.Hour, quietLogger(), nil)
	ctx := context.Background()

	_, _ = cached.Fetch(ctx, model.Timeframe1h, model.Days(1))
	_, _ = cached.Fetch(ctx, model.Timeframe1h, model.Bars(24))
	assert.EqualValues(t, 1, inner.calls.Load())

	_, _ = cached.Fetch(ctx, model.Timeframe4h, model.Days(1))
	assert.EqualValues(t, 2, inner.calls.Load())
}

func TestCachedSource_ErrorsAreNotCached(t *testing.T) {
	inner := &fakeSource{name: "binance", err: rateLimitErr("binance", 429, assert.AnError)}
	cached := NewCachedSource(inner, NewMemoryStore(), time.Hour, quietLogger(), nil)

	_, err := cached.Fetch(context.Background(), model.Timeframe1h, model.Bars(5))
	assert.Equal(t, KindRateLimit, KindOf(err))
	_, err = cached.Fetch(context.Background(), model.Timeframe1h, model.Bars(5))
	assert.Error(t, err)
	assert.EqualValues(t, 2, inner.calls.Load())
}

func TestCachedSource_CallerCannotCorruptEntry(t *testing.T) {
	inner := &fakeSource{name: "binance", bars: rampBars(fixedNow, time.Hour, 3)}
	cached := NewCachedSource(inner, NewMemoryStore(), time.Hour, quietLogger(), nil)

	first, err := cached.Fetch(context.Background(), model.Timeframe1h, model.Bars(3))
	require.NoError(t, err)
	first[0].Close = -1

	second, err := cached.Fetch(context.Background(), model.Timeframe1h, model.Bars(3))
	require.NoError(t, err)
	assert.Equal(t, 100.0, second[0].Close)
}

func TestRedisStore(t *testing.T) {
	mr := miniredis.RunT(t)
	ctx := context.Background()
	store, err := NewRedisStore(ctx, "redis://"+mr.Addr())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	_, ok, err := store.Get(ctx, "binance:1h:24")
	require.NoError(t, err)
	assert.False(t, ok)

	entry := &CacheEntry{Bars: rampBars(fixedNow, time.Hour, 2), FetchedAt: fixedNow}
	require.NoError(t, store.Set(ctx, "binance:1h:24", entry, time.Minute))
	assert.True(t, mr.Exists(redisKeyPrefix+"binance:1h:24"))

	got, ok, err := store.Get(ctx, "binance:1h:24")
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, got.FetchedAt.Equal(fixedNow))
	assert.Equal(t, model.Closes(entry.Bars), model.Closes(got.Bars))

	mr.FastForward(2 * time.Minute)
	_, ok, err = store.Get(ctx, "binance:1h:24")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRedisStore_BehindCachedSource(t *testing.T) {
	mr := miniredis.RunT(t)
	store, err := NewRedisStore(context.Background(), "redis://"+mr.Addr())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	inner := &fakeSource{name: "coingecko", bars: rampBars(fixedNow, time.Hour, 4)}
	first := NewCachedSource(inner, store, time.Hour, quietLogger(), nil)
	second := NewCachedSource(inner, store, time.Hour, quietLogger(), nil)

	_, err = first.Fetch(context.Background(), model.Timeframe1h, model.Bars(4))
	require.NoError(t, err)
	got, err := second.Fetch(context.Background(), model.Timeframe1h, model.Bars(4))
	require.NoError(t, err)

	assert.EqualValues(t, 1, inner.calls.Load())
	assert.Len(t, got, 4)
}

func TestRedisStore_BadURL(t *testing.T) {
	_, err := NewRedisStore(context.Background(), "not a url")
	assert.Error(t, err)
}

func TestCachedSource_NilLogger(t *testing.T) {
	inner := &fakeSource{name: "binance", bars: rampBars(fixedNow, time.Hour, 3)}
	cached := NewCachedSource(inner, NewMemoryStore(), time.Minute, nil, nil)

	bars, err := cached.Fetch(context.Background(), model.Timeframe1h, model.Bars(3))

	require.NoError(t, err)
	assert.Len(t, bars, 3)
}
