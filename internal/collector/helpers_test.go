package collector

import (
	"context"
	"encoding/json"
	"io"
	"math"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"TrendSentinel/internal/model"
)

var fixedNow = time.Date(2024, 5, 1, 13, 37, 0, 0, time.UTC)

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

// fakeSource is a scripted Source.
type fakeSource struct {
	name  string
	bars  []model.OHLCV
	err   error
	delay time.Duration
	calls atomic.Int32
}

func (f *fakeSource) Name() string { return f.name }

func (f *fakeSource) Fetch(ctx context.Context, _ model.Timeframe, _ model.Horizon) ([]model.OHLCV, error) {
	f.calls.Add(1)
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	return append([]model.OHLCV(nil), f.bars...), nil
}

// rampBars returns n hourly bars from start with close = 100 + i.
func rampBars(start time.Time, step time.Duration, n int) []model.OHLCV {
	bars := make([]model.OHLCV, n)
	for i := range bars {
		c := 100 + float64(i)
		bars[i] = model.OHLCV{
			Time:   start.Add(time.Duration(i) * step),
			Open:   c - 0.5,
			High:   c + 1,
			Low:    c - 1.5,
			Close:  c,
			Volume: 10,
		}
	}
	return bars
}

func requireWellFormed(t *testing.T, bars []model.OHLCV, step time.Duration) {
	t.Helper()
	for i, b := range bars {
		require.NoError(t, b.Check(), "bar %d", i)
		require.LessOrEqual(t, b.Low, math.Min(b.Open, b.Close), "bar %d", i)
		require.GreaterOrEqual(t, b.High, math.Max(b.Open, b.Close), "bar %d", i)
		if i > 0 {
			require.Equal(t, step, b.Time.Sub(bars[i-1].Time), "bar %d", i)
		}
	}
}

// klineServer serves /api/v3/klines from bars, honouring limit and endTime
// the way the exchange does.
func klineServer(t *testing.T, bars []model.OHLCV, hits *atomic.Int32) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		q := r.URL.Query()
		limit, _ := strconv.Atoi(q.Get("limit"))
		end := int64(math.MaxInt64)
		if s := q.Get("endTime"); s != "" {
			end, _ = strconv.ParseInt(s, 10, 64)
		}
		var sel []model.OHLCV
		for _, b := range bars {
			if b.Time.UnixMilli() <= end {
				sel = append(sel, b)
			}
		}
		if len(sel) > limit {
			sel = sel[len(sel)-limit:]
		}
		f := func(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) }
		rows := make([][]any, len(sel))
		for i, b := range sel {
			rows[i] = []any{b.Time.UnixMilli(), f(b.Open), f(b.High), f(b.Low), f(b.Close), f(b.Volume), b.Time.UnixMilli() + 3599999}
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(rows)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func statusServer(t *testing.T, status int, body string, hits *atomic.Int32) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func fastRetry() RetryPolicy {
	return RetryPolicy{MaxAttempts: 3, InitialBackoff: time.Millisecond, MaxBackoff: 2 * time.Millisecond}
}

func fixedSynthetic() *SyntheticSource {
	s := NewSyntheticSource(40000, 7)
	s.Now = func() time.Time { return fixedNow }
	return s
}
