package collector

import (
	"math"
	"sort"
	"time"

	"TrendSentinel/internal/model"
)

// DefaultVolatility inflates highs and deflates lows of bars synthesised
// from close-only data.
const DefaultVolatility = 0.001

// PricePoint is a single upstream observation carrying only a price.
type PricePoint struct {
	Time   time.Time
	Price  float64
	Volume float64
}

// Resample aggregates ascending bars (or ticks expressed as flat bars) into
// tf buckets: first open, max high, min low, last close, summed volume.
// Each output bar is stamped with its bucket start.
func Resample(bars []model.OHLCV, tf model.Timeframe) []model.OHLCV {
	if len(bars) == 0 {
		return nil
	}
	var out []model.OHLCV
	var cur model.OHLCV
	started := false

	for _, b := range bars {
		bucket := tf.Bucket(b.Time)
		if !started || !bucket.Equal(cur.Time) {
			if started {
				out = append(out, cur)
			}
			cur = model.OHLCV{Time: bucket, Open: b.Open, High: b.High, Low: b.Low, Close: b.Close, Volume: b.Volume}
			started = true
			continue
		}
		if b.High > cur.High {
			cur.High = b.High
		}
		if b.Low < cur.Low {
			cur.Low = b.Low
		}
		cur.Close = b.Close
		cur.Volume += b.Volume
	}
	return append(out, cur)
}

// SynthesizeFromCloses builds bars from one close per bucket:
// open[t] = close[t-1] (the first bar opens at its own close), and
// high/low are the body extremes widened by volatility, so
// low <= min(open, close) <= max(open, close) <= high always holds.
func SynthesizeFromCloses(points []PricePoint, volatility float64) []model.OHLCV {
	volatility = clampVolatility(volatility)
	out := make([]model.OHLCV, len(points))
	for i, p := range points {
		open := p.Price
		if i > 0 {
			open = points[i-1].Price
		}
		out[i] = model.OHLCV{
			Time:   p.Time,
			Open:   open,
			High:   math.Max(open, p.Price) * (1 + volatility),
			Low:    math.Min(open, p.Price) * (1 - volatility),
			Close:  p.Price,
			Volume: p.Volume,
		}
	}
	return out
}

// NormalizeCloses turns close-only observations into tf bars. Spacing is
// judged by the median gap, so a stray extra point (such as the live price
// CoinGecko appends inside the current hour) does not change the path. At
// tf spacing or coarser the OHLC is synthesised from consecutive closes;
// finer data is resampled and then chained the same way.
func NormalizeCloses(points []PricePoint, tf model.Timeframe, volatility float64) []model.OHLCV {
	points = cleanPoints(points)
	if len(points) == 0 {
		return nil
	}

	if spacing := medianSpacing(points); spacing == 0 || spacing >= tf.Duration() {
		// Later points in a bucket replace earlier ones: the last price is the close.
		bucketed := make([]PricePoint, 0, len(points))
		for _, p := range points {
			p.Time = tf.Bucket(p.Time)
			if n := len(bucketed); n > 0 && bucketed[n-1].Time.Equal(p.Time) {
				bucketed[n-1] = p
				continue
			}
			bucketed = append(bucketed, p)
		}
		return SynthesizeFromCloses(bucketed, volatility)
	}

	ticks := make([]model.OHLCV, len(points))
	for i, p := range points {
		ticks[i] = model.OHLCV{Time: p.Time, Open: p.Price, High: p.Price, Low: p.Price, Close: p.Price, Volume: p.Volume}
	}
	return chainOpens(Resample(ticks, tf), volatility)
}

// chainOpens opens every bar after the first at the previous close and
// widens high/low by volatility, matching SynthesizeFromCloses.
func chainOpens(bars []model.OHLCV, volatility float64) []model.OHLCV {
	volatility = clampVolatility(volatility)
	for i := range bars {
		if i > 0 {
			bars[i].Open = bars[i-1].Close
		}
		bars[i].High = math.Max(bars[i].High, bars[i].Open) * (1 + volatility)
		bars[i].Low = math.Min(bars[i].Low, bars[i].Open) * (1 - volatility)
	}
	return bars
}

func clampVolatility(v float64) float64 {
	return math.Max(0, math.Min(v, 0.5))
}

func cleanPoints(points []PricePoint) []PricePoint {
	out := make([]PricePoint, 0, len(points))
	for _, p := range points {
		if p.Time.IsZero() || math.IsNaN(p.Price) || math.IsInf(p.Price, 0) || p.Price <= 0 {
			continue
		}
		if math.IsNaN(p.Volume) || math.IsInf(p.Volume, 0) || p.Volume < 0 {
			p.Volume = 0
		}
		out = append(out, p)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Time.Before(out[j].Time) })
	return out
}

// Sanitize sorts bars, keeps the last bar for a duplicated timestamp and
// drops bars that are malformed or violate the OHLC invariant. It returns the
// surviving bars and the number dropped.
func Sanitize(bars []model.OHLCV) ([]model.OHLCV, int) {
	sorted := append([]model.OHLCV(nil), bars...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Time.Before(sorted[j].Time) })

	out := make([]model.OHLCV, 0, len(sorted))
	dropped := 0
	for _, b := range sorted {
		if !b.Valid() {
			dropped++
			continue
		}
		if n := len(out); n > 0 && out[n-1].Time.Equal(b.Time) {
			out[n-1] = b
			dropped++
			continue
		}
		out = append(out, b)
	}
	return out, dropped
}

// tail keeps the most recent n bars.
func tail(bars []model.OHLCV, n int) []model.OHLCV {
	if n > 0 && len(bars) > n {
		return bars[len(bars)-n:]
	}
	return bars
}
