package collector

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"TrendSentinel/internal/model"
)

func TestResample_AggregatesBuckets(t *testing.T) {
	start := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	hourly := []model.OHLCV{
		{Time: start, Open: 10, High: 12, Low: 9, Close: 11, Volume: 1},
		{Time: start.Add(1 * time.Hour), Open: 11, High: 15, Low: 10, Close: 14, Volume: 2},
		{Time: start.Add(2 * time.Hour), Open: 14, High: 14, Low: 7, Close: 8, Volume: 3},
		{Time: start.Add(3 * time.Hour), Open: 8, High: 9, Low: 8, Close: 9, Volume: 4},
		{Time: start.Add(4 * time.Hour), Open: 9, High: 10, Low: 8, Close: 10, Volume: 5},
	}

	got := Resample(hourly, model.Timeframe4h)

	require.Len(t, got, 2)
	assert.Equal(t, model.OHLCV{Time: start, Open: 10, High: 15, Low: 7, Close: 9, Volume: 10}, got[0])
	assert.Equal(t, model.OHLCV{Time: start.Add(4 * time.Hour), Open: 9, High: 10, Low: 8, Close: 10, Volume: 5}, got[1])
	assert.Nil(t, Resample(nil, model.Timeframe1d))
}

func TestSynthesizeFromCloses(t *testing.T) {
	start := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	points := []PricePoint{
		{Time: start, Price: 100, Volume: 1},
		{Time: start.Add(time.Hour), Price: 102, Volume: 1},
		{Time: start.Add(2 * time.Hour), Price: 101, Volume: 1},
	}

	bars := SynthesizeFromCloses(points, 0.01)

	require.Len(t, bars, 3)
	assert.Equal(t, 100.0, bars[0].Open)
	assert.Equal(t, 100.0, bars[1].Open)
	assert.Equal(t, 102.0, bars[2].Open)
	assert.InDelta(t, 102*1.01, bars[1].High, 1e-9)
	assert.InDelta(t, 100*0.99, bars[1].Low, 1e-9)
	assert.InDelta(t, 101*0.99, bars[2].Low, 1e-9)
	for _, b := range bars {
		assert.True(t, b.Valid())
	}
}

func TestSynthesizeFromCloses_ClampsVolatility(t *testing.T) {
	bars := SynthesizeFromCloses([]PricePoint{{Time: time.Unix(0, 0), Price: 10}}, 5)
	require.Len(t, bars, 1)
	assert.Equal(t, 5.0, bars[0].Low)
	assert.True(t, bars[0].Valid())
}

func TestNormalizeCloses_DropsBadPoints(t *testing.T) {
	start := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	points := []PricePoint{
		{Time: start.Add(2 * time.Hour), Price: 103},
		{Time: start, Price: 100, Volume: math.NaN()},
		{Time: start.Add(time.Hour), Price: math.Inf(1)},
		{Time: start.Add(3 * time.Hour), Price: -1},
	}

	bars := NormalizeCloses(points, model.Timeframe1h, DefaultVolatility)

	require.Len(t, bars, 2)
	assert.Equal(t, start, bars[0].Time)
	assert.Equal(t, 0.0, bars[0].Volume)
	assert.Equal(t, 100.0, bars[1].Open)
	assert.Equal(t, 103.0, bars[1].Close)
}

func TestNormalizeCloses_TrailingInBucketPoint(t *testing.T) {
	start := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	var points []PricePoint
	for i, price := range []float64{100, 103, 101, 104, 102, 105} {
		points = append(points, PricePoint{Time: start.Add(time.Duration(i) * time.Hour), Price: price})
	}
	points = append(points, PricePoint{Time: start.Add(5*time.Hour + 37*time.Minute), Price: 106})

	bars := NormalizeCloses(points, model.Timeframe1h, DefaultVolatility)

	require.Len(t, bars, 6)
	requireWellFormed(t, bars, time.Hour)
	second := bars[1]
	assert.Equal(t, 100.0, second.Open)
	assert.Equal(t, 103.0, second.Close)
	assert.InDelta(t, 103*(1+DefaultVolatility), second.High, 1e-9)
	assert.InDelta(t, 100*(1-DefaultVolatility), second.Low, 1e-9)

	last := bars[5]
	assert.Equal(t, start.Add(5*time.Hour), last.Time)
	assert.Equal(t, 102.0, last.Open)
	assert.Equal(t, 106.0, last.Close)
	for _, b := range bars {
		assert.Greater(t, b.High, b.Low, "bar at %s is flat", b.Time)
	}
}

func TestNormalizeCloses_FinerDataChainsOpens(t *testing.T) {
	start := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	var points []PricePoint
	for i, price := range []float64{100, 101, 99, 100.5, 102, 103, 101, 102.5} {
		points = append(points, PricePoint{Time: start.Add(time.Duration(i) * 15 * time.Minute), Price: price, Volume: 1})
	}

	bars := NormalizeCloses(points, model.Timeframe1h, 0.01)

	require.Len(t, bars, 2)
	assert.Equal(t, 100.0, bars[0].Open)
	assert.Equal(t, 100.5, bars[0].Close)
	assert.InDelta(t, 101*1.01, bars[0].High, 1e-9)
	assert.InDelta(t, 99*0.99, bars[0].Low, 1e-9)
	assert.Equal(t, 4.0, bars[0].Volume)
	assert.Equal(t, 100.5, bars[1].Open)
	assert.Equal(t, 102.5, bars[1].Close)
	assert.InDelta(t, 103*1.01, bars[1].High, 1e-9)
	assert.InDelta(t, 100.5*0.99, bars[1].Low, 1e-9)
	assert.Equal(t, 4.0, bars[1].Volume)
}

func TestSanitize(t *testing.T) {
	start := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	good := func(offset int, c float64) model.OHLCV {
		return model.OHLCV{Time: start.Add(time.Duration(offset) * time.Hour), Open: c, High: c + 1, Low: c - 1, Close: c, Volume: 1}
	}
	input := []model.OHLCV{
		good(2, 12),
		good(0, 10),
		good(1, 11),
		good(1, 21),
		{Time: start.Add(3 * time.Hour), Open: math.NaN(), High: 1, Low: 1, Close: 1},
		{Time: start.Add(4 * time.Hour), Open: 10, High: 9, Low: 8, Close: 10},
		{Time: start.Add(5 * time.Hour), Open: 0, High: 1, Low: 0, Close: 1},
		{Time: start.Add(6 * time.Hour), Open: 5, High: 6, Low: 4, Close: 5, Volume: -1},
	}

	out, dropped := Sanitize(input)

	assert.Equal(t, 5, dropped)
	assert.Equal(t, []float64{10, 21, 12}, model.Closes(out))
	assert.NoError(t, model.ValidateSeries(out))
	assert.Equal(t, 12.0, input[0].Close, "input must not be reordered")
}

func TestSyntheticSource_Generate(t *testing.T) {
	for _, tf := range model.Timeframes {
		t.Run(tf.String(), func(t *testing.T) {
			bars := fixedSynthetic().Generate(tf, 500)
			require.Len(t, bars, 500)
			requireWellFormed(t, bars, tf.Duration())
			assert.Equal(t, tf.Bucket(fixedNow).Add(-tf.Duration()), bars[499].Time)
			for i := 1; i < len(bars); i++ {
				assert.Equal(t, bars[i-1].Close, bars[i].Open)
			}
			for _, b := range bars {
				assert.Greater(t, b.Volume, 0.0)
			}
		})
	}
}

func TestSyntheticSource_SeededIsDeterministic(t *testing.T) {
	a := fixedSynthetic().Generate(model.Timeframe1h, 300)
	b := fixedSynthetic().Generate(model.Timeframe1h, 300)
	assert.Equal(t, a, b)

	other := NewSyntheticSource(40000, 8)
	other.Now = func() time.Time { return fixedNow }
	assert.NotEqual(t, a, other.Generate(model.Timeframe1h, 300))
}

func TestSyntheticSource_StaysNearBasePrice(t *testing.T) {
	for _, b := range fixedSynthetic().Generate(model.Timeframe1d, 365) {
		assert.InEpsilon(t, 40000, b.Close, 0.2)
	}
}
