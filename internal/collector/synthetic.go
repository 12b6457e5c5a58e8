package collector

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"
	"time"

	"TrendSentinel/internal/model"
)

// SyntheticSource generates a plausible bar series without any network access.
// It backs offline mode and is the provider's fallback.
//
// Each series is a sinusoidal macro trend plus linear drift, bounded noise and
// a repeating intraday cycle. Volume follows a repeating positive pattern.
type SyntheticSource struct {
	BasePrice float64
	// Seed fixes the noise; zero draws a fresh seed per call.
	Seed uint64
	Now  func() time.Time
}

// NewSyntheticSource creates a generator around basePrice.
func NewSyntheticSource(basePrice float64, seed uint64) *SyntheticSource {
	if basePrice <= 0 {
		basePrice = 40000
	}
	return &SyntheticSource{BasePrice: basePrice, Seed: seed, Now: time.Now}
}

func (s *SyntheticSource) Name() string { return "synthetic" }

func (s *SyntheticSource) Fetch(_ context.Context, tf model.Timeframe, h model.Horizon) ([]model.OHLCV, error) {
	if tf.Duration() == 0 {
		return nil, fmt.Errorf("synthetic: unsupported timeframe %q", tf)
	}
	if err := h.Validate(); err != nil {
		return nil, fmt.Errorf("synthetic: %w", err)
	}
	return s.Generate(tf, h.BarCount(tf)), nil
}

// Generate returns exactly count bars ending at the last completed bucket.
func (s *SyntheticSource) Generate(tf model.Timeframe, count int) []model.OHLCV {
	if count <= 0 {
		return nil
	}
	now := time.Now
	if s.Now != nil {
		now = s.Now
	}
	seed := s.Seed
	if seed == 0 {
		seed = uint64(now().UnixNano())
	}
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))

	step := tf.Duration()
	end := tf.Bucket(now()).Add(-step)
	start := end.Add(-time.Duration(count-1) * step)
	base := s.BasePrice
	if base <= 0 {
		base = 40000
	}

	// Bars per day drives the intraday cycle; daily bars cycle weekly instead.
	cycle := float64(tf.BarsPerDay())
	if cycle < 2 {
		cycle = 7
	}
	trendPeriod := math.Max(float64(count), 2*cycle)

	bars := make([]model.OHLCV, count)
	prevClose := 0.0
	for i := 0; i < count; i++ {
		x := float64(i)
		trend := 0.08 * math.Sin(2*math.Pi*x/trendPeriod)
		drift := 0.04 * x / float64(count)
		intraday := 0.004 * math.Sin(2*math.Pi*x/cycle)
		noise := (rng.Float64()*2 - 1) * 0.006
		closePrice := base * (1 + trend + drift + intraday + noise)

		open := prevClose
		if i == 0 {
			open = closePrice * (1 - 0.001)
		}
		wickUp := rng.Float64() * 0.004
		wickDown := rng.Float64() * 0.004
		bars[i] = model.OHLCV{
			Time:   start.Add(time.Duration(i) * step),
			Open:   open,
			High:   math.Max(open, closePrice) * (1 + wickUp),
			Low:    math.Min(open, closePrice) * (1 - wickDown),
			Close:  closePrice,
			Volume: 1000 * (1.5 + math.Sin(2*math.Pi*x/cycle)) * (1 + 0.2*rng.Float64()),
		}
		prevClose = closePrice
	}
	return bars
}
