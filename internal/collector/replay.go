package collector

import (
	"context"
	"errors"
	"fmt"
	"time"

	"TrendSentinel/internal/model"
	"TrendSentinel/internal/recorder"
)

// ReplaySource serves bars previously archived by a live source. When the
// archive has nothing at the requested timeframe it aggregates a finer one.
type ReplaySource struct {
	Recorder recorder.Recorder
	// Origin is the archived source name to replay, e.g. "binance".
	Origin string
}

// NewReplaySource creates a replay over rec for bars recorded by origin.
func NewReplaySource(rec recorder.Recorder, origin string) *ReplaySource {
	return &ReplaySource{Recorder: rec, Origin: origin}
}

func (r *ReplaySource) Name() string { return "replay" }

func (r *ReplaySource) Fetch(ctx context.Context, tf model.Timeframe, h model.Horizon) ([]model.OHLCV, error) {
	if err := h.Validate(); err != nil {
		return nil, parseErr(r.Name(), 0, err)
	}
	want := h.BarCount(tf)

	candidates := []model.Timeframe{tf}
	for _, finer := range model.Timeframes {
		if finer.Duration() < tf.Duration() && tf.Duration()%finer.Duration() == 0 {
			candidates = append(candidates, finer)
		}
	}

	for _, stored := range candidates {
		ratio := int(tf.Duration() / stored.Duration())
		// Two extra buckets cover a partial bucket at either end.
		bars, err := r.Recorder.LoadBars(ctx, r.Origin, stored, (want+2)*ratio)
		if err != nil {
			return nil, transportErr(r.Name(), 0, fmt.Errorf("load %s bars: %w", stored, err))
		}
		if stored != tf {
			bars = completeBuckets(bars, tf, ratio)
		}
		if len(bars) == 0 {
			continue
		}
		clean, _ := Sanitize(bars)
		if len(clean) > 0 {
			return tail(clean, want), nil
		}
	}
	return nil, validationErr(r.Name(), errors.New("no archived bars for "+r.Origin+" at or below "+tf.String()))
}

// completeBuckets resamples finer bars into tf and keeps only buckets backed
// by all ratio source bars.
func completeBuckets(bars []model.OHLCV, tf model.Timeframe, ratio int) []model.OHLCV {
	count := make(map[time.Time]int, len(bars)/ratio+1)
	for _, b := range bars {
		count[tf.Bucket(b.Time)]++
	}
	resampled := Resample(bars, tf)
	out := resampled[:0]
	for _, b := range resampled {
		if count[b.Time] == ratio {
			out = append(out, b)
		}
	}
	return out
}
