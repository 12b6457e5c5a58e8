package recorder

import (
	"context"

	"TrendSentinel/internal/model"
)

// Recorder archives fetched market data so it can be replayed later.
// Only bars are archived; signals are always recomputed.
type Recorder interface {
	// RecordBars upserts bars keyed by source, timeframe and timestamp.
	RecordBars(ctx context.Context, source string, tf model.Timeframe, bars []model.OHLCV) error
	// LoadBars returns up to limit of the most recent archived bars, ascending.
	LoadBars(ctx context.Context, source string, tf model.Timeframe, limit int) ([]model.OHLCV, error)
	Close() error
}
