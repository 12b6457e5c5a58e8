package collector

import (
	"context"

	"TrendSentinel/internal/model"
)

// Source fetches or produces a bar series for a timeframe and horizon.
//
// Sources may fail; failures should be *FetchError so the provider can decide
// between retrying and falling back. A successful result is ascending by time,
// has no duplicate timestamps and holds at most the resolved bar count.
type Source interface {
	Fetch(ctx context.Context, tf model.Timeframe, h model.Horizon) ([]model.OHLCV, error)
	Name() string
}
