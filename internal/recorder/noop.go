package recorder

import (
	"context"

	"TrendSentinel/internal/model"
)

// NoopRecorder is a no-op implementation used when SQLite is not configured.
type NoopRecorder struct{}

func NewNoopRecorder() *NoopRecorder { return &NoopRecorder{} }

func (n *NoopRecorder) RecordBars(context.Context, string, model.Timeframe, []model.OHLCV) error {
	return nil
}

func (n *NoopRecorder) LoadBars(context.Context, string, model.Timeframe, int) ([]model.OHLCV, error) {
	return nil, nil
}

func (n *NoopRecorder) Close() error { return nil }
