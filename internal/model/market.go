package model

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// OHLCV represents a single candlestick bar.
type OHLCV struct {
	Time   time.Time `json:"timestamp"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume float64   `json:"volume"`
}

var (
	ErrEmptySeries  = errors.New("series is empty")
	ErrNotAscending = errors.New("timestamps are not strictly increasing")
	ErrMalformedBar = errors.New("bar has missing or non-positive fields")
	ErrBarInvariant = errors.New("bar violates low <= min(open, close) <= max(open, close) <= high")
)

// Check reports why a bar is unusable, or nil.
func (b OHLCV) Check() error {
	if b.Time.IsZero() {
		return ErrMalformedBar
	}
	for _, v := range [...]float64{b.Open, b.High, b.Low, b.Close} {
		if math.IsNaN(v) || math.IsInf(v, 0) || v <= 0 {
			return ErrMalformedBar
		}
	}
	if math.IsNaN(b.Volume) || math.IsInf(b.Volume, 0) || b.Volume < 0 {
		return ErrMalformedBar
	}
	if b.Low > math.Min(b.Open, b.Close) || b.High < math.Max(b.Open, b.Close) {
		return ErrBarInvariant
	}
	return nil
}

// Valid is shorthand for Check() == nil.
func (b OHLCV) Valid() bool { return b.Check() == nil }

// ValidateSeries checks the structural contract of a bar series: non-empty,
// strictly increasing timestamps, every bar well formed.
func ValidateSeries(bars []OHLCV) error {
	if len(bars) == 0 {
		return ErrEmptySeries
	}
	for i, b := range bars {
		if err := b.Check(); err != nil {
			return fmt.Errorf("bar %d (%s): %w", i, b.Time.Format(time.RFC3339), err)
		}
		if i > 0 && !b.Time.After(bars[i-1].Time) {
			return fmt.Errorf("bar %d (%s): %w", i, b.Time.Format(time.RFC3339), ErrNotAscending)
		}
	}
	return nil
}

// Closes extracts the close prices in order.
func Closes(bars []OHLCV) []float64 {
	closes := make([]float64, len(bars))
	for i, b := range bars {
		closes[i] = b.Close
	}
	return closes
}
