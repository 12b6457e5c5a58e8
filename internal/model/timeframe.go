package model

import (
	"fmt"
	"strings"
	"time"
)

// Timeframe is the bucket width of one bar.
type Timeframe string

const (
	Timeframe1h Timeframe = "1h"
	Timeframe4h Timeframe = "4h"
	Timeframe1d Timeframe = "1d"
)

// Timeframes lists the supported bucket widths, finest first.
var Timeframes = []Timeframe{Timeframe1h, Timeframe4h, Timeframe1d}

// ParseTimeframe accepts "1h", "4h" and "1d" (case-insensitive).
func ParseTimeframe(s string) (Timeframe, error) {
	tf := Timeframe(strings.ToLower(strings.TrimSpace(s)))
	if tf.Duration() == 0 {
		return "", fmt.Errorf("unsupported timeframe %q (want one of 1h, 4h, 1d)", s)
	}
	return tf, nil
}

// Duration returns the bucket width, or 0 for an unknown timeframe.
func (tf Timeframe) Duration() time.Duration {
	switch tf {
	case Timeframe1h:
		return time.Hour
	case Timeframe4h:
		return 4 * time.Hour
	case Timeframe1d:
		return 24 * time.Hour
	}
	return 0
}

// BarsPerDay is 24, 6 or 1.
func (tf Timeframe) BarsPerDay() int {
	d := tf.Duration()
	if d == 0 {
		return 0
	}
	return int(24 * time.Hour / d)
}

// Bucket returns the start of the bucket containing t, in UTC.
func (tf Timeframe) Bucket(t time.Time) time.Time {
	return t.UTC().Truncate(tf.Duration())
}

func (tf Timeframe) String() string { return string(tf) }

// HorizonUnit says whether a horizon counts bars or days.
type HorizonUnit int

const (
	UnitBars HorizonUnit = iota
	UnitDays
)

// Horizon is the requested length of history.
type Horizon struct {
	Count int
	Unit  HorizonUnit
}

// Bars is a horizon of n bars regardless of timeframe.
func Bars(n int) Horizon { return Horizon{Count: n, Unit: UnitBars} }

// Days is a horizon of n calendar days, converted with the timeframe's width.
func Days(n int) Horizon { return Horizon{Count: n, Unit: UnitDays} }

// Validate rejects non-positive horizons.
func (h Horizon) Validate() error {
	if h.Count <= 0 {
		return fmt.Errorf("horizon must be positive, got %d", h.Count)
	}
	if h.Unit != UnitBars && h.Unit != UnitDays {
		return fmt.Errorf("unknown horizon unit %d", h.Unit)
	}
	return nil
}

// BarCount resolves the horizon into a number of bars for tf:
// 1 day = 24 hourly bars = 6 four-hour bars = 1 daily bar.
func (h Horizon) BarCount(tf Timeframe) int {
	if h.Unit == UnitDays {
		return h.Count * tf.BarsPerDay()
	}
	return h.Count
}

func (h Horizon) String() string {
	if h.Unit == UnitDays {
		return fmt.Sprintf("%dd", h.Count)
	}
	return fmt.Sprintf("%d bars", h.Count)
}
