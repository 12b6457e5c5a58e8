package model

import "time"

// Signal is the per-bar classification.
type Signal int

const (
	SignalSell Signal = -1
	SignalHold Signal = 0
	SignalBuy  Signal = 1
)

func (s Signal) String() string {
	switch s {
	case SignalBuy:
		return "BUY"
	case SignalSell:
		return "SELL"
	default:
		return "HOLD"
	}
}

// SignalRow is one bar of the augmented table handed to the presentation layer.
type SignalRow struct {
	OHLCV
	Indicators
	Signal Signal `json:"signal"`
	Entry  int    `json:"entry"`
}

// SignalTable is the engine output: one row per input bar, ascending by time.
type SignalTable struct {
	Rows []SignalRow `json:"rows"`
	// WarmupBars is the longest indicator window. Rows before this index are
	// computed from partial history and are low-confidence.
	WarmupBars int `json:"warmup_bars"`
}

// Last returns the most recent row. The table is never empty when produced by the engine.
func (t *SignalTable) Last() SignalRow {
	return t.Rows[len(t.Rows)-1]
}

// Transitions returns the last n rows where the signal changed (entry != 0), newest first.
func (t *SignalTable) Transitions(n int) []SignalRow {
	var out []SignalRow
	for i := len(t.Rows) - 1; i >= 0 && len(out) < n; i-- {
		if t.Rows[i].Entry != 0 {
			out = append(out, t.Rows[i])
		}
	}
	return out
}

// Summary is the headline view of a table.
type Summary struct {
	Time        time.Time   `json:"timestamp"`
	LastPrice   float64     `json:"last_price"`
	EMATrend    float64     `json:"ema_trend"`
	RSI         float64     `json:"rsi"`
	Signal      Signal      `json:"signal"`
	SignalLabel string      `json:"signal_label"`
	Transitions []SignalRow `json:"recent_transitions"`
}
