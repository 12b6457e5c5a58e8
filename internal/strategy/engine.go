package strategy

import (
	"fmt"

	"TrendSentinel/internal/calculator"
	"TrendSentinel/internal/model"
)

// Params are the indicator windows and the RSI midline used for classification.
type Params struct {
	TrendPeriod  int     `yaml:"trend_period"`
	MACDFast     int     `yaml:"macd_fast"`
	MACDSlow     int     `yaml:"macd_slow"`
	MACDSignal   int     `yaml:"macd_signal"`
	RSIPeriod    int     `yaml:"rsi_period"`
	RSIThreshold float64 `yaml:"rsi_threshold"`
}

// DefaultParams: EMA 144 trend filter, MACD 12/26/9, RSI 14 around 50.
var DefaultParams = Params{
	TrendPeriod:  144,
	MACDFast:     12,
	MACDSlow:     26,
	MACDSignal:   9,
	RSIPeriod:    14,
	RSIThreshold: 50,
}

// Validate checks that every window is usable.
func (p Params) Validate() error {
	if p.TrendPeriod <= 0 || p.MACDFast <= 0 || p.MACDSlow <= 0 || p.MACDSignal <= 0 || p.RSIPeriod <= 0 {
		return fmt.Errorf("indicator periods must be positive: %+v", p)
	}
	if p.MACDFast >= p.MACDSlow {
		return fmt.Errorf("macd_fast (%d) must be shorter than macd_slow (%d)", p.MACDFast, p.MACDSlow)
	}
	if p.RSIThreshold <= 0 || p.RSIThreshold >= 100 {
		return fmt.Errorf("rsi_threshold must be within (0, 100), got %v", p.RSIThreshold)
	}
	return nil
}

// WarmupBars is the longest indicator window.
func (p Params) WarmupBars() int {
	return max(p.TrendPeriod, p.MACDSlow+p.MACDSignal, p.RSIPeriod+1)
}

// Engine classifies bar series. It holds only its parameters and is safe for
// concurrent use.
type Engine struct {
	params Params
}

// NewEngine creates an engine; an invalid Params is a programming error.
func NewEngine(p Params) (*Engine, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &Engine{params: p}, nil
}

// Params returns the engine's configuration.
func (e *Engine) Params() Params { return e.params }

// Evaluate computes indicators and signals for every bar.
//
// The input must be a structurally valid series; anything else means the
// provider contract was broken and is returned as an error rather than
// repaired. The input slice is never modified.
func (e *Engine) Evaluate(bars []model.OHLCV) (*model.SignalTable, error) {
	if err := model.ValidateSeries(bars); err != nil {
		return nil, fmt.Errorf("invalid input series: %w", err)
	}

	closes := model.Closes(bars)
	trend, err := calculator.EMASeries(closes, e.params.TrendPeriod)
	if err != nil {
		return nil, fmt.Errorf("ema trend: %w", err)
	}
	macd, err := calculator.MACDSeries(closes, e.params.MACDFast, e.params.MACDSlow, e.params.MACDSignal)
	if err != nil {
		return nil, fmt.Errorf("macd: %w", err)
	}
	rsi, err := calculator.RSISeries(closes, e.params.RSIPeriod)
	if err != nil {
		return nil, fmt.Errorf("rsi: %w", err)
	}

	rows := make([]model.SignalRow, len(bars))
	prev := model.SignalHold
	for i, b := range bars {
		ind := model.Indicators{
			EMATrend:      trend[i],
			MACDLine:      macd.Line[i],
			MACDSignal:    macd.Signal[i],
			MACDHistogram: macd.Histogram[i],
			RSI:           rsi[i],
		}
		sig := Classify(b.Close, ind, e.params.RSIThreshold)
		entry := 0
		if i > 0 {
			entry = int(sig - prev)
		}
		rows[i] = model.SignalRow{OHLCV: b, Indicators: ind, Signal: sig, Entry: entry}
		prev = sig
	}

	return &model.SignalTable{Rows: rows, WarmupBars: e.params.WarmupBars()}, nil
}

// Evaluate runs the default engine.
func Evaluate(bars []model.OHLCV) (*model.SignalTable, error) {
	e := &Engine{params: DefaultParams}
	return e.Evaluate(bars)
}

// Summarize builds the headline view with up to n recent transitions.
func Summarize(t *model.SignalTable, n int) model.Summary {
	last := t.Last()
	return model.Summary{
		Time:        last.Time,
		LastPrice:   last.Close,
		EMATrend:    last.EMATrend,
		RSI:         last.RSI,
		Signal:      last.Signal,
		SignalLabel: last.Signal.String(),
		Transitions: t.Transitions(n),
	}
}
