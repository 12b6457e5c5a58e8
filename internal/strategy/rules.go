package strategy

import (
	"math"

	"TrendSentinel/internal/model"
)

// Classify maps one bar's close and indicator snapshot to a signal.
//
//	BUY  iff close > ema_trend and macd_line > macd_signal_line and rsi > threshold
//	SELL iff close < ema_trend and macd_line < macd_signal_line and rsi < threshold
//	HOLD otherwise
//
// The two conjunctions need opposite inequalities on close vs ema_trend, so
// they cannot both hold. Any undefined (NaN) input is HOLD. There is no memory
// between bars and no hysteresis: a noisy series may flip on consecutive bars.
func Classify(close float64, ind model.Indicators, rsiThreshold float64) model.Signal {
	for _, v := range [...]float64{close, ind.EMATrend, ind.MACDLine, ind.MACDSignal, ind.RSI} {
		if math.IsNaN(v) {
			return model.SignalHold
		}
	}

	switch {
	case close > ind.EMATrend && ind.MACDLine > ind.MACDSignal && ind.RSI > rsiThreshold:
		return model.SignalBuy
	case close < ind.EMATrend && ind.MACDLine < ind.MACDSignal && ind.RSI < rsiThreshold:
		return model.SignalSell
	default:
		return model.SignalHold
	}
}
