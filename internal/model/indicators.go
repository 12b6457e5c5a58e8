package model

// Indicators holds the indicator values attached to one bar.
type Indicators struct {
	EMATrend      float64 `json:"ema_trend"`
	MACDLine      float64 `json:"macd_line"`
	MACDSignal    float64 `json:"macd_signal_line"`
	MACDHistogram float64 `json:"macd_histogram"`
	RSI           float64 `json:"rsi"` // 0 ~ 100
}
