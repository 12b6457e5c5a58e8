package calculator

import "fmt"

// MACD holds the three MACD columns, aligned with the input prices.
type MACD struct {
	Line      []float64
	Signal    []float64
	Histogram []float64
}

// MACDSeries computes EMA(fast) - EMA(slow), its EMA(signal) and the difference.
func MACDSeries(prices []float64, fast, slow, signal int) (*MACD, error) {
	if fast >= slow {
		return nil, fmt.Errorf("macd fast period %d must be shorter than slow period %d", fast, slow)
	}
	fastEMA, err := EMASeries(prices, fast)
	if err != nil {
		return nil, fmt.Errorf("fast ema: %w", err)
	}
	slowEMA, err := EMASeries(prices, slow)
	if err != nil {
		return nil, fmt.Errorf("slow ema: %w", err)
	}

	line := make([]float64, len(prices))
	for i := range prices {
		line[i] = fastEMA[i] - slowEMA[i]
	}
	sig, err := EMASeries(line, signal)
	if err != nil {
		return nil, fmt.Errorf("signal ema: %w", err)
	}
	hist := make([]float64, len(prices))
	for i := range line {
		hist[i] = line[i] - sig[i]
	}
	return &MACD{Line: line, Signal: sig, Histogram: hist}, nil
}
