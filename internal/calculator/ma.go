package calculator

import "errors"

var errPeriod = errors.New("period must be positive")

// EMASeries computes the exponential moving average of prices over the given period.
//
// The recursion is seeded at the first price (ema[0] = prices[0]) and then
// ema[t] = prices[t]*k + ema[t-1]*(1-k) with k = 2/(period+1), so every bar has
// a value. Values before index period-1 reflect partial history.
func EMASeries(prices []float64, period int) ([]float64, error) {
	if period <= 0 {
		return nil, errPeriod
	}
	out := make([]float64, len(prices))
	if len(prices) == 0 {
		return out, nil
	}
	k := 2.0 / float64(period+1)
	out[0] = prices[0]
	for i := 1; i < len(prices); i++ {
		// Same recursion written as prev + k*(price-prev); exact on flat input.
		out[i] = out[i-1] + k*(prices[i]-out[i-1])
	}
	return out, nil
}
