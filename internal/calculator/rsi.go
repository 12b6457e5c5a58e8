package calculator

// NeutralRSI is reported when there has been no price movement at all.
const NeutralRSI = 50.0

// RSISeries computes the Wilder-smoothed RSI for every bar.
//
// Average gain and loss are seeded with the first price change and then
// smoothed as avg = (avg*(period-1) + x) / period. Bar 0 has no change and
// reports NeutralRSI, as does any bar where both averages are zero. A zero
// average loss gives 100 and a zero average gain gives 0.
func RSISeries(prices []float64, period int) ([]float64, error) {
	if period <= 0 {
		return nil, errPeriod
	}
	out := make([]float64, len(prices))
	if len(prices) == 0 {
		return out, nil
	}
	out[0] = NeutralRSI

	p := float64(period)
	var avgGain, avgLoss float64
	for i := 1; i < len(prices); i++ {
		change := prices[i] - prices[i-1]
		gain, loss := 0.0, 0.0
		if change > 0 {
			gain = change
		} else {
			loss = -change // make positive
		}
		if i == 1 {
			avgGain, avgLoss = gain, loss
		} else {
			avgGain = (avgGain*(p-1) + gain) / p
			avgLoss = (avgLoss*(p-1) + loss) / p
		}
		out[i] = rsiFromAverages(avgGain, avgLoss)
	}
	return out, nil
}

func rsiFromAverages(avgGain, avgLoss float64) float64 {
	switch {
	case avgGain == 0 && avgLoss == 0:
		return NeutralRSI
	case avgLoss == 0:
		return 100.0
	case avgGain == 0:
		return 0.0
	}
	rs := avgGain / avgLoss
	return 100.0 - 100.0/(1.0+rs)
}
