package collector

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"time"

	"TrendSentinel/internal/model"
)

// CoinGeckoSource implements Source using the CoinGecko market_chart endpoint,
// which returns close prices only. OHLC is rebuilt by NormalizeCloses.
type CoinGeckoSource struct {
	*upstream
	CoinID     string
	VsCurrency string
	Volatility float64
}

// NewCoinGeckoSource creates a close-only fetcher; an empty base URL means api.coingecko.com.
func NewCoinGeckoSource(coinID, vsCurrency string, opts HTTPOptions) *CoinGeckoSource {
	if opts.BaseURL == "" {
		opts.BaseURL = "https://api.coingecko.com"
	}
	if coinID == "" {
		coinID = "bitcoin"
	}
	if vsCurrency == "" {
		vsCurrency = "usd"
	}
	return &CoinGeckoSource{
		upstream:   newUpstream("coingecko", "x-cg-demo-api-key", opts),
		CoinID:     coinID,
		VsCurrency: vsCurrency,
		Volatility: DefaultVolatility,
	}
}

func (f *CoinGeckoSource) Name() string { return "coingecko" }

// marketChart is the response structure from the market_chart endpoint.
type marketChart struct {
	Prices       [][2]float64 `json:"prices"`
	TotalVolumes [][2]float64 `json:"total_volumes"`
}

func (f *CoinGeckoSource) Fetch(ctx context.Context, tf model.Timeframe, h model.Horizon) ([]model.OHLCV, error) {
	if err := h.Validate(); err != nil {
		return nil, parseErr(f.name, 0, err)
	}
	if err := f.checkCooldown(); err != nil {
		return nil, err
	}
	want := h.BarCount(tf)
	span := time.Duration(want) * tf.Duration()
	days := int(span/(24*time.Hour)) + 1

	q := url.Values{}
	q.Set("vs_currency", f.VsCurrency)
	q.Set("days", strconv.Itoa(days))
	body, err := f.get(ctx, fmt.Sprintf("/api/v3/coins/%s/market_chart", url.PathEscape(f.CoinID)), q)
	if err != nil {
		return nil, err
	}

	var chart marketChart
	if err := json.Unmarshal(body, &chart); err != nil {
		return nil, parseErr(f.name, 200, fmt.Errorf("decode market_chart: %w", err))
	}
	if len(chart.Prices) == 0 {
		return nil, parseErr(f.name, 200, errors.New("no prices returned"))
	}

	volumes := make(map[int64]float64, len(chart.TotalVolumes))
	for _, v := range chart.TotalVolumes {
		volumes[int64(v[0])] = v[1]
	}
	points := make([]PricePoint, 0, len(chart.Prices))
	for _, p := range chart.Prices {
		ms := int64(p[0])
		points = append(points, PricePoint{Time: time.UnixMilli(ms).UTC(), Price: p[1], Volume: volumes[ms]})
	}
	if spacing := medianSpacing(points); spacing > tf.Duration()*3/2 {
		return nil, validationErr(f.name, fmt.Errorf("upstream granularity %s is coarser than timeframe %s", spacing, tf))
	}

	clean, _ := Sanitize(NormalizeCloses(points, tf, f.Volatility))
	if len(clean) == 0 {
		return nil, validationErr(f.name, errors.New("no valid bars after normalization"))
	}
	f.markSuccess()
	return tail(clean, want), nil
}

func medianSpacing(points []PricePoint) time.Duration {
	if len(points) < 2 {
		return 0
	}
	gaps := make([]time.Duration, 0, len(points)-1)
	for i := 1; i < len(points); i++ {
		if d := points[i].Time.Sub(points[i-1].Time); d > 0 {
			gaps = append(gaps, d)
		}
	}
	if len(gaps) == 0 {
		return 0
	}
	sort.Slice(gaps, func(i, j int) bool { return gaps[i] < gaps[j] })
	return gaps[len(gaps)/2]
}
