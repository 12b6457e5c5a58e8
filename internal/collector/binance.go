package collector

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"TrendSentinel/internal/model"
)

const binanceMaxLimit = 1000

// BinanceSource implements Source using the public Binance klines endpoint.
type BinanceSource struct {
	*upstream
	Symbol string
}

// NewBinanceSource creates a klines fetcher; an empty base URL means api.binance.com.
func NewBinanceSource(symbol string, opts HTTPOptions) *BinanceSource {
	if opts.BaseURL == "" {
		opts.BaseURL = "https://api.binance.com"
	}
	if symbol == "" {
		symbol = "BTCUSDT"
	}
	return &BinanceSource{upstream: newUpstream("binance", "X-MBX-APIKEY", opts), Symbol: symbol}
}

func (f *BinanceSource) Name() string { return "binance" }

// Fetch pages backwards through klines until the requested bar count is
// covered or the exchange has no older data.
func (f *BinanceSource) Fetch(ctx context.Context, tf model.Timeframe, h model.Horizon) ([]model.OHLCV, error) {
	if err := h.Validate(); err != nil {
		return nil, parseErr(f.name, 0, err)
	}
	if err := f.checkCooldown(); err != nil {
		return nil, err
	}
	want := h.BarCount(tf)

	var bars []model.OHLCV
	var endTime int64
	for len(bars) < want {
		limit := min(want-len(bars), binanceMaxLimit)
		q := url.Values{}
		q.Set("symbol", f.Symbol)
		q.Set("interval", string(tf))
		q.Set("limit", strconv.Itoa(limit))
		if endTime > 0 {
			q.Set("endTime", strconv.FormatInt(endTime, 10))
		}

		body, err := f.get(ctx, "/api/v3/klines", q)
		if err != nil {
			return nil, err
		}
		page, err := decodeKlines(body)
		if err != nil {
			return nil, parseErr(f.name, 200, err)
		}
		if len(page) == 0 {
			break
		}
		bars = append(page, bars...)
		endTime = page[0].Time.UnixMilli() - 1
		if len(page) < limit {
			break
		}
	}

	clean, _ := Sanitize(bars)
	if len(clean) == 0 {
		return nil, validationErr(f.name, errors.New("no valid klines returned"))
	}
	f.markSuccess()
	return tail(clean, want), nil
}

// decodeKlines parses [[openTime, "open", "high", "low", "close", "volume", ...], ...].
// Rows with unparseable fields become zero bars so Sanitize drops them.
func decodeKlines(body []byte) ([]model.OHLCV, error) {
	var rows [][]any
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, fmt.Errorf("decode klines: %w", err)
	}
	bars := make([]model.OHLCV, 0, len(rows))
	for _, row := range rows {
		if len(row) < 6 {
			continue
		}
		openTime, err := toFloat(row[0])
		if err != nil {
			continue
		}
		var vals [5]float64
		ok := true
		for i := range vals {
			if vals[i], err = toFloat(row[i+1]); err != nil {
				ok = false
				break
			}
		}
		if !ok {
			bars = append(bars, model.OHLCV{})
			continue
		}
		bars = append(bars, model.OHLCV{
			Time:   time.UnixMilli(int64(openTime)).UTC(),
			Open:   vals[0],
			High:   vals[1],
			Low:    vals[2],
			Close:  vals[3],
			Volume: vals[4],
		})
	}
	return bars, nil
}

func toFloat(v any) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case string:
		return strconv.ParseFloat(n, 64)
	case json.Number:
		return n.Float64()
	case nil:
		return 0, errors.New("null value")
	default:
		return 0, fmt.Errorf("unexpected type %T", v)
	}
}
