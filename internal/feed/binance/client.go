// Package binance adapts Binance USD-M futures market data to the feed
// interfaces: historical klines and funding over REST, live aggTrade and
// forceOrder events over websocket.
package binance

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/adshao/go-binance/v2/futures"
	"github.com/shopspring/decimal"

	"volharvest/internal/domain"
	"volharvest/internal/feed"
)

// Kline and funding history page limits documented by Binance.
const (
	maxKlineLimit   = 1500
	maxFundingLimit = 1000
)

// Client fetches historical futures market data.
type Client struct {
	futures *futures.Client
}

// NewClient creates a Binance futures REST client. Market data endpoints
// work with empty credentials.
func NewClient(apiKey, apiSecret string) *Client {
	return &Client{futures: futures.NewClient(apiKey, apiSecret)}
}

// Compile-time interface check.
var _ feed.CandleSource = (*Client)(nil)

// FormatSymbol converts an instrument symbol like "BTC-USDT-PERP" to
// Binance notation ("BTCUSDT").
func FormatSymbol(symbol string) string {
	s := strings.TrimSuffix(symbol, "-PERP")
	return strings.ReplaceAll(s, "-", "")
}

// Candles fetches klines within [from, to] (inclusive), paging through the
// 1500-bar response limit. Returned candles carry the instrument symbol,
// not the Binance one.
func (c *Client) Candles(ctx context.Context, symbol, interval string, from, to time.Time) ([]*domain.Candle, error) {
	var candles []*domain.Candle

	start := from.UnixMilli()
	end := to.UnixMilli()

	for start <= end {
		klines, err := c.futures.NewKlinesService().
			Symbol(FormatSymbol(symbol)).
			Interval(interval).
			StartTime(start).
			EndTime(end).
			Limit(maxKlineLimit).
			Do(ctx)
		if err != nil {
			return nil, fmt.Errorf("fetch klines %s %s: %w", symbol, interval, err)
		}
		if len(klines) == 0 {
			break
		}

		for _, k := range klines {
			candle, err := convertKline(symbol, k)
			if err != nil {
				return nil, err
			}
			candles = append(candles, candle)
		}

		if len(klines) < maxKlineLimit {
			break
		}
		start = klines[len(klines)-1].OpenTime + 1
	}

	return candles, nil
}

// FundingRates fetches historical funding observations within [from, to]
// (inclusive), paging through the 1000-row response limit.
func (c *Client) FundingRates(ctx context.Context, symbol string, from, to time.Time) ([]*domain.FundingRate, error) {
	var rates []*domain.FundingRate

	start := from.UnixMilli()
	end := to.UnixMilli()

	for start <= end {
		history, err := c.futures.NewFundingRateService().
			Symbol(FormatSymbol(symbol)).
			StartTime(start).
			EndTime(end).
			Limit(maxFundingLimit).
			Do(ctx)
		if err != nil {
			return nil, fmt.Errorf("fetch funding rates %s: %w", symbol, err)
		}
		if len(history) == 0 {
			break
		}

		for _, h := range history {
			rate, err := decimal.NewFromString(h.FundingRate)
			if err != nil {
				return nil, fmt.Errorf("parse funding rate %q for %s: %w", h.FundingRate, symbol, err)
			}
			rates = append(rates, &domain.FundingRate{
				Symbol:    symbol,
				Timestamp: time.UnixMilli(h.FundingTime).UTC(),
				Rate:      rate,
			})
		}

		if len(history) < maxFundingLimit {
			break
		}
		start = history[len(history)-1].FundingTime + 1
	}

	return rates, nil
}

// convertKline maps a futures kline to a domain candle. Binance returns
// prices and volumes as strings; any non-numeric field fails the fetch.
func convertKline(symbol string, k *futures.Kline) (*domain.Candle, error) {
	fields := []struct {
		name  string
		value string
	}{
		{"open", k.Open}, {"high", k.High}, {"low", k.Low},
		{"close", k.Close}, {"volume", k.Volume},
	}

	parsed := make([]decimal.Decimal, len(fields))
	for i, f := range fields {
		v, err := decimal.NewFromString(f.value)
		if err != nil {
			return nil, fmt.Errorf("parse kline %s %q for %s: %w", f.name, f.value, symbol, err)
		}
		parsed[i] = v
	}

	return &domain.Candle{
		Symbol:     symbol,
		Timestamp:  time.UnixMilli(k.OpenTime).UTC(),
		Open:       parsed[0],
		High:       parsed[1],
		Low:        parsed[2],
		Close:      parsed[3],
		Volume:     parsed[4],
		TradeCount: int(k.TradeNum),
	}, nil
}
