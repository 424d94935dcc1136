// Package stub provides deterministic in-memory feed sources for tests
// and offline runs.
package stub

import (
	"context"
	"fmt"
	"sync"
	"time"

	"volharvest/internal/domain"
)

// CandleSource returns fixed in-memory candles and funding rates.
// Implements feed.CandleSource.
type CandleSource struct {
	candles []*domain.Candle
	funding []*domain.FundingRate
}

// NewCandleSource creates a stub candle source with the given data.
func NewCandleSource(candles []*domain.Candle, funding []*domain.FundingRate) *CandleSource {
	return &CandleSource{candles: candles, funding: funding}
}

// Candles returns candles matching the symbol and time range.
// The interval argument is ignored; stub data carries its own spacing.
// Returns copies to prevent mutation.
func (s *CandleSource) Candles(_ context.Context, symbol, _ string, from, to time.Time) ([]*domain.Candle, error) {
	var result []*domain.Candle
	for _, c := range s.candles {
		if c.Symbol == symbol && !c.Timestamp.Before(from) && !c.Timestamp.After(to) {
			copy := *c
			result = append(result, &copy)
		}
	}
	return result, nil
}

// FundingRates returns funding observations matching the symbol and time range.
func (s *CandleSource) FundingRates(_ context.Context, symbol string, from, to time.Time) ([]*domain.FundingRate, error) {
	var result []*domain.FundingRate
	for _, f := range s.funding {
		if f.Symbol == symbol && !f.Timestamp.Before(from) && !f.Timestamp.After(to) {
			copy := *f
			result = append(result, &copy)
		}
	}
	return result, nil
}

// StreamSource replays fixed trades and liquidations on subscription.
// Implements feed.StreamSource.
type StreamSource struct {
	trades       []domain.Trade
	liquidations []domain.Liquidation

	mu      sync.Mutex
	closed  bool
	tradeCh chan domain.Trade
	liqCh   chan domain.Liquidation
}

// NewStreamSource creates a stub stream source with the given events.
func NewStreamSource(trades []domain.Trade, liquidations []domain.Liquidation) *StreamSource {
	return &StreamSource{trades: trades, liquidations: liquidations}
}

// Subscribe delivers all preloaded events for the requested symbols on
// buffered channels. The channels stay open until Close so consumers can
// drain at their own pace.
func (s *StreamSource) Subscribe(_ context.Context, symbols []string) (<-chan domain.Trade, <-chan domain.Liquidation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, nil, fmt.Errorf("stream source closed")
	}
	if s.tradeCh != nil {
		return nil, nil, fmt.Errorf("already subscribed")
	}

	want := make(map[string]struct{}, len(symbols))
	for _, sym := range symbols {
		want[sym] = struct{}{}
	}

	s.tradeCh = make(chan domain.Trade, len(s.trades)+1)
	s.liqCh = make(chan domain.Liquidation, len(s.liquidations)+1)

	for _, t := range s.trades {
		if _, ok := want[t.Symbol]; ok {
			s.tradeCh <- t
		}
	}
	for _, l := range s.liquidations {
		if _, ok := want[l.Symbol]; ok {
			s.liqCh <- l
		}
	}

	return s.tradeCh, s.liqCh, nil
}

// Close closes the subscription channels.
func (s *StreamSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	if s.tradeCh != nil {
		close(s.tradeCh)
		close(s.liqCh)
	}
	return nil
}
