package backtest

import (
	"sort"
	"time"

	"volharvest/internal/domain"
)

// EventType discriminates replayed event kinds.
type EventType string

// Event type constants. Alphabetical order doubles as replay order for
// events sharing a timestamp and symbol, so candles settle before funding.
const (
	EventTypeCandle  EventType = "candle"
	EventTypeFunding EventType = "funding"
)

// Event is one element of the merged historical stream. Exactly one of
// Candle or Funding is set, matching Type.
type Event struct {
	Type      EventType
	Symbol    string
	Timestamp time.Time

	Candle  *domain.Candle
	Funding *domain.FundingRate
}

// MergeEvents combines candles and funding rates from all symbols into a
// single stream ordered by (timestamp, symbol, type). The ordering is total,
// so replaying the same inputs always produces the same trade sequence.
func MergeEvents(candles []*domain.Candle, funding []*domain.FundingRate) []*Event {
	events := make([]*Event, 0, len(candles)+len(funding))

	for _, c := range candles {
		events = append(events, &Event{
			Type:      EventTypeCandle,
			Symbol:    c.Symbol,
			Timestamp: c.Timestamp,
			Candle:    c,
		})
	}

	for _, f := range funding {
		events = append(events, &Event{
			Type:      EventTypeFunding,
			Symbol:    f.Symbol,
			Timestamp: f.Timestamp,
			Funding:   f,
		})
	}

	SortEvents(events)
	return events
}

// SortEvents orders events by (timestamp ASC, symbol ASC, type ASC).
func SortEvents(events []*Event) {
	sort.Slice(events, func(i, j int) bool {
		return compareEvents(events[i], events[j]) < 0
	})
}

// compareEvents returns negative, zero or positive as a orders before,
// equal to, or after b.
func compareEvents(a, b *Event) int {
	if !a.Timestamp.Equal(b.Timestamp) {
		if a.Timestamp.Before(b.Timestamp) {
			return -1
		}
		return 1
	}
	if a.Symbol != b.Symbol {
		if a.Symbol < b.Symbol {
			return -1
		}
		return 1
	}
	if a.Type != b.Type {
		if a.Type < b.Type {
			return -1
		}
		return 1
	}
	return 0
}
