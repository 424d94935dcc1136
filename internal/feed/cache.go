package feed

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/sirupsen/logrus"

	"volharvest/internal/domain"
	"volharvest/internal/storage"
)

func discardEntry() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return logrus.NewEntry(l)
}

// CachedCandleSource is a read-through cache in front of a CandleSource.
// Ranges already in the store are served locally; misses are fetched from
// the upstream source and written back, so repeated backtests over the same
// window hit the exchange API once.
type CachedCandleSource struct {
	source CandleSource
	store  storage.CandleStore
	log    *logrus.Entry
}

// NewCachedCandleSource wraps source with the given candle store. A nil log
// disables logging.
func NewCachedCandleSource(source CandleSource, store storage.CandleStore, log *logrus.Entry) *CachedCandleSource {
	if log == nil {
		log = discardEntry()
	}
	return &CachedCandleSource{source: source, store: store, log: log}
}

var _ CandleSource = (*CachedCandleSource)(nil)

// Candles serves the range from the store when populated, otherwise fetches
// upstream and caches the result. Duplicate-key errors on write-back are
// expected when concurrent runs fetch overlapping ranges and are not
// failures.
func (c *CachedCandleSource) Candles(ctx context.Context, symbol, interval string, from, to time.Time) ([]*domain.Candle, error) {
	cached, err := c.store.GetBySymbol(ctx, symbol, from, to)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return nil, err
	}
	if len(cached) > 0 {
		c.log.WithFields(logrus.Fields{
			"symbol":  symbol,
			"candles": len(cached),
		}).Debug("candle cache hit")
		return cached, nil
	}

	fetched, err := c.source.Candles(ctx, symbol, interval, from, to)
	if err != nil {
		return nil, err
	}
	if len(fetched) == 0 {
		return fetched, nil
	}

	if err := c.store.InsertBulk(ctx, fetched); err != nil && !errors.Is(err, storage.ErrDuplicateKey) {
		return nil, err
	}
	c.log.WithFields(logrus.Fields{
		"symbol":  symbol,
		"candles": len(fetched),
	}).Debug("candle cache filled")
	return fetched, nil
}

// FundingRates passes through to the upstream source; funding history is
// small enough not to warrant caching.
func (c *CachedCandleSource) FundingRates(ctx context.Context, symbol string, from, to time.Time) ([]*domain.FundingRate, error) {
	return c.source.FundingRates(ctx, symbol, from, to)
}
