package window

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Timeframe names one of the fixed VWAP horizons tracked per symbol.
type Timeframe string

const (
	Timeframe3Min  Timeframe = "3min"
	Timeframe30Min Timeframe = "30min"
	Timeframe1Hour Timeframe = "1hour"
	Timeframe4Hour Timeframe = "4hour"
)

// Timeframes lists every supported horizon, shortest first.
var Timeframes = []Timeframe{Timeframe3Min, Timeframe30Min, Timeframe1Hour, Timeframe4Hour}

// ErrUnknownTimeframe is returned for a timeframe outside the fixed set.
// Misspelled timeframes are programming errors and must surface
// immediately rather than read as missing data.
var ErrUnknownTimeframe = errors.New("unknown timeframe")

// Duration returns the window span for the timeframe, or zero for an
// unknown one.
func (t Timeframe) Duration() time.Duration {
	switch t {
	case Timeframe3Min:
		return 3 * time.Minute
	case Timeframe30Min:
		return 30 * time.Minute
	case Timeframe1Hour:
		return time.Hour
	case Timeframe4Hour:
		return 4 * time.Hour
	}
	return 0
}

// IsValid reports whether the timeframe is one of the fixed horizons.
func (t Timeframe) IsValid() bool {
	return t.Duration() > 0
}

func (t Timeframe) String() string {
	return string(t)
}

// MultiVWAP maintains one VWAP window per supported timeframe for a
// single symbol. Every trade fans out to all windows.
type MultiVWAP struct {
	windows map[Timeframe]*VWAP
}

// NewMultiVWAP creates the full set of per-timeframe windows.
func NewMultiVWAP() *MultiVWAP {
	windows := make(map[Timeframe]*VWAP, len(Timeframes))
	for _, tf := range Timeframes {
		windows[tf] = NewVWAP(tf.Duration())
	}
	return &MultiVWAP{windows: windows}
}

// AddTrade records one tick in every timeframe window.
func (m *MultiVWAP) AddTrade(price, volume decimal.Decimal, ts time.Time) {
	for _, w := range m.windows {
		w.AddTrade(price, volume, ts)
	}
}

// Window returns the underlying window for one timeframe.
func (m *MultiVWAP) Window(tf Timeframe) (*VWAP, error) {
	w, ok := m.windows[tf]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownTimeframe, tf)
	}
	return w, nil
}

// VWAP returns the value for one timeframe at asOf. The bool is false
// when that window holds no volume; the error is non-nil only for an
// unknown timeframe.
func (m *MultiVWAP) VWAP(tf Timeframe, asOf time.Time) (decimal.Decimal, bool, error) {
	w, err := m.Window(tf)
	if err != nil {
		return decimal.Decimal{}, false, err
	}
	value, ok := w.VWAP(asOf)
	return value, ok, nil
}

// Deviation returns the signed fractional deviation of price from one
// timeframe's VWAP at asOf.
func (m *MultiVWAP) Deviation(tf Timeframe, price decimal.Decimal, asOf time.Time) (decimal.Decimal, bool, error) {
	w, err := m.Window(tf)
	if err != nil {
		return decimal.Decimal{}, false, err
	}
	dev, ok := w.Deviation(price, asOf)
	return dev, ok, nil
}

// AllVWAPs returns the value of every timeframe window that currently
// has one. Windows with no volume in range are simply absent from the
// result, never reported as zero.
func (m *MultiVWAP) AllVWAPs(asOf time.Time) map[Timeframe]decimal.Decimal {
	out := make(map[Timeframe]decimal.Decimal, len(m.windows))
	for tf, w := range m.windows {
		if value, ok := w.VWAP(asOf); ok {
			out[tf] = value
		}
	}
	return out
}
