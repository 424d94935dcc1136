// Package backtest replays historical candles and funding rates through the
// live decision core. Candles become synthetic trades at their close price,
// the per-symbol trigger engines and the shared risk manager run exactly as
// they do on a live stream, and every executed signal lands in a trade
// ledger with modeled fees, slippage and funding. Metrics and reports are
// computed from that ledger afterwards.
package backtest

import (
	"context"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"volharvest/internal/domain"
	"volharvest/internal/feed"
	"volharvest/internal/idhash"
	"volharvest/internal/regime"
	"volharvest/internal/risk"
	"volharvest/internal/trigger"
	"volharvest/internal/window"
)

// Config sets up one backtest run.
type Config struct {
	Symbols  []string
	Interval string // candle interval requested from the source, e.g. "1m"

	InitialEquity decimal.Decimal
	SlippageBps   decimal.Decimal
	FeeBps        decimal.Decimal

	Trigger trigger.Config
	Risk    risk.Params
	Regime  regime.Config
}

// DefaultConfig returns the stock run setup: 1m bars, 100k equity,
// 5 bps slippage and 8 bps taker fees per side.
func DefaultConfig(symbols []string) Config {
	return Config{
		Symbols:       symbols,
		Interval:      "1m",
		InitialEquity: decimal.NewFromInt(100000),
		SlippageBps:   decimal.NewFromInt(5),
		FeeBps:        decimal.NewFromInt(8),
		Trigger:       trigger.DefaultConfig(),
		Risk:          risk.DefaultParams(),
		Regime:        regime.DefaultConfig(),
	}
}

// EquityPoint is one sample of the equity curve, taken after each closed
// trade.
type EquityPoint struct {
	Timestamp time.Time
	Equity    decimal.Decimal
}

// Result is the output of one backtest run.
type Result struct {
	Run         *domain.BacktestRun
	Metrics     *domain.BacktestMetrics
	Ledger      []*domain.LedgerEntry
	EquityCurve []EquityPoint
}

// symbolState is the per-symbol decision core: isolated trigger engine,
// VWAP set and regime classifier, exactly as a live symbol task owns them.
type symbolState struct {
	triggers   *trigger.Engine
	vwaps      *window.MultiVWAP
	classifier *regime.Classifier
	lastPrice  decimal.Decimal
	lastSeen   time.Time
}

// Engine drives one backtest run.
type Engine struct {
	source feed.CandleSource
	cfg    Config
	costs  *CostModel
	log    *logrus.Entry
	now    func() time.Time

	runID   string
	manager *risk.Manager
	states  map[string]*symbolState

	equity decimal.Decimal
	curve  []EquityPoint
	open   map[string]*domain.LedgerEntry
	closed []*domain.LedgerEntry

	vetoedEntries int
}

// NewEngine creates an engine over the given candle source. A nil log
// disables logging.
func NewEngine(source feed.CandleSource, cfg Config, log *logrus.Entry) *Engine {
	if log == nil {
		silent := logrus.New()
		silent.SetOutput(io.Discard)
		log = logrus.NewEntry(silent)
	}
	if cfg.Interval == "" {
		cfg.Interval = "1m"
	}

	e := &Engine{
		source: source,
		cfg:    cfg,
		costs:  NewCostModel(cfg.SlippageBps, cfg.FeeBps),
		log:    log,
		now:    func() time.Time { return time.Now().UTC() },
	}
	e.resetState()
	return e
}

// WithClock sets a custom clock for run metadata, for deterministic output.
func (e *Engine) WithClock(now func() time.Time) *Engine {
	e.now = now
	return e
}

// resetState rebuilds all mutable run state so the same engine can execute
// consecutive runs without leakage.
func (e *Engine) resetState() {
	e.manager = risk.NewManager(e.cfg.Risk, e.log)
	e.states = make(map[string]*symbolState, len(e.cfg.Symbols))
	for _, symbol := range e.cfg.Symbols {
		e.states[symbol] = &symbolState{
			triggers:   trigger.NewEngine(symbol, e.cfg.Trigger),
			vwaps:      window.NewMultiVWAP(),
			classifier: regime.NewClassifier(e.cfg.Regime),
		}
	}
	e.equity = e.cfg.InitialEquity
	e.curve = nil
	e.open = make(map[string]*domain.LedgerEntry)
	e.closed = nil
	e.vetoedEntries = 0
}

// LoadHistoricalData fetches candles and funding rates for all configured
// symbols in [from, to]. Candles failing validation are rejected, not
// skipped: bad history silently dropped would bias every window downstream.
func (e *Engine) LoadHistoricalData(ctx context.Context, from, to time.Time) ([]*domain.Candle, []*domain.FundingRate, error) {
	var candles []*domain.Candle
	var funding []*domain.FundingRate

	for _, symbol := range e.cfg.Symbols {
		cs, err := e.source.Candles(ctx, symbol, e.cfg.Interval, from, to)
		if err != nil {
			return nil, nil, fmt.Errorf("backtest: load candles for %s: %w", symbol, err)
		}
		for _, c := range cs {
			if err := c.Validate(); err != nil {
				return nil, nil, fmt.Errorf("backtest: %w", err)
			}
		}
		candles = append(candles, cs...)

		fs, err := e.source.FundingRates(ctx, symbol, from, to)
		if err != nil {
			return nil, nil, fmt.Errorf("backtest: load funding for %s: %w", symbol, err)
		}
		funding = append(funding, fs...)

		e.log.WithFields(logrus.Fields{
			"symbol":   symbol,
			"candles":  len(cs),
			"fundings": len(fs),
		}).Info("historical data loaded")
	}

	return candles, funding, nil
}

// Run executes one full backtest over [from, to] and returns the run record,
// metrics, ledger and equity curve. State is reset at the start, so Run may
// be called repeatedly on the same engine.
func (e *Engine) Run(ctx context.Context, from, to time.Time) (*Result, error) {
	e.resetState()
	e.runID = uuid.NewString()

	candles, funding, err := e.LoadHistoricalData(ctx, from, to)
	if err != nil {
		return nil, err
	}

	events := MergeEvents(candles, funding)
	e.curve = append(e.curve, EquityPoint{Timestamp: from, Equity: e.equity})

	for _, ev := range events {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		switch ev.Type {
		case EventTypeCandle:
			e.onCandle(ev.Candle)
		case EventTypeFunding:
			e.onFunding(ev.Funding)
		}
	}

	e.closeRemaining()

	metrics := ComputeMetrics(e.closed, e.curve, e.cfg.InitialEquity, from, to)
	run := &domain.BacktestRun{
		RunID:         e.runID,
		CreatedAt:     e.now(),
		Symbols:       e.cfg.Symbols,
		StartDate:     from,
		EndDate:       to,
		InitialEquity: e.cfg.InitialEquity,
		SlippageBps:   e.cfg.SlippageBps,
		FeeBps:        e.cfg.FeeBps,
		Metrics:       metrics,
	}

	e.log.WithFields(logrus.Fields{
		"run_id":         e.runID,
		"events":         len(events),
		"trades":         len(e.closed),
		"vetoed_entries": e.vetoedEntries,
		"final_equity":   e.equity,
	}).Info("backtest run complete")

	return &Result{
		Run:         run,
		Metrics:     metrics,
		Ledger:      e.closed,
		EquityCurve: e.curve,
	}, nil
}

// onCandle converts the candle to a synthetic trade at its close price and
// drives it through the full core: VWAP windows, trigger detectors, regime
// gate, strategies and execution.
func (e *Engine) onCandle(c *domain.Candle) {
	st, ok := e.states[c.Symbol]
	if !ok {
		return
	}

	tr := c.Trade()
	st.lastPrice = tr.Price
	st.lastSeen = tr.Timestamp

	st.vwaps.AddTrade(tr.Price, tr.Size, tr.Timestamp)
	st.classifier.AddTrade(tr)
	fired := st.triggers.ProcessTrade(tr.Price, tr.Size, tr.Timestamp)

	vwaps := risk.VWAPs(st.vwaps.AllVWAPs(tr.Timestamp))
	signals := e.manager.GenerateSignals(c.Symbol, tr.Price, vwaps, fired, tr.Timestamp)

	for _, sig := range signals {
		if sig.Action == domain.ActionEnter {
			assessment := st.classifier.Classify(tr.Timestamp, c.Symbol, tr.Price, regime.Observation{
				LiquidationSum: st.triggers.LiquidationSum(tr.Timestamp),
			})
			if !st.classifier.ShouldTrade(assessment, sig.Strategy) {
				e.vetoedEntries++
				e.log.WithFields(logrus.Fields{
					"symbol":     c.Symbol,
					"strategy":   sig.Strategy,
					"regime":     assessment.Regime,
					"confidence": assessment.Confidence,
				}).Debug("entry vetoed by regime gate")
				continue
			}
			e.enter(sig)
			continue
		}
		e.exit(sig)
	}
}

// onFunding accrues the funding transfer onto the open trade for the
// symbol, if any.
func (e *Engine) onFunding(f *domain.FundingRate) {
	pos, ok := e.manager.Position(f.Symbol)
	if !ok {
		return
	}
	entry, ok := e.open[f.Symbol]
	if !ok {
		return
	}

	transfer := e.costs.FundingTransfer(f.Rate, pos.Side, pos.NotionalValue())
	entry.FundingCost = entry.FundingCost.Add(transfer)
}

// enter executes an entry signal and opens a ledger entry carrying the
// entry-side fee and slippage.
func (e *Engine) enter(sig *domain.TradeSignal) {
	if !e.manager.ExecuteSignal(sig) {
		return
	}

	e.open[sig.Symbol] = &domain.LedgerEntry{
		TradeID:     idhash.ComputeTradeID(e.runID, sig.Symbol, sig.Strategy, sig.Timestamp),
		RunID:       e.runID,
		Symbol:      sig.Symbol,
		Strategy:    sig.Strategy.String(),
		Side:        sig.Side.String(),
		EntryTime:   sig.Timestamp,
		EntryPrice:  sig.Price,
		Quantity:    sig.Quantity,
		EntryReason: sig.Reason,
		Fees:        e.costs.Fee(sig.Price, sig.Quantity),
		Slippage:    e.costs.Slippage(sig.Price, sig.Quantity),
	}
}

// exit executes an exit signal, closes the ledger entry with the exit-side
// costs and books the net P&L into the equity curve.
func (e *Engine) exit(sig *domain.TradeSignal) {
	pos, ok := e.manager.Position(sig.Symbol)
	if !ok {
		return
	}
	entry, ok := e.open[sig.Symbol]
	if !ok {
		return
	}
	if !e.manager.ExecuteSignal(sig) {
		return
	}
	delete(e.open, sig.Symbol)

	gross := pos.UnrealizedPnL(sig.Price)

	entry.ExitTime = sig.Timestamp
	entry.ExitPrice = sig.Price
	entry.ExitReason = sig.Reason
	entry.Fees = entry.Fees.Add(e.costs.Fee(sig.Price, pos.Quantity))
	entry.Slippage = entry.Slippage.Add(e.costs.Slippage(sig.Price, pos.Quantity))
	entry.PnL = gross.Sub(entry.Fees).Sub(entry.FundingCost).Sub(entry.Slippage)

	e.closed = append(e.closed, entry)
	e.equity = e.equity.Add(entry.PnL)
	e.curve = append(e.curve, EquityPoint{Timestamp: sig.Timestamp, Equity: e.equity})
}

// closeRemaining force-exits positions still open when the history runs
// out, at each symbol's last seen price. Without this the run's metrics
// would silently ignore open exposure.
func (e *Engine) closeRemaining() {
	positions := e.manager.Positions()
	sort.Slice(positions, func(i, j int) bool { return positions[i].Symbol < positions[j].Symbol })

	for i := range positions {
		pos := positions[i]
		st, ok := e.states[pos.Symbol]
		if !ok || st.lastPrice.IsZero() {
			continue
		}
		e.exit(&domain.TradeSignal{
			Symbol:    pos.Symbol,
			Strategy:  pos.Strategy,
			Side:      pos.Side,
			Action:    domain.ActionExit,
			Price:     st.lastPrice,
			Quantity:  pos.Quantity,
			Timestamp: st.lastSeen,
			Reason:    "backtest horizon reached",
		})
	}
}
