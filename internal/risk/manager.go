package risk

import (
	"io"
	"sort"
	"sync"
	"time"

	"volharvest/internal/domain"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// Summary is a point-in-time snapshot of the portfolio state.
type Summary struct {
	ActivePositions      int             `json:"active_positions"`
	TotalNotionalValue   decimal.Decimal `json:"total_notional_value"`
	CircuitBreakerActive bool            `json:"circuit_breaker_active"`
	ConsecutiveLosses    int             `json:"consecutive_losses"`
	SymbolsOnCooldown    []string        `json:"symbols_on_cooldown"`
}

// Manager is the single gatekeeper between strategy signals and portfolio
// state. It enforces one position per symbol, per-symbol cooldowns after
// stop-loss exits and the circuit breaker. One mutex serializes
// GenerateSignals, ExecuteSignal and Summary, so per-symbol feeds may call
// in concurrently.
type Manager struct {
	mu sync.Mutex

	params     Params
	sizer      *Sizer
	breaker    *CircuitBreaker
	strategies map[domain.StrategyType]Strategy
	entryOrder []Strategy

	positions     map[string]*domain.Position
	cooldownUntil map[string]time.Time

	log *logrus.Entry
}

// NewManager builds a Manager with both strategy variants registered. A nil
// log disables logging.
func NewManager(params Params, log *logrus.Entry) *Manager {
	if log == nil {
		silent := logrus.New()
		silent.SetOutput(io.Discard)
		log = logrus.NewEntry(silent)
	}

	sizer := NewSizer(params.BaseEquity, params.MaxEquityPerPosition, params.MaxLeverage)
	meanRev := newMeanReversion(sizer, params)
	mom := newMomentum(sizer, params)

	return &Manager{
		params:  params,
		sizer:   sizer,
		breaker: NewCircuitBreaker(params.MaxConsecutiveLosses, params.PauseDuration, params.SlippageThresholdBps),
		strategies: map[domain.StrategyType]Strategy{
			domain.StrategyMeanReversion: meanRev,
			domain.StrategyMomentum:      mom,
		},
		entryOrder:    []Strategy{meanRev, mom},
		positions:     make(map[string]*domain.Position),
		cooldownUntil: make(map[string]time.Time),
		log:           log,
	}
}

// IsTradingAllowed reports whether a new entry in symbol is permitted:
// the circuit breaker must be inactive and the symbol off cooldown.
func (m *Manager) IsTradingAllowed(symbol string, now time.Time) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.tradingAllowed(symbol, now)
}

// tradingAllowed must be called with m.mu held. Expired cooldown entries are
// removed on first check past their deadline.
func (m *Manager) tradingAllowed(symbol string, now time.Time) bool {
	if m.breaker.IsPaused(now) {
		return false
	}
	if until, ok := m.cooldownUntil[symbol]; ok {
		if now.Before(until) {
			return false
		}
		delete(m.cooldownUntil, symbol)
	}
	return true
}

// GenerateSignals produces trade signals for one symbol at the current price.
// If a position is open, only its owning strategy's exit check runs. Otherwise
// every strategy gets an entry look, provided trading is allowed for the
// symbol. Exits are never suppressed by the breaker or cooldowns.
func (m *Manager) GenerateSignals(symbol string, price decimal.Decimal, vwaps VWAPs, triggers []domain.TriggerSignal, now time.Time) []*domain.TradeSignal {
	m.mu.Lock()
	defer m.mu.Unlock()

	if pos, ok := m.positions[symbol]; ok {
		strat := m.strategies[pos.Strategy]
		if sig := strat.Exit(pos, price, vwaps, now); sig != nil {
			return []*domain.TradeSignal{sig}
		}
		return nil
	}

	if !m.tradingAllowed(symbol, now) {
		return nil
	}

	var signals []*domain.TradeSignal
	for _, strat := range m.entryOrder {
		if sig := strat.Entry(symbol, price, vwaps, triggers, now); sig != nil {
			signals = append(signals, sig)
		}
	}
	return signals
}

// ExecuteSignal applies a signal to portfolio state and reports whether it
// took effect. Enters fail when a position already exists for the symbol;
// exits fail when none does.
func (m *Manager) ExecuteSignal(sig *domain.TradeSignal) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if sig.Action == domain.ActionEnter {
		return m.openPosition(sig)
	}
	if sig.Action.IsExit() {
		return m.closePosition(sig)
	}
	return false
}

// openPosition must be called with m.mu held.
func (m *Manager) openPosition(sig *domain.TradeSignal) bool {
	if _, exists := m.positions[sig.Symbol]; exists {
		return false
	}
	if !sig.Price.IsPositive() || !sig.Quantity.IsPositive() {
		return false
	}

	maxHold := meanReversionTimeout
	if sig.Strategy == domain.StrategyMomentum {
		maxHold = momentumMaxHold
	}

	pos := &domain.Position{
		Symbol:        sig.Symbol,
		Side:          sig.Side,
		Strategy:      sig.Strategy,
		EntryPrice:    sig.Price,
		Quantity:      sig.Quantity,
		EntryTime:     sig.Timestamp,
		StopLossPrice: m.sizer.StopLossPrice(sig.Price, sig.Side, m.params.StopLossPct),
		MaxHoldTime:   maxHold,
	}
	m.positions[sig.Symbol] = pos

	m.log.WithFields(logrus.Fields{
		"symbol":   pos.Symbol,
		"strategy": pos.Strategy,
		"side":     pos.Side,
		"price":    pos.EntryPrice,
		"quantity": pos.Quantity,
		"stop":     pos.StopLossPrice,
	}).Info("position opened")
	return true
}

// closePosition must be called with m.mu held. Realized P&L is reported to
// the circuit breaker; a stop-loss exit additionally puts the symbol on
// cooldown.
func (m *Manager) closePosition(sig *domain.TradeSignal) bool {
	pos, ok := m.positions[sig.Symbol]
	if !ok {
		return false
	}

	pnl := pos.UnrealizedPnL(sig.Price)
	m.breaker.RecordOutcome(pnl.IsPositive(), sig.Timestamp)

	if sig.Action == domain.ActionStopLoss {
		m.cooldownUntil[sig.Symbol] = sig.Timestamp.Add(m.params.Cooldown)
	}
	delete(m.positions, sig.Symbol)

	m.log.WithFields(logrus.Fields{
		"symbol":   pos.Symbol,
		"strategy": pos.Strategy,
		"action":   sig.Action,
		"price":    sig.Price,
		"pnl":      pnl,
		"reason":   sig.Reason,
	}).Info("position closed")
	return true
}

// Position returns a copy of the open position for symbol, if any.
func (m *Manager) Position(symbol string) (domain.Position, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	pos, ok := m.positions[symbol]
	if !ok {
		return domain.Position{}, false
	}
	return *pos, true
}

// Positions returns copies of all open positions ordered by symbol.
func (m *Manager) Positions() []domain.Position {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]domain.Position, 0, len(m.positions))
	for _, pos := range m.positions {
		out = append(out, *pos)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out
}

// CheckSlippage reports whether a fill price is acceptably close to the
// expected price per the breaker's threshold.
func (m *Manager) CheckSlippage(expected, actual decimal.Decimal) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.breaker.CheckSlippage(expected, actual)
}

// Summary snapshots the portfolio: open position count and notional, breaker
// state, loss streak and symbols still cooling down (sorted).
func (m *Manager) Summary(now time.Time) Summary {
	m.mu.Lock()
	defer m.mu.Unlock()

	total := decimal.Zero
	for _, pos := range m.positions {
		total = total.Add(pos.NotionalValue())
	}

	cooling := make([]string, 0, len(m.cooldownUntil))
	for symbol, until := range m.cooldownUntil {
		if now.Before(until) {
			cooling = append(cooling, symbol)
		}
	}
	sort.Strings(cooling)

	return Summary{
		ActivePositions:      len(m.positions),
		TotalNotionalValue:   total,
		CircuitBreakerActive: m.breaker.IsPaused(now),
		ConsecutiveLosses:    m.breaker.ConsecutiveLosses(),
		SymbolsOnCooldown:    cooling,
	}
}
