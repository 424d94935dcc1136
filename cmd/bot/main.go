// Package main runs the live paper-trading bot: it subscribes to trade and
// liquidation streams, feeds each symbol's trigger engine, VWAP windows and
// regime classifier, and routes fired triggers through the shared risk
// manager. Positions are tracked in memory only; no orders are sent.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"volharvest/internal/config"
	"volharvest/internal/domain"
	"volharvest/internal/feed"
	"volharvest/internal/feed/binance"
	"volharvest/internal/feed/stub"
	"volharvest/internal/observability"
	"volharvest/internal/regime"
	"volharvest/internal/risk"
	"volharvest/internal/trigger"
	"volharvest/internal/window"
)

// symbolState is the per-symbol decision core owned by the event loop.
type symbolState struct {
	triggers   *trigger.Engine
	vwaps      *window.MultiVWAP
	classifier *regime.Classifier
}

// Bot wires the stream, per-symbol state and the risk manager together.
type Bot struct {
	cfg     *config.Config
	log     *logrus.Logger
	stream  feed.StreamSource
	manager *risk.Manager
	states  map[string]*symbolState

	headline bool

	mu            sync.Mutex
	started       time.Time
	trades        uint64
	liquidations  uint64
	triggersFired uint64
	entriesVetoed uint64
}

func main() {
	// Load .env if present; system env vars win.
	_ = godotenv.Load()

	configPath := flag.String("config", envOr("CONFIG_PATH", "config.yaml"), "Path to YAML configuration")
	symbolsFlag := flag.String("symbols", "", "Comma-separated symbol override, e.g. BTC-USDT-PERP,ETH-USDT-PERP")
	useStub := flag.Bool("use-stub", false, "Replay a synthetic trade stream instead of connecting to the exchange")
	headline := flag.Bool("headline", false, "Start with the manual headline flag raised (blocks all entries)")
	metricsAddr := flag.String("metrics-addr", envOr("METRICS_ADDR", ":9090"), "HTTP address for /health, /metrics and /status")
	summaryInterval := flag.Duration("summary-interval", time.Minute, "Portfolio summary log interval")
	logLevel := flag.String("log-level", envOr("LOG_LEVEL", "info"), "Log level (debug, info, warn, error)")

	flag.Parse()

	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	if lvl, err := logrus.ParseLevel(*logLevel); err == nil {
		logger.SetLevel(lvl)
	}

	cfg, err := loadConfig(*configPath, logger)
	if err != nil {
		logger.Fatalf("Failed to load config: %v", err)
	}
	if *symbolsFlag != "" {
		cfg.Symbols = splitSymbols(*symbolsFlag)
		if err := cfg.Validate(); err != nil {
			logger.Fatalf("Invalid symbol override: %v", err)
		}
	}

	observability.Init("volharvest")

	stream, err := buildStream(cfg, *useStub, logger)
	if err != nil {
		logger.Fatalf("Failed to build stream source: %v", err)
	}

	bot := &Bot{
		cfg:      cfg,
		log:      logger,
		stream:   stream,
		manager:  risk.NewManager(cfg.RiskParams(), logger.WithField("component", "risk")),
		states:   make(map[string]*symbolState, len(cfg.Symbols)),
		headline: *headline,
	}
	for _, sym := range cfg.Symbols {
		bot.states[sym] = &symbolState{
			triggers:   trigger.NewEngine(sym, cfg.TriggerConfig()),
			vwaps:      window.NewMultiVWAP(),
			classifier: regime.NewClassifier(cfg.RegimeConfig()),
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		logger.Infof("Received signal %v, initiating graceful shutdown...", sig)
		cancel()

		select {
		case sig := <-sigCh:
			logger.Infof("Received second signal %v, forcing immediate shutdown", sig)
			os.Exit(1)
		case <-time.After(30 * time.Second):
			logger.Warn("Graceful shutdown timed out after 30s, forcing exit")
			os.Exit(1)
		case <-done:
		}
	}()

	go bot.startHTTPServer(*metricsAddr)

	err = bot.Run(ctx, *summaryInterval)
	done <- err
	cancel()

	if err != nil && err != context.Canceled {
		logger.Fatalf("Bot error: %v", err)
	}
	logger.Info("Shutdown complete")
}

// loadConfig reads the YAML config, falling back to defaults when the file
// does not exist.
func loadConfig(path string, logger *logrus.Logger) (*config.Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		logger.Warnf("Config file %s not found, using defaults", path)
		return config.Default(), nil
	}
	return config.Load(path)
}

// buildStream picks the stream source. The stub source replays one hour of
// synthetic 1m bars converted to trades, so the whole loop runs offline.
func buildStream(cfg *config.Config, useStub bool, logger *logrus.Logger) (feed.StreamSource, error) {
	if useStub || cfg.DataProvider == "stub" {
		gen := stub.NewSyntheticCandleSource()
		to := time.Now().UTC().Truncate(time.Minute)
		from := to.Add(-1 * time.Hour)

		var trades []domain.Trade
		for _, sym := range cfg.Symbols {
			candles, err := gen.Candles(context.Background(), sym, "1m", from, to)
			if err != nil {
				return nil, fmt.Errorf("generate synthetic candles: %w", err)
			}
			for _, c := range candles {
				trades = append(trades, c.Trade())
			}
		}
		return stub.NewStreamSource(trades, nil), nil
	}

	provider, ok := cfg.Provider(cfg.DataProvider)
	if !ok {
		return nil, fmt.Errorf("data provider %q is not configured", cfg.DataProvider)
	}
	var streamCfg *binance.StreamConfig
	if provider.WSURL != "" {
		c := binance.DefaultStreamConfig()
		c.URL = provider.WSURL
		streamCfg = &c
	}
	return binance.NewStream(streamCfg, logger.WithField("component", "stream")), nil
}

// Run drives the event loop until the context is cancelled or the stream
// channels close.
func (b *Bot) Run(ctx context.Context, summaryInterval time.Duration) error {
	b.mu.Lock()
	b.started = time.Now()
	b.mu.Unlock()

	tradeCh, liqCh, err := b.stream.Subscribe(ctx, b.cfg.Symbols)
	if err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}
	defer b.stream.Close()

	b.log.WithField("symbols", b.cfg.Symbols).Info("Paper trading started")

	ticker := time.NewTicker(summaryInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			b.logSummary()
			return ctx.Err()

		case t, ok := <-tradeCh:
			if !ok {
				return fmt.Errorf("trade stream closed")
			}
			b.onTrade(t)

		case l, ok := <-liqCh:
			if !ok {
				return fmt.Errorf("liquidation stream closed")
			}
			b.onLiquidation(l)

		case <-ticker.C:
			b.logSummary()
		}
	}
}

// onTrade feeds one trade through the full decision path for its symbol.
func (b *Bot) onTrade(t domain.Trade) {
	st, ok := b.states[t.Symbol]
	if !ok {
		return
	}
	if err := t.Validate(); err != nil {
		b.log.WithError(err).Debug("Dropping invalid trade")
		return
	}

	st.vwaps.AddTrade(t.Price, t.Size, t.Timestamp)
	st.classifier.AddTrade(t)
	fired := st.triggers.ProcessTrade(t.Price, t.Size, t.Timestamp)

	observability.RecordTrade(t.Symbol)
	b.mu.Lock()
	b.trades++
	b.triggersFired += uint64(len(fired))
	b.mu.Unlock()

	for i := range fired {
		observability.RecordTriggerSignal(t.Symbol, string(fired[i].Kind))
		b.log.WithFields(logrus.Fields{
			"symbol":   t.Symbol,
			"kind":     fired[i].Kind,
			"strength": fired[i].Strength,
		}).Info("Trigger fired")
	}

	vwaps := risk.VWAPs(st.vwaps.AllVWAPs(t.Timestamp))
	signals := b.manager.GenerateSignals(t.Symbol, t.Price, vwaps, fired, t.Timestamp)
	for _, sig := range signals {
		b.execute(st, sig)
	}
}

// execute applies the regime gate to entries, then hands the signal to the
// risk manager and records the outcome.
func (b *Bot) execute(st *symbolState, sig *domain.TradeSignal) {
	if sig.Action == domain.ActionEnter {
		assessment := st.classifier.Classify(sig.Timestamp, sig.Symbol, sig.Price, regime.Observation{
			LiquidationSum:  st.triggers.LiquidationSum(sig.Timestamp),
			HeadlinePresent: b.headlineRaised(),
		})
		if !st.classifier.ShouldTrade(assessment, sig.Strategy) {
			observability.RecordEntryVetoed(sig.Symbol, string(assessment.Regime))
			b.mu.Lock()
			b.entriesVetoed++
			b.mu.Unlock()
			b.log.WithFields(logrus.Fields{
				"symbol":   sig.Symbol,
				"strategy": sig.Strategy,
				"regime":   assessment.Regime,
			}).Info("Entry vetoed by regime gate")
			return
		}
	}

	if !b.manager.ExecuteSignal(sig) {
		return
	}

	entry := b.log.WithFields(logrus.Fields{
		"symbol":   sig.Symbol,
		"strategy": sig.Strategy,
		"side":     sig.Side,
		"action":   sig.Action,
		"price":    sig.Price,
		"quantity": sig.Quantity,
		"reason":   sig.Reason,
	})
	if sig.Action == domain.ActionEnter {
		observability.RecordPositionOpened(sig.Symbol, string(sig.Strategy))
		entry.Info("Position opened (paper)")
	} else {
		observability.RecordPositionClosed(sig.Symbol, string(sig.Strategy), sig.Action.String())
		entry.Info("Position closed (paper)")
	}
}

// onLiquidation records a forced liquidation with the symbol's trigger
// engine and executes any signal it produces.
func (b *Bot) onLiquidation(l domain.Liquidation) {
	st, ok := b.states[l.Symbol]
	if !ok {
		return
	}
	if err := l.Validate(); err != nil {
		b.log.WithError(err).Debug("Dropping invalid liquidation")
		return
	}

	observability.RecordLiquidation(l.Symbol)
	b.mu.Lock()
	b.liquidations++
	b.mu.Unlock()

	sig := st.triggers.ProcessLiquidation(l.Value, l.Timestamp)
	if sig == nil {
		return
	}

	observability.RecordTriggerSignal(l.Symbol, string(sig.Kind))
	b.log.WithFields(logrus.Fields{
		"symbol":   l.Symbol,
		"strength": sig.Strength,
		"sum":      sig.Meta("liquidation_sum"),
	}).Info("Liquidation trigger fired")

	price := decimal.Zero
	if lastVWAP, ok := st.vwaps.AllVWAPs(l.Timestamp)[window.Timeframe3Min]; ok {
		price = lastVWAP
	}
	if price.IsZero() {
		// No trades seen yet for the symbol; nothing to price a signal with.
		return
	}

	vwaps := risk.VWAPs(st.vwaps.AllVWAPs(l.Timestamp))
	for _, s := range b.manager.GenerateSignals(l.Symbol, price, vwaps, []domain.TriggerSignal{*sig}, l.Timestamp) {
		b.execute(st, s)
	}
}

func (b *Bot) headlineRaised() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.headline
}

// logSummary publishes portfolio gauges and logs a one-line status.
func (b *Bot) logSummary() {
	now := time.Now()
	summary := b.manager.Summary(now)

	if m := observability.Default; m != nil {
		m.OpenPositions.Set(float64(summary.ActivePositions))
		m.ConsecutiveLosses.Set(float64(summary.ConsecutiveLosses))
		if summary.CircuitBreakerActive {
			m.CircuitBreakerPaused.Set(1)
		} else {
			m.CircuitBreakerPaused.Set(0)
		}
	}

	b.mu.Lock()
	trades, liqs, fired, vetoed := b.trades, b.liquidations, b.triggersFired, b.entriesVetoed
	b.mu.Unlock()

	b.log.WithFields(logrus.Fields{
		"trades":           trades,
		"liquidations":     liqs,
		"triggers":         fired,
		"vetoed":           vetoed,
		"positions":        summary.ActivePositions,
		"notional":         summary.TotalNotionalValue,
		"breaker":          summary.CircuitBreakerActive,
		"cooldown_symbols": summary.SymbolsOnCooldown,
	}).Info("Portfolio summary")
}

// startHTTPServer serves /health, /metrics and /status.
func (b *Bot) startHTTPServer(addr string) {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	mux.Handle("/metrics", observability.Handler())
	mux.HandleFunc("/status", b.handleStatus)

	b.log.Infof("Starting HTTP server on %s", addr)
	if err := http.ListenAndServe(addr, mux); err != nil && err != http.ErrServerClosed {
		b.log.Errorf("HTTP server error: %v", err)
	}
}

// StatusResponse is the JSON response for the /status endpoint.
type StatusResponse struct {
	Status        string            `json:"status"`
	Uptime        string            `json:"uptime"`
	Symbols       []string          `json:"symbols"`
	Trades        uint64            `json:"trades"`
	Liquidations  uint64            `json:"liquidations"`
	Triggers      uint64            `json:"triggers"`
	EntriesVetoed uint64            `json:"entries_vetoed"`
	Headline      bool              `json:"headline"`
	Portfolio     risk.Summary      `json:"portfolio"`
	Positions     []domain.Position `json:"positions"`
}

// handleStatus returns the bot state as JSON.
func (b *Bot) handleStatus(w http.ResponseWriter, r *http.Request) {
	now := time.Now()
	summary := b.manager.Summary(now)
	positions := b.manager.Positions()

	b.mu.Lock()
	resp := StatusResponse{
		Status:        "running",
		Uptime:        time.Since(b.started).String(),
		Symbols:       b.cfg.Symbols,
		Trades:        b.trades,
		Liquidations:  b.liquidations,
		Triggers:      b.triggersFired,
		EntriesVetoed: b.entriesVetoed,
		Headline:      b.headline,
		Portfolio:     summary,
		Positions:     positions,
	}
	b.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func splitSymbols(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}
