// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Feed metrics
	TradesProcessed       *prometheus.CounterVec
	LiquidationsProcessed *prometheus.CounterVec
	FeedErrors            *prometheus.CounterVec
	WSReconnects          prometheus.Counter

	// Trigger metrics
	TriggerSignals *prometheus.CounterVec

	// Risk metrics
	PositionsOpened      *prometheus.CounterVec
	PositionsClosed      *prometheus.CounterVec
	OpenPositions        prometheus.Gauge
	RealizedPnL          prometheus.Gauge
	ConsecutiveLosses    prometheus.Gauge
	CircuitBreakerPaused prometheus.Gauge
	EntriesVetoed        *prometheus.CounterVec

	// Backtest metrics
	BacktestRunDuration prometheus.Histogram
	BacktestRunsTotal   *prometheus.CounterVec

	// Database metrics
	DBQueryErrors *prometheus.CounterVec
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "volharvest"
	}

	return &Metrics{
		TradesProcessed: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "feed",
			Name:      "trades_processed_total",
			Help:      "Total number of trade ticks processed",
		}, []string{"symbol"}),
		LiquidationsProcessed: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "feed",
			Name:      "liquidations_processed_total",
			Help:      "Total number of liquidation events processed",
		}, []string{"symbol"}),
		FeedErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "feed",
			Name:      "errors_total",
			Help:      "Total number of feed errors by kind",
		}, []string{"kind"}),
		WSReconnects: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "feed",
			Name:      "ws_reconnects_total",
			Help:      "Total number of WebSocket reconnections",
		}),

		TriggerSignals: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "trigger",
			Name:      "signals_total",
			Help:      "Total number of trigger signals emitted by kind",
		}, []string{"symbol", "kind"}),

		PositionsOpened: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "risk",
			Name:      "positions_opened_total",
			Help:      "Total number of positions opened by strategy",
		}, []string{"symbol", "strategy"}),
		PositionsClosed: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "risk",
			Name:      "positions_closed_total",
			Help:      "Total number of positions closed by strategy and action",
		}, []string{"symbol", "strategy", "action"}),
		OpenPositions: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "risk",
			Name:      "open_positions",
			Help:      "Number of currently open positions",
		}),
		RealizedPnL: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "risk",
			Name:      "realized_pnl",
			Help:      "Cumulative realized P&L in quote currency",
		}),
		ConsecutiveLosses: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "risk",
			Name:      "consecutive_losses",
			Help:      "Current consecutive losing trade count",
		}),
		CircuitBreakerPaused: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "risk",
			Name:      "circuit_breaker_paused",
			Help:      "1 when the circuit breaker pauses trading, 0 otherwise",
		}),
		EntriesVetoed: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "regime",
			Name:      "entries_vetoed_total",
			Help:      "Total number of entries vetoed by the regime gate",
		}, []string{"symbol", "regime"}),

		BacktestRunDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "backtest",
			Name:      "run_duration_seconds",
			Help:      "Wall-clock duration of backtest runs",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 12),
		}),
		BacktestRunsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "backtest",
			Name:      "runs_total",
			Help:      "Total number of backtest runs by status",
		}, []string{"status"}),

		DBQueryErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "db",
			Name:      "query_errors_total",
			Help:      "Total number of database query errors by store",
		}, []string{"store"}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Default is the package-level metrics instance; nil until Init.
var Default *Metrics

// Init initializes the default metrics instance. Call once at startup.
func Init(namespace string) {
	Default = NewMetrics(namespace)
}

// RecordTrade increments the trade counter on the default instance.
func RecordTrade(symbol string) {
	if Default != nil {
		Default.TradesProcessed.WithLabelValues(symbol).Inc()
	}
}

// RecordLiquidation increments the liquidation counter on the default instance.
func RecordLiquidation(symbol string) {
	if Default != nil {
		Default.LiquidationsProcessed.WithLabelValues(symbol).Inc()
	}
}

// RecordTriggerSignal increments the trigger signal counter on the default instance.
func RecordTriggerSignal(symbol, kind string) {
	if Default != nil {
		Default.TriggerSignals.WithLabelValues(symbol, kind).Inc()
	}
}

// RecordPositionOpened increments the opened-position counter on the default instance.
func RecordPositionOpened(symbol, strategy string) {
	if Default != nil {
		Default.PositionsOpened.WithLabelValues(symbol, strategy).Inc()
	}
}

// RecordPositionClosed increments the closed-position counter on the default instance.
func RecordPositionClosed(symbol, strategy, action string) {
	if Default != nil {
		Default.PositionsClosed.WithLabelValues(symbol, strategy, action).Inc()
	}
}

// RecordEntryVetoed increments the regime veto counter on the default instance.
func RecordEntryVetoed(symbol, regime string) {
	if Default != nil {
		Default.EntriesVetoed.WithLabelValues(symbol, regime).Inc()
	}
}

// RecordWSReconnect increments the reconnect counter on the default instance.
func RecordWSReconnect() {
	if Default != nil {
		Default.WSReconnects.Inc()
	}
}
