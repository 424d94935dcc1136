// Package main runs a historical backtest: it loads candles and funding
// history, replays them through the decision core and prints the resulting
// performance report. Runs can be persisted to PostgreSQL for later
// inspection with the report command.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"volharvest/internal/backtest"
	"volharvest/internal/config"
	"volharvest/internal/feed"
	"volharvest/internal/feed/binance"
	"volharvest/internal/feed/stub"
	"volharvest/internal/observability"
	"volharvest/internal/storage"
	chstore "volharvest/internal/storage/clickhouse"
	"volharvest/internal/storage/memory"
	"volharvest/internal/storage/migrations"
	pgstore "volharvest/internal/storage/postgres"
)

const dateLayout = "2006-01-02"

func main() {
	_ = godotenv.Load()

	configPath := flag.String("config", envOr("CONFIG_PATH", "config.yaml"), "Path to YAML configuration")
	symbolsFlag := flag.String("symbols", "", "Comma-separated symbol override")
	fromFlag := flag.String("from", "", "Start date (YYYY-MM-DD), default 7 days ago")
	toFlag := flag.String("to", "", "End date (YYYY-MM-DD), default today")
	interval := flag.String("interval", "1m", "Candle interval requested from the data source")
	useStub := flag.Bool("use-stub", false, "Use the synthetic candle generator instead of the exchange API")
	postgresDSN := flag.String("postgres-dsn", os.Getenv("POSTGRES_DSN"), "PostgreSQL connection string, enables --persist")
	clickhouseDSN := flag.String("clickhouse-dsn", os.Getenv("CLICKHOUSE_DSN"), "ClickHouse connection string, enables the candle cache")
	persist := flag.Bool("persist", false, "Store the run and its ledger for later reporting")
	useMemory := flag.Bool("use-memory", false, "Persist to in-memory stores (testing only, data is lost on exit)")
	outputDir := flag.String("output-dir", "output", "Directory for report files")
	writeMarkdown := flag.Bool("markdown", true, "Write a markdown report file")
	writeCSV := flag.Bool("csv", true, "Write the trade ledger as CSV")
	writeJSON := flag.Bool("json", false, "Write the report as JSON")
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

	from, to, err := parseDateRange(*fromFlag, *toFlag)
	if err != nil {
		logger.Fatalf("Invalid date range: %v", err)
	}

	if *persist && !*useMemory && *postgresDSN == "" {
		logger.Fatal("--persist requires --postgres-dsn (or --use-memory)")
	}

	observability.Init("volharvest")
	ctx := context.Background()

	source, cleanup, err := buildSource(ctx, cfg, *useStub, *clickhouseDSN, logger)
	if err != nil {
		logger.Fatalf("Failed to build candle source: %v", err)
	}
	defer cleanup()

	engineCfg := backtest.Config{
		Symbols:       cfg.Symbols,
		Interval:      *interval,
		InitialEquity: cfg.InitialEquity,
		SlippageBps:   cfg.SlippageBps,
		FeeBps:        cfg.FeeBps,
		Trigger:       cfg.TriggerConfig(),
		Risk:          cfg.RiskParams(),
		Regime:        cfg.RegimeConfig(),
	}
	engine := backtest.NewEngine(source, engineCfg, logger.WithField("component", "backtest"))

	logger.WithFields(logrus.Fields{
		"symbols":  cfg.Symbols,
		"from":     from.Format(dateLayout),
		"to":       to.Format(dateLayout),
		"interval": *interval,
	}).Info("Starting backtest")

	started := time.Now()
	result, err := engine.Run(ctx, from, to)
	if m := observability.Default; m != nil {
		m.BacktestRunDuration.Observe(time.Since(started).Seconds())
		status := "success"
		if err != nil {
			status = "error"
		}
		m.BacktestRunsTotal.WithLabelValues(status).Inc()
	}
	if err != nil {
		logger.Fatalf("Backtest failed: %v", err)
	}

	logger.WithFields(logrus.Fields{
		"run_id":   result.Run.RunID,
		"trades":   result.Metrics.TotalTrades,
		"duration": time.Since(started).Round(time.Millisecond),
	}).Info("Backtest complete")

	report, err := backtest.BuildReport(result.Run, time.Now().UTC())
	if err != nil {
		logger.Fatalf("Failed to build report: %v", err)
	}

	backtest.RenderConsole(os.Stdout, report)
	backtest.RenderLedgerConsole(os.Stdout, result.Ledger)

	if err := writeOutputs(*outputDir, report, result, *writeMarkdown, *writeCSV, *writeJSON, logger); err != nil {
		logger.Fatalf("Failed to write report files: %v", err)
	}

	if *persist {
		if err := persistRun(ctx, *postgresDSN, *useMemory, result, logger); err != nil {
			logger.Fatalf("Failed to persist run: %v", err)
		}
		logger.WithField("run_id", result.Run.RunID).Info("Run persisted")
	}
}

func loadConfig(path string, logger *logrus.Logger) (*config.Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		logger.Warnf("Config file %s not found, using defaults", path)
		return config.Default(), nil
	}
	return config.Load(path)
}

// parseDateRange resolves the [from, to] window, defaulting to the last
// 7 days ending at the current UTC midnight.
func parseDateRange(fromStr, toStr string) (time.Time, time.Time, error) {
	to := time.Now().UTC().Truncate(24 * time.Hour)
	from := to.AddDate(0, 0, -7)

	var err error
	if toStr != "" {
		to, err = time.Parse(dateLayout, toStr)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("parse --to: %w", err)
		}
		from = to.AddDate(0, 0, -7)
	}
	if fromStr != "" {
		from, err = time.Parse(dateLayout, fromStr)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("parse --from: %w", err)
		}
	}
	if !from.Before(to) {
		return time.Time{}, time.Time{}, fmt.Errorf("--from %s must precede --to %s", from.Format(dateLayout), to.Format(dateLayout))
	}
	return from, to, nil
}

// buildSource picks the historical data source and optionally wraps it in
// the ClickHouse read-through candle cache.
func buildSource(ctx context.Context, cfg *config.Config, useStub bool, clickhouseDSN string, logger *logrus.Logger) (feed.CandleSource, func(), error) {
	var source feed.CandleSource
	if useStub || cfg.DataProvider == "stub" {
		source = stub.NewSyntheticCandleSource()
	} else {
		provider, ok := cfg.Provider(cfg.DataProvider)
		if !ok {
			return nil, nil, fmt.Errorf("data provider %q is not configured", cfg.DataProvider)
		}
		// Market data endpoints work without credentials.
		source = binance.NewClient(provider.APIKey, provider.APISecret)
	}

	cleanup := func() {}
	if clickhouseDSN != "" {
		conn, err := migrations.RunClickhouseMigrations(ctx, clickhouseDSN)
		if err != nil {
			return nil, nil, fmt.Errorf("connect to clickhouse: %w", err)
		}
		source = feed.NewCachedCandleSource(source, chstore.NewCandleStore(conn), logger.WithField("component", "candle-cache"))
		cleanup = func() { conn.Close() }
	}
	return source, cleanup, nil
}

// writeOutputs writes the markdown, CSV and JSON artifacts under outputDir.
func writeOutputs(outputDir string, report *backtest.Report, result *backtest.Result, markdown, csv, jsonOut bool, logger *logrus.Logger) error {
	if !markdown && !csv && !jsonOut {
		return nil
	}
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	if markdown {
		path := filepath.Join(outputDir, fmt.Sprintf("report_%s.md", report.RunID))
		if err := os.WriteFile(path, []byte(backtest.RenderMarkdown(report)), 0644); err != nil {
			return fmt.Errorf("write markdown report: %w", err)
		}
		logger.Infof("Markdown report written to %s", path)
	}

	if csv {
		path := filepath.Join(outputDir, fmt.Sprintf("ledger_%s.csv", report.RunID))
		f, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("create ledger CSV: %w", err)
		}
		if err := backtest.WriteLedgerCSV(f, result.Ledger); err != nil {
			f.Close()
			return fmt.Errorf("write ledger CSV: %w", err)
		}
		if err := f.Close(); err != nil {
			return fmt.Errorf("close ledger CSV: %w", err)
		}
		logger.Infof("Ledger CSV written to %s", path)
	}

	if jsonOut {
		path := filepath.Join(outputDir, fmt.Sprintf("report_%s.json", report.RunID))
		data, err := json.MarshalIndent(report, "", "  ")
		if err != nil {
			return fmt.Errorf("marshal report: %w", err)
		}
		if err := os.WriteFile(path, data, 0644); err != nil {
			return fmt.Errorf("write JSON report: %w", err)
		}
		logger.Infof("JSON report written to %s", path)
	}
	return nil
}

// persistRun stores the run and its ledger.
func persistRun(ctx context.Context, postgresDSN string, useMemory bool, result *backtest.Result, logger *logrus.Logger) error {
	var (
		runStore    storage.BacktestRunStore
		ledgerStore storage.LedgerStore
	)

	if useMemory {
		logger.Warn("Persisting to in-memory stores; data is lost on exit")
		runStore = memory.NewBacktestRunStore()
		ledgerStore = memory.NewLedgerStore()
	} else {
		pool, err := pgstore.NewPool(ctx, postgresDSN)
		if err != nil {
			return fmt.Errorf("connect to postgres: %w", err)
		}
		defer pool.Close()

		if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
			return fmt.Errorf("run migrations: %w", err)
		}
		runStore = pgstore.NewBacktestRunStore(pool)
		ledgerStore = pgstore.NewLedgerStore(pool)
	}

	if err := runStore.Insert(ctx, result.Run); err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	if len(result.Ledger) > 0 {
		if err := ledgerStore.InsertBulk(ctx, result.Ledger); err != nil {
			return fmt.Errorf("insert ledger: %w", err)
		}
	}
	return nil
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
