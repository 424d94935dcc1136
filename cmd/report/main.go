// Package main regenerates the performance report for a persisted backtest
// run: it loads the run and its ledger from PostgreSQL and renders the
// console, markdown, CSV and JSON views.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"volharvest/internal/backtest"
	"volharvest/internal/storage"
	"volharvest/internal/storage/migrations"
	pgstore "volharvest/internal/storage/postgres"
)

func main() {
	_ = godotenv.Load()

	runID := flag.String("run-id", "", "Backtest run ID to report on (required unless --list)")
	list := flag.Bool("list", false, "List persisted runs and exit")
	postgresDSN := flag.String("postgres-dsn", os.Getenv("POSTGRES_DSN"), "PostgreSQL connection string")
	outputDir := flag.String("output-dir", "output", "Directory for report files")
	writeMarkdown := flag.Bool("markdown", true, "Write a markdown report file")
	writeCSV := flag.Bool("csv", true, "Write the trade ledger as CSV")
	writeJSON := flag.Bool("json", false, "Write the report as JSON")
	showLedger := flag.Bool("ledger", false, "Print the full trade ledger to the console")
	logLevel := flag.String("log-level", envOr("LOG_LEVEL", "info"), "Log level (debug, info, warn, error)")

	flag.Parse()

	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	if lvl, err := logrus.ParseLevel(*logLevel); err == nil {
		logger.SetLevel(lvl)
	}

	if *postgresDSN == "" {
		logger.Fatal("--postgres-dsn is required")
	}
	if !*list && *runID == "" {
		logger.Fatal("--run-id is required (or use --list)")
	}

	ctx := context.Background()

	pool, err := pgstore.NewPool(ctx, *postgresDSN)
	if err != nil {
		logger.Fatalf("Failed to connect to postgres: %v", err)
	}
	defer pool.Close()

	if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
		logger.Fatalf("Failed to run migrations: %v", err)
	}

	runStore := pgstore.NewBacktestRunStore(pool)
	ledgerStore := pgstore.NewLedgerStore(pool)

	if *list {
		if err := listRuns(ctx, runStore); err != nil {
			logger.Fatalf("Failed to list runs: %v", err)
		}
		return
	}

	generator := backtest.NewGenerator(runStore, ledgerStore)
	report, ledger, err := generator.Generate(ctx, *runID)
	if err != nil {
		logger.Fatalf("Failed to generate report: %v", err)
	}

	backtest.RenderConsole(os.Stdout, report)
	if *showLedger {
		backtest.RenderLedgerConsole(os.Stdout, ledger)
	}

	if !*writeMarkdown && !*writeCSV && !*writeJSON {
		return
	}
	if err := os.MkdirAll(*outputDir, 0755); err != nil {
		logger.Fatalf("Failed to create output directory: %v", err)
	}

	if *writeMarkdown {
		path := filepath.Join(*outputDir, fmt.Sprintf("report_%s.md", report.RunID))
		if err := os.WriteFile(path, []byte(backtest.RenderMarkdown(report)), 0644); err != nil {
			logger.Fatalf("Failed to write markdown report: %v", err)
		}
		logger.Infof("Markdown report written to %s", path)
	}

	if *writeCSV {
		path := filepath.Join(*outputDir, fmt.Sprintf("ledger_%s.csv", report.RunID))
		f, err := os.Create(path)
		if err != nil {
			logger.Fatalf("Failed to create ledger CSV: %v", err)
		}
		if err := backtest.WriteLedgerCSV(f, ledger); err != nil {
			f.Close()
			logger.Fatalf("Failed to write ledger CSV: %v", err)
		}
		if err := f.Close(); err != nil {
			logger.Fatalf("Failed to close ledger CSV: %v", err)
		}
		logger.Infof("Ledger CSV written to %s", path)
	}

	if *writeJSON {
		path := filepath.Join(*outputDir, fmt.Sprintf("report_%s.json", report.RunID))
		data, err := json.MarshalIndent(report, "", "  ")
		if err != nil {
			logger.Fatalf("Failed to marshal report: %v", err)
		}
		if err := os.WriteFile(path, data, 0644); err != nil {
			logger.Fatalf("Failed to write JSON report: %v", err)
		}
		logger.Infof("JSON report written to %s", path)
	}
}

// listRuns prints one line per persisted run, oldest first.
func listRuns(ctx context.Context, store storage.BacktestRunStore) error {
	runs, err := store.GetAll(ctx)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Println("No persisted runs.")
		return nil
	}
	for _, r := range runs {
		trades := 0
		if r.Metrics != nil {
			trades = r.Metrics.TotalTrades
		}
		fmt.Printf("%s  %s  %s..%s  symbols=%v  trades=%d\n",
			r.RunID,
			r.CreatedAt.Format(time.RFC3339),
			r.StartDate.Format("2006-01-02"),
			r.EndDate.Format("2006-01-02"),
			r.Symbols,
			trades,
		)
	}
	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
