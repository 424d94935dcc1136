package backtest

import (
	"fmt"
	"io"

	"github.com/gocarina/gocsv"

	"volharvest/internal/domain"
)

// WriteLedgerCSV exports ledger entries as CSV using the csv tags on
// domain.LedgerEntry.
func WriteLedgerCSV(w io.Writer, entries []*domain.LedgerEntry) error {
	if err := gocsv.Marshal(&entries, w); err != nil {
		return fmt.Errorf("backtest: write ledger csv: %w", err)
	}
	return nil
}

// ReadLedgerCSV imports ledger entries from CSV. Entries exported from
// other environments load standalone; no run record is required.
func ReadLedgerCSV(r io.Reader) ([]*domain.LedgerEntry, error) {
	var entries []*domain.LedgerEntry
	if err := gocsv.Unmarshal(r, &entries); err != nil {
		return nil, fmt.Errorf("backtest: read ledger csv: %w", err)
	}
	return entries, nil
}
