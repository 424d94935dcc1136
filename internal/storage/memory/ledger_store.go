package memory

import (
	"context"
	"sort"
	"sync"

	"volharvest/internal/domain"
	"volharvest/internal/storage"
)

// LedgerStore is an in-memory implementation of storage.LedgerStore.
type LedgerStore struct {
	mu   sync.RWMutex
	data map[string]*domain.LedgerEntry // keyed by trade_id
}

// NewLedgerStore creates a new in-memory ledger store.
func NewLedgerStore() *LedgerStore {
	return &LedgerStore{
		data: make(map[string]*domain.LedgerEntry),
	}
}

// Insert adds a new ledger entry. Returns ErrDuplicateKey if trade_id exists.
func (s *LedgerStore) Insert(_ context.Context, e *domain.LedgerEntry) error {
	if e == nil || e.TradeID == "" || e.RunID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[e.TradeID]; exists {
		return storage.ErrDuplicateKey
	}

	entryCopy := *e
	s.data[e.TradeID] = &entryCopy
	return nil
}

// InsertBulk adds multiple entries. Fails entire batch on duplicate.
func (s *LedgerStore) InsertBulk(_ context.Context, entries []*domain.LedgerEntry) error {
	if len(entries) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Track keys in this batch to detect intra-batch duplicates
	batchKeys := make(map[string]struct{}, len(entries))

	// First pass: check for duplicates (existing + intra-batch)
	for _, e := range entries {
		if e == nil || e.TradeID == "" || e.RunID == "" {
			return storage.ErrInvalidInput
		}
		if _, exists := s.data[e.TradeID]; exists {
			return storage.ErrDuplicateKey
		}
		if _, exists := batchKeys[e.TradeID]; exists {
			return storage.ErrDuplicateKey
		}
		batchKeys[e.TradeID] = struct{}{}
	}

	// Second pass: insert all
	for _, e := range entries {
		entryCopy := *e
		s.data[e.TradeID] = &entryCopy
	}

	return nil
}

// GetByRunID retrieves all entries for a run, ordered by entry_time ASC.
func (s *LedgerStore) GetByRunID(_ context.Context, runID string) ([]*domain.LedgerEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.LedgerEntry
	for _, e := range s.data {
		if e.RunID == runID {
			entryCopy := *e
			result = append(result, &entryCopy)
		}
	}

	sortLedgerEntries(result)
	return result, nil
}

// GetAll retrieves all entries ordered by entry_time ASC.
func (s *LedgerStore) GetAll(_ context.Context) ([]*domain.LedgerEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*domain.LedgerEntry, 0, len(s.data))
	for _, e := range s.data {
		entryCopy := *e
		result = append(result, &entryCopy)
	}

	sortLedgerEntries(result)
	return result, nil
}

// sortLedgerEntries orders by (entry_time ASC, trade_id ASC) for a stable
// order when entries share a timestamp.
func sortLedgerEntries(entries []*domain.LedgerEntry) {
	sort.Slice(entries, func(i, j int) bool {
		if !entries[i].EntryTime.Equal(entries[j].EntryTime) {
			return entries[i].EntryTime.Before(entries[j].EntryTime)
		}
		return entries[i].TradeID < entries[j].TradeID
	})
}

var _ storage.LedgerStore = (*LedgerStore)(nil)
