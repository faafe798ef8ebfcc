// Package inmemory provides a ledger store for tests and local runs.
package inmemory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/obrasys-erp/obrasys/internal/ledger"
	"github.com/obrasys-erp/obrasys/internal/shared"
)

// Store is an in-memory implementation of ledger.Store. It is safe for
// concurrent use and mirrors the conditional semantics of the PostgreSQL
// repository: dedup-keyed inserts and allocate-once updates.
type Store struct {
	mu          sync.RWMutex
	entries     map[string]ledger.Entry
	byDedupKey  map[string]string
	payroll     map[string]ledger.PayrollEntry
	invalidator ledger.Invalidator
}

var _ ledger.Store = (*Store)(nil)

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		entries:    make(map[string]ledger.Entry),
		byDedupKey: make(map[string]string),
		payroll:    make(map[string]ledger.PayrollEntry),
	}
}

// SetInvalidator wires the cache invalidation hook.
func (s *Store) SetInvalidator(inv ledger.Invalidator) {
	s.invalidator = inv
}

// InsertEntry persists the entry unless its dedup key already exists.
func (s *Store) InsertEntry(ctx context.Context, entry ledger.Entry) (bool, error) {
	if err := entry.Validate(); err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.byDedupKey[entry.DedupKey]; exists {
		return false, nil
	}
	s.entries[entry.ID] = entry
	s.byDedupKey[entry.DedupKey] = entry.ID
	s.bump(ctx)
	return true, nil
}

// GetEntry loads one entry by id.
func (s *Store) GetEntry(ctx context.Context, id string) (ledger.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entry, ok := s.entries[id]
	if !ok {
		return ledger.Entry{}, shared.ErrNotFound
	}
	return entry, nil
}

// ListEntries returns entries matching the filter, oldest first.
func (s *Store) ListEntries(ctx context.Context, filter ledger.Filter) ([]ledger.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []ledger.Entry
	for _, entry := range s.entries {
		if filter.Matches(entry) {
			out = append(out, entry)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].TransactionDate.Equal(out[j].TransactionDate) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].TransactionDate.Before(out[j].TransactionDate)
	})
	return out, nil
}

// AttachAllocations sets the breakdown only when none exists yet. The
// breakdown must satisfy the allocation invariants against the entry amount.
func (s *Store) AttachAllocations(ctx context.Context, entryID string, allocs []ledger.ProjectAllocation) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.entries[entryID]
	if !ok {
		return false, shared.ErrNotFound
	}
	if err := ledger.ValidateAllocations(allocs, entry.Amount); err != nil {
		return false, err
	}
	if entry.Allocations != nil {
		return false, shared.ErrAlreadyAllocated
	}
	entry.Allocations = append([]ledger.ProjectAllocation(nil), allocs...)
	entry.UpdatedAt = time.Now().UTC()
	s.entries[entryID] = entry
	s.bump(ctx)
	return true, nil
}

// UpdateEntryStatus moves an entry through the settlement workflow.
func (s *Store) UpdateEntryStatus(ctx context.Context, entryID string, status ledger.Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.entries[entryID]
	if !ok {
		return shared.ErrNotFound
	}
	entry.Status = status
	entry.UpdatedAt = time.Now().UTC()
	s.entries[entryID] = entry
	s.bump(ctx)
	return nil
}

// UpsertPayroll creates or replaces the payroll record for its (employee, period) key.
func (s *Store) UpsertPayroll(ctx context.Context, record ledger.PayrollEntry) error {
	if err := record.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	key := record.EmployeeID + "|" + record.Period.String()
	if existing, ok := s.payroll[key]; ok {
		record.ID = existing.ID
		record.CreatedAt = existing.CreatedAt
	}
	s.payroll[key] = record
	s.bump(ctx)
	return nil
}

// ListPayroll returns payroll records for the period.
func (s *Store) ListPayroll(ctx context.Context, period shared.Period) ([]ledger.PayrollEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []ledger.PayrollEntry
	for _, rec := range s.payroll {
		if rec.Period == period {
			out = append(out, rec)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EmployeeName < out[j].EmployeeName })
	return out, nil
}

func (s *Store) bump(ctx context.Context) {
	if s.invalidator == nil {
		return
	}
	_ = s.invalidator.Bump(ctx)
}
