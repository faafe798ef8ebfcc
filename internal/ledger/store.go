package ledger

import (
	"context"

	"github.com/obrasys-erp/obrasys/internal/shared"
)

// Store is the persistence abstraction shared by the ingestion mapper, the
// administrative allocator, the payroll generator and the summary projection.
// Implementations must be safe for concurrent use: InsertEntry and
// AttachAllocations carry the atomicity guarantees the engine relies on.
type Store interface {
	// InsertEntry persists the entry unless its dedup key already exists.
	// It reports true when a row was created; a duplicate key is not an error.
	InsertEntry(ctx context.Context, entry Entry) (bool, error)

	// GetEntry loads one entry by id, shared.ErrNotFound when missing.
	GetEntry(ctx context.Context, id string) (Entry, error)

	// ListEntries returns the entries matching the filter.
	ListEntries(ctx context.Context, filter Filter) ([]Entry, error)

	// AttachAllocations sets the allocation breakdown if and only if the
	// entry does not carry one yet (compare-and-swap on allocations IS NULL).
	// The breakdown must satisfy ValidateAllocations against the entry
	// amount. It reports true when the breakdown was attached,
	// shared.ErrAlreadyAllocated when one is already in place.
	AttachAllocations(ctx context.Context, entryID string, allocs []ProjectAllocation) (bool, error)

	// UpdateEntryStatus moves an entry through the settlement workflow.
	UpdateEntryStatus(ctx context.Context, entryID string, status Status) error

	// UpsertPayroll creates or replaces the payroll record for the
	// (employee, period) key of the given record.
	UpsertPayroll(ctx context.Context, record PayrollEntry) error

	// ListPayroll returns payroll records for the period.
	ListPayroll(ctx context.Context, period shared.Period) ([]PayrollEntry, error)
}

// Invalidator is notified after every ledger mutation so read-side caches can
// drop stale projections synchronously with the write.
type Invalidator interface {
	Bump(ctx context.Context) error
}
