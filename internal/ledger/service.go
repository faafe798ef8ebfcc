package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/obrasys-erp/obrasys/internal/shared"
)

// ErrInvalidTransition indicates a settlement status change not allowed.
var ErrInvalidTransition = errors.New("ledger: status transition invalid")

// Service owns the entry settlement workflow that surrounds the engine:
// marking entries paid/received/cancelled and deriving the OVERDUE state.
type Service struct {
	store Store
	now   func() time.Time
}

// NewService constructs the workflow service.
func NewService(store Store) *Service {
	return &Service{store: store, now: time.Now}
}

// WithNow overrides the clock, for tests.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// Settle moves a pending or overdue entry to its terminal settled status:
// PAID for expenses, RECEIVED for revenues.
func (s *Service) Settle(ctx context.Context, entryID string) (Entry, error) {
	entry, err := s.store.GetEntry(ctx, entryID)
	if err != nil {
		return Entry{}, err
	}
	if entry.Status != StatusPending && entry.Status != StatusOverdue {
		return Entry{}, fmt.Errorf("%w: %s -> settled", ErrInvalidTransition, entry.Status)
	}
	target := StatusPaid
	if entry.Kind == KindRevenue || entry.Kind == KindProvisionedRevenue {
		target = StatusReceived
	}
	if err := s.store.UpdateEntryStatus(ctx, entryID, target); err != nil {
		return Entry{}, err
	}
	entry.Status = target
	return entry, nil
}

// Cancel voids a not-yet-settled entry.
func (s *Service) Cancel(ctx context.Context, entryID string) error {
	entry, err := s.store.GetEntry(ctx, entryID)
	if err != nil {
		return err
	}
	if entry.Status == StatusPaid || entry.Status == StatusReceived {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, entry.Status, StatusCancelled)
	}
	return s.store.UpdateEntryStatus(ctx, entryID, StatusCancelled)
}

// RefreshOverdue flips pending entries whose due date has passed to OVERDUE
// and reports how many were updated.
func (s *Service) RefreshOverdue(ctx context.Context) (int, error) {
	now := s.now().UTC()
	entries, err := s.store.ListEntries(ctx, Filter{Status: StatusPending, DueBefore: &now})
	if err != nil {
		return 0, err
	}
	updated := 0
	for _, entry := range entries {
		if err := s.store.UpdateEntryStatus(ctx, entry.ID, StatusOverdue); err != nil {
			if errors.Is(err, shared.ErrNotFound) {
				continue
			}
			return updated, err
		}
		updated++
	}
	return updated, nil
}

// ProjectEntries lists a project's entries, optionally scoped to a period and kind.
func (s *Service) ProjectEntries(ctx context.Context, projectID string, period shared.Period, kind Kind) ([]Entry, error) {
	if projectID == "" {
		return nil, shared.NewValidationError("project_id", "required")
	}
	return s.store.ListEntries(ctx, Filter{ProjectID: projectID, Period: period, Kind: kind})
}
