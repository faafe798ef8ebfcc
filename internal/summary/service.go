package summary

import (
	"context"
	"fmt"
	"time"

	"github.com/obrasys-erp/obrasys/internal/ledger"
)

// upcomingWindow is how far ahead a pending due date counts as upcoming.
const upcomingWindow = 7 * 24 * time.Hour

// Summary is the financial dashboard projection. Every figure is derived
// from the ledger snapshot on read; nothing here is a second source of truth.
type Summary struct {
	Revenue            float64 `json:"revenue"`
	Expense            float64 `json:"expense"`
	ProvisionedRevenue float64 `json:"provisioned_revenue"`
	ProvisionedExpense float64 `json:"provisioned_expense"`
	Balance            float64 `json:"balance"`
	ProjectedBalance   float64 `json:"projected_balance"`
	OverdueCount       int     `json:"overdue_count"`
	UpcomingCount      int     `json:"upcoming_count"`
	AdministrativeCost float64 `json:"administrative_cost"`
	NetProfit          float64 `json:"net_profit"`
}

// Service computes the projection, optionally behind the versioned cache.
type Service struct {
	store ledger.Store
	cache *Cache
	now   func() time.Time
}

// NewService constructs the aggregator. A nil cache disables caching.
func NewService(store ledger.Store, cache *Cache) *Service {
	return &Service{store: store, cache: cache, now: time.Now}
}

// WithNow overrides the clock, for tests.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// Financial returns the ledger-wide summary.
func (s *Service) Financial(ctx context.Context) (Summary, error) {
	key, err := s.cache.BuildKey(ctx, "finance", "summary")
	if err != nil {
		return Summary{}, fmt.Errorf("summary: cache key: %w", err)
	}
	var out Summary
	err = s.cache.FetchJSON(ctx, key, &out, func(ctx context.Context) (interface{}, error) {
		return s.compute(ctx)
	})
	if err != nil {
		return Summary{}, err
	}
	return out, nil
}

func (s *Service) compute(ctx context.Context) (Summary, error) {
	entries, err := s.store.ListEntries(ctx, ledger.Filter{})
	if err != nil {
		return Summary{}, fmt.Errorf("summary: list entries: %w", err)
	}
	return Compute(entries, s.now().UTC()), nil
}

// Compute folds a ledger snapshot into the summary figures. Pure; exported
// so callers holding a snapshot can project without a store round-trip.
func Compute(entries []ledger.Entry, now time.Time) Summary {
	var sum Summary
	horizon := now.Add(upcomingWindow)
	for _, e := range entries {
		switch e.Kind {
		case ledger.KindRevenue:
			if e.Status == ledger.StatusReceived {
				sum.Revenue += e.Amount
			}
		case ledger.KindExpense:
			if e.Status == ledger.StatusPaid {
				sum.Expense += e.Amount
			}
			if e.Administrative {
				sum.AdministrativeCost += e.Amount
			}
		case ledger.KindProvisionedRevenue:
			if e.Status == ledger.StatusPending {
				sum.ProvisionedRevenue += e.Amount
			}
		case ledger.KindProvisionedExpense:
			if e.Status == ledger.StatusPending {
				sum.ProvisionedExpense += e.Amount
			}
		}
		switch {
		case e.Status == ledger.StatusOverdue:
			sum.OverdueCount++
		case e.Status == ledger.StatusPending && e.DueDate != nil:
			switch {
			case e.DueDate.Before(now):
				sum.OverdueCount++
			case e.DueDate.Before(horizon):
				sum.UpcomingCount++
			}
		}
	}
	sum.Balance = sum.Revenue - sum.Expense
	sum.ProjectedBalance = (sum.Revenue + sum.ProvisionedRevenue) - (sum.Expense + sum.ProvisionedExpense)
	sum.NetProfit = sum.Revenue - sum.Expense - sum.AdministrativeCost
	return sum
}
