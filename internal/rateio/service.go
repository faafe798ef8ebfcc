package rateio

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/obrasys-erp/obrasys/internal/ingest"
	"github.com/obrasys-erp/obrasys/internal/ledger"
	"github.com/obrasys-erp/obrasys/internal/shared"
)

// attachLimit bounds concurrent breakdown writes across independent entries.
const attachLimit = 8

// Service runs the administrative cost allocation. It is idempotent: entries
// already carrying a breakdown are never touched, and a second run over an
// unchanged ledger is a no-op.
type Service struct {
	store    ledger.Store
	projects ProjectProvider
	logger   *slog.Logger
}

// NewService constructs the allocator.
func NewService(store ledger.Store, projects ProjectProvider, logger *slog.Logger) *Service {
	return &Service{store: store, projects: projects, logger: logger}
}

// Run allocates the period's administrative expenses across active projects
// by revenue share. Zero revenue or zero administrative expense yields an
// InsufficientData result without mutating anything.
func (s *Service) Run(ctx context.Context, period shared.Period) (Result, error) {
	result := Result{Period: period}

	projects, err := s.projects.ActiveProjects(ctx)
	if err != nil {
		return result, fmt.Errorf("rateio: active projects: %w", err)
	}
	active := make(map[string]struct{}, len(projects))
	for _, p := range projects {
		active[p.ID] = struct{}{}
	}

	revenueByProject, totalRevenue, err := s.periodRevenue(ctx, period, active)
	if err != nil {
		return result, err
	}

	adminFlag := true
	adminExpenses, err := s.store.ListEntries(ctx, ledger.Filter{
		Kind:           ledger.KindExpense,
		Administrative: &adminFlag,
		Period:         period,
	})
	if err != nil {
		return result, fmt.Errorf("rateio: admin expenses: %w", err)
	}
	var totalAdmin float64
	for _, e := range adminExpenses {
		totalAdmin += e.Amount
	}

	result.TotalRevenue = totalRevenue
	result.TotalAdminExpense = totalAdmin
	if totalRevenue == 0 || totalAdmin == 0 {
		result.InsufficientData = true
		return result, nil
	}

	for _, p := range projects {
		revenue := revenueByProject[p.ID]
		pct := revenue / totalRevenue * 100
		result.Shares = append(result.Shares, ProjectShare{
			ProjectID:   p.ID,
			ProjectName: p.Name,
			Revenue:     revenue,
			Percentage:  pct,
			Amount:      round2(totalAdmin * pct / 100),
		})
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(attachLimit)
	for _, expense := range adminExpenses {
		if expense.Allocations != nil {
			result.AlreadyAllocated++
			continue
		}
		expense := expense
		g.Go(func() error {
			allocs, warning := buildBreakdown(result.Shares, expense.Amount)
			attached, err := s.store.AttachAllocations(gctx, expense.ID, allocs)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case errors.Is(err, shared.ErrAlreadyAllocated):
				// Lost the race against a concurrent run; the entry is
				// allocated either way.
				result.AlreadyAllocated++
			case err != nil:
				result.Failures = append(result.Failures, shared.BatchFailure{Item: expense.ID, Reason: err.Error()})
				s.logger.Warn("attach allocation failed", slog.String("entry", expense.ID), slog.Any("error", err))
			case attached:
				result.Allocated++
				if warning != "" {
					result.Warnings = append(result.Warnings, warning)
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return result, err
	}
	return result, nil
}

// periodRevenue sums received measurement revenue per active project for the
// period. Revenue attributed to projects outside the active set is excluded
// from the total as well, so the computed shares always cover 100% of it.
func (s *Service) periodRevenue(ctx context.Context, period shared.Period, active map[string]struct{}) (map[string]float64, float64, error) {
	entries, err := s.store.ListEntries(ctx, ledger.Filter{
		Kind:     ledger.KindRevenue,
		Status:   ledger.StatusReceived,
		Category: ingest.CategoryMeasurement,
		Period:   period,
	})
	if err != nil {
		return nil, 0, fmt.Errorf("rateio: period revenue: %w", err)
	}
	byProject := make(map[string]float64)
	var total float64
	for _, e := range entries {
		if _, ok := active[e.ProjectID]; !ok {
			continue
		}
		byProject[e.ProjectID] += e.Amount
		total += e.Amount
	}
	return byProject, total, nil
}

// buildBreakdown scales the period shares onto one expense amount. The last
// slice absorbs the rounding remainder; a residue beyond the tolerance is
// surfaced as a warning rather than silently dropped.
func buildBreakdown(shares []ProjectShare, amount float64) ([]ledger.ProjectAllocation, string) {
	allocs := make([]ledger.ProjectAllocation, 0, len(shares))
	var assigned float64
	for i, share := range shares {
		slice := round2(amount * share.Percentage / 100)
		if i == len(shares)-1 {
			slice = round2(amount - assigned)
		}
		assigned += slice
		allocs = append(allocs, ledger.ProjectAllocation{
			ProjectID:  share.ProjectID,
			Percentage: share.Percentage,
			Amount:     slice,
		})
	}
	if diff := math.Abs(assigned - amount); diff > ledger.AllocationTolerance {
		return allocs, fmt.Sprintf("allocation for amount %.2f off by %.4f", amount, diff)
	}
	return allocs, ""
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
