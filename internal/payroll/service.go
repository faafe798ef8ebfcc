// Package payroll derives per-employee payroll records from daily-log labor
// entries, applying statutory withholding.
package payroll

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/obrasys-erp/obrasys/internal/ledger"
	"github.com/obrasys-erp/obrasys/internal/shared"
)

// LaborEntry is one daily-log labor line for the period. The recorded line
// total is trusted; rate × hours is never recomputed here.
type LaborEntry struct {
	DailyLogID string  `json:"daily_log_id"`
	EmployeeID string  `json:"employee_id" validate:"required"`
	Name       string  `json:"name"`
	Role       string  `json:"role"`
	HourlyRate float64 `json:"hourly_rate" validate:"gte=0"`
	Total      float64 `json:"total" validate:"gte=0"`
}

// Config carries the statutory withholding percentages. FGTS is an
// employer-side contribution and is not subtracted from net pay.
type Config struct {
	INSSPct float64
	IRRFPct float64
	FGTSPct float64
}

// Result is the outcome of one payroll run.
type Result struct {
	Period   shared.Period         `json:"period"`
	Records  []ledger.PayrollEntry `json:"records"`
	Failures []shared.BatchFailure `json:"failures,omitempty"`
}

// LaborProvider reads the period's labor entries for the scheduled run.
type LaborProvider interface {
	LaborEntries(ctx context.Context, period shared.Period) ([]LaborEntry, error)
}

// Service is the payroll generator. Records are upserted per
// (employee, period), so payroll for an open month can be recalculated as
// daily logs keep arriving.
type Service struct {
	store  ledger.Store
	labor  LaborProvider
	logger *slog.Logger
	cfg    Config
	now    func() time.Time
}

// NewService constructs the generator. The labor provider may be nil when
// callers always pass entries explicitly.
func NewService(store ledger.Store, labor LaborProvider, logger *slog.Logger, cfg Config) *Service {
	return &Service{store: store, labor: labor, logger: logger, cfg: cfg, now: time.Now}
}

// WithNow overrides the clock, for tests.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// RunPeriod generates payroll from the provider's labor entries.
func (s *Service) RunPeriod(ctx context.Context, period shared.Period) (Result, error) {
	if s.labor == nil {
		return Result{}, fmt.Errorf("payroll: no labor provider configured")
	}
	entries, err := s.labor.LaborEntries(ctx, period)
	if err != nil {
		return Result{}, fmt.Errorf("payroll: labor entries: %w", err)
	}
	return s.Generate(ctx, period, entries)
}

// ListPeriod returns the stored payroll records for the period.
func (s *Service) ListPeriod(ctx context.Context, period shared.Period) ([]ledger.PayrollEntry, error) {
	records, err := s.store.ListPayroll(ctx, period)
	if err != nil {
		return nil, fmt.Errorf("payroll: list period: %w", err)
	}
	return records, nil
}

// Generate groups labor entries by employee, applies withholding and upserts
// one payroll record per (employee, period). A failing record never aborts
// the rest of the run.
func (s *Service) Generate(ctx context.Context, period shared.Period, entries []LaborEntry) (Result, error) {
	result := Result{Period: period}
	grouped := groupByEmployee(entries)

	employeeIDs := make([]string, 0, len(grouped))
	for id := range grouped {
		employeeIDs = append(employeeIDs, id)
	}
	sort.Strings(employeeIDs)

	now := s.now().UTC()
	for _, employeeID := range employeeIDs {
		lines := grouped[employeeID]
		record := s.buildRecord(employeeID, period, lines, now)
		if err := s.store.UpsertPayroll(ctx, record); err != nil {
			result.Failures = append(result.Failures, shared.BatchFailure{Item: employeeID, Reason: err.Error()})
			s.logger.Warn("payroll upsert failed", slog.String("employee", employeeID), slog.Any("error", err))
			continue
		}
		result.Records = append(result.Records, record)
	}
	return result, nil
}

func (s *Service) buildRecord(employeeID string, period shared.Period, lines []LaborEntry, now time.Time) ledger.PayrollEntry {
	var gross float64
	days := make(map[string]struct{}, len(lines))
	for i, line := range lines {
		gross += line.Total
		if line.DailyLogID != "" {
			days[line.DailyLogID] = struct{}{}
		} else {
			days[fmt.Sprintf("line-%d", i)] = struct{}{}
		}
	}
	daysWorked := len(days)

	inss := round2(gross * s.cfg.INSSPct / 100)
	irrf := round2(gross * s.cfg.IRRFPct / 100)
	fgts := round2(gross * s.cfg.FGTSPct / 100)
	net := round2(gross - inss - irrf)

	var dailyRate float64
	if daysWorked > 0 {
		dailyRate = round2(gross / float64(daysWorked))
	}

	last := lines[len(lines)-1]
	return ledger.PayrollEntry{
		ID:           uuid.NewString(),
		EmployeeID:   employeeID,
		EmployeeName: last.Name,
		Role:         last.Role,
		Period:       period,
		DaysWorked:   daysWorked,
		DailyRate:    dailyRate,
		Gross:        round2(gross),
		INSS:         inss,
		IRRF:         irrf,
		FGTS:         fgts,
		Net:          net,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

func groupByEmployee(entries []LaborEntry) map[string][]LaborEntry {
	grouped := make(map[string][]LaborEntry)
	for _, e := range entries {
		if e.EmployeeID == "" {
			continue
		}
		grouped[e.EmployeeID] = append(grouped[e.EmployeeID], e)
	}
	return grouped
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
