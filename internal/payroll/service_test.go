package payroll_test

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/obrasys-erp/obrasys/internal/ledger/inmemory"
	"github.com/obrasys-erp/obrasys/internal/payroll"
	"github.com/obrasys-erp/obrasys/internal/shared"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func defaultConfig() payroll.Config {
	return payroll.Config{INSSPct: 11.0, IRRFPct: 1.5, FGTSPct: 8.0}
}

func april() shared.Period {
	return shared.Period{Month: time.April, Year: 2026}
}

func TestGenerateAppliesWithholding(t *testing.T) {
	store := inmemory.NewStore()
	service := payroll.NewService(store, nil, testLogger(), defaultConfig())
	ctx := context.Background()

	entries := []payroll.LaborEntry{
		{DailyLogID: "log-1", EmployeeID: "emp-001", Name: "José Almeida", Role: "Pedreiro", HourlyRate: 25, Total: 400},
		{DailyLogID: "log-2", EmployeeID: "emp-001", Name: "José Almeida", Role: "Pedreiro", HourlyRate: 25, Total: 600},
	}
	result, err := service.Generate(ctx, april(), entries)
	require.NoError(t, err)
	require.Empty(t, result.Failures)
	require.Len(t, result.Records, 1)

	rec := result.Records[0]
	require.Equal(t, "emp-001", rec.EmployeeID)
	require.Equal(t, 2, rec.DaysWorked)
	require.InDelta(t, 1000, rec.Gross, 0.001)
	require.InDelta(t, 110, rec.INSS, 0.001)
	require.InDelta(t, 15, rec.IRRF, 0.001)
	require.InDelta(t, 80, rec.FGTS, 0.001)
	// FGTS is employer-side and does not reduce net pay.
	require.InDelta(t, 875, rec.Net, 0.001)
	require.InDelta(t, 500, rec.DailyRate, 0.001)
}

func TestGenerateGroupsByEmployee(t *testing.T) {
	store := inmemory.NewStore()
	service := payroll.NewService(store, nil, testLogger(), defaultConfig())
	ctx := context.Background()

	entries := []payroll.LaborEntry{
		{DailyLogID: "log-1", EmployeeID: "emp-002", Name: "Marcos", Role: "Servente", Total: 120},
		{DailyLogID: "log-1", EmployeeID: "emp-001", Name: "José", Role: "Pedreiro", Total: 200},
		{DailyLogID: "log-2", EmployeeID: "emp-001", Name: "José", Role: "Pedreiro", Total: 200},
		{EmployeeID: "", Total: 999}, // no employee, dropped
	}
	result, err := service.Generate(ctx, april(), entries)
	require.NoError(t, err)
	require.Len(t, result.Records, 2)

	// Deterministic ordering by employee id.
	require.Equal(t, "emp-001", result.Records[0].EmployeeID)
	require.Equal(t, 2, result.Records[0].DaysWorked)
	require.InDelta(t, 400, result.Records[0].Gross, 0.001)
	require.Equal(t, "emp-002", result.Records[1].EmployeeID)
	require.Equal(t, 1, result.Records[1].DaysWorked)
}

func TestGenerateCountsDistinctDays(t *testing.T) {
	store := inmemory.NewStore()
	service := payroll.NewService(store, nil, testLogger(), defaultConfig())
	ctx := context.Background()

	// Two lines on the same daily log count as one day worked.
	entries := []payroll.LaborEntry{
		{DailyLogID: "log-1", EmployeeID: "emp-001", Name: "José", Total: 100},
		{DailyLogID: "log-1", EmployeeID: "emp-001", Name: "José", Total: 100},
		{DailyLogID: "log-2", EmployeeID: "emp-001", Name: "José", Total: 100},
	}
	result, err := service.Generate(ctx, april(), entries)
	require.NoError(t, err)
	require.Len(t, result.Records, 1)
	require.Equal(t, 2, result.Records[0].DaysWorked)
	require.InDelta(t, 150, result.Records[0].DailyRate, 0.001)
}

func TestGenerateRecalculatesOpenMonth(t *testing.T) {
	store := inmemory.NewStore()
	service := payroll.NewService(store, nil, testLogger(), defaultConfig())
	ctx := context.Background()

	first := []payroll.LaborEntry{
		{DailyLogID: "log-1", EmployeeID: "emp-001", Name: "José", Total: 400},
	}
	_, err := service.Generate(ctx, april(), first)
	require.NoError(t, err)

	// More logs arrive for the same month; the record is replaced, not duplicated.
	second := append(first, payroll.LaborEntry{DailyLogID: "log-2", EmployeeID: "emp-001", Name: "José", Total: 600})
	_, err = service.Generate(ctx, april(), second)
	require.NoError(t, err)

	records, err := store.ListPayroll(ctx, april())
	require.NoError(t, err)
	require.Len(t, records, 1)
	require.InDelta(t, 1000, records[0].Gross, 0.001)
	require.Equal(t, 2, records[0].DaysWorked)
}

type stubLabor struct {
	entries []payroll.LaborEntry
}

func (s stubLabor) LaborEntries(ctx context.Context, period shared.Period) ([]payroll.LaborEntry, error) {
	return s.entries, nil
}

func TestRunPeriodUsesProvider(t *testing.T) {
	store := inmemory.NewStore()
	provider := stubLabor{entries: []payroll.LaborEntry{
		{DailyLogID: "log-1", EmployeeID: "emp-001", Name: "José", Total: 1000},
	}}
	service := payroll.NewService(store, provider, testLogger(), defaultConfig())

	result, err := service.RunPeriod(context.Background(), april())
	require.NoError(t, err)
	require.Len(t, result.Records, 1)
	require.InDelta(t, 875, result.Records[0].Net, 0.001)
}

func TestRunPeriodWithoutProviderFails(t *testing.T) {
	service := payroll.NewService(inmemory.NewStore(), nil, testLogger(), defaultConfig())
	_, err := service.RunPeriod(context.Background(), april())
	require.Error(t, err)
}
