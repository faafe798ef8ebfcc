package ingest_test

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/obrasys-erp/obrasys/internal/ingest"
	"github.com/obrasys-erp/obrasys/internal/ledger"
	"github.com/obrasys-erp/obrasys/internal/ledger/inmemory"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testSnapshot() ingest.Snapshot {
	approval := time.Date(2026, time.March, 5, 0, 0, 0, 0, time.UTC)
	signature := time.Date(2026, time.March, 20, 0, 0, 0, 0, time.UTC)
	completion := time.Date(2026, time.April, 2, 0, 0, 0, 0, time.UTC)
	logDate := time.Date(2026, time.April, 7, 0, 0, 0, 0, time.UTC)

	return ingest.Snapshot{
		Budgets: []ingest.Budget{
			{ID: "bud-1", Number: "ORC-001", Status: ingest.BudgetStatusApproved, ApprovalDate: approval, TotalValue: 250000, Client: "Horizonte"},
			{ID: "bud-2", Number: "ORC-002", Status: "DRAFT", TotalValue: 90000},
		},
		Contracts: []ingest.Contract{
			{ID: "ctr-1", Number: "CTR-001", Status: ingest.ContractStatusSigned, SignatureDate: signature, TotalValue: 5000, Client: "Horizonte", BudgetID: "bud-1"},
			{ID: "ctr-2", Number: "CTR-002", Status: "NEGOTIATING", TotalValue: 70000},
		},
		Purchases: []ingest.Purchase{
			{ID: "pur-1", Status: ingest.PurchaseStatusCompleted, CompletionDate: completion, TotalValue: 18500,
				MaterialName: "Cimento", Supplier: ingest.Supplier{Name: "Casa do Construtor", PaymentTermDays: 28}},
		},
		DailyLogs: []ingest.DailyLog{
			{
				ID: "log-1", ProjectID: "p1", Date: logDate,
				Measurement: ingest.Measurement{CompletionPercent: 12.5, Value: 31250},
				Labor: []ingest.LaborLine{
					{EmployeeID: "emp-001", Name: "José", Role: "Pedreiro", HourlyRate: 25, TotalValue: 200},
					{EmployeeID: "emp-002", Name: "Marcos", Role: "Servente", HourlyRate: 15, TotalValue: 120},
				},
			},
		},
	}
}

func TestRunMapsFinalizedRecords(t *testing.T) {
	store := inmemory.NewStore()
	service := ingest.NewService(store, testLogger(), ingest.ServiceConfig{Taxes: map[string]float64{"ISS": 5.0, "PIS": 0.65}})
	ctx := context.Background()

	result, err := service.Run(ctx, testSnapshot())
	require.NoError(t, err)
	require.Empty(t, result.Failures)

	// Approved budget, signed contract, completed purchase, plus measurement
	// and labor from the daily log. Drafts and negotiations produce nothing.
	require.Equal(t, 1, result.Budgets.Created)
	require.Equal(t, 1, result.Contracts.Created)
	require.Equal(t, 1, result.Purchases.Created)
	require.Equal(t, 2, result.DailyLogs.Created)
	require.Equal(t, 5, result.Created())

	entries, err := store.ListEntries(ctx, ledger.Filter{})
	require.NoError(t, err)
	require.Len(t, entries, 5)
}

func TestRunIsIdempotent(t *testing.T) {
	store := inmemory.NewStore()
	service := ingest.NewService(store, testLogger(), ingest.ServiceConfig{})
	ctx := context.Background()

	first, err := service.Run(ctx, testSnapshot())
	require.NoError(t, err)
	require.Equal(t, 5, first.Created())

	second, err := service.Run(ctx, testSnapshot())
	require.NoError(t, err)
	require.Zero(t, second.Created())
	require.Equal(t, 5, second.Skipped())

	entries, err := store.ListEntries(ctx, ledger.Filter{})
	require.NoError(t, err)
	require.Len(t, entries, 5)
}

func TestRunContractRevenue(t *testing.T) {
	store := inmemory.NewStore()
	service := ingest.NewService(store, testLogger(), ingest.ServiceConfig{Taxes: map[string]float64{"ISS": 5.0}})
	ctx := context.Background()

	_, err := service.Run(ctx, testSnapshot())
	require.NoError(t, err)

	entries, err := store.ListEntries(ctx, ledger.Filter{Kind: ledger.KindRevenue, Category: ingest.CategoryContract})
	require.NoError(t, err)
	require.Len(t, entries, 1)

	entry := entries[0]
	require.Equal(t, ledger.StatusReceived, entry.Status)
	require.InDelta(t, 5000, entry.Amount, 0.001)
	require.Equal(t, "contract:ctr-1:revenue", entry.DedupKey)
	require.InDelta(t, 5.0, entry.Taxes["ISS"], 0.001)
}

func TestRunRevenueCarriesWithholdings(t *testing.T) {
	store := inmemory.NewStore()
	service := ingest.NewService(store, testLogger(), ingest.ServiceConfig{
		Taxes: map[string]float64{"ISS": 5.0, "ICMS": 18.0},
		Withholdings: map[string]float64{
			"ISS": 5.0, "PIS": 0.65, "COFINS": 3.0, "CSLL": 9.0, "IRRF": 1.5, "INSS": 11.0,
		},
	})
	ctx := context.Background()

	_, err := service.Run(ctx, testSnapshot())
	require.NoError(t, err)

	contracts, err := store.ListEntries(ctx, ledger.Filter{Kind: ledger.KindRevenue, Category: ingest.CategoryContract})
	require.NoError(t, err)
	require.Len(t, contracts, 1)

	// Amounts retained at source on the 5000 contract, rounded to cents.
	withheld := contracts[0].Withholdings
	require.InDelta(t, 250, withheld["ISS"], 0.001)
	require.InDelta(t, 32.5, withheld["PIS"], 0.001)
	require.InDelta(t, 150, withheld["COFINS"], 0.001)
	require.InDelta(t, 450, withheld["CSLL"], 0.001)
	require.InDelta(t, 75, withheld["IRRF"], 0.001)
	require.InDelta(t, 550, withheld["INSS"], 0.001)

	measurements, err := store.ListEntries(ctx, ledger.Filter{Category: ingest.CategoryMeasurement})
	require.NoError(t, err)
	require.Len(t, measurements, 1)
	require.InDelta(t, 1562.5, measurements[0].Withholdings["ISS"], 0.001)

	// Expenses are not subject to source withholding.
	expenses, err := store.ListEntries(ctx, ledger.Filter{Kind: ledger.KindExpense})
	require.NoError(t, err)
	for _, e := range expenses {
		require.Nil(t, e.Withholdings)
	}
}

func TestRunPurchaseExpenseCarriesDueDate(t *testing.T) {
	store := inmemory.NewStore()
	service := ingest.NewService(store, testLogger(), ingest.ServiceConfig{})
	ctx := context.Background()

	_, err := service.Run(ctx, testSnapshot())
	require.NoError(t, err)

	entries, err := store.ListEntries(ctx, ledger.Filter{Kind: ledger.KindExpense, Category: ingest.CategoryMaterials})
	require.NoError(t, err)
	require.Len(t, entries, 1)

	entry := entries[0]
	require.Equal(t, ledger.StatusPending, entry.Status)
	require.Equal(t, "pur-1", entry.PurchaseID)
	require.NotNil(t, entry.DueDate)
	require.Equal(t, entry.TransactionDate.AddDate(0, 0, 28), *entry.DueDate)
}

func TestRunDailyLogProducesMeasurementAndLabor(t *testing.T) {
	store := inmemory.NewStore()
	service := ingest.NewService(store, testLogger(), ingest.ServiceConfig{})
	ctx := context.Background()

	_, err := service.Run(ctx, testSnapshot())
	require.NoError(t, err)

	measurements, err := store.ListEntries(ctx, ledger.Filter{Category: ingest.CategoryMeasurement})
	require.NoError(t, err)
	require.Len(t, measurements, 1)
	require.Equal(t, ledger.StatusReceived, measurements[0].Status)
	require.Equal(t, "p1", measurements[0].ProjectID)
	require.Equal(t, "log-1", measurements[0].DailyLogID)
	require.InDelta(t, 31250, measurements[0].Amount, 0.001)

	labor, err := store.ListEntries(ctx, ledger.Filter{Category: ingest.CategoryLabor})
	require.NoError(t, err)
	require.Len(t, labor, 1)
	require.Equal(t, ledger.StatusPaid, labor[0].Status)
	// Recorded line totals are summed as-is, never recomputed from rates.
	require.InDelta(t, 320, labor[0].Amount, 0.001)
}

func TestRunSkipsEmptyDailyLogSections(t *testing.T) {
	store := inmemory.NewStore()
	service := ingest.NewService(store, testLogger(), ingest.ServiceConfig{})
	ctx := context.Background()

	snapshot := ingest.Snapshot{DailyLogs: []ingest.DailyLog{
		{ID: "log-2", ProjectID: "p1", Date: time.Now().UTC()},
	}}
	result, err := service.Run(ctx, snapshot)
	require.NoError(t, err)
	require.Zero(t, result.Created())

	entries, err := store.ListEntries(ctx, ledger.Filter{})
	require.NoError(t, err)
	require.Empty(t, entries)
}
