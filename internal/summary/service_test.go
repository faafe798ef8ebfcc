package summary_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/obrasys-erp/obrasys/internal/ledger"
	"github.com/obrasys-erp/obrasys/internal/ledger/inmemory"
	"github.com/obrasys-erp/obrasys/internal/summary"
)

var testNow = time.Date(2026, time.April, 15, 12, 0, 0, 0, time.UTC)

func seedEntries(t *testing.T, store *inmemory.Store) {
	t.Helper()
	ctx := context.Background()

	insert := func(e ledger.Entry) {
		created, err := store.InsertEntry(ctx, e)
		require.NoError(t, err)
		require.True(t, created)
	}

	insert(ledger.NewRevenue("contract:1:revenue", "Contrato", "Contrato", 10000, testNow.AddDate(0, 0, -10), ledger.StatusReceived))
	insert(ledger.NewRevenue("dailylog:1:measurement-revenue", "Medição", "Medição", 5000, testNow.AddDate(0, 0, -5), ledger.StatusReceived))
	insert(ledger.NewExpense("purchase:1:expense", "Materiais", "Compra", 4000, testNow.AddDate(0, 0, -7), ledger.StatusPaid, false))
	insert(ledger.NewExpense("admin:1:expense", "Administrativo", "Aluguel", 1000, testNow.AddDate(0, 0, -3), ledger.StatusPaid, true))
	insert(ledger.NewProvisionedRevenue("budget:1:provisioned-revenue", "Orçamento", "Orçamento", 250000, testNow.AddDate(0, 0, -20)))

	overdue := ledger.NewExpense("purchase:2:expense", "Materiais", "Compra vencida", 300, testNow.AddDate(0, 0, -40), ledger.StatusPending, false)
	pastDue := testNow.AddDate(0, 0, -2)
	overdue.DueDate = &pastDue
	insert(overdue)

	upcoming := ledger.NewExpense("purchase:3:expense", "Materiais", "Compra a vencer", 200, testNow.AddDate(0, 0, -1), ledger.StatusPending, false)
	soonDue := testNow.AddDate(0, 0, 3)
	upcoming.DueDate = &soonDue
	insert(upcoming)
}

func TestCompute(t *testing.T) {
	store := inmemory.NewStore()
	seedEntries(t, store)

	entries, err := store.ListEntries(context.Background(), ledger.Filter{})
	require.NoError(t, err)

	sum := summary.Compute(entries, testNow)
	require.InDelta(t, 15000, sum.Revenue, 0.001)
	require.InDelta(t, 5000, sum.Expense, 0.001)
	require.InDelta(t, 250000, sum.ProvisionedRevenue, 0.001)
	require.InDelta(t, 10000, sum.Balance, 0.001)
	require.InDelta(t, 260000, sum.ProjectedBalance, 0.001)
	require.InDelta(t, 1000, sum.AdministrativeCost, 0.001)
	require.InDelta(t, 9000, sum.NetProfit, 0.001)
	require.Equal(t, 1, sum.OverdueCount)
	require.Equal(t, 1, sum.UpcomingCount)
}

func TestComputeCountsOverdueStatus(t *testing.T) {
	store := inmemory.NewStore()
	ctx := context.Background()

	entry := ledger.NewExpense("purchase:9:expense", "Materiais", "Compra", 300, testNow.AddDate(0, 0, -40), ledger.StatusOverdue, false)
	_, err := store.InsertEntry(ctx, entry)
	require.NoError(t, err)

	entries, err := store.ListEntries(ctx, ledger.Filter{})
	require.NoError(t, err)
	sum := summary.Compute(entries, testNow)
	require.Equal(t, 1, sum.OverdueCount)
	// Not yet paid, so it never lands in the realized expense figure.
	require.Zero(t, sum.Expense)
}

func TestFinancialWithoutCache(t *testing.T) {
	store := inmemory.NewStore()
	seedEntries(t, store)

	service := summary.NewService(store, nil)
	service.WithNow(func() time.Time { return testNow })

	sum, err := service.Financial(context.Background())
	require.NoError(t, err)
	require.InDelta(t, 15000, sum.Revenue, 0.001)
}

func TestFinancialCacheInvalidatedByLedgerWrites(t *testing.T) {
	mr := miniredis.RunT(t)
	redisClient := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	cache := summary.NewCache(redisClient, time.Minute)

	store := inmemory.NewStore()
	store.SetInvalidator(cache)
	seedEntries(t, store)

	service := summary.NewService(store, cache)
	service.WithNow(func() time.Time { return testNow })
	ctx := context.Background()

	sum, err := service.Financial(ctx)
	require.NoError(t, err)
	require.InDelta(t, 15000, sum.Revenue, 0.001)

	// A new ledger write bumps the cache version, so the next read reflects it.
	extra := ledger.NewRevenue("contract:2:revenue", "Contrato", "Aditivo", 2000, testNow.AddDate(0, 0, -1), ledger.StatusReceived)
	created, err := store.InsertEntry(ctx, extra)
	require.NoError(t, err)
	require.True(t, created)

	sum, err = service.Financial(ctx)
	require.NoError(t, err)
	require.InDelta(t, 17000, sum.Revenue, 0.001)
}

func TestFinancialServesCachedProjection(t *testing.T) {
	mr := miniredis.RunT(t)
	redisClient := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	cache := summary.NewCache(redisClient, time.Minute)

	store := inmemory.NewStore()
	seedEntries(t, store)

	service := summary.NewService(store, cache)
	service.WithNow(func() time.Time { return testNow })
	ctx := context.Background()

	first, err := service.Financial(ctx)
	require.NoError(t, err)

	// Without an invalidator wired, a direct write is invisible until the TTL
	// or a bump; the projection comes from the cache.
	extra := ledger.NewRevenue("contract:3:revenue", "Contrato", "Aditivo", 9999, testNow, ledger.StatusReceived)
	_, err = store.InsertEntry(ctx, extra)
	require.NoError(t, err)

	second, err := service.Financial(ctx)
	require.NoError(t, err)
	require.InDelta(t, first.Revenue, second.Revenue, 0.001)
}
