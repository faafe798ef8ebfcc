package ledger

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/obrasys-erp/obrasys/internal/shared"
)

func TestDedupKey(t *testing.T) {
	key := DedupKey(SourceContract, "ctr-1", SubKindRevenue)
	require.Equal(t, "contract:ctr-1:revenue", key)

	// Distinct sub kinds from the same record never collide.
	other := DedupKey(SourceDailyLog, "log-1", SubKindMeasurement)
	labor := DedupKey(SourceDailyLog, "log-1", SubKindLabor)
	require.NotEqual(t, other, labor)
}

func TestEntryValidate(t *testing.T) {
	date := time.Date(2026, time.April, 10, 0, 0, 0, 0, time.UTC)
	entry := NewRevenue("contract:1:revenue", "Contrato", "Contrato CTR-1", 5000, date, StatusReceived)
	require.NoError(t, entry.Validate())

	bad := entry
	bad.Kind = "BOGUS"
	require.ErrorIs(t, bad.Validate(), shared.ErrValidation)

	bad = entry
	bad.Amount = -1
	require.ErrorIs(t, bad.Validate(), shared.ErrValidation)

	bad = entry
	bad.DedupKey = ""
	require.ErrorIs(t, bad.Validate(), shared.ErrValidation)

	bad = entry
	bad.Administrative = true
	require.ErrorIs(t, bad.Validate(), shared.ErrValidation, "only expenses can be administrative")
}

func TestValidateAllocations(t *testing.T) {
	allocs := []ProjectAllocation{
		{ProjectID: "p1", Percentage: 60, Amount: 600},
		{ProjectID: "p2", Percentage: 40, Amount: 400},
	}
	require.NoError(t, ValidateAllocations(allocs, 1000))

	// Rounding slack within the tolerance is accepted.
	slack := []ProjectAllocation{
		{ProjectID: "p1", Percentage: 33.3333, Amount: 33.33},
		{ProjectID: "p2", Percentage: 33.3333, Amount: 33.33},
		{ProjectID: "p3", Percentage: 33.3334, Amount: 33.34},
	}
	require.NoError(t, ValidateAllocations(slack, 100))

	require.ErrorIs(t, ValidateAllocations(nil, 1000), shared.ErrValidation)

	short := []ProjectAllocation{{ProjectID: "p1", Percentage: 60, Amount: 600}}
	require.ErrorIs(t, ValidateAllocations(short, 1000), shared.ErrValidation)

	mismatch := []ProjectAllocation{
		{ProjectID: "p1", Percentage: 60, Amount: 500},
		{ProjectID: "p2", Percentage: 40, Amount: 400},
	}
	require.ErrorIs(t, ValidateAllocations(mismatch, 1000), shared.ErrValidation)
}

func TestFilterMatches(t *testing.T) {
	date := time.Date(2026, time.April, 10, 0, 0, 0, 0, time.UTC)
	entry := NewExpense("purchase:1:expense", "Materiais", "Compra cimento", 300, date, StatusPending, false)
	due := date.AddDate(0, 0, 28)
	entry.DueDate = &due
	entry.ProjectID = "p1"

	period, err := shared.NewPeriod(time.April, 2026)
	require.NoError(t, err)

	require.True(t, Filter{}.Matches(entry))
	require.True(t, Filter{Kind: KindExpense, Status: StatusPending, Period: period, ProjectID: "p1"}.Matches(entry))
	require.False(t, Filter{Kind: KindRevenue}.Matches(entry))

	other, err := shared.NewPeriod(time.May, 2026)
	require.NoError(t, err)
	require.False(t, Filter{Period: other}.Matches(entry))

	before := due.Add(time.Hour)
	require.True(t, Filter{DueBefore: &before}.Matches(entry))
	require.False(t, Filter{DueBefore: &date}.Matches(entry))

	admin := true
	require.False(t, Filter{Administrative: &admin}.Matches(entry))

	require.True(t, Filter{Unallocated: true}.Matches(entry))
	entry.Allocations = []ProjectAllocation{{ProjectID: "p1", Percentage: 100, Amount: 300}}
	require.False(t, Filter{Unallocated: true}.Matches(entry))
}
