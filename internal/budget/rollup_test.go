package budget

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestTree(t *testing.T, bdi, discount float64) *Tree {
	t.Helper()
	tree := NewTree(bdi, discount)
	require.NoError(t, tree.AddStage(Stage{ID: "fundacao", Name: "Fundação"}))
	require.NoError(t, tree.AddSubstage(Substage{ID: "escavacao", StageID: "fundacao", Name: "Escavação"}))
	require.NoError(t, tree.AddSubstageItem("escavacao", LineItem{
		ID: "cimento", Kind: ItemMaterial, Unit: "sc", Quantity: 10, UnitPrice: 50,
	}))
	require.NoError(t, tree.AddStageItem("fundacao", LineItem{
		ID: "pedreiro", Kind: ItemLabor, Unit: "h", Quantity: 5, UnitPrice: 100,
	}))
	return tree
}

func TestComputeTotalsWithMarkupAndDiscount(t *testing.T) {
	// 10×50 material + 5×100 labor, BDI 10%, discount 5%.
	tree := newTestTree(t, 10, 5)
	totals := ComputeTotals(tree)

	require.InDelta(t, 500, totals.MaterialTotal, 0.001)
	require.InDelta(t, 500, totals.LaborTotal, 0.001)
	require.InDelta(t, 1000, totals.Subtotal, 0.001)
	require.InDelta(t, 1100, totals.WithMarkup, 0.001)
	require.InDelta(t, 1045, totals.Total, 0.001)
}

func TestComputeTotalsNoMarkup(t *testing.T) {
	tree := newTestTree(t, 0, 0)
	totals := ComputeTotals(tree)

	require.InDelta(t, totals.Subtotal, totals.WithMarkup, 0.001)
	require.InDelta(t, totals.Subtotal, totals.Total, 0.001)
	require.InDelta(t, totals.MaterialTotal+totals.LaborTotal, totals.Total, 0.001)
}

func TestComputeTotalsEmptyTree(t *testing.T) {
	totals := ComputeTotals(NewTree(10, 5))
	require.Zero(t, totals.Subtotal)
	require.Zero(t, totals.Total)
}

func TestComputeStageTotals(t *testing.T) {
	tree := newTestTree(t, 10, 5)
	require.NoError(t, tree.AddStage(Stage{ID: "alvenaria", Name: "Alvenaria"}))
	require.NoError(t, tree.AddStageItem("alvenaria", LineItem{
		ID: "tijolo", Kind: ItemMaterial, Unit: "un", Quantity: 1000, UnitPrice: 1.5,
	}))

	stages := ComputeStageTotals(tree)
	require.Len(t, stages, 2)
	require.Equal(t, "fundacao", stages[0].StageID)
	require.InDelta(t, 500, stages[0].MaterialTotal, 0.001)
	require.InDelta(t, 500, stages[0].LaborTotal, 0.001)
	require.Equal(t, "alvenaria", stages[1].StageID)
	require.InDelta(t, 1500, stages[1].MaterialTotal, 0.001)
	require.Zero(t, stages[1].LaborTotal)
}

func TestTreeValidation(t *testing.T) {
	tree := NewTree(0, 0)
	require.NoError(t, tree.AddStage(Stage{ID: "s1", Name: "Etapa"}))

	require.Error(t, tree.AddStage(Stage{ID: "s1", Name: "Duplicada"}))
	require.Error(t, tree.AddSubstage(Substage{ID: "sub1", StageID: "missing"}))
	require.Error(t, tree.AddStageItem("missing", LineItem{ID: "i1", Kind: ItemMaterial, Quantity: 1, UnitPrice: 1}))
	require.Error(t, tree.AddStageItem("s1", LineItem{ID: "i1", Kind: "OUTRO", Quantity: 1, UnitPrice: 1}))
	require.Error(t, tree.AddStageItem("s1", LineItem{ID: "i1", Kind: ItemMaterial, Quantity: 0, UnitPrice: 1}))
	require.Error(t, tree.AddStageItem("s1", LineItem{ID: "i1", Kind: ItemMaterial, Quantity: 1, UnitPrice: -1}))

	require.NoError(t, tree.AddStageItem("s1", LineItem{ID: "i1", Kind: ItemMaterial, Quantity: 1, UnitPrice: 1}))
	require.Error(t, tree.AddStageItem("s1", LineItem{ID: "i1", Kind: ItemMaterial, Quantity: 1, UnitPrice: 1}))
}
