package budget

// Totals is the derived rollup of a budget tree. It is recomputed from line
// items on every call; stored totals are never trusted.
type Totals struct {
	MaterialTotal float64 `json:"material_total"`
	LaborTotal    float64 `json:"labor_total"`
	Subtotal      float64 `json:"subtotal"`
	WithMarkup    float64 `json:"with_markup"`
	Total         float64 `json:"total"`
}

// StageTotals carries the per-stage breakdown alongside the grand totals.
type StageTotals struct {
	StageID       string  `json:"stage_id"`
	MaterialTotal float64 `json:"material_total"`
	LaborTotal    float64 `json:"labor_total"`
}

// ComputeTotals rolls line items up through substages and stages into the two
// subtotal buckets, then applies the BDI markup and the discount cascade:
//
//	subtotal   = material + labor
//	withMarkup = subtotal × (1 + bdi/100)
//	total      = withMarkup × (1 − discount/100)
func ComputeTotals(t *Tree) Totals {
	var material, labor float64
	for _, stageID := range t.stageOrder {
		st := computeStage(t, stageID)
		material += st.MaterialTotal
		labor += st.LaborTotal
	}
	subtotal := material + labor
	withMarkup := subtotal * (1 + t.BDI/100)
	total := withMarkup * (1 - t.Discount/100)
	return Totals{
		MaterialTotal: material,
		LaborTotal:    labor,
		Subtotal:      subtotal,
		WithMarkup:    withMarkup,
		Total:         total,
	}
}

// ComputeStageTotals returns the breakdown per stage in insertion order.
func ComputeStageTotals(t *Tree) []StageTotals {
	out := make([]StageTotals, 0, len(t.stageOrder))
	for _, stageID := range t.stageOrder {
		out = append(out, computeStage(t, stageID))
	}
	return out
}

func computeStage(t *Tree, stageID string) StageTotals {
	st := StageTotals{StageID: stageID}
	// Items attached directly to the stage.
	accumulate(&st, t.itemsOf(t.stageItems[stageID]))
	for _, subID := range t.substageOrder[stageID] {
		accumulate(&st, t.itemsOf(t.substageItems[subID]))
	}
	return st
}

func accumulate(st *StageTotals, items []LineItem) {
	for _, item := range items {
		switch item.Kind {
		case ItemLabor:
			st.LaborTotal += item.Total()
		default:
			st.MaterialTotal += item.Total()
		}
	}
}
