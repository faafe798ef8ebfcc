// Package budget models quote/budget trees and their billable rollup.
package budget

import (
	"fmt"

	"github.com/obrasys-erp/obrasys/internal/shared"
)

// ItemKind separates the two subtotal buckets of a budget.
type ItemKind string

const (
	ItemMaterial ItemKind = "MATERIAL"
	ItemLabor    ItemKind = "LABOR"
)

// LineItem is one priced quantity of material or labor.
type LineItem struct {
	ID         string
	MaterialID string
	Kind       ItemKind
	Unit       string
	Quantity   float64
	UnitPrice  float64
}

// Total is derived, never stored.
func (i LineItem) Total() float64 {
	return i.Quantity * i.UnitPrice
}

// Stage is a top-level section of the budget.
type Stage struct {
	ID   string
	Name string
}

// Substage is a nested section under a stage.
type Substage struct {
	ID      string
	StageID string
	Name    string
}

// Tree holds the budget as flat id-indexed maps with explicit parent
// references. Order is carried by the position slices, so the structure can
// be read concurrently and copied shallowly without deep-copy bugs.
type Tree struct {
	BDI      float64
	Discount float64

	stages        map[string]Stage
	stageOrder    []string
	substages     map[string]Substage
	substageOrder map[string][]string
	items         map[string]LineItem
	stageItems    map[string][]string
	substageItems map[string][]string
}

// NewTree creates an empty budget with the given markup and discount percentages.
func NewTree(bdi, discount float64) *Tree {
	return &Tree{
		BDI:           bdi,
		Discount:      discount,
		stages:        make(map[string]Stage),
		substages:     make(map[string]Substage),
		substageOrder: make(map[string][]string),
		items:         make(map[string]LineItem),
		stageItems:    make(map[string][]string),
		substageItems: make(map[string][]string),
	}
}

// AddStage appends a stage.
func (t *Tree) AddStage(stage Stage) error {
	if stage.ID == "" {
		return shared.NewValidationError("stage.id", "required")
	}
	if _, exists := t.stages[stage.ID]; exists {
		return shared.NewValidationError("stage.id", fmt.Sprintf("duplicate %q", stage.ID))
	}
	t.stages[stage.ID] = stage
	t.stageOrder = append(t.stageOrder, stage.ID)
	return nil
}

// AddSubstage appends a substage under an existing stage.
func (t *Tree) AddSubstage(sub Substage) error {
	if sub.ID == "" {
		return shared.NewValidationError("substage.id", "required")
	}
	if _, exists := t.substages[sub.ID]; exists {
		return shared.NewValidationError("substage.id", fmt.Sprintf("duplicate %q", sub.ID))
	}
	if _, ok := t.stages[sub.StageID]; !ok {
		return fmt.Errorf("budget: stage %q: %w", sub.StageID, shared.ErrNotFound)
	}
	t.substages[sub.ID] = sub
	t.substageOrder[sub.StageID] = append(t.substageOrder[sub.StageID], sub.ID)
	return nil
}

// AddStageItem attaches a line item directly to a stage, without a substage.
func (t *Tree) AddStageItem(stageID string, item LineItem) error {
	if _, ok := t.stages[stageID]; !ok {
		return fmt.Errorf("budget: stage %q: %w", stageID, shared.ErrNotFound)
	}
	if err := t.addItem(item); err != nil {
		return err
	}
	t.stageItems[stageID] = append(t.stageItems[stageID], item.ID)
	return nil
}

// AddSubstageItem attaches a line item to a substage.
func (t *Tree) AddSubstageItem(substageID string, item LineItem) error {
	if _, ok := t.substages[substageID]; !ok {
		return fmt.Errorf("budget: substage %q: %w", substageID, shared.ErrNotFound)
	}
	if err := t.addItem(item); err != nil {
		return err
	}
	t.substageItems[substageID] = append(t.substageItems[substageID], item.ID)
	return nil
}

func (t *Tree) addItem(item LineItem) error {
	if item.ID == "" {
		return shared.NewValidationError("item.id", "required")
	}
	if _, exists := t.items[item.ID]; exists {
		return shared.NewValidationError("item.id", fmt.Sprintf("duplicate %q", item.ID))
	}
	if item.Kind != ItemMaterial && item.Kind != ItemLabor {
		return shared.NewValidationError("item.kind", fmt.Sprintf("unknown kind %q", item.Kind))
	}
	if item.Quantity <= 0 {
		return shared.NewValidationError("item.quantity", "must be positive")
	}
	if item.UnitPrice < 0 {
		return shared.NewValidationError("item.unit_price", "must be non-negative")
	}
	t.items[item.ID] = item
	return nil
}

// Stages returns the stages in insertion order.
func (t *Tree) Stages() []Stage {
	out := make([]Stage, 0, len(t.stageOrder))
	for _, id := range t.stageOrder {
		out = append(out, t.stages[id])
	}
	return out
}

// Substages returns a stage's substages in insertion order.
func (t *Tree) Substages(stageID string) []Substage {
	ids := t.substageOrder[stageID]
	out := make([]Substage, 0, len(ids))
	for _, id := range ids {
		out = append(out, t.substages[id])
	}
	return out
}

func (t *Tree) itemsOf(ids []string) []LineItem {
	out := make([]LineItem, 0, len(ids))
	for _, id := range ids {
		out = append(out, t.items[id])
	}
	return out
}
