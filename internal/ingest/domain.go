// Package ingest maps upstream module snapshots into deduplicated ledger entries.
package ingest

import (
	"time"
)

// Upstream record statuses that make a record eligible for ingestion.
const (
	BudgetStatusApproved    = "APPROVED"
	ContractStatusSigned    = "SIGNED"
	PurchaseStatusCompleted = "COMPLETED"
)

// Budget is the snapshot of an upstream quote/budget record.
type Budget struct {
	ID           string    `json:"id" validate:"required"`
	Number       string    `json:"number"`
	Status       string    `json:"status" validate:"required"`
	ApprovalDate time.Time `json:"approval_date"`
	TotalValue   float64   `json:"total_value" validate:"gte=0"`
	Client       string    `json:"client"`
}

// Contract is the snapshot of an upstream contract record.
type Contract struct {
	ID            string    `json:"id" validate:"required"`
	Number        string    `json:"number"`
	Status        string    `json:"status" validate:"required"`
	SignatureDate time.Time `json:"signature_date"`
	TotalValue    float64   `json:"total_value" validate:"gte=0"`
	Client        string    `json:"client"`
	BudgetID      string    `json:"budget_id"`
}

// Supplier carries the chosen supplier and its payment terms.
type Supplier struct {
	Name            string `json:"name"`
	PaymentTermDays int    `json:"payment_term_days" validate:"gte=0"`
}

// Purchase is the snapshot of an upstream purchasing record.
type Purchase struct {
	ID             string    `json:"id" validate:"required"`
	Status         string    `json:"status" validate:"required"`
	CompletionDate time.Time `json:"completion_date"`
	TotalValue     float64   `json:"total_value" validate:"gte=0"`
	MaterialName   string    `json:"material_name"`
	Supplier       Supplier  `json:"supplier"`
}

// Measurement is the measured progress recorded on a daily log.
type Measurement struct {
	CompletionPercent float64 `json:"completion_percent"`
	Value             float64 `json:"value"`
}

// LaborLine is one labor record inside a daily log.
type LaborLine struct {
	EmployeeID string  `json:"employee_id" validate:"required"`
	Name       string  `json:"name"`
	Role       string  `json:"role"`
	HourlyRate float64 `json:"hourly_rate" validate:"gte=0"`
	TotalValue float64 `json:"total_value" validate:"gte=0"`
}

// DailyLog is the snapshot of a per-day project record.
type DailyLog struct {
	ID          string      `json:"id" validate:"required"`
	ProjectID   string      `json:"project_id"`
	Date        time.Time   `json:"date"`
	Measurement Measurement `json:"measurement"`
	Labor       []LaborLine `json:"labor" validate:"dive"`
}

// Snapshot bundles the four upstream collections read by one ingestion run.
type Snapshot struct {
	Budgets   []Budget   `json:"budgets" validate:"dive"`
	Contracts []Contract `json:"contracts" validate:"dive"`
	Purchases []Purchase `json:"purchases" validate:"dive"`
	DailyLogs []DailyLog `json:"daily_logs" validate:"dive"`
}

// LaborTotal sums the recorded labor line values. The recorded totals are
// trusted as-is; rate × hours is never recomputed here.
func (d DailyLog) LaborTotal() float64 {
	var total float64
	for _, line := range d.Labor {
		total += line.TotalValue
	}
	return total
}
