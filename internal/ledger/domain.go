package ledger

import (
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/obrasys-erp/obrasys/internal/shared"
)

// Kind discriminates ledger entry variants.
type Kind string

const (
	KindRevenue            Kind = "REVENUE"
	KindExpense            Kind = "EXPENSE"
	KindProvisionedRevenue Kind = "PROVISIONED_REVENUE"
	KindProvisionedExpense Kind = "PROVISIONED_EXPENSE"
)

// Status enumerates entry settlement states.
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusPaid      Status = "PAID"
	StatusReceived  Status = "RECEIVED"
	StatusOverdue   Status = "OVERDUE"
	StatusCancelled Status = "CANCELLED"
)

// Source identifies the upstream module an entry was ingested from.
type Source string

const (
	SourceBudget   Source = "budget"
	SourceContract Source = "contract"
	SourcePurchase Source = "purchase"
	SourceDailyLog Source = "dailylog"
)

// SubKind distinguishes multiple entries derived from one upstream record.
type SubKind string

const (
	SubKindProvisionedRevenue SubKind = "provisioned-revenue"
	SubKindRevenue            SubKind = "revenue"
	SubKindExpense            SubKind = "expense"
	SubKindMeasurement        SubKind = "measurement-revenue"
	SubKindLabor              SubKind = "labor-expense"
)

// DedupKey builds the stable identifier preventing duplicate ingestion of the
// same upstream event. Matching on descriptions is explicitly not supported.
func DedupKey(source Source, sourceID string, sub SubKind) string {
	return fmt.Sprintf("%s:%s:%s", source, sourceID, sub)
}

// ProjectAllocation is one slice of an administrative expense apportioned to a project.
type ProjectAllocation struct {
	ProjectID  string  `json:"project_id"`
	Percentage float64 `json:"percentage"`
	Amount     float64 `json:"amount"`
}

// AllocationTolerance is the rounding slack accepted when allocated amounts
// are compared against the original expense amount.
const AllocationTolerance = 0.01

// Entry is one financial transaction record.
//
// Allocations stays nil until the administrative allocator attaches a
// breakdown; once present it is never replaced.
type Entry struct {
	ID              string
	Kind            Kind
	Category        string
	Description     string
	Amount          float64
	TransactionDate time.Time
	DueDate         *time.Time
	Status          Status
	DedupKey        string
	ProjectID       string
	PurchaseID      string
	DailyLogID      string
	EmployeeID      string
	Administrative  bool
	Allocations     []ProjectAllocation
	Taxes           map[string]float64
	Withholdings    map[string]float64
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Validate rejects malformed entries before they reach the store.
func (e Entry) Validate() error {
	switch e.Kind {
	case KindRevenue, KindExpense, KindProvisionedRevenue, KindProvisionedExpense:
	default:
		return shared.NewValidationError("kind", fmt.Sprintf("unknown kind %q", e.Kind))
	}
	switch e.Status {
	case StatusPending, StatusPaid, StatusReceived, StatusOverdue, StatusCancelled:
	default:
		return shared.NewValidationError("status", fmt.Sprintf("unknown status %q", e.Status))
	}
	if e.Amount < 0 {
		return shared.NewValidationError("amount", "must be non-negative")
	}
	if e.Category == "" {
		return shared.NewValidationError("category", "required")
	}
	if e.DedupKey == "" {
		return shared.NewValidationError("dedup_key", "required")
	}
	if e.TransactionDate.IsZero() {
		return shared.NewValidationError("transaction_date", "required")
	}
	if e.Administrative && e.Kind != KindExpense {
		return shared.NewValidationError("administrative", "only expense entries can be administrative")
	}
	if e.Allocations != nil {
		if err := ValidateAllocations(e.Allocations, e.Amount); err != nil {
			return err
		}
	}
	return nil
}

// ValidateAllocations enforces the breakdown invariants: percentages sum to
// 100 and amounts sum to the entry amount, both within AllocationTolerance.
func ValidateAllocations(allocs []ProjectAllocation, amount float64) error {
	if len(allocs) == 0 {
		return shared.NewValidationError("allocations", "must not be empty")
	}
	var pct, sum float64
	for _, a := range allocs {
		if a.ProjectID == "" {
			return shared.NewValidationError("allocations", "project id required")
		}
		if a.Percentage < 0 || a.Amount < 0 {
			return shared.NewValidationError("allocations", "negative slice")
		}
		pct += a.Percentage
		sum += a.Amount
	}
	if math.Abs(pct-100) > AllocationTolerance {
		return shared.NewValidationError("allocations", fmt.Sprintf("percentages sum to %.4f, want 100", pct))
	}
	if math.Abs(sum-amount) > AllocationTolerance {
		return shared.NewValidationError("allocations", fmt.Sprintf("amounts sum to %.4f, want %.4f", sum, amount))
	}
	return nil
}

// NewRevenue constructs a realized revenue entry.
func NewRevenue(dedupKey, category, description string, amount float64, date time.Time, status Status) Entry {
	return newEntry(KindRevenue, dedupKey, category, description, amount, date, status)
}

// NewExpense constructs a realized expense entry. Administrative expenses are
// the only entries eligible for rateio allocation.
func NewExpense(dedupKey, category, description string, amount float64, date time.Time, status Status, administrative bool) Entry {
	e := newEntry(KindExpense, dedupKey, category, description, amount, date, status)
	e.Administrative = administrative
	return e
}

// NewProvisionedRevenue constructs a forecast revenue entry.
func NewProvisionedRevenue(dedupKey, category, description string, amount float64, date time.Time) Entry {
	return newEntry(KindProvisionedRevenue, dedupKey, category, description, amount, date, StatusPending)
}

// NewProvisionedExpense constructs a forecast expense entry.
func NewProvisionedExpense(dedupKey, category, description string, amount float64, date time.Time) Entry {
	return newEntry(KindProvisionedExpense, dedupKey, category, description, amount, date, StatusPending)
}

func newEntry(kind Kind, dedupKey, category, description string, amount float64, date time.Time, status Status) Entry {
	now := time.Now().UTC()
	return Entry{
		ID:              uuid.NewString(),
		Kind:            kind,
		Category:        category,
		Description:     description,
		Amount:          amount,
		TransactionDate: date,
		Status:          status,
		DedupKey:        dedupKey,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

// PayrollEntry is the derived payroll record, one per (employee, period).
type PayrollEntry struct {
	ID           string
	EmployeeID   string
	EmployeeName string
	Role         string
	Period       shared.Period
	DaysWorked   int
	DailyRate    float64
	Gross        float64
	INSS         float64
	IRRF         float64
	FGTS         float64
	Net          float64
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Validate rejects malformed payroll records.
func (p PayrollEntry) Validate() error {
	if p.EmployeeID == "" {
		return shared.NewValidationError("employee_id", "required")
	}
	if p.Period.IsZero() {
		return shared.NewValidationError("period", "required")
	}
	if p.Gross < 0 || p.Net < 0 {
		return shared.NewValidationError("amount", "must be non-negative")
	}
	return nil
}

// Filter narrows ListEntries reads. Zero values mean "any".
type Filter struct {
	Kind           Kind
	Status         Status
	Category       string
	ProjectID      string
	Administrative *bool
	Period         shared.Period
	Unallocated    bool
	DueBefore      *time.Time
}

// Matches reports whether the entry satisfies every set filter field.
func (f Filter) Matches(e Entry) bool {
	if f.Kind != "" && e.Kind != f.Kind {
		return false
	}
	if f.Status != "" && e.Status != f.Status {
		return false
	}
	if f.Category != "" && e.Category != f.Category {
		return false
	}
	if f.ProjectID != "" && e.ProjectID != f.ProjectID {
		return false
	}
	if f.Administrative != nil && e.Administrative != *f.Administrative {
		return false
	}
	if !f.Period.IsZero() && !f.Period.Contains(e.TransactionDate) {
		return false
	}
	if f.Unallocated && e.Allocations != nil {
		return false
	}
	if f.DueBefore != nil {
		if e.DueDate == nil || !e.DueDate.Before(*f.DueBefore) {
			return false
		}
	}
	return true
}
