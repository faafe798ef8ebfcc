package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/obrasys-erp/obrasys/internal/shared"
)

// Repository provides PostgreSQL backed persistence for the ledger.
type Repository struct {
	pool        *pgxpool.Pool
	retry       shared.RetryPolicy
	invalidator Invalidator
}

var _ Store = (*Repository)(nil)

// NewRepository constructs a repository with the default retry policy.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool, retry: shared.DefaultRetryPolicy}
}

// SetInvalidator wires the read-side cache invalidation hook. Every mutation
// bumps the invalidator before returning so projections never read stale
// across a write.
func (r *Repository) SetInvalidator(inv Invalidator) {
	r.invalidator = inv
}

const entryColumns = `id, kind, category, description, amount, transaction_date, due_date, status, dedup_key,
project_id, purchase_id, daily_log_id, employee_id, administrative, allocations, taxes, withholdings, created_at, updated_at`

// InsertEntry persists the entry unless its dedup key already exists.
func (r *Repository) InsertEntry(ctx context.Context, entry Entry) (bool, error) {
	if err := entry.Validate(); err != nil {
		return false, err
	}
	allocs, taxes, withholdings, err := marshalBreakdowns(entry)
	if err != nil {
		return false, err
	}
	var created bool
	err = shared.Retry(ctx, r.retry, isTransient, func(ctx context.Context) error {
		tag, err := r.pool.Exec(ctx, `INSERT INTO ledger_entries (`+entryColumns+`)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19)
ON CONFLICT (dedup_key) DO NOTHING`,
			entry.ID, entry.Kind, entry.Category, entry.Description, entry.Amount,
			entry.TransactionDate, entry.DueDate, entry.Status, entry.DedupKey,
			nullable(entry.ProjectID), nullable(entry.PurchaseID), nullable(entry.DailyLogID), nullable(entry.EmployeeID),
			entry.Administrative, allocs, taxes, withholdings, entry.CreatedAt, entry.UpdatedAt)
		if err != nil {
			if isUniqueViolation(err) {
				return shared.ErrDuplicate
			}
			return fmt.Errorf("ledger: insert entry: %w", err)
		}
		created = tag.RowsAffected() == 1
		return nil
	})
	if errors.Is(err, shared.ErrDuplicate) {
		// Raced on the primary key rather than the dedup index; the
		// intended row exists either way, so the insert is a no-op.
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if created {
		r.bump(ctx)
	}
	return created, nil
}

// GetEntry loads one entry by id.
func (r *Repository) GetEntry(ctx context.Context, id string) (Entry, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+entryColumns+` FROM ledger_entries WHERE id = $1`, id)
	entry, err := scanEntry(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Entry{}, shared.ErrNotFound
		}
		return Entry{}, fmt.Errorf("ledger: get entry: %w", err)
	}
	return entry, nil
}

// ListEntries returns entries matching the filter, oldest first.
func (r *Repository) ListEntries(ctx context.Context, filter Filter) ([]Entry, error) {
	query := `SELECT ` + entryColumns + ` FROM ledger_entries`
	var (
		clauses []string
		args    []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}
	if filter.Kind != "" {
		clauses = append(clauses, "kind = "+arg(filter.Kind))
	}
	if filter.Status != "" {
		clauses = append(clauses, "status = "+arg(filter.Status))
	}
	if filter.Category != "" {
		clauses = append(clauses, "category = "+arg(filter.Category))
	}
	if filter.ProjectID != "" {
		clauses = append(clauses, "project_id = "+arg(filter.ProjectID))
	}
	if filter.Administrative != nil {
		clauses = append(clauses, "administrative = "+arg(*filter.Administrative))
	}
	if !filter.Period.IsZero() {
		start, end := filter.Period.Bounds()
		clauses = append(clauses, "transaction_date >= "+arg(start), "transaction_date < "+arg(end))
	}
	if filter.Unallocated {
		clauses = append(clauses, "allocations IS NULL")
	}
	if filter.DueBefore != nil {
		clauses = append(clauses, "due_date IS NOT NULL", "due_date < "+arg(*filter.DueBefore))
	}
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY transaction_date, created_at"

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("ledger: list entries: %w", err)
	}
	defer rows.Close()
	var entries []Entry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("ledger: scan entry: %w", err)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ledger: list entries: %w", err)
	}
	return entries, nil
}

// AttachAllocations sets the breakdown only when none exists yet. The
// breakdown must satisfy the allocation invariants against the entry amount;
// an invariant-violating slice never reaches the row.
func (r *Repository) AttachAllocations(ctx context.Context, entryID string, allocs []ProjectAllocation) (bool, error) {
	var amount float64
	if err := r.pool.QueryRow(ctx, `SELECT amount FROM ledger_entries WHERE id = $1`, entryID).Scan(&amount); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, shared.ErrNotFound
		}
		return false, fmt.Errorf("ledger: attach allocations: %w", err)
	}
	if err := ValidateAllocations(allocs, amount); err != nil {
		return false, err
	}
	payload, err := json.Marshal(allocs)
	if err != nil {
		return false, fmt.Errorf("ledger: marshal allocations: %w", err)
	}
	var attached bool
	err = shared.Retry(ctx, r.retry, isTransient, func(ctx context.Context) error {
		tag, err := r.pool.Exec(ctx, `UPDATE ledger_entries
SET allocations = $2, updated_at = $3
WHERE id = $1 AND allocations IS NULL`, entryID, payload, time.Now().UTC())
		if err != nil {
			return fmt.Errorf("ledger: attach allocations: %w", err)
		}
		attached = tag.RowsAffected() == 1
		return nil
	})
	if err != nil {
		return false, err
	}
	if !attached {
		// The row exists and the CAS matched nothing: a breakdown is
		// already in place.
		return false, shared.ErrAlreadyAllocated
	}
	r.bump(ctx)
	return true, nil
}

// UpdateEntryStatus moves an entry through the settlement workflow.
func (r *Repository) UpdateEntryStatus(ctx context.Context, entryID string, status Status) error {
	tag, err := r.pool.Exec(ctx, `UPDATE ledger_entries SET status = $2, updated_at = $3 WHERE id = $1`,
		entryID, status, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("ledger: update status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	r.bump(ctx)
	return nil
}

// UpsertPayroll creates or replaces the payroll record for its (employee, period) key.
func (r *Repository) UpsertPayroll(ctx context.Context, record PayrollEntry) error {
	if err := record.Validate(); err != nil {
		return err
	}
	return shared.Retry(ctx, r.retry, isTransient, func(ctx context.Context) error {
		_, err := r.pool.Exec(ctx, `INSERT INTO payroll_entries
(id, employee_id, employee_name, role, period_year, period_month, days_worked, daily_rate, gross, inss, irrf, fgts, net, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)
ON CONFLICT (employee_id, period_year, period_month) DO UPDATE SET
employee_name = EXCLUDED.employee_name,
role = EXCLUDED.role,
days_worked = EXCLUDED.days_worked,
daily_rate = EXCLUDED.daily_rate,
gross = EXCLUDED.gross,
inss = EXCLUDED.inss,
irrf = EXCLUDED.irrf,
fgts = EXCLUDED.fgts,
net = EXCLUDED.net,
updated_at = EXCLUDED.updated_at`,
			record.ID, record.EmployeeID, record.EmployeeName, record.Role,
			record.Period.Year, int(record.Period.Month), record.DaysWorked, record.DailyRate,
			record.Gross, record.INSS, record.IRRF, record.FGTS, record.Net,
			record.CreatedAt, record.UpdatedAt)
		if err != nil {
			return fmt.Errorf("ledger: upsert payroll: %w", err)
		}
		r.bump(ctx)
		return nil
	})
}

// ListPayroll returns payroll records for the period.
func (r *Repository) ListPayroll(ctx context.Context, period shared.Period) ([]PayrollEntry, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, employee_id, employee_name, role, period_year, period_month,
days_worked, daily_rate, gross, inss, irrf, fgts, net, created_at, updated_at
FROM payroll_entries WHERE period_year = $1 AND period_month = $2 ORDER BY employee_name`,
		period.Year, int(period.Month))
	if err != nil {
		return nil, fmt.Errorf("ledger: list payroll: %w", err)
	}
	defer rows.Close()
	var records []PayrollEntry
	for rows.Next() {
		var (
			rec         PayrollEntry
			year, month int
		)
		if err := rows.Scan(&rec.ID, &rec.EmployeeID, &rec.EmployeeName, &rec.Role, &year, &month,
			&rec.DaysWorked, &rec.DailyRate, &rec.Gross, &rec.INSS, &rec.IRRF, &rec.FGTS, &rec.Net,
			&rec.CreatedAt, &rec.UpdatedAt); err != nil {
			return nil, fmt.Errorf("ledger: scan payroll: %w", err)
		}
		rec.Period = shared.Period{Month: time.Month(month), Year: year}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ledger: list payroll: %w", err)
	}
	return records, nil
}

func (r *Repository) bump(ctx context.Context) {
	if r.invalidator == nil {
		return
	}
	_ = r.invalidator.Bump(ctx)
}

func marshalBreakdowns(entry Entry) ([]byte, []byte, []byte, error) {
	var allocs []byte
	if entry.Allocations != nil {
		b, err := json.Marshal(entry.Allocations)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("ledger: marshal allocations: %w", err)
		}
		allocs = b
	}
	taxes, err := marshalMap(entry.Taxes)
	if err != nil {
		return nil, nil, nil, err
	}
	withholdings, err := marshalMap(entry.Withholdings)
	if err != nil {
		return nil, nil, nil, err
	}
	return allocs, taxes, withholdings, nil
}

func marshalMap(m map[string]float64) ([]byte, error) {
	if m == nil {
		return nil, nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("ledger: marshal breakdown: %w", err)
	}
	return b, nil
}

func scanEntry(row pgx.Row) (Entry, error) {
	var (
		entry                                        Entry
		projectID, purchaseID, dailyLogID, employee  *string
		allocsRaw, taxesRaw, withholdingsRaw         []byte
	)
	if err := row.Scan(&entry.ID, &entry.Kind, &entry.Category, &entry.Description, &entry.Amount,
		&entry.TransactionDate, &entry.DueDate, &entry.Status, &entry.DedupKey,
		&projectID, &purchaseID, &dailyLogID, &employee,
		&entry.Administrative, &allocsRaw, &taxesRaw, &withholdingsRaw,
		&entry.CreatedAt, &entry.UpdatedAt); err != nil {
		return Entry{}, err
	}
	entry.ProjectID = deref(projectID)
	entry.PurchaseID = deref(purchaseID)
	entry.DailyLogID = deref(dailyLogID)
	entry.EmployeeID = deref(employee)
	if allocsRaw != nil {
		if err := json.Unmarshal(allocsRaw, &entry.Allocations); err != nil {
			return Entry{}, err
		}
	}
	if taxesRaw != nil {
		if err := json.Unmarshal(taxesRaw, &entry.Taxes); err != nil {
			return Entry{}, err
		}
	}
	if withholdingsRaw != nil {
		if err := json.Unmarshal(withholdingsRaw, &entry.Withholdings); err != nil {
			return Entry{}, err
		}
	}
	return entry, nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// isTransient decides which store errors are worth a retry. Connection-class
// failures are retried; anything the server positively rejected is not.
func isTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if errors.Is(err, shared.ErrDuplicate) || errors.Is(err, shared.ErrValidation) {
		return false
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch {
		case strings.HasPrefix(pgErr.Code, "08"): // connection exception
			return true
		case strings.HasPrefix(pgErr.Code, "53"): // insufficient resources
			return true
		case pgErr.Code == "57P01": // admin shutdown
			return true
		default:
			return false
		}
	}
	return true
}
