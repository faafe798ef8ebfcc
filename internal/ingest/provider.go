package ingest

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/obrasys-erp/obrasys/internal/platform/db"
)

// SnapshotProvider reads the current upstream collections. The scheduled sync
// job uses it; the HTTP endpoint accepts a snapshot in the request instead.
type SnapshotProvider interface {
	Snapshot(ctx context.Context) (Snapshot, error)
}

// PGProvider reads upstream snapshots from the shared application database,
// where the surrounding modules persist their collections.
type PGProvider struct {
	pool *pgxpool.Pool
}

var _ SnapshotProvider = (*PGProvider)(nil)

// NewPGProvider constructs the provider.
func NewPGProvider(pool *pgxpool.Pool) *PGProvider {
	return &PGProvider{pool: pool}
}

// Snapshot loads the four upstream collections inside one repeatable-read
// transaction so a sync run never sees a half-committed operational write.
func (p *PGProvider) Snapshot(ctx context.Context) (Snapshot, error) {
	var snapshot Snapshot
	err := db.WithTx(ctx, p.pool, func(tx pgx.Tx) error {
		if err := p.budgets(ctx, tx, &snapshot); err != nil {
			return err
		}
		if err := p.contracts(ctx, tx, &snapshot); err != nil {
			return err
		}
		if err := p.purchases(ctx, tx, &snapshot); err != nil {
			return err
		}
		return p.dailyLogs(ctx, tx, &snapshot)
	})
	if err != nil {
		return Snapshot{}, err
	}
	return snapshot, nil
}

func (p *PGProvider) budgets(ctx context.Context, tx pgx.Tx, snapshot *Snapshot) error {
	rows, err := tx.Query(ctx, `SELECT id, number, status, approval_date, total_value, client FROM budgets`)
	if err != nil {
		return fmt.Errorf("ingest: load budgets: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var b Budget
		if err := rows.Scan(&b.ID, &b.Number, &b.Status, &b.ApprovalDate, &b.TotalValue, &b.Client); err != nil {
			return fmt.Errorf("ingest: scan budget: %w", err)
		}
		snapshot.Budgets = append(snapshot.Budgets, b)
	}
	return rows.Err()
}

func (p *PGProvider) contracts(ctx context.Context, tx pgx.Tx, snapshot *Snapshot) error {
	rows, err := tx.Query(ctx, `SELECT id, number, status, signature_date, total_value, client, budget_id FROM contracts`)
	if err != nil {
		return fmt.Errorf("ingest: load contracts: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var c Contract
		if err := rows.Scan(&c.ID, &c.Number, &c.Status, &c.SignatureDate, &c.TotalValue, &c.Client, &c.BudgetID); err != nil {
			return fmt.Errorf("ingest: scan contract: %w", err)
		}
		snapshot.Contracts = append(snapshot.Contracts, c)
	}
	return rows.Err()
}

func (p *PGProvider) purchases(ctx context.Context, tx pgx.Tx, snapshot *Snapshot) error {
	rows, err := tx.Query(ctx, `SELECT id, status, completion_date, total_value, material_name, supplier_name, payment_term_days FROM purchases`)
	if err != nil {
		return fmt.Errorf("ingest: load purchases: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var pr Purchase
		if err := rows.Scan(&pr.ID, &pr.Status, &pr.CompletionDate, &pr.TotalValue, &pr.MaterialName,
			&pr.Supplier.Name, &pr.Supplier.PaymentTermDays); err != nil {
			return fmt.Errorf("ingest: scan purchase: %w", err)
		}
		snapshot.Purchases = append(snapshot.Purchases, pr)
	}
	return rows.Err()
}

func (p *PGProvider) dailyLogs(ctx context.Context, tx pgx.Tx, snapshot *Snapshot) error {
	rows, err := tx.Query(ctx, `SELECT id, project_id, log_date, completion_percent, measurement_value, labor FROM daily_logs`)
	if err != nil {
		return fmt.Errorf("ingest: load daily logs: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			d        DailyLog
			laborRaw []byte
		)
		if err := rows.Scan(&d.ID, &d.ProjectID, &d.Date, &d.Measurement.CompletionPercent, &d.Measurement.Value, &laborRaw); err != nil {
			return fmt.Errorf("ingest: scan daily log: %w", err)
		}
		if laborRaw != nil {
			if err := json.Unmarshal(laborRaw, &d.Labor); err != nil {
				return fmt.Errorf("ingest: decode labor lines: %w", err)
			}
		}
		snapshot.DailyLogs = append(snapshot.DailyLogs, d)
	}
	return rows.Err()
}
