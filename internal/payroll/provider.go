package payroll

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/obrasys-erp/obrasys/internal/shared"
)

// PGLabor reads the period's daily-log labor lines from the shared
// application database.
type PGLabor struct {
	pool *pgxpool.Pool
}

var _ LaborProvider = (*PGLabor)(nil)

// NewPGLabor constructs the provider.
func NewPGLabor(pool *pgxpool.Pool) *PGLabor {
	return &PGLabor{pool: pool}
}

// LaborEntries expands the labor lines of every daily log dated in the period.
func (p *PGLabor) LaborEntries(ctx context.Context, period shared.Period) ([]LaborEntry, error) {
	start, end := period.Bounds()
	rows, err := p.pool.Query(ctx,
		`SELECT id, labor FROM daily_logs WHERE log_date >= $1 AND log_date < $2 AND labor IS NOT NULL`,
		start, end)
	if err != nil {
		return nil, fmt.Errorf("payroll: load daily logs: %w", err)
	}
	defer rows.Close()
	var entries []LaborEntry
	for rows.Next() {
		var (
			logID    string
			laborRaw []byte
		)
		if err := rows.Scan(&logID, &laborRaw); err != nil {
			return nil, fmt.Errorf("payroll: scan daily log: %w", err)
		}
		var lines []struct {
			EmployeeID string  `json:"employee_id"`
			Name       string  `json:"name"`
			Role       string  `json:"role"`
			HourlyRate float64 `json:"hourly_rate"`
			TotalValue float64 `json:"total_value"`
		}
		if err := json.Unmarshal(laborRaw, &lines); err != nil {
			return nil, fmt.Errorf("payroll: decode labor lines: %w", err)
		}
		for _, line := range lines {
			entries = append(entries, LaborEntry{
				DailyLogID: logID,
				EmployeeID: line.EmployeeID,
				Name:       line.Name,
				Role:       line.Role,
				HourlyRate: line.HourlyRate,
				Total:      line.TotalValue,
			})
		}
	}
	return entries, rows.Err()
}
