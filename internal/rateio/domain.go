// Package rateio apportions shared administrative expenses across active
// projects according to each project's revenue share for a period.
package rateio

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/obrasys-erp/obrasys/internal/shared"
)

// ActiveProject is the snapshot of a project eligible for allocation.
type ActiveProject struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Client string `json:"client"`
	Status string `json:"status"`
}

// ProjectStatusActive marks projects that participate in allocation.
const ProjectStatusActive = "active"

// ProjectShare is one project's slice of the period's administrative cost.
type ProjectShare struct {
	ProjectID   string  `json:"project_id"`
	ProjectName string  `json:"project_name"`
	Revenue     float64 `json:"revenue"`
	Percentage  float64 `json:"percentage"`
	Amount      float64 `json:"amount"`
}

// Result is the outcome of one allocation run. InsufficientData is an
// explicit non-error outcome: nothing was mutated because the period has no
// revenue or no administrative expense.
type Result struct {
	Period            shared.Period         `json:"period"`
	InsufficientData  bool                  `json:"insufficient_data"`
	TotalRevenue      float64               `json:"total_revenue"`
	TotalAdminExpense float64               `json:"total_admin_expense"`
	Shares            []ProjectShare        `json:"shares,omitempty"`
	Allocated         int                   `json:"allocated"`
	AlreadyAllocated  int                   `json:"already_allocated"`
	Warnings          []string              `json:"warnings,omitempty"`
	Failures          []shared.BatchFailure `json:"failures,omitempty"`
}

// ProjectProvider lists the currently active projects.
type ProjectProvider interface {
	ActiveProjects(ctx context.Context) ([]ActiveProject, error)
}

// PGProjects reads active projects from the shared application database.
type PGProjects struct {
	pool *pgxpool.Pool
}

var _ ProjectProvider = (*PGProjects)(nil)

// NewPGProjects constructs the provider.
func NewPGProjects(pool *pgxpool.Pool) *PGProjects {
	return &PGProjects{pool: pool}
}

// ActiveProjects returns projects with status 'active'.
func (p *PGProjects) ActiveProjects(ctx context.Context) ([]ActiveProject, error) {
	rows, err := p.pool.Query(ctx, `SELECT id, name, client, status FROM projects WHERE status = $1 ORDER BY name`, ProjectStatusActive)
	if err != nil {
		return nil, fmt.Errorf("rateio: load projects: %w", err)
	}
	defer rows.Close()
	var projects []ActiveProject
	for rows.Next() {
		var pr ActiveProject
		if err := rows.Scan(&pr.ID, &pr.Name, &pr.Client, &pr.Status); err != nil {
			return nil, fmt.Errorf("rateio: scan project: %w", err)
		}
		projects = append(projects, pr)
	}
	return projects, rows.Err()
}
