// Package jobs contains the Asynq tasks and worker used for background
// financial processing.
package jobs

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"

	// TaskFinanceSync pulls the operational snapshot and mirrors it
	// into the financial ledger.
	TaskFinanceSync = "finance:sync"
	// TaskFinanceRateio allocates administrative costs across active
	// projects for one period.
	TaskFinanceRateio = "finance:rateio"
	// TaskFinancePayroll generates payroll records for one period.
	TaskFinancePayroll = "finance:payroll"
	// TaskFinanceOverdue marks pending entries past their due date.
	TaskFinanceOverdue = "finance:overdue"
)

// PeriodPayload carries the accounting period for period-scoped tasks.
type PeriodPayload struct {
	Period string `json:"period"`
}

// NewFinanceSyncTask constructs the ledger synchronization task.
func NewFinanceSyncTask() *asynq.Task {
	return asynq.NewTask(TaskFinanceSync, nil)
}

// NewFinanceRateioTask constructs an admin cost allocation task.
func NewFinanceRateioTask(payload PeriodPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskFinanceRateio, data), nil
}

// NewFinancePayrollTask constructs a payroll generation task.
func NewFinancePayrollTask(payload PeriodPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskFinancePayroll, data), nil
}

// NewFinanceOverdueTask constructs the overdue status refresh task.
func NewFinanceOverdueTask() *asynq.Task {
	return asynq.NewTask(TaskFinanceOverdue, nil)
}
