package payroll

import (
	"context"
	"time"
)

// ConfigRepository reads and stores the per-school payroll configuration.
type ConfigRepository interface {
	GetBySchoolID(ctx context.Context, schoolID string) (PayrollConfig, error)
	Upsert(ctx context.Context, config PayrollConfig) (PayrollConfig, error)
	ListAutoPeriodEnabled(ctx context.Context, payCycleDay int) ([]PayrollConfig, error)
}

// PeriodRepository defines data access methods for payroll periods.
// Status changes go through compare-and-swap updates; swapped is false when
// the stored status no longer equals the expected one.
type PeriodRepository interface {
	Create(ctx context.Context, period PayrollPeriod) (PayrollPeriod, error)
	GetByID(ctx context.Context, id string) (PayrollPeriod, error)
	GetBySchoolMonth(ctx context.Context, schoolID string, month, year int) (PayrollPeriod, error)
	TransitionStatus(ctx context.Context, id string, from, to PeriodStatus) (swapped bool, err error)
	Complete(ctx context.Context, id string, totals PeriodTotals, processedBy string, processedAt time.Time) (swapped bool, err error)
}

// RosterRepository loads the active employees of a school together with
// their salary structure, the loans that have repayments in the period and
// the ad-hoc deductions whose window overlaps it.
type RosterRepository interface {
	ListActiveProfiles(ctx context.Context, schoolID string, period PayrollPeriod) ([]EmployeePayrollProfile, error)
}

// ItemRepository stores one payroll item per (period, employee).
type ItemRepository interface {
	Upsert(ctx context.Context, item PayrollItem) (PayrollItem, error)
	GetByPeriodEmployee(ctx context.Context, periodID, employeeID string) (PayrollItem, error)
	ListByPeriod(ctx context.Context, periodID string) ([]PayrollItem, error)
	SumByPeriod(ctx context.Context, periodID string) (PeriodTotals, error)
}

type LoanRepository interface {
	MarkRepaymentsDeducted(ctx context.Context, repaymentIDs []string, periodID string) error
}

// Transactor runs fn inside a single database transaction. Repositories
// called with the ctx handed to fn join that transaction.
type Transactor interface {
	WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}
