package payroll

import (
	"context"
	"fmt"
	"time"

	"github.com/cmlabs-hris/payroll-backend-go/internal/domain/payroll"
)

// PeriodStateMachine owns the DRAFT -> PROCESSING -> PENDING_APPROVAL
// transitions of a period. Every move is a conditional update on the stored
// status, so two concurrent runs cannot both leave DRAFT.
type PeriodStateMachine struct {
	periods payroll.PeriodRepository
	now     func() time.Time
}

func NewPeriodStateMachine(periods payroll.PeriodRepository) *PeriodStateMachine {
	return &PeriodStateMachine{periods: periods, now: time.Now}
}

func (m *PeriodStateMachine) BeginProcessing(ctx context.Context, period payroll.PayrollPeriod) error {
	if period.Status != payroll.PeriodStatusDraft {
		return &payroll.InvalidStateError{PeriodID: period.ID, Current: period.Status, Expected: payroll.PeriodStatusDraft}
	}
	return m.transition(ctx, period.ID, payroll.PeriodStatusDraft, payroll.PeriodStatusProcessing)
}

func (m *PeriodStateMachine) CompleteProcessing(ctx context.Context, period payroll.PayrollPeriod, totals payroll.PeriodTotals, processedBy string) (payroll.PayrollPeriod, error) {
	processedAt := m.now()
	swapped, err := m.periods.Complete(ctx, period.ID, totals, processedBy, processedAt)
	if err != nil {
		return payroll.PayrollPeriod{}, fmt.Errorf("complete payroll period: %w", err)
	}
	if !swapped {
		return payroll.PayrollPeriod{}, m.stateError(ctx, period.ID, payroll.PeriodStatusProcessing)
	}

	period.Status = payroll.PeriodStatusPendingApproval
	period.TotalEmployees = totals.TotalEmployees
	period.TotalGrossSalary = totals.TotalGrossSalary
	period.TotalDeductions = totals.TotalDeductions
	period.TotalNetSalary = totals.TotalNetSalary
	period.ProcessedAt = &processedAt
	period.ProcessedBy = &processedBy
	return period, nil
}

// AbortProcessing returns a PROCESSING period to DRAFT. Items written so far
// are kept and overwritten by the next run.
func (m *PeriodStateMachine) AbortProcessing(ctx context.Context, period payroll.PayrollPeriod) error {
	return m.transition(ctx, period.ID, payroll.PeriodStatusProcessing, payroll.PeriodStatusDraft)
}

func (m *PeriodStateMachine) transition(ctx context.Context, periodID string, from, to payroll.PeriodStatus) error {
	swapped, err := m.periods.TransitionStatus(ctx, periodID, from, to)
	if err != nil {
		return fmt.Errorf("transition payroll period %s -> %s: %w", from, to, err)
	}
	if !swapped {
		return m.stateError(ctx, periodID, from)
	}
	return nil
}

func (m *PeriodStateMachine) stateError(ctx context.Context, periodID string, expected payroll.PeriodStatus) error {
	current, err := m.periods.GetByID(ctx, periodID)
	if err != nil {
		return fmt.Errorf("reload payroll period: %w", err)
	}
	return &payroll.InvalidStateError{PeriodID: periodID, Current: current.Status, Expected: expected}
}
