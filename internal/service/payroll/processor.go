package payroll

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cmlabs-hris/payroll-backend-go/internal/domain/attendance"
	"github.com/cmlabs-hris/payroll-backend-go/internal/domain/leave"
	"github.com/cmlabs-hris/payroll-backend-go/internal/domain/payroll"
	"github.com/shopspring/decimal"
)

// ProcessorConfig holds batch processor configuration
type ProcessorConfig struct {
	FetchTimeout time.Duration // default: 30 seconds
}

// BatchProcessor computes and stores the payroll items of a period.
type BatchProcessor struct {
	periods    payroll.PeriodRepository
	configs    payroll.ConfigRepository
	roster     payroll.RosterRepository
	items      payroll.ItemRepository
	loans      payroll.LoanRepository
	tx         payroll.Transactor
	attendance attendance.AttendanceRepository
	leaves     leave.LeaveRequestRepository
	fsm        *PeriodStateMachine
	events     EventPublisher
	config     ProcessorConfig
	logger     *slog.Logger
}

func NewBatchProcessor(
	periods payroll.PeriodRepository,
	configs payroll.ConfigRepository,
	roster payroll.RosterRepository,
	items payroll.ItemRepository,
	loans payroll.LoanRepository,
	tx payroll.Transactor,
	attendanceRepo attendance.AttendanceRepository,
	leaves leave.LeaveRequestRepository,
	events EventPublisher,
	cfg ProcessorConfig,
	logger *slog.Logger,
) *BatchProcessor {
	if cfg.FetchTimeout == 0 {
		cfg.FetchTimeout = 30 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &BatchProcessor{
		periods:    periods,
		configs:    configs,
		roster:     roster,
		items:      items,
		loans:      loans,
		tx:         tx,
		attendance: attendanceRepo,
		leaves:     leaves,
		fsm:        NewPeriodStateMachine(periods),
		events:     events,
		config:     cfg,
		logger:     logger,
	}
}

// EmployeeOutcome is the result of one employee inside a batch. Err is set
// when computing or storing the item failed; Item then holds the fallback.
type EmployeeOutcome struct {
	EmployeeID string
	Name       string
	Readiness  payroll.Readiness
	Reason     string
	Item       payroll.PayrollItem
	Err        error
}

// Process runs the batch for periodID. The run is detached from the
// caller's cancellation once started; only fetches are bounded by
// FetchTimeout. Errors before the employee loop leave the period in DRAFT.
func (p *BatchProcessor) Process(ctx context.Context, schoolID, periodID, processedBy string) (payroll.PayrollPeriod, payroll.BatchResult, error) {
	ctx = context.WithoutCancel(ctx)

	period, err := p.loadPeriod(ctx, schoolID, periodID)
	if err != nil {
		return payroll.PayrollPeriod{}, payroll.BatchResult{}, err
	}

	if err := p.fsm.BeginProcessing(ctx, period); err != nil {
		return payroll.PayrollPeriod{}, payroll.BatchResult{}, err
	}
	period.Status = payroll.PeriodStatusProcessing

	cfg, roster, err := p.loadInputs(ctx, period)
	if err != nil {
		p.abort(ctx, period, err)
		return payroll.PayrollPeriod{}, payroll.BatchResult{}, err
	}

	result := newBatchResult(len(roster))
	for _, emp := range roster {
		result.add(p.processEmployee(ctx, cfg, period, emp))
	}

	fctx, cancel := p.bounded(ctx)
	totals, err := p.items.SumByPeriod(fctx, period.ID)
	cancel()
	if err != nil {
		err = fmt.Errorf("sum payroll items: %w", err)
		p.abort(ctx, period, err)
		return payroll.PayrollPeriod{}, payroll.BatchResult{}, err
	}

	completed, err := p.fsm.CompleteProcessing(ctx, period, totals, processedBy)
	if err != nil {
		if !errors.Is(err, payroll.ErrInvalidPeriodState) {
			p.abort(ctx, period, err)
		}
		return payroll.PayrollPeriod{}, payroll.BatchResult{}, err
	}

	p.logger.Info("payroll period processed",
		slog.String("period_id", period.ID),
		slog.Int("employees", totals.TotalEmployees),
		slog.Int("failed", len(result.Failed)),
		slog.Int("skipped", len(result.Skipped)),
		slog.Int("on_hold", len(result.OnHold)))

	if p.events != nil {
		p.events.PublishBatchProcessed(ctx, BatchProcessedEvent{
			SchoolID:    period.SchoolID,
			PeriodID:    period.ID,
			Month:       period.Month,
			Year:        period.Year,
			ProcessedBy: processedBy,
			Totals:      totals,
			FailedCount: len(result.Failed),
		})
	}

	return completed, result.BatchResult, nil
}

func (p *BatchProcessor) loadPeriod(ctx context.Context, schoolID, periodID string) (payroll.PayrollPeriod, error) {
	fctx, cancel := p.bounded(ctx)
	defer cancel()

	period, err := p.periods.GetByID(fctx, periodID)
	if err != nil {
		return payroll.PayrollPeriod{}, err
	}
	if period.SchoolID != schoolID {
		return payroll.PayrollPeriod{}, payroll.ErrPeriodForbidden
	}
	return period, nil
}

func (p *BatchProcessor) loadInputs(ctx context.Context, period payroll.PayrollPeriod) (payroll.PayrollConfig, []payroll.EmployeePayrollProfile, error) {
	fctx, cancel := p.bounded(ctx)
	defer cancel()

	cfg, err := p.configs.GetBySchoolID(fctx, period.SchoolID)
	if err != nil {
		return payroll.PayrollConfig{}, nil, err
	}

	roster, err := p.roster.ListActiveProfiles(fctx, period.SchoolID, period)
	if err != nil {
		return payroll.PayrollConfig{}, nil, fmt.Errorf("load payroll roster: %w", err)
	}
	if len(roster) == 0 {
		return payroll.PayrollConfig{}, nil, payroll.ErrEmptyRoster
	}
	return cfg, roster, nil
}

func (p *BatchProcessor) abort(ctx context.Context, period payroll.PayrollPeriod, cause error) {
	p.logger.Error("payroll processing aborted",
		slog.String("period_id", period.ID),
		slog.String("error", cause.Error()))

	if err := p.fsm.AbortProcessing(ctx, period); err != nil {
		p.logger.Error("failed to reset payroll period to draft",
			slog.String("period_id", period.ID),
			slog.String("error", err.Error()))
	}
}

func (p *BatchProcessor) processEmployee(ctx context.Context, cfg payroll.PayrollConfig, period payroll.PayrollPeriod, emp payroll.EmployeePayrollProfile) EmployeeOutcome {
	readiness, reason := ValidateReadiness(emp)
	out := EmployeeOutcome{
		EmployeeID: emp.ID,
		Name:       emp.Name,
		Readiness:  readiness,
		Reason:     reason,
	}

	err := isolate(func() error {
		item, repaymentIDs, err := p.buildItem(ctx, cfg, period, emp, readiness, reason)
		if err != nil {
			return err
		}
		stored, err := p.persist(ctx, item, repaymentIDs, period.ID)
		if err != nil {
			return err
		}
		out.Item = stored
		return nil
	})
	if err == nil {
		return out
	}

	out.Err = err
	p.logger.Error("failed to process payroll for employee",
		slog.String("period_id", period.ID),
		slog.String("employee_id", emp.ID),
		slog.String("error", err.Error()))

	out.Item = fallbackItem(period, emp)
	if ferr := isolate(func() error {
		fctx, cancel := p.bounded(ctx)
		defer cancel()
		_, err := p.items.Upsert(fctx, out.Item)
		return err
	}); ferr != nil {
		p.logger.Error("failed to persist fallback payroll item",
			slog.String("period_id", period.ID),
			slog.String("employee_id", emp.ID),
			slog.String("error", ferr.Error()))
	}
	return out
}

func (p *BatchProcessor) buildItem(ctx context.Context, cfg payroll.PayrollConfig, period payroll.PayrollPeriod, emp payroll.EmployeePayrollProfile, readiness payroll.Readiness, reason string) (payroll.PayrollItem, []string, error) {
	item := zeroItem(period, emp)
	item.Readiness = readiness
	item.PaymentStatus = paymentStatusFor(readiness)
	if reason != "" {
		item.HoldReason = &reason
	}

	if readiness == payroll.ReadinessSkippedNoStructure {
		return item, nil, nil
	}

	summary, err := p.fetchAttendance(ctx, emp, period)
	if err != nil {
		return payroll.PayrollItem{}, nil, err
	}

	structure := *emp.SalaryStructure
	earnings := CalculateEarnings(structure, WorkFactor(summary.DaysWorked, period.TotalWorkingDays))
	deductions := CalculateDeductions(DeductionInput{
		Config:     cfg,
		Period:     period,
		Structure:  structure,
		Earnings:   earnings,
		Attendance: summary,
		Loans:      emp.Loans,
		Deductions: emp.Deductions,
	})

	item.DaysWorked = summary.DaysWorked
	item.DaysAbsent = summary.DaysAbsent
	item.DaysLeave = summary.DaysLeave
	item.LateCount = summary.LateCount
	item.HalfDayCount = summary.HalfDayCount
	item.UnpaidLeaveDays = summary.UnpaidLeaveDays

	item.BasicEarned = earnings.Basic
	item.HRAEarned = earnings.HRA
	item.DAEarned = earnings.DA
	item.TAEarned = earnings.TA
	item.MedicalEarned = earnings.Medical
	item.SpecialEarned = earnings.Special
	item.GrossEarnings = earnings.Gross

	item.PFEmployee = deductions.PFEmployee
	item.PFEmployer = deductions.PFEmployer
	item.ESIEmployee = deductions.ESIEmployee
	item.ESIEmployer = deductions.ESIEmployer
	item.ProfessionalTax = deductions.ProfessionalTax
	item.TDS = deductions.TDS
	item.LoanDeduction = deductions.Loan
	item.OtherDeductions = deductions.Other
	item.OtherDeductionLines = deductions.OtherLines
	item.LossOfPay = deductions.LossOfPay
	item.TotalDeductions = deductions.Total
	item.NetSalary = NetSalary(earnings.Gross, deductions.Total)

	return item, deductions.RepaymentIDs, nil
}

func (p *BatchProcessor) fetchAttendance(ctx context.Context, emp payroll.EmployeePayrollProfile, period payroll.PayrollPeriod) (AttendanceSummary, error) {
	fctx, cancel := p.bounded(ctx)
	defer cancel()

	records, err := p.attendance.ListByUserInRange(fctx, period.SchoolID, emp.UserID, period.StartDate, period.EndDate)
	if err != nil {
		return AttendanceSummary{}, fmt.Errorf("load attendance: %w", err)
	}
	leaves, err := p.leaves.ListApprovedOverlapping(fctx, emp.UserID, period.StartDate, period.EndDate)
	if err != nil {
		return AttendanceSummary{}, fmt.Errorf("load leave requests: %w", err)
	}
	return AggregateAttendance(records, leaves), nil
}

// persist upserts the item and marks the covered repayments in one
// transaction, so a rerun never deducts a repayment twice.
func (p *BatchProcessor) persist(ctx context.Context, item payroll.PayrollItem, repaymentIDs []string, periodID string) (payroll.PayrollItem, error) {
	fctx, cancel := p.bounded(ctx)
	defer cancel()

	var stored payroll.PayrollItem
	err := p.tx.WithinTransaction(fctx, func(txCtx context.Context) error {
		var err error
		stored, err = p.items.Upsert(txCtx, item)
		if err != nil {
			return fmt.Errorf("upsert payroll item: %w", err)
		}
		if len(repaymentIDs) > 0 {
			if err := p.loans.MarkRepaymentsDeducted(txCtx, repaymentIDs, periodID); err != nil {
				return fmt.Errorf("mark loan repayments deducted: %w", err)
			}
		}
		return nil
	})
	return stored, err
}

func (p *BatchProcessor) bounded(ctx context.Context) (context.Context, context.CancelFunc) {
	if p.config.FetchTimeout < 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, p.config.FetchTimeout)
}

// isolate turns a panic inside fn into an error.
func isolate(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return fn()
}

func zeroItem(period payroll.PayrollPeriod, emp payroll.EmployeePayrollProfile) payroll.PayrollItem {
	return payroll.PayrollItem{
		PeriodID:        period.ID,
		EmployeeID:      emp.ID,
		DaysHoliday:     period.Holidays,
		DaysWorked:      decimal.Zero,
		UnpaidLeaveDays: decimal.Zero,
		BasicEarned:     decimal.Zero,
		HRAEarned:       decimal.Zero,
		DAEarned:        decimal.Zero,
		TAEarned:        decimal.Zero,
		MedicalEarned:   decimal.Zero,
		SpecialEarned:   decimal.Zero,
		GrossEarnings:   decimal.Zero,
		PFEmployee:      decimal.Zero,
		PFEmployer:      decimal.Zero,
		ESIEmployee:     decimal.Zero,
		ESIEmployer:     decimal.Zero,
		ProfessionalTax: decimal.Zero,
		TDS:             decimal.Zero,
		LoanDeduction:   decimal.Zero,
		OtherDeductions: decimal.Zero,
		LossOfPay:       decimal.Zero,
		TotalDeductions: decimal.Zero,
		NetSalary:       decimal.Zero,
	}
}

// fallbackItem is stored for an employee whose calculation failed so the
// period still lists them. Only gross is filled in.
func fallbackItem(period payroll.PayrollPeriod, emp payroll.EmployeePayrollProfile) payroll.PayrollItem {
	item := zeroItem(period, emp)
	reason := reasonProcessingError
	item.Readiness = payroll.ReadinessOnHoldBank
	item.HoldReason = &reason
	item.PaymentStatus = payroll.PaymentStatusOnHold
	if emp.SalaryStructure != nil {
		item.GrossEarnings = emp.SalaryStructure.GrossSalary
	}
	return item
}

type batchResult struct {
	payroll.BatchResult
}

func newBatchResult(total int) *batchResult {
	return &batchResult{payroll.BatchResult{
		Success:           []payroll.EmployeeEntry{},
		Failed:            []payroll.FailedEntry{},
		Skipped:           []payroll.SkippedEntry{},
		OnHold:            []payroll.OnHoldEntry{},
		ValidationSummary: payroll.ValidationSummary{Total: total},
	}}
}

func (r *batchResult) add(out EmployeeOutcome) {
	switch out.Readiness {
	case payroll.ReadinessReady:
		r.ValidationSummary.Ready++
	case payroll.ReadinessOnHoldBank:
		r.ValidationSummary.OnHoldBank++
	case payroll.ReadinessOnHoldApproval:
		r.ValidationSummary.OnHoldApproval++
	case payroll.ReadinessSkippedNoStructure:
		r.ValidationSummary.SkippedNoStructure++
	}

	switch {
	case out.Err != nil:
		r.Failed = append(r.Failed, payroll.FailedEntry{EmployeeID: out.EmployeeID, Name: out.Name, Error: out.Err.Error()})
	case out.Readiness == payroll.ReadinessSkippedNoStructure:
		r.Skipped = append(r.Skipped, payroll.SkippedEntry{EmployeeID: out.EmployeeID, Name: out.Name, Reason: out.Reason})
	default:
		r.Success = append(r.Success, payroll.EmployeeEntry{
			EmployeeID: out.EmployeeID,
			Name:       out.Name,
			NetSalary:  out.Item.NetSalary,
			Status:     out.Readiness,
		})
		if out.Readiness.IsOnHold() {
			r.OnHold = append(r.OnHold, payroll.OnHoldEntry{
				EmployeeID: out.EmployeeID,
				Name:       out.Name,
				Reason:     out.Reason,
				Status:     out.Readiness,
			})
		}
	}
}
