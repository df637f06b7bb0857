package payroll

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/cmlabs-hris/payroll-backend-go/internal/domain/payroll"
	"github.com/shopspring/decimal"
)

const (
	warningNoAttendance = "No attendance records found"
	warningBankDetails  = "Bank details required for payment"
)

// PreviewPeriod shows what a run of the period would do without writing
// anything.
func (s *PayrollServiceImpl) PreviewPeriod(ctx context.Context, periodID string) (payroll.PreviewResponse, error) {
	schoolID, _, err := getClaimsFromContext(ctx)
	if err != nil {
		return payroll.PreviewResponse{}, err
	}

	period, err := s.loadPeriod(ctx, schoolID, periodID)
	if err != nil {
		return payroll.PreviewResponse{}, err
	}

	roster, err := s.roster.ListActiveProfiles(ctx, schoolID, period)
	if err != nil {
		return payroll.PreviewResponse{}, fmt.Errorf("load payroll roster: %w", err)
	}

	existing, err := s.items.ListByPeriod(ctx, period.ID)
	if err != nil {
		return payroll.PreviewResponse{}, err
	}
	processed := make(map[string]struct{}, len(existing))
	for _, it := range existing {
		processed[it.EmployeeID] = struct{}{}
	}

	resp := payroll.PreviewResponse{
		Period: payroll.NewPeriodResponse(period),
		Summary: payroll.PreviewSummary{
			TotalEmployees:   len(roster),
			AlreadyProcessed: len(processed),
		},
		Employees: make([]payroll.PreviewEmployee, 0, len(roster)),
	}

	for _, emp := range roster {
		row, err := s.previewEmployee(ctx, period, emp)
		if err != nil {
			return payroll.PreviewResponse{}, err
		}
		_, row.AlreadyProcessed = processed[emp.ID]

		switch row.Readiness {
		case payroll.ReadinessReady:
			resp.Summary.ReadyToProcess++
		case payroll.ReadinessSkippedNoStructure:
			resp.Summary.NoStructure++
		case payroll.ReadinessOnHoldBank:
			resp.Summary.NoBankDetails++
		case payroll.ReadinessOnHoldApproval:
			resp.Summary.PendingApproval++
		}
		if row.AttendanceCount == 0 {
			resp.Summary.NoAttendance++
		}

		resp.Employees = append(resp.Employees, row)
	}

	sortPreview(resp.Employees)
	return resp, nil
}

func (s *PayrollServiceImpl) previewEmployee(ctx context.Context, period payroll.PayrollPeriod, emp payroll.EmployeePayrollProfile) (payroll.PreviewEmployee, error) {
	readiness, reason := ValidateReadiness(emp)
	row := payroll.PreviewEmployee{
		EmployeeID:      emp.ID,
		Name:            emp.Name,
		Readiness:       readiness,
		HasStructure:    emp.SalaryStructure != nil,
		HasBankDetails:  HasBankDetails(emp),
		PendingApproval: emp.PendingBankDetails || emp.PendingIDDetails,
		DaysWorked:      decimal.Zero,
		UnpaidLeaveDays: decimal.Zero,
		ExpectedGross:   decimal.Zero,
		Warnings:        []string{},
	}
	if reason != "" {
		row.HoldReason = &reason
	}

	records, err := s.attendance.ListByUserInRange(ctx, period.SchoolID, emp.UserID, period.StartDate, period.EndDate)
	if err != nil {
		return payroll.PreviewEmployee{}, fmt.Errorf("load attendance: %w", err)
	}
	leaves, err := s.leaves.ListApprovedOverlapping(ctx, emp.UserID, period.StartDate, period.EndDate)
	if err != nil {
		return payroll.PreviewEmployee{}, fmt.Errorf("load leave requests: %w", err)
	}
	summary := AggregateAttendance(records, leaves)

	row.AttendanceCount = summary.RecordCount
	row.DaysWorked = summary.DaysWorked
	row.DaysAbsent = summary.DaysAbsent
	row.DaysLeave = summary.DaysLeave
	row.LateCount = summary.LateCount
	row.UnpaidLeaveDays = summary.UnpaidLeaveDays

	if !row.HasBankDetails {
		row.Warnings = append(row.Warnings, warningBankDetails)
	}
	if summary.RecordCount == 0 {
		row.Warnings = append(row.Warnings, warningNoAttendance)
	}
	if emp.SalaryStructure != nil {
		row.ExpectedGross = emp.SalaryStructure.GrossSalary.Mul(WorkFactor(summary.DaysWorked, period.TotalWorkingDays))
	}
	return row, nil
}

// sortPreview puts READY rows first and rows without a structure last,
// ordering by name within each group.
func sortPreview(rows []payroll.PreviewEmployee) {
	rank := func(r payroll.Readiness) int {
		switch r {
		case payroll.ReadinessReady:
			return 0
		case payroll.ReadinessSkippedNoStructure:
			return 2
		default:
			return 1
		}
	}
	sort.SliceStable(rows, func(i, j int) bool {
		ri, rj := rank(rows[i].Readiness), rank(rows[j].Readiness)
		if ri != rj {
			return ri < rj
		}
		return strings.ToLower(rows[i].Name) < strings.ToLower(rows[j].Name)
	})
}
