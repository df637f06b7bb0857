package payroll

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/cmlabs-hris/payroll-backend-go/internal/domain/attendance"
	"github.com/cmlabs-hris/payroll-backend-go/internal/domain/payroll"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProcess_ReadyEmployee(t *testing.T) {
	emp := readyEmployee("e1")
	emp.Loans = []payroll.Loan{{
		ID:         "loan-1",
		EMIAmount:  d("1000"),
		Repayments: []payroll.LoanRepayment{{ID: "rp-1", LoanID: "loan-1", Month: 6, Year: 2025, Amount: d("1000"), Status: payroll.LoanRepaymentStatusPending}},
	}}
	f := newFixture(emp)
	f.attendance.records[emp.UserID] = presentDays(emp.UserID, 26)

	period, result, err := f.process()
	require.NoError(t, err)

	item, err := f.items.GetByPeriodEmployee(context.Background(), f.period.ID, "e1")
	require.NoError(t, err)

	assertDecimal(t, "26", item.DaysWorked)
	assertDecimal(t, "16000", item.GrossEarnings)
	assertDecimal(t, "1440", item.PFEmployee)
	assertDecimal(t, "1440", item.PFEmployer)
	assertDecimal(t, "120", item.ESIEmployee)
	assertDecimal(t, "520", item.ESIEmployer)
	assertDecimal(t, "150", item.ProfessionalTax)
	assertDecimal(t, "0", item.TDS)
	assertDecimal(t, "1000", item.LoanDeduction)
	assertDecimal(t, "0", item.LossOfPay)
	assertDecimal(t, "2710", item.TotalDeductions)
	assertDecimal(t, "13290", item.NetSalary)
	assert.Equal(t, payroll.ReadinessReady, item.Readiness)
	assert.Equal(t, payroll.PaymentStatusPending, item.PaymentStatus)
	assert.Nil(t, item.HoldReason)

	assert.Equal(t, payroll.PeriodStatusPendingApproval, period.Status)
	assert.Equal(t, 1, period.TotalEmployees)
	assertDecimal(t, "16000", period.TotalGrossSalary)
	assertDecimal(t, "2710", period.TotalDeductions)
	assertDecimal(t, "13290", period.TotalNetSalary)
	require.NotNil(t, period.ProcessedBy)
	assert.Equal(t, testUserID, *period.ProcessedBy)
	assert.NotNil(t, period.ProcessedAt)
	assert.Equal(t, payroll.PeriodStatusPendingApproval, f.periods.status(f.period.ID))

	assert.Equal(t, f.period.ID, f.loans.marked["rp-1"])
	assert.Equal(t, 1, f.tx.calls)

	require.Len(t, result.Success, 1)
	assertDecimal(t, "13290", result.Success[0].NetSalary)
	assert.Empty(t, result.Failed)
	assert.Equal(t, payroll.ValidationSummary{Ready: 1, Total: 1}, result.ValidationSummary)

	events := f.events.published()
	require.Len(t, events, 1)
	assert.Equal(t, testSchoolID, events[0].SchoolID)
	assert.Equal(t, testUserID, events[0].ProcessedBy)
	assert.Equal(t, 0, events[0].FailedCount)
}

func TestProcess_HalfDaysKeepFractionalDaysWorked(t *testing.T) {
	emp := readyEmployee("e1")
	f := newFixture(emp)
	records := presentDays(emp.UserID, 12)
	records = append(records, attendance.Attendance{UserID: emp.UserID, Status: attendance.StatusHalfDay})
	f.attendance.records[emp.UserID] = records

	_, _, err := f.process()
	require.NoError(t, err)

	item, err := f.items.GetByPeriodEmployee(context.Background(), f.period.ID, "e1")
	require.NoError(t, err)
	assertDecimal(t, "12.5", item.DaysWorked)
	assert.Equal(t, 1, item.HalfDayCount)
	// 16000 * 12.5 / 26
	assert.True(t, item.GrossEarnings.Round(2).Equal(d("7692.31")), "got %s", item.GrossEarnings)
}

func TestProcess_IgnoresAttendanceAtOtherSchools(t *testing.T) {
	emp := readyEmployee("e1")
	f := newFixture(emp)
	records := presentDays(emp.UserID, 13)
	for i := range records {
		records[i].SchoolID = testSchoolID
	}
	for i := 0; i < 13; i++ {
		records = append(records, attendance.Attendance{
			UserID:   emp.UserID,
			SchoolID: "school-2",
			Date:     time.Date(2025, 6, i+14, 0, 0, 0, 0, time.UTC),
			Status:   attendance.StatusPresent,
		})
	}
	f.attendance.records[emp.UserID] = records

	_, _, err := f.process()
	require.NoError(t, err)

	item, err := f.items.GetByPeriodEmployee(context.Background(), f.period.ID, "e1")
	require.NoError(t, err)
	assertDecimal(t, "13", item.DaysWorked)
	assertDecimal(t, "8000", item.GrossEarnings)
}

func TestProcess_NoAttendanceMeansZeroPay(t *testing.T) {
	f := newFixture(readyEmployee("e1"))

	_, _, err := f.process()
	require.NoError(t, err)

	item, err := f.items.GetByPeriodEmployee(context.Background(), f.period.ID, "e1")
	require.NoError(t, err)
	assertDecimal(t, "0", item.DaysWorked)
	assertDecimal(t, "0", item.GrossEarnings)
	assertDecimal(t, "0", item.NetSalary)
}

func TestProcess_ReadinessClasses(t *testing.T) {
	ready := readyEmployee("e1")

	noStructure := readyEmployee("e2")
	noStructure.SalaryStructure = nil

	noBank := readyEmployee("e3")
	noBank.AccountNumber = nil

	pending := readyEmployee("e4")
	pending.AccountNumber = nil
	pending.PendingBankDetails = true

	f := newFixture(ready, noStructure, noBank, pending)
	for _, emp := range []payroll.EmployeePayrollProfile{ready, noBank, pending} {
		f.attendance.records[emp.UserID] = presentDays(emp.UserID, 26)
	}

	period, result, err := f.process()
	require.NoError(t, err)

	assert.Equal(t, 4, f.items.count(f.period.ID))
	assert.Equal(t, 4, period.TotalEmployees)
	assert.Equal(t, payroll.ValidationSummary{Ready: 1, OnHoldBank: 1, OnHoldApproval: 1, SkippedNoStructure: 1, Total: 4}, result.ValidationSummary)

	require.Len(t, result.Skipped, 1)
	assert.Equal(t, "e2", result.Skipped[0].EmployeeID)
	assert.Equal(t, "No salary structure assigned", result.Skipped[0].Reason)

	require.Len(t, result.OnHold, 2)
	assert.Equal(t, payroll.ReadinessOnHoldBank, result.OnHold[0].Status)
	assert.Equal(t, payroll.ReadinessOnHoldApproval, result.OnHold[1].Status)
	assert.Len(t, result.Success, 3)

	skipped, _ := f.items.GetByPeriodEmployee(context.Background(), f.period.ID, "e2")
	assert.Equal(t, payroll.PaymentStatusSkipped, skipped.PaymentStatus)
	assertDecimal(t, "0", skipped.NetSalary)

	held, _ := f.items.GetByPeriodEmployee(context.Background(), f.period.ID, "e3")
	assert.Equal(t, payroll.PaymentStatusOnHold, held.PaymentStatus)
	require.NotNil(t, held.HoldReason)
	assert.Equal(t, "Bank details missing", *held.HoldReason)
	// pay is still calculated while the payment is held
	assertDecimal(t, "14290", held.NetSalary)

	approval, _ := f.items.GetByPeriodEmployee(context.Background(), f.period.ID, "e4")
	require.NotNil(t, approval.HoldReason)
	assert.Equal(t, "Profile updates pending approval", *approval.HoldReason)
}

func TestProcess_FaultIsolation(t *testing.T) {
	var roster []payroll.EmployeePayrollProfile
	for i := 1; i <= 5; i++ {
		roster = append(roster, readyEmployee(fmt.Sprintf("e%d", i)))
	}
	f := newFixture(roster...)
	for _, emp := range roster {
		f.attendance.records[emp.UserID] = presentDays(emp.UserID, 26)
	}
	f.attendance.errFor["user-e2"] = errors.New("connection reset")
	f.attendance.panicFor["user-e4"] = true

	period, result, err := f.process()
	require.NoError(t, err)

	assert.Equal(t, payroll.PeriodStatusPendingApproval, period.Status)
	assert.Equal(t, 5, f.items.count(f.period.ID))
	assert.Equal(t, 5, period.TotalEmployees)

	require.Len(t, result.Failed, 2)
	assert.Equal(t, "e2", result.Failed[0].EmployeeID)
	assert.Contains(t, result.Failed[0].Error, "connection reset")
	assert.Equal(t, "e4", result.Failed[1].EmployeeID)
	assert.Contains(t, result.Failed[1].Error, "panic")
	assert.Len(t, result.Success, 3)

	fallback, err := f.items.GetByPeriodEmployee(context.Background(), f.period.ID, "e2")
	require.NoError(t, err)
	require.NotNil(t, fallback.HoldReason)
	assert.Equal(t, "Processing error - please retry", *fallback.HoldReason)
	assert.Equal(t, payroll.ReadinessOnHoldBank, fallback.Readiness)
	assert.Equal(t, payroll.PaymentStatusOnHold, fallback.PaymentStatus)
	assertDecimal(t, "16000", fallback.GrossEarnings)
	assertDecimal(t, "0", fallback.NetSalary)

	events := f.events.published()
	require.Len(t, events, 1)
	assert.Equal(t, 2, events[0].FailedCount)
}

func TestProcess_FallbackPersistFailureStillCompletes(t *testing.T) {
	f := newFixture(readyEmployee("e1"), readyEmployee("e2"), readyEmployee("e3"))
	f.items.failFor["e2"] = errors.New("disk full")

	period, result, err := f.process()
	require.NoError(t, err)

	assert.Equal(t, payroll.PeriodStatusPendingApproval, period.Status)
	assert.Equal(t, 2, f.items.count(f.period.ID))
	assert.Equal(t, 2, period.TotalEmployees)
	require.Len(t, result.Failed, 1)
	assert.Equal(t, "e2", result.Failed[0].EmployeeID)
}

func TestProcess_LoanMarkingFailureStoresFallback(t *testing.T) {
	emp := readyEmployee("e1")
	emp.Loans = []payroll.Loan{{
		ID:         "loan-1",
		EMIAmount:  d("1000"),
		Repayments: []payroll.LoanRepayment{{ID: "rp-1", Status: payroll.LoanRepaymentStatusPending}},
	}}
	f := newFixture(emp)
	f.attendance.records[emp.UserID] = presentDays(emp.UserID, 26)
	f.loans.err = errors.New("lock timeout")

	_, result, err := f.process()
	require.NoError(t, err)

	require.Len(t, result.Failed, 1)
	assert.Contains(t, result.Failed[0].Error, "mark loan repayments deducted")

	item, err := f.items.GetByPeriodEmployee(context.Background(), f.period.ID, "e1")
	require.NoError(t, err)
	require.NotNil(t, item.HoldReason)
	assert.Equal(t, "Processing error - please retry", *item.HoldReason)
}

func TestProcess_RejectsNonDraftPeriod(t *testing.T) {
	for _, status := range []payroll.PeriodStatus{
		payroll.PeriodStatusProcessing,
		payroll.PeriodStatusPendingApproval,
		payroll.PeriodStatusApproved,
		payroll.PeriodStatusPaid,
	} {
		t.Run(string(status), func(t *testing.T) {
			f := newFixture(readyEmployee("e1"))
			f.periods.setStatus(f.period.ID, status)

			_, _, err := f.process()
			require.Error(t, err)
			assert.ErrorIs(t, err, payroll.ErrInvalidPeriodState)

			var stateErr *payroll.InvalidStateError
			require.ErrorAs(t, err, &stateErr)
			assert.Equal(t, status, stateErr.Current)
			assert.Equal(t, payroll.PeriodStatusDraft, stateErr.Expected)

			assert.Equal(t, status, f.periods.status(f.period.ID))
			assert.Zero(t, f.items.count(f.period.ID))
			assert.Empty(t, f.events.published())
		})
	}
}

func TestProcess_AbortsToDraft(t *testing.T) {
	tests := []struct {
		name    string
		arrange func(f *fixture)
		wantErr error
	}{
		{
			name:    "missing config",
			arrange: func(f *fixture) { f.configs.configs = map[string]payroll.PayrollConfig{} },
			wantErr: payroll.ErrConfigNotFound,
		},
		{
			name:    "empty roster",
			arrange: func(f *fixture) { f.roster.profiles = nil },
			wantErr: payroll.ErrEmptyRoster,
		},
		{
			name:    "roster failure",
			arrange: func(f *fixture) { f.roster.err = errors.New("query canceled") },
		},
		{
			name:    "totals failure",
			arrange: func(f *fixture) { f.items.sumErr = errors.New("statement timeout") },
		},
		{
			name:    "complete failure",
			arrange: func(f *fixture) { f.periods.completeErr = errors.New("connection refused") },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(readyEmployee("e1"))
			tt.arrange(f)

			_, _, err := f.process()
			require.Error(t, err)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			}

			assert.Equal(t, payroll.PeriodStatusDraft, f.periods.status(f.period.ID))
			assert.Empty(t, f.events.published())
		})
	}
}

func TestProcess_PeriodOwnership(t *testing.T) {
	f := newFixture(readyEmployee("e1"))

	_, _, err := f.processor.Process(context.Background(), "school-2", f.period.ID, testUserID)
	assert.ErrorIs(t, err, payroll.ErrPeriodForbidden)
	assert.Equal(t, payroll.PeriodStatusDraft, f.periods.status(f.period.ID))

	_, _, err = f.processor.Process(context.Background(), testSchoolID, "missing", testUserID)
	assert.ErrorIs(t, err, payroll.ErrPeriodNotFound)
}

func TestProcess_RerunUpsertsSameItems(t *testing.T) {
	emp := readyEmployee("e1")
	emp.Loans = []payroll.Loan{{
		ID:         "loan-1",
		EMIAmount:  d("1000"),
		Repayments: []payroll.LoanRepayment{{ID: "rp-1", Status: payroll.LoanRepaymentStatusPending}},
	}}
	f := newFixture(emp, readyEmployee("e2"), readyEmployee("e3"))
	f.attendance.records[emp.UserID] = presentDays(emp.UserID, 26)

	_, _, err := f.process()
	require.NoError(t, err)
	first, _ := f.items.GetByPeriodEmployee(context.Background(), f.period.ID, "e1")

	f.periods.setStatus(f.period.ID, payroll.PeriodStatusDraft)

	// the repayment is DEDUCTED for this period now and still matches
	emp.Loans[0].Repayments[0].Status = payroll.LoanRepaymentStatusDeducted
	f.roster.profiles[0] = emp

	period, _, err := f.process()
	require.NoError(t, err)

	assert.Equal(t, 3, f.items.count(f.period.ID))
	assert.Equal(t, 3, period.TotalEmployees)

	second, _ := f.items.GetByPeriodEmployee(context.Background(), f.period.ID, "e1")
	assert.Equal(t, first.ID, second.ID)
	assert.True(t, first.NetSalary.Equal(second.NetSalary))
	assertDecimal(t, "1000", second.LoanDeduction)
}

func TestProcess_IgnoresCallerCancellation(t *testing.T) {
	emp := readyEmployee("e1")
	f := newFixture(emp)
	f.attendance.records[emp.UserID] = presentDays(emp.UserID, 26)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	period, result, err := f.processor.Process(ctx, testSchoolID, f.period.ID, testUserID)
	require.NoError(t, err)

	assert.Equal(t, payroll.PeriodStatusPendingApproval, period.Status)
	assert.Empty(t, result.Failed)
	assertDecimal(t, "16000", period.TotalGrossSalary)
}

func TestProcess_ConcurrentRunsSingleWinner(t *testing.T) {
	f := newFixture(readyEmployee("e1"), readyEmployee("e2"))

	const runs = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
		rejected  int
	)
	for i := 0; i < runs; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, err := f.process()
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				succeeded++
			case errors.Is(err, payroll.ErrInvalidPeriodState):
				rejected++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, succeeded)
	assert.Equal(t, runs-1, rejected)
	assert.Equal(t, 2, f.items.count(f.period.ID))
	assert.Len(t, f.events.published(), 1)
}

func TestIsolate(t *testing.T) {
	err := isolate(func() error { panic("boom") })
	require.Error(t, err)
	assert.Equal(t, "panic: boom", err.Error())

	sentinel := errors.New("plain")
	assert.Equal(t, sentinel, isolate(func() error { return sentinel }))
	assert.NoError(t, isolate(func() error { return nil }))
}
