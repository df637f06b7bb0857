package payroll

import (
	"github.com/cmlabs-hris/payroll-backend-go/internal/domain/attendance"
	"github.com/cmlabs-hris/payroll-backend-go/internal/domain/leave"
	"github.com/shopspring/decimal"
)

var half = decimal.NewFromFloat(0.5)

// AttendanceSummary is the per-employee aggregate of one period.
type AttendanceSummary struct {
	RecordCount     int
	DaysWorked      decimal.Decimal
	DaysAbsent      int
	DaysLeave       int
	LateCount       int
	HalfDayCount    int
	UnpaidLeaveDays decimal.Decimal
}

// AggregateAttendance folds daily attendance records and approved leave
// requests into period counters. Records with an unknown status are ignored
// and an employee without records has worked zero days.
func AggregateAttendance(records []attendance.Attendance, leaves []leave.LeaveRequest) AttendanceSummary {
	s := AttendanceSummary{
		RecordCount:     len(records),
		DaysWorked:      decimal.Zero,
		UnpaidLeaveDays: decimal.Zero,
	}

	for _, rec := range records {
		switch rec.Status {
		case attendance.StatusPresent:
			s.DaysWorked = s.DaysWorked.Add(decimal.NewFromInt(1))
			if rec.IsLateCheckIn {
				s.LateCount++
			}
		case attendance.StatusAbsent:
			s.DaysAbsent++
		case attendance.StatusOnLeave:
			s.DaysLeave++
		case attendance.StatusHalfDay:
			s.DaysWorked = s.DaysWorked.Add(half)
			s.HalfDayCount++
		case attendance.StatusLate:
			s.DaysWorked = s.DaysWorked.Add(decimal.NewFromInt(1))
			s.LateCount++
		}
	}

	for _, l := range leaves {
		if l.Status != leave.LeaveRequestStatusApproved || !l.IsUnpaid() {
			continue
		}
		s.UnpaidLeaveDays = s.UnpaidLeaveDays.Add(l.Days())
	}

	return s
}

// WorkFactor is daysWorked / max(totalWorkingDays, 1).
func WorkFactor(daysWorked decimal.Decimal, totalWorkingDays int) decimal.Decimal {
	return daysWorked.Div(decimal.NewFromInt(int64(max(totalWorkingDays, 1))))
}
