package payroll

import (
	"time"

	"github.com/shopspring/decimal"
)

// MonthBounds returns the first and last day of month at UTC midnight.
func MonthBounds(year, month int) (time.Time, time.Time) {
	start := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 1, -1)
	return start, end
}

// MonthWorkingDays counts the days of the month, treating every Sunday as
// the weekend.
func MonthWorkingDays(year, month int) (workingDays, sundays int) {
	start, end := MonthBounds(year, month)
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		if d.Weekday() == time.Sunday {
			sundays++
			continue
		}
		workingDays++
	}
	return workingDays, sundays
}

// NewDraftPeriod builds an unsaved DRAFT period covering the whole month.
func NewDraftPeriod(schoolID string, month, year, workingDays, holidays, weekends int) PayrollPeriod {
	start, end := MonthBounds(year, month)
	return PayrollPeriod{
		SchoolID:         schoolID,
		Month:            month,
		Year:             year,
		StartDate:        start,
		EndDate:          end,
		TotalWorkingDays: workingDays,
		Holidays:         holidays,
		Weekends:         weekends,
		Status:           PeriodStatusDraft,
		TotalGrossSalary: decimal.Zero,
		TotalDeductions:  decimal.Zero,
		TotalNetSalary:   decimal.Zero,
	}
}
