package payroll

import (
	"time"

	"github.com/shopspring/decimal"
)

// PayrollConfig - School statutory/payroll configuration
type PayrollConfig struct {
	ID       string
	SchoolID string

	EnablePF              bool
	EnableESI             bool
	EnableProfessionalTax bool
	EnableTDS             bool
	LatePenaltyEnabled    bool

	PFEmployeePercent  decimal.Decimal
	PFEmployerPercent  decimal.Decimal
	PFWageLimit        decimal.Decimal
	ESIEmployeePercent decimal.Decimal
	ESIEmployerPercent decimal.Decimal
	ESIWageLimit       decimal.Decimal
	AllowedLateCount   int
	LatesPerLOP        int

	EnableAutoPeriodCreation bool
	PayCycleDay              int

	CreatedAt time.Time
	UpdatedAt time.Time
}

// PeriodStatus enum
type PeriodStatus string

const (
	PeriodStatusDraft           PeriodStatus = "DRAFT"
	PeriodStatusProcessing      PeriodStatus = "PROCESSING"
	PeriodStatusPendingApproval PeriodStatus = "PENDING_APPROVAL"
	PeriodStatusApproved        PeriodStatus = "APPROVED"
	PeriodStatusPaid            PeriodStatus = "PAID"
)

// PayrollPeriod - Month/year pay window
type PayrollPeriod struct {
	ID               string
	SchoolID         string
	Month            int
	Year             int
	StartDate        time.Time
	EndDate          time.Time
	TotalWorkingDays int
	Holidays         int
	Weekends         int
	Status           PeriodStatus

	TotalEmployees   int
	TotalGrossSalary decimal.Decimal
	TotalDeductions  decimal.Decimal
	TotalNetSalary   decimal.Decimal
	ProcessedAt      *time.Time
	ProcessedBy      *string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// PeriodTotals - Aggregates computed from stored payroll items
type PeriodTotals struct {
	TotalEmployees   int
	TotalGrossSalary decimal.Decimal
	TotalDeductions  decimal.Decimal
	TotalNetSalary   decimal.Decimal
}

// SalaryStructure - Fixed monthly components assigned to an employee
type SalaryStructure struct {
	ID               string
	Name             string
	BasicSalary      decimal.Decimal
	HRAPercent       decimal.Decimal
	DAPercent        decimal.Decimal
	TAAmount         decimal.Decimal
	MedicalAllowance decimal.Decimal
	SpecialAllowance decimal.Decimal
	GrossSalary      decimal.Decimal
}

// LoanRepaymentStatus enum
type LoanRepaymentStatus string

const (
	LoanRepaymentStatusPending  LoanRepaymentStatus = "PENDING"
	LoanRepaymentStatusDeducted LoanRepaymentStatus = "DEDUCTED"
)

// LoanRepayment - Scheduled installment of a loan
type LoanRepayment struct {
	ID     string
	LoanID string
	Month  int
	Year   int
	Amount decimal.Decimal
	Status LoanRepaymentStatus
}

// Loan - Active employee loan with the repayments matching the period
type Loan struct {
	ID         string
	EMIAmount  decimal.Decimal
	Repayments []LoanRepayment
}

// DeductionFrequency enum
type DeductionFrequency string

const (
	DeductionFrequencyOneTime   DeductionFrequency = "ONE_TIME"
	DeductionFrequencyMonthly   DeductionFrequency = "MONTHLY"
	DeductionFrequencyRecurring DeductionFrequency = "RECURRING"
)

// Deduction - Ad-hoc deduction assigned to an employee
type Deduction struct {
	ID          string
	Description string
	Amount      decimal.Decimal
	Frequency   DeductionFrequency
	StartDate   time.Time
	EndDate     *time.Time
}

// EmployeePayrollProfile - Per-employee snapshot read for a run
type EmployeePayrollProfile struct {
	ID                 string
	UserID             string
	SchoolID           string
	Name               string
	SalaryStructure    *SalaryStructure
	AccountNumber      *string
	IFSCCode           *string
	BankName           *string
	PendingBankDetails bool
	PendingIDDetails   bool
	Loans              []Loan
	Deductions         []Deduction
}

// Readiness enum
type Readiness string

const (
	ReadinessReady              Readiness = "READY"
	ReadinessOnHoldBank         Readiness = "ON_HOLD_BANK"
	ReadinessOnHoldApproval     Readiness = "ON_HOLD_APPROVAL"
	ReadinessSkippedNoStructure Readiness = "SKIPPED_NO_STRUCTURE"
)

// IsOnHold reports whether payment is withheld while pay is still calculated.
func (r Readiness) IsOnHold() bool {
	return r == ReadinessOnHoldBank || r == ReadinessOnHoldApproval
}

// PaymentStatus enum
type PaymentStatus string

const (
	PaymentStatusPending PaymentStatus = "PENDING"
	PaymentStatusOnHold  PaymentStatus = "ON_HOLD"
	PaymentStatusSkipped PaymentStatus = "SKIPPED"
)

// DeductionLine - Named ad-hoc deduction included in an item
type DeductionLine struct {
	Name   string          `json:"name"`
	Amount decimal.Decimal `json:"amount"`
}

// PayrollItem - One line item per (period, employee)
type PayrollItem struct {
	ID         string
	PeriodID   string
	EmployeeID string

	DaysWorked      decimal.Decimal
	DaysAbsent      int
	DaysLeave       int
	DaysHoliday     int
	LateCount       int
	HalfDayCount    int
	UnpaidLeaveDays decimal.Decimal

	BasicEarned   decimal.Decimal
	HRAEarned     decimal.Decimal
	DAEarned      decimal.Decimal
	TAEarned      decimal.Decimal
	MedicalEarned decimal.Decimal
	SpecialEarned decimal.Decimal
	GrossEarnings decimal.Decimal

	PFEmployee          decimal.Decimal
	PFEmployer          decimal.Decimal
	ESIEmployee         decimal.Decimal
	ESIEmployer         decimal.Decimal
	ProfessionalTax     decimal.Decimal
	TDS                 decimal.Decimal
	LoanDeduction       decimal.Decimal
	OtherDeductions     decimal.Decimal
	OtherDeductionLines []DeductionLine
	LossOfPay           decimal.Decimal
	TotalDeductions     decimal.Decimal

	Readiness     Readiness
	HoldReason    *string
	NetSalary     decimal.Decimal
	PaymentStatus PaymentStatus

	CreatedAt time.Time
	UpdatedAt time.Time

	// Joined fields
	EmployeeName *string
}
