package payroll

import (
	"time"

	"github.com/cmlabs-hris/payroll-backend-go/internal/pkg/validator"
	"github.com/shopspring/decimal"
)

// ========== CONFIG DTOs ==========

type ConfigResponse struct {
	ID                       string          `json:"id"`
	SchoolID                 string          `json:"school_id"`
	EnablePF                 bool            `json:"enable_pf"`
	EnableESI                bool            `json:"enable_esi"`
	EnableProfessionalTax    bool            `json:"enable_professional_tax"`
	EnableTDS                bool            `json:"enable_tds"`
	LatePenaltyEnabled       bool            `json:"late_penalty_enabled"`
	PFEmployeePercent        decimal.Decimal `json:"pf_employee_percent"`
	PFEmployerPercent        decimal.Decimal `json:"pf_employer_percent"`
	PFWageLimit              decimal.Decimal `json:"pf_wage_limit"`
	ESIEmployeePercent       decimal.Decimal `json:"esi_employee_percent"`
	ESIEmployerPercent       decimal.Decimal `json:"esi_employer_percent"`
	ESIWageLimit             decimal.Decimal `json:"esi_wage_limit"`
	AllowedLateCount         int             `json:"allowed_late_count"`
	LatesPerLOP              int             `json:"lates_per_lop"`
	EnableAutoPeriodCreation bool            `json:"enable_auto_period_creation"`
	PayCycleDay              int             `json:"pay_cycle_day"`
	UpdatedAt                time.Time       `json:"updated_at"`
}

type UpsertConfigRequest struct {
	EnablePF                 bool            `json:"enable_pf"`
	EnableESI                bool            `json:"enable_esi"`
	EnableProfessionalTax    bool            `json:"enable_professional_tax"`
	EnableTDS                bool            `json:"enable_tds"`
	LatePenaltyEnabled       bool            `json:"late_penalty_enabled"`
	PFEmployeePercent        decimal.Decimal `json:"pf_employee_percent"`
	PFEmployerPercent        decimal.Decimal `json:"pf_employer_percent"`
	PFWageLimit              decimal.Decimal `json:"pf_wage_limit"`
	ESIEmployeePercent       decimal.Decimal `json:"esi_employee_percent"`
	ESIEmployerPercent       decimal.Decimal `json:"esi_employer_percent"`
	ESIWageLimit             decimal.Decimal `json:"esi_wage_limit"`
	AllowedLateCount         int             `json:"allowed_late_count" validate:"gte=0"`
	LatesPerLOP              int             `json:"lates_per_lop" validate:"gte=0"`
	EnableAutoPeriodCreation bool            `json:"enable_auto_period_creation"`
	PayCycleDay              int             `json:"pay_cycle_day" validate:"omitempty,min=1,max=28"`
}

var hundred = decimal.NewFromInt(100)

func (r *UpsertConfigRequest) Validate() error {
	errs := validator.Struct(r)

	percents := map[string]decimal.Decimal{
		"pf_employee_percent":  r.PFEmployeePercent,
		"pf_employer_percent":  r.PFEmployerPercent,
		"esi_employee_percent": r.ESIEmployeePercent,
		"esi_employer_percent": r.ESIEmployerPercent,
	}
	for field, v := range percents {
		if v.IsNegative() || v.GreaterThan(hundred) {
			errs = append(errs, validator.ValidationError{Field: field, Message: "must be between 0 and 100"})
		}
	}
	if r.PFWageLimit.IsNegative() {
		errs = append(errs, validator.ValidationError{Field: "pf_wage_limit", Message: "must be non-negative"})
	}
	if r.ESIWageLimit.IsNegative() {
		errs = append(errs, validator.ValidationError{Field: "esi_wage_limit", Message: "must be non-negative"})
	}
	if r.EnableAutoPeriodCreation && r.PayCycleDay == 0 {
		errs = append(errs, validator.ValidationError{Field: "pay_cycle_day", Message: "is required when auto period creation is enabled"})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// ========== PERIOD DTOs ==========

type CreatePeriodRequest struct {
	Month            int `json:"month" validate:"required,min=1,max=12"`
	Year             int `json:"year" validate:"required,min=2000,max=2100"`
	TotalWorkingDays int `json:"total_working_days" validate:"gte=0,lte=31"`
	Holidays         int `json:"holidays" validate:"gte=0,lte=31"`
	Weekends         int `json:"weekends" validate:"gte=0,lte=31"`
}

func (r *CreatePeriodRequest) Validate() error {
	errs := validator.Struct(r)
	if r.TotalWorkingDays+r.Holidays+r.Weekends > 31 {
		errs = append(errs, validator.ValidationError{Field: "total_working_days", Message: "working days, holidays and weekends exceed the month"})
	}
	if len(errs) > 0 {
		return errs
	}
	return nil
}

type PeriodResponse struct {
	ID               string          `json:"id"`
	SchoolID         string          `json:"school_id"`
	Month            int             `json:"month"`
	Year             int             `json:"year"`
	StartDate        string          `json:"start_date"`
	EndDate          string          `json:"end_date"`
	TotalWorkingDays int             `json:"total_working_days"`
	Holidays         int             `json:"holidays"`
	Weekends         int             `json:"weekends"`
	Status           PeriodStatus    `json:"status"`
	TotalEmployees   int             `json:"total_employees"`
	TotalGrossSalary decimal.Decimal `json:"total_gross_salary"`
	TotalDeductions  decimal.Decimal `json:"total_deductions"`
	TotalNetSalary   decimal.Decimal `json:"total_net_salary"`
	ProcessedAt      *time.Time      `json:"processed_at,omitempty"`
	ProcessedBy      *string         `json:"processed_by,omitempty"`
}

func NewPeriodResponse(p PayrollPeriod) PeriodResponse {
	return PeriodResponse{
		ID:               p.ID,
		SchoolID:         p.SchoolID,
		Month:            p.Month,
		Year:             p.Year,
		StartDate:        p.StartDate.Format("2006-01-02"),
		EndDate:          p.EndDate.Format("2006-01-02"),
		TotalWorkingDays: p.TotalWorkingDays,
		Holidays:         p.Holidays,
		Weekends:         p.Weekends,
		Status:           p.Status,
		TotalEmployees:   p.TotalEmployees,
		TotalGrossSalary: p.TotalGrossSalary,
		TotalDeductions:  p.TotalDeductions,
		TotalNetSalary:   p.TotalNetSalary,
		ProcessedAt:      p.ProcessedAt,
		ProcessedBy:      p.ProcessedBy,
	}
}

// ========== ITEM DTOs ==========

type ItemResponse struct {
	ID                  string          `json:"id"`
	PeriodID            string          `json:"period_id"`
	EmployeeID          string          `json:"employee_id"`
	EmployeeName        *string         `json:"employee_name,omitempty"`
	DaysWorked          decimal.Decimal `json:"days_worked"`
	DaysAbsent          int             `json:"days_absent"`
	DaysLeave           int             `json:"days_leave"`
	LateCount           int             `json:"late_count"`
	HalfDayCount        int             `json:"half_day_count"`
	UnpaidLeaveDays     decimal.Decimal `json:"unpaid_leave_days"`
	BasicEarned         decimal.Decimal `json:"basic_earned"`
	HRAEarned           decimal.Decimal `json:"hra_earned"`
	DAEarned            decimal.Decimal `json:"da_earned"`
	TAEarned            decimal.Decimal `json:"ta_earned"`
	MedicalEarned       decimal.Decimal `json:"medical_earned"`
	SpecialEarned       decimal.Decimal `json:"special_earned"`
	GrossEarnings       decimal.Decimal `json:"gross_earnings"`
	PFEmployee          decimal.Decimal `json:"pf_employee"`
	PFEmployer          decimal.Decimal `json:"pf_employer"`
	ESIEmployee         decimal.Decimal `json:"esi_employee"`
	ESIEmployer         decimal.Decimal `json:"esi_employer"`
	ProfessionalTax     decimal.Decimal `json:"professional_tax"`
	TDS                 decimal.Decimal `json:"tds"`
	LoanDeduction       decimal.Decimal `json:"loan_deduction"`
	OtherDeductions     decimal.Decimal `json:"other_deductions"`
	OtherDeductionLines []DeductionLine `json:"other_deduction_lines,omitempty"`
	LossOfPay           decimal.Decimal `json:"loss_of_pay"`
	TotalDeductions     decimal.Decimal `json:"total_deductions"`
	NetSalary           decimal.Decimal `json:"net_salary"`
	Readiness           Readiness       `json:"readiness"`
	HoldReason          *string         `json:"hold_reason,omitempty"`
	PaymentStatus       PaymentStatus   `json:"payment_status"`
}

func NewItemResponse(it PayrollItem) ItemResponse {
	return ItemResponse{
		ID:                  it.ID,
		PeriodID:            it.PeriodID,
		EmployeeID:          it.EmployeeID,
		EmployeeName:        it.EmployeeName,
		DaysWorked:          it.DaysWorked,
		DaysAbsent:          it.DaysAbsent,
		DaysLeave:           it.DaysLeave,
		LateCount:           it.LateCount,
		HalfDayCount:        it.HalfDayCount,
		UnpaidLeaveDays:     it.UnpaidLeaveDays,
		BasicEarned:         it.BasicEarned,
		HRAEarned:           it.HRAEarned,
		DAEarned:            it.DAEarned,
		TAEarned:            it.TAEarned,
		MedicalEarned:       it.MedicalEarned,
		SpecialEarned:       it.SpecialEarned,
		GrossEarnings:       it.GrossEarnings,
		PFEmployee:          it.PFEmployee,
		PFEmployer:          it.PFEmployer,
		ESIEmployee:         it.ESIEmployee,
		ESIEmployer:         it.ESIEmployer,
		ProfessionalTax:     it.ProfessionalTax,
		TDS:                 it.TDS,
		LoanDeduction:       it.LoanDeduction,
		OtherDeductions:     it.OtherDeductions,
		OtherDeductionLines: it.OtherDeductionLines,
		LossOfPay:           it.LossOfPay,
		TotalDeductions:     it.TotalDeductions,
		NetSalary:           it.NetSalary,
		Readiness:           it.Readiness,
		HoldReason:          it.HoldReason,
		PaymentStatus:       it.PaymentStatus,
	}
}

// ========== BATCH RESULT ==========

type EmployeeEntry struct {
	EmployeeID string          `json:"employeeId"`
	Name       string          `json:"name"`
	NetSalary  decimal.Decimal `json:"netSalary"`
	Status     Readiness       `json:"status"`
}

type SkippedEntry struct {
	EmployeeID string `json:"employeeId"`
	Name       string `json:"name"`
	Reason     string `json:"reason"`
}

type OnHoldEntry struct {
	EmployeeID string    `json:"employeeId"`
	Name       string    `json:"name"`
	Reason     string    `json:"reason"`
	Status     Readiness `json:"status"`
}

type FailedEntry struct {
	EmployeeID string `json:"employeeId"`
	Name       string `json:"name"`
	Error      string `json:"error"`
}

type ValidationSummary struct {
	Ready              int `json:"ready"`
	OnHoldBank         int `json:"onHoldBank"`
	OnHoldApproval     int `json:"onHoldApproval"`
	SkippedNoStructure int `json:"skippedNoStructure"`
	Total              int `json:"total"`
}

// BatchResult is the outcome of one processing run. Unlike the snake_case
// period and item responses, the batch result and the preview use camelCase
// field names because existing payroll clients read them in that shape.
type BatchResult struct {
	Success           []EmployeeEntry   `json:"success"`
	Failed            []FailedEntry     `json:"failed"`
	Skipped           []SkippedEntry    `json:"skipped"`
	OnHold            []OnHoldEntry     `json:"onHold"`
	ValidationSummary ValidationSummary `json:"validationSummary"`
}

type ProcessPeriodResponse struct {
	Period  PeriodResponse `json:"period"`
	Results BatchResult    `json:"results"`
}

// ========== PREVIEW DTOs ==========

type PreviewEmployee struct {
	EmployeeID       string          `json:"employeeId"`
	Name             string          `json:"name"`
	Readiness        Readiness       `json:"readiness"`
	HoldReason       *string         `json:"holdReason,omitempty"`
	HasStructure     bool            `json:"hasStructure"`
	HasBankDetails   bool            `json:"hasBankDetails"`
	PendingApproval  bool            `json:"pendingApproval"`
	AttendanceCount  int             `json:"attendanceCount"`
	DaysWorked       decimal.Decimal `json:"daysWorked"`
	DaysAbsent       int             `json:"daysAbsent"`
	DaysLeave        int             `json:"daysLeave"`
	LateCount        int             `json:"lateCount"`
	UnpaidLeaveDays  decimal.Decimal `json:"unpaidLeaveDays"`
	ExpectedGross    decimal.Decimal `json:"expectedGross"`
	AlreadyProcessed bool            `json:"alreadyProcessed"`
	Warnings         []string        `json:"warnings"`
}

type PreviewSummary struct {
	TotalEmployees   int `json:"totalEmployees"`
	ReadyToProcess   int `json:"readyToProcess"`
	NoStructure      int `json:"noStructure"`
	NoBankDetails    int `json:"noBankDetails"`
	PendingApproval  int `json:"pendingApproval"`
	NoAttendance     int `json:"noAttendance"`
	AlreadyProcessed int `json:"alreadyProcessed"`
}

// PreviewResponse is camelCase like BatchResult.
type PreviewResponse struct {
	Period    PeriodResponse    `json:"period"`
	Summary   PreviewSummary    `json:"summary"`
	Employees []PreviewEmployee `json:"employees"`
}
