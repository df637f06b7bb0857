package payroll

import (
	"github.com/cmlabs-hris/payroll-backend-go/internal/domain/payroll"
	"github.com/shopspring/decimal"
)

const defaultLatesPerLOP = 3

var (
	twelve            = decimal.NewFromInt(12)
	standardDeduction = decimal.NewFromInt(50000)
)

// taxSlab applies Rate to the income above Floor and adds Base, the tax
// accumulated by the slabs below.
type taxSlab struct {
	Floor decimal.Decimal
	Rate  decimal.Decimal
	Base  decimal.Decimal
}

// highest first; comparisons against Floor are strict
var taxSlabs = []taxSlab{
	{Floor: decimal.NewFromInt(1500000), Rate: decimal.RequireFromString("0.30"), Base: decimal.NewFromInt(225000)},
	{Floor: decimal.NewFromInt(1200000), Rate: decimal.RequireFromString("0.20"), Base: decimal.NewFromInt(165000)},
	{Floor: decimal.NewFromInt(900000), Rate: decimal.RequireFromString("0.15"), Base: decimal.NewFromInt(120000)},
	{Floor: decimal.NewFromInt(600000), Rate: decimal.RequireFromString("0.10"), Base: decimal.NewFromInt(75000)},
	{Floor: decimal.NewFromInt(300000), Rate: decimal.RequireFromString("0.05"), Base: decimal.Zero},
}

type DeductionInput struct {
	Config     payroll.PayrollConfig
	Period     payroll.PayrollPeriod
	Structure  payroll.SalaryStructure
	Earnings   Earnings
	Attendance AttendanceSummary
	Loans      []payroll.Loan
	Deductions []payroll.Deduction
}

type Deductions struct {
	PFEmployee      decimal.Decimal
	PFEmployer      decimal.Decimal
	ESIEmployee     decimal.Decimal
	ESIEmployer     decimal.Decimal
	ProfessionalTax decimal.Decimal
	TDS             decimal.Decimal
	Loan            decimal.Decimal
	Other           decimal.Decimal
	OtherLines      []payroll.DeductionLine
	LossOfPay       decimal.Decimal
	Total           decimal.Decimal

	// RepaymentIDs are the loan repayments covered by Loan.
	RepaymentIDs []string
}

// CalculateDeductions computes statutory, loan, ad-hoc and loss-of-pay
// deductions. Employer PF and ESI shares are reported but not part of Total.
func CalculateDeductions(in DeductionInput) Deductions {
	cfg := in.Config
	d := Deductions{
		PFEmployee:      decimal.Zero,
		PFEmployer:      decimal.Zero,
		ESIEmployee:     decimal.Zero,
		ESIEmployer:     decimal.Zero,
		ProfessionalTax: decimal.Zero,
		TDS:             decimal.Zero,
		Loan:            decimal.Zero,
		Other:           decimal.Zero,
	}

	d.LossOfPay = LossOfPay(cfg, in.Structure.GrossSalary, in.Period.TotalWorkingDays, in.Attendance.UnpaidLeaveDays, in.Attendance.LateCount)

	basic := in.Earnings.Basic
	gross := in.Earnings.Gross

	if cfg.EnablePF && basic.LessThanOrEqual(cfg.PFWageLimit) {
		pfBase := decimal.Min(basic, cfg.PFWageLimit)
		d.PFEmployee = pfBase.Mul(cfg.PFEmployeePercent).Div(hundred)
		d.PFEmployer = pfBase.Mul(cfg.PFEmployerPercent).Div(hundred)
	}

	if cfg.EnableESI && gross.LessThanOrEqual(cfg.ESIWageLimit) {
		d.ESIEmployee = gross.Mul(cfg.ESIEmployeePercent).Div(hundred)
		d.ESIEmployer = gross.Mul(cfg.ESIEmployerPercent).Div(hundred)
	}

	if cfg.EnableProfessionalTax {
		d.ProfessionalTax = ProfessionalTax(gross)
	}

	if cfg.EnableTDS {
		d.TDS = MonthlyTDS(gross)
	}

	for _, loan := range in.Loans {
		if len(loan.Repayments) == 0 {
			continue
		}
		// one EMI per loan no matter how many rows matched the month
		d.Loan = d.Loan.Add(loan.EMIAmount)
		for _, rp := range loan.Repayments {
			d.RepaymentIDs = append(d.RepaymentIDs, rp.ID)
		}
	}

	for _, ded := range in.Deductions {
		if !appliesToPeriod(ded, in.Period) {
			continue
		}
		d.Other = d.Other.Add(ded.Amount)
		d.OtherLines = append(d.OtherLines, payroll.DeductionLine{Name: ded.Description, Amount: ded.Amount})
	}

	d.Total = decimal.Sum(d.PFEmployee, d.ESIEmployee, d.ProfessionalTax, d.TDS, d.Loan, d.Other, d.LossOfPay)
	return d
}

// LossOfPay charges unpaid leave days and, when the late penalty is enabled,
// one day per latesPerLOP lates beyond the allowance. A day is valued at the
// full structure gross divided by the working days of the period.
func LossOfPay(cfg payroll.PayrollConfig, grossSalary decimal.Decimal, workingDays int, unpaidDays decimal.Decimal, lateCount int) decimal.Decimal {
	perDay := grossSalary.Div(decimal.NewFromInt(int64(max(workingDays, 1))))
	lop := unpaidDays.Mul(perDay)

	if cfg.LatePenaltyEnabled && lateCount > cfg.AllowedLateCount {
		latesPerLOP := cfg.LatesPerLOP
		if latesPerLOP <= 0 {
			latesPerLOP = defaultLatesPerLOP
		}
		extraDays := (lateCount - cfg.AllowedLateCount) / latesPerLOP
		lop = lop.Add(decimal.NewFromInt(int64(extraDays)).Mul(perDay))
	}

	return lop
}

func ProfessionalTax(gross decimal.Decimal) decimal.Decimal {
	switch {
	case !gross.IsPositive():
		return decimal.Zero
	case gross.GreaterThan(decimal.NewFromInt(20000)):
		return decimal.NewFromInt(200)
	case gross.GreaterThan(decimal.NewFromInt(15000)):
		return decimal.NewFromInt(150)
	case gross.GreaterThan(decimal.NewFromInt(10000)):
		return decimal.NewFromInt(100)
	default:
		return decimal.Zero
	}
}

// MonthlyTDS annualizes the monthly gross, subtracts the standard deduction
// and returns a twelfth of the annual tax.
func MonthlyTDS(gross decimal.Decimal) decimal.Decimal {
	taxable := gross.Mul(twelve).Sub(standardDeduction)
	return AnnualTax(taxable).Div(twelve)
}

func AnnualTax(taxable decimal.Decimal) decimal.Decimal {
	for _, slab := range taxSlabs {
		if taxable.GreaterThan(slab.Floor) {
			return taxable.Sub(slab.Floor).Mul(slab.Rate).Add(slab.Base)
		}
	}
	return decimal.Zero
}

// NetSalary is gross minus deductions, floored at zero.
func NetSalary(gross, totalDeductions decimal.Decimal) decimal.Decimal {
	return decimal.Max(decimal.Zero, gross.Sub(totalDeductions))
}

// appliesToPeriod keeps ONE_TIME and MONTHLY deductions whose active window
// overlaps the period.
func appliesToPeriod(d payroll.Deduction, period payroll.PayrollPeriod) bool {
	if d.Frequency != payroll.DeductionFrequencyOneTime && d.Frequency != payroll.DeductionFrequencyMonthly {
		return false
	}
	if d.StartDate.After(period.EndDate) {
		return false
	}
	if d.EndDate != nil && d.EndDate.Before(period.StartDate) {
		return false
	}
	return true
}
