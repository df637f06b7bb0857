package payroll

import (
	"github.com/cmlabs-hris/payroll-backend-go/internal/domain/payroll"
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

type Earnings struct {
	Basic   decimal.Decimal
	HRA     decimal.Decimal
	DA      decimal.Decimal
	TA      decimal.Decimal
	Medical decimal.Decimal
	Special decimal.Decimal
	Gross   decimal.Decimal
}

// CalculateEarnings pro-rates every structure component by workFactor.
// HRA and DA are percentages of basic.
func CalculateEarnings(s payroll.SalaryStructure, workFactor decimal.Decimal) Earnings {
	e := Earnings{
		Basic:   s.BasicSalary.Mul(workFactor),
		HRA:     s.BasicSalary.Mul(s.HRAPercent).Div(hundred).Mul(workFactor),
		DA:      s.BasicSalary.Mul(s.DAPercent).Div(hundred).Mul(workFactor),
		TA:      s.TAAmount.Mul(workFactor),
		Medical: s.MedicalAllowance.Mul(workFactor),
		Special: s.SpecialAllowance.Mul(workFactor),
	}
	e.Gross = decimal.Sum(e.Basic, e.HRA, e.DA, e.TA, e.Medical, e.Special)
	return e
}
