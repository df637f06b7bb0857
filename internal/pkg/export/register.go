package export

import (
	"fmt"
	"io"

	"github.com/cmlabs-hris/payroll-backend-go/internal/domain/payroll"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

const sheetName = "Register"

var registerHeader = []interface{}{
	"Employee ID", "Employee", "Readiness", "Payment Status", "Days Worked", "Days Absent",
	"Days Leave", "Late Count", "Unpaid Leave Days", "Basic", "HRA", "DA", "TA", "Medical",
	"Special", "Gross", "PF (Employee)", "PF (Employer)", "ESI (Employee)", "ESI (Employer)",
	"Professional Tax", "TDS", "Loan", "Other", "Loss of Pay", "Total Deductions", "Net Salary",
	"Hold Reason",
}

// WriteRegister writes the payroll register of a period as an XLSX workbook
// with one row per item and a totals row.
func WriteRegister(w io.Writer, period payroll.PayrollPeriod, items []payroll.PayrollItem) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", sheetName); err != nil {
		return err
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return err
	}

	title := fmt.Sprintf("Payroll register %02d/%d (%s)", period.Month, period.Year, period.Status)
	if err := f.SetCellValue(sheetName, "A1", title); err != nil {
		return err
	}
	if err := f.SetSheetRow(sheetName, "A3", &registerHeader); err != nil {
		return err
	}
	if err := f.SetRowStyle(sheetName, 3, 3, bold); err != nil {
		return err
	}

	row := 4
	for _, it := range items {
		name := ""
		if it.EmployeeName != nil {
			name = *it.EmployeeName
		}
		hold := ""
		if it.HoldReason != nil {
			hold = *it.HoldReason
		}
		values := []interface{}{
			it.EmployeeID, name, string(it.Readiness), string(it.PaymentStatus),
			num(it.DaysWorked), it.DaysAbsent, it.DaysLeave, it.LateCount, num(it.UnpaidLeaveDays),
			num(it.BasicEarned), num(it.HRAEarned), num(it.DAEarned), num(it.TAEarned),
			num(it.MedicalEarned), num(it.SpecialEarned), num(it.GrossEarnings),
			num(it.PFEmployee), num(it.PFEmployer), num(it.ESIEmployee), num(it.ESIEmployer),
			num(it.ProfessionalTax), num(it.TDS), num(it.LoanDeduction), num(it.OtherDeductions),
			num(it.LossOfPay), num(it.TotalDeductions), num(it.NetSalary), hold,
		}
		cell, err := excelize.CoordinatesToCellName(1, row)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheetName, cell, &values); err != nil {
			return err
		}
		row++
	}

	totals := []interface{}{
		"TOTAL", fmt.Sprintf("%d employees", len(items)),
	}
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	if err := f.SetSheetRow(sheetName, cell, &totals); err != nil {
		return err
	}
	// Gross, Total Deductions and Net Salary columns
	for _, col := range []int{16, 26, 27} {
		sum := decimal.Zero
		for _, it := range items {
			switch col {
			case 16:
				sum = sum.Add(it.GrossEarnings)
			case 26:
				sum = sum.Add(it.TotalDeductions)
			case 27:
				sum = sum.Add(it.NetSalary)
			}
		}
		ref, err := excelize.CoordinatesToCellName(col, row)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(sheetName, ref, num(sum)); err != nil {
			return err
		}
	}
	if err := f.SetRowStyle(sheetName, row, row, bold); err != nil {
		return err
	}

	_, err = f.WriteTo(w)
	return err
}

// num rounds to paise for display; stored values keep full precision.
func num(d decimal.Decimal) float64 {
	return d.Round(2).InexactFloat64()
}
