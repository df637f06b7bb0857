package payslip

import (
	"fmt"
	"io"
	"time"

	"github.com/cmlabs-hris/payroll-backend-go/internal/domain/payroll"
	"github.com/jung-kurt/gofpdf"
	"github.com/shopspring/decimal"
)

type line struct {
	label  string
	amount decimal.Decimal
}

// Render writes a one-page A4 payslip for a stored payroll item.
func Render(w io.Writer, period payroll.PayrollPeriod, item payroll.PayrollItem) error {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetTitle("Payslip", false)
	pdf.AddPage()
	pdf.SetFillColor(230, 230, 230)

	pdf.SetFont("Helvetica", "B", 16)
	pdf.Cell(0, 10, "Payslip")
	pdf.Ln(12)

	pdf.SetFont("Helvetica", "", 11)
	name := item.EmployeeID
	if item.EmployeeName != nil && *item.EmployeeName != "" {
		name = *item.EmployeeName
	}
	pdf.Cell(0, 7, fmt.Sprintf("Employee: %s", name))
	pdf.Ln(6)
	pdf.Cell(0, 7, fmt.Sprintf("Period: %s %d (%s to %s)",
		time.Month(period.Month).String(), period.Year,
		period.StartDate.Format("2006-01-02"), period.EndDate.Format("2006-01-02")))
	pdf.Ln(6)
	pdf.Cell(0, 7, fmt.Sprintf("Days worked: %s of %d   Absent: %d   Leave: %d   Late: %d",
		item.DaysWorked.String(), period.TotalWorkingDays, item.DaysAbsent, item.DaysLeave, item.LateCount))
	pdf.Ln(10)

	earnings := []line{
		{"Basic", item.BasicEarned},
		{"HRA", item.HRAEarned},
		{"DA", item.DAEarned},
		{"Travel allowance", item.TAEarned},
		{"Medical allowance", item.MedicalEarned},
		{"Special allowance", item.SpecialEarned},
	}
	deductions := []line{
		{"Provident fund", item.PFEmployee},
		{"ESI", item.ESIEmployee},
		{"Professional tax", item.ProfessionalTax},
		{"TDS", item.TDS},
		{"Loan EMI", item.LoanDeduction},
		{"Loss of pay", item.LossOfPay},
	}
	for _, d := range item.OtherDeductionLines {
		deductions = append(deductions, line{d.Name, d.Amount})
	}

	table(pdf, "Earnings", earnings, line{"Gross earnings", item.GrossEarnings})
	pdf.Ln(4)
	table(pdf, "Deductions", deductions, line{"Total deductions", item.TotalDeductions})
	pdf.Ln(6)

	pdf.SetFont("Helvetica", "B", 13)
	pdf.CellFormat(120, 9, "Net salary", "1", 0, "L", false, 0, "")
	pdf.CellFormat(60, 9, item.NetSalary.StringFixed(2), "1", 1, "R", false, 0, "")

	if item.HoldReason != nil {
		pdf.Ln(4)
		pdf.SetFont("Helvetica", "I", 10)
		pdf.Cell(0, 6, fmt.Sprintf("Payment on hold: %s", *item.HoldReason))
	}

	return pdf.Output(w)
}

func table(pdf *gofpdf.Fpdf, title string, rows []line, total line) {
	pdf.SetFont("Helvetica", "B", 11)
	pdf.CellFormat(180, 8, title, "1", 1, "L", true, 0, "")

	pdf.SetFont("Helvetica", "", 11)
	for _, r := range rows {
		if r.amount.IsZero() {
			continue
		}
		pdf.CellFormat(120, 7, r.label, "LR", 0, "L", false, 0, "")
		pdf.CellFormat(60, 7, r.amount.StringFixed(2), "LR", 1, "R", false, 0, "")
	}

	pdf.SetFont("Helvetica", "B", 11)
	pdf.CellFormat(120, 8, total.label, "1", 0, "L", false, 0, "")
	pdf.CellFormat(60, 8, total.amount.StringFixed(2), "1", 1, "R", false, 0, "")
}
