package payroll

import (
	"github.com/cmlabs-hris/payroll-backend-go/internal/domain/payroll"
)

const (
	reasonNoStructure     = "No salary structure assigned"
	reasonNoBankDetails   = "Bank details missing"
	reasonPendingApproval = "Profile updates pending approval"
	reasonProcessingError = "Processing error - please retry"
)

// ValidateReadiness classifies an employee before calculation. A missing
// salary structure wins over everything; a pending profile approval wins
// over missing bank details.
func ValidateReadiness(p payroll.EmployeePayrollProfile) (payroll.Readiness, string) {
	if p.SalaryStructure == nil {
		return payroll.ReadinessSkippedNoStructure, reasonNoStructure
	}
	if p.PendingBankDetails || p.PendingIDDetails {
		return payroll.ReadinessOnHoldApproval, reasonPendingApproval
	}
	if !HasBankDetails(p) {
		return payroll.ReadinessOnHoldBank, reasonNoBankDetails
	}
	return payroll.ReadinessReady, ""
}

func HasBankDetails(p payroll.EmployeePayrollProfile) bool {
	return p.AccountNumber != nil && *p.AccountNumber != "" &&
		p.IFSCCode != nil && *p.IFSCCode != ""
}

func paymentStatusFor(r payroll.Readiness) payroll.PaymentStatus {
	switch r {
	case payroll.ReadinessReady:
		return payroll.PaymentStatusPending
	case payroll.ReadinessSkippedNoStructure:
		return payroll.PaymentStatusSkipped
	default:
		return payroll.PaymentStatusOnHold
	}
}
