package leave

import (
	"time"

	"github.com/shopspring/decimal"
)

type LeaveRequestStatus string

const (
	LeaveRequestStatusPending  LeaveRequestStatus = "PENDING"
	LeaveRequestStatusApproved LeaveRequestStatus = "APPROVED"
	LeaveRequestStatusRejected LeaveRequestStatus = "REJECTED"
)

// Leave types that reduce pay
const (
	LeaveTypeUnpaid = "UNPAID"
	LeaveTypeLOP    = "LOP"
)

// LeaveRequest entity
type LeaveRequest struct {
	ID        string
	UserID    string
	LeaveType string
	StartDate time.Time
	EndDate   time.Time

	// TotalDays is nullable in storage; an unset value counts as one day.
	TotalDays decimal.NullDecimal
	Status    LeaveRequestStatus

	CreatedAt time.Time
}

// IsUnpaid reports whether the leave type is deducted as loss of pay.
func (l LeaveRequest) IsUnpaid() bool {
	return l.LeaveType == LeaveTypeUnpaid || l.LeaveType == LeaveTypeLOP
}

// Days returns TotalDays, or one when it is not recorded.
func (l LeaveRequest) Days() decimal.Decimal {
	if !l.TotalDays.Valid {
		return decimal.NewFromInt(1)
	}
	return l.TotalDays.Decimal
}
