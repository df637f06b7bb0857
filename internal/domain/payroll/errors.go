package payroll

import (
	"errors"
	"fmt"
)

var (
	ErrConfigNotFound      = errors.New("payroll configuration not found")
	ErrPeriodNotFound      = errors.New("payroll period not found")
	ErrPeriodForbidden     = errors.New("payroll period belongs to another school")
	ErrPeriodAlreadyExists = errors.New("payroll period already exists for this month")
	ErrInvalidPeriodState  = errors.New("invalid payroll period state")
	ErrEmptyRoster         = errors.New("no active employees found for payroll")
	ErrItemNotFound        = errors.New("payroll item not found")
	ErrSchoolIDRequired    = errors.New("school_id claim is required")
)

// InvalidStateError is returned when a period transition is attempted from
// a status other than the one the transition requires.
type InvalidStateError struct {
	PeriodID string
	Current  PeriodStatus
	Expected PeriodStatus
}

func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("cannot process payroll period %s in %s status (expected %s)", e.PeriodID, e.Current, e.Expected)
}

func (e *InvalidStateError) Is(target error) bool {
	return target == ErrInvalidPeriodState
}
