package attendance

import (
	"time"
)

// Status values recorded for a day of attendance
const (
	StatusPresent = "PRESENT"
	StatusAbsent  = "ABSENT"
	StatusOnLeave = "ON_LEAVE"
	StatusHalfDay = "HALF_DAY"
	StatusLate    = "LATE"
)

type Attendance struct {
	ID            string
	UserID        string
	SchoolID      string
	Date          time.Time
	Status        string
	IsLateCheckIn bool
	CreatedAt     time.Time
}
