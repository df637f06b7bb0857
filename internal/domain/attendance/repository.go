package attendance

import (
	"context"
	"time"
)

// AttendanceRepository defines data access methods for attendance records.
type AttendanceRepository interface {
	// ListByUserInRange returns the records of userID at schoolID dated within [from, to], both inclusive.
	ListByUserInRange(ctx context.Context, schoolID, userID string, from, to time.Time) ([]Attendance, error)
}
