package leave

import (
	"context"
	"time"
)

// LeaveRequestRepository - interface for leave_requests table
type LeaveRequestRepository interface {
	// ListApprovedOverlapping returns APPROVED requests of userID whose
	// [start, end] intersects [from, to].
	ListApprovedOverlapping(ctx context.Context, userID string, from, to time.Time) ([]LeaveRequest, error)
}
