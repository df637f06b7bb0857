package postgresql

import (
	"context"
	"fmt"
	"time"

	"github.com/cmlabs-hris/payroll-backend-go/internal/domain/attendance"
	"github.com/cmlabs-hris/payroll-backend-go/internal/pkg/database"
)

type attendanceRepository struct {
	db *database.DB
}

func NewAttendanceRepository(db *database.DB) attendance.AttendanceRepository {
	return &attendanceRepository{db: db}
}

// ListByUserInRange implements attendance.AttendanceRepository.
func (a *attendanceRepository) ListByUserInRange(ctx context.Context, schoolID, userID string, from, to time.Time) ([]attendance.Attendance, error) {
	q := GetQuerier(ctx, a.db)

	query := `
		SELECT id, user_id, school_id, date, status, is_late_check_in, created_at
		FROM attendances
		WHERE user_id = $1
		  AND school_id = $4
		  AND date >= $2::date
		  AND date <= $3::date
		ORDER BY date ASC
	`

	rows, err := q.Query(ctx, query, userID, from, to, schoolID)
	if err != nil {
		return nil, fmt.Errorf("failed to list attendances: %w", err)
	}
	defer rows.Close()

	var records []attendance.Attendance
	for rows.Next() {
		var att attendance.Attendance
		if err := rows.Scan(
			&att.ID, &att.UserID, &att.SchoolID, &att.Date, &att.Status, &att.IsLateCheckIn, &att.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan attendance: %w", err)
		}
		records = append(records, att)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate attendances: %w", err)
	}

	return records, nil
}
