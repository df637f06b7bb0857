package notification

import (
	"time"

	"github.com/cmlabs-hris/payroll-backend-go/internal/domain/user"
)

// NotificationType represents the type of notification
type NotificationType string

const (
	TypePayrollProcessed     NotificationType = "payroll_processed"
	TypePayrollPeriodCreated NotificationType = "payroll_period_created"
)

// Roles notified about school-wide payroll events
var PayrollAdminRoles = []string{string(user.RoleAdmin), string(user.RolePrincipal), string(user.RoleDirector)}

// Notification represents a notification entity
type Notification struct {
	ID          string
	SchoolID    string
	RecipientID string
	Type        NotificationType
	Title       string
	Message     string
	Data        map[string]interface{}
	IsRead      bool
	CreatedAt   time.Time
}
