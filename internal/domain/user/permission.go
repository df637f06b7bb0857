package user

type Permission string

const (
	// Payroll
	PermissionPayrollView    Permission = "payroll.view"
	PermissionPayrollManage  Permission = "payroll.manage"
	PermissionPayrollProcess Permission = "payroll.process"
	PermissionPayrollExport  Permission = "payroll.export"

	// Notifications
	PermissionNotificationView Permission = "notification.view"
)

// RolePermissions maps roles to their permissions
var RolePermissions = map[Role][]Permission{
	RoleAdmin: {
		PermissionPayrollView,
		PermissionPayrollManage,
		PermissionPayrollProcess,
		PermissionPayrollExport,
		PermissionNotificationView,
	},
	RolePrincipal: {
		PermissionPayrollView,
		PermissionPayrollManage,
		PermissionPayrollProcess,
		PermissionPayrollExport,
		PermissionNotificationView,
	},
	RoleDirector: {
		PermissionPayrollView,
		PermissionPayrollManage,
		PermissionPayrollProcess,
		PermissionPayrollExport,
		PermissionNotificationView,
	},
	RoleAccountant: {
		// Accountant can read and export but not run payroll
		PermissionPayrollView,
		PermissionPayrollExport,
		PermissionNotificationView,
	},
	RoleTeacher: {
		PermissionNotificationView,
	},
	RoleStaff: {
		PermissionNotificationView,
	},
}

// HasPermission checks if a role has a specific permission
func HasPermission(role Role, permission Permission) bool {
	permissions, exists := RolePermissions[role]
	if !exists {
		return false
	}

	for _, p := range permissions {
		if p == permission {
			return true
		}
	}

	return false
}
