package user

type Role string

const (
	RoleAdmin      Role = "ADMIN"      // School administrator - full access
	RolePrincipal  Role = "PRINCIPAL"  // Runs payroll for the school
	RoleDirector   Role = "DIRECTOR"   // Runs payroll for the school
	RoleAccountant Role = "ACCOUNTANT" // Reviews and exports payroll
	RoleTeacher    Role = "TEACHER"
	RoleStaff      Role = "STAFF"
)

// IsPayrollAdmin checks if the role may configure and process payroll
func (r Role) IsPayrollAdmin() bool {
	return r == RoleAdmin || r == RolePrincipal || r == RoleDirector
}
