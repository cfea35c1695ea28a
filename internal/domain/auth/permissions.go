package auth

const (
	RoleEmployee       = "employee"
	RolePayrollOfficer = "payroll_officer"
	RoleAccountant     = "accountant"
	RoleHR             = "hr"
	RoleAuditor        = "auditor"
)

const (
	PermPayrollRead     = "payroll.read"
	PermPayrollWrite    = "payroll.write"
	PermPayrollRun      = "payroll.run"
	PermPayrollFinalize = "payroll.finalize"
	PermAuditRead       = "audit.read"
)

var DefaultPermissions = []string{
	PermPayrollRead,
	PermPayrollWrite,
	PermPayrollRun,
	PermPayrollFinalize,
	PermAuditRead,
}

// RolePermissions lists the permissions granted directly to each role.
// Inherited grants come from RoleInherits.
var RolePermissions = map[string][]string{
	RoleEmployee: {
		PermPayrollRead,
	},
	RolePayrollOfficer: {
		PermPayrollRead,
		PermPayrollWrite,
		PermPayrollRun,
	},
	RoleAccountant: {
		PermPayrollRead,
		PermPayrollFinalize,
	},
	RoleHR: {
		PermAuditRead,
	},
	RoleAuditor: {
		PermPayrollRead,
		PermAuditRead,
	},
}

// RoleInherits maps a role to the roles whose permissions it also holds.
var RoleInherits = map[string][]string{
	RoleHR: {RolePayrollOfficer, RoleAccountant},
}

type UserContext struct {
	UserID   string
	TenantID string
	RoleID   string
	RoleName string
}
