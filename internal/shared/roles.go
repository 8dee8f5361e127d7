package shared

import "strings"

// Role identifies a user's position in the approval chain. Roles are data
// values that drive routing rules, not a hierarchy of types.
type Role string

const (
	RoleAccountingStaff   Role = "Accounting Staff"
	RoleHRStaff           Role = "HR Staff"
	RoleITStaff           Role = "IT Staff"
	RoleMarketingStaff    Role = "Marketing Staff"
	RoleProcurementStaff  Role = "Procurement Staff"
	RoleOperationStaff    Role = "Operation Staff"
	RoleProjectStaff      Role = "Project Staff"
	RoleDepartmentManager Role = "Department Manager"
	RoleOperationManager  Role = "Operation Manager"
	RoleGM                Role = "GM"
	RoleFinanceStaff      Role = "Finance Staff"
	RoleFinanceAdmin      Role = "Finance Admin"
)

// AllRoles lists every recognised role value.
var AllRoles = []Role{
	RoleAccountingStaff,
	RoleHRStaff,
	RoleITStaff,
	RoleMarketingStaff,
	RoleProcurementStaff,
	RoleOperationStaff,
	RoleProjectStaff,
	RoleDepartmentManager,
	RoleOperationManager,
	RoleGM,
	RoleFinanceStaff,
	RoleFinanceAdmin,
}

// Valid reports whether the role is one of the recognised values.
func (r Role) Valid() bool {
	for _, known := range AllRoles {
		if r == known {
			return true
		}
	}
	return false
}

// IsStaff reports whether the role is a department staff variant.
func (r Role) IsStaff() bool {
	return strings.HasSuffix(string(r), " Staff")
}

// IsFinance reports whether the role belongs to the finance department.
func (r Role) IsFinance() bool {
	return r == RoleFinanceStaff || r == RoleFinanceAdmin
}

// Slug returns the lowercase underscore form used for realtime room names.
func (r Role) Slug() string {
	return strings.ReplaceAll(strings.ToLower(string(r)), " ", "_")
}

// Department names used across the workflow. Free-form values are accepted
// for new departments; these constants cover the routing special cases.
const (
	DepartmentIT        = "IT"
	DepartmentFinance   = "Finance"
	DepartmentOperation = "Operation"
)
