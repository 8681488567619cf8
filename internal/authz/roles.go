package authz

const (
	RoleSales      = 10
	RoleOperations = 20
	RoleAudit      = 30
	RoleManagement = 40
	RoleAdmin      = 50
	// RoleAutomation is the service account of the automation agent.
	RoleAutomation = 60
)

// IsElevated roles may reopen closed leads.
func IsElevated(roleID int) bool {
	return roleID == RoleOperations || roleID == RoleManagement || roleID == RoleAdmin
}

func IsReadOnly(roleID int) bool {
	return roleID == RoleAudit
}

// IsAutomation marks transitions made by the automation agent.
func IsAutomation(roleID int) bool {
	return roleID == RoleAutomation
}

// Known reports whether roleID is one of the roles above.
func Known(roleID int) bool {
	switch roleID {
	case RoleSales, RoleOperations, RoleAudit, RoleManagement, RoleAdmin, RoleAutomation:
		return true
	}
	return false
}
