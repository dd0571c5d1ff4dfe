package user

type Permission string

const (
	// Retro Pay
	PermissionRetroPayView    Permission = "retro_pay.view"
	PermissionRetroPayCreate  Permission = "retro_pay.create"
	PermissionRetroPayApprove Permission = "retro_pay.approve"
)

// RolePermissions maps roles to their permissions
var RolePermissions = map[Role][]Permission{
	RoleOwner: {
		// Owner has all permissions
		PermissionRetroPayView,
		PermissionRetroPayCreate,
		PermissionRetroPayApprove,
	},
	RoleManager: {
		// Manager prepares adjustments; the owner signs them off
		PermissionRetroPayView,
		PermissionRetroPayCreate,
	},
	RoleEmployee: {},
	RolePending: {
		// Pending role has no permissions
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
