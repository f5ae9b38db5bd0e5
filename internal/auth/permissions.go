package auth

// Permission represents a named capability in the system.
type Permission string

// Permission constants.
const (
	PermPropertyRead  Permission = "property:read"
	PermPropertyWrite Permission = "property:write"
	PermActionRequest Permission = "action:request"
)

// rolePermissions maps each role to its granted permissions.
var rolePermissions = map[Role][]Permission{
	RoleViewer: {
		PermPropertyRead,
	},
	RoleOperator: {
		PermPropertyRead,
		PermPropertyWrite,
		PermActionRequest,
	},
}

// HasPermission reports whether role grants perm.
func HasPermission(role Role, perm Permission) bool {
	for _, p := range rolePermissions[role] {
		if p == perm {
			return true
		}
	}
	return false
}
