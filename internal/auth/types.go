package auth

import "errors"

// Role determines what a token holder may do.
type Role string

const (
	// RoleViewer may read but not change the thing.
	RoleViewer Role = "viewer"

	// RoleOperator may read and write properties.
	RoleOperator Role = "operator"
)

// ValidRoles lists every assignable role.
var ValidRoles = []Role{RoleViewer, RoleOperator}

// IsValid reports whether r is a known role.
func (r Role) IsValid() bool {
	for _, v := range ValidRoles {
		if r == v {
			return true
		}
	}
	return false
}

// Domain errors for the auth package.
var (
	ErrTokenInvalid   = errors.New("invalid token")
	ErrTokenMissing   = errors.New("missing bearer token")
	ErrInvalidRole    = errors.New("invalid role")
	ErrSecretTooShort = errors.New("signing secret must be at least 32 characters")
)
