package domain

import dErrors "sbt-registry/pkg/domain-errors"

// Role is a named capability an identity may hold.
type Role string

const (
	// RoleAdmin may grant and revoke roles. At least one identity must hold
	// it at all times after bootstrap.
	RoleAdmin Role = "admin"

	// RoleIssuer may issue and revoke credentials.
	RoleIssuer Role = "issuer"
)

var knownRoles = map[Role]struct{}{
	RoleAdmin:  {},
	RoleIssuer: {},
}

// ParseRole validates an externally supplied role name.
func ParseRole(s string) (Role, error) {
	r := Role(s)
	if _, ok := knownRoles[r]; !ok {
		return "", dErrors.New(dErrors.CodeInvalidInput, "unknown role: "+s)
	}
	return r, nil
}

func (r Role) String() string { return string(r) }
