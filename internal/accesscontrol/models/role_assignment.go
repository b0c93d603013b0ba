// Package models holds the role-assignment records backing the access controller.
package models

import (
	"time"

	id "sbt-registry/pkg/domain"
)

// RoleAssignment records that an identity holds a role.
//
// Invariant: at least one identity holds the admin role at all times after
// bootstrap. The store's guarded revoke enforces this; there is no path that
// deletes the final admin row.
type RoleAssignment struct {
	Identity  id.Identity `json:"identity"`
	Role      id.Role     `json:"role"`
	GrantedBy id.Identity `json:"granted_by"`
	GrantedAt time.Time   `json:"granted_at"`
}
