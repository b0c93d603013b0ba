// Package store persists role assignments.
package store

import (
	"context"

	"sbt-registry/internal/accesscontrol/models"
	id "sbt-registry/pkg/domain"
)

// Store is the identity → role-set table.
//
// Error contract: Revoke returns sentinel.ErrNotFound (possibly wrapped) when
// the assignment does not exist; Grant is an idempotent upsert.
type Store interface {
	// Bootstrap installs the initial assignments atomically. It must only be
	// called on an empty store; reruns on a populated store return
	// sentinel.ErrConflict so a restart cannot silently re-seed roles.
	Bootstrap(ctx context.Context, assignments []models.RoleAssignment) error

	// Grant adds a role to an identity's set. Granting an already-held role
	// is a no-op, not an error.
	Grant(ctx context.Context, assignment models.RoleAssignment) error

	// Revoke removes a role from an identity's set. The validate callback
	// receives the current number of holders of the role, counted under the
	// same lock that guards the delete, so policies like last-admin
	// protection cannot race with concurrent revocations.
	Revoke(ctx context.Context, identity id.Identity, role id.Role, validate func(holders int) error) error

	// HasRole reports whether the identity currently holds the role.
	HasRole(ctx context.Context, identity id.Identity, role id.Role) (bool, error)

	// RolesOf returns the identity's current role set.
	RolesOf(ctx context.Context, identity id.Identity) ([]id.Role, error)
}
