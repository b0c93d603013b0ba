package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/suite"

	"sbt-registry/internal/accesscontrol/store"
	id "sbt-registry/pkg/domain"
	dErrors "sbt-registry/pkg/domain-errors"
)

const (
	admin   = id.Identity("did:example:admin")
	issuer  = id.Identity("did:example:issuer")
	student = id.Identity("did:example:student")
)

type AccessControlSuite struct {
	suite.Suite
	svc *Service
	ctx context.Context
}

func (s *AccessControlSuite) SetupTest() {
	s.svc = NewService(store.NewInMemory())
	s.ctx = context.Background()
}

func TestAccessControlSuite(t *testing.T) {
	suite.Run(t, new(AccessControlSuite))
}

func (s *AccessControlSuite) bootstrap() {
	s.Require().NoError(s.svc.Bootstrap(s.ctx, admin, issuer))
}

// TestBootstrap verifies initial seeding and its guards.
func (s *AccessControlSuite) TestBootstrap() {
	s.Run("seeds admin and issuer", func() {
		s.bootstrap()

		isAdmin, err := s.svc.HasRole(s.ctx, admin, id.RoleAdmin)
		s.Require().NoError(err)
		s.True(isAdmin)

		isIssuer, err := s.svc.HasRole(s.ctx, issuer, id.RoleIssuer)
		s.Require().NoError(err)
		s.True(isIssuer)

		// The issuer does not implicitly become admin, nor vice versa.
		crossed, err := s.svc.HasRole(s.ctx, issuer, id.RoleAdmin)
		s.Require().NoError(err)
		s.False(crossed)
	})

	s.Run("rejects rerun with conflict", func() {
		err := s.svc.Bootstrap(s.ctx, student, student)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))
	})
}

func (s *AccessControlSuite) TestBootstrapRequiresIdentities() {
	err := s.svc.Bootstrap(s.ctx, id.NullIdentity, issuer)
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))

	err = s.svc.Bootstrap(s.ctx, admin, id.NullIdentity)
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
}

// TestRoleQueries verifies HasRole and RequireRole semantics.
func (s *AccessControlSuite) TestRoleQueries() {
	s.bootstrap()

	s.Run("null identity holds nothing", func() {
		held, err := s.svc.HasRole(s.ctx, id.NullIdentity, id.RoleAdmin)
		s.Require().NoError(err)
		s.False(held)
	})

	s.Run("RequireRole passes for holders", func() {
		s.Require().NoError(s.svc.RequireRole(s.ctx, issuer, id.RoleIssuer))
	})

	s.Run("RequireRole rejects non-holders as unauthorized", func() {
		err := s.svc.RequireRole(s.ctx, student, id.RoleIssuer)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})
}

// TestGrantRole verifies the admin gate and idempotency.
func (s *AccessControlSuite) TestGrantRole() {
	s.bootstrap()

	s.Run("admin grants a role", func() {
		s.Require().NoError(s.svc.GrantRole(s.ctx, admin, student, id.RoleIssuer))

		held, err := s.svc.HasRole(s.ctx, student, id.RoleIssuer)
		s.Require().NoError(err)
		s.True(held)
	})

	s.Run("regrant is a no-op", func() {
		s.Require().NoError(s.svc.GrantRole(s.ctx, admin, student, id.RoleIssuer))

		roles, err := s.svc.RolesOf(s.ctx, student)
		s.Require().NoError(err)
		s.Equal([]id.Role{id.RoleIssuer}, roles)
	})

	s.Run("non-admin cannot grant", func() {
		err := s.svc.GrantRole(s.ctx, issuer, student, id.RoleAdmin)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))

		held, hasErr := s.svc.HasRole(s.ctx, student, id.RoleAdmin)
		s.Require().NoError(hasErr)
		s.False(held)
	})
}

// TestRevokeRole verifies the admin gate, not-found handling, and the
// last-admin protection.
func (s *AccessControlSuite) TestRevokeRole() {
	s.bootstrap()

	s.Run("admin revokes a role", func() {
		s.Require().NoError(s.svc.GrantRole(s.ctx, admin, student, id.RoleIssuer))
		s.Require().NoError(s.svc.RevokeRole(s.ctx, admin, student, id.RoleIssuer))

		held, err := s.svc.HasRole(s.ctx, student, id.RoleIssuer)
		s.Require().NoError(err)
		s.False(held)
	})

	s.Run("revoking an unheld role is not found", func() {
		err := s.svc.RevokeRole(s.ctx, admin, student, id.RoleIssuer)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Run("non-admin cannot revoke", func() {
		err := s.svc.RevokeRole(s.ctx, issuer, admin, id.RoleAdmin)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})

	s.Run("the sole admin cannot be stripped, even by itself", func() {
		err := s.svc.RevokeRole(s.ctx, admin, admin, id.RoleAdmin)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeLastAdminProtected))

		held, hasErr := s.svc.HasRole(s.ctx, admin, id.RoleAdmin)
		s.Require().NoError(hasErr)
		s.True(held)
	})

	s.Run("an admin can be removed once another exists", func() {
		second := id.Identity("did:example:admin2")
		s.Require().NoError(s.svc.GrantRole(s.ctx, admin, second, id.RoleAdmin))
		s.Require().NoError(s.svc.RevokeRole(s.ctx, second, admin, id.RoleAdmin))

		held, err := s.svc.HasRole(s.ctx, admin, id.RoleAdmin)
		s.Require().NoError(err)
		s.False(held)

		// And the protection now applies to the survivor.
		err = s.svc.RevokeRole(s.ctx, second, second, id.RoleAdmin)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeLastAdminProtected))
	})
}
