//go:build integration

package store_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"sbt-registry/internal/accesscontrol/models"
	"sbt-registry/internal/accesscontrol/store"
	id "sbt-registry/pkg/domain"
	dErrors "sbt-registry/pkg/domain-errors"
	"sbt-registry/pkg/platform/sentinel"
	"sbt-registry/pkg/testutil/containers"
)

type PostgresRoleSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *store.Postgres
}

func TestPostgresRoleSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresRoleSuite))
}

func (s *PostgresRoleSuite) SetupSuite() {
	mgr := containers.GetManager()
	s.postgres = mgr.GetPostgres(s.T())
	s.store = store.NewPostgres(s.postgres.DB)
}

func (s *PostgresRoleSuite) SetupTest() {
	s.Require().NoError(s.postgres.ResetRegistry(context.Background()))
}

func assignment(identity string, role id.Role) models.RoleAssignment {
	return models.RoleAssignment{
		Identity:  id.Identity(identity),
		Role:      role,
		GrantedBy: id.NullIdentity,
		GrantedAt: time.Now().UTC(),
	}
}

func (s *PostgresRoleSuite) TestBootstrap() {
	ctx := context.Background()

	err := s.store.Bootstrap(ctx, []models.RoleAssignment{
		assignment("did:example:admin", id.RoleAdmin),
		assignment("did:example:registrar", id.RoleIssuer),
	})
	s.Require().NoError(err)

	has, err := s.store.HasRole(ctx, "did:example:admin", id.RoleAdmin)
	s.Require().NoError(err)
	s.True(has)

	// A second bootstrap against a populated table is refused.
	err = s.store.Bootstrap(ctx, []models.RoleAssignment{
		assignment("did:example:other", id.RoleAdmin),
	})
	s.Require().ErrorIs(err, sentinel.ErrConflict)
}

func (s *PostgresRoleSuite) TestGrantIsIdempotent() {
	ctx := context.Background()

	s.Require().NoError(s.store.Grant(ctx, assignment("did:example:registrar", id.RoleIssuer)))
	s.Require().NoError(s.store.Grant(ctx, assignment("did:example:registrar", id.RoleIssuer)))

	roles, err := s.store.RolesOf(ctx, "did:example:registrar")
	s.Require().NoError(err)
	s.Equal([]id.Role{id.RoleIssuer}, roles)
}

func (s *PostgresRoleSuite) TestRevoke() {
	ctx := context.Background()

	s.Require().NoError(s.store.Grant(ctx, assignment("did:example:registrar", id.RoleIssuer)))

	err := s.store.Revoke(ctx, "did:example:registrar", id.RoleIssuer, nil)
	s.Require().NoError(err)

	has, err := s.store.HasRole(ctx, "did:example:registrar", id.RoleIssuer)
	s.Require().NoError(err)
	s.False(has)

	err = s.store.Revoke(ctx, "did:example:registrar", id.RoleIssuer, nil)
	s.Require().ErrorIs(err, sentinel.ErrNotFound)
}

func (s *PostgresRoleSuite) TestRevokeValidateObservesHolderCount() {
	ctx := context.Background()

	s.Require().NoError(s.store.Grant(ctx, assignment("did:example:admin", id.RoleAdmin)))

	guard := func(holders int) error {
		if holders <= 1 {
			return dErrors.New(dErrors.CodeLastAdminProtected, "cannot remove the last administrator")
		}
		return nil
	}

	err := s.store.Revoke(ctx, "did:example:admin", id.RoleAdmin, guard)
	s.Require().ErrorIs(err, dErrors.New(dErrors.CodeLastAdminProtected, ""))

	// The veto left the assignment in place.
	has, err := s.store.HasRole(ctx, "did:example:admin", id.RoleAdmin)
	s.Require().NoError(err)
	s.True(has)

	s.Require().NoError(s.store.Grant(ctx, assignment("did:example:second", id.RoleAdmin)))
	s.Require().NoError(s.store.Revoke(ctx, "did:example:admin", id.RoleAdmin, guard))
}

// TestConcurrentLastAdminRevokes drives concurrent revocations of two admins
// through the guard. FOR UPDATE serializes them, so exactly one succeeds.
func (s *PostgresRoleSuite) TestConcurrentLastAdminRevokes() {
	ctx := context.Background()

	s.Require().NoError(s.store.Grant(ctx, assignment("did:example:a", id.RoleAdmin)))
	s.Require().NoError(s.store.Grant(ctx, assignment("did:example:b", id.RoleAdmin)))

	guard := func(holders int) error {
		if holders <= 1 {
			return dErrors.New(dErrors.CodeLastAdminProtected, "cannot remove the last administrator")
		}
		return nil
	}

	var wg sync.WaitGroup
	var succeeded atomic.Int32
	for _, identity := range []id.Identity{"did:example:a", "did:example:b"} {
		wg.Add(1)
		go func(identity id.Identity) {
			defer wg.Done()
			if err := s.store.Revoke(ctx, identity, id.RoleAdmin, guard); err == nil {
				succeeded.Add(1)
			}
		}(identity)
	}
	wg.Wait()

	s.Equal(int32(1), succeeded.Load(), "exactly one revoke should pass the guard")

	var remaining int
	row := s.postgres.QueryRow(ctx, `SELECT COUNT(*) FROM role_assignments WHERE role = $1`, id.RoleAdmin.String())
	s.Require().NoError(row.Scan(&remaining))
	s.Equal(1, remaining)
}
