package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"sbt-registry/internal/accesscontrol/models"
	id "sbt-registry/pkg/domain"
	"sbt-registry/pkg/platform/sentinel"
)

const uniqueViolation = "23505"

// Postgres persists role assignments in PostgreSQL. Revoke locks every row of
// the affected role with FOR UPDATE before counting, so the last-admin guard
// observes a stable holder count.
type Postgres struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

func (s *Postgres) Bootstrap(ctx context.Context, assignments []models.RoleAssignment) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin bootstrap: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var existing int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM role_assignments`).Scan(&existing); err != nil {
		return fmt.Errorf("check role table: %w", err)
	}
	if existing > 0 {
		return fmt.Errorf("role store already bootstrapped: %w", sentinel.ErrConflict)
	}

	const insert = `
		INSERT INTO role_assignments (identity, role, granted_by, granted_at)
		VALUES ($1, $2, $3, $4)
	`
	for _, a := range assignments {
		if _, err := tx.ExecContext(ctx, insert, a.Identity.String(), a.Role.String(), a.GrantedBy.String(), a.GrantedAt); err != nil {
			var pqErr *pq.Error
			if errors.As(err, &pqErr) && string(pqErr.Code) == uniqueViolation {
				return fmt.Errorf("duplicate bootstrap assignment: %w", sentinel.ErrConflict)
			}
			return fmt.Errorf("insert bootstrap assignment: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit bootstrap: %w", err)
	}
	return nil
}

func (s *Postgres) Grant(ctx context.Context, assignment models.RoleAssignment) error {
	const query = `
		INSERT INTO role_assignments (identity, role, granted_by, granted_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (identity, role) DO NOTHING
	`
	_, err := s.db.ExecContext(ctx, query,
		assignment.Identity.String(), assignment.Role.String(), assignment.GrantedBy.String(), assignment.GrantedAt)
	if err != nil {
		return fmt.Errorf("grant role: %w", err)
	}
	return nil
}

func (s *Postgres) Revoke(ctx context.Context, identity id.Identity, role id.Role, validate func(holders int) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin role revoke: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	rows, err := tx.QueryContext(ctx,
		`SELECT identity FROM role_assignments WHERE role = $1 FOR UPDATE`, role.String())
	if err != nil {
		return fmt.Errorf("lock role holders: %w", err)
	}

	holders := 0
	found := false
	for rows.Next() {
		var holder string
		if err := rows.Scan(&holder); err != nil {
			rows.Close()
			return fmt.Errorf("scan role holder: %w", err)
		}
		holders++
		if id.Identity(holder) == identity {
			found = true
		}
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return fmt.Errorf("iterate role holders: %w", err)
	}
	rows.Close()

	if !found {
		return fmt.Errorf("identity %s does not hold role %s: %w", identity, role, sentinel.ErrNotFound)
	}
	if validate != nil {
		if err := validate(holders); err != nil {
			return err
		}
	}

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM role_assignments WHERE identity = $1 AND role = $2`,
		identity.String(), role.String()); err != nil {
		return fmt.Errorf("delete role assignment: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit role revoke: %w", err)
	}
	return nil
}

func (s *Postgres) HasRole(ctx context.Context, identity id.Identity, role id.Role) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM role_assignments WHERE identity = $1 AND role = $2)`,
		identity.String(), role.String()).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check role: %w", err)
	}
	return exists, nil
}

func (s *Postgres) RolesOf(ctx context.Context, identity id.Identity) ([]id.Role, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT role FROM role_assignments WHERE identity = $1 ORDER BY role`, identity.String())
	if err != nil {
		return nil, fmt.Errorf("list roles: %w", err)
	}
	defer rows.Close()

	var out []id.Role
	for rows.Next() {
		var role string
		if err := rows.Scan(&role); err != nil {
			return nil, fmt.Errorf("scan role: %w", err)
		}
		out = append(out, id.Role(role))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate roles: %w", err)
	}
	return out, nil
}
