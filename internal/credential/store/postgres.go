package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"sbt-registry/internal/credential/models"
	id "sbt-registry/pkg/domain"
	"sbt-registry/pkg/platform/sentinel"
)

// uniqueViolation is the Postgres error code for duplicate keys.
const uniqueViolation = "23505"

// Postgres persists credential records in PostgreSQL. ID allocation rides the
// credential_id_seq sequence so concurrent issuers still observe a strictly
// increasing, never-reused ID stream, and Execute serializes validate-then-
// mutate with SELECT ... FOR UPDATE.
type Postgres struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

func (s *Postgres) Create(ctx context.Context, req models.IssueRequest, issuedAt time.Time) (*models.CredentialRecord, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	const query = `
		INSERT INTO credentials (id, holder, title, description, evidence_ref, metadata_ref, issued_at, revoked)
		VALUES (nextval('credential_id_seq'), $1, $2, $3, $4, $5, $6, FALSE)
		RETURNING id
	`
	var allocated uint64
	err := s.db.QueryRowContext(ctx, query,
		req.Holder.String(), req.Title, req.Description, req.EvidenceRef, req.MetadataRef, issuedAt,
	).Scan(&allocated)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && string(pqErr.Code) == uniqueViolation {
			return nil, fmt.Errorf("credential id collision: %w", sentinel.ErrConflict)
		}
		return nil, fmt.Errorf("insert credential: %w", err)
	}

	return &models.CredentialRecord{
		ID:          id.CredentialID(allocated),
		Holder:      req.Holder,
		Title:       req.Title,
		Description: req.Description,
		EvidenceRef: req.EvidenceRef,
		MetadataRef: req.MetadataRef,
		IssuedAt:    issuedAt,
		Revoked:     false,
	}, nil
}

func (s *Postgres) FindByID(ctx context.Context, credentialID id.CredentialID) (*models.CredentialRecord, error) {
	const query = `
		SELECT id, holder, title, description, evidence_ref, metadata_ref, issued_at, revoked, revoked_at
		FROM credentials WHERE id = $1
	`
	record, err := scanCredential(s.db.QueryRowContext(ctx, query, uint64(credentialID)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("credential %s: %w", credentialID, sentinel.ErrNotFound)
		}
		return nil, fmt.Errorf("find credential: %w", err)
	}
	return record, nil
}

func (s *Postgres) ListByHolder(ctx context.Context, holder id.Identity) ([]*models.CredentialRecord, error) {
	// The (holder, id) index serves this directly; no scan of the ID space.
	const query = `
		SELECT id, holder, title, description, evidence_ref, metadata_ref, issued_at, revoked, revoked_at
		FROM credentials WHERE holder = $1 ORDER BY id
	`
	rows, err := s.db.QueryContext(ctx, query, holder.String())
	if err != nil {
		return nil, fmt.Errorf("list credentials by holder: %w", err)
	}
	defer rows.Close()

	var out []*models.CredentialRecord
	for rows.Next() {
		record, err := scanCredential(rows)
		if err != nil {
			return nil, fmt.Errorf("scan credential: %w", err)
		}
		out = append(out, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate credentials: %w", err)
	}
	return out, nil
}

func (s *Postgres) Execute(ctx context.Context, credentialID id.CredentialID,
	validate func(*models.CredentialRecord) error,
	apply func(*models.CredentialRecord)) (*models.CredentialRecord, error) {

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin credential update: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	const query = `
		SELECT id, holder, title, description, evidence_ref, metadata_ref, issued_at, revoked, revoked_at
		FROM credentials WHERE id = $1 FOR UPDATE
	`
	record, err := scanCredential(tx.QueryRowContext(ctx, query, uint64(credentialID)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("credential %s: %w", credentialID, sentinel.ErrNotFound)
		}
		return nil, fmt.Errorf("lock credential: %w", err)
	}

	if err := validate(record); err != nil {
		return nil, err
	}
	apply(record)

	// Holder, title, and the references are immutable; only the revocation
	// flag may legally change, so only it is written back.
	const update = `UPDATE credentials SET revoked = $2, revoked_at = $3 WHERE id = $1`
	if _, err := tx.ExecContext(ctx, update, uint64(record.ID), record.Revoked, record.RevokedAt); err != nil {
		return nil, fmt.Errorf("update credential: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit credential update: %w", err)
	}
	return record, nil
}

func (s *Postgres) Count(ctx context.Context) (uint64, error) {
	var count uint64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM credentials`).Scan(&count); err != nil {
		return 0, fmt.Errorf("count credentials: %w", err)
	}
	return count, nil
}

// rowScanner abstracts *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanCredential(row rowScanner) (*models.CredentialRecord, error) {
	var (
		record    models.CredentialRecord
		rawID     uint64
		holder    string
		revokedAt sql.NullTime
	)
	err := row.Scan(&rawID, &holder, &record.Title, &record.Description,
		&record.EvidenceRef, &record.MetadataRef, &record.IssuedAt, &record.Revoked, &revokedAt)
	if err != nil {
		return nil, err
	}
	record.ID = id.CredentialID(rawID)
	record.Holder = id.Identity(holder)
	if revokedAt.Valid {
		t := revokedAt.Time
		record.RevokedAt = &t
	}
	return &record, nil
}
