// Package store persists credential records. Implementations must provide
// single-writer atomicity: Create allocates the next sequence ID and inserts
// the record in one atomic step, and Execute holds the write lock (mutex or
// FOR UPDATE) across both the validate and apply callbacks.
package store

import (
	"context"
	"time"

	"sbt-registry/internal/credential/models"
	id "sbt-registry/pkg/domain"
)

// Store is the durable mapping of credential ID to record, plus the
// holder index required for enumeration without scanning the ID space.
//
// Error contract: FindByID and Execute return sentinel.ErrNotFound (possibly
// wrapped) for unknown IDs; infrastructure failures are wrapped with context.
type Store interface {
	// Create allocates the next sequential ID (starting at 1), constructs the
	// record with the given issuance time, and persists it atomically.
	Create(ctx context.Context, req models.IssueRequest, issuedAt time.Time) (*models.CredentialRecord, error)

	// FindByID returns a copy of the record.
	FindByID(ctx context.Context, credentialID id.CredentialID) (*models.CredentialRecord, error)

	// ListByHolder returns all records bound to the holder in issuance order.
	ListByHolder(ctx context.Context, holder id.Identity) ([]*models.CredentialRecord, error)

	// Execute runs validate then apply on the record identified by
	// credentialID while holding the write lock, and returns the updated
	// record. If validate fails nothing is persisted.
	Execute(ctx context.Context, credentialID id.CredentialID,
		validate func(*models.CredentialRecord) error,
		apply func(*models.CredentialRecord)) (*models.CredentialRecord, error)

	// Count reports the number of records ever created. Records are never
	// deleted, so this equals the high-water mark of the ID sequence.
	Count(ctx context.Context) (uint64, error)
}
