// Package models holds the credential aggregate and its lifecycle rules.
package models

import (
	"time"

	id "sbt-registry/pkg/domain"
	dErrors "sbt-registry/pkg/domain-errors"
)

// CredentialRecord is the aggregate root for a soul-bound credential.
//
// Invariants:
//   - ID is unique for the lifetime of the registry and never reassigned,
//     even after a conceptual burn
//   - Holder is set once at issuance and is immutable; no operation may
//     rebind a record to a different holder
//   - Revoked is monotonic: false → true is the only legal transition
//   - Records are never deleted; revocation is a flag, not removal, so the
//     historical audit trail survives
//
// Title, Description, EvidenceRef, and MetadataRef are opaque to the
// registry. EvidenceRef points at supporting evidence, MetadataRef at the
// externally hosted descriptive document; neither is fetched or validated
// beyond basic length limits.
type CredentialRecord struct {
	ID          id.CredentialID `json:"id"`
	Holder      id.Identity     `json:"holder"`
	Title       string          `json:"title"`
	Description string          `json:"description"`
	EvidenceRef string          `json:"evidence_ref"`
	MetadataRef string          `json:"metadata_ref"`
	IssuedAt    time.Time       `json:"issued_at"`
	Revoked     bool            `json:"revoked"`
	RevokedAt   *time.Time      `json:"revoked_at,omitempty"`
}

const (
	maxTitleLen = 256
	maxDescLen  = 4096
	maxRefLen   = 2048
)

// IssueRequest carries the caller-supplied fields of a new credential.
// The ID and IssuedAt are assigned by the registry, never by the caller.
type IssueRequest struct {
	Holder      id.Identity
	Title       string
	Description string
	EvidenceRef string
	MetadataRef string
}

// Validate checks the request against the aggregate's field limits.
func (r IssueRequest) Validate() error {
	if r.Holder.IsNull() {
		return dErrors.New(dErrors.CodeInvalidHolder, "holder identity is required")
	}
	if r.Title == "" {
		return dErrors.New(dErrors.CodeInvalidInput, "title is required")
	}
	if len(r.Title) > maxTitleLen {
		return dErrors.New(dErrors.CodeInvalidInput, "title must be 256 characters or less")
	}
	if len(r.Description) > maxDescLen {
		return dErrors.New(dErrors.CodeInvalidInput, "description must be 4096 characters or less")
	}
	if len(r.EvidenceRef) > maxRefLen || len(r.MetadataRef) > maxRefLen {
		return dErrors.New(dErrors.CodeInvalidInput, "reference must be 2048 characters or less")
	}
	return nil
}

// NewCredentialRecord constructs an active record from a validated request.
// The store assigns the sequence ID; credentialID here is the allocated value.
func NewCredentialRecord(credentialID id.CredentialID, req IssueRequest, now time.Time) (*CredentialRecord, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if credentialID == 0 {
		return nil, dErrors.New(dErrors.CodeInternal, "credential ID must be allocated before construction")
	}
	return &CredentialRecord{
		ID:          credentialID,
		Holder:      req.Holder,
		Title:       req.Title,
		Description: req.Description,
		EvidenceRef: req.EvidenceRef,
		MetadataRef: req.MetadataRef,
		IssuedAt:    now,
		Revoked:     false,
	}, nil
}

// CanRevoke checks whether the revocation transition is legal.
// Use with ApplyRevocation in Execute callbacks so validation and mutation
// happen under the same store lock.
func (c *CredentialRecord) CanRevoke() error {
	if c.Revoked {
		return dErrors.New(dErrors.CodeAlreadyRevoked, "credential is already revoked")
	}
	return nil
}

// ApplyRevocation flips the revoked flag. Call CanRevoke first.
// No other field changes; the record remains queryable forever.
func (c *CredentialRecord) ApplyRevocation(now time.Time) {
	c.Revoked = true
	c.RevokedAt = &now
}
