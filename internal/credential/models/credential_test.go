package models

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "sbt-registry/pkg/domain"
	dErrors "sbt-registry/pkg/domain-errors"
)

func validRequest() IssueRequest {
	return IssueRequest{
		Holder:      id.Identity("did:example:student"),
		Title:       "BSc Physics",
		Description: "Completed with honors",
		EvidenceRef: "https://university.example/records/42",
	}
}

func TestIssueRequestValidate(t *testing.T) {
	t.Run("accepts a complete request", func(t *testing.T) {
		require.NoError(t, validRequest().Validate())
	})

	t.Run("rejects a null holder", func(t *testing.T) {
		req := validRequest()
		req.Holder = id.NullIdentity
		err := req.Validate()
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidHolder))
	})

	t.Run("rejects a missing title", func(t *testing.T) {
		req := validRequest()
		req.Title = ""
		assert.Error(t, req.Validate())
	})

	t.Run("enforces field limits", func(t *testing.T) {
		req := validRequest()
		req.Title = strings.Repeat("x", maxTitleLen+1)
		assert.Error(t, req.Validate())

		req = validRequest()
		req.Description = strings.Repeat("x", maxDescLen+1)
		assert.Error(t, req.Validate())

		req = validRequest()
		req.MetadataRef = strings.Repeat("x", maxRefLen+1)
		assert.Error(t, req.Validate())
	})
}

func TestNewCredentialRecord(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	t.Run("builds an active record", func(t *testing.T) {
		record, err := NewCredentialRecord(1, validRequest(), now)
		require.NoError(t, err)
		assert.Equal(t, id.CredentialID(1), record.ID)
		assert.Equal(t, id.Identity("did:example:student"), record.Holder)
		assert.Equal(t, now, record.IssuedAt)
		assert.False(t, record.Revoked)
		assert.Nil(t, record.RevokedAt)
	})

	t.Run("rejects an unallocated ID", func(t *testing.T) {
		_, err := NewCredentialRecord(0, validRequest(), now)
		require.Error(t, err)
	})

	t.Run("rejects an invalid request", func(t *testing.T) {
		req := validRequest()
		req.Holder = id.NullIdentity
		_, err := NewCredentialRecord(1, req, now)
		require.Error(t, err)
	})
}

func TestRevocationTransition(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	later := now.Add(time.Hour)

	t.Run("revocation is legal once", func(t *testing.T) {
		record, err := NewCredentialRecord(1, validRequest(), now)
		require.NoError(t, err)

		require.NoError(t, record.CanRevoke())
		record.ApplyRevocation(later)

		assert.True(t, record.Revoked)
		require.NotNil(t, record.RevokedAt)
		assert.Equal(t, later, *record.RevokedAt)
	})

	t.Run("second revocation is rejected, not a no-op", func(t *testing.T) {
		record, err := NewCredentialRecord(1, validRequest(), now)
		require.NoError(t, err)
		record.ApplyRevocation(later)

		err = record.CanRevoke()
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeAlreadyRevoked))
	})

	t.Run("revocation changes nothing but the flag", func(t *testing.T) {
		record, err := NewCredentialRecord(7, validRequest(), now)
		require.NoError(t, err)
		before := *record

		record.ApplyRevocation(later)

		assert.Equal(t, before.ID, record.ID)
		assert.Equal(t, before.Holder, record.Holder)
		assert.Equal(t, before.Title, record.Title)
		assert.Equal(t, before.IssuedAt, record.IssuedAt)
	})
}
