package store

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"sbt-registry/internal/credential/models"
	id "sbt-registry/pkg/domain"
	dErrors "sbt-registry/pkg/domain-errors"
	"sbt-registry/pkg/platform/sentinel"
)

type CredentialStoreSuite struct {
	suite.Suite
	store *InMemory
	ctx   context.Context
	now   time.Time
}

func (s *CredentialStoreSuite) SetupTest() {
	s.store = NewInMemory()
	s.ctx = context.Background()
	s.now = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
}

func TestCredentialStoreSuite(t *testing.T) {
	suite.Run(t, new(CredentialStoreSuite))
}

func (s *CredentialStoreSuite) issueTo(holder string, title string) *models.CredentialRecord {
	record, err := s.store.Create(s.ctx, models.IssueRequest{
		Holder: id.Identity(holder),
		Title:  title,
	}, s.now)
	s.Require().NoError(err)
	return record
}

// TestSequentialIDs verifies IDs are allocated from 1 in issuance order.
func (s *CredentialStoreSuite) TestSequentialIDs() {
	first := s.issueTo("alice", "First")
	second := s.issueTo("bob", "Second")
	third := s.issueTo("alice", "Third")

	s.Equal(id.CredentialID(1), first.ID)
	s.Equal(id.CredentialID(2), second.ID)
	s.Equal(id.CredentialID(3), third.ID)

	count, err := s.store.Count(s.ctx)
	s.Require().NoError(err)
	s.Equal(uint64(3), count)
}

// TestLookups verifies retrieval by ID and the not-found sentinel.
func (s *CredentialStoreSuite) TestLookups() {
	s.Run("finds a created record", func() {
		created := s.issueTo("alice", "Degree")

		found, err := s.store.FindByID(s.ctx, created.ID)
		s.Require().NoError(err)
		s.Equal(created.Holder, found.Holder)
		s.Equal(created.Title, found.Title)
		s.False(found.Revoked)
	})

	s.Run("returns ErrNotFound for unknown ID", func() {
		_, err := s.store.FindByID(s.ctx, 9999)
		s.Require().ErrorIs(err, sentinel.ErrNotFound)
	})

	s.Run("returned records are copies", func() {
		created := s.issueTo("alice", "Mutable?")
		found, err := s.store.FindByID(s.ctx, created.ID)
		s.Require().NoError(err)

		found.Title = "tampered"

		again, err := s.store.FindByID(s.ctx, created.ID)
		s.Require().NoError(err)
		s.Equal("Mutable?", again.Title)
	})
}

// TestHolderIndex verifies per-holder listing uses issuance order and does
// not leak other holders' records.
func (s *CredentialStoreSuite) TestHolderIndex() {
	s.issueTo("alice", "A1")
	s.issueTo("bob", "B1")
	s.issueTo("alice", "A2")

	records, err := s.store.ListByHolder(s.ctx, "alice")
	s.Require().NoError(err)
	s.Require().Len(records, 2)
	s.Equal("A1", records[0].Title)
	s.Equal("A2", records[1].Title)

	empty, err := s.store.ListByHolder(s.ctx, "nobody")
	s.Require().NoError(err)
	s.Empty(empty)
}

// TestExecute verifies the validate-then-apply contract.
func (s *CredentialStoreSuite) TestExecute() {
	s.Run("applies after successful validation", func() {
		created := s.issueTo("alice", "Revocable")
		revokedAt := s.now.Add(time.Hour)

		updated, err := s.store.Execute(s.ctx, created.ID,
			func(c *models.CredentialRecord) error { return c.CanRevoke() },
			func(c *models.CredentialRecord) { c.ApplyRevocation(revokedAt) })
		s.Require().NoError(err)
		s.True(updated.Revoked)

		found, err := s.store.FindByID(s.ctx, created.ID)
		s.Require().NoError(err)
		s.True(found.Revoked)
	})

	s.Run("validation failure leaves the record untouched", func() {
		created := s.issueTo("alice", "Protected")

		_, err := s.store.Execute(s.ctx, created.ID,
			func(c *models.CredentialRecord) error {
				return dErrors.New(dErrors.CodeAlreadyRevoked, "nope")
			},
			func(c *models.CredentialRecord) { c.ApplyRevocation(s.now) })
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeAlreadyRevoked))

		found, err := s.store.FindByID(s.ctx, created.ID)
		s.Require().NoError(err)
		s.False(found.Revoked)
	})

	s.Run("returns ErrNotFound for unknown ID", func() {
		_, err := s.store.Execute(s.ctx, 404,
			func(*models.CredentialRecord) error { return nil },
			func(*models.CredentialRecord) {})
		s.Require().ErrorIs(err, sentinel.ErrNotFound)
	})
}

// TestConcurrentCreates verifies ID allocation stays gapless under
// concurrent issuance.
func (s *CredentialStoreSuite) TestConcurrentCreates() {
	const n = 50

	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			_, err := s.store.Create(s.ctx, models.IssueRequest{
				Holder: "holder",
				Title:  "Concurrent",
			}, s.now)
			s.NoError(err)
		}()
	}
	wg.Wait()

	count, err := s.store.Count(s.ctx)
	s.Require().NoError(err)
	s.Equal(uint64(n), count)

	// Every ID from 1..n must exist exactly once.
	for i := 1; i <= n; i++ {
		_, err := s.store.FindByID(s.ctx, id.CredentialID(i))
		s.NoError(err, "missing credential %d", i)
	}
}
