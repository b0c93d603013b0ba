//go:build integration

package cache_test

import (
	"context"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"sbt-registry/internal/credential/models"
	"sbt-registry/internal/credential/store/cache"
	id "sbt-registry/pkg/domain"
	"sbt-registry/pkg/platform/sentinel"
	"sbt-registry/pkg/testutil/containers"
)

// countingReader wraps a fixed record set and counts fall-through reads.
type countingReader struct {
	records map[id.CredentialID]*models.CredentialRecord
	calls   atomic.Int32
}

func (r *countingReader) FindByID(_ context.Context, credentialID id.CredentialID) (*models.CredentialRecord, error) {
	r.calls.Add(1)
	record, ok := r.records[credentialID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	copied := *record
	return &copied, nil
}

type CredentialCacheSuite struct {
	suite.Suite
	redis  *containers.RedisContainer
	source *countingReader
	cache  *cache.CredentialCache
}

func TestCredentialCacheSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(CredentialCacheSuite))
}

func (s *CredentialCacheSuite) SetupSuite() {
	mgr := containers.GetManager()
	s.redis = mgr.GetRedis(s.T())
}

func (s *CredentialCacheSuite) SetupTest() {
	s.Require().NoError(s.redis.FlushAll(context.Background()))

	s.source = &countingReader{records: map[id.CredentialID]*models.CredentialRecord{
		1: {
			ID:       1,
			Holder:   "did:example:student",
			Title:    "BSc Physics",
			IssuedAt: time.Now().UTC().Truncate(time.Second),
		},
	}}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s.cache = cache.New(s.redis.Client, s.source, 5*time.Minute, logger)
}

func (s *CredentialCacheSuite) TestReadThrough() {
	ctx := context.Background()

	// First read misses and populates.
	record, err := s.cache.FindByID(ctx, 1)
	s.Require().NoError(err)
	s.Equal("BSc Physics", record.Title)
	s.Equal(int32(1), s.source.calls.Load())

	// Second read is served from Redis.
	record, err = s.cache.FindByID(ctx, 1)
	s.Require().NoError(err)
	s.Equal("BSc Physics", record.Title)
	s.Equal(id.Identity("did:example:student"), record.Holder)
	s.Equal(int32(1), s.source.calls.Load())
}

func (s *CredentialCacheSuite) TestMissPassesThroughNotFound() {
	ctx := context.Background()

	_, err := s.cache.FindByID(ctx, 42)
	s.Require().ErrorIs(err, sentinel.ErrNotFound)

	// Misses are not negatively cached.
	_, err = s.cache.FindByID(ctx, 42)
	s.Require().ErrorIs(err, sentinel.ErrNotFound)
	s.Equal(int32(2), s.source.calls.Load())
}

func (s *CredentialCacheSuite) TestInvalidate() {
	ctx := context.Background()

	_, err := s.cache.FindByID(ctx, 1)
	s.Require().NoError(err)

	// Flip the backing record the way a revocation would.
	revokedAt := time.Now().UTC()
	s.source.records[1].Revoked = true
	s.source.records[1].RevokedAt = &revokedAt

	// Still cached: the stale unrevoked entry is served.
	record, err := s.cache.FindByID(ctx, 1)
	s.Require().NoError(err)
	s.False(record.Revoked)

	s.Require().NoError(s.cache.Invalidate(ctx, 1))

	// Next read falls through and observes the revocation.
	record, err = s.cache.FindByID(ctx, 1)
	s.Require().NoError(err)
	s.True(record.Revoked)
	s.NotNil(record.RevokedAt)
}
