// Package cache provides a Redis read-through cache in front of a credential
// store. Records are immutable apart from the revocation flag, so entries are
// safe to cache until a revocation invalidates them.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"

	"sbt-registry/internal/credential/models"
	id "sbt-registry/pkg/domain"
)

var (
	cacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sbtreg_credential_cache_hits_total",
		Help: "Number of credential reads served from Redis",
	})
	cacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sbtreg_credential_cache_misses_total",
		Help: "Number of credential reads that fell through to the store",
	})
)

const credentialKeyPrefix = "cred:id:"

// Reader is the subset of the credential store the cache fronts.
type Reader interface {
	FindByID(ctx context.Context, credentialID id.CredentialID) (*models.CredentialRecord, error)
}

// CredentialCache serves GetCredential reads from Redis, falling back to the
// underlying store. Cache failures degrade to store reads; they never fail
// the operation.
type CredentialCache struct {
	client *redis.Client
	next   Reader
	ttl    time.Duration
	logger *slog.Logger
}

func New(client *redis.Client, next Reader, ttl time.Duration, logger *slog.Logger) *CredentialCache {
	return &CredentialCache{client: client, next: next, ttl: ttl, logger: logger}
}

func (c *CredentialCache) FindByID(ctx context.Context, credentialID id.CredentialID) (*models.CredentialRecord, error) {
	key := credentialKeyPrefix + credentialID.String()

	raw, err := c.client.Get(ctx, key).Bytes()
	if err == nil {
		var record models.CredentialRecord
		if jsonErr := json.Unmarshal(raw, &record); jsonErr == nil {
			cacheHits.Inc()
			return &record, nil
		}
		// Corrupt entry: drop it and fall through to the store.
		_ = c.client.Del(ctx, key).Err()
	} else if !errors.Is(err, redis.Nil) {
		c.logger.WarnContext(ctx, "credential cache read failed", "error", err.Error())
	}

	cacheMisses.Inc()
	record, err := c.next.FindByID(ctx, credentialID)
	if err != nil {
		return nil, err
	}

	if payload, jsonErr := json.Marshal(record); jsonErr == nil {
		if setErr := c.client.Set(ctx, key, payload, c.ttl).Err(); setErr != nil {
			c.logger.WarnContext(ctx, "credential cache write failed", "error", setErr.Error())
		}
	}
	return record, nil
}

// Invalidate removes a cached record. Called after revocation so readers
// never observe a stale revoked=false.
func (c *CredentialCache) Invalidate(ctx context.Context, credentialID id.CredentialID) error {
	return c.client.Del(ctx, credentialKeyPrefix+credentialID.String()).Err()
}
