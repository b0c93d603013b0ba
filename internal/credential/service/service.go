// Package service implements the credential registry state machine: issuance,
// revocation, the soul-bound transfer policy, and the public query surface.
//
// Every mutating operation is gated by the access controller, applied
// atomically by the store, and followed by lifecycle event emission in
// completion order. A failed operation mutates nothing and emits nothing.
package service

import (
	"context"
	"errors"
	"iter"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"sbt-registry/internal/credential/models"
	"sbt-registry/internal/credential/store"
	"sbt-registry/internal/events"
	"sbt-registry/internal/platform/metrics"
	id "sbt-registry/pkg/domain"
	dErrors "sbt-registry/pkg/domain-errors"
	"sbt-registry/pkg/platform/sentinel"
	"sbt-registry/pkg/requestcontext"
)

// AccessController gates mutating operations on caller roles.
type AccessController interface {
	RequireRole(ctx context.Context, caller id.Identity, role id.Role) error
}

// Reader serves credential lookups. The Redis cache satisfies this in front
// of the store; plain deployments use the store directly.
type Reader interface {
	FindByID(ctx context.Context, credentialID id.CredentialID) (*models.CredentialRecord, error)
}

// CacheInvalidator drops a cached record after its revocation flag changes.
type CacheInvalidator interface {
	Invalidate(ctx context.Context, credentialID id.CredentialID) error
}

// Service is the credential registry.
type Service struct {
	store     store.Store
	access    AccessController
	publisher events.Publisher
	reader    Reader
	cache     CacheInvalidator
	logger    *slog.Logger
	metrics   *metrics.Metrics
	tracer    trace.Tracer
}

// Option configures optional collaborators.
type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithCache routes reads through a cache and invalidates it on revocation.
// The cache must front the same store the service writes to.
func WithCache(reader Reader, invalidator CacheInvalidator) Option {
	return func(s *Service) {
		s.reader = reader
		s.cache = invalidator
	}
}

func NewService(st store.Store, access AccessController, publisher events.Publisher, opts ...Option) *Service {
	s := &Service{
		store:     st,
		access:    access,
		publisher: publisher,
		reader:    st,
		logger:    slog.Default(),
		tracer:    otel.Tracer("credential"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Issue creates a credential bound to the holder and returns its ID.
// Issuer-only. The creation edge of the transfer policy is the only way a
// record acquires a holder, so Locked is emitted before Issued.
func (s *Service) Issue(ctx context.Context, caller id.Identity, req models.IssueRequest) (id.CredentialID, error) {
	ctx, span := s.tracer.Start(ctx, "credential.Issue")
	defer span.End()

	if err := s.access.RequireRole(ctx, caller, id.RoleIssuer); err != nil {
		return 0, err
	}
	if err := req.Validate(); err != nil {
		return 0, err
	}

	record, err := s.store.Create(ctx, req, requestcontext.Now(ctx))
	if err != nil {
		span.RecordError(err)
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "failed to persist credential")
	}
	span.SetAttributes(attribute.String("credential_id", record.ID.String()))

	if s.metrics != nil {
		s.metrics.CredentialsIssued.Inc()
	}
	s.emit(ctx, events.New(events.KindLocked, record.ID, id.NullIdentity, record.IssuedAt))
	s.emit(ctx, events.New(events.KindIssued, record.ID, record.Holder, record.IssuedAt))

	s.logger.InfoContext(ctx, "credential issued",
		"credential_id", record.ID.String(),
		"issuer", caller.String(),
		"request_id", requestcontext.RequestID(ctx),
	)
	return record.ID, nil
}

// Revoke flips the credential's revoked flag. Issuer-only. Revocation is
// one-way: a second attempt fails with AlreadyRevoked rather than silently
// succeeding, so callers can observe the double revocation.
func (s *Service) Revoke(ctx context.Context, caller id.Identity, credentialID id.CredentialID) error {
	ctx, span := s.tracer.Start(ctx, "credential.Revoke",
		trace.WithAttributes(attribute.String("credential_id", credentialID.String())))
	defer span.End()

	if err := s.access.RequireRole(ctx, caller, id.RoleIssuer); err != nil {
		return err
	}

	now := requestcontext.Now(ctx)
	record, err := s.store.Execute(ctx, credentialID,
		func(c *models.CredentialRecord) error {
			return c.CanRevoke()
		},
		func(c *models.CredentialRecord) {
			c.ApplyRevocation(now)
		})
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeAlreadyRevoked) {
			return err
		}
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.Wrap(err, dErrors.CodeNotFound, "credential not found")
		}
		span.RecordError(err)
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to revoke credential")
	}

	if s.cache != nil {
		if err := s.cache.Invalidate(ctx, credentialID); err != nil {
			s.logger.WarnContext(ctx, "credential cache invalidation failed",
				"credential_id", credentialID.String(),
				"error", err.Error(),
			)
		}
	}

	if s.metrics != nil {
		s.metrics.CredentialsRevoked.Inc()
	}
	s.emit(ctx, events.New(events.KindRevoked, record.ID, id.NullIdentity, now))

	s.logger.InfoContext(ctx, "credential revoked",
		"credential_id", credentialID.String(),
		"issuer", caller.String(),
		"request_id", requestcontext.RequestID(ctx),
	)
	return nil
}

// EnforceTransferPolicy is the soul-bound gate. Only the two structural
// lifecycle edges pass: creation (from null) and burn (to null). Any transfer
// between two non-null holders is rejected unconditionally; no caller role
// can override it.
func (s *Service) EnforceTransferPolicy(ctx context.Context, credentialID id.CredentialID, from, to id.Identity) error {
	ctx, span := s.tracer.Start(ctx, "credential.EnforceTransferPolicy",
		trace.WithAttributes(attribute.String("credential_id", credentialID.String())))
	defer span.End()

	// The holder-to-holder check comes before everything else, including
	// record existence: the rejection is an absolute invariant, not a
	// permission or state check.
	if !from.IsNull() && !to.IsNull() {
		if s.metrics != nil {
			s.metrics.SoulBoundViolations.Inc()
		}
		s.logger.WarnContext(ctx, "holder-to-holder transfer rejected",
			"credential_id", credentialID.String(),
			"request_id", requestcontext.RequestID(ctx),
		)
		return dErrors.New(dErrors.CodeSoulBoundViolation, "credentials are soul-bound and cannot be transferred")
	}
	if from.IsNull() && to.IsNull() {
		return dErrors.New(dErrors.CodeInvalidInput, "transfer requires at least one party")
	}

	record, err := s.reader.FindByID(ctx, credentialID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.Wrap(err, dErrors.CodeNotFound, "credential not found")
		}
		span.RecordError(err)
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load credential")
	}

	now := requestcontext.Now(ctx)
	if from.IsNull() {
		// Creation edge: the record must be bound to the stated recipient.
		if record.Holder != to {
			return dErrors.New(dErrors.CodeInvalidInput, "credential is not bound to the stated recipient")
		}
		s.emit(ctx, events.New(events.KindLocked, record.ID, id.NullIdentity, now))
		return nil
	}

	// Burn edge: only the current holder can be the departing party.
	if record.Holder != from {
		return dErrors.New(dErrors.CodeInvalidInput, "credential is not held by the stated sender")
	}
	s.emit(ctx, events.New(events.KindUnlocked, record.ID, id.NullIdentity, now))
	return nil
}

// Get returns the credential record. Public: a credential's value as proof
// depends on anyone being able to verify it, so no role is required.
func (s *Service) Get(ctx context.Context, credentialID id.CredentialID) (*models.CredentialRecord, error) {
	record, err := s.reader.FindByID(ctx, credentialID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.Wrap(err, dErrors.CodeNotFound, "credential not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load credential")
	}
	return record, nil
}

// HolderCredentials returns every record bound to the holder in issuance
// order, served by the holder index rather than a scan of the ID space.
func (s *Service) HolderCredentials(ctx context.Context, holder id.Identity) ([]*models.CredentialRecord, error) {
	if holder.IsNull() {
		return nil, dErrors.New(dErrors.CodeInvalidHolder, "holder identity is required")
	}
	records, err := s.store.ListByHolder(ctx, holder)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list holder credentials")
	}
	return records, nil
}

// All returns a restartable iterator over the holder's records in issuance
// order. The snapshot is taken once; ranging again replays the same snapshot.
func (s *Service) All(ctx context.Context, holder id.Identity) (iter.Seq[models.CredentialRecord], error) {
	records, err := s.HolderCredentials(ctx, holder)
	if err != nil {
		return nil, err
	}
	return func(yield func(models.CredentialRecord) bool) {
		for _, record := range records {
			if !yield(*record) {
				return
			}
		}
	}, nil
}

// Count reports how many records the registry has ever created.
func (s *Service) Count(ctx context.Context) (uint64, error) {
	count, err := s.store.Count(ctx)
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "failed to count credentials")
	}
	return count, nil
}

// emit publishes a lifecycle event. The mutation has already committed, so a
// publish failure is logged and surfaced via metrics rather than unwinding
// the operation.
func (s *Service) emit(ctx context.Context, event events.Event) {
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.logger.ErrorContext(ctx, "lifecycle event publish failed",
			"kind", string(event.Kind),
			"credential_id", event.CredentialID.String(),
			"error", err.Error(),
		)
		return
	}
	if s.metrics != nil {
		s.metrics.EventsPublished.WithLabelValues(string(event.Kind)).Inc()
	}
}
