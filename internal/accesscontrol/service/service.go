// Package service implements the access controller: role queries, grants and
// revocations, and the bootstrap that seeds the initial administrator and
// issuer. Every mutating registry operation consults this service before
// touching credential state.
package service

import (
	"context"
	"errors"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"sbt-registry/internal/accesscontrol/models"
	"sbt-registry/internal/accesscontrol/store"
	"sbt-registry/internal/platform/metrics"
	id "sbt-registry/pkg/domain"
	dErrors "sbt-registry/pkg/domain-errors"
	"sbt-registry/pkg/platform/sentinel"
	"sbt-registry/pkg/requestcontext"
)

// Service evaluates and manages role assignments.
type Service struct {
	roles   store.Store
	logger  *slog.Logger
	metrics *metrics.Metrics
	tracer  trace.Tracer
}

// Option configures optional collaborators.
type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func NewService(roles store.Store, opts ...Option) *Service {
	s := &Service{
		roles:  roles,
		logger: slog.Default(),
		tracer: otel.Tracer("accesscontrol"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Bootstrap seeds the initial administrator and issuer atomically. The
// registry must never exist without an admin, so a null admin identity is a
// construction error, not a grant that can be fixed later.
func (s *Service) Bootstrap(ctx context.Context, admin, issuer id.Identity) error {
	if admin.IsNull() {
		return dErrors.New(dErrors.CodeInvalidInput, "initial admin identity is required")
	}
	if issuer.IsNull() {
		return dErrors.New(dErrors.CodeInvalidInput, "initial issuer identity is required")
	}

	now := requestcontext.Now(ctx)
	assignments := []models.RoleAssignment{
		{Identity: admin, Role: id.RoleAdmin, GrantedBy: admin, GrantedAt: now},
		{Identity: issuer, Role: id.RoleIssuer, GrantedBy: admin, GrantedAt: now},
	}
	if err := s.roles.Bootstrap(ctx, assignments); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return dErrors.Wrap(err, dErrors.CodeConflict, "registry roles already bootstrapped")
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to bootstrap roles")
	}

	s.logger.InfoContext(ctx, "registry roles bootstrapped",
		"admin", admin.String(),
		"issuer", issuer.String(),
	)
	return nil
}

// HasRole reports whether the identity holds the role. Pure query.
func (s *Service) HasRole(ctx context.Context, identity id.Identity, role id.Role) (bool, error) {
	if identity.IsNull() {
		return false, nil
	}
	held, err := s.roles.HasRole(ctx, identity, role)
	if err != nil {
		return false, dErrors.Wrap(err, dErrors.CodeInternal, "failed to check role")
	}
	return held, nil
}

// RequireRole returns CodeUnauthorized unless the caller holds the role.
func (s *Service) RequireRole(ctx context.Context, caller id.Identity, role id.Role) error {
	held, err := s.HasRole(ctx, caller, role)
	if err != nil {
		return err
	}
	if !held {
		return dErrors.New(dErrors.CodeUnauthorized, "caller does not hold role "+role.String())
	}
	return nil
}

// GrantRole adds a role to an identity's set. Admin-only.
func (s *Service) GrantRole(ctx context.Context, caller, identity id.Identity, role id.Role) error {
	ctx, span := s.tracer.Start(ctx, "accesscontrol.GrantRole",
		trace.WithAttributes(attribute.String("role", role.String())))
	defer span.End()

	if err := s.RequireRole(ctx, caller, id.RoleAdmin); err != nil {
		return err
	}
	if identity.IsNull() {
		return dErrors.New(dErrors.CodeInvalidInput, "grantee identity is required")
	}

	assignment := models.RoleAssignment{
		Identity:  identity,
		Role:      role,
		GrantedBy: caller,
		GrantedAt: requestcontext.Now(ctx),
	}
	if err := s.roles.Grant(ctx, assignment); err != nil {
		span.RecordError(err)
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to grant role")
	}

	if s.metrics != nil {
		s.metrics.RolesGranted.WithLabelValues(role.String()).Inc()
	}
	s.logger.InfoContext(ctx, "role granted",
		"role", role.String(),
		"identity", identity.String(),
		"granted_by", caller.String(),
		"request_id", requestcontext.RequestID(ctx),
	)
	return nil
}

// RevokeRole removes a role from an identity's set. Admin-only. Stripping the
// final administrator is refused so the registry cannot be bricked.
func (s *Service) RevokeRole(ctx context.Context, caller, identity id.Identity, role id.Role) error {
	ctx, span := s.tracer.Start(ctx, "accesscontrol.RevokeRole",
		trace.WithAttributes(attribute.String("role", role.String())))
	defer span.End()

	if err := s.RequireRole(ctx, caller, id.RoleAdmin); err != nil {
		return err
	}
	if identity.IsNull() {
		return dErrors.New(dErrors.CodeInvalidInput, "identity is required")
	}

	err := s.roles.Revoke(ctx, identity, role, func(holders int) error {
		if role == id.RoleAdmin && holders <= 1 {
			return dErrors.New(dErrors.CodeLastAdminProtected, "cannot remove the sole administrator")
		}
		return nil
	})
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeLastAdminProtected) {
			return err
		}
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.Wrap(err, dErrors.CodeNotFound, "role assignment not found")
		}
		span.RecordError(err)
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to revoke role")
	}

	if s.metrics != nil {
		s.metrics.RolesRevoked.WithLabelValues(role.String()).Inc()
	}
	s.logger.InfoContext(ctx, "role revoked",
		"role", role.String(),
		"identity", identity.String(),
		"revoked_by", caller.String(),
		"request_id", requestcontext.RequestID(ctx),
	)
	return nil
}

// RolesOf lists the identity's current roles.
func (s *Service) RolesOf(ctx context.Context, identity id.Identity) ([]id.Role, error) {
	roles, err := s.roles.RolesOf(ctx, identity)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list roles")
	}
	return roles, nil
}
