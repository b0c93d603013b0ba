package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"sbt-registry/internal/platform/metrics"
	id "sbt-registry/pkg/domain"
	dErrors "sbt-registry/pkg/domain-errors"
	"sbt-registry/pkg/platform/httputil"
	"sbt-registry/pkg/platform/middleware/auth"
	"sbt-registry/pkg/platform/middleware/request"
	"sbt-registry/pkg/requestcontext"
)

// Service defines the interface for role management operations.
type Service interface {
	GrantRole(ctx context.Context, caller, identity id.Identity, role id.Role) error
	RevokeRole(ctx context.Context, caller, identity id.Identity, role id.Role) error
	HasRole(ctx context.Context, identity id.Identity, role id.Role) (bool, error)
	RolesOf(ctx context.Context, identity id.Identity) ([]id.Role, error)
}

// Handler handles role management endpoints.
type Handler struct {
	logger       *slog.Logger
	roles        Service
	metrics      *metrics.Metrics
	jwtValidator auth.JWTValidator
}

// New creates a new access control Handler.
func New(
	roles Service,
	logger *slog.Logger,
	m *metrics.Metrics,
	jwtValidator auth.JWTValidator) *Handler {
	return &Handler{
		logger:       logger,
		roles:        roles,
		metrics:      m,
		jwtValidator: jwtValidator,
	}
}

// Register registers the role routes. Role queries are public; grants and
// revocations require a bearer token (admin checks happen in the service).
func (h *Handler) Register(r chi.Router) {
	r.Group(func(public chi.Router) {
		public.Use(request.Recovery(h.logger))
		public.Use(request.RequestID)
		public.Use(request.Logger(h.logger))
		public.Use(request.Timeout(30 * time.Second))
		public.Use(request.Latency(h.metrics))
		public.Get("/identities/{identity}/roles", h.handleRolesOf)
	})

	protected := chi.NewRouter()
	protected.Use(request.Recovery(h.logger))
	protected.Use(request.RequestID)
	protected.Use(request.Logger(h.logger))
	protected.Use(request.Timeout(30 * time.Second))
	protected.Use(request.ContentTypeJSON)
	protected.Use(request.Latency(h.metrics))
	protected.Use(auth.RequireAuth(h.jwtValidator, h.logger))
	protected.Post("/roles/grant", h.handleGrant)
	protected.Post("/roles/revoke", h.handleRevoke)

	r.Mount("/admin", protected)
}

type roleRequest struct {
	Identity string `json:"identity"`
	Role     string `json:"role"`
}

func (h *Handler) handleGrant(w http.ResponseWriter, r *http.Request) {
	h.handleRoleChange(w, r, "failed to grant role", h.roles.GrantRole)
}

func (h *Handler) handleRevoke(w http.ResponseWriter, r *http.Request) {
	h.handleRoleChange(w, r, "failed to revoke role", h.roles.RevokeRole)
}

func (h *Handler) handleRoleChange(
	w http.ResponseWriter,
	r *http.Request,
	msg string,
	op func(ctx context.Context, caller, identity id.Identity, role id.Role) error,
) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	caller, err := httputil.RequireCaller(ctx, h.logger, requestID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	var body roleRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		h.logger.WarnContext(ctx, "invalid role request",
			"request_id", requestID,
			"error", err.Error(),
		)
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	identity, err := id.ParseIdentity(body.Identity)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	role, err := id.ParseRole(body.Role)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	if err := op(ctx, caller, identity, role); err != nil {
		if dErrors.HasCode(err, dErrors.CodeInternal) {
			h.logger.ErrorContext(ctx, msg,
				"request_id", requestID,
				"error", err.Error(),
			)
			httputil.WriteError(w, dErrors.New(dErrors.CodeInternal, msg))
			return
		}
		h.logger.WarnContext(ctx, msg,
			"request_id", requestID,
			"error", err.Error(),
		)
		httputil.WriteError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

type rolesResponse struct {
	Identity string    `json:"identity"`
	Roles    []id.Role `json:"roles"`
}

func (h *Handler) handleRolesOf(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	identity, err := id.ParseIdentity(chi.URLParam(r, "identity"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	roles, err := h.roles.RolesOf(ctx, identity)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to list roles",
			"request_id", requestcontext.RequestID(ctx),
			"error", err.Error(),
		)
		httputil.WriteError(w, err)
		return
	}
	if roles == nil {
		roles = []id.Role{}
	}

	httputil.WriteJSON(w, http.StatusOK, rolesResponse{
		Identity: identity.String(),
		Roles:    roles,
	})
}
