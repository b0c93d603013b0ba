// Package handler exposes the credential registry over HTTP. It is a thin
// layer: request decoding, caller extraction, and error translation only.
package handler

import (
	"context"
	"encoding/json"
	"iter"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	credModel "sbt-registry/internal/credential/models"
	"sbt-registry/internal/platform/metrics"
	id "sbt-registry/pkg/domain"
	dErrors "sbt-registry/pkg/domain-errors"
	"sbt-registry/pkg/platform/httputil"
	"sbt-registry/pkg/platform/middleware/auth"
	"sbt-registry/pkg/platform/middleware/request"
	"sbt-registry/pkg/requestcontext"
)

// Service defines the interface for credential registry operations.
type Service interface {
	Issue(ctx context.Context, caller id.Identity, req credModel.IssueRequest) (id.CredentialID, error)
	Revoke(ctx context.Context, caller id.Identity, credentialID id.CredentialID) error
	EnforceTransferPolicy(ctx context.Context, credentialID id.CredentialID, from, to id.Identity) error
	Get(ctx context.Context, credentialID id.CredentialID) (*credModel.CredentialRecord, error)
	All(ctx context.Context, holder id.Identity) (iter.Seq[credModel.CredentialRecord], error)
}

// Handler handles credential endpoints.
type Handler struct {
	logger       *slog.Logger
	credentials  Service
	metrics      *metrics.Metrics
	jwtValidator auth.JWTValidator
}

// New creates a new credential Handler.
func New(
	credentials Service,
	logger *slog.Logger,
	m *metrics.Metrics,
	jwtValidator auth.JWTValidator) *Handler {
	return &Handler{
		logger:       logger,
		credentials:  credentials,
		metrics:      m,
		jwtValidator: jwtValidator,
	}
}

// Register registers the credential routes with the chi router. Reads are
// public; mutations require a bearer token (role checks happen in the
// service against the access controller).
func (h *Handler) Register(r chi.Router) {
	r.Group(func(public chi.Router) {
		public.Use(request.Recovery(h.logger))
		public.Use(request.RequestID)
		public.Use(request.Logger(h.logger))
		public.Use(request.Timeout(30 * time.Second))
		public.Use(request.Latency(h.metrics))
		public.Get("/credentials/{id}", h.handleGetCredential)
		public.Get("/holders/{holder}/credentials", h.handleHolderCredentials)
	})

	protected := chi.NewRouter()
	protected.Use(request.Recovery(h.logger))
	protected.Use(request.RequestID)
	protected.Use(request.Logger(h.logger))
	protected.Use(request.Timeout(30 * time.Second))
	protected.Use(request.ContentTypeJSON)
	protected.Use(request.Latency(h.metrics))
	protected.Use(auth.RequireAuth(h.jwtValidator, h.logger))
	protected.Post("/credentials", h.handleIssue)
	protected.Post("/credentials/{id}/revoke", h.handleRevoke)
	protected.Post("/credentials/{id}/transfer", h.handleTransfer)

	r.Mount("/registry", protected)
}

type issueRequest struct {
	Holder      string `json:"holder"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	EvidenceRef string `json:"evidence_ref,omitempty"`
	MetadataRef string `json:"metadata_ref,omitempty"`
}

type issueResponse struct {
	ID string `json:"id"`
}

func (h *Handler) handleIssue(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	caller, err := httputil.RequireCaller(ctx, h.logger, requestID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	var body issueRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		h.logger.WarnContext(ctx, "invalid issue request",
			"request_id", requestID,
			"error", err.Error(),
		)
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	holder, err := id.ParseIdentity(body.Holder)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	credentialID, err := h.credentials.Issue(ctx, caller, credModel.IssueRequest{
		Holder:      holder,
		Title:       body.Title,
		Description: body.Description,
		EvidenceRef: body.EvidenceRef,
		MetadataRef: body.MetadataRef,
	})
	if err != nil {
		h.writeServiceError(ctx, w, "failed to issue credential", err)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, issueResponse{ID: credentialID.String()})
}

func (h *Handler) handleRevoke(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	caller, err := httputil.RequireCaller(ctx, h.logger, requestID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	credentialID, err := id.ParseCredentialID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	if err := h.credentials.Revoke(ctx, caller, credentialID); err != nil {
		h.writeServiceError(ctx, w, "failed to revoke credential", err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

type transferRequest struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// handleTransfer exists so that transfer attempts get a definitive answer
// rather than a 404. Holder-to-holder moves are always rejected.
func (h *Handler) handleTransfer(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	if _, err := httputil.RequireCaller(ctx, h.logger, requestID); err != nil {
		httputil.WriteError(w, err)
		return
	}

	credentialID, err := id.ParseCredentialID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	var body transferRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	// From and to are intentionally not ParseIdentity-validated here: an
	// empty string is the null identity marking a lifecycle edge.
	from := id.Identity(body.From)
	to := id.Identity(body.To)

	if err := h.credentials.EnforceTransferPolicy(ctx, credentialID, from, to); err != nil {
		h.writeServiceError(ctx, w, "transfer rejected", err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleGetCredential(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	credentialID, err := id.ParseCredentialID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	record, err := h.credentials.Get(ctx, credentialID)
	if err != nil {
		h.writeServiceError(ctx, w, "failed to load credential", err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, record)
}

type holderCredentialsResponse struct {
	Holder      string                       `json:"holder"`
	Credentials []credModel.CredentialRecord `json:"credentials"`
}

func (h *Handler) handleHolderCredentials(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	holder, err := id.ParseIdentity(chi.URLParam(r, "holder"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	seq, err := h.credentials.All(ctx, holder)
	if err != nil {
		h.writeServiceError(ctx, w, "failed to list holder credentials", err)
		return
	}

	resp := holderCredentialsResponse{
		Holder:      holder.String(),
		Credentials: []credModel.CredentialRecord{},
	}
	for record := range seq {
		resp.Credentials = append(resp.Credentials, record)
	}

	httputil.WriteJSON(w, http.StatusOK, resp)
}

// writeServiceError logs unexpected failures and translates domain errors.
// Expected domain outcomes (not found, already revoked, unauthorized,
// soul-bound rejection) pass through at Warn level.
func (h *Handler) writeServiceError(ctx context.Context, w http.ResponseWriter, msg string, err error) {
	requestID := requestcontext.RequestID(ctx)
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
}
