package handler

import (
	"io"
	"log/slog"
	"net/http"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"sbt-registry/internal/accesscontrol/handler/mocks"
	id "sbt-registry/pkg/domain"
	dErrors "sbt-registry/pkg/domain-errors"
	"sbt-registry/pkg/testutil"
)

//go:generate mockgen -source=handler.go -destination=mocks/role-mocks.go -package=mocks Service

type RoleHandlerSuite struct {
	suite.Suite
}

func TestRoleHandlerSuite(t *testing.T) {
	suite.Run(t, new(RoleHandlerSuite))
}

func (s *RoleHandlerSuite) newHandler() (*Handler, *mocks.MockService) {
	ctrl := gomock.NewController(s.T())
	s.T().Cleanup(ctrl.Finish)
	mockService := mocks.NewMockService(ctrl)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(mockService, logger, nil, nil), mockService
}

func (s *RoleHandlerSuite) TestGrant() {
	s.Run("grants and returns 204", func() {
		handler, mockService := s.newHandler()
		mockService.EXPECT().GrantRole(
			gomock.Any(),
			id.Identity("did:example:admin"),
			id.Identity("did:example:registrar"),
			id.RoleIssuer,
		).Return(nil)

		req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/roles/grant", map[string]string{
			"identity": "did:example:registrar",
			"role":     "issuer",
		})
		req = testutil.WithCaller(req, "did:example:admin")

		rr := testutil.DoRequest(http.HandlerFunc(handler.handleGrant), req)
		testutil.AssertStatus(s.T(), rr, http.StatusNoContent)
	})

	s.Run("non-admin caller gets 401", func() {
		handler, mockService := s.newHandler()
		mockService.EXPECT().GrantRole(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
			Return(dErrors.New(dErrors.CodeUnauthorized, "caller does not hold role admin"))

		req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/roles/grant", map[string]string{
			"identity": "did:example:registrar",
			"role":     "issuer",
		})
		req = testutil.WithCaller(req, "did:example:student")

		rr := testutil.DoRequest(http.HandlerFunc(handler.handleGrant), req)
		testutil.AssertStatusAndError(s.T(), rr, http.StatusUnauthorized, "unauthorized")
	})

	s.Run("missing caller gets 401 without hitting the service", func() {
		handler, _ := s.newHandler()

		req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/roles/grant", map[string]string{
			"identity": "did:example:registrar",
			"role":     "issuer",
		})

		rr := testutil.DoRequest(http.HandlerFunc(handler.handleGrant), req)
		testutil.AssertStatus(s.T(), rr, http.StatusUnauthorized)
	})

	s.Run("unknown role gets 400", func() {
		handler, _ := s.newHandler()

		req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/roles/grant", map[string]string{
			"identity": "did:example:registrar",
			"role":     "superuser",
		})
		req = testutil.WithCaller(req, "did:example:admin")

		rr := testutil.DoRequest(http.HandlerFunc(handler.handleGrant), req)
		testutil.AssertStatus(s.T(), rr, http.StatusBadRequest)
	})

	s.Run("empty identity gets invalid_holder", func() {
		handler, _ := s.newHandler()

		req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/roles/grant", map[string]string{
			"identity": "",
			"role":     "issuer",
		})
		req = testutil.WithCaller(req, "did:example:admin")

		rr := testutil.DoRequest(http.HandlerFunc(handler.handleGrant), req)
		testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, "invalid_holder")
	})
}

func (s *RoleHandlerSuite) TestRevoke() {
	s.Run("revokes and returns 204", func() {
		handler, mockService := s.newHandler()
		mockService.EXPECT().RevokeRole(
			gomock.Any(),
			id.Identity("did:example:admin"),
			id.Identity("did:example:registrar"),
			id.RoleIssuer,
		).Return(nil)

		req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/roles/revoke", map[string]string{
			"identity": "did:example:registrar",
			"role":     "issuer",
		})
		req = testutil.WithCaller(req, "did:example:admin")

		rr := testutil.DoRequest(http.HandlerFunc(handler.handleRevoke), req)
		testutil.AssertStatus(s.T(), rr, http.StatusNoContent)
	})

	s.Run("stripping the last admin gets 403", func() {
		handler, mockService := s.newHandler()
		mockService.EXPECT().RevokeRole(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
			Return(dErrors.New(dErrors.CodeLastAdminProtected, "cannot remove the last administrator"))

		req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/roles/revoke", map[string]string{
			"identity": "did:example:admin",
			"role":     "admin",
		})
		req = testutil.WithCaller(req, "did:example:admin")

		rr := testutil.DoRequest(http.HandlerFunc(handler.handleRevoke), req)
		testutil.AssertStatusAndError(s.T(), rr, http.StatusForbidden, "last_admin_protected")
	})

	s.Run("revoking an absent assignment gets 404", func() {
		handler, mockService := s.newHandler()
		mockService.EXPECT().RevokeRole(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
			Return(dErrors.New(dErrors.CodeNotFound, "role assignment not found"))

		req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/roles/revoke", map[string]string{
			"identity": "did:example:stranger",
			"role":     "issuer",
		})
		req = testutil.WithCaller(req, "did:example:admin")

		rr := testutil.DoRequest(http.HandlerFunc(handler.handleRevoke), req)
		testutil.AssertStatusAndError(s.T(), rr, http.StatusNotFound, "not_found")
	})
}

func (s *RoleHandlerSuite) TestRolesOf() {
	routed := func(handler *Handler) http.Handler {
		r := chi.NewRouter()
		r.Get("/identities/{identity}/roles", handler.handleRolesOf)
		return r
	}

	s.Run("lists roles for an identity", func() {
		handler, mockService := s.newHandler()
		mockService.EXPECT().RolesOf(gomock.Any(), id.Identity("did:example:admin")).
			Return([]id.Role{id.RoleAdmin, id.RoleIssuer}, nil)

		req := testutil.NewRequest(s.T(), http.MethodGet, "/identities/did:example:admin/roles")
		rr := testutil.DoRequest(routed(handler), req)

		testutil.AssertStatus(s.T(), rr, http.StatusOK)
		resp := testutil.UnmarshalResponse[rolesResponse](s.T(), rr)
		s.Equal("did:example:admin", resp.Identity)
		s.Equal([]id.Role{id.RoleAdmin, id.RoleIssuer}, resp.Roles)
	})

	s.Run("identity with no roles gets an empty array", func() {
		handler, mockService := s.newHandler()
		mockService.EXPECT().RolesOf(gomock.Any(), gomock.Any()).Return(nil, nil)

		req := testutil.NewRequest(s.T(), http.MethodGet, "/identities/did:example:student/roles")
		rr := testutil.DoRequest(routed(handler), req)

		testutil.AssertStatus(s.T(), rr, http.StatusOK)
		resp := testutil.UnmarshalResponse[rolesResponse](s.T(), rr)
		s.NotNil(resp.Roles)
		s.Empty(resp.Roles)
	})
}
