package testutil

import (
	"net/http"

	id "sbt-registry/pkg/domain"
	"sbt-registry/pkg/requestcontext"
)

// WithCaller adds a caller identity to the request context.
// This simulates what the auth middleware does for authenticated requests.
// Invalid identities are silently ignored.
func WithCaller(req *http.Request, identity string) *http.Request {
	caller, err := id.ParseIdentity(identity)
	if err != nil {
		return req
	}
	return req.WithContext(requestcontext.WithCaller(req.Context(), caller))
}
