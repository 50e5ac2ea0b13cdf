package testutil

import (
	"net/http"

	"intellikyc/internal/platform/middleware"
)

// WithInstitution stamps an institution identity onto the request context,
// simulating what the auth middleware does for a valid bearer token.
func WithInstitution(req *http.Request, institutionID string) *http.Request {
	ctx := middleware.WithInstitution(req.Context(), institutionID, "")
	return req.WithContext(ctx)
}

// WithClient stamps both institution and client identity onto the request
// context.
func WithClient(req *http.Request, institutionID, clientID string) *http.Request {
	ctx := middleware.WithInstitution(req.Context(), institutionID, clientID)
	return req.WithContext(ctx)
}
