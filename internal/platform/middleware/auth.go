package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
)

// JWTValidator defines the interface for validating JWT tokens.
type JWTValidator interface {
	ValidateToken(tokenString string) (*JWTClaims, error)
}

// JWTClaims represents the claims we expect from the JWT validator.
type JWTClaims struct {
	InstitutionID string
	ClientID      string
}

// Context keys for authenticated caller information.
type contextKeyInstitutionID struct{}
type contextKeyClientID struct{}

// GetInstitutionID retrieves the authenticated institution ID from the context.
func GetInstitutionID(ctx context.Context) string {
	institutionID, ok := ctx.Value(contextKeyInstitutionID{}).(string)
	if !ok {
		return ""
	}
	return institutionID
}

// GetClientID retrieves the client ID from the context.
func GetClientID(ctx context.Context) string {
	clientID, ok := ctx.Value(contextKeyClientID{}).(string)
	if !ok {
		return ""
	}
	return clientID
}

// WithInstitution injects caller identity into a context. Useful for handler
// and service tests that don't run the full middleware chain.
func WithInstitution(ctx context.Context, institutionID, clientID string) context.Context {
	ctx = context.WithValue(ctx, contextKeyInstitutionID{}, institutionID)
	return context.WithValue(ctx, contextKeyClientID{}, clientID)
}

// RequireAuth rejects requests without a valid bearer token and exposes the
// caller's institution identity to downstream handlers.
func RequireAuth(validator JWTValidator, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			const bearerPrefix = "Bearer "
			if token, ok := strings.CutPrefix(authHeader, bearerPrefix); ok {
				claims, err := validator.ValidateToken(token)
				if err != nil {
					ctx := r.Context()
					logger.WarnContext(ctx, "unauthorized access - invalid token",
						"error", err,
						"request_id", GetRequestID(ctx),
					)
					writeUnauthorized(w, "Invalid or expired token")
					return
				}

				ctx := WithInstitution(r.Context(), claims.InstitutionID, claims.ClientID)
				next.ServeHTTP(w, r.WithContext(ctx))
				return
			}

			ctx := r.Context()
			logger.WarnContext(ctx, "unauthorized access - missing token",
				"request_id", GetRequestID(ctx),
			)
			writeUnauthorized(w, "Missing or invalid Authorization header")
		})
	}
}

func writeUnauthorized(w http.ResponseWriter, description string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(`{"error":"unauthorized","error_description":"` + description + `"}`))
}
