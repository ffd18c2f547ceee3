package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/usecasehub/usecase-hub/internal/auth"
	"github.com/usecasehub/usecase-hub/internal/catalog"
)

// AuthMiddleware resolves bearer session tokens to users
type AuthMiddleware struct {
	identity *auth.Service
}

// NewAuthMiddleware creates new auth middleware
func NewAuthMiddleware(identity *auth.Service) *AuthMiddleware {
	return &AuthMiddleware{identity: identity}
}

// Authenticate requires a valid bearer token and adds the user to context
func (m *AuthMiddleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := extractBearerToken(r)
		if token == "" {
			respondError(w, http.StatusUnauthorized, "missing_token", "provide Authorization header with Bearer token")
			return
		}

		user, err := m.identity.UserFromToken(r.Context(), token)
		if err != nil {
			if errors.Is(err, auth.ErrSessionNotFound) {
				respondError(w, http.StatusUnauthorized, "invalid_token", "session is expired or unknown")
				return
			}
			slog.Error("failed to resolve session", "error", err, "token_prefix", maskToken(token))
			respondError(w, http.StatusInternalServerError, "internal_error", "authentication error")
			return
		}

		slog.Debug("authenticated request", "user_id", user.ID)

		ctx := ContextWithUser(r.Context(), user)
		ctx = catalog.ContextWithUserID(ctx, user.ID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// Identify attaches the user to context when a valid token is present but
// lets anonymous requests through. Public catalog routes use it so telemetry
// gets user attribution without requiring sign-in.
func (m *AuthMiddleware) Identify(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := extractBearerToken(r)
		if token == "" {
			next.ServeHTTP(w, r)
			return
		}

		user, err := m.identity.UserFromToken(r.Context(), token)
		if err != nil {
			if !errors.Is(err, auth.ErrSessionNotFound) {
				slog.Warn("failed to identify request", "error", err, "token_prefix", maskToken(token))
			}
			next.ServeHTTP(w, r)
			return
		}

		ctx := ContextWithUser(r.Context(), user)
		ctx = catalog.ContextWithUserID(ctx, user.ID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireAdmin rejects non-admin users. Must run after Authenticate.
func (m *AuthMiddleware) RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user := UserFromContext(r.Context())
		if user == nil {
			respondError(w, http.StatusUnauthorized, "not_authenticated", "authentication required")
			return
		}

		if !user.IsAdmin() {
			slog.Warn("admin access denied", "user_id", user.ID, "role", user.Role, "path", r.URL.Path)
			respondError(w, http.StatusForbidden, "forbidden", "admin role required")
			return
		}

		next.ServeHTTP(w, r)
	})
}

// extractBearerToken extracts the session token from the Authorization header
func extractBearerToken(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if strings.HasPrefix(authHeader, "Bearer ") {
		return strings.TrimPrefix(authHeader, "Bearer ")
	}
	return ""
}

// maskToken returns first 8 chars of a token for safe logging
func maskToken(token string) string {
	if len(token) < 8 {
		return "***"
	}
	return token[:8] + "..."
}
