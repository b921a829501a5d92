package handlers

import (
	"context"
	"net/http"
	"strings"

	"gitlab.com/judgeflow.net/internal/config"
	"gitlab.com/judgeflow.net/internal/core/ports/primary"
	"gitlab.com/judgeflow.net/internal/handlers/response"
)

type userIDKey struct{}

// WithUserID stores the caller identity in ctx
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDKey{}, userID)
}

// UserIDFromContext returns the identity set by IdentityMiddleware
func UserIDFromContext(ctx context.Context) string {
	userID, _ := ctx.Value(userIDKey{}).(string)
	return userID
}

type MiddlewareProvider struct {
	// tokens is nil when no secret is configured
	tokens     primary.JWTService
	UserHeader string
}

func New(cfg *config.JwtConfig, tokens primary.JWTService) *MiddlewareProvider {
	m := &MiddlewareProvider{UserHeader: cfg.UserHeader}
	if cfg.Secret != "" {
		m.tokens = tokens
	}
	return m
}

// IdentityMiddleware resolves the user id from the bearer token subject when a
// secret is configured, otherwise from the user header.
func (m *MiddlewareProvider) IdentityMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var userID string
		if m.tokens != nil {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				response.WriteError(w, response.ErrorMessage{Message: "Authorization header missing", StatusCode: http.StatusUnauthorized})
				return
			}

			// Extract token from "Bearer <token>"
			tokenString := strings.TrimPrefix(authHeader, "Bearer ")
			subject, err := m.tokens.VerifyTokenHMAC(r.Context(), tokenString)
			if err != nil {
				response.WriteError(w, response.ErrorMessage{Message: "Invalid token", StatusCode: http.StatusUnauthorized})
				return
			}
			userID = subject
		} else {
			userID = strings.TrimSpace(r.Header.Get(m.UserHeader))
		}

		if userID == "" {
			response.WriteError(w, response.ErrorMessage{Message: "user identity missing", StatusCode: http.StatusUnauthorized})
			return
		}
		next.ServeHTTP(w, r.WithContext(WithUserID(r.Context(), userID)))
	})
}
