// Package middleware provides HTTP middlewares for authentication and logging.
package middleware

import (
	"context"
	"net/http"

	"github.com/atinyakov/mdvault/internal/models"
)

type ctxKey string

const userKey ctxKey = "user"

// Authenticator verifies a username/password pair.
type Authenticator interface {
	Authenticate(ctx context.Context, username, password string) (*models.User, error)
}

// BasicAuth enforces HTTP basic authentication on every request except
// /api/register, which must stay open so new users can sign up.
//
// On success the authenticated user's ID is stored in the request
// context for downstream handlers.
func BasicAuth(auth Authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == "/api/register" {
				next.ServeHTTP(w, r)
				return
			}
			username, password, ok := r.BasicAuth()
			if !ok {
				w.Header().Set("WWW-Authenticate", `Basic realm="mdvault"`)
				http.Error(w, "credentials required", http.StatusUnauthorized)
				return
			}
			user, err := auth.Authenticate(r.Context(), username, password)
			if err != nil {
				http.Error(w, "invalid credentials", http.StatusUnauthorized)
				return
			}
			ctx := context.WithValue(r.Context(), userKey, user.ID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetUserIDFromContext extracts the authenticated user ID from the
// request context. Returns an empty string if not found.
func GetUserIDFromContext(ctx context.Context) string {
	val := ctx.Value(userKey)
	if s, ok := val.(string); ok {
		return s
	}
	return ""
}
