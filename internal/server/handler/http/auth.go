// Package http provides the HTTP handlers and routing for the
// document vault API.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/atinyakov/mdvault/internal/apperrors"
	"github.com/atinyakov/mdvault/internal/middleware"
	"github.com/atinyakov/mdvault/internal/models"
	"github.com/atinyakov/mdvault/internal/repository"
)

// AuthService defines the account operations required by the HTTP
// handlers.
type AuthService interface {
	// Register creates a new account with a hashed password.
	Register(ctx context.Context, username, password string) (*models.User, error)
}

// AuthHandler handles HTTP requests for registration and login.
type AuthHandler struct {
	AuthService AuthService
}

// RegisterRequest represents the JSON payload for user registration.
type RegisterRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Register handles POST /api/register. It expects a JSON body with
// "username" and "password" and responds with the created account.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}

	user, err := h.AuthService.Register(r.Context(), req.Username, req.Password)
	if err != nil {
		switch {
		case apperrors.IsValidation(err):
			http.Error(w, err.Error(), http.StatusBadRequest)
		case errors.Is(err, repository.ErrUsernameTaken):
			http.Error(w, "username already taken", http.StatusConflict)
		default:
			http.Error(w, "internal error", http.StatusInternalServerError)
		}
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"id":       user.ID,
		"username": user.Username,
	})
}

// Login handles POST /api/login. Credential checking already happened
// in the basic-auth middleware; the handler confirms the session.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserIDFromContext(r.Context())
	if userID == "" {
		http.Error(w, "credentials required", http.StatusUnauthorized)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{
		"status": "ok",
		"user":   userID,
	})
}
