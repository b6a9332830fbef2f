package http

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/atinyakov/mdvault/internal/middleware"
	"github.com/atinyakov/mdvault/internal/models"
)

// VaultService defines the vault lifecycle operations required by the
// HTTP handlers.
type VaultService interface {
	Create(ctx context.Context, userID, name, slug, baseDir string) (*models.Vault, error)
	Get(ctx context.Context, userID, slug string) (*models.Vault, error)
	List(ctx context.Context, userID string) ([]models.Vault, error)
	Delete(ctx context.Context, userID, vaultID string) error
}

// VaultHandler handles HTTP requests for vault management.
type VaultHandler struct {
	VaultService VaultService
}

// CreateVaultRequest represents the JSON payload for vault creation.
type CreateVaultRequest struct {
	Name    string `json:"name"`
	Slug    string `json:"slug"`
	BaseDir string `json:"base_dir,omitempty"`
}

// Create handles POST /api/vaults.
func (h *VaultHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateVaultRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}

	userID := middleware.GetUserIDFromContext(r.Context())
	vault, err := h.VaultService.Create(r.Context(), userID, req.Name, req.Slug, req.BaseDir)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, vault)
}

// List handles GET /api/vaults.
func (h *VaultHandler) List(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserIDFromContext(r.Context())
	vaults, err := h.VaultService.List(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}
	if vaults == nil {
		vaults = []models.Vault{}
	}
	writeJSON(w, http.StatusOK, vaults)
}

// Get handles GET /api/vaults/{slug}.
func (h *VaultHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserIDFromContext(r.Context())
	vault, err := h.VaultService.Get(r.Context(), userID, chi.URLParam(r, "slug"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, vault)
}

// Delete handles DELETE /api/vaults/{slug}, removing both the catalog
// rows and the vault directory.
func (h *VaultHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserIDFromContext(r.Context())
	vault, err := h.VaultService.Get(r.Context(), userID, chi.URLParam(r, "slug"))
	if err != nil {
		writeError(w, err)
		return
	}
	if err := h.VaultService.Delete(r.Context(), userID, vault.ID); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
