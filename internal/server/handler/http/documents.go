package http

import (
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/atinyakov/mdvault/internal/apperrors"
	"github.com/atinyakov/mdvault/internal/middleware"
	"github.com/atinyakov/mdvault/internal/models"
)

// CatalogService defines the document operations required by the HTTP
// handlers.
type CatalogService interface {
	Get(ctx context.Context, userID, vaultID, path string) (*models.Document, []byte, error)
	Put(ctx context.Context, userID, vaultID, path string, content []byte, source models.Source) (*models.Document, error)
	Remove(ctx context.Context, userID, vaultID, path string) error
	List(ctx context.Context, userID, vaultID, dirPath string) ([]models.Document, error)
	Tree(ctx context.Context, userID, vaultID string) ([]*models.TreeNode, error)
	GetVersions(ctx context.Context, userID, vaultID, path string) ([]models.DocumentVersion, error)
	CreateDirectory(ctx context.Context, userID, vaultID, dirPath string) (string, error)
	Move(ctx context.Context, userID, vaultID, src, dst string, overwrite bool, source models.Source) (string, string, error)
	Copy(ctx context.Context, userID, vaultID, src, dst string, overwrite bool, source models.Source) (string, string, error)
}

// DocumentHandler handles HTTP requests for documents inside a vault.
// Vaults are addressed by slug in the URL and resolved to their ID
// before the catalog is consulted.
type DocumentHandler struct {
	VaultService   VaultService
	CatalogService CatalogService
}

func (h *DocumentHandler) vaultID(r *http.Request) (string, string, error) {
	userID := middleware.GetUserIDFromContext(r.Context())
	vault, err := h.VaultService.Get(r.Context(), userID, chi.URLParam(r, "slug"))
	if err != nil {
		return "", "", err
	}
	return userID, vault.ID, nil
}

// changeSource reads the optional ?source= parameter. API clients are
// the default; the web UI labels its writes explicitly.
func changeSource(r *http.Request) models.Source {
	if s := models.Source(r.URL.Query().Get("source")); s != "" {
		return s
	}
	return models.SourceAPI
}

// documentResponse is a catalog row plus the file's current content.
type documentResponse struct {
	*models.Document
	Content string `json:"content"`
}

// Get handles GET /api/vaults/{slug}/files/*.
func (h *DocumentHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID, vaultID, err := h.vaultID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	doc, content, err := h.CatalogService.Get(r.Context(), userID, vaultID, chi.URLParam(r, "*"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, documentResponse{Document: doc, Content: string(content)})
}

// Put handles PUT /api/vaults/{slug}/files/*. The request body is the
// raw markdown content.
func (h *DocumentHandler) Put(w http.ResponseWriter, r *http.Request) {
	userID, vaultID, err := h.vaultID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	content, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "failed to read body", http.StatusBadRequest)
		return
	}
	doc, err := h.CatalogService.Put(r.Context(), userID, vaultID, chi.URLParam(r, "*"), content, changeSource(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

// Delete handles DELETE /api/vaults/{slug}/files/*.
func (h *DocumentHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID, vaultID, err := h.vaultID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := h.CatalogService.Remove(r.Context(), userID, vaultID, chi.URLParam(r, "*")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// List handles GET /api/vaults/{slug}/documents?dir=.
func (h *DocumentHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, vaultID, err := h.vaultID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	docs, err := h.CatalogService.List(r.Context(), userID, vaultID, r.URL.Query().Get("dir"))
	if err != nil {
		writeError(w, err)
		return
	}
	if docs == nil {
		docs = []models.Document{}
	}
	writeJSON(w, http.StatusOK, docs)
}

// Tree handles GET /api/vaults/{slug}/tree.
func (h *DocumentHandler) Tree(w http.ResponseWriter, r *http.Request) {
	userID, vaultID, err := h.vaultID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	tree, err := h.CatalogService.Tree(r.Context(), userID, vaultID)
	if err != nil {
		writeError(w, err)
		return
	}
	if tree == nil {
		tree = []*models.TreeNode{}
	}
	writeJSON(w, http.StatusOK, tree)
}

// Versions handles GET /api/vaults/{slug}/versions/*.
func (h *DocumentHandler) Versions(w http.ResponseWriter, r *http.Request) {
	userID, vaultID, err := h.vaultID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	versions, err := h.CatalogService.GetVersions(r.Context(), userID, vaultID, chi.URLParam(r, "*"))
	if err != nil {
		writeError(w, err)
		return
	}
	if versions == nil {
		versions = []models.DocumentVersion{}
	}
	writeJSON(w, http.StatusOK, versions)
}

// CreateDirRequest represents the JSON payload for directory creation.
type CreateDirRequest struct {
	Path string `json:"path"`
}

// CreateDir handles POST /api/vaults/{slug}/dirs.
func (h *DocumentHandler) CreateDir(w http.ResponseWriter, r *http.Request) {
	userID, vaultID, err := h.vaultID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	var req CreateDirRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}
	path, err := h.CatalogService.CreateDirectory(r.Context(), userID, vaultID, req.Path)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"path": path})
}

// TransferRequest represents the JSON payload for move and copy.
type TransferRequest struct {
	Src       string `json:"src"`
	Dst       string `json:"dst"`
	Overwrite bool   `json:"overwrite,omitempty"`
}

// Move handles POST /api/vaults/{slug}/move.
func (h *DocumentHandler) Move(w http.ResponseWriter, r *http.Request) {
	h.transfer(w, r, h.CatalogService.Move)
}

// Copy handles POST /api/vaults/{slug}/copy.
func (h *DocumentHandler) Copy(w http.ResponseWriter, r *http.Request) {
	h.transfer(w, r, h.CatalogService.Copy)
}

func (h *DocumentHandler) transfer(
	w http.ResponseWriter,
	r *http.Request,
	op func(ctx context.Context, userID, vaultID, src, dst string, overwrite bool, source models.Source) (string, string, error),
) {
	userID, vaultID, err := h.vaultID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	var req TransferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}
	src, dst, err := op(r.Context(), userID, vaultID, req.Src, req.Dst, req.Overwrite, changeSource(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"src": src, "dst": dst})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	switch {
	case apperrors.IsValidation(err):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case apperrors.IsNotFound(err):
		http.Error(w, err.Error(), http.StatusNotFound)
	default:
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}
