package service

import (
	"context"
	"os"
	"path/filepath"
	"regexp"

	"go.uber.org/zap"

	"github.com/atinyakov/mdvault/internal/apperrors"
	"github.com/atinyakov/mdvault/internal/filestore"
	"github.com/atinyakov/mdvault/internal/models"
	"github.com/atinyakov/mdvault/internal/pathguard"
)

// slugPattern constrains vault slugs to names that are safe as
// directory segments.
var slugPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]*$`)

// VaultService manages vault lifecycle: rows in the catalog plus their
// on-disk directories.
type VaultService struct {
	repo     VaultRepository
	dataRoot string
	log      *zap.Logger
}

// NewVaultService constructs a VaultService.
func NewVaultService(repo VaultRepository, dataRoot string, log *zap.Logger) *VaultService {
	return &VaultService{repo: repo, dataRoot: dataRoot, log: log}
}

// Create registers a vault and creates its directory. baseDir, when
// given, must resolve inside the vault and must not name an existing
// regular file.
func (s *VaultService) Create(ctx context.Context, userID, name, slug, baseDir string) (*models.Vault, error) {
	if !slugPattern.MatchString(slug) {
		return nil, apperrors.NewValidation(slug, "slug must be lowercase letters, digits, '-' or '_'")
	}
	root := filepath.Join(s.dataRoot, userID, slug)
	if baseDir != "" {
		store := filestore.New(root)
		if _, err := pathguard.ResolveDir(root, baseDir); err != nil {
			return nil, err
		}
		if err := os.MkdirAll(root, 0o755); err != nil {
			return nil, err
		}
		state, err := store.PathExists(baseDir)
		if err != nil {
			return nil, err
		}
		if state == models.PathFile {
			return nil, apperrors.NewValidation(baseDir, "base directory names a regular file")
		}
		if _, err := store.CreateDir(baseDir); err != nil {
			return nil, err
		}
	} else if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, err
	}

	v, err := s.repo.CreateVault(ctx, userID, name, slug, baseDir)
	if err != nil {
		return nil, err
	}
	s.log.Info("vault ready", zap.String("user_id", userID), zap.String("slug", slug))
	return v, nil
}

// Get returns a user's vault by slug.
func (s *VaultService) Get(ctx context.Context, userID, slug string) (*models.Vault, error) {
	v, err := s.repo.GetVault(ctx, userID, slug)
	if err != nil {
		return nil, err
	}
	if v == nil {
		return nil, apperrors.NewNotFound("vault", slug)
	}
	return v, nil
}

// List returns all vaults owned by the user.
func (s *VaultService) List(ctx context.Context, userID string) ([]models.Vault, error) {
	return s.repo.ListVaults(ctx, userID)
}

// Delete removes the vault row (documents and versions cascade) and
// its on-disk directory tree.
func (s *VaultService) Delete(ctx context.Context, userID, vaultID string) error {
	v, err := s.repo.GetVaultByID(ctx, vaultID)
	if err != nil {
		return err
	}
	if v == nil || v.UserID != userID {
		return apperrors.NewNotFound("vault", vaultID)
	}
	if _, err := s.repo.DeleteVault(ctx, v.ID); err != nil {
		return err
	}
	dir := filepath.Join(s.dataRoot, v.UserID, v.Slug)
	if err := os.RemoveAll(dir); err != nil {
		return err
	}
	s.log.Info("vault deleted", zap.String("user_id", userID), zap.String("slug", v.Slug))
	return nil
}
