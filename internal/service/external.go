package service

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/atinyakov/mdvault/internal/apperrors"
	"github.com/atinyakov/mdvault/internal/models"
	"github.com/atinyakov/mdvault/internal/pathguard"
)

// Methods in this file serve the filesystem watcher and the
// reconciliation sweep. External edits carry no authenticated actor;
// their version records use the webdav source with an empty user,
// matching how third-party sync clients appear to the catalog.

// externalSource labels version records produced by out-of-band
// filesystem changes.
const externalSource = models.SourceWebDAV

// AllVaults returns every vault row, for the reconciliation sweep.
func (s *CatalogService) AllVaults(ctx context.Context) ([]models.Vault, error) {
	return s.vaults.ListAllVaults(ctx)
}

// CatalogPaths returns the ordered document paths the catalog holds
// for a vault.
func (s *CatalogService) CatalogPaths(ctx context.Context, v models.Vault) ([]string, error) {
	return s.docs.ListPaths(ctx, v.ID)
}

// DiskPaths returns the markdown files actually present under the
// vault's effective root.
func (s *CatalogService) DiskPaths(_ context.Context, v models.Vault) ([]string, error) {
	entries, err := s.storeFor(&v).List("")
	if err != nil {
		if apperrors.IsNotFound(err) {
			// Vault directory does not exist yet: nothing on disk.
			return nil, nil
		}
		return nil, err
	}
	var paths []string
	for _, entry := range entries {
		if !entry.IsDir && strings.HasSuffix(entry.Path, pathguard.MarkdownExt) {
			paths = append(paths, entry.Path)
		}
	}
	return paths, nil
}

// SyncFile converges the catalog row for one on-disk file. Unchanged
// content is a no-op; a file that vanished since it was listed is
// treated as removed.
func (s *CatalogService) SyncFile(ctx context.Context, v models.Vault, rel string) error {
	store := s.storeFor(&v)
	err := s.syncFromDisk(ctx, store, &v, rel, externalSource, "")
	if err != nil && apperrors.IsNotFound(err) {
		return s.DropEntry(ctx, v, rel)
	}
	return err
}

// DropEntry removes the catalog row for a path whose file is gone from
// disk. Missing rows are not an error; reconciliation may race a
// regular Remove.
func (s *CatalogService) DropEntry(ctx context.Context, v models.Vault, rel string) error {
	_, err := s.docs.DeleteDocument(ctx, v.ID, rel)
	return err
}

// SyncExternalFile absorbs a watcher event for a written or created
// file, addressed by owner and vault slug. The vault row is created on
// demand; docPath is relative to the vault directory and is re-scoped
// under BaseDir-restricted vaults.
func (s *CatalogService) SyncExternalFile(ctx context.Context, userID, slug, docPath string) error {
	v, rel, err := s.vaultForEvent(ctx, userID, slug, docPath)
	if err != nil || v == nil {
		return err
	}
	return s.SyncFile(ctx, *v, rel)
}

// SyncExternalRemove absorbs a watcher event for a deleted file.
func (s *CatalogService) SyncExternalRemove(ctx context.Context, userID, slug, docPath string) error {
	v, rel, err := s.vaultForEvent(ctx, userID, slug, docPath)
	if err != nil || v == nil {
		return err
	}
	return s.DropEntry(ctx, *v, rel)
}

// vaultForEvent maps a watcher event to a vault row and an
// effective-root-relative path. A nil vault with nil error means the
// event falls outside catalog scope and is ignored.
func (s *CatalogService) vaultForEvent(ctx context.Context, userID, slug, docPath string) (*models.Vault, string, error) {
	v, err := s.vaults.GetVault(ctx, userID, slug)
	if err != nil {
		return nil, "", err
	}
	if v == nil {
		// Vaults are created on demand when files appear in their
		// directory. Fails when the user row itself is unknown; the
		// caller logs and skips.
		v, err = s.vaults.CreateVault(ctx, userID, slug, slug, "")
		if err != nil {
			return nil, "", err
		}
		s.log.Info("vault created on demand",
			zap.String("user_id", userID), zap.String("slug", slug))
	}
	rel := docPath
	if v.BaseDir != "" {
		prefix := strings.TrimSuffix(v.BaseDir, "/") + "/"
		if !strings.HasPrefix(docPath, prefix) {
			return nil, "", nil
		}
		rel = strings.TrimPrefix(docPath, prefix)
	}
	return v, rel, nil
}
