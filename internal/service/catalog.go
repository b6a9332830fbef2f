// Package service implements the document storage and synchronization
// engine: content-addressed catalog upserts, version history, tree
// reconstruction and the disk-first write discipline, delegating
// persistence to repository interfaces.
package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/atinyakov/mdvault/internal/apperrors"
	"github.com/atinyakov/mdvault/internal/extract"
	"github.com/atinyakov/mdvault/internal/filestore"
	"github.com/atinyakov/mdvault/internal/models"
	"github.com/atinyakov/mdvault/internal/pathguard"
)

// VaultRepository defines the vault persistence operations needed by
// the services.
type VaultRepository interface {
	// GetVault fetches a vault by owner and slug, (nil, nil) if absent.
	GetVault(ctx context.Context, userID, slug string) (*models.Vault, error)
	// GetVaultByID fetches a vault by id, (nil, nil) if absent.
	GetVaultByID(ctx context.Context, id string) (*models.Vault, error)
	// CreateVault inserts a vault row, idempotent on (user_id, slug).
	CreateVault(ctx context.Context, userID, name, slug, baseDir string) (*models.Vault, error)
	// ListVaults returns all vaults owned by a user.
	ListVaults(ctx context.Context, userID string) ([]models.Vault, error)
	// ListAllVaults returns every vault in the catalog.
	ListAllVaults(ctx context.Context) ([]models.Vault, error)
	// DeleteVault removes a vault row, cascading documents and versions.
	DeleteVault(ctx context.Context, id string) (bool, error)
}

// CatalogRepository defines the document persistence operations needed
// by the CatalogService.
type CatalogRepository interface {
	// GetDocument fetches one row by vault and path, (nil, nil) if absent.
	GetDocument(ctx context.Context, vaultID, path string) (*models.Document, error)
	// InsertDocument creates a row plus its version 1 record.
	InsertDocument(ctx context.Context, doc *models.Document, source models.Source, userID string) (*models.Document, error)
	// UpdateDocument rewrites a row and appends the next version record.
	UpdateDocument(ctx context.Context, doc *models.Document, source models.Source, userID string) (*models.Document, error)
	// DeleteDocument removes a row, reporting whether one existed.
	DeleteDocument(ctx context.Context, vaultID, path string) (bool, error)
	// ListDocuments returns lightweight rows ordered by path.
	ListDocuments(ctx context.Context, vaultID, dirPrefix string) ([]models.Document, error)
	// ListPaths returns every document path in a vault, ordered.
	ListPaths(ctx context.Context, vaultID string) ([]string, error)
	// GetVersions returns a document's versions, newest first.
	GetVersions(ctx context.Context, documentID string) ([]models.DocumentVersion, error)
}

// WriteRecorder receives the absolute path of every disk mutation the
// engine performs, so the filesystem watcher can tell self-induced
// events from external ones.
type WriteRecorder interface {
	// Add registers a path as recently written by this process.
	Add(absPath string)
}

// CatalogService implements the engine's operation contract over a
// vault repository, a document repository and per-vault file stores.
type CatalogService struct {
	vaults   VaultRepository
	docs     CatalogRepository
	dataRoot string
	recent   WriteRecorder
	log      *zap.Logger
}

// NewCatalogService constructs a CatalogService. dataRoot is the
// directory holding <userID>/<vaultSlug> trees.
func NewCatalogService(vaults VaultRepository, docs CatalogRepository, dataRoot string, recent WriteRecorder, log *zap.Logger) *CatalogService {
	return &CatalogService{vaults: vaults, docs: docs, dataRoot: dataRoot, recent: recent, log: log}
}

// hashContent returns the hex SHA-256 digest of content.
func hashContent(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}

// resolveVault loads the vault and verifies ownership.
func (s *CatalogService) resolveVault(ctx context.Context, userID, vaultID string) (*models.Vault, error) {
	v, err := s.vaults.GetVaultByID(ctx, vaultID)
	if err != nil {
		return nil, err
	}
	if v == nil || v.UserID != userID {
		return nil, apperrors.NewNotFound("vault", vaultID)
	}
	return v, nil
}

// storeFor returns the file store rooted at the vault's effective
// directory: <dataRoot>/<userID>/<slug>, extended by BaseDir when the
// vault restricts its visible content.
func (s *CatalogService) storeFor(v *models.Vault) *filestore.Store {
	root := filepath.Join(s.dataRoot, v.UserID, v.Slug)
	if v.BaseDir != "" {
		root = filepath.Join(root, filepath.FromSlash(v.BaseDir))
	}
	return filestore.New(root)
}

// Get returns the document row and its current disk content.
func (s *CatalogService) Get(ctx context.Context, userID, vaultID, path string) (*models.Document, []byte, error) {
	v, err := s.resolveVault(ctx, userID, vaultID)
	if err != nil {
		return nil, nil, err
	}
	store := s.storeFor(v)
	content, err := store.Read(path)
	if err != nil {
		return nil, nil, err
	}
	path = pathguard.Canonical(path)
	doc, err := s.docs.GetDocument(ctx, v.ID, path)
	if err != nil {
		return nil, nil, err
	}
	if doc == nil {
		return nil, nil, apperrors.NewNotFound("document", path)
	}
	return doc, content, nil
}

// Put stores content at path and converges the catalog. The operation
// is idempotent under repeated identical writes: when the existing
// row's hash matches the incoming content, nothing happens and the row
// is returned unchanged. Otherwise disk is written first, then the row
// is inserted or updated with one new version record.
func (s *CatalogService) Put(ctx context.Context, userID, vaultID, path string, content []byte, source models.Source) (*models.Document, error) {
	if !source.Valid() {
		return nil, apperrors.NewValidation(string(source), "unknown change source")
	}
	v, err := s.resolveVault(ctx, userID, vaultID)
	if err != nil {
		return nil, err
	}
	store := s.storeFor(v)
	if _, err := pathguard.Resolve(store.Root(), path); err != nil {
		return nil, err
	}
	path = pathguard.Canonical(path)

	hash := hashContent(content)
	existing, err := s.docs.GetDocument(ctx, v.ID, path)
	if err != nil {
		return nil, err
	}
	if existing != nil && existing.ContentHash == hash {
		return existing, nil
	}

	// Disk before catalog: a crash here leaves new bytes without a row,
	// which the reconciler closes, never a row claiming absent content.
	abs, err := store.Write(path, content)
	if err != nil {
		return nil, err
	}
	s.recent.Add(abs)

	return s.upsertRow(ctx, store, v, path, content, hash, existing, source, userID)
}

// upsertRow runs extraction and writes the catalog row for content
// already present on disk.
func (s *CatalogService) upsertRow(ctx context.Context, store *filestore.Store, v *models.Vault, path string, content []byte, hash string, existing *models.Document, source models.Source, userID string) (*models.Document, error) {
	parsed := extract.Extract(path, content)
	info, err := store.Stat(path)
	if err != nil {
		return nil, err
	}

	doc := models.Document{
		VaultID:         v.ID,
		Path:            path,
		Title:           parsed.Title,
		Tags:            parsed.Tags,
		Frontmatter:     parsed.Frontmatter,
		StrippedContent: parsed.StrippedContent,
		ContentHash:     hash,
		SizeBytes:       int64(len(content)),
		FileModifiedAt:  info.ModTime(),
	}
	if existing == nil {
		doc.FileCreatedAt = info.ModTime()
		return s.docs.InsertDocument(ctx, &doc, source, userID)
	}
	doc.ID = existing.ID
	doc.CreatedAt = existing.CreatedAt
	doc.FileCreatedAt = existing.FileCreatedAt
	return s.docs.UpdateDocument(ctx, &doc, source, userID)
}

// Remove deletes the document from disk first, then drops its catalog
// row and, by cascade, its version history.
func (s *CatalogService) Remove(ctx context.Context, userID, vaultID, path string) error {
	v, err := s.resolveVault(ctx, userID, vaultID)
	if err != nil {
		return err
	}
	store := s.storeFor(v)
	if _, err := pathguard.Resolve(store.Root(), path); err != nil {
		return err
	}
	path = pathguard.Canonical(path)
	doc, err := s.docs.GetDocument(ctx, v.ID, path)
	if err != nil {
		return err
	}
	if doc == nil {
		return apperrors.NewNotFound("document", path)
	}

	abs, err := store.Delete(path)
	if err != nil && !apperrors.IsNotFound(err) {
		return err
	}
	if abs != "" {
		s.recent.Add(abs)
	}

	_, err = s.docs.DeleteDocument(ctx, v.ID, path)
	return err
}

// List returns lightweight metadata rows ordered by path, optionally
// restricted to a directory.
func (s *CatalogService) List(ctx context.Context, userID, vaultID, dirPath string) ([]models.Document, error) {
	v, err := s.resolveVault(ctx, userID, vaultID)
	if err != nil {
		return nil, err
	}
	store := s.storeFor(v)
	if _, err := pathguard.ResolveDir(store.Root(), dirPath); err != nil {
		return nil, err
	}
	prefix := ""
	if strings.TrimSpace(dirPath) != "" {
		prefix = pathguard.Canonical(dirPath) + "/"
	}
	return s.docs.ListDocuments(ctx, v.ID, prefix)
}

// Tree reconstructs the vault's nested directory/file structure from
// its flat document-path set. Directories with no documents anywhere
// beneath them do not appear.
func (s *CatalogService) Tree(ctx context.Context, userID, vaultID string) ([]*models.TreeNode, error) {
	v, err := s.resolveVault(ctx, userID, vaultID)
	if err != nil {
		return nil, err
	}
	docs, err := s.docs.ListDocuments(ctx, v.ID, "")
	if err != nil {
		return nil, err
	}
	return BuildTree(docs), nil
}

// BuildTree folds ordered document paths into nested nodes, creating
// each directory node on first encounter and attaching children in
// traversal order.
func BuildTree(docs []models.Document) []*models.TreeNode {
	var roots []*models.TreeNode
	dirs := map[string]*models.TreeNode{}

	attach := func(parent *models.TreeNode, node *models.TreeNode) {
		if parent == nil {
			roots = append(roots, node)
			return
		}
		parent.Children = append(parent.Children, node)
	}

	for _, doc := range docs {
		segments := strings.Split(doc.Path, "/")
		var parent *models.TreeNode
		prefix := ""
		for i, segment := range segments {
			if prefix == "" {
				prefix = segment
			} else {
				prefix = prefix + "/" + segment
			}
			if i == len(segments)-1 {
				attach(parent, &models.TreeNode{
					Name:      segment,
					Path:      doc.Path,
					Type:      models.NodeFile,
					SizeBytes: doc.SizeBytes,
					UpdatedAt: doc.UpdatedAt,
				})
				continue
			}
			dir, ok := dirs[prefix]
			if !ok {
				dir = &models.TreeNode{Name: segment, Path: prefix, Type: models.NodeDirectory}
				dirs[prefix] = dir
				attach(parent, dir)
			}
			parent = dir
		}
	}
	return roots
}

// GetVersions returns the document's version list, newest first.
// History becomes unreachable once the document is deleted.
func (s *CatalogService) GetVersions(ctx context.Context, userID, vaultID, path string) ([]models.DocumentVersion, error) {
	v, err := s.resolveVault(ctx, userID, vaultID)
	if err != nil {
		return nil, err
	}
	if _, err := pathguard.Resolve(s.storeFor(v).Root(), path); err != nil {
		return nil, err
	}
	path = pathguard.Canonical(path)
	doc, err := s.docs.GetDocument(ctx, v.ID, path)
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, apperrors.NewNotFound("document", path)
	}
	return s.docs.GetVersions(ctx, doc.ID)
}

// CreateDirectory creates an (initially empty) directory inside the
// vault and returns its vault-relative path.
func (s *CatalogService) CreateDirectory(ctx context.Context, userID, vaultID, dirPath string) (string, error) {
	v, err := s.resolveVault(ctx, userID, vaultID)
	if err != nil {
		return "", err
	}
	store := s.storeFor(v)
	abs, err := store.CreateDir(dirPath)
	if err != nil {
		return "", err
	}
	rel, err := filepath.Rel(store.Root(), abs)
	if err != nil {
		return "", err
	}
	return filepath.ToSlash(rel), nil
}

// Move renames src to dst on disk, then converges the catalog: rows
// under the vacated source are dropped and the destination content is
// re-upserted from disk. Destination documents start a fresh version
// history.
func (s *CatalogService) Move(ctx context.Context, userID, vaultID, src, dst string, overwrite bool, source models.Source) (string, string, error) {
	v, err := s.resolveVault(ctx, userID, vaultID)
	if err != nil {
		return "", "", err
	}
	store := s.storeFor(v)
	srcAbs, dstAbs, err := store.Move(src, dst, overwrite)
	if err != nil {
		return "", "", err
	}
	s.recent.Add(srcAbs)
	s.recent.Add(dstAbs)
	src, dst = pathguard.Canonical(src), pathguard.Canonical(dst)

	if strings.HasSuffix(src, pathguard.MarkdownExt) {
		if _, err := s.docs.DeleteDocument(ctx, v.ID, src); err != nil {
			return "", "", err
		}
		if err := s.syncFromDisk(ctx, store, v, dst, source, userID); err != nil {
			return "", "", err
		}
		return src, dst, nil
	}

	if err := s.dropRowsUnder(ctx, v, src); err != nil {
		return "", "", err
	}
	if err := s.adoptFilesUnder(ctx, store, v, dst, source, userID); err != nil {
		return "", "", err
	}
	return src, dst, nil
}

// Copy duplicates src at dst on disk and upserts catalog rows for the
// new content. Source rows are untouched.
func (s *CatalogService) Copy(ctx context.Context, userID, vaultID, src, dst string, overwrite bool, source models.Source) (string, string, error) {
	v, err := s.resolveVault(ctx, userID, vaultID)
	if err != nil {
		return "", "", err
	}
	store := s.storeFor(v)
	_, dstAbs, err := store.Copy(src, dst, overwrite)
	if err != nil {
		return "", "", err
	}
	s.recent.Add(dstAbs)
	src, dst = pathguard.Canonical(src), pathguard.Canonical(dst)

	if strings.HasSuffix(src, pathguard.MarkdownExt) {
		if err := s.syncFromDisk(ctx, store, v, dst, source, userID); err != nil {
			return "", "", err
		}
		return src, dst, nil
	}
	if err := s.adoptFilesUnder(ctx, store, v, dst, source, userID); err != nil {
		return "", "", err
	}
	return src, dst, nil
}

// dropRowsUnder removes every catalog row whose path lies under the
// given directory.
func (s *CatalogService) dropRowsUnder(ctx context.Context, v *models.Vault, dir string) error {
	prefix := strings.TrimSuffix(dir, "/") + "/"
	rows, err := s.docs.ListDocuments(ctx, v.ID, prefix)
	if err != nil {
		return err
	}
	for _, row := range rows {
		if _, err := s.docs.DeleteDocument(ctx, v.ID, row.Path); err != nil {
			return err
		}
	}
	return nil
}

// adoptFilesUnder upserts a catalog row for every markdown file below
// the given directory, registering each touched path as self-written.
func (s *CatalogService) adoptFilesUnder(ctx context.Context, store *filestore.Store, v *models.Vault, dir string, source models.Source, userID string) error {
	entries, err := store.List(dir)
	if err != nil {
		return err
	}
	for _, entry := range entries {
		if entry.IsDir || !strings.HasSuffix(entry.Path, pathguard.MarkdownExt) {
			continue
		}
		s.recent.Add(filepath.Join(store.Root(), filepath.FromSlash(entry.Path)))
		if err := s.syncFromDisk(ctx, store, v, entry.Path, source, userID); err != nil {
			return err
		}
	}
	return nil
}

// syncFromDisk converges one catalog row to the file currently on
// disk. Identical content is a no-op.
func (s *CatalogService) syncFromDisk(ctx context.Context, store *filestore.Store, v *models.Vault, path string, source models.Source, userID string) error {
	content, err := store.Read(path)
	if err != nil {
		return err
	}
	hash := hashContent(content)
	existing, err := s.docs.GetDocument(ctx, v.ID, path)
	if err != nil {
		return err
	}
	if existing != nil && existing.ContentHash == hash {
		return nil
	}
	_, err = s.upsertRow(ctx, store, v, path, content, hash, existing, source, userID)
	return err
}
