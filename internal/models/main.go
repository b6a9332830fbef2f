// Package models defines the core data structures for users, vaults,
// documents and their version history.
package models

import "time"

// User represents an application user who owns vaults.
type User struct {
	// ID is the unique identifier for the user.
	ID string `json:"id"`
	// Username is the login name chosen by the user.
	Username string `json:"username"`
	// PasswordHash is the bcrypt hash of the user's password.
	PasswordHash []byte `json:"-"`
	// CreatedAt is when the user record was created.
	CreatedAt time.Time `json:"created_at"`
}

// Vault is a named root directory holding a set of markdown documents,
// mirrored by catalog rows. (UserID, Slug) is unique.
type Vault struct {
	// ID is the unique identifier for the vault.
	ID string `json:"id"`
	// UserID is the owning user.
	UserID string `json:"user_id"`
	// Name is the display name of the vault.
	Name string `json:"name"`
	// Slug is the URL- and directory-safe identifier, unique per user.
	Slug string `json:"slug"`
	// BaseDir optionally restricts visible content to a sub-path of the
	// vault root. Empty means the whole vault is visible.
	BaseDir string `json:"base_dir,omitempty"`
	// CreatedAt is when the vault row was created.
	CreatedAt time.Time `json:"created_at"`
}

// Document is one catalog row per relative file path inside a vault.
// Its ContentHash always equals the SHA-256 of the bytes currently on
// disk at Path, or the row does not exist.
type Document struct {
	// ID is the unique identifier for the document.
	ID string `json:"id"`
	// VaultID is the owning vault.
	VaultID string `json:"vault_id"`
	// Path is the vault-relative file path, unique per vault.
	Path string `json:"path"`
	// Title is the extracted display title.
	Title string `json:"title"`
	// Tags is the extracted tag set, order-insignificant.
	Tags []string `json:"tags"`
	// Frontmatter is the opaque structured metadata block, serialized as JSON.
	Frontmatter []byte `json:"frontmatter,omitempty"`
	// StrippedContent is the plain-text rendering used for search only.
	StrippedContent string `json:"-"`
	// ContentHash is the SHA-256 hex digest of the file's byte content.
	ContentHash string `json:"content_hash"`
	// SizeBytes is the byte size of the file content.
	SizeBytes int64 `json:"size_bytes"`
	// FileCreatedAt and FileModifiedAt are file timestamps, distinct
	// from the catalog row timestamps below.
	FileCreatedAt  time.Time `json:"file_created_at"`
	FileModifiedAt time.Time `json:"file_modified_at"`
	// CreatedAt and UpdatedAt are catalog row timestamps.
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// DocumentVersion is an immutable record of one content transition,
// numbered sequentially from 1 per document.
type DocumentVersion struct {
	// ID is the unique identifier for the version row.
	ID string `json:"id"`
	// DocumentID is the owning document.
	DocumentID string `json:"document_id"`
	// VersionNum is the strictly-increasing version number, starting at 1.
	VersionNum int64 `json:"version_num"`
	// ContentHash is the SHA-256 hex digest at this version.
	ContentHash string `json:"content_hash"`
	// SizeBytes is the content size at this version.
	SizeBytes int64 `json:"size_bytes"`
	// Source records which write path produced the change.
	Source Source `json:"source"`
	// UserID is the acting user, empty if unknown (e.g. external edit).
	UserID string `json:"user_id,omitempty"`
	// CreatedAt is when the version was recorded.
	CreatedAt time.Time `json:"created_at"`
}

// Source identifies the write path that produced a content change.
type Source string

const (
	// SourceWeb marks changes made through the web front-end.
	SourceWeb Source = "web"
	// SourceAPI marks changes made through the REST API.
	SourceAPI Source = "api"
	// SourceWebDAV marks changes made through the WebDAV endpoint.
	SourceWebDAV Source = "webdav"
)

// Valid reports whether s is one of the known sources.
func (s Source) Valid() bool {
	switch s {
	case SourceWeb, SourceAPI, SourceWebDAV:
		return true
	}
	return false
}

// NodeType distinguishes tree node kinds.
type NodeType string

const (
	// NodeFile is a document leaf.
	NodeFile NodeType = "file"
	// NodeDirectory is a directory containing children.
	NodeDirectory NodeType = "directory"
)

// TreeNode is a derived, non-persisted hierarchical view of a vault's
// flat document-path set, rebuilt on each request.
type TreeNode struct {
	// Name is the last path segment.
	Name string `json:"name"`
	// Path is the full vault-relative path of this node.
	Path string `json:"path"`
	// Type is file or directory.
	Type NodeType `json:"type"`
	// Children holds nested nodes for directories, nil for files.
	Children []*TreeNode `json:"children,omitempty"`
	// SizeBytes and UpdatedAt are populated for file nodes.
	SizeBytes int64     `json:"size_bytes,omitempty"`
	UpdatedAt time.Time `json:"updated_at,omitempty"`
}

// FileEntry describes one on-disk entry returned by a store listing.
type FileEntry struct {
	// Path is the store-relative path, slash-separated.
	Path string `json:"path"`
	// IsDir reports whether the entry is a directory.
	IsDir bool `json:"is_dir"`
	// Size is the byte size for files, 0 for directories.
	Size int64 `json:"size"`
	// ModTime is the entry's modification time.
	ModTime time.Time `json:"mod_time"`
}

// PathState classifies what exists at a filesystem path.
type PathState string

const (
	// PathFile means a regular file exists at the path.
	PathFile PathState = "file"
	// PathDirectory means a directory exists at the path.
	PathDirectory PathState = "directory"
	// PathAbsent means nothing exists at the path.
	PathAbsent PathState = "absent"
)
