// Package repository provides persistence implementations for the
// document catalog using a PostgreSQL database.
package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/atinyakov/mdvault/internal/models"
)

// searchVector composes the derived full-text column from weighted
// title, tag and body inputs. The three placeholders are substituted
// per statement.
const searchVector = `setweight(to_tsvector('english', %s), 'A') || ` +
	`setweight(to_tsvector('english', %s), 'B') || ` +
	`setweight(to_tsvector('english', %s), 'C')`

// PostgresCatalogRepository implements document and version persistence
// against a PostgreSQL database.
type PostgresCatalogRepository struct {
	// DB is the database handle for executing queries and transactions.
	DB *sql.DB
}

// NewPostgresCatalogRepository creates a new PostgresCatalogRepository
// using the provided *sql.DB.
func NewPostgresCatalogRepository(db *sql.DB) *PostgresCatalogRepository {
	return &PostgresCatalogRepository{DB: db}
}

// GetDocument fetches one document row by vault and path. It returns
// (nil, nil) when no row exists.
func (r *PostgresCatalogRepository) GetDocument(ctx context.Context, vaultID, path string) (*models.Document, error) {
	var (
		doc models.Document
		fm  []byte
	)
	err := r.DB.QueryRowContext(ctx, `
		SELECT id, vault_id, path, title, tags, frontmatter, stripped_content,
		       content_hash, size_bytes, file_created_at, file_modified_at,
		       created_at, updated_at
		  FROM documents WHERE vault_id = $1 AND path = $2
	`, vaultID, path).Scan(
		&doc.ID, &doc.VaultID, &doc.Path, &doc.Title, pq.Array(&doc.Tags), &fm,
		&doc.StrippedContent, &doc.ContentHash, &doc.SizeBytes,
		&doc.FileCreatedAt, &doc.FileModifiedAt, &doc.CreatedAt, &doc.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("GetDocument: %w", err)
	}
	doc.Frontmatter = fm
	return &doc, nil
}

// InsertDocument creates a new document row together with its version 1
// record in a single transaction, and returns the stored row.
func (r *PostgresCatalogRepository) InsertDocument(ctx context.Context, doc *models.Document, source models.Source, userID string) (*models.Document, error) {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	stored := *doc
	stored.ID = uuid.NewString()

	insertSQL := `
		INSERT INTO documents (id, vault_id, path, title, tags, frontmatter,
		                       stripped_content, content_hash, size_bytes,
		                       file_created_at, file_modified_at, search_vector)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, ` +
		fmt.Sprintf(searchVector, "$4", "$12", "$7") + `)
		RETURNING created_at, updated_at
	`
	err = tx.QueryRowContext(ctx, insertSQL,
		stored.ID, stored.VaultID, stored.Path, stored.Title,
		pq.Array(stored.Tags), nullableBytes(stored.Frontmatter),
		stored.StrippedContent, stored.ContentHash, stored.SizeBytes,
		stored.FileCreatedAt, stored.FileModifiedAt,
		strings.Join(stored.Tags, " "),
	).Scan(&stored.CreatedAt, &stored.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert document: %w", err)
	}

	if err := insertVersion(ctx, tx, stored.ID, 1, stored.ContentHash, stored.SizeBytes, source, userID); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return &stored, nil
}

// UpdateDocument rewrites an existing row in place and appends a
// version record with version_num = current max + 1, in a single
// transaction. The document row is locked while the max is read so two
// writers cannot claim the same version number.
func (r *PostgresCatalogRepository) UpdateDocument(ctx context.Context, doc *models.Document, source models.Source, userID string) (*models.Document, error) {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var lockedID string
	if err := tx.QueryRowContext(ctx,
		`SELECT id FROM documents WHERE id = $1 FOR UPDATE`, doc.ID,
	).Scan(&lockedID); err != nil {
		return nil, fmt.Errorf("lock document: %w", err)
	}

	var maxVersion int64
	if err := tx.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(version_num), 0) FROM document_versions WHERE document_id = $1`, doc.ID,
	).Scan(&maxVersion); err != nil {
		return nil, fmt.Errorf("max version: %w", err)
	}

	stored := *doc
	updateSQL := `
		UPDATE documents
		   SET title = $2, tags = $3, frontmatter = $4, stripped_content = $5,
		       content_hash = $6, size_bytes = $7, file_modified_at = $8,
		       updated_at = now(), search_vector = ` +
		fmt.Sprintf(searchVector, "$2", "$9", "$5") + `
		 WHERE id = $1
		RETURNING updated_at
	`
	err = tx.QueryRowContext(ctx, updateSQL,
		stored.ID, stored.Title, pq.Array(stored.Tags),
		nullableBytes(stored.Frontmatter), stored.StrippedContent,
		stored.ContentHash, stored.SizeBytes, stored.FileModifiedAt,
		strings.Join(stored.Tags, " "),
	).Scan(&stored.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("update document: %w", err)
	}

	if err := insertVersion(ctx, tx, stored.ID, maxVersion+1, stored.ContentHash, stored.SizeBytes, source, userID); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return &stored, nil
}

func insertVersion(ctx context.Context, tx *sql.Tx, documentID string, num int64, hash string, size int64, source models.Source, userID string) error {
	var userArg any
	if userID != "" {
		userArg = userID
	}
	_, err := tx.ExecContext(ctx, `
		INSERT INTO document_versions (id, document_id, version_num, content_hash, size_bytes, source, user_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, uuid.NewString(), documentID, num, hash, size, string(source), userArg)
	if err != nil {
		return fmt.Errorf("insert version: %w", err)
	}
	return nil
}

// DeleteDocument removes a document row; version rows cascade. It
// reports whether a row was actually deleted.
func (r *PostgresCatalogRepository) DeleteDocument(ctx context.Context, vaultID, path string) (bool, error) {
	res, err := r.DB.ExecContext(ctx,
		`DELETE FROM documents WHERE vault_id = $1 AND path = $2`, vaultID, path)
	if err != nil {
		return false, fmt.Errorf("DeleteDocument: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return rows > 0, nil
}

// ListDocuments returns lightweight metadata rows ordered by path,
// optionally restricted to paths under the given directory prefix.
// LIKE metacharacters in the prefix are escaped before matching.
func (r *PostgresCatalogRepository) ListDocuments(ctx context.Context, vaultID, dirPrefix string) ([]models.Document, error) {
	pattern := escapeLike(dirPrefix) + "%"
	rows, err := r.DB.QueryContext(ctx, `
		SELECT id, path, title, tags, content_hash, size_bytes, updated_at
		  FROM documents
		 WHERE vault_id = $1 AND path LIKE $2
		 ORDER BY path
	`, vaultID, pattern)
	if err != nil {
		return nil, fmt.Errorf("ListDocuments: %w", err)
	}
	defer rows.Close()

	var docs []models.Document
	for rows.Next() {
		doc := models.Document{VaultID: vaultID}
		if err := rows.Scan(&doc.ID, &doc.Path, &doc.Title, pq.Array(&doc.Tags),
			&doc.ContentHash, &doc.SizeBytes, &doc.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

// ListPaths returns every document path in the vault, ordered.
func (r *PostgresCatalogRepository) ListPaths(ctx context.Context, vaultID string) ([]string, error) {
	rows, err := r.DB.QueryContext(ctx,
		`SELECT path FROM documents WHERE vault_id = $1 ORDER BY path`, vaultID)
	if err != nil {
		return nil, fmt.Errorf("ListPaths: %w", err)
	}
	defer rows.Close()

	var paths []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		paths = append(paths, p)
	}
	return paths, rows.Err()
}

// GetVersions returns the full version list for a document, newest
// first.
func (r *PostgresCatalogRepository) GetVersions(ctx context.Context, documentID string) ([]models.DocumentVersion, error) {
	rows, err := r.DB.QueryContext(ctx, `
		SELECT id, document_id, version_num, content_hash, size_bytes, source,
		       COALESCE(user_id::text, ''), created_at
		  FROM document_versions
		 WHERE document_id = $1
		 ORDER BY version_num DESC
	`, documentID)
	if err != nil {
		return nil, fmt.Errorf("GetVersions: %w", err)
	}
	defer rows.Close()

	var versions []models.DocumentVersion
	for rows.Next() {
		var v models.DocumentVersion
		var source string
		if err := rows.Scan(&v.ID, &v.DocumentID, &v.VersionNum, &v.ContentHash,
			&v.SizeBytes, &source, &v.UserID, &v.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		v.Source = models.Source(source)
		versions = append(versions, v)
	}
	return versions, rows.Err()
}

// escapeLike neutralizes LIKE pattern metacharacters so a directory
// prefix is matched literally.
func escapeLike(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `%`, `\%`)
	s = strings.ReplaceAll(s, `_`, `\_`)
	return s
}

// nullableBytes maps an empty byte slice to SQL NULL.
func nullableBytes(b []byte) any {
	if len(b) == 0 {
		return nil
	}
	return b
}
