package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/atinyakov/mdvault/internal/models"
)

// PostgresVaultRepository implements vault persistence against a
// PostgreSQL database.
type PostgresVaultRepository struct {
	// DB is the database handle for executing queries.
	DB *sql.DB
}

// NewPostgresVaultRepository creates a new PostgresVaultRepository
// using the provided *sql.DB.
func NewPostgresVaultRepository(db *sql.DB) *PostgresVaultRepository {
	return &PostgresVaultRepository{DB: db}
}

const vaultColumns = `id, user_id, name, slug, base_dir, created_at`

// GetVault fetches a vault by owner and slug. Returns (nil, nil) when
// no row exists.
func (r *PostgresVaultRepository) GetVault(ctx context.Context, userID, slug string) (*models.Vault, error) {
	var v models.Vault
	err := r.DB.QueryRowContext(ctx,
		`SELECT `+vaultColumns+` FROM vaults WHERE user_id = $1 AND slug = $2`,
		userID, slug,
	).Scan(&v.ID, &v.UserID, &v.Name, &v.Slug, &v.BaseDir, &v.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("GetVault: %w", err)
	}
	return &v, nil
}

// GetVaultByID fetches a vault by its id. Returns (nil, nil) when no
// row exists.
func (r *PostgresVaultRepository) GetVaultByID(ctx context.Context, id string) (*models.Vault, error) {
	var v models.Vault
	err := r.DB.QueryRowContext(ctx,
		`SELECT `+vaultColumns+` FROM vaults WHERE id = $1`, id,
	).Scan(&v.ID, &v.UserID, &v.Name, &v.Slug, &v.BaseDir, &v.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("GetVaultByID: %w", err)
	}
	return &v, nil
}

// CreateVault inserts a vault row. The (user_id, slug) pair is unique;
// a conflicting insert returns the existing row unchanged, which makes
// on-demand creation idempotent.
func (r *PostgresVaultRepository) CreateVault(ctx context.Context, userID, name, slug, baseDir string) (*models.Vault, error) {
	v := models.Vault{ID: uuid.NewString(), UserID: userID, Name: name, Slug: slug, BaseDir: baseDir}
	err := r.DB.QueryRowContext(ctx, `
		INSERT INTO vaults (id, user_id, name, slug, base_dir)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (user_id, slug) DO UPDATE SET slug = EXCLUDED.slug
		RETURNING `+vaultColumns,
		v.ID, v.UserID, v.Name, v.Slug, v.BaseDir,
	).Scan(&v.ID, &v.UserID, &v.Name, &v.Slug, &v.BaseDir, &v.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("CreateVault: %w", err)
	}
	return &v, nil
}

// ListVaults returns all vaults owned by a user, ordered by slug.
func (r *PostgresVaultRepository) ListVaults(ctx context.Context, userID string) ([]models.Vault, error) {
	rows, err := r.DB.QueryContext(ctx,
		`SELECT `+vaultColumns+` FROM vaults WHERE user_id = $1 ORDER BY slug`, userID)
	if err != nil {
		return nil, fmt.Errorf("ListVaults: %w", err)
	}
	defer rows.Close()
	return scanVaults(rows)
}

// ListAllVaults returns every vault in the catalog. Used by the
// reconciliation sweep.
func (r *PostgresVaultRepository) ListAllVaults(ctx context.Context) ([]models.Vault, error) {
	rows, err := r.DB.QueryContext(ctx,
		`SELECT `+vaultColumns+` FROM vaults ORDER BY user_id, slug`)
	if err != nil {
		return nil, fmt.Errorf("ListAllVaults: %w", err)
	}
	defer rows.Close()
	return scanVaults(rows)
}

// DeleteVault removes a vault row; documents and versions cascade.
func (r *PostgresVaultRepository) DeleteVault(ctx context.Context, id string) (bool, error) {
	res, err := r.DB.ExecContext(ctx, `DELETE FROM vaults WHERE id = $1`, id)
	if err != nil {
		return false, fmt.Errorf("DeleteVault: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return rows > 0, nil
}

func scanVaults(rows *sql.Rows) ([]models.Vault, error) {
	var vaults []models.Vault
	for rows.Next() {
		var v models.Vault
		if err := rows.Scan(&v.ID, &v.UserID, &v.Name, &v.Slug, &v.BaseDir, &v.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		vaults = append(vaults, v)
	}
	return vaults, rows.Err()
}
