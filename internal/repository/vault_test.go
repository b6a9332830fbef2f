package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
)

func setupVaultMock(t *testing.T) (*PostgresVaultRepository, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to open sqlmock database: %v", err)
	}
	repo := NewPostgresVaultRepository(db)
	return repo, mock, func() { db.Close() }
}

func vaultRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "user_id", "name", "slug", "base_dir", "created_at"})
}

func TestGetVault_Found(t *testing.T) {
	repo, mock, cleanup := setupVaultMock(t)
	defer cleanup()

	mock.ExpectQuery(regexp.QuoteMeta(`FROM vaults WHERE user_id = $1 AND slug = $2`)).
		WithArgs("u1", "main").
		WillReturnRows(vaultRows().AddRow("v1", "u1", "Main", "main", "", time.Now()))

	v, err := repo.GetVault(context.Background(), "u1", "main")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v == nil || v.ID != "v1" || v.Slug != "main" {
		t.Errorf("unexpected vault: %+v", v)
	}
}

func TestGetVault_Missing(t *testing.T) {
	repo, mock, cleanup := setupVaultMock(t)
	defer cleanup()

	mock.ExpectQuery(regexp.QuoteMeta(`FROM vaults WHERE user_id = $1 AND slug = $2`)).
		WithArgs("u1", "nope").
		WillReturnRows(vaultRows())

	v, err := repo.GetVault(context.Background(), "u1", "nope")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v != nil {
		t.Errorf("expected nil vault, got %+v", v)
	}
}

func TestCreateVault_ReturnsExistingOnConflict(t *testing.T) {
	repo, mock, cleanup := setupVaultMock(t)
	defer cleanup()

	// The upsert returns the pre-existing row's values.
	mock.ExpectQuery(`INSERT INTO vaults`).
		WithArgs(sqlmock.AnyArg(), "u1", "Main", "main", "").
		WillReturnRows(vaultRows().AddRow("existing", "u1", "Main", "main", "", time.Now()))

	v, err := repo.CreateVault(context.Background(), "u1", "Main", "main", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v.ID != "existing" {
		t.Errorf("expected existing row id, got %q", v.ID)
	}
}

func TestListAllVaults(t *testing.T) {
	repo, mock, cleanup := setupVaultMock(t)
	defer cleanup()

	mock.ExpectQuery(regexp.QuoteMeta(`FROM vaults ORDER BY user_id, slug`)).
		WillReturnRows(vaultRows().
			AddRow("v1", "u1", "Main", "main", "", time.Now()).
			AddRow("v2", "u2", "Work", "work", "notes", time.Now()))

	vaults, err := repo.ListAllVaults(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(vaults) != 2 || vaults[1].BaseDir != "notes" {
		t.Errorf("unexpected vaults: %+v", vaults)
	}
}

func TestDeleteVault(t *testing.T) {
	repo, mock, cleanup := setupVaultMock(t)
	defer cleanup()

	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM vaults WHERE id = $1`)).
		WithArgs("v1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	deleted, err := repo.DeleteVault(context.Background(), "v1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !deleted {
		t.Error("expected deleted = true")
	}
}
