package service_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"go.uber.org/zap"

	"github.com/atinyakov/mdvault/internal/apperrors"
	"github.com/atinyakov/mdvault/internal/models"
	"github.com/atinyakov/mdvault/internal/service"
)

func passthroughCreate(_ context.Context, userID, name, slug, baseDir string) (*models.Vault, error) {
	return &models.Vault{ID: "v1", UserID: userID, Name: name, Slug: slug, BaseDir: baseDir}, nil
}

func TestVaultCreate_MakesDirectory(t *testing.T) {
	root := t.TempDir()
	repo := &mockVaultRepo{CreateVaultFunc: passthroughCreate}
	svc := service.NewVaultService(repo, root, zap.NewNop())

	v, err := svc.Create(context.Background(), "u1", "Main", "main", "")
	if err != nil {
		t.Fatalf("Create error = %v", err)
	}
	if v.Slug != "main" {
		t.Errorf("slug = %q; want main", v.Slug)
	}
	info, err := os.Stat(filepath.Join(root, "u1", "main"))
	if err != nil || !info.IsDir() {
		t.Errorf("vault directory missing: %v", err)
	}
}

func TestVaultCreate_RejectsBadSlug(t *testing.T) {
	svc := service.NewVaultService(&mockVaultRepo{}, t.TempDir(), zap.NewNop())
	for _, slug := range []string{"", "Main", "has space", "../up", "-leading"} {
		if _, err := svc.Create(context.Background(), "u1", "x", slug, ""); !apperrors.IsValidation(err) {
			t.Errorf("slug %q: error = %v; want ValidationError", slug, err)
		}
	}
}

func TestVaultCreate_BaseDirCreated(t *testing.T) {
	root := t.TempDir()
	repo := &mockVaultRepo{CreateVaultFunc: passthroughCreate}
	svc := service.NewVaultService(repo, root, zap.NewNop())

	v, err := svc.Create(context.Background(), "u1", "Blog", "blog", "published/posts")
	if err != nil {
		t.Fatalf("Create error = %v", err)
	}
	if v.BaseDir != "published/posts" {
		t.Errorf("base dir = %q", v.BaseDir)
	}
	info, err := os.Stat(filepath.Join(root, "u1", "blog", "published", "posts"))
	if err != nil || !info.IsDir() {
		t.Errorf("base directory missing: %v", err)
	}
}

func TestVaultCreate_BaseDirOverRegularFile(t *testing.T) {
	root := t.TempDir()
	if err := os.MkdirAll(filepath.Join(root, "u1", "blog"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(root, "u1", "blog", "published"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	svc := service.NewVaultService(&mockVaultRepo{}, root, zap.NewNop())

	_, err := svc.Create(context.Background(), "u1", "Blog", "blog", "published")
	if !apperrors.IsValidation(err) {
		t.Fatalf("error = %v; want ValidationError", err)
	}
}

func TestVaultDelete_RemovesDirectory(t *testing.T) {
	root := t.TempDir()
	v := &models.Vault{ID: "v1", UserID: "u1", Slug: "main"}
	dir := filepath.Join(root, "u1", "main")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}

	deleted := false
	repo := vaultRepoFor(v)
	repo.DeleteVaultFunc = func(_ context.Context, id string) (bool, error) {
		deleted = id == "v1"
		return true, nil
	}
	svc := service.NewVaultService(repo, root, zap.NewNop())

	if err := svc.Delete(context.Background(), "u1", "v1"); err != nil {
		t.Fatalf("Delete error = %v", err)
	}
	if !deleted {
		t.Error("expected the vault row to be deleted")
	}
	if _, err := os.Stat(dir); !os.IsNotExist(err) {
		t.Error("vault directory should be removed")
	}
}

func TestVaultDelete_OwnershipEnforced(t *testing.T) {
	v := &models.Vault{ID: "v1", UserID: "u1", Slug: "main"}
	svc := service.NewVaultService(vaultRepoFor(v), t.TempDir(), zap.NewNop())

	err := svc.Delete(context.Background(), "intruder", "v1")
	if !apperrors.IsNotFound(err) {
		t.Fatalf("error = %v; want NotFoundError", err)
	}
}

func TestVaultGet_Missing(t *testing.T) {
	repo := &mockVaultRepo{
		GetVaultFunc: func(context.Context, string, string) (*models.Vault, error) { return nil, nil },
	}
	svc := service.NewVaultService(repo, t.TempDir(), zap.NewNop())

	_, err := svc.Get(context.Background(), "u1", "nope")
	if !apperrors.IsNotFound(err) {
		t.Fatalf("error = %v; want NotFoundError", err)
	}
}
