package syncer

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/atinyakov/mdvault/internal/models"
)

// mockEngine implements CatalogSync over fixed path sets, recording
// what the reconciler asks it to converge.
type mockEngine struct {
	mockSync
	vaults       []models.Vault
	catalogPaths map[string][]string
	diskPaths    map[string][]string
	syncErrs     map[string]error
	synced       []string
}

func (m *mockEngine) AllVaults(context.Context) ([]models.Vault, error) {
	return m.vaults, nil
}

func (m *mockEngine) CatalogPaths(_ context.Context, v models.Vault) ([]string, error) {
	return m.catalogPaths[v.ID], nil
}

func (m *mockEngine) DiskPaths(_ context.Context, v models.Vault) ([]string, error) {
	return m.diskPaths[v.ID], nil
}

func (m *mockEngine) SyncFile(_ context.Context, v models.Vault, rel string) error {
	key := v.ID + ":" + rel
	if err := m.syncErrs[key]; err != nil {
		return err
	}
	m.synced = append(m.synced, key)
	return nil
}

func TestSweep_ConvergesUnionOfDiskAndCatalog(t *testing.T) {
	engine := &mockEngine{
		vaults: []models.Vault{{ID: "v1", UserID: "u1", Slug: "main"}},
		catalogPaths: map[string][]string{
			"v1": {"stale.md", "both.md"},
		},
		diskPaths: map[string][]string{
			"v1": {"both.md", "fresh.md"},
		},
	}
	r := NewReconciler(engine, t.TempDir(), time.Minute, zap.NewNop())

	if err := r.Sweep(context.Background()); err != nil {
		t.Fatalf("Sweep error = %v", err)
	}

	got := append([]string(nil), engine.synced...)
	sort.Strings(got)
	want := []string{"v1:both.md", "v1:fresh.md", "v1:stale.md"}
	if len(got) != len(want) {
		t.Fatalf("synced = %v; want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("synced = %v; want %v", got, want)
		}
	}
}

func TestSweep_EntryFailureDoesNotStallOthers(t *testing.T) {
	engine := &mockEngine{
		vaults: []models.Vault{{ID: "v1", UserID: "u1", Slug: "main"}},
		diskPaths: map[string][]string{
			"v1": {"bad.md", "good.md"},
		},
		syncErrs: map[string]error{
			"v1:bad.md": errors.New("disk on fire"),
		},
	}
	r := NewReconciler(engine, t.TempDir(), time.Minute, zap.NewNop())

	if err := r.Sweep(context.Background()); err != nil {
		t.Fatalf("Sweep error = %v", err)
	}
	if len(engine.synced) != 1 || engine.synced[0] != "v1:good.md" {
		t.Errorf("synced = %v; want only v1:good.md", engine.synced)
	}
}

func TestSweep_AdoptsOrphanVaultDirectory(t *testing.T) {
	root := t.TempDir()
	orphan := filepath.Join(root, "u2", "scratch", "notes")
	if err := os.MkdirAll(orphan, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(orphan, "idea.md"), []byte("# idea"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(orphan, "skip.txt"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	engine := &mockEngine{}
	r := NewReconciler(engine, root, time.Minute, zap.NewNop())

	if err := r.Sweep(context.Background()); err != nil {
		t.Fatalf("Sweep error = %v", err)
	}

	calls := engine.snapshot()
	if len(calls) != 1 {
		t.Fatalf("external syncs = %v; want exactly the markdown file", calls)
	}
	if calls[0] != (syncCall{"u2", "scratch", "notes/idea.md", false}) {
		t.Errorf("call = %+v", calls[0])
	}
}

// blockingEngine stalls the first SyncFile call until released, so a
// sweep can be held in flight deliberately.
type blockingEngine struct {
	mockEngine
	started chan struct{}
	release chan struct{}
	once    sync.Once
}

func (b *blockingEngine) SyncFile(context.Context, models.Vault, string) error {
	b.once.Do(func() { close(b.started) })
	<-b.release
	return nil
}

func TestStop_WaitsForInFlightSweep(t *testing.T) {
	engine := &blockingEngine{
		mockEngine: mockEngine{
			vaults:    []models.Vault{{ID: "v1", UserID: "u1", Slug: "main"}},
			diskPaths: map[string][]string{"v1": {"a.md"}},
		},
		started: make(chan struct{}),
		release: make(chan struct{}),
	}
	r := NewReconciler(engine, t.TempDir(), 10*time.Millisecond, zap.NewNop())
	r.Start(context.Background())

	select {
	case <-engine.started:
	case <-time.After(5 * time.Second):
		t.Fatal("sweep never started")
	}

	stopped := make(chan struct{})
	go func() {
		r.Stop()
		close(stopped)
	}()

	select {
	case <-stopped:
		t.Fatal("Stop returned while a sweep was still in flight")
	case <-time.After(100 * time.Millisecond):
	}

	close(engine.release)
	select {
	case <-stopped:
	case <-time.After(5 * time.Second):
		t.Fatal("Stop did not return after the sweep finished")
	}
}

func TestSweep_KnownVaultDirectoryNotAdopted(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "u1", "main")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "a.md"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	engine := &mockEngine{
		vaults: []models.Vault{{ID: "v1", UserID: "u1", Slug: "main"}},
		diskPaths: map[string][]string{
			"v1": {"a.md"},
		},
	}
	r := NewReconciler(engine, root, time.Minute, zap.NewNop())

	if err := r.Sweep(context.Background()); err != nil {
		t.Fatalf("Sweep error = %v", err)
	}
	if calls := engine.snapshot(); len(calls) != 0 {
		t.Errorf("external syncs = %v; known vaults go through SyncFile", calls)
	}
	if len(engine.synced) != 1 {
		t.Errorf("synced = %v; want the vault's own file", engine.synced)
	}
}
