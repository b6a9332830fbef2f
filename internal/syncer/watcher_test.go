package syncer

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type syncCall struct {
	userID, slug, docPath string
	removed               bool
}

// mockSync records the convergence calls the watcher dispatches.
type mockSync struct {
	mu    sync.Mutex
	calls []syncCall
}

func (m *mockSync) SyncExternalFile(_ context.Context, userID, slug, docPath string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, syncCall{userID, slug, docPath, false})
	return nil
}

func (m *mockSync) SyncExternalRemove(_ context.Context, userID, slug, docPath string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, syncCall{userID, slug, docPath, true})
	return nil
}

func (m *mockSync) snapshot() []syncCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]syncCall(nil), m.calls...)
}

func TestSplitVaultPath(t *testing.T) {
	tests := []struct {
		name    string
		abs     string
		userID  string
		slug    string
		docPath string
		ok      bool
	}{
		{"top level document", "/data/u1/main/todo.md", "u1", "main", "todo.md", true},
		{"nested document", "/data/u1/main/notes/deep/x.md", "u1", "main", "notes/deep/x.md", true},
		{"vault directory itself", "/data/u1/main", "", "", "", false},
		{"user directory", "/data/u1", "", "", "", false},
		{"outside the root", "/elsewhere/u1/main/a.md", "", "", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			userID, slug, docPath, ok := splitVaultPath("/data", tt.abs)
			if ok != tt.ok {
				t.Fatalf("ok = %v; want %v", ok, tt.ok)
			}
			if userID != tt.userID || slug != tt.slug || docPath != tt.docPath {
				t.Errorf("got (%q, %q, %q); want (%q, %q, %q)",
					userID, slug, docPath, tt.userID, tt.slug, tt.docPath)
			}
		})
	}
}

func startTestWatcher(t *testing.T, root string, engine *mockSync, recent *RecentWrites) *Watcher {
	t.Helper()
	w := NewWatcher(root, engine, recent, 30*time.Millisecond, zap.NewNop())
	require.NoError(t, w.Start(context.Background()))
	t.Cleanup(w.Stop)
	return w
}

func TestWatcher_ExternalWriteDispatched(t *testing.T) {
	root := t.TempDir()
	vaultDir := filepath.Join(root, "u1", "main")
	require.NoError(t, os.MkdirAll(vaultDir, 0o755))

	engine := &mockSync{}
	startTestWatcher(t, root, engine, NewRecentWrites(time.Second))

	require.NoError(t, os.WriteFile(filepath.Join(vaultDir, "note.md"), []byte("# hi"), 0o644))

	assert.Eventually(t, func() bool {
		calls := engine.snapshot()
		return len(calls) == 1 && calls[0] == syncCall{"u1", "main", "note.md", false}
	}, 5*time.Second, 20*time.Millisecond)
}

func TestWatcher_RemoveDispatched(t *testing.T) {
	root := t.TempDir()
	vaultDir := filepath.Join(root, "u1", "main")
	require.NoError(t, os.MkdirAll(vaultDir, 0o755))
	target := filepath.Join(vaultDir, "gone.md")
	require.NoError(t, os.WriteFile(target, []byte("x"), 0o644))

	engine := &mockSync{}
	startTestWatcher(t, root, engine, NewRecentWrites(time.Second))

	require.NoError(t, os.Remove(target))

	assert.Eventually(t, func() bool {
		for _, c := range engine.snapshot() {
			if c.removed && c.docPath == "gone.md" {
				return true
			}
		}
		return false
	}, 5*time.Second, 20*time.Millisecond)
}

func TestWatcher_SelfWriteSuppressed(t *testing.T) {
	root := t.TempDir()
	vaultDir := filepath.Join(root, "u1", "main")
	require.NoError(t, os.MkdirAll(vaultDir, 0o755))

	engine := &mockSync{}
	recent := NewRecentWrites(time.Minute)
	startTestWatcher(t, root, engine, recent)

	target := filepath.Join(vaultDir, "own.md")
	recent.Add(target)
	require.NoError(t, os.WriteFile(target, []byte("self"), 0o644))

	time.Sleep(300 * time.Millisecond)
	assert.Empty(t, engine.snapshot(), "self-written path must not dispatch")
}

func TestWatcher_NewDirectoryPickedUp(t *testing.T) {
	root := t.TempDir()
	vaultDir := filepath.Join(root, "u1", "main")
	require.NoError(t, os.MkdirAll(vaultDir, 0o755))

	engine := &mockSync{}
	startTestWatcher(t, root, engine, NewRecentWrites(time.Second))

	newDir := filepath.Join(vaultDir, "projects")
	require.NoError(t, os.Mkdir(newDir, 0o755))
	// Give the watcher a moment to register the new directory before
	// writing into it.
	time.Sleep(200 * time.Millisecond)
	require.NoError(t, os.WriteFile(filepath.Join(newDir, "plan.md"), []byte("# plan"), 0o644))

	assert.Eventually(t, func() bool {
		for _, c := range engine.snapshot() {
			if !c.removed && c.docPath == "projects/plan.md" {
				return true
			}
		}
		return false
	}, 5*time.Second, 20*time.Millisecond)
}

func TestWatcher_IgnoresNonMarkdownAndHidden(t *testing.T) {
	root := t.TempDir()
	vaultDir := filepath.Join(root, "u1", "main")
	require.NoError(t, os.MkdirAll(vaultDir, 0o755))

	engine := &mockSync{}
	startTestWatcher(t, root, engine, NewRecentWrites(time.Second))

	require.NoError(t, os.WriteFile(filepath.Join(vaultDir, "image.png"), []byte{1, 2}, 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(vaultDir, ".hidden.md"), []byte("x"), 0o644))

	time.Sleep(300 * time.Millisecond)
	assert.Empty(t, engine.snapshot())
}
