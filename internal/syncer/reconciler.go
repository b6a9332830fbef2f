package syncer

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/atinyakov/mdvault/internal/models"
)

// CatalogSync is the slice of the catalog engine the reconciler
// drives: enumerating vaults and converging individual entries.
type CatalogSync interface {
	ExternalSync
	// AllVaults returns every vault in the catalog.
	AllVaults(ctx context.Context) ([]models.Vault, error)
	// CatalogPaths returns the document paths recorded for a vault.
	CatalogPaths(ctx context.Context, v models.Vault) ([]string, error)
	// DiskPaths returns the markdown paths present in the vault directory.
	DiskPaths(ctx context.Context, v models.Vault) ([]string, error)
	// SyncFile converges one entry to its current disk state, dropping
	// the catalog row when the file is gone.
	SyncFile(ctx context.Context, v models.Vault, rel string) error
}

// Reconciler periodically sweeps every vault, converging the catalog
// to the filesystem. It is the safety net behind the watcher: missed
// events, crashes between disk write and row upsert, and edits made
// while the process was down all surface here.
type Reconciler struct {
	engine   CatalogSync
	dataRoot string
	interval time.Duration
	log      *zap.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewReconciler constructs a reconciler sweeping at the given interval.
func NewReconciler(engine CatalogSync, dataRoot string, interval time.Duration, log *zap.Logger) *Reconciler {
	return &Reconciler{engine: engine, dataRoot: dataRoot, interval: interval, log: log}
}

// Start runs periodic sweeps until ctx is cancelled or Stop is called.
func (r *Reconciler) Start(ctx context.Context) {
	ctx, r.cancel = context.WithCancel(ctx)
	ticker := time.NewTicker(r.interval)
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := r.Sweep(ctx); err != nil {
					r.log.Error("reconcile sweep failed", zap.Error(err))
				}
			}
		}
	}()
}

// Stop cancels the sweep loop and waits for an in-flight sweep to
// finish. The catalog must stay reachable until Stop returns.
func (r *Reconciler) Stop() {
	if r.cancel != nil {
		r.cancel()
	}
	r.wg.Wait()
}

// Sweep converges every known vault and adopts vault directories that
// exist on disk without a catalog row. Per-entry failures are logged
// and skipped so one bad file cannot stall the rest of the sweep.
func (r *Reconciler) Sweep(ctx context.Context) error {
	vaults, err := r.engine.AllVaults(ctx)
	if err != nil {
		return err
	}
	known := make(map[string]bool, len(vaults))
	for _, v := range vaults {
		known[v.UserID+"/"+v.Slug] = true
		r.sweepVault(ctx, v)
	}
	return r.adoptOrphanDirs(ctx, known)
}

// sweepVault converges one vault: every path present on disk or in the
// catalog is re-synced, which upserts new or changed files and drops
// rows whose file is gone.
func (r *Reconciler) sweepVault(ctx context.Context, v models.Vault) {
	catalogPaths, err := r.engine.CatalogPaths(ctx, v)
	if err != nil {
		r.log.Error("failed to list catalog paths", zap.String("vault", v.ID), zap.Error(err))
		return
	}
	diskPaths, err := r.engine.DiskPaths(ctx, v)
	if err != nil {
		r.log.Error("failed to list disk paths", zap.String("vault", v.ID), zap.Error(err))
		return
	}

	seen := make(map[string]bool, len(catalogPaths)+len(diskPaths))
	synced := 0
	for _, rel := range append(diskPaths, catalogPaths...) {
		if seen[rel] {
			continue
		}
		seen[rel] = true
		if err := r.engine.SyncFile(ctx, v, rel); err != nil {
			r.log.Error("failed to reconcile entry",
				zap.String("vault", v.ID),
				zap.String("path", rel),
				zap.Error(err),
			)
			continue
		}
		synced++
	}
	if synced > 0 {
		r.log.Debug("vault swept", zap.String("vault", v.ID), zap.Int("entries", synced))
	}
}

// adoptOrphanDirs scans <dataRoot>/<user>/<slug> directories that have
// no vault row and syncs their markdown files, which creates the vault
// on demand.
func (r *Reconciler) adoptOrphanDirs(ctx context.Context, known map[string]bool) error {
	users, err := os.ReadDir(r.dataRoot)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	for _, user := range users {
		if !user.IsDir() || strings.HasPrefix(user.Name(), ".") {
			continue
		}
		slugs, err := os.ReadDir(filepath.Join(r.dataRoot, user.Name()))
		if err != nil {
			r.log.Error("failed to scan user directory", zap.String("user", user.Name()), zap.Error(err))
			continue
		}
		for _, slug := range slugs {
			if !slug.IsDir() || strings.HasPrefix(slug.Name(), ".") {
				continue
			}
			if known[user.Name()+"/"+slug.Name()] {
				continue
			}
			r.adoptVaultDir(ctx, user.Name(), slug.Name())
		}
	}
	return nil
}

func (r *Reconciler) adoptVaultDir(ctx context.Context, userID, slug string) {
	dir := filepath.Join(r.dataRoot, userID, slug)
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if strings.HasPrefix(d.Name(), ".") && path != dir {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() || !strings.HasSuffix(d.Name(), ".md") {
			return nil
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		return r.engine.SyncExternalFile(ctx, userID, slug, filepath.ToSlash(rel))
	})
	if err != nil {
		r.log.Error("failed to adopt vault directory",
			zap.String("user", userID),
			zap.String("vault", slug),
			zap.Error(err),
		)
		return
	}
	r.log.Info("adopted vault directory", zap.String("user", userID), zap.String("vault", slug))
}
