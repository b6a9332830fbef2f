// Package filestore implements durable, crash-safe file operations for
// a single vault directory. All paths are validated through pathguard
// before any filesystem access. Writes go through a hidden temporary
// sibling file and an atomic rename, so a reader never observes a
// partially-written file.
package filestore

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/natefinch/atomic"

	"github.com/atinyakov/mdvault/internal/apperrors"
	"github.com/atinyakov/mdvault/internal/models"
	"github.com/atinyakov/mdvault/internal/pathguard"
)

// Store performs file operations rooted at one vault directory.
type Store struct {
	// root is the absolute vault directory.
	root string
}

// New creates a Store rooted at the given vault directory.
func New(root string) *Store {
	return &Store{root: filepath.Clean(root)}
}

// Root returns the absolute vault directory.
func (s *Store) Root() string {
	return s.root
}

// Write stores content at the given relative path, creating parent
// directories as needed. The content lands in a temporary sibling file
// first (same directory, so the final rename stays on one filesystem)
// and is renamed over the destination. The temp file is removed on any
// failure. Returns the resolved absolute path.
func (s *Store) Write(rel string, content []byte) (string, error) {
	abs, err := pathguard.Resolve(s.root, rel)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		return "", fmt.Errorf("create parent dirs: %w", err)
	}

	// Dot prefix keeps the artifact out of listings; the uuid suffix
	// makes the name unpredictable.
	tmp := filepath.Join(filepath.Dir(abs), "."+filepath.Base(abs)+"."+uuid.NewString()+".tmp")
	if err := os.WriteFile(tmp, content, 0o644); err != nil {
		_ = os.Remove(tmp)
		return "", fmt.Errorf("write temp file: %w", err)
	}
	if err := atomic.ReplaceFile(tmp, abs); err != nil {
		_ = os.Remove(tmp)
		return "", fmt.Errorf("rename temp file: %w", err)
	}
	return abs, nil
}

// Read returns the content at the given relative path, or a
// NotFoundError if the file does not exist.
func (s *Store) Read(rel string) ([]byte, error) {
	abs, err := pathguard.Resolve(s.root, rel)
	if err != nil {
		return nil, err
	}
	content, err := os.ReadFile(abs)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, apperrors.NewNotFound("file", rel)
		}
		return nil, err
	}
	return content, nil
}

// Stat returns file metadata for the given relative path.
func (s *Store) Stat(rel string) (os.FileInfo, error) {
	abs, err := pathguard.Resolve(s.root, rel)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(abs)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, apperrors.NewNotFound("file", rel)
		}
		return nil, err
	}
	return info, nil
}

// Delete removes the file at the given relative path, then removes any
// directories left empty between it and the vault root. Returns the
// resolved absolute path of the removed file.
func (s *Store) Delete(rel string) (string, error) {
	abs, err := pathguard.Resolve(s.root, rel)
	if err != nil {
		return "", err
	}
	if err := os.Remove(abs); err != nil {
		if os.IsNotExist(err) {
			return "", apperrors.NewNotFound("file", rel)
		}
		return "", err
	}
	s.pruneEmptyDirs(filepath.Dir(abs))
	return abs, nil
}

// pruneEmptyDirs walks upward from dir toward (but not including) the
// vault root, removing each now-empty directory and stopping at the
// first non-empty one.
func (s *Store) pruneEmptyDirs(dir string) {
	for dir != s.root && strings.HasPrefix(dir, s.root+string(filepath.Separator)) {
		entries, err := os.ReadDir(dir)
		if err != nil || len(entries) > 0 {
			return
		}
		if err := os.Remove(dir); err != nil {
			return
		}
		dir = filepath.Dir(dir)
	}
}

// CreateDir creates the directory (and parents) at the given relative
// path and returns its absolute location.
func (s *Store) CreateDir(rel string) (string, error) {
	abs, err := pathguard.ResolveDir(s.root, rel)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return "", fmt.Errorf("create dir: %w", err)
	}
	return abs, nil
}

// Move renames src to dst, creating dst's parent directories and
// pruning empty directories left behind on the source side. When
// overwrite is false and dst already exists, the move fails with a
// ValidationError. Both endpoints must be the same kind of path
// (markdown file or directory). Returns the resolved endpoints.
func (s *Store) Move(src, dst string, overwrite bool) (string, string, error) {
	srcAbs, dstAbs, err := s.resolvePair(src, dst)
	if err != nil {
		return "", "", err
	}
	if _, err := os.Lstat(srcAbs); err != nil {
		if os.IsNotExist(err) {
			return "", "", apperrors.NewNotFound("path", src)
		}
		return "", "", err
	}
	if !overwrite {
		if _, err := os.Lstat(dstAbs); err == nil {
			return "", "", apperrors.NewValidation(dst, "destination already exists")
		}
	}
	if err := os.MkdirAll(filepath.Dir(dstAbs), 0o755); err != nil {
		return "", "", fmt.Errorf("create destination dirs: %w", err)
	}
	if err := os.Rename(srcAbs, dstAbs); err != nil {
		return "", "", fmt.Errorf("rename: %w", err)
	}
	s.pruneEmptyDirs(filepath.Dir(srcAbs))
	return srcAbs, dstAbs, nil
}

// Copy duplicates src at dst. Files are copied byte-for-byte;
// directories are copied recursively without dereferencing symlinks.
// Returns the resolved endpoints.
func (s *Store) Copy(src, dst string, overwrite bool) (string, string, error) {
	srcAbs, dstAbs, err := s.resolvePair(src, dst)
	if err != nil {
		return "", "", err
	}
	info, err := os.Lstat(srcAbs)
	if err != nil {
		if os.IsNotExist(err) {
			return "", "", apperrors.NewNotFound("path", src)
		}
		return "", "", err
	}
	if !overwrite {
		if _, err := os.Lstat(dstAbs); err == nil {
			return "", "", apperrors.NewValidation(dst, "destination already exists")
		}
	}
	if err := os.MkdirAll(filepath.Dir(dstAbs), 0o755); err != nil {
		return "", "", fmt.Errorf("create destination dirs: %w", err)
	}
	if err := copyEntry(srcAbs, dstAbs, info); err != nil {
		return "", "", err
	}
	return srcAbs, dstAbs, nil
}

// resolvePair validates src and dst as the same kind of endpoint:
// markdown-file rules when src names a .md file, directory rules
// otherwise.
func (s *Store) resolvePair(src, dst string) (string, string, error) {
	if strings.HasSuffix(src, pathguard.MarkdownExt) {
		srcAbs, err := pathguard.Resolve(s.root, src)
		if err != nil {
			return "", "", err
		}
		dstAbs, err := pathguard.Resolve(s.root, dst)
		if err != nil {
			return "", "", err
		}
		return srcAbs, dstAbs, nil
	}
	srcAbs, err := pathguard.ResolveDir(s.root, src)
	if err != nil {
		return "", "", err
	}
	if srcAbs == s.root {
		return "", "", apperrors.NewValidation(src, "cannot move or copy the vault root")
	}
	dstAbs, err := pathguard.ResolveDir(s.root, dst)
	if err != nil {
		return "", "", err
	}
	if dstAbs == s.root {
		return "", "", apperrors.NewValidation(dst, "cannot overwrite the vault root")
	}
	return srcAbs, dstAbs, nil
}

// copyEntry copies one filesystem entry, recursing into directories.
func copyEntry(srcAbs, dstAbs string, info os.FileInfo) error {
	switch {
	case info.Mode()&os.ModeSymlink != 0:
		target, err := os.Readlink(srcAbs)
		if err != nil {
			return fmt.Errorf("read symlink: %w", err)
		}
		return os.Symlink(target, dstAbs)
	case info.IsDir():
		if err := os.MkdirAll(dstAbs, info.Mode().Perm()); err != nil {
			return fmt.Errorf("create dir: %w", err)
		}
		entries, err := os.ReadDir(srcAbs)
		if err != nil {
			return fmt.Errorf("read dir: %w", err)
		}
		for _, entry := range entries {
			childInfo, err := entry.Info()
			if err != nil {
				return err
			}
			if err := copyEntry(
				filepath.Join(srcAbs, entry.Name()),
				filepath.Join(dstAbs, entry.Name()),
				childInfo,
			); err != nil {
				return err
			}
		}
		return nil
	default:
		return copyFile(srcAbs, dstAbs, info.Mode().Perm())
	}
}

func copyFile(srcAbs, dstAbs string, perm os.FileMode) error {
	in, err := os.Open(srcAbs)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dstAbs, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, perm)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

// List enumerates all non-hidden entries below the given directory (or
// the vault root when dir is empty), using an explicit worklist so very
// large vaults do not grow the call stack. Entries whose name starts
// with a dot are skipped, which also hides temp-write artifacts.
func (s *Store) List(dir string) ([]models.FileEntry, error) {
	start, err := pathguard.ResolveDir(s.root, dir)
	if err != nil {
		return nil, err
	}
	if _, err := os.Stat(start); err != nil {
		if os.IsNotExist(err) {
			return nil, apperrors.NewNotFound("directory", dir)
		}
		return nil, err
	}

	var result []models.FileEntry
	work := []string{start}
	for len(work) > 0 {
		current := work[len(work)-1]
		work = work[:len(work)-1]

		entries, err := os.ReadDir(current)
		if err != nil {
			return nil, err
		}
		for _, entry := range entries {
			if strings.HasPrefix(entry.Name(), ".") {
				continue
			}
			abs := filepath.Join(current, entry.Name())
			rel, err := filepath.Rel(s.root, abs)
			if err != nil {
				return nil, err
			}
			info, err := entry.Info()
			if err != nil {
				// Entry vanished between ReadDir and Info.
				continue
			}
			fe := models.FileEntry{
				Path:    filepath.ToSlash(rel),
				IsDir:   entry.IsDir(),
				ModTime: info.ModTime(),
			}
			if !entry.IsDir() {
				fe.Size = info.Size()
			}
			result = append(result, fe)
			if entry.IsDir() {
				work = append(work, abs)
			}
		}
	}
	return result, nil
}

// PathExists reports what exists at the given relative path without
// treating absence as an error. Used to validate configuration values
// such as a vault's restricted base directory.
func (s *Store) PathExists(rel string) (models.PathState, error) {
	abs, err := pathguard.ResolveDir(s.root, rel)
	if err != nil {
		return models.PathAbsent, err
	}
	info, err := os.Stat(abs)
	if err != nil {
		if os.IsNotExist(err) {
			return models.PathAbsent, nil
		}
		return models.PathAbsent, err
	}
	if info.IsDir() {
		return models.PathDirectory, nil
	}
	return models.PathFile, nil
}
