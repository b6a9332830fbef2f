// Package pathguard validates caller-supplied relative paths and
// resolves them against a vault root, rejecting traversal and escape
// attempts. Validation happens twice: first by syntax, then by
// verifying the resolved absolute path lies inside the root. Neither
// check alone is trusted to authorize a filesystem access.
package pathguard

import (
	"path"
	"path/filepath"
	"strings"

	"github.com/atinyakov/mdvault/internal/apperrors"
)

// MarkdownExt is the only file extension the vault accepts.
const MarkdownExt = ".md"

// Resolve validates rel as a markdown file path and returns its
// verified absolute location under root. It fails with a
// ValidationError naming the violated rule.
func Resolve(root, rel string) (string, error) {
	if err := checkSyntax(rel, true); err != nil {
		return "", err
	}
	return resolveWithin(root, rel, false)
}

// ResolveDir validates rel as a directory path and returns its
// verified absolute location under root. Empty input means the vault
// root itself.
func ResolveDir(root, rel string) (string, error) {
	if strings.TrimSpace(rel) == "" {
		return filepath.Clean(root), nil
	}
	if err := checkSyntax(rel, false); err != nil {
		return "", err
	}
	return resolveWithin(root, rel, true)
}

// Canonical collapses redundant "." segments in an already-validated
// relative path. Documents are keyed by this form, so spellings like
// "notes/./a.md" and "notes/a.md" name the same row. Only call it
// after validation: cleaning an unvalidated path would mask ".."
// segments instead of rejecting them.
func Canonical(rel string) string {
	return path.Clean(rel)
}

// checkSyntax applies the syntactic rejection rules in order. The rule
// order is part of the contract: callers see the first violation.
func checkSyntax(rel string, wantMarkdown bool) error {
	if strings.TrimSpace(rel) == "" {
		return apperrors.NewValidation(rel, "path is empty")
	}
	if strings.ContainsRune(rel, 0) {
		return apperrors.NewValidation(rel, "path contains a null byte")
	}
	if strings.Contains(rel, `\`) {
		return apperrors.NewValidation(rel, "path contains a backslash")
	}
	if strings.HasPrefix(rel, "/") {
		return apperrors.NewValidation(rel, "path must be relative")
	}
	for _, seg := range strings.Split(rel, "/") {
		if seg == ".." {
			return apperrors.NewValidation(rel, "path contains a parent-directory segment")
		}
		if seg == "" {
			return apperrors.NewValidation(rel, "path contains an empty segment")
		}
	}
	if wantMarkdown && !strings.HasSuffix(rel, MarkdownExt) {
		return apperrors.NewValidation(rel, "path must end in "+MarkdownExt)
	}
	return nil
}

// resolveWithin joins rel onto root and verifies the result stays
// strictly inside root (or equals it, for directories). This second
// check is independent of checkSyntax and defends against any gap in
// the syntactic rules.
func resolveWithin(root, rel string, allowRoot bool) (string, error) {
	rootAbs := filepath.Clean(root)
	abs := filepath.Clean(filepath.Join(rootAbs, filepath.FromSlash(rel)))

	if abs == rootAbs {
		if allowRoot {
			return abs, nil
		}
		return "", apperrors.NewValidation(rel, "path escapes the vault root")
	}
	if !strings.HasPrefix(abs, rootAbs+string(filepath.Separator)) {
		return "", apperrors.NewValidation(rel, "path escapes the vault root")
	}
	return abs, nil
}
