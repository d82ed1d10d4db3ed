// Package pathutil provides path validation utilities for securing file
// operations against the batch directory tree.
package pathutil

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// RedactPath reduces a full path to .../<parent>/<basename> for safe error messages.
// For example, "/data/sweeps/foraging/manifest.yaml" becomes ".../foraging/manifest.yaml".
func RedactPath(path string) string {
	if path == "" {
		return ""
	}
	cleaned := filepath.Clean(path)
	dir := filepath.Dir(cleaned)
	base := filepath.Base(cleaned)
	parent := filepath.Base(dir)
	if parent == "." || parent == string(filepath.Separator) {
		return base
	}
	return ".../" + parent + "/" + base
}

// ValidatePath checks that a derived file path stays inside the batch root.
// The scaffolder and collator run every path they compose through this before
// writing, so a malformed cell or file name can never escape the root.
// Symlinked ancestors are resolved on both sides before comparison; the file
// itself may not exist yet.
func ValidatePath(path, root string) error {
	if path == "" {
		return fmt.Errorf("path validation failed: path is empty")
	}
	if root == "" {
		return fmt.Errorf("path validation failed: batch root is empty")
	}

	// Null bytes are a common injection vector.
	if strings.ContainsRune(path, '\x00') {
		return fmt.Errorf("path validation failed: path contains null byte")
	}

	resolvedPath, err := resolveAbs(path)
	if err != nil {
		return fmt.Errorf("path validation failed: %w", err)
	}
	resolvedRoot, err := resolveAbs(root)
	if err != nil {
		return fmt.Errorf("path validation failed: resolving batch root: %w", err)
	}

	if !isSubpath(resolvedPath, resolvedRoot) {
		return fmt.Errorf("path validation failed: %q is outside the batch root", RedactPath(resolvedPath))
	}
	return nil
}

// resolveAbs makes a path absolute and resolves symlinks on its deepest
// existing ancestor, so a directory inside the tree that is really a symlink
// pointing elsewhere cannot smuggle a path outside.
func resolveAbs(path string) (string, error) {
	abs, err := filepath.Abs(filepath.Clean(path))
	if err != nil {
		return "", fmt.Errorf("cannot resolve absolute path: %w", err)
	}
	resolvedDir, err := resolveExistingParent(filepath.Dir(abs))
	if err != nil {
		return "", err
	}
	return filepath.Join(resolvedDir, filepath.Base(abs)), nil
}

// resolveExistingParent walks up the directory tree to find the deepest existing
// ancestor, resolves symlinks on it, then re-appends the non-existent tail.
// This handles cases where the target file or some parent directories don't exist yet.
func resolveExistingParent(dir string) (string, error) {
	// Try to resolve the full path first
	resolved, err := filepath.EvalSymlinks(dir)
	if err == nil {
		return resolved, nil
	}

	// Walk up until we find an existing directory
	parent := filepath.Dir(dir)
	if parent == dir {
		// We've hit the root and it doesn't exist -- give up
		return "", fmt.Errorf("cannot resolve path: %s", RedactPath(dir))
	}

	resolvedParent, err := resolveExistingParent(parent)
	if err != nil {
		return "", err
	}

	return filepath.Join(resolvedParent, filepath.Base(dir)), nil
}

// isSubpath checks whether path is equal to or a subdirectory of base.
func isSubpath(path, base string) bool {
	if path == base {
		return true
	}
	// Ensure base ends with separator so "/tmp/foo" doesn't match "/tmp/foobar"
	prefix := base + string(os.PathSeparator)
	return strings.HasPrefix(path, prefix)
}
