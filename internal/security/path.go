// Package security keeps tool-supplied paths inside the configured input root.
package security

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// PathValidator provides security validation for file paths
type PathValidator struct {
	root     string
	realRoot string
}

// NewPathValidator creates a validator for root, which must be an existing directory
func NewPathValidator(root string) (*PathValidator, error) {
	if root == "" {
		return nil, fmt.Errorf("configured directory cannot be empty")
	}

	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve configured directory: %w", err)
	}

	info, err := os.Stat(absRoot)
	if err != nil {
		return nil, fmt.Errorf("cannot access configured directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("configured path is not a directory: %s", root)
	}

	realRoot, err := filepath.EvalSymlinks(absRoot)
	if err != nil {
		return nil, fmt.Errorf("failed to evaluate configured directory: %w", err)
	}

	return &PathValidator{root: filepath.Clean(absRoot), realRoot: filepath.Clean(realRoot)}, nil
}

// Root returns the configured directory
func (v *PathValidator) Root() string {
	return v.root
}

// Resolve returns the absolute form of path, resolving relative paths against the
// root, and fails when the result escapes the root
func (v *PathValidator) Resolve(path string) (string, error) {
	// Remove null bytes
	path = strings.ReplaceAll(path, "\x00", "")
	if strings.TrimSpace(path) == "" {
		return "", fmt.Errorf("path cannot be empty")
	}

	if !filepath.IsAbs(path) {
		path = filepath.Join(v.root, path)
	}
	absPath := filepath.Clean(path)

	if err := v.ValidatePath(absPath); err != nil {
		return "", err
	}
	return absPath, nil
}

// ValidatePath checks that path lies within the root. Symlinks are followed for the
// part of the path that exists, so a link pointing outside the root is rejected.
func (v *PathValidator) ValidatePath(path string) error {
	if path == "" {
		return fmt.Errorf("path cannot be empty")
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("failed to resolve path: %w", err)
	}
	absPath = filepath.Clean(absPath)

	if !within(absPath, v.root) && !within(absPath, v.realRoot) {
		return fmt.Errorf("path is outside configured directory: %s", path)
	}

	realPath, err := evalExisting(absPath)
	if err != nil {
		return fmt.Errorf("path validation failed: %w", err)
	}
	if !within(realPath, v.realRoot) {
		return fmt.Errorf("path is outside configured directory: %s", path)
	}

	return nil
}

// ValidateDirectory checks that dir lies within the root and, if it exists, is a directory
func (v *PathValidator) ValidateDirectory(dir string) error {
	if err := v.ValidatePath(dir); err != nil {
		return err
	}

	info, err := os.Stat(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("directory does not exist: %s", dir)
		}
		return fmt.Errorf("cannot access directory: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("path is not a directory: %s", dir)
	}

	return nil
}

// evalExisting resolves symlinks in the longest existing prefix of path and
// re-appends the missing tail, so output files that do not exist yet can be checked
func evalExisting(path string) (string, error) {
	var tail []string
	current := path
	for {
		resolved, err := filepath.EvalSymlinks(current)
		if err == nil {
			for i := len(tail) - 1; i >= 0; i-- {
				resolved = filepath.Join(resolved, tail[i])
			}
			return filepath.Clean(resolved), nil
		}
		if !os.IsNotExist(err) {
			return "", err
		}

		parent := filepath.Dir(current)
		if parent == current {
			return path, nil
		}
		tail = append(tail, filepath.Base(current))
		current = parent
	}
}

func within(path, dir string) bool {
	if path == dir {
		return true
	}
	if !strings.HasSuffix(dir, string(filepath.Separator)) {
		dir += string(filepath.Separator)
	}
	return strings.HasPrefix(path, dir)
}
