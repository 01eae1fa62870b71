// Package pathutil confines user-supplied file paths to a set of directories.
package pathutil

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ErrOutsideRoot is returned when a path escapes every allowed directory.
var ErrOutsideRoot = errors.New("path is outside allowed directories")

// RedactPath reduces a full path to .../<parent>/<basename> for error messages.
// For example, "/home/user/project/experiments/a.yaml" becomes ".../experiments/a.yaml".
func RedactPath(path string) string {
	if path == "" {
		return ""
	}
	cleaned := filepath.Clean(path)
	parent := filepath.Base(filepath.Dir(cleaned))
	if parent == "." || parent == string(filepath.Separator) {
		return filepath.Base(cleaned)
	}
	return ".../" + parent + "/" + filepath.Base(cleaned)
}

// Resolve joins a relative path onto root and checks that the result stays
// inside one of allowed (root itself when allowed is empty). Symlinks on the
// longest existing prefix are resolved first, so a link inside an allowed
// directory cannot point outside it. It returns the cleaned absolute path.
func Resolve(root, path string, allowed ...string) (string, error) {
	if path == "" {
		return "", fmt.Errorf("path validation failed: path is empty")
	}
	if strings.ContainsRune(path, '\x00') {
		return "", fmt.Errorf("path validation failed: path contains null byte")
	}
	if !filepath.IsAbs(path) {
		path = filepath.Join(root, path)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("path validation failed: %w", err)
	}
	resolved, err := evalExisting(abs)
	if err != nil {
		return "", fmt.Errorf("path validation failed: %w", err)
	}

	if len(allowed) == 0 {
		allowed = []string{root}
	}
	for _, dir := range allowed {
		dirAbs, err := filepath.Abs(dir)
		if err != nil {
			continue
		}
		dirResolved, err := evalExisting(dirAbs)
		if err != nil {
			continue
		}
		if within(resolved, dirResolved) {
			return abs, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrOutsideRoot, RedactPath(abs))
}

// evalExisting resolves symlinks on the deepest existing ancestor of p and
// re-appends the part that does not exist yet.
func evalExisting(p string) (string, error) {
	if resolved, err := filepath.EvalSymlinks(p); err == nil {
		return resolved, nil
	}
	parent := filepath.Dir(p)
	if parent == p {
		return "", fmt.Errorf("cannot resolve %s", RedactPath(p))
	}
	resolvedParent, err := evalExisting(parent)
	if err != nil {
		return "", err
	}
	return filepath.Join(resolvedParent, filepath.Base(p)), nil
}

// within reports whether p equals base or lies below it.
func within(p, base string) bool {
	if p == base {
		return true
	}
	return strings.HasPrefix(p, strings.TrimSuffix(base, string(os.PathSeparator))+string(os.PathSeparator))
}
