// Package pathutil keeps user-supplied file paths inside a known directory
// and shortens paths for error messages.
package pathutil

import (
	"fmt"
	"path/filepath"
	"strings"
)

// RedactPath reduces a full path to .../<parent>/<basename> for safe error messages.
// For example, "/home/user/project/.streamsim/config.yaml" becomes
// ".../.streamsim/config.yaml".
func RedactPath(path string) string {
	if path == "" {
		return ""
	}
	cleaned := filepath.Clean(path)
	parent := filepath.Base(filepath.Dir(cleaned))
	base := filepath.Base(cleaned)
	if parent == "." || parent == string(filepath.Separator) {
		return base
	}
	return ".../" + parent + "/" + base
}

// Within resolves name against dir and fails unless the result stays inside
// dir once symlinks are followed. A bare file name is joined onto dir; any
// other name is taken as given.
func Within(dir, name string) (string, error) {
	if name == "" || strings.ContainsRune(name, '\x00') {
		return "", fmt.Errorf("invalid path %q", name)
	}
	path := name
	if filepath.Base(name) == name {
		path = filepath.Join(dir, name)
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("resolving %s: %w", RedactPath(path), err)
	}
	root, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("resolving %s: %w", RedactPath(dir), err)
	}

	rel, err := filepath.Rel(resolve(root), resolve(abs))
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%s is outside %s", RedactPath(abs), RedactPath(root))
	}
	return path, nil
}

// resolve follows symlinks on the deepest existing ancestor of path and
// re-appends the part that does not exist yet.
func resolve(path string) string {
	if r, err := filepath.EvalSymlinks(path); err == nil {
		return r
	}
	parent := filepath.Dir(path)
	if parent == path {
		return path
	}
	return filepath.Join(resolve(parent), filepath.Base(path))
}
