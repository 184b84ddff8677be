package tree

import (
	"path/filepath"
	"strings"
)

// IsContained reports whether candidate lies strictly below root.
// Both arguments must be absolute. The check is lexical so it is safe to use
// before candidate exists; root itself is not contained.
func IsContained(root, candidate string) bool {
	rel, err := filepath.Rel(root, candidate)
	if err != nil || rel == "" || rel == "." {
		return false
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return false
	}
	// guards volume/mount roots on platforms where Rel can return one
	return !filepath.IsAbs(rel)
}

// Resolve joins logical path segments onto root and cleans the result.
// Leading separators in the segments do not reset to the filesystem root,
// e.g. Resolve("/srv", "/a") is "/srv/a". The result is NOT checked for
// containment; use [IsContained] or [Tree.resolve].
func Resolve(root string, parts ...string) string {
	return filepath.Join(append([]string{root}, parts...)...)
}

// resolve is [Resolve] against the tree root. ok is false when any part
// holds a NUL byte, which no filesystem path can contain.
func (t *Tree) resolve(parts ...string) (abs string, ok bool) {
	for _, p := range parts {
		if strings.ContainsRune(p, 0) {
			return "", false
		}
	}
	return Resolve(t.root, parts...), true
}

// validName reports whether name is usable as a single new path segment
func validName(name string) bool {
	if name == "" || name == "." || name == ".." {
		return false
	}
	return !strings.ContainsRune(name, filepath.Separator) &&
		!strings.ContainsRune(name, '/') &&
		!strings.ContainsRune(name, 0)
}
