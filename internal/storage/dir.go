package storage

import (
	"path"
	"runtime"
	"strings"
)

// caseInsensitiveFS reports whether the host filesystem compares names case-insensitively by default.
var caseInsensitiveFS = runtime.GOOS == "windows" || runtime.GOOS == "darwin"

// normalizeForCompare works on strings only so it can be used for paths that do not exist yet.
func normalizeForCompare(p string) string {
	if p == "" {
		return ""
	}
	s := path.Clean(strings.ReplaceAll(p, "\\", "/"))
	if s != "/" {
		s = strings.TrimRight(s, "/")
	}
	if caseInsensitiveFS {
		s = strings.ToLower(s)
	}
	return s
}

// IsDirectChildOf reports whether p sits immediately inside dir (not in a nested subdirectory).
func IsDirectChildOf(dir, p string) bool {
	if dir == "" || p == "" {
		return false
	}
	parent := normalizeForCompare(path.Dir(strings.ReplaceAll(p, "\\", "/")))
	return normalizeForCompare(dir) == parent
}

// IsWithin reports whether p is strictly below dir at any depth.
func IsWithin(dir, p string) bool {
	if dir == "" || p == "" {
		return false
	}
	d := normalizeForCompare(dir)
	n := normalizeForCompare(p)
	if d == n {
		return false
	}
	if d == "/" {
		return strings.HasPrefix(n, "/")
	}
	return strings.HasPrefix(n, d+"/")
}
