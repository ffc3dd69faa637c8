package filesystem

import (
	"fmt"
	"path"
	"strings"
)

// Root is the path of the filesystem root.
const Root = "/"

// CleanPath validates a client supplied path and returns its canonical
// absolute form.
//
// Rules:
//   - empty input is the root
//   - empty and "." segments are dropped, so "a//b/./c" becomes "/a/b/c"
//   - ".." removes the previous segment; a ".." with nothing left to remove
//     would climb above the root and is rejected
//   - NUL bytes and backslashes are rejected
//
// All errors wrap ErrInvalidPath.
func CleanPath(p string) (string, error) {
	if strings.ContainsRune(p, 0) {
		return "", fmt.Errorf("path contains NUL byte: %w", ErrInvalidPath)
	}
	if strings.ContainsRune(p, '\\') {
		return "", fmt.Errorf("path %q contains a backslash: %w", p, ErrInvalidPath)
	}

	segments := make([]string, 0, strings.Count(p, "/")+1)
	for _, seg := range strings.Split(p, "/") {
		switch seg {
		case "", ".":
			continue
		case "..":
			if len(segments) == 0 {
				return "", fmt.Errorf("path %q escapes the root: %w", p, ErrInvalidPath)
			}
			segments = segments[:len(segments)-1]
		default:
			segments = append(segments, seg)
		}
	}

	return Root + strings.Join(segments, "/"), nil
}

// IsRoot reports whether a clean path is the root.
func IsRoot(p string) bool {
	return p == Root
}

// Parent returns the parent of a clean path. The parent of the root is the root.
func Parent(p string) string {
	return path.Dir(p)
}

// Base returns the last segment of a clean path, "" for the root.
func Base(p string) string {
	if IsRoot(p) {
		return ""
	}
	return path.Base(p)
}

// Join joins a clean directory and a name into a clean path.
func Join(dir, name string) string {
	return path.Join(dir, name)
}
