// Package safepath implements the safe path resolver: canonicalize a
// protocol-relative path beneath a share root and reject any attempt
// to escape it, including via a symlink.
package safepath

import (
	"errors"
	"fmt"
	"path/filepath"
	"runtime"
	"strings"
)

// ErrTraversal is returned for every path that resolves outside the
// share root. Callers map this to envelope.CodePathTraversal.
var ErrTraversal = errors.New("path traversal")

// caseInsensitive controls whether the root-prefix comparison in
// Resolve is case-sensitive: case-sensitive on POSIX hosts,
// case-insensitive on Windows hosts, selected by build target.
var caseInsensitive = runtime.GOOS == "windows"

// Root wraps a canonicalized share root directory. Construct with
// NewRoot once per share; reuse it for every request against that
// share so the canonicalization cost is paid once, not per request.
type Root struct {
	canonical string // no trailing separator
}

// NewRoot canonicalizes localPath and verifies it names an existing
// directory.
func NewRoot(localPath string) (Root, error) {
	abs, err := filepath.Abs(localPath)
	if err != nil {
		return Root{}, fmt.Errorf("resolve share root: %w", err)
	}
	real, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return Root{}, fmt.Errorf("resolve share root: %w", err)
	}
	info, err := statDir(real)
	if err != nil {
		return Root{}, err
	}
	if !info {
		return Root{}, fmt.Errorf("share root %s is not a directory", real)
	}
	return Root{canonical: filepath.Clean(real)}, nil
}

// Canonical returns the root's canonical absolute path.
func (r Root) Canonical() string { return r.canonical }

// Resolve canonicalizes a protocol-relative path beneath the root and
// verifies it does not escape. On success it returns the real on-disk
// path of the longest existing prefix, with any not-yet-existing
// trailing components appended (symlinks included in the walk are
// required to resolve to something still under the root).
func (r Root) Resolve(relPath string) (string, error) {
	rel := normalizeRelative(relPath)

	joined := filepath.Join(r.canonical, rel)
	joined = filepath.Clean(joined)

	// Reject early if the purely lexical join already escapes — this
	// catches traversal attempts against paths that don't exist yet
	// (e.g. an upload destination), before any filesystem call.
	if !withinRoot(r.canonical, joined) {
		return "", ErrTraversal
	}

	real, err := resolveExistingPrefix(joined)
	if err != nil {
		return "", fmt.Errorf("resolve path: %w", err)
	}
	if !withinRoot(r.canonical, real) {
		return "", ErrTraversal
	}
	return real, nil
}

// normalizeRelative converts backslashes to forward slashes and strips
// a leading separator.
func normalizeRelative(p string) string {
	p = strings.ReplaceAll(p, "\\", "/")
	p = strings.TrimPrefix(p, "/")
	return p
}

// withinRoot reports whether candidate equals root or is nested under
// it, honoring the platform's case-sensitivity choice and guarding
// against the classic "/root2" prefix-confusion bug by requiring the
// path separator immediately after root when candidate is longer.
func withinRoot(root, candidate string) bool {
	r, c := root, candidate
	if caseInsensitive {
		r = strings.ToLower(r)
		c = strings.ToLower(c)
	}
	if c == r {
		return true
	}
	return strings.HasPrefix(c, r+string(filepath.Separator))
}

// resolveExistingPrefix resolves symlinks for as much of joined as
// exists on disk, then re-appends any trailing components that don't
// exist yet (the common case for an upload destination file): an
// existing symlink is always followed and checked, while a
// not-yet-created file can still be addressed.
func resolveExistingPrefix(joined string) (string, error) {
	path := joined
	var trailing []string
	for {
		real, err := filepath.EvalSymlinks(path)
		if err == nil {
			if len(trailing) == 0 {
				return filepath.Clean(real), nil
			}
			return filepath.Join(append([]string{real}, trailing...)...), nil
		}
		if !isNotExist(err) {
			return "", err
		}
		parent := filepath.Dir(path)
		if parent == path {
			// Nothing on the filesystem resolved at all (e.g. a bare
			// drive root); fall back to the lexical join.
			return filepath.Clean(joined), nil
		}
		trailing = append([]string{filepath.Base(path)}, trailing...)
		path = parent
	}
}
