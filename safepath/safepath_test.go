package safepath

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRootWithFile(t *testing.T) (Root, string) {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "hello.txt"), []byte("hi"), 0o644))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub"), 0o755))
	root, err := NewRoot(dir)
	require.NoError(t, err)
	return root, dir
}

func TestResolveWithinRoot(t *testing.T) {
	root, dir := newRootWithFile(t)
	real, err := root.Resolve("hello.txt")
	require.NoError(t, err)
	expected, err := filepath.EvalSymlinks(filepath.Join(dir, "hello.txt"))
	require.NoError(t, err)
	assert.Equal(t, expected, real)
}

func TestResolveNestedSubdir(t *testing.T) {
	root, _ := newRootWithFile(t)
	_, err := root.Resolve("sub/new-upload.bin")
	require.NoError(t, err)
}

func TestResolveRejectsDotDotEscape(t *testing.T) {
	root, _ := newRootWithFile(t)
	_, err := root.Resolve("../../etc/passwd")
	assert.ErrorIs(t, err, ErrTraversal)
}

func TestResolveRejectsSymlinkEscape(t *testing.T) {
	dir := t.TempDir()
	outside := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(outside, "secret.txt"), []byte("secret"), 0o644))
	require.NoError(t, os.Symlink(filepath.Join(outside, "secret.txt"), filepath.Join(dir, "link.txt")))

	root, err := NewRoot(dir)
	require.NoError(t, err)
	_, err = root.Resolve("link.txt")
	assert.ErrorIs(t, err, ErrTraversal)
}

func TestResolveNormalizesBackslashesAndLeadingSlash(t *testing.T) {
	root, _ := newRootWithFile(t)
	_, err := root.Resolve("/hello.txt")
	require.NoError(t, err)
	_, err = root.Resolve(`sub\nested.bin`)
	require.NoError(t, err)
}

func TestNewRootRejectsFile(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "notadir")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o644))
	_, err := NewRoot(file)
	assert.Error(t, err)
}
