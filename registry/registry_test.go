package registry

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestRegistry(t *testing.T) *Registry {
	t.Helper()
	dir := t.TempDir()
	r, err := Open(filepath.Join(dir, "shares.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = r.Close() })
	return r
}

func TestAddCreatesNewShareWithDerivedName(t *testing.T) {
	r := openTestRegistry(t)
	sh, err := r.Add("/data/Photos", false, "", "")
	require.NoError(t, err)
	assert.Equal(t, "Photos", sh.Name)
	assert.NotEmpty(t, sh.ShareID)

	list, err := r.List()
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, sh.ShareID, list[0].ShareID)
}

func TestAddSamePathUpdatesInPlace(t *testing.T) {
	r := openTestRegistry(t)
	first, err := r.Add("/data/Photos", false, "", "photos")
	require.NoError(t, err)

	second, err := r.Add("/data/Photos", true, "", "photos-renamed")
	require.NoError(t, err)

	assert.Equal(t, first.ShareID, second.ShareID)
	assert.True(t, second.ReadOnly)
	assert.Equal(t, "photos-renamed", second.Name)

	list, err := r.List()
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestAddWithExplicitShareIDUpdatesInPlace(t *testing.T) {
	r := openTestRegistry(t)
	first, err := r.Add("/data/A", false, "", "a")
	require.NoError(t, err)

	updated, err := r.Add("/data/B", true, first.ShareID, "b")
	require.NoError(t, err)
	assert.Equal(t, first.ShareID, updated.ShareID)
	assert.Equal(t, "/data/B", updated.LocalPath)

	list, err := r.List()
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestRemoveAndToggleReadOnly(t *testing.T) {
	r := openTestRegistry(t)
	sh, err := r.Add("/data/C", false, "", "c")
	require.NoError(t, err)

	ok, err := r.ToggleReadOnly(sh.ShareID)
	require.NoError(t, err)
	assert.True(t, ok)

	got, found, err := r.Get(sh.ShareID)
	require.NoError(t, err)
	require.True(t, found)
	assert.True(t, got.ReadOnly)

	ok, err = r.Remove(sh.ShareID)
	require.NoError(t, err)
	assert.True(t, ok)

	_, found, err = r.Get(sh.ShareID)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestRemoveUnknownShareReportsFalse(t *testing.T) {
	r := openTestRegistry(t)
	ok, err := r.Remove("does-not-exist")
	require.NoError(t, err)
	assert.False(t, ok)
}
