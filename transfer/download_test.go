package transfer

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"netshare/wire"
)

func TestServeAndReceiveDownloadFullFile(t *testing.T) {
	srcDir := t.TempDir()
	srcPath := filepath.Join(srcDir, "payload.bin")
	content := bytes.Repeat([]byte("abcde12345"), 50000) // > one chunk
	require.NoError(t, os.WriteFile(srcPath, content, 0o644))

	_, wantSHA, err := FullFileSHA256(srcPath)
	require.NoError(t, err)

	var pipe bytes.Buffer
	w := wire.NewWriter(&pipe)
	gotServerSHA, err := ServeDownload(w, srcPath, "xfer-1", 0, int64(len(content)))
	require.NoError(t, err)
	assert.Equal(t, wantSHA, gotServerSHA)

	dstDir := t.TempDir()
	dstPath := filepath.Join(dstDir, "downloaded.bin")
	r := wire.NewReader(&pipe)
	gotClientSHA, err := ReceiveDownload(r, dstPath, 0, int64(len(content)))
	require.NoError(t, err)
	assert.Equal(t, wantSHA, gotClientSHA)

	got, err := os.ReadFile(dstPath)
	require.NoError(t, err)
	assert.Equal(t, content, got)
}

func TestServeAndReceiveDownloadResume(t *testing.T) {
	srcDir := t.TempDir()
	srcPath := filepath.Join(srcDir, "payload.bin")
	content := bytes.Repeat([]byte("xyz789"), 40000)
	require.NoError(t, os.WriteFile(srcPath, content, 0o644))

	_, wantSHA, err := FullFileSHA256(srcPath)
	require.NoError(t, err)

	dstDir := t.TempDir()
	dstPath := filepath.Join(dstDir, "downloaded.bin")
	resumeAt := int64(len(content) / 3)
	require.NoError(t, os.WriteFile(dstPath, content[:resumeAt], 0o644))

	var pipe bytes.Buffer
	w := wire.NewWriter(&pipe)
	_, err = ServeDownload(w, srcPath, "xfer-2", resumeAt, int64(len(content)))
	require.NoError(t, err)

	r := wire.NewReader(&pipe)
	gotSHA, err := ReceiveDownload(r, dstPath, resumeAt, int64(len(content)))
	require.NoError(t, err)
	assert.Equal(t, wantSHA, gotSHA)

	got, err := os.ReadFile(dstPath)
	require.NoError(t, err)
	assert.Equal(t, content, got)
}

func TestClampOffset(t *testing.T) {
	assert.Equal(t, int64(0), ClampOffset(-5, 100))
	assert.Equal(t, int64(100), ClampOffset(500, 100))
	assert.Equal(t, int64(50), ClampOffset(50, 100))
}
