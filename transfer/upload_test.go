package transfer

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"netshare/envelope"
	"netshare/wire"
)

func writeFileEnd(t *testing.T, w *wire.Writer, size int64, sha string) {
	t.Helper()
	end := envelope.FileEnd{
		Header:     envelope.NewOK("FILE_END", "req-1"),
		TransferID: "xfer",
		File:       &envelope.FileInfo{Size: size, SHA256: sha},
	}
	b, err := envelope.Encode(end)
	require.NoError(t, err)
	require.NoError(t, w.WriteFrame(wire.KindJSON, b))
}

func TestSendAndReceiveUploadFullFile(t *testing.T) {
	srcDir := t.TempDir()
	srcPath := filepath.Join(srcDir, "local.bin")
	content := bytes.Repeat([]byte("upload-payload-"), 20000)
	require.NoError(t, os.WriteFile(srcPath, content, 0o644))

	totalSize, wantSHA, err := FullFileSHA256(srcPath)
	require.NoError(t, err)

	var pipe bytes.Buffer
	w := wire.NewWriter(&pipe)
	require.NoError(t, SendUpload(w, srcPath, "xfer", 0, totalSize))
	writeFileEnd(t, w, totalSize, wantSHA)

	dstDir := t.TempDir()
	dstPath := filepath.Join(dstDir, "received.bin")
	r := wire.NewReader(&pipe)
	gotSHA, endPayload, err := ReceiveUpload(r, dstPath, 0, totalSize)
	require.NoError(t, err)
	assert.Equal(t, wantSHA, gotSHA)
	assert.NotEmpty(t, endPayload)

	got, err := os.ReadFile(dstPath)
	require.NoError(t, err)
	assert.Equal(t, content, got)
}

func TestReceiveUploadOvershootRejected(t *testing.T) {
	srcDir := t.TempDir()
	srcPath := filepath.Join(srcDir, "local.bin")
	content := bytes.Repeat([]byte("z"), ChunkSize+1000)
	require.NoError(t, os.WriteFile(srcPath, content, 0o644))

	var pipe bytes.Buffer
	w := wire.NewWriter(&pipe)
	// Declare a total smaller than what will actually be sent.
	declaredTotal := int64(len(content)) - 1
	require.NoError(t, SendUpload(w, srcPath, "xfer", 0, int64(len(content))))

	dstDir := t.TempDir()
	dstPath := filepath.Join(dstDir, "received.bin")
	r := wire.NewReader(&pipe)
	_, _, err := ReceiveUpload(r, dstPath, 0, declaredTotal)
	assert.ErrorIs(t, err, ErrOvershoot)
}

func TestResumeOffset(t *testing.T) {
	assert.Equal(t, int64(500), ResumeOffset(500, 1000))
	assert.Equal(t, int64(0), ResumeOffset(1500, 1000))
	assert.Equal(t, int64(1000), ResumeOffset(1000, 1000))
}
