package session

import (
	"net"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"netshare/registry"
)

func startTestServer(t *testing.T, policy Policy) (addr string, shares *registry.Registry, shareID string, rootDir string) {
	t.Helper()
	rootDir = t.TempDir()
	dbPath := filepath.Join(t.TempDir(), "shares.db")
	shares, err := registry.Open(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { _ = shares.Close() })

	sh, err := shares.Add(rootDir, false, "", "testshare")
	require.NoError(t, err)

	identity := Identity{DeviceID: "server-1", DeviceName: "server", Proto: "1.0"}
	srv := NewServer(identity, policy, shares, nil)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = ln.Close() })
	go func() { _ = srv.Serve(ln) }()

	return ln.Addr().String(), shares, sh.ShareID, rootDir
}

func dialAndHandshake(t *testing.T, addr string, sharedKey string) *Client {
	t.Helper()
	identity := Identity{DeviceID: "client-1", DeviceName: "client", Proto: "1.0"}
	c, err := Dial(addr, identity, sharedKey)
	require.NoError(t, err)
	require.NoError(t, c.Handshake(uuid.New().String()))
	return c
}

func TestHandshakeOpenMode(t *testing.T) {
	addr, _, _, _ := startTestServer(t, Policy{OpenMode: true})
	c := dialAndHandshake(t, addr, "")
	defer c.Close()
	require.NoError(t, c.Ping(uuid.New().String()))
}

func TestHandshakePSKSuccess(t *testing.T) {
	addr, _, _, _ := startTestServer(t, Policy{SharedKey: "correct-horse"})
	c := dialAndHandshake(t, addr, "correct-horse")
	defer c.Close()
	require.NoError(t, c.Ping(uuid.New().String()))
}

func TestHandshakePSKWrongKeyFails(t *testing.T) {
	addr, _, _, _ := startTestServer(t, Policy{SharedKey: "correct-horse"})
	identity := Identity{DeviceID: "client-1", DeviceName: "client", Proto: "1.0"}
	c, err := Dial(addr, identity, "wrong-key")
	require.NoError(t, err)
	defer c.Close()
	err = c.Handshake(uuid.New().String())
	assert.Error(t, err)
}

func TestHandshakeMissingKeyWhenRequired(t *testing.T) {
	addr, _, _, _ := startTestServer(t, Policy{SharedKey: "correct-horse"})
	identity := Identity{DeviceID: "client-1", DeviceName: "client", Proto: "1.0"}
	c, err := Dial(addr, identity, "")
	require.NoError(t, err)
	defer c.Close()
	err = c.Handshake(uuid.New().String())
	assert.ErrorContains(t, err, "AUTH_REQUIRED")
}

func TestDownloadFullFile(t *testing.T) {
	addr, _, shareID, rootDir := startTestServer(t, Policy{OpenMode: true})
	content := []byte("the quick brown fox jumps over the lazy dog, repeated many times. ")
	require.NoError(t, os.WriteFile(filepath.Join(rootDir, "file.txt"), content, 0o644))

	c := dialAndHandshake(t, addr, "")
	defer c.Close()

	dstDir := t.TempDir()
	dstPath := filepath.Join(dstDir, "file.txt")
	err := c.Download(uuid.New().String(), uuid.New().String(), shareID, "file.txt", dstPath, 0)
	require.NoError(t, err)

	got, err := os.ReadFile(dstPath)
	require.NoError(t, err)
	assert.Equal(t, content, got)
}

func TestUploadToReadOnlyShareRejected(t *testing.T) {
	rootDir := t.TempDir()
	dbPath := filepath.Join(t.TempDir(), "shares.db")
	shares, err := registry.Open(dbPath)
	require.NoError(t, err)
	defer shares.Close()
	sh, err := shares.Add(rootDir, true, "", "readonly")
	require.NoError(t, err)

	identity := Identity{DeviceID: "server-1", DeviceName: "server", Proto: "1.0"}
	srv := NewServer(identity, Policy{OpenMode: true}, shares, nil)
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()
	go func() { _ = srv.Serve(ln) }()

	c := dialAndHandshake(t, ln.Addr().String(), "")
	defer c.Close()

	srcDir := t.TempDir()
	srcPath := filepath.Join(srcDir, "upload.bin")
	require.NoError(t, os.WriteFile(srcPath, []byte("data"), 0o644))

	err = c.Upload(uuid.New().String(), uuid.New().String(), sh.ShareID, "upload.bin", srcPath)
	assert.ErrorContains(t, err, "READ_ONLY")
}

func TestUploadPathTraversalRejected(t *testing.T) {
	addr, _, shareID, _ := startTestServer(t, Policy{OpenMode: true})
	c := dialAndHandshake(t, addr, "")
	defer c.Close()

	srcDir := t.TempDir()
	srcPath := filepath.Join(srcDir, "upload.bin")
	require.NoError(t, os.WriteFile(srcPath, []byte("data"), 0o644))

	err := c.Upload(uuid.New().String(), uuid.New().String(), shareID, "../../etc/passwd", srcPath)
	assert.ErrorContains(t, err, "PATH_TRAVERSAL")
}

func TestListSharesAndDir(t *testing.T) {
	addr, _, shareID, rootDir := startTestServer(t, Policy{OpenMode: true})
	require.NoError(t, os.WriteFile(filepath.Join(rootDir, "a.txt"), []byte("a"), 0o644))

	c := dialAndHandshake(t, addr, "")
	defer c.Close()

	shares, err := c.ListShares(uuid.New().String())
	require.NoError(t, err)
	require.Len(t, shares, 1)
	assert.Equal(t, shareID, shares[0].ShareID)

	entries, err := c.ListDir(uuid.New().String(), shareID, "")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "a.txt", entries[0].Name)
}
