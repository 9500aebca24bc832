package peerdir

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestUpsertAndGet(t *testing.T) {
	d := New()
	p := Peer{DeviceID: "dev-1", DeviceName: "laptop", Address: "192.168.1.10", TCPPort: 40124, LastSeenUTC: time.Now().UTC()}
	d.Upsert(p)

	got, ok := d.Get("dev-1")
	assert.True(t, ok)
	assert.Equal(t, "laptop", got.DeviceName)
	assert.Equal(t, 1, d.Count())
}

func TestUpsertRefreshesExistingEntry(t *testing.T) {
	d := New()
	d.Upsert(Peer{DeviceID: "dev-1", DeviceName: "old-name", LastSeenUTC: time.Now().UTC().Add(-time.Hour)})
	d.Upsert(Peer{DeviceID: "dev-1", DeviceName: "new-name", LastSeenUTC: time.Now().UTC()})

	got, ok := d.Get("dev-1")
	assert.True(t, ok)
	assert.Equal(t, "new-name", got.DeviceName)
	assert.Equal(t, 1, d.Count())
}

func TestOnlineThreshold(t *testing.T) {
	now := time.Now()
	fresh := Peer{LastSeenUTC: now.Add(-1 * time.Second)}
	stale := Peer{LastSeenUTC: now.Add(-10 * time.Second)}

	assert.True(t, fresh.Online(now))
	assert.False(t, stale.Online(now))
}

func TestEndpointJoinsHostPort(t *testing.T) {
	p := Peer{Address: "192.168.1.10", TCPPort: 40124}
	assert.Equal(t, "192.168.1.10:40124", p.Endpoint())
}

func TestRemove(t *testing.T) {
	d := New()
	d.Upsert(Peer{DeviceID: "dev-1"})
	d.Remove("dev-1")
	_, ok := d.Get("dev-1")
	assert.False(t, ok)
	assert.Equal(t, 0, d.Count())
}

func TestSnapshotIsIndependentCopy(t *testing.T) {
	d := New()
	d.Upsert(Peer{DeviceID: "dev-1", DeviceName: "a"})
	snap := d.Snapshot()
	snapLen := len(snap)
	d.Upsert(Peer{DeviceID: "dev-2", DeviceName: "b"})
	assert.Equal(t, 1, snapLen)
	assert.Equal(t, 2, d.Count())
}
