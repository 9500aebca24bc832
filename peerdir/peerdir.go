// Package peerdir implements the peer directory: a single-writer,
// many-reader map from device-id to last-known endpoint and last-seen
// timestamp. Liveness is always derived, never stored.
package peerdir

import (
	"net"
	"strconv"
	"sync"
	"time"
)

// OnlineThreshold is the liveness window: a peer is online iff
// now - last_seen_utc <= OnlineThreshold.
const OnlineThreshold = 7000 * time.Millisecond

// Peer is a snapshot of one known device.
type Peer struct {
	DeviceID      string    `json:"deviceId"`
	DeviceName    string    `json:"deviceName"`
	Address       string    `json:"address"`
	TCPPort       int       `json:"tcpPort"`
	DiscoveryPort int       `json:"discoveryPort"`
	LastSeenUTC   time.Time `json:"lastSeenUtc"`
}

// Online reports whether p was seen within OnlineThreshold of now.
func (p Peer) Online(now time.Time) bool {
	return now.Sub(p.LastSeenUTC) <= OnlineThreshold
}

// Endpoint returns the TCP dial address for this peer.
func (p Peer) Endpoint() string {
	return net.JoinHostPort(p.Address, strconv.Itoa(p.TCPPort))
}

// Directory is the process-wide set of visible peers, keyed by
// device-id. It exclusively owns the peer map.
type Directory struct {
	mu    sync.RWMutex
	peers map[string]Peer
}

// New returns an empty peer directory.
func New() *Directory {
	return &Directory{peers: make(map[string]Peer)}
}

// Upsert creates or refreshes a peer entry. Callers are expected to
// have already applied the discovery self-filter before calling this;
// Upsert itself does not know the local device-id.
func (d *Directory) Upsert(p Peer) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.peers[p.DeviceID] = p
}

// Get returns the peer for deviceID, if known.
func (d *Directory) Get(deviceID string) (Peer, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	p, ok := d.peers[deviceID]
	return p, ok
}

// Snapshot returns a copy of every known peer, consistent at the
// instant of the call, in no particular order.
func (d *Directory) Snapshot() []Peer {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]Peer, 0, len(d.peers))
	for _, p := range d.peers {
		out = append(out, p)
	}
	return out
}

// Remove deletes a peer entry; a UI layer that prunes stale peers goes
// through here. Core code never calls this on its own — an offline
// peer is left in the map, just reported as unreachable by Online.
func (d *Directory) Remove(deviceID string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.peers, deviceID)
}

// Count returns the number of known peers (online or not).
func (d *Directory) Count() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.peers)
}
