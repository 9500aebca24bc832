package controlapi

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"netshare/peerdir"
	"netshare/peers"
)

type peerView struct {
	DeviceID      string `json:"deviceId"`
	DeviceName    string `json:"deviceName"`
	Address       string `json:"address"`
	TCPPort       int    `json:"tcpPort"`
	DiscoveryPort int    `json:"discoveryPort"`
	LastSeenUTC   string `json:"lastSeenUtc"`
	Online        bool   `json:"online"`
}

func toPeerView(p peerdir.Peer, now time.Time) peerView {
	return peerView{
		DeviceID:      p.DeviceID,
		DeviceName:    p.DeviceName,
		Address:       p.Address,
		TCPPort:       p.TCPPort,
		DiscoveryPort: p.DiscoveryPort,
		LastSeenUTC:   p.LastSeenUTC.UTC().Format(time.RFC3339Nano),
		Online:        p.Online(now),
	}
}

func (s *Server) handleListPeers(c *gin.Context) {
	now := time.Now()
	snapshot := s.peers.Snapshot()
	out := make([]peerView, 0, len(snapshot))
	for _, p := range snapshot {
		out = append(out, toPeerView(p, now))
	}
	c.JSON(http.StatusOK, gin.H{"peers": out})
}

// handleProbePeer runs the supplemental ICMP reachability probe
// against a peer already present in the directory. It never affects
// the protocol-defined liveness window.
func (s *Server) handleProbePeer(c *gin.Context) {
	deviceID := c.Param("deviceId")
	p, ok := s.peers.Get(deviceID)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown peer"})
		return
	}
	result, err := peers.Probe(p.Address, 2*time.Second)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"reachable":  result.Reachable,
		"rttMs":      result.RTT.Milliseconds(),
		"packetLoss": result.PacketLoss,
	})
}
