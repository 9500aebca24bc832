package controlapi

import (
	"fmt"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"netshare/peerdir"
	"netshare/session"
)

// transferHandle tracks one in-flight client-initiated transfer's state
// so the UI layer can issue cancel(transferId). Byte progress is not
// recorded here.
type transferHandle struct {
	TransferID string
	Direction  string // "download" | "upload"
	State      string // "running" | "done" | "failed" | "cancelled"
	client     *session.Client
}

type transferManager struct {
	mu      sync.Mutex
	entries map[string]*transferHandle
}

func newTransferManager() *transferManager {
	return &transferManager{entries: make(map[string]*transferHandle)}
}

func (m *transferManager) add(h *transferHandle) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[h.TransferID] = h
}

func (m *transferManager) setState(id, state string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if h, ok := m.entries[id]; ok {
		h.State = state
	}
}

func (m *transferManager) cancel(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	h, ok := m.entries[id]
	if !ok || h.client == nil {
		return false
	}
	// Cancellation is cancel-plus-close: closing the TCP connection is
	// the only cancellation mechanism.
	_ = h.client.Close()
	h.State = "cancelled"
	return true
}

type downloadRequest struct {
	DeviceID  string `json:"deviceId" binding:"required"`
	ShareID   string `json:"shareId" binding:"required"`
	Path      string `json:"path" binding:"required"`
	LocalPath string `json:"localPath" binding:"required"`
	Offset    int64  `json:"offset"`
}

func (s *Server) resolvePeerAddr(deviceID string) (peerdir.Peer, error) {
	p, ok := s.peers.Get(deviceID)
	if !ok {
		return peerdir.Peer{}, fmt.Errorf("unknown peer %s", deviceID)
	}
	return p, nil
}

func (s *Server) handleStartDownload(c *gin.Context) {
	var req downloadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	p, err := s.resolvePeerAddr(req.DeviceID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	client, err := session.Dial(p.Endpoint(), s.identity, s.policy.SharedKey)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	transferID := uuid.New().String()
	if err := client.Handshake(uuid.New().String()); err != nil {
		_ = client.Close()
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	handle := &transferHandle{TransferID: transferID, Direction: "download", State: "running", client: client}
	s.transfers().add(handle)

	go func() {
		defer client.Close()
		err := client.Download(uuid.New().String(), transferID, req.ShareID, req.Path, req.LocalPath, req.Offset)
		if err != nil {
			s.transfers().setState(transferID, "failed")
			s.bus.Publish(transferEvent("download failed: "+err.Error(), transferID, 0, 0, "failed"))
			return
		}
		s.transfers().setState(transferID, "done")
		s.bus.Publish(transferEvent("download complete", transferID, 1, 1, "done"))
	}()

	c.JSON(http.StatusAccepted, gin.H{"transferId": transferID})
}

type uploadRequest struct {
	DeviceID  string `json:"deviceId" binding:"required"`
	ShareID   string `json:"shareId" binding:"required"`
	Path      string `json:"path" binding:"required"`
	LocalPath string `json:"localPath" binding:"required"`
}

func (s *Server) handleStartUpload(c *gin.Context) {
	var req uploadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	p, err := s.resolvePeerAddr(req.DeviceID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	client, err := session.Dial(p.Endpoint(), s.identity, s.policy.SharedKey)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	transferID := uuid.New().String()
	if err := client.Handshake(uuid.New().String()); err != nil {
		_ = client.Close()
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	handle := &transferHandle{TransferID: transferID, Direction: "upload", State: "running", client: client}
	s.transfers().add(handle)

	go func() {
		defer client.Close()
		err := client.Upload(uuid.New().String(), transferID, req.ShareID, req.Path, req.LocalPath)
		if err != nil {
			s.transfers().setState(transferID, "failed")
			s.bus.Publish(transferEvent("upload failed: "+err.Error(), transferID, 0, 0, "failed"))
			return
		}
		s.transfers().setState(transferID, "done")
		s.bus.Publish(transferEvent("upload complete", transferID, 1, 1, "done"))
	}()

	c.JSON(http.StatusAccepted, gin.H{"transferId": transferID})
}

func (s *Server) handleCancelTransfer(c *gin.Context) {
	id := c.Param("id")
	if !s.transfers().cancel(id) {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown transfer"})
		return
	}
	c.Status(http.StatusNoContent)
}
