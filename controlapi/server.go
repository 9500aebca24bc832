// Package controlapi implements the optional local control/status HTTP
// API: a loopback-bound, convenience vehicle for a UI layer to drive
// share/peer/transfer operations without speaking the wire protocol
// directly, built on a gin-based HTTP+WebSocket server.
package controlapi

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gin-gonic/gin"

	"netshare/discovery"
	"netshare/logging"
	"netshare/notify"
	"netshare/peerdir"
	"netshare/peers"
	"netshare/registry"
	"netshare/session"
)

// Server is the loopback HTTP+WebSocket control surface.
type Server struct {
	addr     string
	shares   *registry.Registry
	peers    *peerdir.Directory
	identity session.Identity
	policy   session.Policy
	bus      *notify.Bus
	disc     *discovery.Service

	httpServer *http.Server
	xfers      *transferManager
}

// New constructs a control API server bound to addr (expected
// loopback, e.g. "127.0.0.1:40180").
func New(addr string, shares *registry.Registry, dir *peerdir.Directory, identity session.Identity, policy session.Policy, bus *notify.Bus, disc *discovery.Service) *Server {
	if bus == nil {
		bus = notify.Default
	}
	return &Server{addr: addr, shares: shares, peers: dir, identity: identity, policy: policy, bus: bus, disc: disc, xfers: newTransferManager()}
}

func (s *Server) transfers() *transferManager {
	return s.xfers
}

func (s *Server) router() *gin.Engine {
	if logging.Default().GetLevel() == log.DebugLevel {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(onlyLocalhost())

	r.GET("/healthz", s.handleHealthz)
	r.GET("/shares", s.handleListShares)
	r.POST("/shares", s.handleAddShare)
	r.DELETE("/shares/:id", s.handleRemoveShare)
	r.PATCH("/shares/:id/readonly", s.handleToggleReadOnly)
	r.GET("/shares/:id/qrcode", s.handleShareQRCode)
	r.GET("/peers", s.handleListPeers)
	r.GET("/peers/:deviceId/probe", s.handleProbePeer)
	r.POST("/transfers/download", s.handleStartDownload)
	r.POST("/transfers/upload", s.handleStartUpload)
	r.DELETE("/transfers/:id", s.handleCancelTransfer)
	r.GET("/events", s.handleEventsWS)
	return r
}

// onlyLocalhost rejects any request not originating from loopback:
// this control surface is a local convenience vehicle, never exposed
// on the LAN the way the wire protocol itself is.
func onlyLocalhost() gin.HandlerFunc {
	return func(c *gin.Context) {
		host := c.Request.RemoteAddr
		if ip, _, err := splitHostPort(host); err == nil {
			if !isLoopback(ip) {
				c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "local access only"})
				return
			}
		}
		c.Next()
	}
}

func (s *Server) handleHealthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"ok": true, "deviceId": s.identity.DeviceID, "proto": s.identity.Proto})
}

// Start runs the HTTP server until the context is cancelled.
func (s *Server) Start(ctx context.Context) error {
	s.httpServer = &http.Server{Addr: s.addr, Handler: s.router()}
	errCh := make(chan error, 1)
	go func() {
		logging.Default().Infof("control API listening on %s", s.addr)
		errCh <- s.httpServer.ListenAndServe()
	}()
	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.httpServer.Shutdown(shutdownCtx)
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return fmt.Errorf("control api server: %w", err)
	}
}
