package controlapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"netshare/logging"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // onlyLocalhost middleware already restricted the caller
	},
}

// handleEventsWS upgrades to a WebSocket and streams notify.Bus events
// to the caller until it disconnects, surfacing the logging
// collaborator's events to a UI layer.
func (s *Server) handleEventsWS(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	ch, cancel := s.bus.Subscribe()
	defer cancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-done:
			return
		case evt, ok := <-ch:
			if !ok {
				return
			}
			if err := conn.WriteJSON(evt); err != nil {
				logging.Default().Debugf("events ws write failed: %v", err)
				return
			}
		}
	}
}
