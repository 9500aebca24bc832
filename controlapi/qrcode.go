package controlapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/skip2/go-qrcode"
)

const defaultQRSize = 256

// handleShareQRCode renders a PNG QR code encoding this node's device
// id and a given share id ("netshare://<deviceId>/<shareId>"); no
// network address is included.
func (s *Server) handleShareQRCode(c *gin.Context) {
	id := c.Param("id")
	share, ok, err := s.shares.Get(id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown share"})
		return
	}
	payload := "netshare://" + s.identity.DeviceID + "/" + share.ShareID
	png, err := qrcode.Encode(payload, qrcode.Medium, defaultQRSize)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "encode qrcode: " + err.Error()})
		return
	}
	c.Data(http.StatusOK, "image/png", png)
}
