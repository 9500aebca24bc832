package controlapi

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"netshare/safepath"
)

type shareView struct {
	ShareID   string `json:"shareId"`
	Name      string `json:"name"`
	LocalPath string `json:"localPath"`
	ReadOnly  bool   `json:"readOnly"`
}

func (s *Server) handleListShares(c *gin.Context) {
	shares, err := s.shares.List()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	out := make([]shareView, 0, len(shares))
	for _, sh := range shares {
		out = append(out, shareView{ShareID: sh.ShareID, Name: sh.Name, LocalPath: sh.LocalPath, ReadOnly: sh.ReadOnly})
	}
	c.JSON(http.StatusOK, gin.H{"shares": out})
}

type addShareRequest struct {
	LocalPath string `json:"localPath" binding:"required"`
	Name      string `json:"name"`
	ReadOnly  bool   `json:"readOnly"`
}

func (s *Server) handleAddShare(c *gin.Context) {
	var req addShareRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	root, err := safepath.NewRoot(req.LocalPath)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "not a directory: " + err.Error()})
		return
	}
	sh, err := s.shares.Add(root.Canonical(), req.ReadOnly, "", req.Name)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	s.bus.Publish(shareEvent("share added", sh.ShareID))
	c.JSON(http.StatusCreated, shareView{ShareID: sh.ShareID, Name: sh.Name, LocalPath: sh.LocalPath, ReadOnly: sh.ReadOnly})
}

func (s *Server) handleRemoveShare(c *gin.Context) {
	id := c.Param("id")
	ok, err := s.shares.Remove(id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown share"})
		return
	}
	s.bus.Publish(shareEvent("share removed", id))
	c.Status(http.StatusNoContent)
}

func (s *Server) handleToggleReadOnly(c *gin.Context) {
	id := c.Param("id")
	ok, err := s.shares.ToggleReadOnly(id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown share"})
		return
	}
	s.bus.Publish(shareEvent("share read-only toggled", id))
	c.Status(http.StatusNoContent)
}
