package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func (s *Server) getStatus(c *gin.Context) {
	c.JSON(http.StatusOK, s.mgr.Status(c.Request.Context()))
}

func (s *Server) refreshStatus(c *gin.Context) {
	services := s.mgr.RefreshAvailability(c.Request.Context())
	c.JSON(http.StatusOK, gin.H{"services": services})
}

func (s *Server) testConnectivity(c *gin.Context) {
	c.JSON(http.StatusOK, s.mgr.TestConnectivity(c.Request.Context()))
}

func (s *Server) getCacheStats(c *gin.Context) {
	c.JSON(http.StatusOK, s.mgr.CacheStats())
}
