package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/smallbiznis/invoicehub/internal/invoice/domain"
)

type enqueueRequest struct {
	Order    domain.OrderDetails `json:"order" binding:"required"`
	Priority int                 `json:"priority"`
}

func (s *Server) enqueueJob(c *gin.Context) {
	var req enqueueRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	id, err := s.queue.Enqueue(c.Request.Context(), req.Order, req.Priority)
	if err != nil {
		s.log.Error("enqueue failed", zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": "failed to enqueue job"})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"job_id": id,
		"status": "queued",
	})
}

func (s *Server) getJob(c *gin.Context) {
	job, err := s.queue.GetStatus(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	if job == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "job not found"})
		return
	}
	c.JSON(http.StatusOK, job)
}

func (s *Server) cancelJob(c *gin.Context) {
	id := c.Param("id")
	cancelled, err := s.queue.Cancel(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	if !cancelled {
		c.JSON(http.StatusConflict, gin.H{"error": "job is not queued"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"job_id": id, "cancelled": true})
}

func (s *Server) getJobStats(c *gin.Context) {
	stats, err := s.queue.Stats(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, stats)
}
