package server

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/smallbiznis/invoicehub/internal/docstore"
	"github.com/smallbiznis/invoicehub/internal/invoice/domain"
)

func (s *Server) listInvoices(c *gin.Context) {
	opts := docstore.ListOptions{
		Status: domain.InvoiceStatus(strings.ToLower(c.Query("status"))),
		Client: c.Query("client"),
		Limit:  intQuery(c, "limit", 50),
		Offset: intQuery(c, "offset", 0),
	}
	if opts.Status != "" && !domain.ValidStatus(opts.Status) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid status filter"})
		return
	}

	invoices := s.mgr.ListInvoices(c.Request.Context(), opts, forceRefresh(c))
	c.JSON(http.StatusOK, gin.H{
		"invoices": invoices,
		"count":    len(invoices),
	})
}

func (s *Server) getInvoice(c *gin.Context) {
	inv := s.mgr.GetInvoice(c.Request.Context(), c.Param("number"), forceRefresh(c))
	if inv == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "invoice not found"})
		return
	}
	c.JSON(http.StatusOK, inv)
}

func (s *Server) searchInvoices(c *gin.Context) {
	query := strings.TrimSpace(c.Query("q"))
	if query == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "query parameter q is required"})
		return
	}

	invoices := s.mgr.SearchInvoices(c.Request.Context(), query, forceRefresh(c))
	c.JSON(http.StatusOK, gin.H{
		"query":    query,
		"invoices": invoices,
		"count":    len(invoices),
	})
}

func (s *Server) getStatistics(c *gin.Context) {
	c.JSON(http.StatusOK, s.mgr.GetStatistics(c.Request.Context(), forceRefresh(c)))
}

func (s *Server) getClientInvoices(c *gin.Context) {
	name := c.Param("name")
	invoices := s.mgr.GetClientInvoices(c.Request.Context(), name, forceRefresh(c))
	c.JSON(http.StatusOK, gin.H{
		"client":   name,
		"invoices": invoices,
		"count":    len(invoices),
	})
}

// createInvoice generates an invoice inline and persists it. Callers
// that do not want to wait submit the same order to POST /jobs instead.
func (s *Server) createInvoice(c *gin.Context) {
	var order domain.OrderDetails
	if err := c.ShouldBindJSON(&order); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx := c.Request.Context()
	inv, err := s.mgr.GenerateInvoice(ctx, order)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	res, err := s.mgr.SaveInvoice(ctx, inv)
	if err != nil {
		s.log.Error("save invoice failed", zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": "failed to save invoice"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"invoice": inv,
		"save":    res,
	})
}

type updateStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

func (s *Server) updateInvoiceStatus(c *gin.Context) {
	var req updateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	status := domain.InvoiceStatus(strings.ToLower(req.Status))
	res, err := s.mgr.UpdateInvoiceStatus(c.Request.Context(), c.Param("number"), status)
	if err != nil {
		switch {
		case errorsIsNotFound(err):
			c.JSON(http.StatusNotFound, gin.H{"error": "invoice not found"})
		case !domain.ValidStatus(status):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		default:
			c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		}
		return
	}
	c.JSON(http.StatusOK, res)
}

func (s *Server) deleteInvoice(c *gin.Context) {
	if err := s.mgr.DeleteInvoice(c.Request.Context(), c.Param("number")); err != nil {
		if errorsIsNotFound(err) {
			c.JSON(http.StatusNotFound, gin.H{"error": "invoice not found"})
			return
		}
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": true})
}

func errorsIsNotFound(err error) bool {
	return errors.Is(err, docstore.ErrNotFound)
}

// forceRefresh reports whether the request asks to bypass the read cache.
func forceRefresh(c *gin.Context) bool {
	switch c.Query("refresh") {
	case "true", "1":
		return true
	}
	return false
}

func intQuery(c *gin.Context, key string, def int) int {
	raw := c.Query(key)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return def
	}
	return n
}
