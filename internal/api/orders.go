package api

import (
	"errors"
	"net/http"

	"github.com/dusk-indust/gestor/internal/serviceorder"
	"github.com/dusk-indust/gestor/internal/store"
	"github.com/gin-gonic/gin"
)

func (s *Server) handleNextOrderNumber(c *gin.Context) {
	if c.Query("cliente_id") == "" {
		fail(c, http.StatusBadRequest, "cliente_id is required")
		return
	}
	n, err := s.deps.Orders.Next(c.Request.Context())
	if err != nil {
		s.logger.Error("serviceorder.next_failed", "error", err)
		fail(c, http.StatusInternalServerError, err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "numero": n})
}

type createOrderRequest struct {
	Number      string `json:"number"`
	ClientID    int64  `json:"clientId"`
	Description string `json:"description"`
	Status      string `json:"status"`
}

func (s *Server) handleCreateOrder(c *gin.Context) {
	var req createOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "invalid request body")
		return
	}
	o := &store.ServiceOrder{
		Number:      req.Number,
		ClientID:    req.ClientID,
		Description: req.Description,
		Status:      req.Status,
	}
	if err := s.deps.Orders.Create(c.Request.Context(), o); err != nil {
		if errors.Is(err, serviceorder.ErrClientRequired) {
			fail(c, http.StatusBadRequest, err.Error())
			return
		}
		s.logger.Error("serviceorder.create_failed", "error", err)
		fail(c, http.StatusInternalServerError, err.Error())
		return
	}
	c.JSON(http.StatusCreated, gin.H{"success": true, "data": o})
}
