package api

import (
	"errors"
	"io"
	"math"
	"net/http"

	"github.com/dusk-indust/gestor/internal/boleto"
	"github.com/dusk-indust/gestor/internal/store"
	"github.com/gin-gonic/gin"
)

func (s *Server) handleListBoletos(c *gin.Context) {
	list, err := s.deps.Boletos.List(c.Request.Context(), store.BoletoFilter{
		Number:       c.Query("numero"),
		NumberPrefix: c.Query("numero_base"),
		Status:       store.BoletoStatus(c.Query("status")),
	})
	if err != nil {
		s.logger.Error("boleto.list_failed", "error", err)
		fail(c, http.StatusInternalServerError, err.Error())
		return
	}
	ok(c, list, gin.H{"total": len(list)})
}

func (s *Server) handleCreateBoleto(c *gin.Context) {
	var b store.Boleto
	if err := c.ShouldBindJSON(&b); err != nil {
		fail(c, http.StatusBadRequest, "invalid request body")
		return
	}
	b.ID = 0
	if err := s.deps.Boletos.Create(c.Request.Context(), &b); err != nil {
		s.boletoError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"success": true, "data": b})
}

func (s *Server) handleStatusByInvoice(c *gin.Context) {
	status, err := s.deps.Boletos.StatusByInvoice(c.Request.Context())
	if err != nil {
		s.logger.Error("boleto.status_by_invoice_failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": err.Error(), "data": gin.H{}})
		return
	}
	ok(c, status)
}

type markPaidRequest struct {
	Date   string  `json:"data_pagamento"`
	Amount float64 `json:"valor_pago"` // reais
}

func (s *Server) handleMarkPaid(c *gin.Context) {
	id, valid := paramID(c)
	if !valid {
		return
	}
	var req markPaidRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		fail(c, http.StatusBadRequest, "invalid request body")
		return
	}
	res, err := s.deps.Boletos.MarkPaid(c.Request.Context(), id, boleto.Payment{
		Date:        req.Date,
		AmountCents: int64(math.Round(req.Amount * 100)),
	})
	if err != nil {
		s.boletoError(c, err)
		return
	}
	ok(c, res, gin.H{"message": "boleto marked as paid"})
}

func (s *Server) handleCheckDueDates(c *gin.Context) {
	res, err := s.deps.Boletos.SendReminders(c.Request.Context())
	if err != nil {
		s.logger.Error("boleto.reminders_failed", "error", err)
		fail(c, http.StatusInternalServerError, err.Error())
		return
	}
	ok(c, res)
}

func (s *Server) boletoError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, boleto.ErrNotFound):
		fail(c, http.StatusNotFound, "boleto not found")
	case errors.Is(err, boleto.ErrInvalid):
		fail(c, http.StatusBadRequest, err.Error())
	default:
		s.logger.Error("boleto.request_failed", "path", c.FullPath(), "error", err)
		fail(c, http.StatusInternalServerError, err.Error())
	}
}
