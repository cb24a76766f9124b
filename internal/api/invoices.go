package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/dusk-indust/gestor/internal/invoice"
	"github.com/dusk-indust/gestor/internal/store"
	"github.com/gin-gonic/gin"
)

func (s *Server) handleListInvoices(c *gin.Context) {
	f := store.InvoiceFilter{}
	if st := c.Query("status"); st != "" && st != "all" {
		f.Status = store.InvoiceStatus(st)
	}
	if v := c.Query("client_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			fail(c, http.StatusBadRequest, "invalid client_id")
			return
		}
		f.ClientID = id
	}
	list, err := s.deps.Invoices.List(c.Request.Context(), f)
	if err != nil {
		s.invoiceError(c, err)
		return
	}
	ok(c, list, gin.H{"total": len(list)})
}

func (s *Server) handleGetInvoice(c *gin.Context) {
	id, valid := paramID(c)
	if !valid {
		return
	}
	d, err := s.deps.Invoices.Get(c.Request.Context(), id)
	if err != nil {
		s.invoiceError(c, err)
		return
	}
	ok(c, d)
}

func (s *Server) handleCreateInvoice(c *gin.Context) {
	var in invoice.CreateInput
	if err := c.ShouldBindJSON(&in); err != nil {
		fail(c, http.StatusBadRequest, "invalid request body")
		return
	}
	inv, err := s.deps.Invoices.Create(c.Request.Context(), in)
	if err != nil {
		s.invoiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"success": true, "data": inv})
}

func (s *Server) handleUpdateInvoice(c *gin.Context) {
	id, valid := paramID(c)
	if !valid {
		return
	}
	var in invoice.UpdateInput
	if err := c.ShouldBindJSON(&in); err != nil {
		fail(c, http.StatusBadRequest, "invalid request body")
		return
	}
	updated, err := s.deps.Invoices.Update(c.Request.Context(), id, in)
	if err != nil {
		s.invoiceError(c, err)
		return
	}
	msg := "invoice updated"
	if !updated {
		msg = "only draft invoices can be edited; nothing changed"
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "updated": updated, "message": msg})
}

func (s *Server) handleDeleteInvoice(c *gin.Context) {
	id, valid := paramID(c)
	if !valid {
		return
	}
	if err := s.deps.Invoices.Delete(c.Request.Context(), id); err != nil {
		s.invoiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "invoice deleted"})
}

func (s *Server) handleCancelInvoice(c *gin.Context) {
	id, valid := paramID(c)
	if !valid {
		return
	}
	res, err := s.deps.Invoices.Cancel(c.Request.Context(), id)
	if err != nil {
		s.invoiceError(c, err)
		return
	}
	msg := "cancellation requested at Asaas"
	if res.Local {
		msg = "invoice cancelled"
	}
	ok(c, res, gin.H{"message": msg})
}

func (s *Server) handleMunicipalServices(c *gin.Context) {
	list, err := s.deps.Invoices.MunicipalServices(c.Request.Context(), c.Query("descricao"))
	if err != nil {
		s.invoiceError(c, err)
		return
	}
	ok(c, list)
}

func (s *Server) invoiceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, invoice.ErrNotFound):
		fail(c, http.StatusNotFound, "invoice not found")
	case errors.Is(err, invoice.ErrInvalid), errors.Is(err, invoice.ErrNotDeletable):
		fail(c, http.StatusBadRequest, err.Error())
	default:
		s.logger.Error("invoice.request_failed", "path", c.FullPath(), "error", err)
		fail(c, http.StatusInternalServerError, err.Error())
	}
}
