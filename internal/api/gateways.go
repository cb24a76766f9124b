package api

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"strconv"

	"github.com/PaesslerAG/jsonpath"
	"github.com/dusk-indust/gestor/internal/gatewaylog"
	"github.com/dusk-indust/gestor/internal/pagseguro"
	"github.com/dusk-indust/gestor/internal/store"
	"github.com/gin-gonic/gin"
)

const defaultLogLimit = 100

func (s *Server) handlePublicKey(c *gin.Context) {
	key, err := s.deps.PagSeguro.PublicKey(c.Request.Context())
	if err != nil {
		s.logger.Error("pagseguro.public_key_failed", "error", err)
		failError(c, http.StatusInternalServerError, err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"publicKey": key})
}

func (s *Server) handleListLogs(c *gin.Context) {
	f := store.GatewayLogFilter{
		Kind:     store.LogKind(c.Query("kind")),
		ChargeID: c.Query("charge_id"),
		Limit:    queryInt(c, "limit", defaultLogLimit),
		Offset:   queryInt(c, "offset", 0),
	}
	if v := c.Query("boleto_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			fail(c, http.StatusBadRequest, "invalid boleto_id")
			return
		}
		f.BoletoID = id
	}
	logs, err := s.deps.GatewayLog.List(c.Request.Context(), f)
	if err != nil {
		s.logger.Error("gatewaylog.list_failed", "error", err)
		fail(c, http.StatusInternalServerError, err.Error())
		return
	}
	if logs == nil {
		logs = []store.GatewayLog{}
	}

	if c.Query("format") == "txt" {
		var buf bytes.Buffer
		if err := gatewaylog.WriteText(&buf, logs); err != nil {
			fail(c, http.StatusInternalServerError, err.Error())
			return
		}
		c.Header("Content-Disposition", "attachment; filename=pagbank-logs.txt")
		c.Data(http.StatusOK, "text/plain; charset=utf-8", buf.Bytes())
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "total": len(logs), "logs": logs})
}

func (s *Server) handleClearLogs(c *gin.Context) {
	n, err := s.deps.GatewayLog.PurgeOlderThan(c.Request.Context(), queryInt(c, "days", 0))
	if err != nil {
		s.logger.Error("gatewaylog.purge_failed", "error", err)
		fail(c, http.StatusInternalServerError, err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "deleted": n})
}

// handleWebhook stores the raw notification; processing it is left to the
// gateway-specific flows.
func (s *Server) handleWebhook(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		fail(c, http.StatusBadRequest, "unreadable body")
		return
	}
	s.deps.GatewayLog.Record(c.Request.Context(), store.GatewayLog{
		Kind:     store.LogWebhook,
		Gateway:  pagseguro.Gateway,
		Endpoint: c.Request.URL.Path,
		Method:   c.Request.Method,
		Payload:  string(body),
		ChargeID: webhookChargeID(body),
	})
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// webhookChargeID returns the first charge id of a PagBank order
// notification, or "" when the payload carries none.
func webhookChargeID(body []byte) string {
	var doc any
	if err := json.Unmarshal(body, &doc); err != nil {
		return ""
	}
	v, err := jsonpath.Get("$.charges[0].id", doc)
	if err != nil {
		return ""
	}
	id, _ := v.(string)
	return id
}
