package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/dusk-indust/gestor/internal/whatsapp"
	"github.com/gin-gonic/gin"
)

func (s *Server) handleCheckTimeouts(c *gin.Context) {
	res, err := s.deps.Timeouts.Check(c.Request.Context())
	if err != nil {
		s.logger.Error("whatsapp.timeouts_failed", "error", err)
		fail(c, http.StatusInternalServerError, err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"results": res,
		"message": fmt.Sprintf("%d warnings sent, %d conversations closed", res.WarningsSent, res.ConversationsClosed),
	})
}

// handleCronTimeouts forwards the scheduler tick to the public
// check-timeouts endpoint and wraps its answer.
func (s *Server) handleCronTimeouts(c *gin.Context) {
	target := strings.TrimRight(s.deps.PublicURL, "/") + "/whatsapp/check-timeouts"
	req, err := http.NewRequestWithContext(c.Request.Context(), http.MethodGet, target, nil)
	if err != nil {
		fail(c, http.StatusInternalServerError, err.Error())
		return
	}
	resp, err := s.deps.HTTPClient.Do(req)
	if err != nil {
		s.logger.Error("cron.whatsapp_timeouts_failed", "url", target, "error", err)
		fail(c, http.StatusInternalServerError, err.Error())
		return
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		fail(c, http.StatusInternalServerError, err.Error())
		return
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		s.logger.Error("cron.whatsapp_timeouts_failed", "url", target, "status", resp.StatusCode)
		fail(c, http.StatusInternalServerError, fmt.Sprintf("check-timeouts returned HTTP %d", resp.StatusCode))
		return
	}
	var result any
	if err := json.Unmarshal(body, &result); err != nil {
		fail(c, http.StatusInternalServerError, "check-timeouts returned invalid JSON")
		return
	}
	s.logger.Info("cron.whatsapp_timeouts")
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "WhatsApp timeout check executed", "result": result})
}

type sendRequest struct {
	To      string `json:"to"`
	Message string `json:"message"`
}

func (s *Server) handleWhatsAppSend(c *gin.Context) {
	var req sendRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.To == "" || req.Message == "" {
		failError(c, http.StatusBadRequest, "to and message are required")
		return
	}
	res, err := s.deps.WhatsApp.Send(c.Request.Context(), req.To, req.Message)
	if err != nil {
		var apiErr *whatsapp.APIError
		switch {
		case errors.Is(err, whatsapp.ErrNotConfigured):
			failError(c, http.StatusInternalServerError, "WhatsApp credentials not configured")
		case errors.As(err, &apiErr):
			c.JSON(apiErr.StatusCode, gin.H{"error": "failed to send message", "details": apiErr.Body})
		default:
			s.logger.Error("whatsapp.send_failed", "error", err)
			failError(c, http.StatusInternalServerError, err.Error())
		}
		return
	}
	ok(c, res)
}

func (s *Server) handleWhatsAppStatus(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"config":     s.deps.WhatsApp.Status(),
		"webhookUrl": strings.TrimRight(s.deps.PublicURL, "/") + "/whatsapp/webhook",
	})
}
