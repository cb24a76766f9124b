package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/dusk-indust/gestor/internal/pdfmerge"
	"github.com/gin-gonic/gin"
)

type mergeRequest struct {
	URLs json.RawMessage `json:"urls"`
}

// mergeURLs extracts the urls array. Entries that are not strings become
// empty and are skipped by the merger.
func mergeURLs(raw json.RawMessage) ([]string, bool) {
	var items []any
	if err := json.Unmarshal(raw, &items); err != nil || len(items) == 0 {
		return nil, false
	}
	urls := make([]string, len(items))
	for i, it := range items {
		if s, ok := it.(string); ok {
			urls[i] = s
		}
	}
	return urls, true
}

func (s *Server) handleMergePDFs(c *gin.Context) {
	var req mergeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "urls must be a non-empty array")
		return
	}
	urls, valid := mergeURLs(req.URLs)
	if !valid {
		fail(c, http.StatusBadRequest, "urls must be a non-empty array")
		return
	}

	res, err := s.deps.Merger.Merge(c.Request.Context(), urls)
	if errors.Is(err, pdfmerge.ErrNoDocuments) {
		s.logger.Error("merge.empty", "urls", len(urls), "skipped", res.Skipped)
		fail(c, http.StatusInternalServerError, "no PDF could be loaded from the given URLs")
		return
	}
	if err != nil {
		s.logger.Error("merge.failed", "error", err)
		fail(c, http.StatusInternalServerError, "error merging PDFs: "+err.Error())
		return
	}
	if len(res.Skipped) > 0 {
		s.logger.Warn("merge.partial", "merged", res.Merged, "skipped", res.Skipped)
	}

	c.Header("Content-Disposition", "inline; filename=boletos.pdf")
	c.Header("Cache-Control", "no-cache")
	c.Data(http.StatusOK, "application/pdf", res.PDF)
}
