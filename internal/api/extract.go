package api

import (
	"net/http"
	"strings"

	"github.com/maltedev/cartsmith/internal/scraper"
)

type ExtractRequest struct {
	URL string `json:"url"`
}

// ExtractProduct runs the extraction pipeline for one URL. Pipeline failures
// are the caller's problem (400); only unexpected errors are 500.
func (h *Handlers) ExtractProduct(w http.ResponseWriter, r *http.Request) {
	var req ExtractRequest
	if err := decodeJSON(r, &req); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	url := strings.TrimSpace(req.URL)
	if url == "" {
		h.respondError(w, http.StatusBadRequest, "URL is required")
		return
	}

	product, err := h.extractor.Extract(r.Context(), url)
	if err != nil {
		kind := scraper.KindOf(err)
		if kind == scraper.KindUnknown {
			h.logger.Error("product extraction failed", "url", url, "error", err)
			h.respondError(w, http.StatusInternalServerError, err.Error())
			return
		}
		h.logger.Info("product extraction rejected", "url", url, "kind", kind, "error", err)
		h.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	h.respondJSON(w, http.StatusOK, product)
}
