// Package api exposes the extraction pipeline and the cart store over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/maltedev/cartsmith/internal/scraper"
	"github.com/maltedev/cartsmith/internal/storage"
)

// OutboxStats is implemented by the outbox relay when cart events are enabled.
type OutboxStats interface {
	PendingCount(ctx context.Context) (int64, error)
	DeadLetterCount(ctx context.Context) (int64, error)
}

type Handlers struct {
	extractor scraper.Extractor
	store     storage.Store
	outbox    OutboxStats
	logger    *slog.Logger
}

// NewHandlers wires the handlers. outbox may be nil.
func NewHandlers(extractor scraper.Extractor, store storage.Store, outbox OutboxStats, logger *slog.Logger) *Handlers {
	return &Handlers{
		extractor: extractor,
		store:     store,
		outbox:    outbox,
		logger:    logger.With("component", "api"),
	}
}

type errorResponse struct {
	Message string   `json:"message"`
	Errors  []string `json:"errors,omitempty"`
}

func (h *Handlers) respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

func (h *Handlers) respondError(w http.ResponseWriter, status int, message string, details ...string) {
	h.respondJSON(w, status, errorResponse{Message: message, Errors: details})
}

// respondStoreError maps store errors onto status codes. notFound and
// invalid are the user-facing messages for the two expected failures.
func (h *Handlers) respondStoreError(w http.ResponseWriter, err error, notFound, invalid, failed string) {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		h.respondError(w, http.StatusNotFound, notFound)
	case errors.Is(err, storage.ErrInvalid):
		h.respondError(w, http.StatusBadRequest, invalid, err.Error())
	default:
		h.logger.Error(failed, "error", err)
		h.respondError(w, http.StatusInternalServerError, failed)
	}
}

func decodeJSON(r *http.Request, v any) error {
	return json.NewDecoder(r.Body).Decode(v)
}

// idParam parses a positive integer path parameter.
func idParam(r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id < 1 {
		return 0, false
	}
	return id, true
}
