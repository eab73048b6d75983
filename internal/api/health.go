package api

import (
	"context"
	"net/http"
	"time"
)

const (
	pendingWarnThreshold    = 1000
	deadLetterFailThreshold = 100
)

type HealthResponse struct {
	Status  string        `json:"status"`
	Message string        `json:"message,omitempty"`
	Store   string        `json:"store"`
	Outbox  *OutboxHealth `json:"outbox,omitempty"`
}

type OutboxHealth struct {
	Pending    int64 `json:"pending"`
	DeadLetter int64 `json:"dead_letter"`
}

func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	resp := HealthResponse{Status: "ok", Store: "ok"}
	status := http.StatusOK

	if err := h.store.Ping(ctx); err != nil {
		h.logger.Error("store health check failed", "error", err)
		resp.Status = "error"
		resp.Store = "unavailable"
		resp.Message = "Store unavailable"
		h.respondJSON(w, http.StatusServiceUnavailable, resp)
		return
	}

	if h.outbox != nil {
		pending, _ := h.outbox.PendingCount(ctx)
		deadLetter, _ := h.outbox.DeadLetterCount(ctx)
		resp.Outbox = &OutboxHealth{Pending: pending, DeadLetter: deadLetter}

		if pending > pendingWarnThreshold {
			resp.Status = "warning"
			resp.Message = "High number of pending outbox events"
		}
		if deadLetter > deadLetterFailThreshold {
			resp.Status = "error"
			resp.Message = "High number of dead letter events"
			status = http.StatusServiceUnavailable
		}
	}

	h.respondJSON(w, status, resp)
}
