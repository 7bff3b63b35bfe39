package events

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
)

// Table names exposed on the change feed.
var allowedTables = map[string]bool{
	"approval_requests":         true,
	"finance_cash_transactions": true,
	"finance_cash_balance":      true,
	"finance_expenses":          true,
	"finance_notifications":     true,
	"payment_records":           true,
	"finance_advances":          true,
}

// Handler streams change events to browsers over server-sent events.
type Handler struct {
	client *redis.Client
	logger *slog.Logger
}

// NewHandler constructs the events handler.
func NewHandler(client *redis.Client, logger *slog.Logger) *Handler {
	return &Handler{client: client, logger: logger}
}

// MountRoutes registers the SSE endpoint.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.stream)
}

func (h *Handler) stream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	var tables []string
	for _, t := range strings.Split(r.URL.Query().Get("tables"), ",") {
		t = strings.TrimSpace(t)
		if allowedTables[t] {
			tables = append(tables, t)
		}
	}
	if len(tables) == 0 {
		http.Error(w, "no valid tables requested", http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	flusher.Flush()

	for change := range Subscribe(r.Context(), h.client, h.logger, tables...) {
		payload, err := json.Marshal(change)
		if err != nil {
			h.logger.Warn("encode sse event", slog.Any("error", err))
			continue
		}
		if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", change.Table, payload); err != nil {
			return
		}
		flusher.Flush()
	}
}
