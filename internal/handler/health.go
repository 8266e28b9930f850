package handler

import (
	"net/http"

	"github.com/cabinet-legal/case-messaging/internal/events"
)

// storePinger reports whether the backing store is reachable. The in-memory
// store satisfies it trivially; the postgres repository pings the database.
type storePinger interface {
	Ping() error
}

// HealthHandler handles health check endpoints.
type HealthHandler struct {
	store      storePinger
	natsClient *events.Client
}

// NewHealthHandler creates a new health handler. natsClient may be nil when
// the event bus is disabled.
func NewHealthHandler(store storePinger, natsClient *events.Client) *HealthHandler {
	return &HealthHandler{
		store:      store,
		natsClient: natsClient,
	}
}

// Health handles GET /health
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
	})
}

// Ready handles GET /ready
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	if h.store != nil {
		if err := h.store.Ping(); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status": "not ready",
				"reason": "store unreachable",
			})
			return
		}
	}

	if h.natsClient != nil && !h.natsClient.IsConnected() {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "not ready",
			"reason": "NATS not connected",
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status": "ready",
	})
}
