package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/render"

	"keyserve/internal/license"
)

// HealthHandler reports process and store liveness.
type HealthHandler struct {
	store  license.Store
	logger *slog.Logger
}

// NewHealthHandler creates a new health handler.
func NewHealthHandler(store license.Store, logger *slog.Logger) *HealthHandler {
	return &HealthHandler{
		store:  store,
		logger: logger.With(slog.String("handler", "health")),
	}
}

// HealthResponse is the wire shape for GET /healthz.
type HealthResponse struct {
	Status    string    `json:"status"`
	Store     string    `json:"store"`
	Timestamp time.Time `json:"timestamp"`
}

// Health handles GET /healthz. A failing store ping degrades the status to
// HTTP 503 without exposing the underlying error.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	resp := HealthResponse{Status: "OK", Store: "up", Timestamp: time.Now().UTC()}
	if err := h.store.Ping(ctx); err != nil {
		h.logger.ErrorContext(ctx, "store ping failed", slog.String("error", err.Error()))
		resp.Status = "DEGRADED"
		resp.Store = "down"
		render.Status(r, http.StatusServiceUnavailable)
	}

	render.JSON(w, r, resp)
}
