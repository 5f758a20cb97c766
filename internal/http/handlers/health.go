package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/hongminglow/loandesk/internal/http/respond"
)

// Pinger reports whether the persistence backend is reachable.
type Pinger func(ctx context.Context) error

// HealthHandler returns uptime, backend mode and backend reachability.
type HealthHandler struct {
	startedAt time.Time
	mode      string
	ping      Pinger
}

// NewHealthHandler creates a health endpoint handler. ping may be nil for
// backends with nothing to check.
func NewHealthHandler(startedAt time.Time, mode string, ping Pinger) *HealthHandler {
	return &HealthHandler{startedAt: startedAt, mode: mode, ping: ping}
}

// Register wires the handler into a ServeMux.
func (h *HealthHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", h.handle)
}

func (h *HealthHandler) handle(w http.ResponseWriter, r *http.Request) {
	body := map[string]string{
		"status":  "ok",
		"backend": h.mode,
		"uptime":  time.Since(h.startedAt).Truncate(time.Second).String(),
	}
	if h.ping != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := h.ping(ctx); err != nil {
			body["status"] = "degraded"
			body["error"] = err.Error()
			respond.JSON(w, http.StatusServiceUnavailable, "backend unreachable", body)
			return
		}
	}
	respond.JSON(w, http.StatusOK, "ok", body)
}
