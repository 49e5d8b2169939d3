package handlers

import (
	"net/http"
	"time"

	"github.com/loomlabs/loom"
)

// Health handles GET /health.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	h.JSON(w, http.StatusOK, map[string]interface{}{
		"status":  "ok",
		"version": loom.Version,
		"time":    time.Now().UTC().Format(time.RFC3339),
	})
}
