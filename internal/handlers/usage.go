package handlers

import (
	"net/http"
	"time"
)

// UsageSummary handles GET /api/usage/summary.
func (h *Handler) UsageSummary(w http.ResponseWriter, r *http.Request) {
	if h.reporter == nil {
		h.Error(w, http.StatusServiceUnavailable, "usage recording is disabled")
		return
	}

	hours := queryInt(r.URL.Query().Get("hours"), 24)
	since := time.Now().Add(-time.Duration(hours) * time.Hour)

	report, err := h.reporter.Summary(r.Context(), since)
	if err != nil {
		h.Error(w, http.StatusInternalServerError, "failed to build usage summary")
		return
	}

	h.JSON(w, http.StatusOK, report)
}
