package handlers

import (
	"net/http"
	"time"

	"github.com/loomlabs/loom/internal/metrics"
	"github.com/loomlabs/loom/storage"
	"github.com/loomlabs/loom/summarize"
	"github.com/loomlabs/loom/usage"
)

// ListSummaries handles GET /api/threads/{id}/summaries.
func (h *Handler) ListSummaries(w http.ResponseWriter, r *http.Request) {
	id, ok := threadID(r)
	if !ok {
		h.Error(w, http.StatusBadRequest, "invalid thread id")
		return
	}

	sums, err := h.engine.Summaries(r.Context(), id, queryInt(r.URL.Query().Get("limit"), 0))
	if err != nil {
		h.EngineError(w, err)
		return
	}
	if sums == nil {
		sums = []*storage.Summary{}
	}

	h.JSON(w, http.StatusOK, map[string]interface{}{
		"summaries": sums,
		"count":     len(sums),
	})
}

// GenerateSummary handles POST /api/threads/{id}/summaries.
func (h *Handler) GenerateSummary(w http.ResponseWriter, r *http.Request) {
	id, ok := threadID(r)
	if !ok {
		h.Error(w, http.StatusBadRequest, "invalid thread id")
		return
	}

	start := time.Now()
	sum, err := h.engine.Summarize(r.Context(), id)
	if err != nil {
		metrics.Summarizations.WithLabelValues(summarize.TriggerManual, "error").Inc()
		h.EngineError(w, err)
		return
	}

	metrics.Summarizations.WithLabelValues(summarize.TriggerManual, "success").Inc()
	metrics.LLMCallDuration.WithLabelValues(sum.Model, usage.OpSummarization).Observe(time.Since(start).Seconds())
	h.JSON(w, http.StatusCreated, sum)
}

// LatestSummary handles GET /api/threads/{id}/summaries/latest.
func (h *Handler) LatestSummary(w http.ResponseWriter, r *http.Request) {
	id, ok := threadID(r)
	if !ok {
		h.Error(w, http.StatusBadRequest, "invalid thread id")
		return
	}

	sum, err := h.engine.LatestSummary(r.Context(), id)
	if err != nil {
		h.EngineError(w, err)
		return
	}
	if sum == nil {
		h.Error(w, http.StatusNotFound, "thread has no summary")
		return
	}

	h.JSON(w, http.StatusOK, sum)
}
