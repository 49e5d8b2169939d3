package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/loomlabs/loom/collab"
	"github.com/loomlabs/loom/internal/metrics"
	"github.com/loomlabs/loom/llm"
)

// Collaborate handles POST /api/collaborate.
func (h *Handler) Collaborate(w http.ResponseWriter, r *http.Request) {
	var req collab.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Error(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Query == "" {
		h.Error(w, http.StatusBadRequest, "query is required")
		return
	}

	res, err := h.pipeline.Run(r.Context(), req)
	if err != nil {
		var stageErr *collab.StageError
		if errors.As(err, &stageErr) {
			status := http.StatusBadGateway
			if errors.Is(err, llm.ErrRateLimited) {
				status = http.StatusTooManyRequests
			}
			h.JSON(w, status, map[string]string{
				"error": "collaboration failed",
				"stage": string(stageErr.Stage),
			})
			return
		}
		h.Error(w, http.StatusInternalServerError, "internal error")
		return
	}

	complexity := "simple"
	if res.Complexity.IsComplex {
		complexity = "complex"
	}
	metrics.Collaborations.WithLabelValues(complexity).Inc()

	h.JSON(w, http.StatusOK, res)
}

// ListAgents handles GET /api/agents.
func (h *Handler) ListAgents(w http.ResponseWriter, r *http.Request) {
	h.JSON(w, http.StatusOK, map[string]interface{}{
		"agents": h.pipeline.Agents().List(),
	})
}

type updateAgentRequest struct {
	Model string `json:"model"`
}

// UpdateAgent handles PUT /api/agents/{role}. In-flight collaborations
// keep the model they started with; the next run picks up the change.
func (h *Handler) UpdateAgent(w http.ResponseWriter, r *http.Request) {
	role := collab.Role(chi.URLParam(r, "role"))

	var req updateAgentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Error(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Model == "" {
		h.Error(w, http.StatusBadRequest, "model is required")
		return
	}
	if !h.engine.Catalog().Has(req.Model) {
		h.Error(w, http.StatusBadRequest, "unknown model: "+req.Model)
		return
	}

	cfg, err := h.pipeline.Agents().SetModel(role, req.Model)
	if err != nil {
		h.Error(w, http.StatusNotFound, "unknown agent role")
		return
	}

	h.JSON(w, http.StatusOK, cfg)
}
