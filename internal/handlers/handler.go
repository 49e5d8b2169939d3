package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/loomlabs/loom"
	"github.com/loomlabs/loom/collab"
	"github.com/loomlabs/loom/llm"
	"github.com/loomlabs/loom/summarize"
	"github.com/loomlabs/loom/usage"
)

// UsageReporter is the read side of usage recording. Nil when usage
// persistence is disabled.
type UsageReporter interface {
	Summary(ctx context.Context, since time.Time) (*usage.Report, error)
}

// Handler contains shared dependencies for all HTTP handlers.
type Handler struct {
	engine   *loom.Engine
	pipeline *collab.Pipeline
	reporter UsageReporter
}

// NewHandler creates a new Handler with the given dependencies.
func NewHandler(engine *loom.Engine, pipeline *collab.Pipeline, reporter UsageReporter) *Handler {
	return &Handler{engine: engine, pipeline: pipeline, reporter: reporter}
}

// JSON sends a JSON response with the given status code.
func (h *Handler) JSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// Error sends a JSON error response with the given status code.
func (h *Handler) Error(w http.ResponseWriter, status int, message string) {
	h.JSON(w, status, map[string]string{"error": message})
}

// EngineError maps engine errors to HTTP status codes.
func (h *Handler) EngineError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, loom.ErrThreadNotFound):
		h.Error(w, http.StatusNotFound, "thread not found")
	case errors.Is(err, loom.ErrUnknownModel):
		h.Error(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, loom.ErrEmptyContent):
		h.Error(w, http.StatusBadRequest, "content is required")
	case errors.Is(err, summarize.ErrNoMessages):
		h.Error(w, http.StatusConflict, "no messages to summarize")
	case errors.Is(err, llm.ErrRateLimited):
		h.Error(w, http.StatusTooManyRequests, "upstream rate limited")
	case errors.Is(err, llm.ErrUnauthorized), errors.Is(err, llm.ErrBadRequest), errors.Is(err, llm.ErrEmptyResponse):
		h.Error(w, http.StatusBadGateway, "upstream LLM call failed")
	default:
		h.Error(w, http.StatusInternalServerError, "internal error")
	}
}

// threadID parses the {id} URL parameter.
func threadID(r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	return id, err == nil
}
