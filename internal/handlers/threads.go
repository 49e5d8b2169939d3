package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/loomlabs/loom"
	"github.com/loomlabs/loom/storage"
)

type createThreadRequest struct {
	UserID       string `json:"user_id"`
	Title        string `json:"title"`
	SystemPrompt string `json:"system_prompt"`
	DefaultModel string `json:"default_model"`
}

// CreateThread handles POST /api/threads.
func (h *Handler) CreateThread(w http.ResponseWriter, r *http.Request) {
	var req createThreadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Error(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	thread, err := h.engine.CreateThread(r.Context(), loom.ThreadParams{
		UserID:       req.UserID,
		Title:        req.Title,
		SystemPrompt: req.SystemPrompt,
		DefaultModel: req.DefaultModel,
	})
	if err != nil {
		h.EngineError(w, err)
		return
	}

	h.JSON(w, http.StatusCreated, thread)
}

// GetThread handles GET /api/threads/{id}.
func (h *Handler) GetThread(w http.ResponseWriter, r *http.Request) {
	id, ok := threadID(r)
	if !ok {
		h.Error(w, http.StatusBadRequest, "invalid thread id")
		return
	}

	thread, err := h.engine.GetThread(r.Context(), id)
	if err != nil {
		h.EngineError(w, err)
		return
	}

	h.JSON(w, http.StatusOK, thread)
}

type updateThreadRequest struct {
	Title        *string `json:"title"`
	SystemPrompt *string `json:"system_prompt"`
	DefaultModel *string `json:"default_model"`
	Status       *string `json:"status"`
}

// UpdateThread handles PATCH /api/threads/{id}.
func (h *Handler) UpdateThread(w http.ResponseWriter, r *http.Request) {
	id, ok := threadID(r)
	if !ok {
		h.Error(w, http.StatusBadRequest, "invalid thread id")
		return
	}

	var req updateThreadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Error(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Status != nil && *req.Status != storage.StatusActive && *req.Status != storage.StatusArchived {
		h.Error(w, http.StatusBadRequest, "invalid status")
		return
	}

	thread, err := h.engine.UpdateThread(r.Context(), id, loom.ThreadUpdate{
		Title:        req.Title,
		SystemPrompt: req.SystemPrompt,
		DefaultModel: req.DefaultModel,
		Status:       req.Status,
	})
	if err != nil {
		h.EngineError(w, err)
		return
	}

	h.JSON(w, http.StatusOK, thread)
}

// ListThreads handles GET /api/threads.
func (h *Handler) ListThreads(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	threads, total, err := h.engine.ListThreads(r.Context(), loom.ListThreadsParams{
		UserID: q.Get("user_id"),
		Status: q.Get("status"),
		Limit:  queryInt(q.Get("limit"), 50),
		Offset: queryInt(q.Get("offset"), 0),
	})
	if err != nil {
		h.EngineError(w, err)
		return
	}
	if threads == nil {
		threads = []*storage.Thread{}
	}

	h.JSON(w, http.StatusOK, map[string]interface{}{
		"threads": threads,
		"total":   total,
	})
}

func queryInt(s string, defaultValue int) int {
	if s == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return defaultValue
	}
	return n
}
