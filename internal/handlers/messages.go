package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/loomlabs/loom"
	"github.com/loomlabs/loom/internal/metrics"
	"github.com/loomlabs/loom/storage"
	"github.com/loomlabs/loom/usage"
)

type sendMessageRequest struct {
	Content     string  `json:"content"`
	Model       string  `json:"model"`
	Temperature float64 `json:"temperature"`
}

type sendMessageResponse struct {
	Message             *storage.Message `json:"message"`
	UserMessage         *storage.Message `json:"user_message"`
	Model               string           `json:"model"`
	Truncated           bool             `json:"truncated"`
	ContextMessages     int              `json:"context_messages"`
	ContextTokens       int              `json:"context_tokens"`
	InputTokens         int              `json:"input_tokens"`
	OutputTokens        int              `json:"output_tokens"`
	SummarizationQueued bool             `json:"summarization_queued"`
}

// SendMessage handles POST /api/threads/{id}/messages.
func (h *Handler) SendMessage(w http.ResponseWriter, r *http.Request) {
	id, ok := threadID(r)
	if !ok {
		h.Error(w, http.StatusBadRequest, "invalid thread id")
		return
	}

	var req sendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Error(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	start := time.Now()
	res, err := h.engine.SendMessage(r.Context(), id, loom.SendParams{
		Content:     req.Content,
		Model:       req.Model,
		Temperature: req.Temperature,
	})
	if err != nil {
		h.EngineError(w, err)
		return
	}

	metrics.MessagesSent.WithLabelValues(res.Model).Inc()
	metrics.LLMCallDuration.WithLabelValues(res.Model, usage.OpMessage).Observe(time.Since(start).Seconds())
	metrics.TokensConsumed.WithLabelValues(res.Model, "input").Add(float64(res.Usage.PromptTokens))
	metrics.TokensConsumed.WithLabelValues(res.Model, "output").Add(float64(res.Usage.CompletionTokens))
	if res.Truncated {
		metrics.ContextTruncations.Inc()
	}

	h.JSON(w, http.StatusOK, sendMessageResponse{
		Message:             res.Message,
		UserMessage:         res.UserMessage,
		Model:               res.Model,
		Truncated:           res.Truncated,
		ContextMessages:     res.ContextMessages,
		ContextTokens:       res.ContextTokens,
		InputTokens:         res.Usage.PromptTokens,
		OutputTokens:        res.Usage.CompletionTokens,
		SummarizationQueued: res.SummarizationQueued,
	})
}

// GetMessages handles GET /api/threads/{id}/messages.
func (h *Handler) GetMessages(w http.ResponseWriter, r *http.Request) {
	id, ok := threadID(r)
	if !ok {
		h.Error(w, http.StatusBadRequest, "invalid thread id")
		return
	}

	q := r.URL.Query()
	msgs, err := h.engine.GetMessages(r.Context(), id, queryInt(q.Get("after_seq"), 0), queryInt(q.Get("limit"), 0))
	if err != nil {
		h.EngineError(w, err)
		return
	}
	if msgs == nil {
		msgs = []*storage.Message{}
	}

	h.JSON(w, http.StatusOK, map[string]interface{}{
		"messages": msgs,
		"count":    len(msgs),
	})
}
