package handlers

import (
	"net/http"

	"github.com/loomlabs/loom/catalog"
)

// ListModels handles GET /api/models.
func (h *Handler) ListModels(w http.ResponseWriter, r *http.Request) {
	cat := h.engine.Catalog()

	models := []catalog.ModelInfo{}
	for _, id := range cat.List() {
		if info, ok := cat.Get(id); ok {
			models = append(models, info)
		}
	}

	h.JSON(w, http.StatusOK, map[string]interface{}{
		"models": models,
		"count":  len(models),
	})
}
