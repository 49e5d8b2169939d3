package loom

import (
	"fmt"

	"github.com/loomlabs/loom/catalog"
)

// ResolveModel picks the effective model for a call: the explicit
// override if present, else the thread default, else the process
// default. The winner must exist in the catalog; otherwise the call
// fails with ErrUnknownModel. There is no fallback past an invalid
// explicit choice.
func ResolveModel(override, threadDefault, processDefault string, cat catalog.Catalog) (string, error) {
	model := processDefault
	switch {
	case override != "":
		model = override
	case threadDefault != "":
		model = threadDefault
	}
	if model == "" {
		return "", fmt.Errorf("%w: no model configured", catalog.ErrUnknownModel)
	}
	if !cat.Has(model) {
		return "", fmt.Errorf("%w: %s", catalog.ErrUnknownModel, model)
	}
	return model, nil
}

func (e *Engine) resolveModel(override, threadDefault string) (string, error) {
	return ResolveModel(override, threadDefault, e.cfg.DefaultModel, e.catalog)
}
