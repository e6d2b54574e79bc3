package asr

import (
	"fmt"

	"ptt/internal/config"
)

// New creates the engine selected by cfg.Provider.
func New(cfg config.EngineConfig) (Engine, error) {
	switch cfg.Provider {
	case "http", "":
		return NewHTTPEngine(cfg, nil)
	case "openai":
		return NewOpenAIEngine(cfg, nil), nil
	default:
		return nil, fmt.Errorf("unknown engine provider %q (supported: http, openai)", cfg.Provider)
	}
}
