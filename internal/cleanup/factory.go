package cleanup

import (
	"fmt"

	"github.com/rs/zerolog"

	"ptt/internal/config"
)

// NewCompleter creates the completer selected by cfg.Provider.
func NewCompleter(cfg config.CleanupConfig) (Completer, error) {
	switch cfg.Provider {
	case "ollama", "":
		return NewOpenAICompleter(cfg.Host, cfg.Port, cfg.Model, cfg.APIKey, cfg.ConnectTimeout, cfg.RequestTimeout), nil
	case "anthropic":
		return NewAnthropicCompleter(cfg.APIKey, "", cfg.Model, cfg.ConnectTimeout, cfg.RequestTimeout), nil
	default:
		return nil, fmt.Errorf("unknown cleanup provider %q (supported: ollama, anthropic)", cfg.Provider)
	}
}

// FromConfig returns nil when cleanup is disabled.
func FromConfig(cfg config.CleanupConfig, log zerolog.Logger) (*PostProcessor, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	c, err := NewCompleter(cfg)
	if err != nil {
		return nil, err
	}
	return New(c, cfg, log), nil
}
