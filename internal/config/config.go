package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// DefaultCleanupPrompt is the instruction sent ahead of every transcript when
// cleanup is enabled and no override is configured.
const DefaultCleanupPrompt = "Clean up this voice transcript for use as an AI coding prompt. " +
	"Remove filler words (um, uh, like, you know) and false starts. " +
	"Fix grammar and punctuation. If the speaker corrected themselves, keep only the correction. " +
	"Preserve technical terms and abbreviations exactly as spoken (e.g., API, CLI, async, stdin). " +
	"Preserve the speaker's wording. Only restructure if the original is genuinely unclear. " +
	"Output only the cleaned text."

// Config holds configurable parameters.
type Config struct {
	Hotkey       string        `mapstructure:"hotkey" validate:"required"`
	CancelKey    string        `mapstructure:"cancel_key"`
	OutputMode   string        `mapstructure:"output_mode" validate:"oneof=typing clipboard both"`
	Typing       TypingConfig  `mapstructure:"typing"`
	Audio        AudioConfig   `mapstructure:"audio"`
	Engine       EngineConfig  `mapstructure:"engine"`
	Cleanup      CleanupConfig `mapstructure:"cleanup"`
	CacheDir     string        `mapstructure:"cache_dir"`
	KeepCache    bool          `mapstructure:"keep_cache"`
	Notification bool          `mapstructure:"notification"`
	Log          LogConfig     `mapstructure:"log"`
}

// TypingConfig selects how text is injected into the focused window.
type TypingConfig struct {
	Method  string `mapstructure:"method" validate:"oneof=command paste"`
	Command string `mapstructure:"command"`
}

// AudioConfig controls capture and the canonical artifact.
type AudioConfig struct {
	SampleRate   int           `mapstructure:"sample_rate" validate:"gt=0"`
	SampleFormat string        `mapstructure:"sample_format" validate:"oneof=f32 s16 s32"`
	Channels     int           `mapstructure:"channels" validate:"gte=0,lte=8"`
	DrainDelay   time.Duration `mapstructure:"drain_delay" validate:"gte=0"`
	GraceDelay   time.Duration `mapstructure:"grace_delay" validate:"gte=0"`
}

// EngineConfig configures the speech-to-text engine.
type EngineConfig struct {
	Provider       string        `mapstructure:"provider" validate:"oneof=http openai"`
	Endpoint       string        `mapstructure:"endpoint"`
	Token          string        `mapstructure:"token"`
	Model          string        `mapstructure:"model"`
	Language       string        `mapstructure:"language"`
	Prompt         string        `mapstructure:"prompt"`
	TextPath       string        `mapstructure:"text_path"`
	ExtraConfig    string        `mapstructure:"extra_config"`
	RequestTimeout time.Duration `mapstructure:"request_timeout" validate:"gt=0"`
	EnableHTTP2    bool          `mapstructure:"enable_http2"`
	VerifySSL      bool          `mapstructure:"verify_ssl"`
}

// CleanupConfig configures the optional language-model rewrite step.
type CleanupConfig struct {
	Enabled        bool          `mapstructure:"enabled"`
	Provider       string        `mapstructure:"provider" validate:"oneof=ollama anthropic"`
	Host           string        `mapstructure:"host"`
	Port           int           `mapstructure:"port" validate:"gte=0,lte=65535"`
	Model          string        `mapstructure:"model"`
	Prompt         string        `mapstructure:"prompt"`
	APIKey         string        `mapstructure:"api_key"`
	Attempts       int           `mapstructure:"attempts" validate:"gte=1,lte=10"`
	Backoff        time.Duration `mapstructure:"backoff" validate:"gte=0"`
	ConnectTimeout time.Duration `mapstructure:"connect_timeout" validate:"gt=0"`
	RequestTimeout time.Duration `mapstructure:"request_timeout" validate:"gt=0"`
}

// LogConfig controls the process logger.
type LogConfig struct {
	Level  string `mapstructure:"level" validate:"oneof=trace debug info warn error"`
	Format string `mapstructure:"format" validate:"oneof=console json"`
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() Config {
	return Config{
		Hotkey:     "f9",
		CancelKey:  "",
		OutputMode: "both",
		Typing: TypingConfig{
			Method:  "command",
			Command: "wtype",
		},
		Audio: AudioConfig{
			SampleRate:   16000,
			SampleFormat: "f32",
			Channels:     0,
			DrainDelay:   250 * time.Millisecond,
			GraceDelay:   100 * time.Millisecond,
		},
		Engine: EngineConfig{
			Provider:       "http",
			Endpoint:       "http://localhost:8387/v1/audio/transcriptions",
			TextPath:       "text",
			RequestTimeout: 60 * time.Second,
			EnableHTTP2:    true,
			VerifySSL:      true,
		},
		Cleanup: CleanupConfig{
			Enabled:        false,
			Provider:       "ollama",
			Host:           "http://localhost",
			Port:           11434,
			Model:          "llama3.2",
			Prompt:         DefaultCleanupPrompt,
			Attempts:       3,
			Backoff:        time.Second,
			ConnectTimeout: 5 * time.Second,
			RequestTimeout: 120 * time.Second,
		},
		Notification: true,
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate verifies config fields and returns an error if any value is invalid.
func Validate(cfg *Config) error {
	cfg.OutputMode = strings.ToLower(strings.TrimSpace(cfg.OutputMode))
	cfg.Typing.Method = strings.ToLower(strings.TrimSpace(cfg.Typing.Method))
	cfg.Engine.Provider = strings.ToLower(strings.TrimSpace(cfg.Engine.Provider))
	cfg.Cleanup.Provider = strings.ToLower(strings.TrimSpace(cfg.Cleanup.Provider))
	cfg.Audio.SampleFormat = strings.ToLower(strings.TrimSpace(cfg.Audio.SampleFormat))

	if err := validate.Struct(cfg); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if cfg.Engine.Endpoint == "" && cfg.Engine.Provider == "http" {
		return fmt.Errorf("invalid config: engine.endpoint is required for the http provider")
	}
	if cfg.Typing.Method == "command" && strings.TrimSpace(cfg.Typing.Command) == "" {
		return fmt.Errorf("invalid config: typing.command is empty")
	}
	if cfg.CancelKey != "" && strings.EqualFold(cfg.CancelKey, cfg.Hotkey) {
		return fmt.Errorf("invalid config: cancel_key must differ from hotkey")
	}
	if cfg.Cleanup.Enabled {
		if cfg.Cleanup.Model == "" {
			return fmt.Errorf("invalid config: cleanup.model is required when cleanup is enabled")
		}
		if cfg.Cleanup.Provider == "anthropic" && cfg.Cleanup.APIKey == "" {
			return fmt.Errorf("invalid config: cleanup.api_key is required for the anthropic provider")
		}
	}
	if cfg.Cleanup.Prompt == "" {
		cfg.Cleanup.Prompt = DefaultCleanupPrompt
	}
	return nil
}

// InitCacheDir validates/creates the configured cache directory.
// It mutates cfg.CacheDir to an absolute path or clears it on failure.
func InitCacheDir(cfg *Config) error {
	if cfg.CacheDir == "" {
		return nil
	}
	abs, err := filepath.Abs(cfg.CacheDir)
	if err != nil {
		cfg.CacheDir = ""
		return fmt.Errorf("cache_dir path invalid: %w", err)
	}
	info, err := os.Stat(abs)
	switch {
	case err == nil && !info.IsDir():
		cfg.CacheDir = ""
		return fmt.Errorf("cache_dir '%s' exists but is not a directory", abs)
	case err == nil:
		cfg.CacheDir = abs
		return nil
	case os.IsNotExist(err):
		if err := os.MkdirAll(abs, 0o755); err != nil {
			cfg.CacheDir = ""
			return fmt.Errorf("cannot create cache_dir '%s': %w", abs, err)
		}
		cfg.CacheDir = abs
		return nil
	default:
		cfg.CacheDir = ""
		return fmt.Errorf("cannot access cache_dir '%s': %w", abs, err)
	}
}

// TempDir returns the directory to use for in-flight audio artifacts.
func TempDir() string {
	dir := filepath.Join(os.TempDir(), "ptt")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return os.TempDir()
	}
	return dir
}

// TypingArgv splits the configured typing command into argv.
func TypingArgv(cfg *Config) []string {
	return strings.Fields(cfg.Typing.Command)
}
