package config

import (
	"github.com/spf13/pflag"
)

// FlagValues holds the flags that select a run mode rather than a config key.
type FlagValues struct {
	ConfigPath     string
	EnvPath        string
	InitConfigPath string
	FilePath       string
	OutputPath     string
}

// flagKeys maps config keys to their command-line flag names. A flag only
// overrides file and environment values when it is set explicitly.
var flagKeys = map[string]string{
	"hotkey":                  "hotkey",
	"cancel_key":              "cancel-key",
	"output_mode":             "output-mode",
	"typing.method":           "typing-method",
	"typing.command":          "typing-command",
	"audio.sample_rate":       "sample-rate",
	"audio.sample_format":     "sample-format",
	"audio.channels":          "channels",
	"audio.drain_delay":       "drain-delay",
	"audio.grace_delay":       "grace-delay",
	"engine.provider":         "engine",
	"engine.endpoint":         "api-endpoint",
	"engine.token":            "token",
	"engine.model":            "model",
	"engine.language":         "language",
	"engine.prompt":           "prompt",
	"engine.text_path":        "text-path",
	"engine.extra_config":     "extra-config",
	"engine.request_timeout":  "request-timeout",
	"engine.enable_http2":     "enable-http2",
	"engine.verify_ssl":       "verify-ssl",
	"cleanup.enabled":         "cleanup",
	"cleanup.provider":        "cleanup-provider",
	"cleanup.host":            "cleanup-host",
	"cleanup.port":            "cleanup-port",
	"cleanup.model":           "cleanup-model",
	"cleanup.prompt":          "cleanup-prompt",
	"cleanup.attempts":        "cleanup-attempts",
	"cleanup.request_timeout": "cleanup-timeout",
	"cache_dir":               "cache-dir",
	"keep_cache":              "keep-cache",
	"notification":            "notification",
	"log.level":               "log-level",
	"log.format":              "log-format",
}

// BindFlags registers all flags on fs and returns the run-mode values.
func BindFlags(fs *pflag.FlagSet) *FlagValues {
	fv := &FlagValues{}
	d := DefaultConfig()

	fs.StringVarP(&fv.ConfigPath, "config", "c", "", "config file (yaml, json or toml)")
	fs.StringVar(&fv.EnvPath, "env-file", ".env", "dotenv file loaded before reading PTT_* variables")
	fs.StringVar(&fv.InitConfigPath, "init-config", "", "write the default config to this path and exit")
	fs.StringVar(&fv.FilePath, "file", "", "transcribe an existing audio file instead of listening for hotkeys")
	fs.StringVarP(&fv.OutputPath, "out", "o", "", "output txt path for --file mode")

	fs.StringP("hotkey", "k", d.Hotkey, "push-to-talk key (e.g. f9, ctrl+space)")
	fs.String("cancel-key", d.CancelKey, "key that discards the current recording")
	fs.String("output-mode", d.OutputMode, "output mode: typing, clipboard or both")
	fs.String("typing-method", d.Typing.Method, "typing method: command or paste")
	fs.String("typing-command", d.Typing.Command, "command used to type text (text is appended as last argument)")

	fs.Int("sample-rate", d.Audio.SampleRate, "artifact sample rate (Hz)")
	fs.String("sample-format", d.Audio.SampleFormat, "capture sample format: f32, s16 or s32")
	fs.Int("channels", d.Audio.Channels, "capture channels (0 = device default)")
	fs.Duration("drain-delay", d.Audio.DrainDelay, "trailing audio kept after key release")
	fs.Duration("grace-delay", d.Audio.GraceDelay, "wait after stopping the stream before reading the buffer")

	fs.String("engine", d.Engine.Provider, "transcription engine: http or openai")
	fs.String("api-endpoint", d.Engine.Endpoint, "transcription endpoint URL")
	fs.String("token", d.Engine.Token, "authorization token")
	fs.String("model", d.Engine.Model, "transcription model")
	fs.String("language", d.Engine.Language, "spoken language hint")
	fs.String("prompt", d.Engine.Prompt, "transcription prompt")
	fs.String("text-path", d.Engine.TextPath, "JSON path to extract text from the response")
	fs.String("extra-config", d.Engine.ExtraConfig, "extra JSON merged into the request form")
	fs.Duration("request-timeout", d.Engine.RequestTimeout, "transcription request timeout")
	fs.Bool("enable-http2", d.Engine.EnableHTTP2, "enable HTTP/2")
	fs.Bool("verify-ssl", d.Engine.VerifySSL, "verify TLS certificates")

	fs.Bool("cleanup", d.Cleanup.Enabled, "clean transcripts with a language model")
	fs.String("cleanup-provider", d.Cleanup.Provider, "cleanup provider: ollama or anthropic")
	fs.String("cleanup-host", d.Cleanup.Host, "cleanup service host")
	fs.Int("cleanup-port", d.Cleanup.Port, "cleanup service port")
	fs.String("cleanup-model", d.Cleanup.Model, "cleanup model name")
	fs.String("cleanup-prompt", "", "override the cleanup instruction prompt")
	fs.Int("cleanup-attempts", d.Cleanup.Attempts, "cleanup attempts before falling back to the raw transcript")
	fs.Duration("cleanup-timeout", d.Cleanup.RequestTimeout, "overall timeout of one cleanup request")

	fs.String("cache-dir", d.CacheDir, "cache directory")
	fs.Bool("keep-cache", d.KeepCache, "keep artifacts in cache-dir instead of deleting them")
	fs.Bool("notification", d.Notification, "enable desktop notifications")
	fs.String("log-level", d.Log.Level, "log level: trace, debug, info, warn, error")
	fs.String("log-format", d.Log.Format, "log format: console or json")

	return fv
}
