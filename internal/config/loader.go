package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment variable the loader reads.
const EnvPrefix = "PTT"

// Load resolves configuration from defaults, an optional config file, the
// dotenv file, PTT_* environment variables and explicitly set flags, in
// increasing order of precedence.
func Load(fs *pflag.FlagSet, fv *FlagValues) (Config, error) {
	v := newViper()

	if fv != nil && fv.EnvPath != "" {
		if err := godotenv.Load(fv.EnvPath); err != nil && !errors.Is(err, os.ErrNotExist) {
			return Config{}, fmt.Errorf("load env file %s: %w", fv.EnvPath, err)
		}
	}

	path := ""
	if fv != nil {
		path = fv.ConfigPath
	}
	if path == "" {
		path = findConfigFile()
	}
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	if fs != nil {
		for key, name := range flagKeys {
			if f := fs.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return Config{}, fmt.Errorf("bind flag %s: %w", name, err)
				}
			}
		}
	}

	cfg := Config{}
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	return cfg, nil
}

// SaveDefault writes the default config to the provided path. The format is
// chosen from the file extension.
func SaveDefault(path string) error {
	v := newViper()
	if filepath.Ext(path) == "" {
		path += ".yml"
	}
	return v.SafeWriteConfigAs(path)
}

func newViper() *viper.Viper {
	v := viper.New()
	setDefaults(v, DefaultConfig())
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

func setDefaults(v *viper.Viper, d Config) {
	v.SetDefault("hotkey", d.Hotkey)
	v.SetDefault("cancel_key", d.CancelKey)
	v.SetDefault("output_mode", d.OutputMode)
	v.SetDefault("typing.method", d.Typing.Method)
	v.SetDefault("typing.command", d.Typing.Command)

	v.SetDefault("audio.sample_rate", d.Audio.SampleRate)
	v.SetDefault("audio.sample_format", d.Audio.SampleFormat)
	v.SetDefault("audio.channels", d.Audio.Channels)
	v.SetDefault("audio.drain_delay", d.Audio.DrainDelay)
	v.SetDefault("audio.grace_delay", d.Audio.GraceDelay)

	v.SetDefault("engine.provider", d.Engine.Provider)
	v.SetDefault("engine.endpoint", d.Engine.Endpoint)
	v.SetDefault("engine.token", d.Engine.Token)
	v.SetDefault("engine.model", d.Engine.Model)
	v.SetDefault("engine.language", d.Engine.Language)
	v.SetDefault("engine.prompt", d.Engine.Prompt)
	v.SetDefault("engine.text_path", d.Engine.TextPath)
	v.SetDefault("engine.extra_config", d.Engine.ExtraConfig)
	v.SetDefault("engine.request_timeout", d.Engine.RequestTimeout)
	v.SetDefault("engine.enable_http2", d.Engine.EnableHTTP2)
	v.SetDefault("engine.verify_ssl", d.Engine.VerifySSL)

	v.SetDefault("cleanup.enabled", d.Cleanup.Enabled)
	v.SetDefault("cleanup.provider", d.Cleanup.Provider)
	v.SetDefault("cleanup.host", d.Cleanup.Host)
	v.SetDefault("cleanup.port", d.Cleanup.Port)
	v.SetDefault("cleanup.model", d.Cleanup.Model)
	v.SetDefault("cleanup.prompt", d.Cleanup.Prompt)
	v.SetDefault("cleanup.api_key", d.Cleanup.APIKey)
	v.SetDefault("cleanup.attempts", d.Cleanup.Attempts)
	v.SetDefault("cleanup.backoff", d.Cleanup.Backoff)
	v.SetDefault("cleanup.connect_timeout", d.Cleanup.ConnectTimeout)
	v.SetDefault("cleanup.request_timeout", d.Cleanup.RequestTimeout)

	v.SetDefault("cache_dir", d.CacheDir)
	v.SetDefault("keep_cache", d.KeepCache)
	v.SetDefault("notification", d.Notification)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)
}

// findConfigFile searches for config.yml in standard locations.
func findConfigFile() string {
	searchPaths := []string{"./config.yml", "./config.yaml"}
	if dir, err := os.UserConfigDir(); err == nil {
		searchPaths = append(searchPaths,
			filepath.Join(dir, "ptt", "config.yml"),
			filepath.Join(dir, "ptt", "config.yaml"),
		)
	}
	for _, p := range searchPaths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}
