// Package logging builds the process logger.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"

	"ptt/internal/config"
)

// FieldComponent tags every line with the component that wrote it.
const FieldComponent = "component"

// New creates a zerolog logger from the log section of the config.
func New(cfg config.LogConfig) zerolog.Logger {
	return NewWithWriter(cfg, os.Stderr)
}

// NewWithWriter is New with an explicit destination.
func NewWithWriter(cfg config.LogConfig, out io.Writer) zerolog.Logger {
	level, err := zerolog.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}

	var w io.Writer = out
	if strings.ToLower(cfg.Format) != "json" {
		w = zerolog.ConsoleWriter{
			Out:        out,
			TimeFormat: "15:04:05",
			FormatLevel: func(i interface{}) string {
				switch lvl := strings.ToUpper(fmt.Sprintf("%s", i)); lvl {
				case "TRACE":
					return "[TRC]"
				case "DEBUG":
					return "[DBG]"
				case "INFO":
					return "[INF]"
				case "WARN":
					return "[WRN]"
				case "ERROR":
					return "[ERR]"
				case "FATAL":
					return "[FTL]"
				default:
					return fmt.Sprintf("[%s]", lvl)
				}
			},
		}
	}

	return zerolog.New(w).Level(level).With().Timestamp().Logger()
}

// Component returns a child logger tagged with name.
func Component(l zerolog.Logger, name string) zerolog.Logger {
	return l.With().Str(FieldComponent, name).Logger()
}
