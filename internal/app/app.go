// Package app wires configuration, capture, transcription, cleanup and
// output into the record and file modes.
package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"ptt/internal/asr"
	"ptt/internal/audio/ffmpeg"
	"ptt/internal/cleanup"
	"ptt/internal/config"
	"ptt/internal/hotkey"
	"ptt/internal/logging"
	"ptt/internal/notify"
	"ptt/internal/output"
	"ptt/internal/record"
	"ptt/internal/record/device"
)

// RunRecordMode installs the hotkeys and runs the push-to-talk loop until
// ctx is done or the listener disconnects.
func RunRecordMode(ctx context.Context, cfg config.Config, log zerolog.Logger) error {
	tempDir := config.TempDir()
	sweepTempFiles(tempDir, logging.Component(log, "cache"))

	mode, err := output.ParseMode(cfg.OutputMode)
	if err != nil {
		return err
	}
	fanout := output.NewFanout(mode, newTyper(cfg), output.ClipboardSink{}, logging.Component(log, "output"))

	pipe, err := newPipeline(cfg, fanout, log)
	if err != nil {
		return err
	}

	format, err := record.ParseFormat(cfg.Audio.SampleFormat)
	if err != nil {
		_ = pipe.Close()
		return err
	}
	rec := record.New(
		&device.PortAudio{Format: format, Channels: cfg.Audio.Channels},
		record.Options{TempDir: tempDir, TargetRate: cfg.Audio.SampleRate, GraceDelay: cfg.Audio.GraceDelay},
		logging.Component(log, "record"),
	)

	src, err := hotkey.Listen(cfg.Hotkey, cfg.CancelKey, logging.Component(log, "hotkey"))
	if err != nil {
		_ = pipe.Close()
		return err
	}
	defer src.Close()

	ctrl := NewController(rec, pipe, notify.New(cfg.Notification, logging.Component(log, "notify")),
		Options{DrainDelay: cfg.Audio.DrainDelay}, logging.Component(log, "controller"))

	ev := log.Info().Str("hotkey", cfg.Hotkey).Str("output", mode.String())
	if cfg.CancelKey != "" {
		ev = ev.Str("cancel", cfg.CancelKey)
	}
	ev.Bool("cleanup", cfg.Cleanup.Enabled).Msg("ready, hold the hotkey to talk")
	return ctrl.Run(ctx, src)
}

// RunFileMode converts inputPath into the canonical format, runs it through
// the same pipeline and writes the text next to the working directory (or to
// outputPath).
func RunFileMode(ctx context.Context, cfg config.Config, inputPath, outputPath string, log zerolog.Logger) error {
	tempDir := config.TempDir()
	sweepTempFiles(tempDir, logging.Component(log, "cache"))

	if _, err := os.Stat(inputPath); err != nil {
		return fmt.Errorf("file '%s' stat failed: %w", inputPath, err)
	}
	if outputPath == "" {
		base := strings.TrimSuffix(filepath.Base(inputPath), filepath.Ext(inputPath))
		outputPath = filepath.Join(".", base+".txt")
	}

	pipe, err := newPipeline(cfg, textFile{path: outputPath}, log)
	if err != nil {
		return err
	}
	defer pipe.Close()

	tempOut := filepath.Join(tempDir, record.TempPrefix+strings.ReplaceAll(uuid.NewString(), "-", "")[:16]+".wav")
	if err := ffmpeg.Convert(ctx, inputPath, tempOut, cfg.Audio.SampleRate, logging.Component(log, "ffmpeg")); err != nil {
		_ = os.Remove(tempOut)
		return err
	}

	r := pipe.Process(ctx, "file", record.Artifact{Path: tempOut, SampleRate: cfg.Audio.SampleRate})
	switch r.Outcome {
	case Delivered:
		log.Info().Str("input", inputPath).Str("output", outputPath).Dur("elapsed", r.Elapsed).Msg("transcript written")
		return nil
	case NoSpeech:
		log.Warn().Str("input", inputPath).Msg("no speech detected, nothing written")
		return nil
	default:
		return r.Err
	}
}

func newPipeline(cfg config.Config, out Deliverer, log zerolog.Logger) (*Pipeline, error) {
	engine, err := asr.New(cfg.Engine)
	if err != nil {
		return nil, err
	}
	dispatcher := asr.NewDispatcher(engine, logging.Component(log, "asr"))

	var cleaner Cleaner
	pp, err := cleanup.FromConfig(cfg.Cleanup, logging.Component(log, "cleanup"))
	if err != nil {
		_ = dispatcher.Close()
		return nil, err
	}
	if pp != nil {
		cleaner = pp
	}

	cache := NewArtifactCache(cfg.CacheDir, cfg.KeepCache, logging.Component(log, "cache"))
	return NewPipeline(dispatcher, cleaner, out, cache, logging.Component(log, "pipeline")), nil
}

func newTyper(cfg config.Config) output.Typer {
	if cfg.Typing.Method == "paste" {
		return output.NewPasteTyper()
	}
	return output.CommandTyper{Argv: config.TypingArgv(&cfg)}
}

// textFile is the file-mode sink.
type textFile struct {
	path string
}

func (t textFile) Deliver(ctx context.Context, text string) error {
	if err := os.WriteFile(t.path, []byte(text), 0o644); err != nil {
		return &output.SinkError{Sink: "file", Err: err}
	}
	return nil
}

// IsFatal reports whether err from Run should end the process with a
// failure status.
func IsFatal(err error) bool {
	return err != nil && !errors.Is(err, context.Canceled)
}
