package main

// ptt - push-to-talk dictation.
//
// Hold the hotkey to record from the default microphone. On release the
// recording is transcribed, optionally cleaned up by a language model, and
// typed into the focused window and/or copied to the clipboard.
//
// Build notes:
// - PortAudio is used through cgo; the native PortAudio library must be installed.
// - ffmpeg must be on PATH for --file mode.
// - On Linux the typing command (wtype by default) is required, and hotkeys are
//   read from /dev/input, so the user needs to be in the input group.

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"ptt/internal/app"
	"ptt/internal/config"
	"ptt/internal/logging"
)

func usage(fs *pflag.FlagSet) func() {
	return func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [flags]\n\n", os.Args[0])
		fmt.Fprintln(os.Stderr, "Hold the hotkey to talk; release to transcribe and output the text.")
		fmt.Fprintln(os.Stderr, "Use --file to transcribe an existing audio file instead.")
		fmt.Fprintln(os.Stderr, "Every option can also be set in config.yml or as a PTT_* environment variable")
		fmt.Fprintln(os.Stderr, "(e.g. PTT_CLEANUP_MODEL for cleanup.model).")
		fmt.Fprintln(os.Stderr)
		fs.PrintDefaults()
	}
}

func main() {
	code := 0
	runMain(func() { code = run(os.Args[1:]) })
	os.Exit(code)
}

func run(args []string) int {
	fs := pflag.NewFlagSet("ptt", pflag.ContinueOnError)
	fv := config.BindFlags(fs)
	fs.Usage = usage(fs)
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return 0
		}
		return 2
	}

	if fv.InitConfigPath != "" {
		if err := config.SaveDefault(fv.InitConfigPath); err != nil {
			fmt.Fprintf(os.Stderr, "failed to write default config: %v\n", err)
			return 1
		}
		fmt.Fprintf(os.Stderr, "default config created at %s\n", fv.InitConfigPath)
		return 0
	}

	cfg, err := config.Load(fs, fv)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		return 1
	}
	if err := config.Validate(&cfg); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	log := logging.New(cfg.Log)
	if err := config.InitCacheDir(&cfg); err != nil {
		log.Warn().Err(err).Msg("cache disabled")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if fv.FilePath != "" {
		err = app.RunFileMode(ctx, cfg, fv.FilePath, fv.OutputPath, logging.Component(log, "file"))
	} else {
		err = app.RunRecordMode(ctx, cfg, log)
	}
	if app.IsFatal(err) {
		log.Error().Err(err).Msg("exiting")
		return 1
	}
	return 0
}
