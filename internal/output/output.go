package output

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// Mode selects which sinks receive the final text.
type Mode int

const (
	ModeTyping Mode = iota
	ModeClipboard
	ModeBoth
)

// ParseMode maps "typing", "clipboard" and "both" to a Mode.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "typing":
		return ModeTyping, nil
	case "clipboard":
		return ModeClipboard, nil
	case "both":
		return ModeBoth, nil
	}
	return 0, fmt.Errorf("unknown output mode %q", s)
}

func (m Mode) String() string {
	switch m {
	case ModeTyping:
		return "typing"
	case ModeClipboard:
		return "clipboard"
	case ModeBoth:
		return "both"
	}
	return fmt.Sprintf("Mode(%d)", int(m))
}

// Typer injects text into the focused window.
type Typer interface {
	TypeText(ctx context.Context, text string) error
}

// Clipboard places text on the system clipboard.
type Clipboard interface {
	Copy(ctx context.Context, text string) error
}

// SinkError reports a failed sink operation.
type SinkError struct {
	Sink string
	Err  error
}

func (e *SinkError) Error() string {
	return fmt.Sprintf("%s output failed: %v", e.Sink, e.Err)
}

func (e *SinkError) Unwrap() error { return e.Err }

// Fanout delivers text to the sinks selected by its mode.
type Fanout struct {
	mode      Mode
	typer     Typer
	clipboard Clipboard
	log       zerolog.Logger
}

// NewFanout creates a Fanout.
func NewFanout(mode Mode, typer Typer, clipboard Clipboard, log zerolog.Logger) *Fanout {
	return &Fanout{mode: mode, typer: typer, clipboard: clipboard, log: log}
}

// Mode returns the configured mode.
func (f *Fanout) Mode() Mode { return f.mode }

// Deliver sends text to the configured sinks. In ModeBoth both sinks are
// started concurrently and both run to completion; the first error is
// returned.
func (f *Fanout) Deliver(ctx context.Context, text string) error {
	switch f.mode {
	case ModeTyping:
		return f.typeText(ctx, text)
	case ModeClipboard:
		return f.copy(ctx, text)
	case ModeBoth:
		// A plain Group: a failing sink must not cancel the other one.
		var g errgroup.Group
		g.Go(func() error { return f.typeText(ctx, text) })
		g.Go(func() error { return f.copy(ctx, text) })
		return g.Wait()
	}
	return fmt.Errorf("unknown output mode %v", f.mode)
}

func (f *Fanout) typeText(ctx context.Context, text string) error {
	if err := f.typer.TypeText(ctx, text); err != nil {
		f.log.Warn().Err(err).Msg("typing failed")
		return &SinkError{Sink: "typing", Err: err}
	}
	f.log.Debug().Int("chars", len(text)).Msg("text typed")
	return nil
}

func (f *Fanout) copy(ctx context.Context, text string) error {
	if err := f.clipboard.Copy(ctx, text); err != nil {
		f.log.Warn().Err(err).Msg("clipboard failed")
		return &SinkError{Sink: "clipboard", Err: err}
	}
	f.log.Debug().Int("chars", len(text)).Msg("text copied")
	return nil
}
