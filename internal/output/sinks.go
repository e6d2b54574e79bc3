package output

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/atotto/clipboard"
	"github.com/micmonay/keybd_event"
)

// clipboardMu serializes access to the system clipboard; PasteTyper
// temporarily replaces its contents.
var clipboardMu sync.Mutex

// ClipboardSink writes to the system clipboard.
type ClipboardSink struct{}

func (ClipboardSink) Copy(ctx context.Context, text string) error {
	clipboardMu.Lock()
	defer clipboardMu.Unlock()
	return clipboard.WriteAll(text)
}

// CommandTyper runs an external command with the text as its last argument,
// e.g. "wtype" or "xdotool type --".
type CommandTyper struct {
	Argv []string
}

func (c CommandTyper) TypeText(ctx context.Context, text string) error {
	if len(c.Argv) == 0 {
		return fmt.Errorf("typing command is empty")
	}
	args := append(append([]string{}, c.Argv[1:]...), text)
	cmd := exec.CommandContext(ctx, c.Argv[0], args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return fmt.Errorf("%s: %w: %s", c.Argv[0], err, msg)
		}
		return fmt.Errorf("%s: %w", c.Argv[0], err)
	}
	return nil
}

// PasteTyper types by placing text on the clipboard, sending Ctrl+V and
// restoring the previous clipboard contents. The previous contents are
// restored only if they could be read. Create one with NewPasteTyper.
type PasteTyper struct {
	SettleDelay  time.Duration
	RestoreDelay time.Duration

	readClip  func() (string, error)
	writeClip func(string) error
	paste     func() error
}

// NewPasteTyper returns a PasteTyper with the usual delays.
func NewPasteTyper() *PasteTyper {
	return &PasteTyper{
		SettleDelay:  80 * time.Millisecond,
		RestoreDelay: 120 * time.Millisecond,
		readClip:     clipboard.ReadAll,
		writeClip:    clipboard.WriteAll,
		paste:        sendPaste,
	}
}

func (p *PasteTyper) TypeText(ctx context.Context, text string) error {
	clipboardMu.Lock()
	defer clipboardMu.Unlock()

	orig, readErr := p.readClip()
	if err := p.writeClip(text); err != nil {
		return err
	}
	restore := func() {
		if readErr == nil {
			_ = p.writeClip(orig)
		}
	}
	time.Sleep(p.SettleDelay)

	if err := p.paste(); err != nil {
		restore()
		return err
	}
	time.Sleep(p.RestoreDelay)
	restore()
	return nil
}

func sendPaste() error {
	kb, err := keybd_event.NewKeyBonding()
	if err != nil {
		return err
	}
	kb.HasCTRL(true)
	kb.SetKeys(keybd_event.VK_V)
	return kb.Launching()
}
