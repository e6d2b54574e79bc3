// Package hotkey turns global key presses into an ordered stream of
// Pressed/Released events. Platform adapters: a low-level hook on Windows,
// evdev on Linux and golang.design/x/hotkey on macOS.
package hotkey

import (
	"fmt"
	"strconv"
	"strings"
	"sync"
)

// Kind is the edge an Event reports.
type Kind int

const (
	Pressed Kind = iota
	Released
)

func (k Kind) String() string {
	if k == Pressed {
		return "pressed"
	}
	return "released"
}

// Binding ids.
const (
	TalkID   = 0
	CancelID = 1
)

// Event is one key edge for a registered binding.
type Event struct {
	Kind Kind
	ID   int
}

// Source delivers events in order. The channel is closed when the listener
// disconnects.
type Source interface {
	Events() <-chan Event
	Close() error
}

const eventBuffer = 64

// Modifier is a bit mask of held modifier keys.
type Modifier uint8

const (
	ModAlt Modifier = 1 << iota
	ModCtrl
	ModShift
	ModWin
)

// Spec is a parsed key combination such as "ctrl+shift+f1".
type Spec struct {
	Mods Modifier
	Key  string
}

func (s Spec) String() string {
	var parts []string
	for _, m := range []struct {
		mod  Modifier
		name string
	}{{ModCtrl, "ctrl"}, {ModAlt, "alt"}, {ModShift, "shift"}, {ModWin, "win"}} {
		if s.Mods&m.mod != 0 {
			parts = append(parts, m.name)
		}
	}
	return strings.Join(append(parts, s.Key), "+")
}

var keyAliases = map[string]string{
	"escape":      "esc",
	"return":      "enter",
	"plus":        "add",
	"kpadd":       "add",
	"minus":       "subtract",
	"kpsubtract":  "subtract",
	"scroll_lock": "scrolllock",
	"scroll":      "scrolllock",
}

var namedKeys = map[string]bool{
	"esc": true, "space": true, "enter": true, "tab": true, "backspace": true,
	"insert": true, "delete": true, "home": true, "end": true, "pageup": true,
	"pagedown": true, "left": true, "up": true, "right": true, "down": true,
	"add": true, "subtract": true, "scrolllock": true, "pause": true,
}

// Parse accepts strings like "f9", "alt+q" or "ctrl+shift+F1".
func Parse(s string) (Spec, error) {
	if strings.TrimSpace(s) == "" {
		return Spec{}, fmt.Errorf("empty key")
	}
	parts := strings.Split(s, "+")
	for i := range parts {
		parts[i] = strings.TrimSpace(strings.ToLower(parts[i]))
	}

	var spec Spec
	for _, p := range parts[:len(parts)-1] {
		switch p {
		case "alt", "menu", "option":
			spec.Mods |= ModAlt
		case "ctrl", "control":
			spec.Mods |= ModCtrl
		case "shift":
			spec.Mods |= ModShift
		case "win", "meta", "super", "cmd":
			spec.Mods |= ModWin
		default:
			return Spec{}, fmt.Errorf("unknown modifier %q in %q", p, s)
		}
	}

	key, err := normalizeKey(parts[len(parts)-1])
	if err != nil {
		return Spec{}, fmt.Errorf("%w in %q", err, s)
	}
	spec.Key = key
	return spec, nil
}

func normalizeKey(k string) (string, error) {
	if a, ok := keyAliases[k]; ok {
		k = a
	}
	if len(k) == 1 && (k[0] >= 'a' && k[0] <= 'z' || k[0] >= '0' && k[0] <= '9') {
		return k, nil
	}
	if namedKeys[k] {
		return k, nil
	}
	if n, ok := strings.CutPrefix(k, "f"); ok {
		if v, err := strconv.Atoi(n); err == nil && v >= 1 && v <= 24 {
			return k, nil
		}
	}
	for _, prefix := range []string{"numpad", "num", "kp"} {
		if n, ok := strings.CutPrefix(k, prefix); ok && len(n) == 1 && n[0] >= '0' && n[0] <= '9' {
			return "numpad" + n, nil
		}
	}
	return "", fmt.Errorf("unsupported key %q", k)
}

type binding struct {
	id   int
	spec Spec
}

// candidate is a binding keyed by its platform key code.
type candidate struct {
	id   int
	mods Modifier
}

// parseBindings parses the talk key and the optional cancel key.
func parseBindings(talk, cancel string) ([]binding, error) {
	t, err := Parse(talk)
	if err != nil {
		return nil, fmt.Errorf("invalid hotkey: %w", err)
	}
	out := []binding{{id: TalkID, spec: t}}
	if strings.TrimSpace(cancel) == "" {
		return out, nil
	}
	c, err := Parse(cancel)
	if err != nil {
		return nil, fmt.Errorf("invalid cancel key: %w", err)
	}
	if c == t {
		return nil, fmt.Errorf("cancel key %s equals hotkey", c)
	}
	return append(out, binding{id: CancelID, spec: c}), nil
}

// relay moves events from a platform thread to the consumer. push never
// blocks and never drops; a single goroutine (run) performs the blocking
// sends.
type relay struct {
	mu       sync.Mutex
	pending  []Event
	finished bool

	wake     chan struct{}
	out      chan Event
	done     chan struct{}
	stopOnce sync.Once
}

func newRelay() *relay {
	r := &relay{
		wake: make(chan struct{}, 1),
		out:  make(chan Event, eventBuffer),
		done: make(chan struct{}),
	}
	go r.run()
	return r
}

// push queues ev. Events pushed after finish are discarded.
func (r *relay) push(ev Event) {
	r.mu.Lock()
	if r.finished {
		r.mu.Unlock()
		return
	}
	r.pending = append(r.pending, ev)
	r.mu.Unlock()
	r.signal()
}

// finish marks the listener as gone. Queued events are still delivered, then
// the output channel is closed.
func (r *relay) finish() {
	r.mu.Lock()
	r.finished = true
	r.mu.Unlock()
	r.signal()
}

// stop abandons delivery; the consumer is no longer reading.
func (r *relay) stop() {
	r.stopOnce.Do(func() { close(r.done) })
}

func (r *relay) signal() {
	select {
	case r.wake <- struct{}{}:
	default:
	}
}

func (r *relay) run() {
	defer close(r.out)
	for {
		r.mu.Lock()
		batch, finished := r.pending, r.finished
		r.pending = nil
		r.mu.Unlock()

		for _, ev := range batch {
			select {
			case r.out <- ev:
			case <-r.done:
				return
			}
		}
		if finished {
			return
		}
		select {
		case <-r.wake:
		case <-r.done:
			return
		}
	}
}
