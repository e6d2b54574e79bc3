//go:build linux

package hotkey

import (
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/holoplot/go-evdev"
	"github.com/rs/zerolog"
)

// ErrNoKeyboards is returned when no readable keyboard exists under
// /dev/input.
var ErrNoKeyboards = errors.New("no keyboards found; run with sudo or add the user to the input group")

// evdevSource reads every keyboard under /dev/input. It works on X11,
// Wayland and the console alike. Keys are observed, not swallowed.
type evdevSource struct {
	relay   *relay
	devices []keyboard
	state   *keyState
	done    chan struct{}
	wg      sync.WaitGroup
	once    sync.Once
	log     zerolog.Logger
}

// Listen opens all keyboards and watches them for the talk key and the
// optional cancel key.
func Listen(talk, cancel string, log zerolog.Logger) (Source, error) {
	bindings, err := parseBindings(talk, cancel)
	if err != nil {
		return nil, err
	}
	state, err := newKeyState(bindings)
	if err != nil {
		return nil, err
	}
	for _, b := range bindings {
		log.Debug().Str("key", b.spec.String()).Int("id", b.id).Msg("hotkey parsed")
	}

	devices, err := openKeyboards(log)
	if err != nil {
		return nil, err
	}

	s := &evdevSource{
		relay:   newRelay(),
		devices: devices,
		state:   state,
		done:    make(chan struct{}),
		log:     log,
	}
	for _, kb := range devices {
		s.wg.Add(1)
		go s.read(kb)
	}
	go func() {
		s.wg.Wait()
		s.relay.finish()
	}()
	return s, nil
}

func (s *evdevSource) Events() <-chan Event { return s.relay.out }

// Close releases the devices and stops delivery.
func (s *evdevSource) Close() error {
	var errs []error
	s.once.Do(func() {
		close(s.done)
		for _, kb := range s.devices {
			if err := kb.dev.Close(); err != nil {
				errs = append(errs, err)
			}
		}
		s.wg.Wait()
		s.relay.stop()
	})
	return errors.Join(errs...)
}

func (s *evdevSource) read(kb keyboard) {
	defer s.wg.Done()
	for {
		ev, err := kb.dev.ReadOne()
		if err != nil {
			select {
			case <-s.done:
			default:
				s.log.Warn().Err(err).Str("device", kb.path).Msg("keyboard read failed")
			}
			return
		}
		if ev.Type != evdev.EV_KEY {
			continue
		}
		if out, ok := s.state.apply(ev.Code, ev.Value); ok {
			s.relay.push(out)
		}
	}
}

type keyboard struct {
	dev  *evdev.InputDevice
	path string
}

// openKeyboards opens every event device that can emit KEY_A.
func openKeyboards(log zerolog.Logger) ([]keyboard, error) {
	paths, err := evdev.ListDevicePaths()
	if err != nil {
		return nil, fmt.Errorf("list input devices: %w", err)
	}
	var out []keyboard
	for _, p := range paths {
		d, err := evdev.Open(p.Path)
		if err != nil {
			log.Debug().Err(err).Str("device", p.Path).Msg("skip input device")
			continue
		}
		if !slices.Contains(d.CapableEvents(evdev.EV_KEY), evdev.EvCode(evdev.KEY_A)) {
			_ = d.Close()
			continue
		}
		log.Debug().Str("device", p.Path).Str("name", p.Name).Msg("keyboard opened")
		out = append(out, keyboard{dev: d, path: p.Path})
	}
	if len(out) == 0 {
		return nil, ErrNoKeyboards
	}
	return out, nil
}

// Key event values.
const (
	keyUp     = 0
	keyDown   = 1
	keyRepeat = 2
)

var modifierCodes = map[evdev.EvCode]Modifier{
	evdev.KEY_LEFTCTRL:   ModCtrl,
	evdev.KEY_RIGHTCTRL:  ModCtrl,
	evdev.KEY_LEFTALT:    ModAlt,
	evdev.KEY_RIGHTALT:   ModAlt,
	evdev.KEY_LEFTSHIFT:  ModShift,
	evdev.KEY_RIGHTSHIFT: ModShift,
	evdev.KEY_LEFTMETA:   ModWin,
	evdev.KEY_RIGHTMETA:  ModWin,
}

// keyState is the modifier and held-key state shared by all keyboards.
type keyState struct {
	mu     sync.Mutex
	lookup map[evdev.EvCode][]candidate
	down   map[evdev.EvCode]bool
	held   map[evdev.EvCode]int
}

func newKeyState(bindings []binding) (*keyState, error) {
	k := &keyState{
		lookup: make(map[evdev.EvCode][]candidate),
		down:   make(map[evdev.EvCode]bool),
		held:   make(map[evdev.EvCode]int),
	}
	for _, b := range bindings {
		code, err := evdevKey(b.spec.Key)
		if err != nil {
			return nil, err
		}
		k.lookup[code] = append(k.lookup[code], candidate{id: b.id, mods: b.spec.Mods})
	}
	return k, nil
}

// apply folds one key event into the state and reports the binding edge it
// produces, if any. Autorepeat never produces an edge.
func (k *keyState) apply(code evdev.EvCode, value int32) (Event, bool) {
	k.mu.Lock()
	defer k.mu.Unlock()

	if _, ok := modifierCodes[code]; ok {
		k.down[code] = value != keyUp
		return Event{}, false
	}
	switch value {
	case keyDown:
		if _, ok := k.held[code]; ok {
			return Event{}, false
		}
		mods := k.mods()
		for _, c := range k.lookup[code] {
			if mods&c.mods == c.mods {
				k.held[code] = c.id
				return Event{Kind: Pressed, ID: c.id}, true
			}
		}
	case keyUp:
		if id, ok := k.held[code]; ok {
			delete(k.held, code)
			return Event{Kind: Released, ID: id}, true
		}
	}
	return Event{}, false
}

func (k *keyState) mods() Modifier {
	var m Modifier
	for code, down := range k.down {
		if down {
			m |= modifierCodes[code]
		}
	}
	return m
}

var evdevKeys = map[string]evdev.EvCode{
	"a": evdev.KEY_A, "b": evdev.KEY_B, "c": evdev.KEY_C, "d": evdev.KEY_D,
	"e": evdev.KEY_E, "f": evdev.KEY_F, "g": evdev.KEY_G, "h": evdev.KEY_H,
	"i": evdev.KEY_I, "j": evdev.KEY_J, "k": evdev.KEY_K, "l": evdev.KEY_L,
	"m": evdev.KEY_M, "n": evdev.KEY_N, "o": evdev.KEY_O, "p": evdev.KEY_P,
	"q": evdev.KEY_Q, "r": evdev.KEY_R, "s": evdev.KEY_S, "t": evdev.KEY_T,
	"u": evdev.KEY_U, "v": evdev.KEY_V, "w": evdev.KEY_W, "x": evdev.KEY_X,
	"y": evdev.KEY_Y, "z": evdev.KEY_Z,
	"0": evdev.KEY_0, "1": evdev.KEY_1, "2": evdev.KEY_2, "3": evdev.KEY_3,
	"4": evdev.KEY_4, "5": evdev.KEY_5, "6": evdev.KEY_6, "7": evdev.KEY_7,
	"8": evdev.KEY_8, "9": evdev.KEY_9,
	"f1": evdev.KEY_F1, "f2": evdev.KEY_F2, "f3": evdev.KEY_F3, "f4": evdev.KEY_F4,
	"f5": evdev.KEY_F5, "f6": evdev.KEY_F6, "f7": evdev.KEY_F7, "f8": evdev.KEY_F8,
	"f9": evdev.KEY_F9, "f10": evdev.KEY_F10, "f11": evdev.KEY_F11, "f12": evdev.KEY_F12,
	"f13": evdev.KEY_F13, "f14": evdev.KEY_F14, "f15": evdev.KEY_F15, "f16": evdev.KEY_F16,
	"f17": evdev.KEY_F17, "f18": evdev.KEY_F18, "f19": evdev.KEY_F19, "f20": evdev.KEY_F20,
	"f21": evdev.KEY_F21, "f22": evdev.KEY_F22, "f23": evdev.KEY_F23, "f24": evdev.KEY_F24,
	"numpad0": evdev.KEY_KP0, "numpad1": evdev.KEY_KP1, "numpad2": evdev.KEY_KP2,
	"numpad3": evdev.KEY_KP3, "numpad4": evdev.KEY_KP4, "numpad5": evdev.KEY_KP5,
	"numpad6": evdev.KEY_KP6, "numpad7": evdev.KEY_KP7, "numpad8": evdev.KEY_KP8,
	"numpad9": evdev.KEY_KP9,
	"esc":        evdev.KEY_ESC,
	"space":      evdev.KEY_SPACE,
	"enter":      evdev.KEY_ENTER,
	"tab":        evdev.KEY_TAB,
	"backspace":  evdev.KEY_BACKSPACE,
	"insert":     evdev.KEY_INSERT,
	"delete":     evdev.KEY_DELETE,
	"home":       evdev.KEY_HOME,
	"end":        evdev.KEY_END,
	"pageup":     evdev.KEY_PAGEUP,
	"pagedown":   evdev.KEY_PAGEDOWN,
	"left":       evdev.KEY_LEFT,
	"up":         evdev.KEY_UP,
	"right":      evdev.KEY_RIGHT,
	"down":       evdev.KEY_DOWN,
	"add":        evdev.KEY_KPPLUS,
	"subtract":   evdev.KEY_KPMINUS,
	"scrolllock": evdev.KEY_SCROLLLOCK,
	"pause":      evdev.KEY_PAUSE,
}

func evdevKey(key string) (evdev.EvCode, error) {
	code, ok := evdevKeys[key]
	if !ok {
		return 0, fmt.Errorf("unsupported key %q", key)
	}
	return code, nil
}
