//go:build darwin

package hotkey

import (
	"fmt"
	"sync"

	"github.com/rs/zerolog"
	xhotkey "golang.design/x/hotkey"
)

// xSource adapts golang.design/x/hotkey. The process must run under
// mainthread.Init for registration to reach the Cocoa event loop.
type xSource struct {
	relay *relay
	done  chan struct{}
	keys  []*xhotkey.Hotkey
	wg    sync.WaitGroup
	once  sync.Once
	log   zerolog.Logger
}

// Listen registers the talk key and the optional cancel key as global
// hotkeys.
func Listen(talk, cancel string, log zerolog.Logger) (Source, error) {
	bindings, err := parseBindings(talk, cancel)
	if err != nil {
		return nil, err
	}

	s := &xSource{
		relay: newRelay(),
		done:  make(chan struct{}),
		log:   log,
	}
	for _, b := range bindings {
		mods, key, err := xKey(b.spec)
		if err != nil {
			s.unregister()
			s.relay.stop()
			return nil, err
		}
		hk := xhotkey.New(mods, key)
		if err := hk.Register(); err != nil {
			s.unregister()
			s.relay.stop()
			return nil, fmt.Errorf("register hotkey %s: %w", b.spec, err)
		}
		s.keys = append(s.keys, hk)
		log.Debug().Str("key", b.spec.String()).Int("id", b.id).Msg("hotkey registered")
	}

	for i, hk := range s.keys {
		s.wg.Add(1)
		go s.forward(hk, bindings[i].id)
	}
	go func() {
		s.wg.Wait()
		s.relay.finish()
	}()
	return s, nil
}

func (s *xSource) Events() <-chan Event { return s.relay.out }

func (s *xSource) Close() error {
	s.once.Do(func() {
		close(s.done)
		s.wg.Wait()
		s.unregister()
		s.relay.stop()
	})
	return nil
}

func (s *xSource) forward(hk *xhotkey.Hotkey, id int) {
	defer s.wg.Done()
	down, up := hk.Keydown(), hk.Keyup()
	for {
		var ev Event
		select {
		case <-s.done:
			return
		case _, ok := <-down:
			if !ok {
				return
			}
			ev = Event{Kind: Pressed, ID: id}
		case _, ok := <-up:
			if !ok {
				return
			}
			ev = Event{Kind: Released, ID: id}
		}
		s.relay.push(ev)
	}
}

func (s *xSource) unregister() {
	for _, hk := range s.keys {
		if err := hk.Unregister(); err != nil {
			s.log.Debug().Err(err).Msg("hotkey unregister failed")
		}
	}
	s.keys = nil
}

var xKeys = map[string]xhotkey.Key{
	"a": xhotkey.KeyA, "b": xhotkey.KeyB, "c": xhotkey.KeyC, "d": xhotkey.KeyD,
	"e": xhotkey.KeyE, "f": xhotkey.KeyF, "g": xhotkey.KeyG, "h": xhotkey.KeyH,
	"i": xhotkey.KeyI, "j": xhotkey.KeyJ, "k": xhotkey.KeyK, "l": xhotkey.KeyL,
	"m": xhotkey.KeyM, "n": xhotkey.KeyN, "o": xhotkey.KeyO, "p": xhotkey.KeyP,
	"q": xhotkey.KeyQ, "r": xhotkey.KeyR, "s": xhotkey.KeyS, "t": xhotkey.KeyT,
	"u": xhotkey.KeyU, "v": xhotkey.KeyV, "w": xhotkey.KeyW, "x": xhotkey.KeyX,
	"y": xhotkey.KeyY, "z": xhotkey.KeyZ,
	"0": xhotkey.Key0, "1": xhotkey.Key1, "2": xhotkey.Key2, "3": xhotkey.Key3,
	"4": xhotkey.Key4, "5": xhotkey.Key5, "6": xhotkey.Key6, "7": xhotkey.Key7,
	"8": xhotkey.Key8, "9": xhotkey.Key9,
	"f1": xhotkey.KeyF1, "f2": xhotkey.KeyF2, "f3": xhotkey.KeyF3, "f4": xhotkey.KeyF4,
	"f5": xhotkey.KeyF5, "f6": xhotkey.KeyF6, "f7": xhotkey.KeyF7, "f8": xhotkey.KeyF8,
	"f9": xhotkey.KeyF9, "f10": xhotkey.KeyF10, "f11": xhotkey.KeyF11, "f12": xhotkey.KeyF12,
	"space":  xhotkey.KeySpace,
	"enter":  xhotkey.KeyReturn,
	"esc":    xhotkey.KeyEscape,
	"tab":    xhotkey.KeyTab,
	"delete": xhotkey.KeyDelete,
	"left":   xhotkey.KeyLeft,
	"right":  xhotkey.KeyRight,
	"up":     xhotkey.KeyUp,
	"down":   xhotkey.KeyDown,
}

func xKey(spec Spec) ([]xhotkey.Modifier, xhotkey.Key, error) {
	var mods []xhotkey.Modifier
	if spec.Mods&ModCtrl != 0 {
		mods = append(mods, xhotkey.ModCtrl)
	}
	if spec.Mods&ModShift != 0 {
		mods = append(mods, xhotkey.ModShift)
	}
	if spec.Mods&ModAlt != 0 {
		mods = append(mods, xhotkey.ModOption)
	}
	if spec.Mods&ModWin != 0 {
		mods = append(mods, xhotkey.ModCmd)
	}
	key, ok := xKeys[spec.Key]
	if !ok {
		return nil, 0, fmt.Errorf("hotkey %s: key not supported on this platform", spec)
	}
	return mods, key, nil
}
