//go:build windows

package hotkey

import (
	"fmt"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"
	"unsafe"

	"github.com/rs/zerolog"
)

var (
	user32   = syscall.NewLazyDLL("user32.dll")
	kernel32 = syscall.NewLazyDLL("kernel32.dll")

	procSetWindowsHookExW   = user32.NewProc("SetWindowsHookExW")
	procUnhookWindowsHookEx = user32.NewProc("UnhookWindowsHookEx")
	procCallNextHookEx      = user32.NewProc("CallNextHookEx")
	procGetMessageW         = user32.NewProc("GetMessageW")
	procGetAsyncKeyState    = user32.NewProc("GetAsyncKeyState")
	procPostThreadMessageW  = user32.NewProc("PostThreadMessageW")
	procGetCurrentThreadId  = kernel32.NewProc("GetCurrentThreadId")
)

const (
	WH_KEYBOARD_LL = 13
	WM_KEYDOWN     = 0x0100
	WM_KEYUP       = 0x0101
	WM_SYSKEYDOWN  = 0x0104
	WM_SYSKEYUP    = 0x0105
	WM_QUIT        = 0x0012
	LLKHF_INJECTED = 0x10
	VK_SHIFT       = 0x10
	VK_CONTROL     = 0x11
	VK_MENU        = 0x12
	VK_LWIN        = 0x5B
	VK_RWIN        = 0x5C
	VK_NUMPAD0     = 0x60
	VK_ADD         = 0x6B
	VK_SUBTRACT    = 0x6D
	VK_PAUSE       = 0x13
	VK_SCROLL      = 0x91
)

type kbdllHookStruct struct {
	vkCode      uint32
	scanCode    uint32
	flags       uint32
	time        uint32
	dwExtraInfo uintptr
}

// hookSource is a WH_KEYBOARD_LL hook. Matching keys are swallowed so the
// focused window never sees them.
type hookSource struct {
	relay    *relay
	done     chan struct{}
	threadID uintptr
	once     sync.Once
	log      zerolog.Logger
}

// Listen installs a low-level keyboard hook for the talk key and the
// optional cancel key.
func Listen(talk, cancel string, log zerolog.Logger) (Source, error) {
	bindings, err := parseBindings(talk, cancel)
	if err != nil {
		return nil, err
	}
	lookup := make(map[uint32][]candidate)
	for _, b := range bindings {
		vk, err := virtualKey(b.spec.Key)
		if err != nil {
			return nil, err
		}
		lookup[vk] = append(lookup[vk], candidate{id: b.id, mods: b.spec.Mods})
		log.Debug().Str("key", b.spec.String()).Int("id", b.id).Uint32("vk", vk).Msg("hotkey parsed")
	}

	s := &hookSource{
		relay: newRelay(),
		done:  make(chan struct{}),
		log:   log,
	}
	errCh := make(chan error, 1)
	go s.run(lookup, errCh)

	select {
	case err := <-errCh:
		if err != nil {
			s.relay.stop()
			return nil, err
		}
		return s, nil
	case <-time.After(2 * time.Second):
		s.relay.stop()
		return nil, fmt.Errorf("timeout installing low-level hook")
	}
}

func (s *hookSource) Events() <-chan Event { return s.relay.out }

// Close stops the message loop and removes the hook.
func (s *hookSource) Close() error {
	s.once.Do(func() {
		procPostThreadMessageW.Call(s.threadID, WM_QUIT, 0, 0)
		s.relay.stop()
	})
	select {
	case <-s.done:
		return nil
	case <-time.After(time.Second):
		return fmt.Errorf("timeout removing low-level hook")
	}
}

func (s *hookSource) run(lookup map[uint32][]candidate, errCh chan<- error) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()
	defer close(s.done)
	defer s.relay.finish()

	s.threadID, _, _ = procGetCurrentThreadId.Call()

	// vk -> binding id of keys whose keydown was swallowed.
	held := make(map[uint32]int)

	callback := syscall.NewCallback(func(nCode, wParam, lParam uintptr) uintptr {
		if int32(nCode) < 0 {
			ret, _, _ := procCallNextHookEx.Call(0, nCode, wParam, lParam)
			return ret
		}

		msg := uint32(wParam)
		k := (*kbdllHookStruct)(unsafe.Pointer(lParam))
		vk := k.vkCode

		if (k.flags & LLKHF_INJECTED) != 0 {
			ret, _, _ := procCallNextHookEx.Call(0, nCode, wParam, lParam)
			return ret
		}

		switch msg {
		case WM_KEYDOWN, WM_SYSKEYDOWN:
			if _, repeat := held[vk]; repeat {
				return 1
			}
			for _, c := range lookup[vk] {
				if modsSatisfied(c.mods) {
					held[vk] = c.id
					s.relay.push(Event{Kind: Pressed, ID: c.id})
					return 1
				}
			}
		case WM_KEYUP, WM_SYSKEYUP:
			if id, ok := held[vk]; ok {
				delete(held, vk)
				s.relay.push(Event{Kind: Released, ID: id})
				return 1
			}
		}

		ret, _, _ := procCallNextHookEx.Call(0, nCode, wParam, lParam)
		return ret
	})

	hook, _, _ := procSetWindowsHookExW.Call(uintptr(WH_KEYBOARD_LL), callback, 0, 0)
	if hook == 0 {
		errCh <- fmt.Errorf("SetWindowsHookExW failed")
		return
	}
	s.log.Debug().Msg("low-level hook installed")
	errCh <- nil

	var msg struct {
		Hwnd    uintptr
		Message uint32
		WParam  uintptr
		LParam  uintptr
		Time    uint32
		Pt_x    int32
		Pt_y    int32
	}
	for {
		ret, _, _ := procGetMessageW.Call(uintptr(unsafe.Pointer(&msg)), 0, 0, 0)
		if int32(ret) == -1 {
			s.log.Error().Msg("GetMessageW failed; hotkey listener stopping")
			break
		}
		if ret == 0 {
			break
		}
	}

	procUnhookWindowsHookEx.Call(hook)
	s.log.Debug().Msg("low-level hook uninstalled")
}

func keyDown(vk uintptr) bool {
	st, _, _ := procGetAsyncKeyState.Call(vk)
	return (st & 0x8000) != 0
}

func modsSatisfied(required Modifier) bool {
	if required&ModCtrl != 0 && !keyDown(VK_CONTROL) {
		return false
	}
	if required&ModAlt != 0 && !keyDown(VK_MENU) {
		return false
	}
	if required&ModShift != 0 && !keyDown(VK_SHIFT) {
		return false
	}
	if required&ModWin != 0 && !keyDown(VK_LWIN) && !keyDown(VK_RWIN) {
		return false
	}
	return true
}

var namedVK = map[string]uint32{
	"esc":        0x1B,
	"space":      0x20,
	"enter":      0x0D,
	"tab":        0x09,
	"backspace":  0x08,
	"insert":     0x2D,
	"delete":     0x2E,
	"home":       0x24,
	"end":        0x23,
	"pageup":     0x21,
	"pagedown":   0x22,
	"left":       0x25,
	"up":         0x26,
	"right":      0x27,
	"down":       0x28,
	"add":        VK_ADD,
	"subtract":   VK_SUBTRACT,
	"pause":      VK_PAUSE,
	"scrolllock": VK_SCROLL,
}

// virtualKey maps a normalized key name to its virtual-key code.
func virtualKey(key string) (uint32, error) {
	if len(key) == 1 {
		return uint32(strings.ToUpper(key)[0]), nil
	}
	if v, ok := namedVK[key]; ok {
		return v, nil
	}
	if n, ok := strings.CutPrefix(key, "numpad"); ok {
		return VK_NUMPAD0 + uint32(n[0]-'0'), nil
	}
	if n, ok := strings.CutPrefix(key, "f"); ok {
		if v, err := strconv.Atoi(n); err == nil {
			return 0x70 + uint32(v-1), nil
		}
	}
	return 0, fmt.Errorf("unsupported key %q", key)
}
