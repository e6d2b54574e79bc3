//go:build !windows && !linux && !darwin

package hotkey

import (
	"fmt"
	"runtime"

	"github.com/rs/zerolog"
)

// Listen reports that no global hotkey backend exists for this platform.
// File mode still works.
func Listen(talk, cancel string, log zerolog.Logger) (Source, error) {
	if _, err := parseBindings(talk, cancel); err != nil {
		return nil, err
	}
	return nil, fmt.Errorf("global hotkeys are not supported on %s", runtime.GOOS)
}
