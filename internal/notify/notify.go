// Package notify shows desktop notifications.
package notify

import (
	"github.com/gen2brain/beeep"
	"github.com/rs/zerolog"
)

// AppName is the title used for every notification.
const AppName = "ptt"

// Notifier surfaces short user-visible messages.
type Notifier interface {
	Notify(message string)
}

// Desktop sends notifications through the platform notification service.
type Desktop struct {
	log zerolog.Logger
}

// NewDesktop creates a Desktop notifier.
func NewDesktop(log zerolog.Logger) *Desktop {
	beeep.AppName = AppName
	return &Desktop{log: log}
}

func (d *Desktop) Notify(message string) {
	if err := beeep.Notify(AppName, message, ""); err != nil {
		d.log.Debug().Err(err).Str("message", message).Msg("notification failed")
	}
}

// Nop discards notifications.
type Nop struct{}

func (Nop) Notify(string) {}

// New returns a Desktop notifier when enabled and Nop otherwise.
func New(enabled bool, log zerolog.Logger) Notifier {
	if !enabled {
		return Nop{}
	}
	return NewDesktop(log)
}
