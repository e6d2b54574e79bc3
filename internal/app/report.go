package app

import (
	"fmt"
	"time"
)

// Outcome is how a session ended.
type Outcome int

const (
	Delivered Outcome = iota
	NoSpeech
	TranscriptionFailed
	OutputFailed
	CaptureFailed
	Canceled
)

func (o Outcome) String() string {
	switch o {
	case Delivered:
		return "delivered"
	case NoSpeech:
		return "no_speech"
	case TranscriptionFailed:
		return "transcription_failed"
	case OutputFailed:
		return "output_failed"
	case CaptureFailed:
		return "capture_failed"
	case Canceled:
		return "canceled"
	}
	return fmt.Sprintf("Outcome(%d)", int(o))
}

// Stage names the step a Report's error came from.
const (
	StageStart      = "start"
	StageStop       = "stop"
	StageTranscribe = "transcribe"
	StageCleanup    = "cleanup"
	StageOutput     = "output"
)

// Report summarizes one finished session. Reports are logged and shown to
// the user; they never propagate as errors.
type Report struct {
	Session string
	Outcome Outcome
	Stage   string
	// Text is the text handed to the output sinks, cleaned when cleanup succeeded.
	Text string
	// Raw is the transcript as returned by the engine.
	Raw string
	// CleanupErr is set when cleanup failed and Raw was used instead.
	CleanupErr error
	Err        error
	Audio      time.Duration
	Elapsed    time.Duration
}

const previewLen = 80

// Message is the user-visible notification text for r.
func (r Report) Message() string {
	switch r.Outcome {
	case Delivered:
		return "Transcribed: " + preview(r.Text, previewLen)
	case NoSpeech:
		return "No speech detected"
	case TranscriptionFailed:
		return "Error: Transcription failed"
	case OutputFailed:
		return "Error: Failed to output text"
	case CaptureFailed:
		if r.Stage == StageStart {
			return "Error: Failed to start recording"
		}
		return "Error: Recording failed"
	case Canceled:
		return "Recording canceled"
	}
	return r.Outcome.String()
}

func preview(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
