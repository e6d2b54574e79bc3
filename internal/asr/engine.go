// Package asr runs speech-to-text engines behind a single-flight dispatcher.
package asr

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrNoSpeech means the engine returned an empty or whitespace-only
	// transcript. It is an outcome, not a failure.
	ErrNoSpeech = errors.New("no speech detected")
	// ErrClosed is returned after the dispatcher released its engine.
	ErrClosed = errors.New("transcription engine closed")
)

// Engine transcribes an audio artifact. Implementations need not be
// reentrant; the Dispatcher never calls one concurrently.
type Engine interface {
	Name() string
	Transcribe(ctx context.Context, path string) (Transcript, error)
	Close() error
}

// Transcript is the result of one engine call.
type Transcript struct {
	Text     string
	Language string
	// Audio is the audio duration reported by the engine, if any.
	Audio time.Duration
	// Elapsed is the wall time of the engine call.
	Elapsed time.Duration
	// Raw is the undecoded engine response, kept for the artifact cache.
	Raw []byte
}

// EngineError wraps a failed engine call.
type EngineError struct {
	Engine string
	Err    error
}

func (e *EngineError) Error() string {
	return fmt.Sprintf("%s transcription failed: %v", e.Engine, e.Err)
}

func (e *EngineError) Unwrap() error { return e.Err }
