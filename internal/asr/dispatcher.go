package asr

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Dispatcher serializes access to one Engine. Each call runs on its own
// goroutine so a hung engine never blocks the caller past its context.
type Dispatcher struct {
	mu     sync.Mutex // held for the duration of one engine call
	engine Engine
	closed bool
	log    zerolog.Logger
}

// NewDispatcher takes ownership of engine.
func NewDispatcher(engine Engine, log zerolog.Logger) *Dispatcher {
	return &Dispatcher{engine: engine, log: log}
}

// Release is called once the engine is finished with the artifact, with the
// result of the call. It runs even when the caller has already given up.
type Release func(Transcript, error)

// Transcribe runs the engine on path and returns the trimmed transcript.
// An empty transcript is returned together with ErrNoSpeech. If ctx ends
// first, Transcribe returns ctx.Err() while the engine call keeps running;
// release (may be nil) is the only safe point to remove path.
func (d *Dispatcher) Transcribe(ctx context.Context, path string, release Release) (Transcript, error) {
	type result struct {
		t   Transcript
		err error
	}
	done := make(chan result, 1)
	go func() {
		t, err := d.call(ctx, path)
		if release != nil {
			release(t, err)
		}
		done <- result{t: t, err: err}
	}()

	select {
	case r := <-done:
		return r.t, r.err
	case <-ctx.Done():
		return Transcript{}, ctx.Err()
	}
}

func (d *Dispatcher) call(ctx context.Context, path string) (Transcript, error) {
	waitStart := time.Now()
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return Transcript{}, ErrClosed
	}
	if wait := time.Since(waitStart); wait > time.Millisecond {
		d.log.Debug().Dur("wait", wait).Msg("waited for engine")
	}

	start := time.Now()
	t, err := d.engine.Transcribe(ctx, path)
	t.Elapsed = time.Since(start)
	if err != nil {
		return t, &EngineError{Engine: d.engine.Name(), Err: err}
	}

	t.Text = strings.TrimSpace(t.Text)
	d.log.Debug().Str("engine", d.engine.Name()).Dur("elapsed", t.Elapsed).Int("chars", len(t.Text)).Msg("transcribed")
	if t.Text == "" {
		return t, ErrNoSpeech
	}
	return t, nil
}

// Close waits for an in-flight call and releases the engine. Later calls
// fail with ErrClosed.
func (d *Dispatcher) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil
	}
	d.closed = true
	return d.engine.Close()
}
