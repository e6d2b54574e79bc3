package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"ptt/internal/hotkey"
	"ptt/internal/notify"
	"ptt/internal/record"
)

// ErrListenerDisconnected is returned by Run when the hotkey source closes
// its event channel. It is the only error that ends the controller.
var ErrListenerDisconnected = errors.New("hotkey listener disconnected")

// State is the controller's hotkey-facing state. Processing happens in the
// background and does not occupy the controller.
type State int32

const (
	StateIdle State = iota
	StateRecording
	StateDraining
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRecording:
		return "recording"
	case StateDraining:
		return "draining"
	}
	return fmt.Sprintf("State(%d)", int32(s))
}

// Recorder captures one recording at a time.
type Recorder interface {
	Start(ctx context.Context) error
	Stop() (record.Artifact, error)
	Abort() error
}

// Options configures a Controller.
type Options struct {
	// DrainDelay is how long capture continues after the key is released.
	DrainDelay time.Duration
	// OnReport, if set, receives every finished session's report.
	OnReport func(Report)
}

// Controller turns hotkey events into recording sessions and hands finished
// recordings to the pipeline.
type Controller struct {
	rec      Recorder
	pipe     *Pipeline
	notifier notify.Notifier
	opts     Options
	log      zerolog.Logger

	state   atomic.Int32
	session string
	drain   *time.Timer
	wg      sync.WaitGroup
}

// NewController creates a controller. The controller owns pipe and closes it
// when Run returns.
func NewController(rec Recorder, pipe *Pipeline, notifier notify.Notifier, opts Options, log zerolog.Logger) *Controller {
	if notifier == nil {
		notifier = notify.Nop{}
	}
	return &Controller{rec: rec, pipe: pipe, notifier: notifier, opts: opts, log: log}
}

// State returns the current state. Safe for concurrent use.
func (c *Controller) State() State {
	return State(c.state.Load())
}

func (c *Controller) setState(s State) {
	c.state.Store(int32(s))
}

// Run consumes events from src until ctx is done or src disconnects. Before
// returning it hands a released recording to the pipeline, aborts one that is
// still held, waits for background sessions and releases the engine.
func (c *Controller) Run(ctx context.Context, src hotkey.Source) error {
	defer c.shutdown(ctx)

	events := src.Events()
	for {
		select {
		case <-ctx.Done():
			c.log.Info().Msg("shutdown requested")
			return nil
		case ev, ok := <-events:
			if !ok {
				c.log.Error().Msg("hotkey listener disconnected")
				return ErrListenerDisconnected
			}
			c.handle(ctx, ev)
		case <-c.drainC():
			c.finishDrain(ctx)
		}
	}
}

func (c *Controller) drainC() <-chan time.Time {
	if c.drain == nil {
		return nil
	}
	return c.drain.C
}

func (c *Controller) handle(ctx context.Context, ev hotkey.Event) {
	state := c.State()
	c.log.Trace().Stringer("event", ev.Kind).Int("id", ev.ID).Stringer("state", state).Msg("hotkey event")

	if ev.ID == hotkey.CancelID {
		if ev.Kind == hotkey.Pressed && state != StateIdle {
			c.cancel()
		}
		return
	}

	switch {
	case ev.Kind == hotkey.Pressed && state == StateIdle:
		c.start(ctx)
	case ev.Kind == hotkey.Released && state == StateRecording:
		c.setState(StateDraining)
		c.drain = time.NewTimer(c.opts.DrainDelay)
		c.log.Debug().Str("session", c.session).Dur("drain", c.opts.DrainDelay).Msg("draining")
	default:
		c.log.Debug().Stringer("event", ev.Kind).Stringer("state", state).Msg("event ignored")
	}
}

func (c *Controller) start(ctx context.Context) {
	c.session = strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	if err := c.rec.Start(ctx); err != nil {
		c.report(Report{Session: c.session, Outcome: CaptureFailed, Stage: StageStart, Err: err})
		return
	}
	c.setState(StateRecording)
	c.log.Info().Str("session", c.session).Msg("recording")
	c.notifier.Notify("Recording")
}

func (c *Controller) finishDrain(ctx context.Context) {
	c.drain = nil
	session := c.session
	art, err := c.rec.Stop()
	c.setState(StateIdle)
	if err != nil {
		c.report(Report{Session: session, Outcome: CaptureFailed, Stage: StageStop, Err: err})
		return
	}
	c.log.Debug().Str("session", session).Dur("audio", art.Duration).Str("path", art.Path).Msg("processing")

	// Pipelines outlive shutdown requests; Run waits for them.
	pctx := context.WithoutCancel(ctx)
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.report(c.pipe.Process(pctx, session, art))
	}()
}

func (c *Controller) cancel() {
	c.stopDrainTimer()
	err := c.rec.Abort()
	c.setState(StateIdle)
	r := Report{Session: c.session, Outcome: Canceled}
	if err != nil {
		r.Err = err
	}
	c.report(r)
}

func (c *Controller) stopDrainTimer() {
	if c.drain != nil {
		c.drain.Stop()
		c.drain = nil
	}
}

func (c *Controller) shutdown(ctx context.Context) {
	switch c.State() {
	case StateDraining:
		// The key was already released; the recording is complete.
		c.stopDrainTimer()
		c.finishDrain(ctx)
	case StateRecording:
		if err := c.rec.Abort(); err != nil {
			c.log.Warn().Err(err).Msg("abort capture failed")
		}
		c.setState(StateIdle)
	}
	c.wg.Wait()
	if err := c.pipe.Close(); err != nil {
		c.log.Warn().Err(err).Msg("engine close failed")
	}
	c.log.Debug().Msg("controller stopped")
}

func (c *Controller) report(r Report) {
	var ev *zerolog.Event
	switch r.Outcome {
	case Delivered:
		ev = c.log.Info().Int("chars", len(r.Text)).Bool("cleaned", r.CleanupErr == nil && r.Text != r.Raw)
	case NoSpeech, Canceled:
		ev = c.log.Info()
	default:
		ev = c.log.Error().Str("stage", r.Stage)
	}
	ev.Str("session", r.Session).
		Stringer("outcome", r.Outcome).
		Dur("audio", r.Audio).
		Dur("elapsed", r.Elapsed).
		Err(r.Err).
		Msg("session finished")

	c.notifier.Notify(r.Message())
	if c.opts.OnReport != nil {
		c.opts.OnReport(r)
	}
}
