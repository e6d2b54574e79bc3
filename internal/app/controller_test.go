package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"ptt/internal/asr"
	"ptt/internal/cleanup"
	"ptt/internal/hotkey"
	"ptt/internal/record"
)

type fakeSource struct {
	events chan hotkey.Event
}

func newFakeSource() *fakeSource { return &fakeSource{events: make(chan hotkey.Event, 16)} }

func (s *fakeSource) Events() <-chan hotkey.Event { return s.events }
func (s *fakeSource) Close() error                { return nil }

func (s *fakeSource) press(id int)   { s.events <- hotkey.Event{Kind: hotkey.Pressed, ID: id} }
func (s *fakeSource) release(id int) { s.events <- hotkey.Event{Kind: hotkey.Released, ID: id} }

type fakeRecorder struct {
	dir      string
	startErr error
	starts   atomic.Int32
	stops    atomic.Int32
	aborts   atomic.Int32
	paths    []string
	mu       sync.Mutex
}

func (r *fakeRecorder) Start(ctx context.Context) error {
	if r.startErr != nil {
		return r.startErr
	}
	r.starts.Add(1)
	return nil
}

func (r *fakeRecorder) Stop() (record.Artifact, error) {
	n := r.stops.Add(1)
	path := filepath.Join(r.dir, fmt.Sprintf("%s%d.wav", record.TempPrefix, n))
	if err := os.WriteFile(path, []byte("RIFF"), 0o644); err != nil {
		return record.Artifact{}, err
	}
	r.mu.Lock()
	r.paths = append(r.paths, path)
	r.mu.Unlock()
	return record.Artifact{Path: path, SampleRate: 16000, Duration: time.Second}, nil
}

func (r *fakeRecorder) Abort() error {
	r.aborts.Add(1)
	return nil
}

type fakeTranscriber struct {
	text    string
	err     error
	gate    chan struct{}
	calls   atomic.Int32
	closed  atomic.Bool
	closeAt atomic.Int64
	doneAt  atomic.Int64
}

func (f *fakeTranscriber) Transcribe(ctx context.Context, path string, release asr.Release) (asr.Transcript, error) {
	f.calls.Add(1)
	if f.gate != nil {
		<-f.gate
	}
	defer f.doneAt.Store(time.Now().UnixNano())
	tr, err := asr.Transcript{Text: f.text, Raw: []byte(`{"text":"` + f.text + `"}`)}, f.err
	if err != nil {
		tr = asr.Transcript{}
	}
	if release != nil {
		release(tr, err)
	}
	return tr, err
}

func (f *fakeTranscriber) Close() error {
	f.closed.Store(true)
	f.closeAt.Store(time.Now().UnixNano())
	return nil
}

type fakeCleaner struct {
	out   string
	err   error
	calls atomic.Int32
}

func (c *fakeCleaner) Process(ctx context.Context, text string) (string, error) {
	c.calls.Add(1)
	return c.out, c.err
}

type fakeDeliverer struct {
	mu    sync.Mutex
	texts []string
	err   error
}

func (d *fakeDeliverer) Deliver(ctx context.Context, text string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.texts = append(d.texts, text)
	return d.err
}

func (d *fakeDeliverer) delivered() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.texts...)
}

type harness struct {
	src     *fakeSource
	rec     *fakeRecorder
	tr      *fakeTranscriber
	out     *fakeDeliverer
	ctrl    *Controller
	reports chan Report
	cancel  context.CancelFunc
	done    chan error
}

func startHarness(t *testing.T, tr *fakeTranscriber, cleaner Cleaner) *harness {
	t.Helper()
	return startHarnessDrain(t, tr, cleaner, 10*time.Millisecond)
}

func startHarnessDrain(t *testing.T, tr *fakeTranscriber, cleaner Cleaner, drain time.Duration) *harness {
	t.Helper()
	h := &harness{
		src:     newFakeSource(),
		rec:     &fakeRecorder{dir: t.TempDir()},
		tr:      tr,
		out:     &fakeDeliverer{},
		reports: make(chan Report, 16),
		done:    make(chan error, 1),
	}
	cache := NewArtifactCache("", false, zerolog.Nop())
	pipe := NewPipeline(tr, cleaner, h.out, cache, zerolog.Nop())
	h.ctrl = NewController(h.rec, pipe, nil, Options{
		DrainDelay: drain,
		OnReport:   func(r Report) { h.reports <- r },
	}, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	h.cancel = cancel
	go func() { h.done <- h.ctrl.Run(ctx, h.src) }()
	t.Cleanup(func() {
		cancel()
		if tr.gate != nil {
			select {
			case <-tr.gate:
			default:
				close(tr.gate)
			}
		}
		<-h.done
	})
	return h
}

func (h *harness) report(t *testing.T) Report {
	t.Helper()
	select {
	case r := <-h.reports:
		return r
	case <-time.After(2 * time.Second):
		t.Fatalf("no report")
		return Report{}
	}
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(2 * time.Millisecond)
	}
}

func TestPressedWhileRecordingIsNoop(t *testing.T) {
	h := startHarness(t, &fakeTranscriber{text: "hi"}, nil)
	h.src.press(hotkey.TalkID)
	waitFor(t, "recording", func() bool { return h.ctrl.State() == StateRecording })

	h.src.press(hotkey.TalkID)
	h.src.press(hotkey.TalkID)
	time.Sleep(20 * time.Millisecond)

	if n := h.rec.starts.Load(); n != 1 {
		t.Fatalf("expected 1 start, got %d", n)
	}
	if h.ctrl.State() != StateRecording {
		t.Fatalf("expected recording, got %v", h.ctrl.State())
	}
}

func TestReleasedWhileIdleIsNoop(t *testing.T) {
	h := startHarness(t, &fakeTranscriber{text: "hi"}, nil)
	h.src.release(hotkey.TalkID)
	time.Sleep(30 * time.Millisecond)

	if h.rec.starts.Load() != 0 || h.rec.stops.Load() != 0 {
		t.Fatalf("released while idle touched the recorder")
	}
	if h.ctrl.State() != StateIdle {
		t.Fatalf("expected idle, got %v", h.ctrl.State())
	}
}

func TestFullSession(t *testing.T) {
	h := startHarness(t, &fakeTranscriber{text: "hello world"}, nil)
	h.src.press(hotkey.TalkID)
	h.src.release(hotkey.TalkID)

	r := h.report(t)
	if r.Outcome != Delivered || r.Text != "hello world" {
		t.Fatalf("unexpected report %+v", r)
	}
	if got := h.out.delivered(); len(got) != 1 || got[0] != "hello world" {
		t.Fatalf("unexpected deliveries %v", got)
	}
	if h.ctrl.State() != StateIdle {
		t.Fatalf("expected idle, got %v", h.ctrl.State())
	}
	for _, p := range h.rec.paths {
		if _, err := os.Stat(p); !os.IsNotExist(err) {
			t.Fatalf("artifact %s not removed", p)
		}
	}
}

func TestDrainDelaysStop(t *testing.T) {
	h := startHarness(t, &fakeTranscriber{text: "tail"}, nil)
	h.ctrl.opts.DrainDelay = 80 * time.Millisecond

	h.src.press(hotkey.TalkID)
	h.src.release(hotkey.TalkID)
	waitFor(t, "draining", func() bool { return h.ctrl.State() == StateDraining })
	if h.rec.stops.Load() != 0 {
		t.Fatalf("capture stopped before the drain delay")
	}
	h.report(t)
	if h.rec.stops.Load() != 1 {
		t.Fatalf("expected 1 stop, got %d", h.rec.stops.Load())
	}
}

func TestEmptyTranscriptSkipsCleanupAndOutput(t *testing.T) {
	cl := &fakeCleaner{out: "cleaned"}
	h := startHarness(t, &fakeTranscriber{err: asr.ErrNoSpeech}, cl)
	h.src.press(hotkey.TalkID)
	h.src.release(hotkey.TalkID)

	r := h.report(t)
	if r.Outcome != NoSpeech || r.Err != nil {
		t.Fatalf("expected no-speech report, got %+v", r)
	}
	if cl.calls.Load() != 0 || len(h.out.delivered()) != 0 {
		t.Fatalf("no-speech session reached cleanup or output")
	}
	if r.Message() != "No speech detected" {
		t.Fatalf("unexpected message %q", r.Message())
	}
}

func TestCleanupExhaustionFallsBackToRaw(t *testing.T) {
	last := errors.New("connection refused")
	cl := &fakeCleaner{err: &cleanup.RetryExhaustedError{Attempts: 3, Err: last}}
	h := startHarness(t, &fakeTranscriber{text: "um raw text"}, cl)
	h.src.press(hotkey.TalkID)
	h.src.release(hotkey.TalkID)

	r := h.report(t)
	if r.Outcome != Delivered || r.Err != nil {
		t.Fatalf("expected delivered report, got %+v", r)
	}
	if got := h.out.delivered(); len(got) != 1 || got[0] != "um raw text" {
		t.Fatalf("expected raw transcript delivered, got %v", got)
	}
	if !errors.Is(r.CleanupErr, last) {
		t.Fatalf("expected cleanup error recorded, got %v", r.CleanupErr)
	}
}

func TestCleanedTextIsDelivered(t *testing.T) {
	cl := &fakeCleaner{out: "Raw text."}
	h := startHarness(t, &fakeTranscriber{text: "um raw text"}, cl)
	h.src.press(hotkey.TalkID)
	h.src.release(hotkey.TalkID)

	r := h.report(t)
	if r.Text != "Raw text." || r.Raw != "um raw text" {
		t.Fatalf("unexpected report %+v", r)
	}
}

func TestEngineFailureIsReported(t *testing.T) {
	h := startHarness(t, &fakeTranscriber{err: &asr.EngineError{Engine: "http", Err: errors.New("503")}}, nil)
	h.src.press(hotkey.TalkID)
	h.src.release(hotkey.TalkID)

	r := h.report(t)
	if r.Outcome != TranscriptionFailed || r.Stage != StageTranscribe {
		t.Fatalf("unexpected report %+v", r)
	}
	if len(h.out.delivered()) != 0 {
		t.Fatalf("failed transcription reached output")
	}

	// The controller keeps serving sessions.
	h.tr.err = nil
	h.tr.text = "second"
	h.src.press(hotkey.TalkID)
	h.src.release(hotkey.TalkID)
	if r := h.report(t); r.Outcome != Delivered {
		t.Fatalf("expected second session delivered, got %+v", r)
	}
}

func TestOutputFailureIsReported(t *testing.T) {
	h := startHarness(t, &fakeTranscriber{text: "x"}, nil)
	h.out.err = errors.New("wtype missing")
	h.src.press(hotkey.TalkID)
	h.src.release(hotkey.TalkID)

	r := h.report(t)
	if r.Outcome != OutputFailed || r.Message() != "Error: Failed to output text" {
		t.Fatalf("unexpected report %+v", r)
	}
}

func TestStartFailureStaysIdle(t *testing.T) {
	h := startHarness(t, &fakeTranscriber{text: "x"}, nil)
	h.rec.startErr = record.ErrNoInputDevice
	h.src.press(hotkey.TalkID)

	r := h.report(t)
	if r.Outcome != CaptureFailed || r.Stage != StageStart || !errors.Is(r.Err, record.ErrNoInputDevice) {
		t.Fatalf("unexpected report %+v", r)
	}
	if h.ctrl.State() != StateIdle {
		t.Fatalf("expected idle, got %v", h.ctrl.State())
	}
}

func TestCancelAbortsRecording(t *testing.T) {
	h := startHarness(t, &fakeTranscriber{text: "x"}, nil)
	h.src.press(hotkey.TalkID)
	h.src.press(hotkey.CancelID)

	r := h.report(t)
	if r.Outcome != Canceled {
		t.Fatalf("expected canceled, got %+v", r)
	}
	h.src.release(hotkey.TalkID)
	time.Sleep(30 * time.Millisecond)

	if h.rec.aborts.Load() != 1 || h.rec.stops.Load() != 0 || h.tr.calls.Load() != 0 {
		t.Fatalf("cancel should abort without processing (aborts=%d stops=%d calls=%d)",
			h.rec.aborts.Load(), h.rec.stops.Load(), h.tr.calls.Load())
	}
}

func TestCancelWhileIdleIsNoop(t *testing.T) {
	h := startHarness(t, &fakeTranscriber{text: "x"}, nil)
	h.src.press(hotkey.CancelID)
	time.Sleep(20 * time.Millisecond)
	if h.rec.aborts.Load() != 0 {
		t.Fatalf("cancel while idle aborted")
	}
}

func TestNewSessionWhileProcessing(t *testing.T) {
	tr := &fakeTranscriber{text: "first", gate: make(chan struct{})}
	h := startHarness(t, tr, nil)

	h.src.press(hotkey.TalkID)
	h.src.release(hotkey.TalkID)
	waitFor(t, "transcription in flight", func() bool { return tr.calls.Load() == 1 })

	h.src.press(hotkey.TalkID)
	waitFor(t, "second recording", func() bool { return h.ctrl.State() == StateRecording })
	if h.rec.starts.Load() != 2 {
		t.Fatalf("expected 2 starts, got %d", h.rec.starts.Load())
	}
	close(tr.gate)
	if r := h.report(t); r.Outcome != Delivered {
		t.Fatalf("unexpected report %+v", r)
	}
}

func TestShutdownLatency(t *testing.T) {
	h := startHarness(t, &fakeTranscriber{text: "x"}, nil)
	time.Sleep(10 * time.Millisecond)

	start := time.Now()
	h.cancel()
	select {
	case err := <-h.done:
		h.done <- err
		if err != nil {
			t.Fatalf("expected clean shutdown, got %v", err)
		}
	case <-time.After(150 * time.Millisecond):
		t.Fatalf("controller did not stop within one poll interval")
	}
	if elapsed := time.Since(start); elapsed > 150*time.Millisecond {
		t.Fatalf("shutdown took %v", elapsed)
	}
	if !h.tr.closed.Load() {
		t.Fatalf("engine not released")
	}
}

func TestShutdownAbortsRecording(t *testing.T) {
	h := startHarness(t, &fakeTranscriber{text: "x"}, nil)
	h.src.press(hotkey.TalkID)
	waitFor(t, "recording", func() bool { return h.ctrl.State() == StateRecording })

	h.cancel()
	err := <-h.done
	h.done <- err
	if h.rec.aborts.Load() != 1 {
		t.Fatalf("expected capture to be aborted on shutdown")
	}
}

func TestShutdownWhileDrainingDeliversRecording(t *testing.T) {
	h := startHarnessDrain(t, &fakeTranscriber{text: "released"}, nil, 200*time.Millisecond)
	h.src.press(hotkey.TalkID)
	waitFor(t, "recording", func() bool { return h.ctrl.State() == StateRecording })
	h.src.release(hotkey.TalkID)
	waitFor(t, "draining", func() bool { return h.ctrl.State() == StateDraining })

	h.cancel()
	err := <-h.done
	h.done <- err
	if err != nil {
		t.Fatalf("expected clean shutdown, got %v", err)
	}

	if got := h.rec.stops.Load(); got != 1 {
		t.Fatalf("expected 1 stop, got %d", got)
	}
	if got := h.rec.aborts.Load(); got != 0 {
		t.Fatalf("released recording was aborted")
	}
	if got := h.tr.calls.Load(); got != 1 {
		t.Fatalf("expected 1 transcription, got %d", got)
	}
	if r := h.report(t); r.Outcome != Delivered || r.Text != "released" {
		t.Fatalf("unexpected report %+v", r)
	}
	if !h.tr.closed.Load() {
		t.Fatalf("engine not released")
	}
}

func TestShutdownWaitsForInFlightSession(t *testing.T) {
	tr := &fakeTranscriber{text: "late", gate: make(chan struct{})}
	h := startHarness(t, tr, nil)
	h.src.press(hotkey.TalkID)
	h.src.release(hotkey.TalkID)
	waitFor(t, "transcription in flight", func() bool { return tr.calls.Load() == 1 })

	h.cancel()
	time.Sleep(30 * time.Millisecond)
	if tr.closed.Load() {
		t.Fatalf("engine released while a session was in flight")
	}
	close(tr.gate)
	err := <-h.done
	h.done <- err

	if r := h.report(t); r.Outcome != Delivered {
		t.Fatalf("in-flight session should complete, got %+v", r)
	}
	if tr.closeAt.Load() < tr.doneAt.Load() {
		t.Fatalf("engine closed before the in-flight call finished")
	}
}

func TestListenerDisconnectIsFatal(t *testing.T) {
	h := startHarness(t, &fakeTranscriber{text: "x"}, nil)
	close(h.src.events)

	select {
	case err := <-h.done:
		h.done <- err
		if !errors.Is(err, ErrListenerDisconnected) {
			t.Fatalf("expected ErrListenerDisconnected, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatalf("controller kept running after disconnect")
	}
}
