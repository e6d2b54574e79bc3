package record

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// TempPrefix marks artifacts written by the recorder so stale ones can be
// swept at startup.
const TempPrefix = "RecordTemp_"

var (
	// ErrNoInputDevice means no default capture device is available.
	ErrNoInputDevice = errors.New("no input device available")
	// ErrUnsupportedFormat means the device or configured sample format cannot be captured.
	ErrUnsupportedFormat = errors.New("unsupported sample format")
	// ErrNotIdle is returned by Start while a capture is running.
	ErrNotIdle = errors.New("recorder not idle")
	// ErrNotRecording is returned by Stop and Abort without a running capture.
	ErrNotRecording = errors.New("recorder not running")
)

// CaptureError reports a driver failure while a stream was running.
type CaptureError struct {
	Op  string
	Err error
}

func (e *CaptureError) Error() string {
	return fmt.Sprintf("capture %s failed: %v", e.Op, e.Err)
}

func (e *CaptureError) Unwrap() error { return e.Err }

// State represents recorder state.
type State int

const (
	StateIdle State = iota
	StateRecording
)

// Format is the sample encoding a stream delivers.
type Format int

const (
	FormatFloat32 Format = iota
	FormatInt16
	FormatInt32
)

// ParseFormat maps "f32", "s16" and "s32" to a Format.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "f32", "float32", "":
		return FormatFloat32, nil
	case "s16", "i16", "int16":
		return FormatInt16, nil
	case "s32", "i32", "int32":
		return FormatInt32, nil
	}
	return 0, fmt.Errorf("%w: %s", ErrUnsupportedFormat, s)
}

func (f Format) String() string {
	switch f {
	case FormatFloat32:
		return "f32"
	case FormatInt16:
		return "s16"
	case FormatInt32:
		return "s32"
	}
	return fmt.Sprintf("Format(%d)", int(f))
}

// DeviceInfo describes the stream a backend opened.
type DeviceInfo struct {
	Name       string
	SampleRate int
	Channels   int
	Format     Format
}

// Stream is an opened capture stream.
type Stream interface {
	Start() error
	// Stop deregisters the callback. Chunks already in flight may still land.
	Stop() error
	Close() error
}

// Backend opens the default input device and delivers its chunks to sink.
type Backend interface {
	Open(newSink func(DeviceInfo) Sink) (Stream, DeviceInfo, error)
}

// Artifact is a finished recording on disk. The receiver owns Path and must
// remove it on every exit path.
type Artifact struct {
	Path       string
	Samples    int
	SampleRate int
	Duration   time.Duration
}

// Options configures a Recorder.
type Options struct {
	TempDir    string
	TargetRate int
	GraceDelay time.Duration
}

// Recorder owns the capture device and turns one capture into an Artifact.
type Recorder struct {
	mu      sync.Mutex
	state   State
	backend Backend
	opts    Options
	log     zerolog.Logger

	stream  Stream
	info    DeviceInfo
	buf     *Buffer
	started time.Time
}

// New creates a recorder.
func New(backend Backend, opts Options, log zerolog.Logger) *Recorder {
	if opts.TargetRate <= 0 {
		opts.TargetRate = 16000
	}
	return &Recorder{backend: backend, opts: opts, log: log, state: StateIdle}
}

// Start opens the default input device and begins capture.
func (r *Recorder) Start(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state != StateIdle {
		return ErrNotIdle
	}

	var buf *Buffer
	stream, info, err := r.backend.Open(func(info DeviceInfo) Sink {
		buf = NewBuffer(info.Channels)
		return buf
	})
	if err != nil {
		return err
	}
	if buf == nil {
		_ = stream.Close()
		return fmt.Errorf("backend opened %q without a sink", info.Name)
	}
	if err := stream.Start(); err != nil {
		_ = stream.Close()
		return &CaptureError{Op: "start", Err: err}
	}

	r.log.Debug().
		Str("device", info.Name).
		Int("rate", info.SampleRate).
		Int("channels", info.Channels).
		Stringer("format", info.Format).
		Msg("capture started")

	r.stream = stream
	r.info = info
	r.buf = buf
	r.started = time.Now()
	r.state = StateRecording
	return nil
}

// Stop ends capture, resamples the buffer to the target rate and writes the
// artifact.
func (r *Recorder) Stop() (Artifact, error) {
	samples, info, err := r.finish()
	if err != nil {
		return Artifact{}, err
	}

	resampled := Resample(samples, info.SampleRate, r.opts.TargetRate)
	path := r.tempPath()
	if err := WriteWAV(path, resampled, r.opts.TargetRate); err != nil {
		return Artifact{}, err
	}

	art := Artifact{
		Path:       path,
		Samples:    len(resampled),
		SampleRate: r.opts.TargetRate,
		Duration:   time.Duration(float64(len(resampled)) / float64(r.opts.TargetRate) * float64(time.Second)),
	}
	r.log.Debug().
		Int("samples_in", len(samples)).
		Int("rate_in", info.SampleRate).
		Int("samples_out", art.Samples).
		Int("rate_out", art.SampleRate).
		Dur("duration", art.Duration).
		Str("path", path).
		Msg("capture stopped")
	return art, nil
}

// Abort ends capture and discards the samples.
func (r *Recorder) Abort() error {
	samples, _, err := r.finish()
	if err != nil {
		return err
	}
	r.log.Debug().Int("samples", len(samples)).Msg("capture discarded")
	return nil
}

// State returns the current recorder state.
func (r *Recorder) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// finish deregisters the callback, waits out in-flight chunks and seals the
// buffer. The recorder is idle again afterwards, even on error.
func (r *Recorder) finish() ([]float32, DeviceInfo, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state != StateRecording {
		return nil, DeviceInfo{}, ErrNotRecording
	}

	stream, buf, info := r.stream, r.buf, r.info
	r.stream, r.buf = nil, nil
	r.state = StateIdle

	stopErr := stream.Stop()
	if r.opts.GraceDelay > 0 {
		time.Sleep(r.opts.GraceDelay)
	}
	samples := buf.Seal()
	closeErr := stream.Close()

	if stopErr != nil {
		return nil, info, &CaptureError{Op: "stop", Err: stopErr}
	}
	if closeErr != nil {
		return nil, info, &CaptureError{Op: "close", Err: closeErr}
	}
	return samples, info, nil
}

func (r *Recorder) tempPath() string {
	id := strings.ReplaceAll(uuid.New().String(), "-", "")[:16]
	dir := r.opts.TempDir
	if dir == "" {
		dir = os.TempDir()
	}
	return filepath.Join(dir, TempPrefix+id+".wav")
}
