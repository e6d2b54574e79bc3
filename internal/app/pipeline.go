package app

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"ptt/internal/asr"
	"ptt/internal/record"
)

// Transcriber is the single-flight transcription stage.
type Transcriber interface {
	Transcribe(ctx context.Context, path string, release asr.Release) (asr.Transcript, error)
	Close() error
}

// Cleaner rewrites a transcript.
type Cleaner interface {
	Process(ctx context.Context, text string) (string, error)
}

// Deliverer hands final text to its sinks.
type Deliverer interface {
	Deliver(ctx context.Context, text string) error
}

// Pipeline runs transcription, optional cleanup and output for one artifact.
type Pipeline struct {
	transcriber Transcriber
	cleaner     Cleaner
	out         Deliverer
	cache       *ArtifactCache
	log         zerolog.Logger
}

// NewPipeline creates a pipeline. cleaner may be nil.
func NewPipeline(t Transcriber, cleaner Cleaner, out Deliverer, cache *ArtifactCache, log zerolog.Logger) *Pipeline {
	return &Pipeline{transcriber: t, cleaner: cleaner, out: out, cache: cache, log: log}
}

// Process consumes art. The artifact is disposed of on every path, once the
// engine has stopped reading it.
func (p *Pipeline) Process(ctx context.Context, session string, art record.Artifact) Report {
	log := p.log.With().Str("session", session).Logger()
	start := time.Now()
	r := Report{Session: session, Audio: art.Duration}

	tr, err := p.transcriber.Transcribe(ctx, art.Path, func(t asr.Transcript, err error) {
		p.cache.Dispose(art.Path, t.Raw, err == nil)
	})
	if err != nil {
		r.Elapsed = time.Since(start)
		if errors.Is(err, asr.ErrNoSpeech) {
			r.Outcome = NoSpeech
			return r
		}
		r.Outcome, r.Stage, r.Err = TranscriptionFailed, StageTranscribe, err
		return r
	}
	log.Debug().
		Dur("audio", art.Duration).
		Dur("elapsed", tr.Elapsed).
		Int("chars", len(tr.Text)).
		Msg("transcribed")

	r.Raw, r.Text = tr.Text, tr.Text
	if p.cleaner != nil {
		cleaned, err := p.cleaner.Process(ctx, tr.Text)
		if err != nil {
			log.Warn().Err(err).Msg("cleanup failed, using raw transcript")
			r.CleanupErr = err
		} else {
			r.Text = cleaned
		}
	}

	if err := p.out.Deliver(ctx, r.Text); err != nil {
		r.Outcome, r.Stage, r.Err = OutputFailed, StageOutput, err
		r.Elapsed = time.Since(start)
		return r
	}
	r.Outcome = Delivered
	r.Elapsed = time.Since(start)
	return r
}

// Close releases the transcription engine.
func (p *Pipeline) Close() error {
	return p.transcriber.Close()
}
