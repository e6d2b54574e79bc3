package cleanup

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/rs/zerolog"

	"ptt/internal/config"
)

// ErrEmptyCompletion is returned when the service answered with no text.
var ErrEmptyCompletion = errors.New("empty completion")

// RetryExhaustedError is returned once every attempt has failed. Err is the
// error of the last attempt.
type RetryExhaustedError struct {
	Attempts int
	Err      error
}

func (e *RetryExhaustedError) Error() string {
	return fmt.Sprintf("cleanup failed after %d attempts: %v", e.Attempts, e.Err)
}

func (e *RetryExhaustedError) Unwrap() error { return e.Err }

// Completer performs one completion request. Implementations must not reuse
// connections between calls.
type Completer interface {
	Name() string
	Complete(ctx context.Context, system, input string) (string, error)
}

// PostProcessor rewrites transcripts through a Completer with bounded retries.
type PostProcessor struct {
	completer Completer
	prompt    string
	attempts  int
	backoff   time.Duration
	log       zerolog.Logger
}

// New creates a PostProcessor from the cleanup configuration.
func New(completer Completer, cfg config.CleanupConfig, log zerolog.Logger) *PostProcessor {
	attempts := cfg.Attempts
	if attempts <= 0 {
		attempts = 3
	}
	prompt := cfg.Prompt
	if prompt == "" {
		prompt = config.DefaultCleanupPrompt
	}
	return &PostProcessor{
		completer: completer,
		prompt:    prompt,
		attempts:  attempts,
		backoff:   cfg.Backoff,
		log:       log,
	}
}

// Process returns the cleaned text. The first attempt runs immediately and
// each retry waits the configured backoff.
func (p *PostProcessor) Process(ctx context.Context, text string) (string, error) {
	tries := 0
	operation := func() (string, error) {
		tries++
		out, err := p.completer.Complete(ctx, p.prompt, text)
		if err != nil {
			return "", err
		}
		out = strings.TrimSpace(out)
		if out == "" {
			return "", ErrEmptyCompletion
		}
		return out, nil
	}
	notify := func(err error, wait time.Duration) {
		p.log.Debug().
			Err(err).
			Int("attempt", tries).
			Int("max_attempts", p.attempts).
			Dur("backoff", wait).
			Msg("cleanup attempt failed")
	}

	start := time.Now()
	out, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(backoff.NewConstantBackOff(p.backoff)),
		backoff.WithMaxTries(uint(p.attempts)),
		backoff.WithNotify(notify),
	)
	if err != nil {
		if tries >= p.attempts {
			return "", &RetryExhaustedError{Attempts: tries, Err: err}
		}
		return "", err
	}
	p.log.Debug().
		Str("completer", p.completer.Name()).
		Int("attempts", tries).
		Dur("elapsed", time.Since(start)).
		Msg("cleanup done")
	return out, nil
}
