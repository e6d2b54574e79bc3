// Package ffmpeg converts arbitrary audio files into the canonical artifact
// format (mono 16-bit PCM WAV at a fixed rate).
package ffmpeg

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
)

// Binary is the ffmpeg executable looked up on PATH.
var Binary = "ffmpeg"

// Args returns the ffmpeg arguments that convert inPath to a mono pcm_s16le
// WAV at rate.
func Args(inPath, outPath string, rate int) []string {
	return []string{
		"-y", "-hide_banner", "-loglevel", "error",
		"-i", inPath,
		"-ac", "1",
		"-ar", strconv.Itoa(rate),
		"-c:a", "pcm_s16le",
		"-f", "wav",
		outPath,
	}
}

// Convert runs ffmpeg and returns its stderr on failure.
func Convert(ctx context.Context, inPath, outPath string, rate int, log zerolog.Logger) error {
	if rate <= 0 {
		return fmt.Errorf("invalid sample rate %d", rate)
	}
	args := Args(inPath, outPath, rate)
	log.Debug().Str("cmd", Binary+" "+strings.Join(args, " ")).Msg("ffmpeg executing")

	cmd := exec.CommandContext(ctx, Binary, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("ffmpeg failed: %w\n%s", err, strings.TrimSpace(stderr.String()))
	}
	return nil
}
