package ffmpeg

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"slices"
	"testing"

	"github.com/go-audio/wav"
	"github.com/rs/zerolog"
)

func TestArgs(t *testing.T) {
	args := Args("in.mp3", "out.wav", 16000)
	want := []string{"-i", "in.mp3", "-ac", "1", "-ar", "16000", "-c:a", "pcm_s16le"}
	for i := 0; i+1 < len(want); i += 2 {
		j := slices.Index(args, want[i])
		if j < 0 || j+1 >= len(args) || args[j+1] != want[i+1] {
			t.Fatalf("missing %s %s in %v", want[i], want[i+1], args)
		}
	}
	if args[len(args)-1] != "out.wav" {
		t.Fatalf("output path must be last: %v", args)
	}
}

func TestConvertRejectsRate(t *testing.T) {
	if err := Convert(context.Background(), "a", "b", 0, zerolog.Nop()); err == nil {
		t.Fatalf("expected error for zero rate")
	}
}

func TestConvertProducesCanonicalWAV(t *testing.T) {
	if _, err := exec.LookPath(Binary); err != nil {
		t.Skip("ffmpeg not installed")
	}
	dir := t.TempDir()
	in := filepath.Join(dir, "tone.wav")
	gen := exec.Command(Binary, "-y", "-loglevel", "error", "-f", "lavfi",
		"-i", "sine=frequency=440:duration=0.5:sample_rate=44100", "-ac", "2", in)
	if err := gen.Run(); err != nil {
		t.Skipf("ffmpeg lavfi unavailable: %v", err)
	}

	out := filepath.Join(dir, "out.wav")
	if err := Convert(context.Background(), in, out, 16000, zerolog.Nop()); err != nil {
		t.Fatalf("Convert failed: %v", err)
	}
	f, err := os.Open(out)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer f.Close()
	dec := wav.NewDecoder(f)
	dec.ReadInfo()
	if dec.SampleRate != 16000 || dec.NumChans != 1 || dec.BitDepth != 16 {
		t.Fatalf("unexpected format rate=%d chans=%d depth=%d", dec.SampleRate, dec.NumChans, dec.BitDepth)
	}
}

func TestConvertReportsFailure(t *testing.T) {
	if _, err := exec.LookPath(Binary); err != nil {
		t.Skip("ffmpeg not installed")
	}
	dir := t.TempDir()
	err := Convert(context.Background(), filepath.Join(dir, "missing.mp3"), filepath.Join(dir, "o.wav"), 16000, zerolog.Nop())
	if err == nil {
		t.Fatalf("expected error for missing input")
	}
}
