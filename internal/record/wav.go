package record

import (
	"fmt"
	"math"
	"os"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

const (
	bitDepth      = 16
	wavFormatPCM  = 1
	artifactChans = 1
)

// WriteWAV serializes mono samples in [-1,1] as a 16-bit PCM WAV file. An
// empty input still produces a valid file with an empty data chunk.
func WriteWAV(path string, samples []float32, sampleRate int) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create wav failed: %w", err)
	}

	enc := wav.NewEncoder(f, sampleRate, bitDepth, artifactChans, wavFormatPCM)
	data := make([]int, len(samples))
	for i, s := range samples {
		data[i] = int(quantize(s))
	}
	buf := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: artifactChans, SampleRate: sampleRate},
		Data:           data,
		SourceBitDepth: bitDepth,
	}
	if err := enc.Write(buf); err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return fmt.Errorf("wav write failed: %w", err)
	}
	if err := enc.Close(); err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return fmt.Errorf("wav close failed: %w", err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(path)
		return fmt.Errorf("wav close failed: %w", err)
	}
	return nil
}

// quantize scales a float sample to the int16 range, clamping out-of-range input.
func quantize(s float32) int16 {
	v := float64(s) * math.MaxInt16
	switch {
	case v > math.MaxInt16:
		return math.MaxInt16
	case v < math.MinInt16:
		return math.MinInt16
	default:
		return int16(v)
	}
}
