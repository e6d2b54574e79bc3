package record

import (
	"math"
	"sync"
)

// Sink receives interleaved sample chunks from a capture backend. Backends
// call exactly one of the methods, matching the stream's sample format.
type Sink interface {
	WriteFloat32(data []float32)
	WriteInt16(data []int16)
	WriteInt32(data []int32)
}

// Buffer accumulates mono float32 samples at the device rate. Appends happen
// on the driver's callback thread; the lock is held only to append or to
// seal-and-take.
type Buffer struct {
	mu       sync.Mutex
	channels int
	samples  []float32
	sealed   bool
}

// NewBuffer returns an empty buffer for interleaved input with the given
// channel count.
func NewBuffer(channels int) *Buffer {
	if channels < 1 {
		channels = 1
	}
	return &Buffer{channels: channels}
}

func (b *Buffer) WriteFloat32(data []float32) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.sealed {
		return
	}
	b.samples = appendMono(b.samples, data, b.channels, func(v float32) float32 { return v })
}

func (b *Buffer) WriteInt16(data []int16) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.sealed {
		return
	}
	b.samples = appendMono(b.samples, data, b.channels, normalizeInt16)
}

func (b *Buffer) WriteInt32(data []int32) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.sealed {
		return
	}
	b.samples = appendMono(b.samples, data, b.channels, normalizeInt32)
}

// Seal stops accepting writes and hands the accumulated samples to the
// caller. Chunks delivered after Seal are dropped.
func (b *Buffer) Seal() []float32 {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sealed = true
	out := b.samples
	b.samples = nil
	return out
}

// Len reports the number of mono samples captured so far.
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.samples)
}

// Downmix averages each frame of an interleaved buffer into one mono sample.
// A trailing partial frame is averaged over the samples present.
func Downmix(data []float32, channels int) []float32 {
	return appendMono(make([]float32, 0, len(data)/max(channels, 1)), data, channels, func(v float32) float32 { return v })
}

func appendMono[T float32 | int16 | int32](dst []float32, data []T, channels int, norm func(T) float32) []float32 {
	if channels <= 1 {
		for _, v := range data {
			dst = append(dst, norm(v))
		}
		return dst
	}
	for i := 0; i < len(data); i += channels {
		end := min(i+channels, len(data))
		var sum float32
		for _, v := range data[i:end] {
			sum += norm(v)
		}
		dst = append(dst, sum/float32(end-i))
	}
	return dst
}

func normalizeInt16(v int16) float32 {
	return float32(v) / math.MaxInt16
}

func normalizeInt32(v int32) float32 {
	return float32(float64(v) / math.MaxInt32)
}
