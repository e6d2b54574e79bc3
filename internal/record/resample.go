package record

import "slices"

// Resample converts mono samples from one rate to another by linear
// interpolation. The output holds floor(len(samples) * to / from) samples.
func Resample(samples []float32, from, to int) []float32 {
	if from == to || from <= 0 || to <= 0 {
		return slices.Clone(samples)
	}

	ratio := float64(from) / float64(to)
	n := int(int64(len(samples)) * int64(to) / int64(from))
	out := make([]float32, n)
	for i := range out {
		out[i] = interpolate(samples, float64(i)*ratio)
	}
	return out
}

// interpolate blends the two samples bracketing pos. Past the last pair it
// holds the final sample, and past the end it yields silence.
func interpolate(samples []float32, pos float64) float32 {
	idx := int(pos)
	frac := float32(pos - float64(idx))
	switch {
	case idx+1 < len(samples):
		return samples[idx]*(1-frac) + samples[idx+1]*frac
	case idx < len(samples):
		return samples[idx]
	default:
		return 0
	}
}
