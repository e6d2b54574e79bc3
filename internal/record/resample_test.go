package record

import "testing"

func TestResampleIdentity(t *testing.T) {
	in := []float32{0.1, 0.2, -0.3, 0.4}
	got := Resample(in, 16000, 16000)
	if len(got) != len(in) {
		t.Fatalf("expected %d samples, got %d", len(in), len(got))
	}
	for i := range in {
		if got[i] != in[i] {
			t.Fatalf("sample %d changed: %v -> %v", i, in[i], got[i])
		}
	}
}

func TestResampleLength(t *testing.T) {
	cases := []struct {
		n, from, to, want int
	}{
		{48000, 48000, 16000, 16000},
		{44100, 44100, 16000, 16000},
		{1000, 44100, 16000, 362},
		{10, 8000, 16000, 20},
		{0, 48000, 16000, 0},
	}
	for _, tc := range cases {
		got := Resample(make([]float32, tc.n), tc.from, tc.to)
		if len(got) != tc.want {
			t.Errorf("%d samples %d->%d: expected %d, got %d", tc.n, tc.from, tc.to, tc.want, len(got))
		}
	}
}

func TestResampleInterpolates(t *testing.T) {
	got := Resample([]float32{0, 1, 2, 3}, 2, 4)
	want := []float32{0, 0.5, 1, 1.5, 2, 2.5, 3, 3}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, got)
		}
	}
}

func TestResampleBoundaryHoldsLastSample(t *testing.T) {
	in := []float32{0, 1, 2, 3}
	got := Resample(in, 3, 4)
	if len(got) != 5 {
		t.Fatalf("expected 5 samples, got %d", len(got))
	}
	if last := got[len(got)-1]; last != in[len(in)-1] {
		t.Fatalf("expected last sample %v, got %v", in[len(in)-1], last)
	}
}

func TestInterpolatePastEndIsSilence(t *testing.T) {
	in := []float32{0.5, 0.7}
	if got := interpolate(in, 1.5); got != 0.7 {
		t.Fatalf("expected final sample 0.7, got %v", got)
	}
	if got := interpolate(in, 2); got != 0 {
		t.Fatalf("expected silence, got %v", got)
	}
	if got := interpolate(nil, 0); got != 0 {
		t.Fatalf("expected silence for empty input, got %v", got)
	}
}
