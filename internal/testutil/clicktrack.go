// Package testutil generates deterministic synthetic audio for tests.
package testutil

import "math"

// ClickOptions describes a metronome-like click track.
type ClickOptions struct {
	SampleRate  int
	BPM         float64
	Duration    float64 // seconds
	Offset      float64 // seconds before the first click
	ClickLength float64 // seconds
	Amplitude   float64
	Seed        uint32
}

// DefaultClicks is a 10 s, 120 BPM track at 22.05 kHz.
func DefaultClicks() ClickOptions {
	return ClickOptions{
		SampleRate:  22050,
		BPM:         120,
		Duration:    10,
		Offset:      0.25,
		ClickLength: 0.01,
		Amplitude:   0.8,
		Seed:        1,
	}
}

// ClickTrack renders short decaying noise bursts every 60/BPM seconds over
// silence. The same options always render the same samples.
func ClickTrack(o ClickOptions) []float64 {
	n := int(o.Duration * float64(o.SampleRate))
	out := make([]float64, n)
	clickLen := max(1, int(o.ClickLength*float64(o.SampleRate)))
	decay := float64(clickLen) / 5

	rng := lcg(o.Seed)
	interval := 60.0 / o.BPM
	for t := o.Offset; ; t += interval {
		start := int(math.Round(t * float64(o.SampleRate)))
		if start >= n {
			break
		}
		for k := 0; k < clickLen && start+k < n; k++ {
			out[start+k] += o.Amplitude * rng() * math.Exp(-float64(k)/decay)
		}
	}
	return out
}

// Silence returns seconds of zeros.
func Silence(sampleRate int, seconds float64) []float64 {
	return make([]float64, int(seconds*float64(sampleRate)))
}

// lcg yields uniform noise in [-1, 1).
func lcg(seed uint32) func() float64 {
	state := seed
	return func() float64 {
		state = state*1664525 + 1013904223
		return float64(state)/float64(1<<31) - 1
	}
}
