package tempo

import (
	"context"
	"testing"

	"github.com/himanishpuri/TempoDNA/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSpectralFlux(t *testing.T) {
	assert.Equal(t, 3.0, SpectralFlux([]float64{1, 2, 3}, []float64{2, 1, 5}))
	assert.Equal(t, 0.0, SpectralFlux([]float64{5, 5}, []float64{1, 2}))
}

func TestSubtractLocalMean(t *testing.T) {
	flat := []float64{2, 2, 2, 2, 2}
	SubtractLocalMean(flat, 2)
	assert.Equal(t, []float64{0, 0, 0, 0, 0}, flat)

	spike := []float64{0, 0, 9, 0, 0}
	SubtractLocalMean(spike, 1)
	assert.Equal(t, []float64{0, 0, 6, 0, 0}, spike)

	clipOnly := []float64{-1, 3, -2}
	SubtractLocalMean(clipOnly, 0)
	assert.Equal(t, []float64{0, 3, 0}, clipOnly)
}

func TestNormalizePeak(t *testing.T) {
	x := []float64{0, 2, 4}
	NormalizePeak(x)
	assert.Equal(t, []float64{0, 0.5, 1}, x)

	z := []float64{0, 0}
	NormalizePeak(z)
	assert.Equal(t, []float64{0, 0}, z)
}

func TestOnsetEnvelopeIsNonNegative(t *testing.T) {
	opts := testutil.DefaultClicks()
	opts.Duration = 4
	samples := testutil.ClickTrack(opts)
	// Add a slow swell so detrending has something to remove.
	for i := range samples {
		samples[i] += 0.05 * float64(i) / float64(len(samples))
	}

	cfg := DefaultConfig()
	fr, err := NewFramer(samples, cfg.FrameLength, cfg.HopSize, cfg.TailPolicy, cfg.Window)
	require.NoError(t, err)
	fe, err := NewFrontEnd(fr, opts.SampleRate, cfg)
	require.NoError(t, err)

	hop := float64(cfg.HopSize) / float64(opts.SampleRate)
	env, err := OnsetEnvelope(context.Background(), fe, hop, cfg.MeanWindow)
	require.NoError(t, err)

	require.Len(t, env, fr.Len(), "envelope is aligned with frame indices")
	assert.Equal(t, 0.0, env[0])
	var peak float64
	for i, v := range env {
		require.GreaterOrEqual(t, v, 0.0, "index %d", i)
		peak = max(peak, v)
	}
	assert.InDelta(t, 1.0, peak, 1e-12)
}

func TestOnsetPeaks(t *testing.T) {
	env := []float64{0, 0.1, 1, 0.1, 0, 0, 0.05, 0, 0, 0.9, 0.2, 0}
	got := OnsetPeaks(env, 2, 0.5)
	assert.Equal(t, []int{2, 9}, got)

	// Peaks closer than minSep collapse onto the stronger one.
	crowded := []float64{0, 1, 0, 0.8, 0, 0, 0, 0, 0.7, 0}
	assert.Equal(t, []int{1, 8}, OnsetPeaks(crowded, 4, 0.5))

	// A single peak is still found.
	assert.Equal(t, []int{2}, OnsetPeaks([]float64{0, 0.2, 1, 0}, 1, 0))

	assert.Empty(t, OnsetPeaks(nil, 2, 0.5))
	assert.Empty(t, OnsetPeaks(make([]float64, 8), 2, 0))
}
