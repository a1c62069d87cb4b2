package tempo

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMelScaleRoundTrip(t *testing.T) {
	for _, hz := range []float64{0, 100, 700, 1000, 8000} {
		assert.InDelta(t, hz, MelToHz(HzToMel(hz)), 1e-6)
	}
	assert.InDelta(t, 1000, HzToMel(1000), 0.5)
}

func TestMelFilterBank(t *testing.T) {
	bank, err := NewMelFilterBank(40, 2048, 22050, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, 40, bank.Bands())

	// A flat spectrum excites every band with a non-empty filter.
	power := ones(1025)
	mel := bank.Apply(power, nil)
	require.Len(t, mel, 40)
	for m, v := range mel {
		assert.GreaterOrEqual(t, v, 0.0, "band %d", m)
	}
	assert.Greater(t, mel[39], mel[0], "upper bands span more bins")

	_, err = NewMelFilterBank(0, 2048, 22050, 0, 0)
	assert.ErrorIs(t, err, ErrInvalidParameters)
	_, err = NewMelFilterBank(40, 2048, 22050, 12000, 0)
	assert.ErrorIs(t, err, ErrInvalidParameters)
}

func TestTransformLocalisesTone(t *testing.T) {
	const sr, n = 22050, 2048
	cfg := DefaultConfig()
	cfg.MelBands = 64

	tone := make([]float64, n)
	for i := range tone {
		tone[i] = math.Sin(2 * math.Pi * 440 * float64(i) / sr)
	}
	fr, err := NewFramer(tone, n, 512, TailDrop, WindowHann)
	require.NoError(t, err)
	fe, err := NewFrontEnd(fr, sr, cfg)
	require.NoError(t, err)

	mel := fe.Transform(fr.Frame(0, nil))
	require.Len(t, mel, 64)

	peak := 0
	for m, v := range mel {
		if v > mel[peak] {
			peak = m
		}
	}
	centre := MelToHz(HzToMel(11025) * float64(peak+1) / 65)
	assert.InDelta(t, 440, centre, 120, "loudest band should sit near the tone")

	silent := fe.Transform(make([]float64, n))
	assert.Equal(t, make([]float64, 64), silent)
}

func TestEachDeliversInOrder(t *testing.T) {
	cfg := DefaultConfig()
	cfg.BatchSize = 7
	cfg.Workers = 3

	samples := make([]float64, 30000)
	for i := range samples {
		samples[i] = math.Sin(float64(i) * 0.01)
	}
	fr, err := NewFramer(samples, 1024, 256, TailPad, WindowHann)
	require.NoError(t, err)
	fe, err := NewFrontEnd(fr, 22050, cfg)
	require.NoError(t, err)

	next := 0
	err = fe.Each(context.Background(), func(i int, mel []float64) error {
		assert.Equal(t, next, i)
		assert.Equal(t, fe.Transform(fr.Frame(i, nil)), mel)
		next++
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, fr.Len(), next)
}

func TestEachHonoursCancellation(t *testing.T) {
	fr, err := NewFramer(ones(50000), 1024, 256, TailPad, WindowHann)
	require.NoError(t, err)
	fe, err := NewFrontEnd(fr, 22050, DefaultConfig())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err = fe.Each(ctx, func(int, []float64) error { return nil })
	assert.ErrorIs(t, err, context.Canceled)
}
