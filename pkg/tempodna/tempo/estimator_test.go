package tempo

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// pulses builds an n-frame envelope with value v every period frames from
// offset on.
func pulses(n, offset, period int, v float64) []float64 {
	env := make([]float64, n)
	for i := offset; i < n; i += period {
		env[i] = v
	}
	return env
}

func TestLagRange(t *testing.T) {
	lo, hi := LagRange(50, 240, 0.01)
	assert.Equal(t, 25, lo)
	assert.Equal(t, 120, hi)

	lo, _ = LagRange(50, 100000, 0.01)
	assert.Equal(t, 1, lo)
}

func TestTempoPrior(t *testing.T) {
	assert.InDelta(t, 1, TempoPrior(120, 120, 1), 1e-12)
	assert.InDelta(t, TempoPrior(60, 120, 1), TempoPrior(240, 120, 1), 1e-12)
	assert.Greater(t, TempoPrior(100, 120, 1), TempoPrior(60, 120, 1))
}

func TestAutocorrelate(t *testing.T) {
	acf := Autocorrelate([]float64{1, 0, 1, 0}, 3)
	assert.Equal(t, []float64{2, 0, 1, 0}, acf)
}

func TestEstimateTempoFindsPulsePeriod(t *testing.T) {
	const hop = 0.01
	env := pulses(1000, 7, 50, 1)

	cands, err := EstimateTempo(env, hop, DefaultConfig())
	require.NoError(t, err)
	require.NotEmpty(t, cands)
	assert.LessOrEqual(t, len(cands), DefaultConfig().MaxCandidates)

	assert.InDelta(t, 120, cands[0].BPM, 0.5)
	assert.InDelta(t, 50, cands[0].Period(hop), 0.1)

	var total float64
	for i, c := range cands {
		total += c.Weight
		if i > 0 {
			assert.GreaterOrEqual(t, cands[i-1].Weight, c.Weight, "candidates are ranked by weight")
		}
	}
	assert.InDelta(t, 1, total, 1e-9)
}

func TestEstimateTempoPriorResolvesOctave(t *testing.T) {
	// Strong pulses every 100 frames, weaker ones halfway between: raw
	// periodicity slightly favours 60 BPM, the prior decides.
	env := pulses(2000, 10, 100, 1)
	for i := 60; i < len(env); i += 100 {
		env[i] = 0.8
	}

	cfg := DefaultConfig()
	cands, err := EstimateTempo(env, 0.01, cfg)
	require.NoError(t, err)
	assert.InDelta(t, 120, cands[0].BPM, 1)

	cfg.ReferenceBPM = 60
	cands, err = EstimateTempo(env, 0.01, cfg)
	require.NoError(t, err)
	assert.InDelta(t, 60, cands[0].BPM, 1)
}

func TestEstimateTempoDegenerate(t *testing.T) {
	cfg := DefaultConfig()

	_, err := EstimateTempo(make([]float64, 1000), 0.01, cfg)
	assert.ErrorIs(t, err, ErrInsufficientSignal, "silent envelope")

	_, err = EstimateTempo(pulses(100, 0, 50, 1), 0.01, cfg)
	assert.ErrorIs(t, err, ErrInsufficientSignal, "shorter than the 50 BPM lag")

	_, err = EstimateTempo(pulses(1000, 0, 50, 1), 0, cfg)
	assert.ErrorIs(t, err, ErrInvalidParameters)
}

func TestParabolicOffset(t *testing.T) {
	assert.Equal(t, 0.0, parabolicOffset(1, 2, 1))
	assert.Less(t, parabolicOffset(1.5, 2, 0), 0.0)
	assert.Greater(t, parabolicOffset(0, 2, 1.5), 0.0)
	assert.Equal(t, 0.0, parabolicOffset(1, 1, 1))
}
