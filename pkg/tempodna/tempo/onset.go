package tempo

import (
	"context"
	"math"
	"slices"

	"github.com/goccmack/godsp"
)

// SpectralFlux sums the positive per-band increases from prev to cur.
func SpectralFlux(prev, cur []float64) float64 {
	var flux float64
	for k, v := range cur {
		if d := v - prev[k]; d > 0 {
			flux += d
		}
	}
	return flux
}

// OnsetEnvelope consumes the spectral frames of fe in order and returns one
// onset strength per frame. Index 0 is always zero so that env[i] describes
// the change into frame i. The result is detrended with a centred moving
// average of meanWindow seconds, clipped at zero and scaled to unit peak.
func OnsetEnvelope(ctx context.Context, fe *FrontEnd, hopDuration, meanWindow float64) ([]float64, error) {
	env := make([]float64, fe.framer.Len())
	prev := make([]float64, fe.Bands())

	err := fe.Each(ctx, func(i int, mel []float64) error {
		if i > 0 {
			env[i] = SpectralFlux(prev, mel)
		}
		copy(prev, mel)
		return nil
	})
	if err != nil {
		return nil, err
	}

	half := 0
	if hopDuration > 0 {
		half = int(math.Round(meanWindow / (2 * hopDuration)))
	}
	SubtractLocalMean(env, half)
	NormalizePeak(env)
	return env, nil
}

// SubtractLocalMean replaces x[i] by max(0, x[i] - mean(x[i-half..i+half])),
// truncating the window at the edges. half == 0 only clips.
func SubtractLocalMean(x []float64, half int) {
	if half > 0 {
		prefix := make([]float64, len(x)+1)
		for i, v := range x {
			prefix[i+1] = prefix[i] + v
		}
		for i := range x {
			lo, hi := max(0, i-half), min(len(x), i+half+1)
			x[i] -= (prefix[hi] - prefix[lo]) / float64(hi-lo)
		}
	}
	for i, v := range x {
		if v < 0 {
			x[i] = 0
		}
	}
}

// NormalizePeak scales x in place so its maximum is 1. All-zero input is
// left untouched.
func NormalizePeak(x []float64) {
	var peak float64
	for _, v := range x {
		peak = max(peak, v)
	}
	if peak <= 0 {
		return
	}
	for i := range x {
		x[i] /= peak
	}
}

// OnsetPeaks returns the frames of env that are local peaks reaching
// threshold, keeping the higher of any two closer than minSep frames, in
// increasing order.
func OnsetPeaks(env []float64, minSep int, threshold float64) []int {
	if len(env) == 0 {
		return nil
	}

	// Every persistent-homology peak; the global maximum has infinite
	// persistence and can be missed by GetIndices, so add it explicitly.
	found := godsp.GetPeaks(env).GetIndices(0)
	found = append(found, slices.Index(env, slices.Max(env)))

	var cands []int
	for _, i := range found {
		if i >= 0 && i < len(env) && env[i] > 0 && env[i] >= threshold {
			cands = append(cands, i)
		}
	}
	slices.Sort(cands)
	cands = slices.Compact(cands)

	// Strongest first, earliest on ties.
	slices.SortStableFunc(cands, func(a, b int) int {
		switch {
		case env[a] > env[b]:
			return -1
		case env[a] < env[b]:
			return 1
		}
		return 0
	})
	minSep = max(1, minSep)
	var out []int
	for _, i := range cands {
		if !slices.ContainsFunc(out, func(j int) bool { return abs(i-j) < minSep }) {
			out = append(out, i)
		}
	}
	slices.Sort(out)
	return out
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
