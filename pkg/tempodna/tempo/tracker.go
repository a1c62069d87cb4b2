package tempo

import (
	"context"
	"fmt"
	"math"
)

// checkEvery bounds how often the tracker polls its context.
const checkEvery = 4096

// TrackBeats finds the beat sequence through env that best balances onset
// strength against a steady period (in frames), by dynamic programming:
//
//	score[i] = local[i] + max(0, max_j score[j] - tightness*ln((i-j)/period)^2)
//
// with j in [i-round(2*period), i-round(period/2)]. A frame whose best
// predecessor term is not positive starts a new sequence. The terminal beat
// is the global arg-max of score; all ties go to the smaller index. Weak
// beats at either end of the sequence are trimmed.
func TrackBeats(ctx context.Context, env []float64, period float64, cfg Config) ([]int, error) {
	n := len(env)
	if !(period > 0) || math.IsInf(period, 0) {
		return nil, fmt.Errorf("%w: beat period %.3f frames is not usable", ErrNoBeatsFound, period)
	}
	if period >= float64(n) {
		return nil, fmt.Errorf("%w: beat period %.1f frames exceeds %d-frame envelope", ErrNoBeatsFound, period, n)
	}

	var peak float64
	for _, v := range env {
		peak = max(peak, v)
	}
	if peak < cfg.MinOnsetStrength || peak <= 0 {
		return nil, fmt.Errorf("%w: onset peak %.3g below threshold %.3g", ErrNoBeatsFound, peak, cfg.MinOnsetStrength)
	}

	local := localScore(env)

	minStep := max(1, int(math.Round(period/2)))
	maxStep := max(minStep, int(math.Round(2*period)))

	// The transition cost depends only on the step, so tabulate it once.
	cost := make([]float64, maxStep+1)
	for d := minStep; d <= maxStep; d++ {
		r := math.Log(float64(d) / period)
		cost[d] = -cfg.Tightness * r * r
	}

	score := make([]float64, n)
	back := make([]int, n)
	for i := range n {
		if i%checkEvery == 0 {
			if err := ctx.Err(); err != nil {
				return nil, fmt.Errorf("beat tracking: %w", err)
			}
		}

		best, from := 0.0, -1
		// Walk from the furthest predecessor so a strict > keeps the
		// smaller index on ties.
		for j := max(0, i-maxStep); j <= i-minStep; j++ {
			if s := score[j] + cost[i-j]; s > best {
				best, from = s, j
			}
		}
		score[i] = local[i] + best
		back[i] = from
	}

	last := 0
	for i := 1; i < n; i++ {
		if score[i] > score[last] {
			last = i
		}
	}

	var beats []int
	for i := last; i >= 0; i = back[i] {
		beats = append(beats, i)
	}
	for l, r := 0, len(beats)-1; l < r; l, r = l+1, r-1 {
		beats[l], beats[r] = beats[r], beats[l]
	}

	return trimBeats(beats, local, cfg.TrimThreshold), nil
}

// localScore scales env by its sample standard deviation so the transition
// penalty has the same meaning whatever the envelope's level.
func localScore(env []float64) []float64 {
	out := make([]float64, len(env))
	var mean float64
	for _, v := range env {
		mean += v
	}
	mean /= float64(len(env))
	var ss float64
	for _, v := range env {
		ss += (v - mean) * (v - mean)
	}
	std := 1.0
	if len(env) > 1 && ss > 0 {
		std = math.Sqrt(ss / float64(len(env)-1))
	}
	for i, v := range env {
		out[i] = v / std
	}
	return out
}

// trimBeats drops leading and trailing beats whose local score is below
// threshold times the RMS of local.
func trimBeats(beats []int, local []float64, threshold float64) []int {
	var ss float64
	for _, v := range local {
		ss += v * v
	}
	cut := threshold * math.Sqrt(ss/float64(len(local)))

	lo, hi := 0, len(beats)
	for lo < hi && local[beats[lo]] < cut {
		lo++
	}
	for hi > lo && local[beats[hi-1]] < cut {
		hi--
	}
	return beats[lo:hi]
}
