package tempo

import (
	"fmt"
	"math"
	"slices"
)

// Candidate is one tempo hypothesis. Weight is the prior-weighted
// autocorrelation strength, normalised across the returned candidates.
type Candidate struct {
	BPM    float64
	Weight float64
	Lag    float64 // frames, sub-frame refined
}

// Period is the beat period in frames at the given hop duration.
func (c Candidate) Period(hopDuration float64) float64 {
	return 60.0 / (c.BPM * hopDuration)
}

// LagRange converts a BPM range to inclusive autocorrelation lags.
func LagRange(minBPM, maxBPM, hopDuration float64) (lo, hi int) {
	lo = max(1, int(math.Floor(60.0/(maxBPM*hopDuration))))
	hi = int(math.Ceil(60.0 / (minBPM * hopDuration)))
	return lo, hi
}

// TempoPrior is a log-normal weight centred on reference, width in octaves.
func TempoPrior(bpm, reference, width float64) float64 {
	z := math.Log2(bpm/reference) / width
	return math.Exp(-0.5 * z * z)
}

// Autocorrelate returns the biased autocorrelation of env for lags 0..maxLag.
func Autocorrelate(env []float64, maxLag int) []float64 {
	acf := make([]float64, maxLag+1)
	for lag := range acf {
		var sum float64
		for i := lag; i < len(env); i++ {
			sum += env[i] * env[i-lag]
		}
		acf[lag] = sum
	}
	return acf
}

// EstimateTempo ranks tempo candidates for an onset envelope sampled every
// hopDuration seconds.
func EstimateTempo(env []float64, hopDuration float64, cfg Config) ([]Candidate, error) {
	if !(hopDuration > 0) {
		return nil, fmt.Errorf("%w: hop duration must be positive", ErrInvalidParameters)
	}
	lo, hi := LagRange(cfg.MinBPM, cfg.MaxBPM, hopDuration)
	if len(env) <= hi {
		return nil, fmt.Errorf("%w: %d frames cannot resolve a lag of %d frames (%.0f BPM)",
			ErrInsufficientSignal, len(env), hi, cfg.MinBPM)
	}
	if slices.Max(env) <= 0 {
		return nil, fmt.Errorf("%w: onset envelope is silent", ErrInsufficientSignal)
	}

	acf := Autocorrelate(env, hi+1)
	bpmAt := func(lag float64) float64 { return 60.0 / (lag * hopDuration) }

	weighted := make([]float64, len(acf))
	for lag := lo; lag <= hi+1; lag++ {
		weighted[lag] = acf[lag] * TempoPrior(bpmAt(float64(lag)), cfg.ReferenceBPM, cfg.PriorWidth)
	}

	var peaks []int
	for lag := lo; lag <= hi; lag++ {
		w := weighted[lag]
		if w <= 0 {
			continue
		}
		left := lag == lo || w >= weighted[lag-1]
		right := w > weighted[lag+1]
		if left && right {
			peaks = append(peaks, lag)
		}
	}
	if len(peaks) == 0 {
		// Monotone over the range: fall back to the strongest lag.
		best := lo
		for lag := lo + 1; lag <= hi; lag++ {
			if weighted[lag] > weighted[best] {
				best = lag
			}
		}
		if weighted[best] <= 0 {
			return nil, fmt.Errorf("%w: no periodicity between %.0f and %.0f BPM",
				ErrInsufficientSignal, cfg.MinBPM, cfg.MaxBPM)
		}
		peaks = []int{best}
	}

	slices.SortStableFunc(peaks, func(a, b int) int {
		switch {
		case weighted[a] > weighted[b]:
			return -1
		case weighted[a] < weighted[b]:
			return 1
		}
		return a - b
	})
	if len(peaks) > cfg.MaxCandidates {
		peaks = peaks[:cfg.MaxCandidates]
	}

	var total float64
	for _, lag := range peaks {
		total += weighted[lag]
	}

	out := make([]Candidate, 0, len(peaks))
	for _, lag := range peaks {
		refined := float64(lag)
		if lag > lo {
			refined += parabolicOffset(weighted[lag-1], weighted[lag], weighted[lag+1])
		}
		out = append(out, Candidate{
			BPM:    bpmAt(refined),
			Weight: weighted[lag] / total,
			Lag:    refined,
		})
	}
	return out, nil
}

// parabolicOffset is the vertex offset in [-0.5, 0.5] of the parabola
// through three equally spaced points around a maximum.
func parabolicOffset(a, b, c float64) float64 {
	den := a - 2*b + c
	if den >= 0 {
		return 0
	}
	return max(-0.5, min(0.5, 0.5*(a-c)/den))
}
