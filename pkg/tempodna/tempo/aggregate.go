package tempo

import (
	"fmt"
	"math"
	"slices"
)

// Tempo is the reconciled outcome of beat tracking and tempo estimation.
type Tempo struct {
	BPM            int
	TrackerBPM     float64
	EstimatorBPM   float64
	MedianInterval float64 // seconds
	OctaveMismatch bool
}

// Aggregate turns a beat sequence into a BPM. The median inter-beat interval
// picks the inliers (within cfg.InlierTolerance of it) and their mean sets
// the tracker tempo, which keeps whole-frame jitter from biasing the result.
// estimatorBPM is reported alongside; when the two disagree by more than
// cfg.OctaveTolerance the tracker still wins and OctaveMismatch is set.
// estimatorBPM <= 0 means no estimate is available.
func Aggregate(beats []int, hopDuration, estimatorBPM float64, cfg Config) (Tempo, error) {
	if len(beats) < 2 {
		return Tempo{}, fmt.Errorf("%w: %d beat(s), need at least 2", ErrNoBeatsFound, len(beats))
	}
	if !(hopDuration > 0) {
		return Tempo{}, fmt.Errorf("%w: hop duration must be positive", ErrInvalidParameters)
	}

	intervals := make([]float64, len(beats)-1)
	for i := 1; i < len(beats); i++ {
		intervals[i-1] = float64(beats[i]-beats[i-1]) * hopDuration
	}
	median := Median(intervals)
	if !(median > 0) {
		return Tempo{}, fmt.Errorf("%w: beat sequence is not increasing", ErrNoBeatsFound)
	}

	var sum float64
	var count int
	for _, v := range intervals {
		if math.Abs(v-median) <= cfg.InlierTolerance*median {
			sum += v
			count++
		}
	}
	interval := median
	if count > 0 {
		interval = sum / float64(count)
	}
	tracker := 60.0 / interval

	t := Tempo{
		BPM:            int(math.Round(tracker)),
		TrackerBPM:     tracker,
		EstimatorBPM:   estimatorBPM,
		MedianInterval: median,
	}
	if estimatorBPM > 0 {
		ratio := tracker / estimatorBPM
		t.OctaveMismatch = ratio > cfg.OctaveTolerance || ratio < 1/cfg.OctaveTolerance
	}
	return t, nil
}

// Median of xs; xs is not modified.
func Median(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	s := slices.Clone(xs)
	slices.Sort(s)
	mid := len(s) / 2
	if len(s)%2 == 1 {
		return s[mid]
	}
	return (s[mid-1] + s[mid]) / 2
}
