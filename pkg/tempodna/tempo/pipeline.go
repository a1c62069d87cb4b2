package tempo

import (
	"context"
	"fmt"
	"math"
)

// Result is the outcome of one Estimate call.
type Result struct {
	BPM       int
	BeatTimes []float64 // seconds, frame centres
	Beats     []int     // frame indices

	// OnsetTimes are the onset envelope's prominent peaks, in seconds.
	OnsetTimes []float64

	TrackerBPM     float64
	EstimatorBPM   float64
	MedianInterval float64
	OctaveMismatch bool
	Candidates     []Candidate

	Frames      int
	HopDuration float64
}

// Estimate runs the full pipeline over a mono waveform. samples is only read
// and must not be modified until Estimate returns.
func Estimate(ctx context.Context, samples []float64, sampleRate int, cfg Config) (*Result, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if sampleRate <= 0 {
		return nil, fmt.Errorf("%w: sample rate must be positive, got %d", ErrInvalidParameters, sampleRate)
	}
	if len(samples) == 0 {
		return nil, fmt.Errorf("%w: waveform is empty", ErrInvalidParameters)
	}
	for i, v := range samples {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, fmt.Errorf("%w: sample %d is not finite", ErrInvalidParameters, i)
		}
	}

	framer, err := NewFramer(samples, cfg.FrameLength, cfg.HopSize, cfg.TailPolicy, cfg.Window)
	if err != nil {
		return nil, err
	}
	if framer.Len() == 0 {
		return nil, fmt.Errorf("%w: %d samples do not fill a %d-sample frame", ErrInsufficientSignal, len(samples), cfg.FrameLength)
	}

	frontEnd, err := NewFrontEnd(framer, sampleRate, cfg)
	if err != nil {
		return nil, err
	}

	hop := float64(cfg.HopSize) / float64(sampleRate)
	env, err := OnsetEnvelope(ctx, frontEnd, hop, cfg.MeanWindow)
	if err != nil {
		return nil, fmt.Errorf("onset envelope: %w", err)
	}

	candidates, err := EstimateTempo(env, hop, cfg)
	if err != nil {
		return nil, fmt.Errorf("tempo estimation: %w", err)
	}

	beats, err := TrackBeats(ctx, env, candidates[0].Period(hop), cfg)
	if err != nil {
		return nil, fmt.Errorf("beat tracking at %.1f BPM: %w", candidates[0].BPM, err)
	}

	t, err := Aggregate(beats, hop, candidates[0].BPM, cfg)
	if err != nil {
		return nil, fmt.Errorf("aggregation: %w", err)
	}

	centre := float64(cfg.FrameLength) / 2
	frameTime := func(frames []int) []float64 {
		out := make([]float64, len(frames))
		for i, f := range frames {
			out[i] = (float64(f*cfg.HopSize) + centre) / float64(sampleRate)
		}
		return out
	}

	// Onsets closer than half the fastest allowed beat are one event.
	sep := int(math.Round(30 / cfg.MaxBPM / hop))
	onsets := OnsetPeaks(env, sep, cfg.OnsetThreshold)

	return &Result{
		BPM:            t.BPM,
		BeatTimes:      frameTime(beats),
		Beats:          beats,
		OnsetTimes:     frameTime(onsets),
		TrackerBPM:     t.TrackerBPM,
		EstimatorBPM:   t.EstimatorBPM,
		MedianInterval: t.MedianInterval,
		OctaveMismatch: t.OctaveMismatch,
		Candidates:     candidates,
		Frames:         framer.Len(),
		HopDuration:    hop,
	}, nil
}
