package tempo

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math"
)

// TailPolicy decides what happens to samples past the last full frame.
type TailPolicy string

const (
	// TailPad emits one extra zero-padded frame covering the tail.
	TailPad TailPolicy = "pad"
	// TailDrop discards the tail.
	TailDrop TailPolicy = "drop"
)

// Window names accepted by Config.Window.
const (
	WindowHann    = "hann"
	WindowHamming = "hamming"
)

const (
	DefaultFrameLength  = 2048
	DefaultHopSize      = 512
	DefaultMinBPM       = 50.0
	DefaultMaxBPM       = 240.0
	DefaultReferenceBPM = 120.0
)

// Config holds every tunable of the pipeline. Start from DefaultConfig;
// zero values are rejected by Validate rather than silently replaced.
type Config struct {
	// Framing
	FrameLength int        `yaml:"frame_length"`
	HopSize     int        `yaml:"hop_size"`
	TailPolicy  TailPolicy `yaml:"tail_policy"`
	Window      string     `yaml:"window"`

	// Spectral front end
	MelBands     int     `yaml:"mel_bands"`
	MinFrequency float64 `yaml:"min_frequency"`
	MaxFrequency float64 `yaml:"max_frequency"` // 0 means Nyquist
	LogGain      float64 `yaml:"log_gain"`

	// Onset envelope
	MeanWindow     float64 `yaml:"mean_window"`     // seconds
	OnsetThreshold float64 `yaml:"onset_threshold"` // fraction of the envelope peak

	// Tempo estimation
	MinBPM        float64 `yaml:"min_bpm"`
	MaxBPM        float64 `yaml:"max_bpm"`
	ReferenceBPM  float64 `yaml:"reference_bpm"`
	PriorWidth    float64 `yaml:"prior_width"` // octaves
	MaxCandidates int     `yaml:"max_candidates"`

	// Beat tracking
	Tightness        float64 `yaml:"tightness"`
	MinOnsetStrength float64 `yaml:"min_onset_strength"`
	TrimThreshold    float64 `yaml:"trim_threshold"`

	// Aggregation
	OctaveTolerance float64 `yaml:"octave_tolerance"`
	InlierTolerance float64 `yaml:"inlier_tolerance"`

	// Concurrency
	Workers   int `yaml:"workers"` // 0 means GOMAXPROCS
	BatchSize int `yaml:"batch_size"`
}

// DefaultConfig returns the configuration used when nothing else is given.
func DefaultConfig() Config {
	return Config{
		FrameLength:      DefaultFrameLength,
		HopSize:          DefaultHopSize,
		TailPolicy:       TailPad,
		Window:           WindowHann,
		MelBands:         128,
		MinFrequency:     0,
		MaxFrequency:     0,
		LogGain:          100,
		MeanWindow:       0.3,
		OnsetThreshold:   0.3,
		MinBPM:           DefaultMinBPM,
		MaxBPM:           DefaultMaxBPM,
		ReferenceBPM:     DefaultReferenceBPM,
		PriorWidth:       1.0,
		MaxCandidates:    3,
		Tightness:        100,
		MinOnsetStrength: 1e-6,
		TrimThreshold:    0.5,
		OctaveTolerance:  1.5,
		InlierTolerance:  0.2,
		Workers:          0,
		BatchSize:        256,
	}
}

// Validate reports the first problem found, wrapped in ErrInvalidParameters.
func (c Config) Validate() error {
	switch {
	case c.FrameLength <= 0:
		return fmt.Errorf("%w: frame length must be positive, got %d", ErrInvalidParameters, c.FrameLength)
	case c.HopSize <= 0:
		return fmt.Errorf("%w: hop size must be positive, got %d", ErrInvalidParameters, c.HopSize)
	case c.HopSize > c.FrameLength:
		return fmt.Errorf("%w: hop size %d exceeds frame length %d", ErrInvalidParameters, c.HopSize, c.FrameLength)
	case c.TailPolicy != TailPad && c.TailPolicy != TailDrop:
		return fmt.Errorf("%w: unknown tail policy %q", ErrInvalidParameters, c.TailPolicy)
	case c.Window != WindowHann && c.Window != WindowHamming:
		return fmt.Errorf("%w: unknown window %q", ErrInvalidParameters, c.Window)
	case c.MelBands <= 0:
		return fmt.Errorf("%w: mel bands must be positive, got %d", ErrInvalidParameters, c.MelBands)
	case c.MinFrequency < 0 || c.MaxFrequency < 0:
		return fmt.Errorf("%w: frequencies must not be negative", ErrInvalidParameters)
	case c.MaxFrequency != 0 && c.MaxFrequency <= c.MinFrequency:
		return fmt.Errorf("%w: max frequency %.1f must exceed min frequency %.1f", ErrInvalidParameters, c.MaxFrequency, c.MinFrequency)
	case !(c.LogGain > 0):
		return fmt.Errorf("%w: log gain must be positive", ErrInvalidParameters)
	case c.MeanWindow < 0 || math.IsNaN(c.MeanWindow):
		return fmt.Errorf("%w: mean window must not be negative", ErrInvalidParameters)
	case c.OnsetThreshold < 0 || c.OnsetThreshold > 1 || math.IsNaN(c.OnsetThreshold):
		return fmt.Errorf("%w: onset threshold must be within [0, 1]", ErrInvalidParameters)
	case !(c.MinBPM > 0):
		return fmt.Errorf("%w: min bpm must be positive", ErrInvalidParameters)
	case !(c.MaxBPM > c.MinBPM):
		return fmt.Errorf("%w: max bpm %.1f must exceed min bpm %.1f", ErrInvalidParameters, c.MaxBPM, c.MinBPM)
	case !(c.ReferenceBPM > 0):
		return fmt.Errorf("%w: reference bpm must be positive", ErrInvalidParameters)
	case !(c.PriorWidth > 0):
		return fmt.Errorf("%w: prior width must be positive", ErrInvalidParameters)
	case c.MaxCandidates <= 0:
		return fmt.Errorf("%w: max candidates must be positive", ErrInvalidParameters)
	case !(c.Tightness >= 0):
		return fmt.Errorf("%w: tightness must not be negative", ErrInvalidParameters)
	case c.MinOnsetStrength < 0 || math.IsNaN(c.MinOnsetStrength):
		return fmt.Errorf("%w: min onset strength must not be negative", ErrInvalidParameters)
	case c.TrimThreshold < 0 || math.IsNaN(c.TrimThreshold):
		return fmt.Errorf("%w: trim threshold must not be negative", ErrInvalidParameters)
	case !(c.OctaveTolerance > 1):
		return fmt.Errorf("%w: octave tolerance must exceed 1", ErrInvalidParameters)
	case !(c.InlierTolerance > 0):
		return fmt.Errorf("%w: inlier tolerance must be positive", ErrInvalidParameters)
	case c.Workers < 0:
		return fmt.Errorf("%w: workers must not be negative", ErrInvalidParameters)
	case c.BatchSize <= 0:
		return fmt.Errorf("%w: batch size must be positive", ErrInvalidParameters)
	}
	return nil
}

// Key is a short stable digest of the parameters that influence the result.
// Workers and BatchSize never change the output, and OnsetThreshold only
// affects OnsetTimes, which are not stored; all three are excluded.
func (c Config) Key() string {
	s := fmt.Sprintf("%d|%d|%s|%s|%d|%g|%g|%g|%g|%g|%g|%g|%g|%d|%g|%g|%g|%g|%g",
		c.FrameLength, c.HopSize, c.TailPolicy, c.Window,
		c.MelBands, c.MinFrequency, c.MaxFrequency, c.LogGain,
		c.MeanWindow,
		c.MinBPM, c.MaxBPM, c.ReferenceBPM, c.PriorWidth, c.MaxCandidates,
		c.Tightness, c.MinOnsetStrength, c.TrimThreshold,
		c.OctaveTolerance, c.InlierTolerance)
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:6])
}
