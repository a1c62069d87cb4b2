package tempo

import (
	"context"
	"fmt"
	"math"
	"runtime"

	"github.com/mjibson/go-dsp/fft"
	"golang.org/x/sync/errgroup"
)

// HzToMel uses the HTK formula.
func HzToMel(hz float64) float64 {
	return 2595.0 * math.Log10(1.0+hz/700.0)
}

// MelToHz inverts HzToMel.
func MelToHz(mel float64) float64 {
	return 700.0 * (math.Pow(10, mel/2595.0) - 1.0)
}

// melFilter is one triangular filter stored sparsely from bin start.
type melFilter struct {
	start   int
	weights []float64
}

// MelFilterBank maps a power spectrum of frameLength/2+1 bins onto mel bands.
type MelFilterBank struct {
	filters []melFilter
	bins    int
}

// NewMelFilterBank builds bands triangular filters spaced evenly on the mel
// scale between minHz and maxHz.
func NewMelFilterBank(bands, frameLength, sampleRate int, minHz, maxHz float64) (*MelFilterBank, error) {
	nyquist := float64(sampleRate) / 2
	if maxHz == 0 || maxHz > nyquist {
		maxHz = nyquist
	}
	if bands <= 0 || frameLength <= 0 || sampleRate <= 0 || minHz >= maxHz {
		return nil, fmt.Errorf("%w: mel filterbank needs bands > 0 and %.1f < %.1f Hz", ErrInvalidParameters, minHz, maxHz)
	}

	bins := frameLength/2 + 1
	binHz := float64(sampleRate) / float64(frameLength)

	lo, hi := HzToMel(minHz), HzToMel(maxHz)
	edges := make([]float64, bands+2)
	for i := range edges {
		edges[i] = MelToHz(lo + (hi-lo)*float64(i)/float64(bands+1))
	}

	bank := &MelFilterBank{filters: make([]melFilter, bands), bins: bins}
	for m := range bands {
		left, centre, right := edges[m], edges[m+1], edges[m+2]
		var f melFilter
		for k := range bins {
			hz := float64(k) * binHz
			if hz <= left || hz >= right {
				if len(f.weights) > 0 {
					break
				}
				continue
			}
			var w float64
			if hz <= centre {
				w = (hz - left) / (centre - left)
			} else {
				w = (right - hz) / (right - centre)
			}
			if len(f.weights) == 0 {
				f.start = k
			}
			f.weights = append(f.weights, w)
		}
		bank.filters[m] = f
	}
	return bank, nil
}

// Bands is the number of mel bands.
func (b *MelFilterBank) Bands() int { return len(b.filters) }

// Apply projects power onto the mel bands, writing into dst.
func (b *MelFilterBank) Apply(power, dst []float64) []float64 {
	if cap(dst) < len(b.filters) {
		dst = make([]float64, len(b.filters))
	}
	dst = dst[:len(b.filters)]
	for m, f := range b.filters {
		var sum float64
		for k, w := range f.weights {
			sum += w * power[f.start+k]
		}
		dst[m] = sum
	}
	return dst
}

// FrontEnd turns frames into log-compressed mel spectra.
type FrontEnd struct {
	framer  *Framer
	bank    *MelFilterBank
	logGain float64
	workers int
	batch   int
}

// NewFrontEnd prepares the filterbank for fr at sampleRate.
func NewFrontEnd(fr *Framer, sampleRate int, cfg Config) (*FrontEnd, error) {
	bank, err := NewMelFilterBank(cfg.MelBands, fr.FrameLength(), sampleRate, cfg.MinFrequency, cfg.MaxFrequency)
	if err != nil {
		return nil, err
	}
	workers := cfg.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	batch := cfg.BatchSize
	if batch <= 0 {
		batch = DefaultConfig().BatchSize
	}
	return &FrontEnd{framer: fr, bank: bank, logGain: cfg.LogGain, workers: workers, batch: batch}, nil
}

// Bands is the length of every spectral frame.
func (fe *FrontEnd) Bands() int { return fe.bank.Bands() }

// Transform maps one windowed frame to its spectral frame.
func (fe *FrontEnd) Transform(frame []float64) []float64 {
	spectrum := fft.FFTReal(frame)
	power := make([]float64, fe.bank.bins)
	for k := range power {
		re, im := real(spectrum[k]), imag(spectrum[k])
		power[k] = re*re + im*im
	}
	mel := fe.bank.Apply(power, nil)
	for m, v := range mel {
		mel[m] = math.Log1p(fe.logGain * v)
	}
	return mel
}

// Each computes spectral frames in batches, transforming the frames of a
// batch concurrently, and hands them to fn in frame order. A spectral frame
// must not be retained by fn past the call.
func (fe *FrontEnd) Each(ctx context.Context, fn func(i int, mel []float64) error) error {
	total := fe.framer.Len()
	out := make([][]float64, min(fe.batch, total))

	for start := 0; start < total; start += fe.batch {
		end := min(start+fe.batch, total)

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(fe.workers)
		for i := start; i < end; i++ {
			g.Go(func() error {
				if err := gctx.Err(); err != nil {
					return err
				}
				out[i-start] = fe.Transform(fe.framer.Frame(i, nil))
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return fmt.Errorf("spectral frames %d-%d: %w", start, end-1, err)
		}

		for i := start; i < end; i++ {
			if err := fn(i, out[i-start]); err != nil {
				return err
			}
			out[i-start] = nil
		}
	}
	return nil
}
