package tempo

import (
	"fmt"
	"iter"
	"math"
)

// Hann returns a periodic Hann window of length n.
func Hann(n int) []float64 {
	w := make([]float64, n)
	for i := range w {
		w[i] = 0.5 - 0.5*math.Cos(2*math.Pi*float64(i)/float64(n))
	}
	return w
}

// Hamming returns a symmetric Hamming window of length n.
func Hamming(n int) []float64 {
	w := make([]float64, n)
	if n == 1 {
		w[0] = 1
		return w
	}
	for i := range w {
		w[i] = 0.54 - 0.46*math.Cos(2*math.Pi*float64(i)/float64(n-1))
	}
	return w
}

func windowFor(name string, n int) []float64 {
	if name == WindowHamming {
		return Hamming(n)
	}
	return Hann(n)
}

// Framer slices a waveform into overlapping windowed frames without copying
// the waveform. Frames are produced on demand; a Framer can be iterated any
// number of times and is safe for concurrent Frame calls.
type Framer struct {
	samples []float64
	length  int
	hop     int
	window  []float64
	count   int
}

// NewFramer validates the framing parameters and precomputes the frame
// count for the given tail policy.
func NewFramer(samples []float64, frameLength, hopSize int, policy TailPolicy, window string) (*Framer, error) {
	if frameLength <= 0 || hopSize <= 0 {
		return nil, fmt.Errorf("%w: frame length %d and hop size %d must be positive", ErrInvalidParameters, frameLength, hopSize)
	}
	if hopSize > frameLength {
		return nil, fmt.Errorf("%w: hop size %d exceeds frame length %d", ErrInvalidParameters, hopSize, frameLength)
	}
	if len(samples) == 0 {
		return nil, fmt.Errorf("%w: waveform is empty", ErrInvalidParameters)
	}
	if policy != TailPad && policy != TailDrop {
		return nil, fmt.Errorf("%w: unknown tail policy %q", ErrInvalidParameters, policy)
	}

	return &Framer{
		samples: samples,
		length:  frameLength,
		hop:     hopSize,
		window:  windowFor(window, frameLength),
		count:   frameCount(len(samples), frameLength, hopSize, policy),
	}, nil
}

// frameCount is floor((n-l)/h)+1 full frames, plus one zero-padded frame when
// padding and the next hop offset still lies inside the waveform.
func frameCount(n, l, h int, policy TailPolicy) int {
	full := 0
	if n >= l {
		full = (n-l)/h + 1
	}
	if policy == TailPad && full*h < n {
		return full + 1
	}
	return full
}

// Len is the number of frames.
func (f *Framer) Len() int { return f.count }

// FrameLength is L.
func (f *Framer) FrameLength() int { return f.length }

// HopSize is H.
func (f *Framer) HopSize() int { return f.hop }

// Frame writes the windowed frame i into dst, allocating when dst is too
// small, and returns it.
func (f *Framer) Frame(i int, dst []float64) []float64 {
	if cap(dst) < f.length {
		dst = make([]float64, f.length)
	}
	dst = dst[:f.length]

	start := i * f.hop
	n := copy(dst, f.samples[min(start, len(f.samples)):min(start+f.length, len(f.samples))])
	clear(dst[n:])
	for k := range n {
		dst[k] *= f.window[k]
	}
	return dst
}

// Frames iterates over (index, frame). The yielded slice is reused between
// iterations; copy it to keep it.
func (f *Framer) Frames() iter.Seq2[int, []float64] {
	return func(yield func(int, []float64) bool) {
		buf := make([]float64, f.length)
		for i := range f.count {
			if !yield(i, f.Frame(i, buf)) {
				return
			}
		}
	}
}
