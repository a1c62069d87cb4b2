package audio

import (
	"errors"
	"fmt"
	"io"
	"os"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// ErrUnsupportedFormat is returned for files the WAV decoder cannot handle.
var ErrUnsupportedFormat = errors.New("unsupported audio format")

const readChunk = 1 << 16

// Info describes a decoded WAV stream.
type Info struct {
	SampleRate int
	Channels   int
	BitDepth   int
	Frames     int
}

// ReadWavAsFloat64 decodes a PCM WAV file to mono samples in [-1, 1].
func ReadWavAsFloat64(path string) ([]float64, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, fmt.Errorf("opening wav: %w", err)
	}
	defer f.Close()

	samples, info, err := DecodeWav(f)
	if err != nil {
		return nil, 0, fmt.Errorf("decoding %s: %w", path, err)
	}
	return samples, info.SampleRate, nil
}

// DecodeWav reads a whole PCM WAV stream and averages its channels.
func DecodeWav(r io.ReadSeeker) ([]float64, Info, error) {
	decoder := wav.NewDecoder(r)
	decoder.ReadInfo()
	if !decoder.IsValidFile() {
		return nil, Info{}, fmt.Errorf("%w: not a WAV/RIFF file", ErrUnsupportedFormat)
	}

	info := Info{
		SampleRate: int(decoder.SampleRate),
		Channels:   int(decoder.NumChans),
		BitDepth:   int(decoder.BitDepth),
	}
	switch {
	case info.Channels < 1:
		return nil, info, fmt.Errorf("%w: %d channels", ErrUnsupportedFormat, info.Channels)
	case info.BitDepth != 8 && info.BitDepth != 16 && info.BitDepth != 24 && info.BitDepth != 32:
		return nil, info, fmt.Errorf("%w: %d-bit samples", ErrUnsupportedFormat, info.BitDepth)
	case info.SampleRate <= 0:
		return nil, info, fmt.Errorf("%w: sample rate %d", ErrUnsupportedFormat, info.SampleRate)
	}

	scale := 1.0 / float64(int64(1)<<(info.BitDepth-1))
	offset := 0
	if info.BitDepth == 8 {
		// 8-bit WAV is unsigned.
		offset = 128
	}

	buf := &goaudio.IntBuffer{
		Data:   make([]int, readChunk*info.Channels),
		Format: &goaudio.Format{SampleRate: info.SampleRate, NumChannels: info.Channels},
	}

	var mono []float64
	var carry []int
	for {
		n, err := decoder.PCMBuffer(buf)
		if err != nil {
			return nil, info, fmt.Errorf("reading pcm: %w", err)
		}
		if n == 0 {
			break
		}
		data := append(carry, buf.Data[:n]...)
		whole := len(data) / info.Channels * info.Channels
		for i := 0; i < whole; i += info.Channels {
			var sum float64
			for c := range info.Channels {
				sum += float64(data[i+c] - offset)
			}
			mono = append(mono, sum*scale/float64(info.Channels))
		}
		carry = append(carry[:0], data[whole:]...)
	}

	info.Frames = len(mono)
	if info.Frames == 0 {
		return nil, info, fmt.Errorf("%w: no audio frames", ErrUnsupportedFormat)
	}
	return mono, info, nil
}
