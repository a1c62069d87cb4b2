package audio

import (
	"os"
	"path/filepath"
	"testing"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/himanishpuri/TempoDNA/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteThenReadMono(t *testing.T) {
	opts := testutil.DefaultClicks()
	opts.Duration = 2
	samples := testutil.ClickTrack(opts)

	path := filepath.Join(t.TempDir(), "nested", "clicks.wav")
	require.NoError(t, WriteWavFloat64(path, samples, opts.SampleRate))

	got, rate, err := ReadWavAsFloat64(path)
	require.NoError(t, err)
	assert.Equal(t, opts.SampleRate, rate)
	require.Len(t, got, len(samples))
	for i := range samples {
		// 16-bit quantisation error.
		if !assert.InDelta(t, samples[i], got[i], 1.0/16384, "sample %d", i) {
			break
		}
	}
}

func TestWriteClipsOutOfRange(t *testing.T) {
	path := filepath.Join(t.TempDir(), "loud.wav")
	require.NoError(t, WriteWavFloat64(path, []float64{2, -2, 0.5}, 8000))

	got, _, err := ReadWavAsFloat64(path)
	require.NoError(t, err)
	assert.InDelta(t, 1, got[0], 1e-3)
	assert.InDelta(t, -1, got[1], 1e-3)
	assert.InDelta(t, 0.5, got[2], 1e-3)
}

func TestDecodeStereoAveragesChannels(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stereo.wav")
	f, err := os.Create(path)
	require.NoError(t, err)

	enc := wav.NewEncoder(f, 16000, 16, 2, 1)
	// Frames: (L, R) = (16384, 0), (-16384, -16384), (8192, 24576)
	require.NoError(t, enc.Write(&goaudio.IntBuffer{
		Data:           []int{16384, 0, -16384, -16384, 8192, 24576},
		Format:         &goaudio.Format{SampleRate: 16000, NumChannels: 2},
		SourceBitDepth: 16,
	}))
	require.NoError(t, enc.Close())
	require.NoError(t, f.Close())

	in, err := os.Open(path)
	require.NoError(t, err)
	defer in.Close()

	got, info, err := DecodeWav(in)
	require.NoError(t, err)
	assert.Equal(t, Info{SampleRate: 16000, Channels: 2, BitDepth: 16, Frames: 3}, info)
	assert.InDeltaSlice(t, []float64{0.25, -0.5, 0.5}, got, 1e-9)
}

func TestDecodeRejectsNonWav(t *testing.T) {
	path := filepath.Join(t.TempDir(), "invalid.wav")
	require.NoError(t, os.WriteFile(path, []byte("INVALID HEADER DATA"), 0o644))

	_, _, err := ReadWavAsFloat64(path)
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestReadMissingFile(t *testing.T) {
	_, _, err := ReadWavAsFloat64(filepath.Join(t.TempDir(), "nope.wav"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}
