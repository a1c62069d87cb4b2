// Package plot renders spectrograms with detected beats overlaid.
package plot

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"os"
	"path/filepath"

	"github.com/eligwz/spectrogram"
)

type Options struct {
	Width  int
	Height int // also the number of frequency bins
	Log    bool
}

func DefaultOptions() Options {
	return Options{Width: 2048, Height: 512}
}

var beatColor = color.RGBA{R: 255, G: 64, B: 64, A: 255}

// RenderBeats writes a PNG spectrogram of samples to path with a vertical
// marker at each beat time (seconds).
func RenderBeats(path string, samples []float64, sampleRate int, beatTimes []float64, opts Options) error {
	if len(samples) == 0 || sampleRate <= 0 {
		return errors.New("plot: nothing to render")
	}
	if opts.Width <= 0 || opts.Height <= 0 {
		return fmt.Errorf("plot: invalid size %dx%d", opts.Width, opts.Height)
	}

	img := spectrogram.NewImage128(image.Rect(0, 0, opts.Width, opts.Height))
	black := spectrogram.ParseColor("000000")
	draw.Draw(img, img.Bounds(), image.NewUniform(black), image.Point{}, draw.Src)

	// Hamming window, FFT, magnitude.
	spectrogram.Drawfft(img, samples, uint32(sampleRate), uint32(opts.Height), false, false, true, opts.Log)

	duration := float64(len(samples)) / float64(sampleRate)
	MarkBeats(img, beatTimes, duration)

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	if err := spectrogram.SavePng(img, path); err != nil {
		return fmt.Errorf("plot: saving %s: %w", path, err)
	}
	return nil
}

// MarkBeats draws a full-height line at each beat, mapping [0, duration)
// seconds onto the image width. Beats outside that range are skipped.
func MarkBeats(img draw.Image, beatTimes []float64, duration float64) {
	if duration <= 0 {
		return
	}
	b := img.Bounds()
	w := b.Dx()
	for _, t := range beatTimes {
		if t < 0 || t >= duration {
			continue
		}
		x := b.Min.X + int(t/duration*float64(w))
		for y := b.Min.Y; y < b.Max.Y; y++ {
			img.Set(x, y, beatColor)
		}
	}
}
