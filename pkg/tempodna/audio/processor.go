// Package audio turns arbitrary audio sources into mono PCM WAV files that
// the tempo pipeline can read.
package audio

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/himanishpuri/TempoDNA/pkg/utils"
)

// DefaultSampleRate is the analysis rate every source is resampled to.
const DefaultSampleRate = 22050

type ConvertWAVConfig struct {
	SampleRate int
	Timeout    time.Duration // applied when ctx has no deadline; default 30s
}

// ConvertToMonoWAV resamples inputPath to a 16-bit mono WAV in outputDir with
// ffmpeg and returns the new file's path. The output is written to a
// temporary name first so a cancelled run never leaves a partial file.
func ConvertToMonoWAV(ctx context.Context, inputPath, outputDir string, cfg ConvertWAVConfig) (string, error) {
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = DefaultSampleRate
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Timeout)
		defer cancel()
	}

	if _, err := os.Stat(inputPath); err != nil {
		return "", err
	}
	if err := utils.MakeDir(outputDir); err != nil {
		return "", err
	}

	base := utils.TitleFromPath(inputPath)
	outputPath := filepath.Join(outputDir, fmt.Sprintf("%s.%d.wav", base, cfg.SampleRate))
	tmpPath := outputPath + ".part.wav"
	defer os.Remove(tmpPath)

	cmd := exec.CommandContext(ctx, "ffmpeg",
		"-y",
		"-v", "error",
		"-i", inputPath,
		"-vn",
		"-ac", "1",
		"-ar", strconv.Itoa(cfg.SampleRate),
		"-c:a", "pcm_s16le",
		tmpPath,
	)

	if out, err := cmd.CombinedOutput(); err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", fmt.Errorf("ffmpeg failed: %w (%s)", err, strings.TrimSpace(string(out)))
	}

	if err := utils.MoveFile(tmpPath, outputPath); err != nil {
		return "", err
	}
	return outputPath, nil
}

// FFmpegAvailable reports whether ffmpeg is on PATH.
func FFmpegAvailable() bool {
	_, err := exec.LookPath("ffmpeg")
	return err == nil
}
