package main

import (
	"fmt"

	"github.com/himanishpuri/TempoDNA/pkg/models"
)

const (
	// MaxSampleRate bounds client-declared rates.
	MaxSampleRate = 192000
	// MaxSamples caps a samples payload at ten minutes of 48 kHz stereo.
	MaxSamples = 48000 * 2 * 600
)

// SamplesRequest is the body of POST /api/tempo/samples. Samples are
// interleaved when Channels > 1.
type SamplesRequest struct {
	Samples    []float64 `json:"samples"`
	SampleRate int       `json:"sample_rate"`
	Channels   int       `json:"channels,omitempty"`
	Title      string    `json:"title,omitempty"`
}

func (r *SamplesRequest) Validate() error {
	if r.Channels == 0 {
		r.Channels = 1
	}
	switch {
	case len(r.Samples) == 0:
		return fmt.Errorf("samples cannot be empty")
	case len(r.Samples) > MaxSamples:
		return fmt.Errorf("too many samples: %d (maximum: %d)", len(r.Samples), MaxSamples)
	case r.SampleRate <= 0 || r.SampleRate > MaxSampleRate:
		return fmt.Errorf("sample_rate must be in (0, %d], got %d", MaxSampleRate, r.SampleRate)
	case r.Channels < 0 || r.Channels > 8:
		return fmt.Errorf("channels must be between 1 and 8, got %d", r.Channels)
	case len(r.Samples)%r.Channels != 0:
		return fmt.Errorf("%d samples do not split into %d channels", len(r.Samples), r.Channels)
	}
	return nil
}

// Mono averages interleaved channels.
func (r *SamplesRequest) Mono() []float64 {
	if r.Channels <= 1 {
		return r.Samples
	}
	n := len(r.Samples) / r.Channels
	out := make([]float64, n)
	for i := range n {
		var sum float64
		for c := range r.Channels {
			sum += r.Samples[i*r.Channels+c]
		}
		out[i] = sum / float64(r.Channels)
	}
	return out
}

// YouTubeRequest is the body of POST /api/tempo/youtube.
type YouTubeRequest struct {
	YouTubeURL string `json:"youtube_url"`
}

func (r *YouTubeRequest) Validate() error {
	if r.YouTubeURL == "" {
		return fmt.Errorf("youtube_url is required")
	}
	return nil
}

// ListTracksResponse is the response for GET /api/tracks
type ListTracksResponse struct {
	Tracks []models.Track `json:"tracks"`
	Count  int            `json:"count"`
}

// DeleteTrackResponse is the response for DELETE /api/tracks/{id}
type DeleteTrackResponse struct {
	Message string `json:"message"`
	ID      string `json:"id"`
}

// MetricsResponse provides server health and analysis counters
type MetricsResponse struct {
	Status       string `json:"status"`
	DatabasePath string `json:"database_path,omitempty"`
	TrackCount   int    `json:"track_count"`
	SampleRate   int    `json:"sample_rate"`
	Analyses     int64  `json:"analyses"`
	Failures     int64  `json:"failures"`
	CacheHits    int64  `json:"cache_hits"`
	FFmpeg       bool   `json:"ffmpeg"`
	Uptime       string `json:"uptime"`
}

// ErrorResponse is the standard error response format
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
	Code    int    `json:"code,omitempty"`
}
