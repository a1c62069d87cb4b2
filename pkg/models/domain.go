package models

import "time"

// Track is a stored tempo analysis of one audio source.
type Track struct {
	ID             string    `json:"id"`                    // UUID
	Title          string    `json:"title"`                 // display title
	SourcePath     string    `json:"source_path,omitempty"` // file the audio came from
	YouTubeID      string    `json:"youtube_id,omitempty"`
	ContentHash    string    `json:"content_hash,omitempty"` // sha256 of the source file
	ConfigKey      string    `json:"config_key,omitempty"`   // tempo.Config.Key() used for the analysis
	SampleRate     int       `json:"sample_rate"`
	DurationMs     int       `json:"duration_ms"`
	BPM            int       `json:"bpm"`
	TrackerBPM     float64   `json:"tracker_bpm"`
	EstimatorBPM   float64   `json:"estimator_bpm"`
	OctaveMismatch bool      `json:"octave_mismatch"`
	BeatCount      int       `json:"beat_count"`
	CreatedAt      time.Time `json:"created_at"`
}

// Candidate is one ranked tempo hypothesis from the autocorrelation stage.
type Candidate struct {
	Rank   int     `json:"rank"`
	BPM    float64 `json:"bpm"`
	Weight float64 `json:"weight"`
}

// Analysis is a Track together with its beat times and tempo candidates.
type Analysis struct {
	Track
	BeatTimes  []float64   `json:"beat_times"` // seconds
	Candidates []Candidate `json:"candidates"`
	Cached     bool        `json:"cached"` // served from cache or store without recomputing
}
