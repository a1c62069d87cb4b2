package tempodna

import (
	"context"
	"time"

	"github.com/himanishpuri/TempoDNA/pkg/models"
)

type Service interface {
	// AnalyzeFile estimates the tempo of an audio file. WAV files are read
	// directly; anything else goes through ffmpeg. title may be empty.
	AnalyzeFile(ctx context.Context, audioPath, title string) (*models.Analysis, error)
	// AnalyzeUpload is AnalyzeFile for a temporary copy of a received file;
	// filename is recorded as the source instead of tempPath.
	AnalyzeUpload(ctx context.Context, tempPath, filename, title string) (*models.Analysis, error)
	// AnalyzeSamples estimates the tempo of a mono waveform. Results are
	// cached but never persisted.
	AnalyzeSamples(ctx context.Context, samples []float64, sampleRate int, title string) (*models.Analysis, error)
	AnalyzeYouTube(ctx context.Context, youtubeURL string) (*models.Analysis, error)
	GetTrack(trackID string) (*models.Analysis, error)
	ListTracks() ([]models.Track, error)
	DeleteTrack(trackID string) error
	Close() error
}

type Storage interface {
	SaveAnalysis(a *models.Analysis) (string, error)
	FindAnalysis(contentHash, configKey string) (*models.Analysis, error)
	GetAnalysis(trackID string) (*models.Analysis, error)
	ListTracks() ([]models.Track, error)
	DeleteTrackByID(trackID string) error
	Close() error
}

type Logger interface {
	Infof(format string, args ...any)
	Warnf(format string, args ...any)
	Errorf(format string, args ...any)
	Debugf(format string, args ...any)
}

// Recorder receives per-analysis measurements. source is "file", "upload",
// "samples" or "youtube".
type Recorder interface {
	ObserveAnalysis(source string, elapsed time.Duration, err error)
	ObserveCache(hit bool)
	ObserveTempo(bpm int, octaveMismatch bool)
}
