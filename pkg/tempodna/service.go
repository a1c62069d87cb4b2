package tempodna

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/himanishpuri/TempoDNA/internal/audio"
	"github.com/himanishpuri/TempoDNA/pkg/logger"
	"github.com/himanishpuri/TempoDNA/pkg/models"
	ingest "github.com/himanishpuri/TempoDNA/pkg/tempodna/audio"
	"github.com/himanishpuri/TempoDNA/pkg/tempodna/tempo"
	"github.com/himanishpuri/TempoDNA/pkg/utils"
	"github.com/patrickmn/go-cache"
)

// tempoService is the default implementation of the Service interface.
type tempoService struct {
	storage  Storage
	log      Logger
	config   *Config
	cache    *cache.Cache // nil when CacheTTL <= 0
	recorder Recorder
	tempoKey string
}

// source describes where an analysed file came from. origin is what gets
// recorded as the track's source path; the file analysed may be a temporary
// copy of it.
type source struct {
	kind      string
	title     string
	origin    string
	youtubeID string
}

func NewService(opts ...Option) (Service, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}

	if err := cfg.Tempo.Validate(); err != nil {
		return nil, err
	}
	if cfg.SampleRate <= 0 {
		return nil, fmt.Errorf("%w: sample rate must be positive, got %d", tempo.ErrInvalidParameters, cfg.SampleRate)
	}

	if cfg.Logger == nil {
		cfg.Logger = logger.GetLogger().WithPrefix("tempodna")
	}
	if cfg.Recorder == nil {
		cfg.Recorder = nopRecorder{}
	}

	stor := cfg.Storage
	if stor == nil {
		if cfg.DBPath == "" {
			stor = nopStorage{}
		} else {
			var err error
			stor, err = NewSQLiteStorage(cfg.DBPath)
			if err != nil {
				return nil, fmt.Errorf("failed to create storage: %w", err)
			}
		}
	}

	s := &tempoService{
		storage:  stor,
		log:      cfg.Logger,
		config:   cfg,
		recorder: cfg.Recorder,
		tempoKey: cfg.Tempo.Key(),
	}
	if cfg.CacheTTL > 0 {
		s.cache = cache.New(cfg.CacheTTL, 2*cfg.CacheTTL)
	}
	return s, nil
}

// AnalyzeFile hashes the file, serves a previous analysis of the same content
// and configuration when one exists, and runs the pipeline otherwise.
func (s *tempoService) AnalyzeFile(ctx context.Context, audioPath, title string) (*models.Analysis, error) {
	return s.analyzeFile(ctx, audioPath, source{kind: "file", title: title, origin: audioPath})
}

// AnalyzeUpload analyses tempPath, a transient copy of a file the caller
// received as filename. The stored source path is filename, never tempPath.
func (s *tempoService) AnalyzeUpload(ctx context.Context, tempPath, filename, title string) (*models.Analysis, error) {
	name := filepath.Base(filename)
	if title == "" {
		title = utils.TitleFromPath(name)
	}
	return s.analyzeFile(ctx, tempPath, source{kind: "upload", title: title, origin: name})
}

func (s *tempoService) analyzeFile(ctx context.Context, audioPath string, src source) (a *models.Analysis, err error) {
	start := time.Now()
	defer func() { s.recorder.ObserveAnalysis(src.kind, time.Since(start), err) }()

	hash, size, err := utils.HashFile(audioPath)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", audioPath, err)
	}
	s.log.Debugf("Hashed %s (%d bytes): %s", audioPath, size, hash[:12])

	key := hash + ":" + s.tempoKey
	if hit := s.cached(key); hit != nil {
		s.log.Infof("Cache hit for %s", audioPath)
		return hit, nil
	}

	if stored, err := s.storage.FindAnalysis(hash, s.tempoKey); err == nil {
		s.log.Infof("Reusing stored analysis %s for %s", stored.ID, audioPath)
		s.remember(key, stored)
		stored.Cached = true
		return stored, nil
	} else if !errors.Is(err, ErrTrackNotFound) {
		s.log.Warnf("Store lookup failed, recomputing: %v", err)
	}

	samples, sampleRate, err := s.decode(ctx, audioPath)
	if err != nil {
		return nil, err
	}
	s.log.Infof("Decoded %s: %.1fs at %d Hz", audioPath, float64(len(samples))/float64(sampleRate), sampleRate)

	if src.title == "" {
		src.title = s.titleFor(ctx, audioPath)
	}

	a, err = s.estimate(ctx, samples, sampleRate)
	if err != nil {
		s.log.Warnf("Tempo estimation failed for %s: %v", audioPath, err)
		return nil, err
	}
	a.Title = src.title
	a.SourcePath = src.origin
	a.YouTubeID = src.youtubeID
	a.ContentHash = hash

	id, err := s.storage.SaveAnalysis(a)
	if err != nil {
		return nil, fmt.Errorf("failed to store analysis: %w", err)
	}
	a.ID = id

	s.log.Infof("%s: %d BPM (%d beats, tracker %.2f, estimator %.2f)",
		a.Title, a.BPM, len(a.BeatTimes), a.TrackerBPM, a.EstimatorBPM)
	if a.OctaveMismatch {
		s.log.Warnf("%s: tracker and estimator disagree by more than an octave tolerance", a.Title)
	}

	s.remember(key, a)
	return a, nil
}

// decode reads WAV input directly and hands everything else, including WAV
// encodings the reader does not support, to ffmpeg.
func (s *tempoService) decode(ctx context.Context, audioPath string) ([]float64, int, error) {
	if utils.IsWav(audioPath) {
		samples, sr, err := audio.ReadWavAsFloat64(audioPath)
		if err == nil {
			return samples, sr, nil
		}
		if !errors.Is(err, audio.ErrUnsupportedFormat) {
			return nil, 0, fmt.Errorf("failed to read WAV file: %w", err)
		}
		s.log.Debugf("Falling back to ffmpeg for %s: %v", audioPath, err)
	}

	wavPath, err := ingest.ConvertToMonoWAV(ctx, audioPath, s.config.TempDir, ingest.ConvertWAVConfig{
		SampleRate: s.config.SampleRate,
	})
	if err != nil {
		return nil, 0, fmt.Errorf("audio conversion failed: %w", err)
	}
	defer os.Remove(wavPath)

	samples, sr, err := audio.ReadWavAsFloat64(wavPath)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to read converted WAV: %w", err)
	}
	return samples, sr, nil
}

func (s *tempoService) titleFor(ctx context.Context, audioPath string) string {
	if !utils.IsWav(audioPath) {
		if meta, err := ingest.ReadMetadataFFmpeg(ctx, audioPath); err == nil {
			return meta.DisplayTitle()
		}
	}
	return utils.TitleFromPath(audioPath)
}

// estimate runs the pipeline and fills in everything but the identity fields.
func (s *tempoService) estimate(ctx context.Context, samples []float64, sampleRate int) (*models.Analysis, error) {
	res, err := tempo.Estimate(ctx, samples, sampleRate, s.config.Tempo)
	if err != nil {
		return nil, err
	}
	s.recorder.ObserveTempo(res.BPM, res.OctaveMismatch)

	cands := make([]models.Candidate, len(res.Candidates))
	for i, c := range res.Candidates {
		cands[i] = models.Candidate{Rank: i, BPM: c.BPM, Weight: c.Weight}
	}

	return &models.Analysis{
		Track: models.Track{
			ConfigKey:      s.tempoKey,
			SampleRate:     sampleRate,
			DurationMs:     int(math.Round(float64(len(samples)) * 1000 / float64(sampleRate))),
			BPM:            res.BPM,
			TrackerBPM:     res.TrackerBPM,
			EstimatorBPM:   res.EstimatorBPM,
			OctaveMismatch: res.OctaveMismatch,
			BeatCount:      len(res.BeatTimes),
			CreatedAt:      time.Now(),
		},
		BeatTimes:  res.BeatTimes,
		Candidates: cands,
	}, nil
}

func (s *tempoService) AnalyzeSamples(ctx context.Context, samples []float64, sampleRate int, title string) (a *models.Analysis, err error) {
	start := time.Now()
	defer func() { s.recorder.ObserveAnalysis("samples", time.Since(start), err) }()

	key := hashSamples(samples, sampleRate) + ":" + s.tempoKey
	if hit := s.cached(key); hit != nil {
		hit.Title = title
		return hit, nil
	}

	a, err = s.estimate(ctx, samples, sampleRate)
	if err != nil {
		return nil, err
	}
	a.ID = utils.GenerateUUID()
	a.Title = title
	s.log.Infof("Samples %q: %d BPM from %d beats", title, a.BPM, len(a.BeatTimes))

	s.remember(key, a)
	return a, nil
}

// AnalyzeYouTube downloads the audio of a video and analyses it. The
// download is removed afterwards.
func (s *tempoService) AnalyzeYouTube(ctx context.Context, youtubeURL string) (*models.Analysis, error) {
	videoID, err := utils.ExtractYouTubeID(youtubeURL)
	if err != nil {
		return nil, err
	}
	s.log.Infof("Downloading YouTube video %s", videoID)

	path, meta, err := ingest.DownloadYouTubeAudio(ctx, youtubeURL, s.config.TempDir)
	if err != nil {
		return nil, fmt.Errorf("youtube download failed: %w", err)
	}
	defer os.Remove(path)

	return s.analyzeFile(ctx, path, source{
		kind:      "youtube",
		title:     meta.DisplayTitle(),
		origin:    youtubeURL,
		youtubeID: videoID,
	})
}

func (s *tempoService) GetTrack(trackID string) (*models.Analysis, error) {
	return s.storage.GetAnalysis(strings.TrimSpace(trackID))
}

func (s *tempoService) ListTracks() ([]models.Track, error) {
	return s.storage.ListTracks()
}

// DeleteTrack removes a stored analysis. Cached copies are dropped too so the
// next request recomputes.
func (s *tempoService) DeleteTrack(trackID string) error {
	a, err := s.storage.GetAnalysis(trackID)
	if err != nil {
		return err
	}
	if err := s.storage.DeleteTrackByID(trackID); err != nil {
		return err
	}
	if s.cache != nil {
		s.cache.Delete(a.ContentHash + ":" + a.ConfigKey)
	}
	s.log.Infof("Deleted track %s (%s)", trackID, a.Title)
	return nil
}

// Close releases all resources held by the service.
func (s *tempoService) Close() error {
	if s.cache != nil {
		s.cache.Flush()
	}
	return s.storage.Close()
}

// cached returns a private copy of a memoised analysis, marked Cached.
func (s *tempoService) cached(key string) *models.Analysis {
	if s.cache == nil {
		return nil
	}
	v, ok := s.cache.Get(key)
	s.recorder.ObserveCache(ok)
	if !ok {
		return nil
	}
	a := clone(v.(*models.Analysis))
	a.Cached = true
	return a
}

func (s *tempoService) remember(key string, a *models.Analysis) {
	if s.cache != nil {
		s.cache.Set(key, clone(a), cache.DefaultExpiration)
	}
}

func clone(a *models.Analysis) *models.Analysis {
	c := *a
	c.BeatTimes = slices.Clone(a.BeatTimes)
	c.Candidates = slices.Clone(a.Candidates)
	return &c
}

// hashSamples fingerprints a waveform by its exact float64 bits.
func hashSamples(samples []float64, sampleRate int) string {
	h := sha256.New()
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], uint64(sampleRate))
	h.Write(buf[:])
	for _, v := range samples {
		binary.LittleEndian.PutUint64(buf[:], math.Float64bits(v))
		h.Write(buf[:])
	}
	return hex.EncodeToString(h.Sum(nil))
}
