//go:build !js && !wasm

package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/himanishpuri/TempoDNA/pkg/models"
	"github.com/himanishpuri/TempoDNA/pkg/utils"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const DefaultDBFile = "tempodna.sqlite3"

var (
	ErrTrackNotFound = errors.New("track not found")
	errDBClientNil   = errors.New("db client is nil")
)

type DBClient struct {
	DB *gorm.DB
	db *sql.DB
}

type Track struct {
	ID             string `gorm:"primaryKey;type:varchar(36)"`
	Title          string `gorm:"index:idx_track_title"`
	SourcePath     string
	YouTubeID      string `gorm:"index:idx_youtube_id"`
	ContentHash    string `gorm:"uniqueIndex:idx_track_content,priority:1"`
	ConfigKey      string `gorm:"uniqueIndex:idx_track_content,priority:2"`
	SampleRate     int
	DurationMs     int
	BPM            int
	TrackerBPM     float64
	EstimatorBPM   float64
	OctaveMismatch bool
	BeatCount      int
	CreatedAt      time.Time
	Beats          []Beat      `gorm:"constraint:OnDelete:CASCADE"`
	Candidates     []Candidate `gorm:"constraint:OnDelete:CASCADE"`
}

type Beat struct {
	ID      uint   `gorm:"primaryKey;autoIncrement"`
	TrackID string `gorm:"type:varchar(36);index:idx_beat_track,priority:1"`
	Ordinal int    `gorm:"index:idx_beat_track,priority:2"`
	TimeMs  float64
}

type Candidate struct {
	ID      uint   `gorm:"primaryKey;autoIncrement"`
	TrackID string `gorm:"type:varchar(36);index:idx_candidate_track"`
	Rank    int
	BPM     float64
	Weight  float64
}

// NewDBClient opens TEMPODNA_DB_PATH, or DefaultDBFile when it is unset.
func NewDBClient() (*DBClient, error) {
	dbPath := os.Getenv("TEMPODNA_DB_PATH")
	if dbPath == "" {
		dbPath = DefaultDBFile
	}
	return NewDBClientWithPath(dbPath)
}

func NewDBClientWithPath(dbPath string) (*DBClient, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating db dir: %w", err)
		}
	}

	gormConfig := &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	}

	db, err := gorm.Open(sqlite.Open(dbPath+"?_pragma=foreign_keys(1)"), gormConfig)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("getting sql.DB from gorm: %w", err)
	}

	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := db.AutoMigrate(&Track{}, &Beat{}, &Candidate{}); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("auto migrate: %w", err)
	}

	return &DBClient{DB: db, db: sqlDB}, nil
}

func (c *DBClient) Close() error {
	if c == nil || c.db == nil {
		return nil
	}
	return c.db.Close()
}

// SaveAnalysis stores a track with its beats and candidates in one
// transaction and returns the track ID. An analysis of the same content with
// the same config key replaces the earlier one.
func (c *DBClient) SaveAnalysis(a *models.Analysis) (string, error) {
	if c == nil || c.DB == nil {
		return "", errDBClientNil
	}

	if a.ContentHash == "" {
		return "", errors.New("analysis has no content hash")
	}

	row := trackRow(a)
	if row.ID == "" {
		row.ID = utils.GenerateUUID()
	}
	if row.CreatedAt.IsZero() {
		row.CreatedAt = time.Now()
	}

	err := c.DB.Transaction(func(tx *gorm.DB) error {
		var old Track
		err := tx.Where("content_hash = ? AND config_key = ?", row.ContentHash, row.ConfigKey).First(&old).Error
		switch {
		case err == nil:
			if err := deleteTrack(tx, old.ID); err != nil {
				return err
			}
		case !errors.Is(err, gorm.ErrRecordNotFound):
			return fmt.Errorf("querying existing track: %w", err)
		}

		if err := tx.Omit("Beats", "Candidates").Create(&row).Error; err != nil {
			return fmt.Errorf("creating track: %w", err)
		}

		if len(a.BeatTimes) > 0 {
			beats := make([]Beat, len(a.BeatTimes))
			for i, t := range a.BeatTimes {
				beats[i] = Beat{TrackID: row.ID, Ordinal: i, TimeMs: t * 1000}
			}
			if err := tx.CreateInBatches(beats, 500).Error; err != nil {
				return fmt.Errorf("batch insert beats: %w", err)
			}
		}

		if len(a.Candidates) > 0 {
			cands := make([]Candidate, len(a.Candidates))
			for i, cd := range a.Candidates {
				cands[i] = Candidate{TrackID: row.ID, Rank: cd.Rank, BPM: cd.BPM, Weight: cd.Weight}
			}
			if err := tx.Create(&cands).Error; err != nil {
				return fmt.Errorf("insert candidates: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	return row.ID, nil
}

// FindAnalysis looks up a stored analysis by content hash and config key.
func (c *DBClient) FindAnalysis(contentHash, configKey string) (*models.Analysis, error) {
	if c == nil || c.DB == nil {
		return nil, errDBClientNil
	}
	var row Track
	err := c.DB.Where("content_hash = ? AND config_key = ?", contentHash, configKey).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrTrackNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying track by hash: %w", err)
	}
	return c.GetAnalysis(row.ID)
}

// GetAnalysis loads a track with its beats and candidates.
func (c *DBClient) GetAnalysis(trackID string) (*models.Analysis, error) {
	if c == nil || c.DB == nil {
		return nil, errDBClientNil
	}
	var row Track
	err := c.DB.
		Preload("Beats", func(db *gorm.DB) *gorm.DB { return db.Order("ordinal") }).
		Preload("Candidates", func(db *gorm.DB) *gorm.DB { return db.Order("id") }).
		Where("id = ?", trackID).
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrTrackNotFound, trackID)
	}
	if err != nil {
		return nil, fmt.Errorf("querying track: %w", err)
	}

	a := &models.Analysis{
		Track:      row.model(),
		BeatTimes:  make([]float64, len(row.Beats)),
		Candidates: make([]models.Candidate, len(row.Candidates)),
	}
	for i, b := range row.Beats {
		a.BeatTimes[i] = b.TimeMs / 1000
	}
	for i, cd := range row.Candidates {
		a.Candidates[i] = models.Candidate{Rank: cd.Rank, BPM: cd.BPM, Weight: cd.Weight}
	}
	return a, nil
}

// ListTracks returns every track, newest first, without beats.
func (c *DBClient) ListTracks() ([]models.Track, error) {
	if c == nil || c.DB == nil {
		return nil, errDBClientNil
	}
	var rows []Track
	if err := c.DB.Order("created_at DESC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("listing tracks: %w", err)
	}
	out := make([]models.Track, len(rows))
	for i := range rows {
		out[i] = rows[i].model()
	}
	return out, nil
}

func (c *DBClient) DeleteTrackByID(trackID string) error {
	if c == nil || c.DB == nil {
		return errDBClientNil
	}
	return c.DB.Transaction(func(tx *gorm.DB) error {
		var n int64
		if err := tx.Model(&Track{}).Where("id = ?", trackID).Count(&n).Error; err != nil {
			return err
		}
		if n == 0 {
			return fmt.Errorf("%w: %s", ErrTrackNotFound, trackID)
		}
		return deleteTrack(tx, trackID)
	})
}

func deleteTrack(tx *gorm.DB, trackID string) error {
	if err := tx.Where("track_id = ?", trackID).Delete(&Beat{}).Error; err != nil {
		return err
	}
	if err := tx.Where("track_id = ?", trackID).Delete(&Candidate{}).Error; err != nil {
		return err
	}
	return tx.Where("id = ?", trackID).Delete(&Track{}).Error
}

func trackRow(a *models.Analysis) Track {
	return Track{
		ID:             a.ID,
		Title:          a.Title,
		SourcePath:     a.SourcePath,
		YouTubeID:      a.YouTubeID,
		ContentHash:    a.ContentHash,
		ConfigKey:      a.ConfigKey,
		SampleRate:     a.SampleRate,
		DurationMs:     a.DurationMs,
		BPM:            a.BPM,
		TrackerBPM:     a.TrackerBPM,
		EstimatorBPM:   a.EstimatorBPM,
		OctaveMismatch: a.OctaveMismatch,
		BeatCount:      len(a.BeatTimes),
		CreatedAt:      a.CreatedAt,
	}
}

func (t *Track) model() models.Track {
	return models.Track{
		ID:             t.ID,
		Title:          t.Title,
		SourcePath:     t.SourcePath,
		YouTubeID:      t.YouTubeID,
		ContentHash:    t.ContentHash,
		ConfigKey:      t.ConfigKey,
		SampleRate:     t.SampleRate,
		DurationMs:     t.DurationMs,
		BPM:            t.BPM,
		TrackerBPM:     t.TrackerBPM,
		EstimatorBPM:   t.EstimatorBPM,
		OctaveMismatch: t.OctaveMismatch,
		BeatCount:      t.BeatCount,
		CreatedAt:      t.CreatedAt,
	}
}
