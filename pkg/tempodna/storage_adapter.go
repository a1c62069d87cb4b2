package tempodna

import (
	"time"

	"github.com/himanishpuri/TempoDNA/pkg/models"
	"github.com/himanishpuri/TempoDNA/pkg/tempodna/storage"
	"github.com/himanishpuri/TempoDNA/pkg/utils"
)

// ErrTrackNotFound is returned for unknown track IDs.
var ErrTrackNotFound = storage.ErrTrackNotFound

// NewSQLiteStorage opens (creating if needed) a SQLite store at dbPath.
func NewSQLiteStorage(dbPath string) (Storage, error) {
	return storage.NewDBClientWithPath(dbPath)
}

// nopStorage keeps nothing. It is used when persistence is disabled.
type nopStorage struct{}

func (nopStorage) SaveAnalysis(*models.Analysis) (string, error) { return utils.GenerateUUID(), nil }

func (nopStorage) FindAnalysis(string, string) (*models.Analysis, error) {
	return nil, ErrTrackNotFound
}

func (nopStorage) GetAnalysis(string) (*models.Analysis, error) { return nil, ErrTrackNotFound }
func (nopStorage) ListTracks() ([]models.Track, error)          { return nil, nil }
func (nopStorage) DeleteTrackByID(string) error                 { return ErrTrackNotFound }
func (nopStorage) Close() error                                 { return nil }

type nopRecorder struct{}

func (nopRecorder) ObserveAnalysis(string, time.Duration, error) {}
func (nopRecorder) ObserveCache(bool)                            {}
func (nopRecorder) ObserveTempo(int, bool)                       {}
