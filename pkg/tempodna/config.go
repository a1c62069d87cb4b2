package tempodna

import (
	"time"

	"github.com/himanishpuri/TempoDNA/pkg/tempodna/audio"
	"github.com/himanishpuri/TempoDNA/pkg/tempodna/tempo"
)

type Config struct {
	DBPath     string // empty disables persistence
	TempDir    string
	SampleRate int // rate non-WAV sources are transcoded to
	CacheTTL   time.Duration
	Tempo      tempo.Config
	Logger     Logger
	Storage    Storage
	Recorder   Recorder
}

type Option func(*Config)

func WithDBPath(path string) Option {
	return func(c *Config) {
		c.DBPath = path
	}
}

func WithTempDir(dir string) Option {
	return func(c *Config) {
		c.TempDir = dir
	}
}

func WithSampleRate(rate int) Option {
	return func(c *Config) {
		c.SampleRate = rate
	}
}

// WithCacheTTL sets how long analyses stay memoised in memory. Zero or
// negative disables the in-memory cache.
func WithCacheTTL(ttl time.Duration) Option {
	return func(c *Config) {
		c.CacheTTL = ttl
	}
}

func WithTempoConfig(cfg tempo.Config) Option {
	return func(c *Config) {
		c.Tempo = cfg
	}
}

func WithLogger(log Logger) Option {
	return func(c *Config) {
		c.Logger = log
	}
}

// WithStorage overrides the SQLite store built from DBPath.
func WithStorage(storage Storage) Option {
	return func(c *Config) {
		c.Storage = storage
	}
}

func WithRecorder(r Recorder) Option {
	return func(c *Config) {
		c.Recorder = r
	}
}

func defaultConfig() *Config {
	return &Config{
		DBPath:     "tempodna.sqlite3",
		TempDir:    "/tmp/tempodna",
		SampleRate: audio.DefaultSampleRate,
		CacheTTL:   30 * time.Minute,
		Tempo:      tempo.DefaultConfig(),
	}
}
