// Package config loads TempoDNA's YAML configuration file.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/himanishpuri/TempoDNA/pkg/logger"
	"github.com/himanishpuri/TempoDNA/pkg/tempodna/audio"
	"github.com/himanishpuri/TempoDNA/pkg/tempodna/tempo"
	"gopkg.in/yaml.v3"
)

// Config is the top-level configuration. Keys missing from the file keep
// their Default values.
type Config struct {
	LogLevel string        `yaml:"log_level"`
	Storage  StorageConfig `yaml:"storage"`
	Audio    AudioConfig   `yaml:"audio"`
	Server   ServerConfig  `yaml:"server"`
	Tempo    tempo.Config  `yaml:"tempo"`
}

type StorageConfig struct {
	DBPath   string        `yaml:"db_path"` // empty disables persistence
	TempDir  string        `yaml:"temp_dir"`
	CacheTTL time.Duration `yaml:"cache_ttl"`
}

type AudioConfig struct {
	SampleRate int `yaml:"sample_rate"`
}

type ServerConfig struct {
	Port           string   `yaml:"port"`
	AllowedOrigins []string `yaml:"allowed_origins"`
	MaxUploadMB    int64    `yaml:"max_upload_mb"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		LogLevel: "info",
		Storage: StorageConfig{
			DBPath:   "tempodna.sqlite3",
			TempDir:  "/tmp/tempodna",
			CacheTTL: 30 * time.Minute,
		},
		Audio: AudioConfig{SampleRate: audio.DefaultSampleRate},
		Server: ServerConfig{
			Port:           "8080",
			AllowedOrigins: []string{"*"},
			MaxUploadMB:    50,
		},
		Tempo: tempo.DefaultConfig(),
	}
}

// Load reads the YAML file at path over Default and validates the result.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes YAML from r over Default. Unknown keys are errors.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate returns every problem found, joined.
func (c *Config) Validate() error {
	var errs []error

	if _, err := logger.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, fmt.Errorf("log_level: %w", err))
	}
	if c.Storage.TempDir == "" {
		errs = append(errs, errors.New("storage.temp_dir is required"))
	}
	if c.Storage.CacheTTL < 0 {
		errs = append(errs, fmt.Errorf("storage.cache_ttl %s must not be negative", c.Storage.CacheTTL))
	}
	if c.Audio.SampleRate < 8000 || c.Audio.SampleRate > 192000 {
		errs = append(errs, fmt.Errorf("audio.sample_rate %d is out of range [8000, 192000]", c.Audio.SampleRate))
	}
	if c.Server.Port == "" {
		errs = append(errs, errors.New("server.port is required"))
	}
	if c.Server.MaxUploadMB <= 0 {
		errs = append(errs, fmt.Errorf("server.max_upload_mb must be positive, got %d", c.Server.MaxUploadMB))
	}
	if err := c.Tempo.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("tempo: %w", err))
	}

	return errors.Join(errs...)
}

// Level is the parsed log level; Validate has already rejected bad values.
func (c *Config) Level() logger.LogLevel {
	lvl, _ := logger.ParseLevel(c.LogLevel)
	return lvl
}
