package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/himanishpuri/TempoDNA/pkg/logger"
	"github.com/himanishpuri/TempoDNA/pkg/tempodna/tempo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	require.NoError(t, Default().Validate())
}

func TestLoadOverlaysDefaults(t *testing.T) {
	yml := `
log_level: debug
storage:
  db_path: ""
  cache_ttl: 5m
tempo:
  hop_size: 441
  min_bpm: 60
  tail_policy: drop
`
	cfg, err := LoadFromReader(strings.NewReader(yml))
	require.NoError(t, err)

	assert.Equal(t, logger.DEBUG, cfg.Level())
	assert.Empty(t, cfg.Storage.DBPath)
	assert.Equal(t, 5*time.Minute, cfg.Storage.CacheTTL)
	assert.Equal(t, "/tmp/tempodna", cfg.Storage.TempDir, "unset keys keep defaults")
	assert.Equal(t, 441, cfg.Tempo.HopSize)
	assert.Equal(t, 60.0, cfg.Tempo.MinBPM)
	assert.Equal(t, tempo.TailDrop, cfg.Tempo.TailPolicy)
	assert.Equal(t, tempo.DefaultFrameLength, cfg.Tempo.FrameLength)
}

func TestLoadEmptyDocument(t *testing.T) {
	cfg, err := LoadFromReader(strings.NewReader(""))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	_, err := LoadFromReader(strings.NewReader("tempo:\n  hop: 10\n"))
	assert.ErrorContains(t, err, "decode yaml")
}

func TestValidateJoinsAllProblems(t *testing.T) {
	yml := `
log_level: loud
audio:
  sample_rate: 100
tempo:
  max_bpm: 10
`
	_, err := LoadFromReader(strings.NewReader(yml))
	require.Error(t, err)
	assert.ErrorContains(t, err, "log_level")
	assert.ErrorContains(t, err, "audio.sample_rate")
	assert.ErrorIs(t, err, tempo.ErrInvalidParameters)
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tempodna.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  port: \"9090\"\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "9090", cfg.Server.Port)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}
