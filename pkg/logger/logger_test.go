package logger

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBuffered(level LogLevel) (*Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	return New(Config{Level: level, Output: &buf}), &buf
}

func TestLevelFiltering(t *testing.T) {
	log, buf := newBuffered(WARN)

	log.Debugf("hidden %d", 1)
	log.Infof("hidden %d", 2)
	log.Warnf("shown %d", 3)
	log.Errorf("shown %d", 4)

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "[WARN] shown 3")
	assert.Contains(t, out, "[ERROR] shown 4")
}

func TestWithPrefixSharesSink(t *testing.T) {
	log, buf := newBuffered(INFO)
	child := log.WithPrefix("tempo").WithPrefix("tracker")

	child.Infof("beats=%d", 12)
	log.SetLevel(ERROR)
	child.Infof("dropped")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 1)
	assert.Contains(t, lines[0], "[tempo] [tracker] beats=12")
	assert.Equal(t, ERROR, child.Level())
}

func TestNoColourWithoutTerminal(t *testing.T) {
	log, buf := newBuffered(DEBUG)
	log.Debugf("plain")
	assert.NotContains(t, buf.String(), "\033[")

	log.SetColorize(true)
	log.Debugf("tinted")
	assert.Contains(t, buf.String(), colorGray+"[DEBUG]"+colorReset)
}

func TestParseLevel(t *testing.T) {
	tests := map[string]LogLevel{
		"debug":   DEBUG,
		"INFO":    INFO,
		"":        INFO,
		"warning": WARN,
		" Warn ":  WARN,
		"error":   ERROR,
		"fatal":   FATAL,
	}
	for in, want := range tests {
		got, err := ParseLevel(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseLevel("verbose")
	assert.Error(t, err)
}

func TestMessageWithoutArgsIsNotFormatted(t *testing.T) {
	log, buf := newBuffered(INFO)
	log.Info("100% done")
	assert.Contains(t, buf.String(), "100% done")
}
