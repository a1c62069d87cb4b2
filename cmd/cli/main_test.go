package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/alecthomas/kong"
	"github.com/himanishpuri/TempoDNA/internal/audio"
	"github.com/himanishpuri/TempoDNA/internal/testutil"
	"github.com/himanishpuri/TempoDNA/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testGlobals(t *testing.T) (*Globals, *bytes.Buffer) {
	t.Helper()
	var buf bytes.Buffer
	dir := t.TempDir()
	return &Globals{
		DB:       filepath.Join(dir, "cli.sqlite3"),
		TempDir:  filepath.Join(dir, "tmp"),
		LogLevel: "error",
		Out:      &buf,
	}, &buf
}

func clickFile(t *testing.T, bpm float64) string {
	t.Helper()
	opts := testutil.DefaultClicks()
	opts.BPM = bpm
	path := filepath.Join(t.TempDir(), "clicks.wav")
	require.NoError(t, audio.WriteWavFloat64(path, testutil.ClickTrack(opts), opts.SampleRate))
	return path
}

func TestParseAnalyzeFlags(t *testing.T) {
	cli := &CLI{}
	parser, err := kong.New(cli, kong.Vars{"version": version}, kong.Exit(func(int) { t.Fatal("unexpected exit") }))
	require.NoError(t, err)

	ctx, err := parser.Parse([]string{"--db", "x.sqlite3", "analyze", "--plain", "--no-store", "a.wav", "b.mp3"})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(ctx.Command(), "analyze"))
	assert.True(t, cli.Analyze.Plain)
	assert.True(t, cli.Analyze.NoStore)
	assert.Len(t, cli.Analyze.Files, 2)
	assert.Equal(t, "x.sqlite3", cli.DB)
}

func TestAnalyzePlainPrintsBPM(t *testing.T) {
	g, out := testGlobals(t)
	cmd := &AnalyzeCmd{Files: []string{clickFile(t, 120)}, Plain: true, NoStore: true}
	require.NoError(t, cmd.Run(g))

	var bpm int
	_, err := fmt.Sscan(strings.TrimSpace(out.String()), &bpm)
	require.NoError(t, err)
	assert.InDelta(t, 120, bpm, 2)
}

func TestAnalyzePlainPrintsZeroOnFailure(t *testing.T) {
	g, out := testGlobals(t)

	require.NoError(t, (&AnalyzeCmd{Plain: true}).Run(g))
	assert.Equal(t, "0\n", out.String(), "no input")

	out.Reset()
	silence := filepath.Join(t.TempDir(), "silence.wav")
	require.NoError(t, audio.WriteWavFloat64(silence, testutil.Silence(22050, 3), 22050))
	missing := filepath.Join(t.TempDir(), "missing.wav")
	require.NoError(t, (&AnalyzeCmd{Files: []string{silence, missing}, Plain: true, NoStore: true}).Run(g))
	assert.Equal(t, "0\n0\n", out.String())
}

func TestAnalyzeJSONAndStore(t *testing.T) {
	g, out := testGlobals(t)
	path := clickFile(t, 100)

	require.NoError(t, (&AnalyzeCmd{Files: []string{path}, JSON: true, Beats: true, Title: "metronome"}).Run(g))

	var got []models.Analysis
	require.NoError(t, json.Unmarshal(out.Bytes(), &got))
	require.Len(t, got, 1)
	assert.Equal(t, "metronome", got[0].Title)
	assert.InDelta(t, 100, got[0].BPM, 2)
	assert.NotEmpty(t, got[0].BeatTimes)

	out.Reset()
	require.NoError(t, (&ListCmd{}).Run(g))
	assert.Contains(t, out.String(), "metronome")
	assert.Contains(t, out.String(), got[0].ID)

	out.Reset()
	require.NoError(t, (&ShowCmd{ID: got[0].ID}).Run(g))
	assert.Contains(t, out.String(), "metronome")

	out.Reset()
	require.NoError(t, (&DeleteCmd{ID: got[0].ID}).Run(g))
	assert.Contains(t, out.String(), got[0].ID)
	assert.Error(t, (&ShowCmd{ID: got[0].ID}).Run(g))
}

func TestAnalyzeReportsFailures(t *testing.T) {
	g, _ := testGlobals(t)
	err := (&AnalyzeCmd{Files: []string{filepath.Join(t.TempDir(), "missing.wav")}, NoStore: true}).Run(g)
	assert.ErrorContains(t, err, "1 of 1")

	assert.Error(t, (&AnalyzeCmd{}).Run(g))
}

func TestConfigPrecedence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tempodna.yaml")
	require.NoError(t, os.WriteFile(path, []byte("audio:\n  sample_rate: 16000\nstorage:\n  temp_dir: /from/file\n"), 0o644))

	g := &Globals{Config: path, TempDir: "/from/flag"}
	cfg, err := g.loadConfig()
	require.NoError(t, err)
	assert.Equal(t, 16000, cfg.Audio.SampleRate)
	assert.Equal(t, "/from/flag", cfg.Storage.TempDir)

	g.LogLevel = "noisy"
	_, err = g.loadConfig()
	assert.Error(t, err)
}

func TestSpectrogramCommand(t *testing.T) {
	g, out := testGlobals(t)
	png := filepath.Join(t.TempDir(), "clicks.png")
	cmd := &SpectrogramCmd{File: clickFile(t, 120), Output: png, Width: 200, Height: 64}
	require.NoError(t, cmd.Run(g))
	assert.FileExists(t, png)
	assert.Contains(t, out.String(), "Wrote")
}

func TestVersionCommand(t *testing.T) {
	g, out := testGlobals(t)
	require.NoError(t, (&VersionCmd{}).Run(g))
	assert.Contains(t, out.String(), version)
}
