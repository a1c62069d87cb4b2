package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/himanishpuri/TempoDNA/internal/audio"
	"github.com/himanishpuri/TempoDNA/internal/plot"
	"github.com/himanishpuri/TempoDNA/pkg/logger"
	"github.com/himanishpuri/TempoDNA/pkg/models"
	ingest "github.com/himanishpuri/TempoDNA/pkg/tempodna/audio"
	"github.com/himanishpuri/TempoDNA/pkg/tempodna/tempo"
	"github.com/himanishpuri/TempoDNA/pkg/utils"
)

type AnalyzeCmd struct {
	Files      []string `arg:"" optional:"" type:"path" help:"Audio files to analyse"`
	YouTubeURL string   `name:"youtube-url" help:"Download and analyse a YouTube video"`
	Title      string   `help:"Title to store (single input only)"`
	Beats      bool     `help:"Print beat times"`
	JSON       bool     `name:"json" help:"Print results as JSON"`
	Plain      bool     `help:"Print only the integer BPM per input, 0 on failure"`
	NoStore    bool     `name:"no-store" help:"Do not persist results"`
}

func (c *AnalyzeCmd) Run(g *Globals) error {
	cfg, err := g.loadConfig()
	if err != nil {
		if c.Plain {
			c.printZeros(g)
			return nil
		}
		return err
	}
	if c.Plain && cfg.Level() < logger.ERROR {
		cfg.LogLevel = "error"
	}

	if len(c.Files) == 0 && c.YouTubeURL == "" {
		if c.Plain {
			g.printf("0\n")
			return nil
		}
		return errors.New("no input: give audio files or --youtube-url")
	}
	if c.Title != "" && len(c.Files)+btoi(c.YouTubeURL != "") > 1 {
		if c.Plain {
			c.printZeros(g)
			return nil
		}
		return errors.New("--title needs exactly one input")
	}

	svc, err := newService(cfg, !c.NoStore)
	if err != nil {
		if c.Plain {
			c.printZeros(g)
			return nil
		}
		return err
	}
	defer svc.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	var results []*models.Analysis
	var failed int
	handle := func(name string, a *models.Analysis, err error) {
		switch {
		case c.Plain:
			if err != nil {
				g.printf("0\n")
			} else {
				g.printf("%d\n", a.BPM)
			}
		case err != nil:
			failed++
			PrintError(fmt.Sprintf("%s: %v", name, err))
		case c.JSON:
			results = append(results, a)
		default:
			printAnalysis(g, a, c.Beats)
		}
	}

	for _, path := range c.Files {
		a, err := svc.AnalyzeFile(ctx, path, c.Title)
		handle(path, a, err)
	}
	if c.YouTubeURL != "" {
		a, err := svc.AnalyzeYouTube(ctx, c.YouTubeURL)
		handle(c.YouTubeURL, a, err)
	}

	if c.JSON && !c.Plain {
		enc := json.NewEncoder(g.out())
		enc.SetIndent("", "  ")
		if !c.Beats {
			for _, a := range results {
				a.BeatTimes = nil
			}
		}
		if err := enc.Encode(results); err != nil {
			return err
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d input(s) failed", failed, len(c.Files)+btoi(c.YouTubeURL != ""))
	}
	return nil
}

func (c *AnalyzeCmd) printZeros(g *Globals) {
	n := max(1, len(c.Files)+btoi(c.YouTubeURL != ""))
	for range n {
		g.printf("0\n")
	}
}

func btoi(b bool) int {
	if b {
		return 1
	}
	return 0
}

type ListCmd struct{}

func (c *ListCmd) Run(g *Globals) error {
	cfg, err := g.loadConfig()
	if err != nil {
		return err
	}
	svc, err := newService(cfg, true)
	if err != nil {
		return err
	}
	defer svc.Close()

	tracks, err := svc.ListTracks()
	if err != nil {
		return err
	}
	if len(tracks) == 0 {
		g.printf("%s\n", MutedStyle.Render("No analyses stored yet."))
		return nil
	}

	g.printf("%s\n", TitleStyle.Render(fmt.Sprintf("%d stored analyses", len(tracks))))
	for _, t := range tracks {
		g.printf("%s  %s  %s  %s\n",
			BPMStyle.Render(fmt.Sprintf("%3d BPM", t.BPM)),
			ValueStyle.Render(t.Title),
			KeyStyle.Render(t.ID),
			MutedStyle.Render(humanize.Time(t.CreatedAt)),
		)
	}
	return nil
}

type ShowCmd struct {
	ID    string `arg:"" help:"Track ID"`
	Beats bool   `help:"Print beat times"`
}

func (c *ShowCmd) Run(g *Globals) error {
	cfg, err := g.loadConfig()
	if err != nil {
		return err
	}
	svc, err := newService(cfg, true)
	if err != nil {
		return err
	}
	defer svc.Close()

	a, err := svc.GetTrack(c.ID)
	if err != nil {
		return err
	}
	printAnalysis(g, a, c.Beats)
	return nil
}

type DeleteCmd struct {
	ID string `arg:"" help:"Track ID"`
}

func (c *DeleteCmd) Run(g *Globals) error {
	cfg, err := g.loadConfig()
	if err != nil {
		return err
	}
	svc, err := newService(cfg, true)
	if err != nil {
		return err
	}
	defer svc.Close()

	if err := svc.DeleteTrack(c.ID); err != nil {
		return err
	}
	g.printf("%s %s\n", SuccessStyle.Render("Deleted"), c.ID)
	return nil
}

type SpectrogramCmd struct {
	File   string `arg:"" type:"existingfile" help:"Audio file"`
	Output string `short:"o" type:"path" help:"PNG path (default: <file>.png)"`
	Width  int    `default:"2048" help:"Image width in pixels"`
	Height int    `default:"512" help:"Image height in pixels"`
	Log    bool   `help:"Logarithmic magnitude"`
}

func (c *SpectrogramCmd) Run(g *Globals) error {
	cfg, err := g.loadConfig()
	if err != nil {
		return err
	}
	svc, err := newService(cfg, false)
	if err != nil {
		return err
	}
	defer svc.Close()

	ctx := context.Background()
	samples, sr, err := loadSamples(ctx, c.File, cfg.Storage.TempDir, cfg.Audio.SampleRate)
	if err != nil {
		return err
	}

	var beats []float64
	a, err := svc.AnalyzeSamples(ctx, samples, sr, utils.TitleFromPath(c.File))
	switch {
	case err == nil:
		beats = a.BeatTimes
	case errors.Is(err, tempo.ErrInsufficientSignal), errors.Is(err, tempo.ErrNoBeatsFound):
		PrintError(fmt.Sprintf("no beats to mark: %v", err))
	default:
		return err
	}

	out := c.Output
	if out == "" {
		out = strings.TrimSuffix(c.File, filepath.Ext(c.File)) + ".png"
	}
	opts := plot.Options{Width: c.Width, Height: c.Height, Log: c.Log}
	if err := plot.RenderBeats(out, samples, sr, beats, opts); err != nil {
		return err
	}
	g.printf("%s %s (%d beats)\n", SuccessStyle.Render("Wrote"), out, len(beats))
	return nil
}

// loadSamples decodes WAV directly and transcodes anything else.
func loadSamples(ctx context.Context, path, tempDir string, rate int) ([]float64, int, error) {
	if utils.IsWav(path) {
		samples, sr, err := audio.ReadWavAsFloat64(path)
		if err == nil || !errors.Is(err, audio.ErrUnsupportedFormat) {
			return samples, sr, err
		}
	}
	wavPath, err := ingest.ConvertToMonoWAV(ctx, path, tempDir, ingest.ConvertWAVConfig{SampleRate: rate})
	if err != nil {
		return nil, 0, err
	}
	defer os.Remove(wavPath)
	return audio.ReadWavAsFloat64(wavPath)
}

type VersionCmd struct{}

func (c *VersionCmd) Run(g *Globals) error {
	g.printf("%s\n", TitleStyle.Render("TempoDNA"))
	g.printf("%s %s\n", KeyStyle.Render("Version:"), ValueStyle.Render(version))
	return nil
}

func printAnalysis(g *Globals, a *models.Analysis, beats bool) {
	g.printf("%s\n", TitleStyle.Render(a.Title))
	row := func(k, v string) { g.printf("  %s %s\n", KeyStyle.Render(fmt.Sprintf("%-10s", k)), v) }

	row("Tempo:", BPMStyle.Render(fmt.Sprintf("%d BPM", a.BPM)))
	row("Tracker:", ValueStyle.Render(fmt.Sprintf("%.2f BPM", a.TrackerBPM)))
	row("Estimator:", ValueStyle.Render(fmt.Sprintf("%.2f BPM", a.EstimatorBPM)))
	if a.OctaveMismatch {
		row("", WarnStyle.Render("tracker and estimator disagree (possible octave error)"))
	}
	row("Beats:", ValueStyle.Render(humanize.Comma(int64(a.BeatCount))))
	row("Duration:", ValueStyle.Render((time.Duration(a.DurationMs) * time.Millisecond).String()))
	if a.ID != "" {
		row("ID:", MutedStyle.Render(a.ID))
	}
	if a.YouTubeID != "" {
		row("YouTube:", MutedStyle.Render("https://youtube.com/watch?v="+a.YouTubeID))
	}
	if a.Cached {
		row("", MutedStyle.Render("(cached)"))
	}
	if beats && len(a.BeatTimes) > 0 {
		parts := make([]string, len(a.BeatTimes))
		for i, t := range a.BeatTimes {
			parts[i] = fmt.Sprintf("%.3f", t)
		}
		row("Times:", strings.Join(parts, " "))
	}
	g.printf("\n")
}
