package main

import (
	"fmt"
	"io"
	"os"

	"github.com/alecthomas/kong"
	"github.com/himanishpuri/TempoDNA/internal/config"
	"github.com/himanishpuri/TempoDNA/pkg/logger"
	"github.com/himanishpuri/TempoDNA/pkg/tempodna"
)

var version = "0.1.0"

// Globals are flags shared by every command. Empty or zero values fall back
// to the config file, then to built-in defaults.
type Globals struct {
	Config   string `short:"c" type:"path" env:"TEMPODNA_CONFIG" help:"YAML config file"`
	DB       string `name:"db" env:"TEMPODNA_DB_PATH" help:"SQLite database path"`
	TempDir  string `name:"temp" env:"TEMPODNA_TEMP_DIR" help:"Directory for transcoded audio"`
	Rate     int    `name:"rate" help:"Sample rate non-WAV input is transcoded to"`
	LogLevel string `name:"log-level" env:"LOG_LEVEL" help:"debug, info, warn or error"`

	Out io.Writer `kong:"-"`
}

type CLI struct {
	Globals

	Version     kong.VersionFlag `short:"v" help:"Show version information"`
	Analyze     AnalyzeCmd       `cmd:"" help:"Estimate the tempo of audio files"`
	List        ListCmd          `cmd:"" help:"List stored analyses"`
	Show        ShowCmd          `cmd:"" help:"Show one stored analysis"`
	Delete      DeleteCmd        `cmd:"" help:"Delete a stored analysis"`
	Spectrogram SpectrogramCmd   `cmd:"" help:"Render a spectrogram with beat markers"`
	About       VersionCmd       `cmd:"" name:"version" help:"Print version information"`
}

func main() {
	cli := &CLI{Globals: Globals{Out: os.Stdout}}
	ctx := kong.Parse(cli,
		kong.Name("tempodna"),
		kong.Description("Classical tempo (BPM) estimation and beat tracking"),
		kong.UsageOnError(),
		kong.Vars{"version": version},
	)
	if err := ctx.Run(&cli.Globals); err != nil {
		PrintError(err.Error())
		os.Exit(1)
	}
}

// loadConfig applies the config file and then any flags that were set.
func (g *Globals) loadConfig() (*config.Config, error) {
	cfg := config.Default()
	if g.Config != "" {
		var err error
		if cfg, err = config.Load(g.Config); err != nil {
			return nil, err
		}
	}
	if g.DB != "" {
		cfg.Storage.DBPath = g.DB
	}
	if g.TempDir != "" {
		cfg.Storage.TempDir = g.TempDir
	}
	if g.Rate > 0 {
		cfg.Audio.SampleRate = g.Rate
	}
	if g.LogLevel != "" {
		cfg.LogLevel = g.LogLevel
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// newService builds the service from cfg. store=false disables persistence.
func newService(cfg *config.Config, store bool) (tempodna.Service, error) {
	log := logger.GetLogger()
	log.SetLevel(cfg.Level())

	dbPath := cfg.Storage.DBPath
	if !store {
		dbPath = ""
	}
	return tempodna.NewService(
		tempodna.WithDBPath(dbPath),
		tempodna.WithTempDir(cfg.Storage.TempDir),
		tempodna.WithSampleRate(cfg.Audio.SampleRate),
		tempodna.WithCacheTTL(cfg.Storage.CacheTTL),
		tempodna.WithTempoConfig(cfg.Tempo),
		tempodna.WithLogger(log.WithPrefix("cli")),
	)
}

func (g *Globals) out() io.Writer {
	if g.Out == nil {
		return os.Stdout
	}
	return g.Out
}

func (g *Globals) printf(format string, args ...any) {
	fmt.Fprintf(g.out(), format, args...)
}
