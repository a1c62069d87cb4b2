//go:build !js && !wasm

package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/himanishpuri/TempoDNA/internal/config"
	"github.com/himanishpuri/TempoDNA/internal/metrics"
	"github.com/himanishpuri/TempoDNA/pkg/logger"
	"github.com/himanishpuri/TempoDNA/pkg/tempodna"
)

var version = "0.1.0"

var (
	configPath     string
	port           string
	dbPath         string
	tempDir        string
	sampleRate     int
	allowedOrigins string
)

func init() {
	flag.StringVar(&configPath, "config", os.Getenv("TEMPODNA_CONFIG"), "YAML config file")
	flag.StringVar(&port, "port", "", "HTTP server port")
	flag.StringVar(&dbPath, "db", os.Getenv("TEMPODNA_DB_PATH"), "Path to SQLite database")
	flag.StringVar(&tempDir, "temp", os.Getenv("TEMPODNA_TEMP_DIR"), "Temporary directory")
	flag.IntVar(&sampleRate, "rate", 0, "Sample rate non-WAV uploads are transcoded to")
	flag.StringVar(&allowedOrigins, "origins", "", "Comma-separated list of allowed CORS origins (use * for all)")
}

// loadConfig reads the config file, then lets flags and env vars override it.
func loadConfig() (*config.Config, error) {
	cfg := config.Default()
	if configPath != "" {
		var err error
		if cfg, err = config.Load(configPath); err != nil {
			return nil, err
		}
	}
	if port != "" {
		cfg.Server.Port = port
	}
	if dbPath != "" {
		cfg.Storage.DBPath = dbPath
	}
	if tempDir != "" {
		cfg.Storage.TempDir = tempDir
	}
	if sampleRate > 0 {
		cfg.Audio.SampleRate = sampleRate
	}
	if allowedOrigins != "" {
		origins := strings.Split(allowedOrigins, ",")
		for i := range origins {
			origins[i] = strings.TrimSpace(origins[i])
		}
		cfg.Server.AllowedOrigins = origins
	}
	if lvl := os.Getenv("LOG_LEVEL"); lvl != "" {
		cfg.LogLevel = lvl
	}
	return cfg, cfg.Validate()
}

func main() {
	flag.Parse()
	log := logger.GetLogger()

	cfg, err := loadConfig()
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}
	log.SetLevel(cfg.Level())

	m, err := metrics.New(nil)
	if err != nil {
		log.Fatalf("Failed to create metrics: %v", err)
	}

	service, err := tempodna.NewService(
		tempodna.WithDBPath(cfg.Storage.DBPath),
		tempodna.WithTempDir(cfg.Storage.TempDir),
		tempodna.WithSampleRate(cfg.Audio.SampleRate),
		tempodna.WithCacheTTL(cfg.Storage.CacheTTL),
		tempodna.WithTempoConfig(cfg.Tempo),
		tempodna.WithLogger(log.WithPrefix("service")),
		tempodna.WithRecorder(m),
	)
	if err != nil {
		log.Fatalf("Failed to create service: %v", err)
	}
	defer service.Close()

	server := NewServer(service, &ServerConfig{
		Port:           cfg.Server.Port,
		DBPath:         cfg.Storage.DBPath,
		TempDir:        cfg.Storage.TempDir,
		SampleRate:     cfg.Audio.SampleRate,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		MaxUploadBytes: cfg.Server.MaxUploadMB << 20,
	}, m)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := server.Start(ctx); err != nil {
		log.Errorf("Server failed: %v", err)
		os.Exit(1)
	}
}
