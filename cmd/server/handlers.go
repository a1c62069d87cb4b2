package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/himanishpuri/TempoDNA/internal/metrics"
	"github.com/himanishpuri/TempoDNA/pkg/logger"
	"github.com/himanishpuri/TempoDNA/pkg/models"
	"github.com/himanishpuri/TempoDNA/pkg/tempodna"
	ingest "github.com/himanishpuri/TempoDNA/pkg/tempodna/audio"
	"github.com/himanishpuri/TempoDNA/pkg/tempodna/tempo"
	"github.com/himanishpuri/TempoDNA/pkg/utils"
)

// Server encapsulates the HTTP server and its dependencies
type Server struct {
	service tempodna.Service
	config  *ServerConfig
	log     tempodna.Logger
	metrics *metrics.Metrics
	started time.Time
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Port           string
	DBPath         string
	TempDir        string
	SampleRate     int
	AllowedOrigins []string
	MaxUploadBytes int64
}

// NewServer creates a new server instance. m may be nil.
func NewServer(service tempodna.Service, config *ServerConfig, m *metrics.Metrics) *Server {
	if config.MaxUploadBytes <= 0 {
		config.MaxUploadBytes = 50 << 20
	}
	return &Server{
		service: service,
		config:  config,
		log:     logger.GetLogger().WithPrefix("http"),
		metrics: m,
		started: time.Now(),
	}
}

// respondJSON writes a JSON response
func (s *Server) respondJSON(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.log.Errorf("Failed to encode JSON response: %v", err)
	}
}

// respondError writes an error response
func (s *Server) respondError(w http.ResponseWriter, statusCode int, message string) {
	s.respondJSON(w, statusCode, ErrorResponse{
		Error:   http.StatusText(statusCode),
		Message: message,
		Code:    statusCode,
	})
}

// statusFor maps service errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, tempo.ErrInvalidParameters):
		return http.StatusBadRequest
	case errors.Is(err, tempo.ErrInsufficientSignal), errors.Is(err, tempo.ErrNoBeatsFound):
		return http.StatusUnprocessableEntity
	case errors.Is(err, tempodna.ErrTrackNotFound):
		return http.StatusNotFound
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// handleRoot handles GET /
func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	s.respondJSON(w, http.StatusOK, map[string]any{
		"service": "TempoDNA API",
		"version": version,
		"endpoints": map[string]string{
			"health":         "GET /health",
			"metrics":        "GET /api/health/metrics",
			"prometheus":     "GET /metrics",
			"analyzeFile":    "POST /api/tempo",
			"analyzeSamples": "POST /api/tempo/samples",
			"analyzeYouTube": "POST /api/tempo/youtube",
			"tracks":         "GET /api/tracks",
			"getTrack":       "GET /api/tracks/{id}",
			"deleteTrack":    "DELETE /api/tracks/{id}",
		},
	})
}

// handleHealth handles GET /health
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
		"time":   time.Now().Format(time.RFC3339),
	})
}

// handleMetrics handles GET /api/health/metrics
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	tracks, err := s.service.ListTracks()
	if err != nil {
		s.log.Errorf("Failed to get track count: %v", err)
		s.respondError(w, http.StatusInternalServerError, "Failed to retrieve metrics")
		return
	}

	resp := MetricsResponse{
		Status:       "healthy",
		DatabasePath: s.config.DBPath,
		TrackCount:   len(tracks),
		SampleRate:   s.config.SampleRate,
		FFmpeg:       ingest.FFmpegAvailable(),
		Uptime:       time.Since(s.started).Round(time.Second).String(),
	}
	if s.metrics != nil {
		snap := s.metrics.Snapshot()
		resp.Analyses, resp.Failures, resp.CacheHits = snap.Analyses, snap.Failures, snap.CacheHits
	}
	s.respondJSON(w, http.StatusOK, resp)
}

// handleAnalyzeFile handles POST /api/tempo (multipart file upload)
func (s *Server) handleAnalyzeFile(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Minute)
	defer cancel()

	r.Body = http.MaxBytesReader(w, r.Body, s.config.MaxUploadBytes)
	if err := r.ParseMultipartForm(s.config.MaxUploadBytes); err != nil {
		s.log.Warnf("Failed to parse form: %v", err)
		s.respondError(w, http.StatusBadRequest, "Failed to parse form data")
		return
	}

	file, header, err := r.FormFile("audio")
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "audio file is required")
		return
	}
	defer file.Close()

	title := r.FormValue("title")

	tempFile, err := s.saveUpload(file, header.Filename)
	if err != nil {
		s.log.Errorf("Failed to save upload: %v", err)
		s.respondError(w, http.StatusInternalServerError, "Failed to save uploaded file")
		return
	}
	defer os.Remove(tempFile)

	s.log.Infof("Analysing upload %s (%d bytes)", header.Filename, header.Size)
	a, err := s.service.AnalyzeUpload(ctx, tempFile, header.Filename, title)
	if err != nil {
		s.log.Warnf("Analysis of %s failed: %v", header.Filename, err)
		s.respondError(w, statusFor(err), fmt.Sprintf("Failed to analyse audio: %v", err))
		return
	}
	s.respondJSON(w, http.StatusOK, a)
}

// saveUpload copies an upload into TempDir keeping its extension, which
// decides how the file is decoded.
func (s *Server) saveUpload(src io.Reader, filename string) (string, error) {
	if err := utils.MakeDir(s.config.TempDir); err != nil {
		return "", err
	}
	ext := strings.ToLower(filepath.Ext(filename))
	out, err := os.CreateTemp(s.config.TempDir, "upload_*"+ext)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(out, src); err != nil {
		out.Close()
		os.Remove(out.Name())
		return "", err
	}
	if err := out.Close(); err != nil {
		os.Remove(out.Name())
		return "", err
	}
	return out.Name(), nil
}

// handleAnalyzeSamples handles POST /api/tempo/samples (decoded audio from
// browser and WASM clients)
func (s *Server) handleAnalyzeSamples(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), time.Minute)
	defer cancel()

	var req SamplesRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, s.config.MaxUploadBytes*4))
	if err := dec.Decode(&req); err != nil {
		s.log.Warnf("Failed to decode request: %v", err)
		s.respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := req.Validate(); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	a, err := s.service.AnalyzeSamples(ctx, req.Mono(), req.SampleRate, req.Title)
	if err != nil {
		s.respondError(w, statusFor(err), fmt.Sprintf("Failed to analyse samples: %v", err))
		return
	}
	s.respondJSON(w, http.StatusOK, a)
}

// handleAnalyzeYouTube handles POST /api/tempo/youtube
func (s *Server) handleAnalyzeYouTube(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Minute)
	defer cancel()

	var req YouTubeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := req.Validate(); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if !utils.IsYouTubeURL(req.YouTubeURL) {
		s.respondError(w, http.StatusBadRequest, "youtube_url is not a YouTube URL")
		return
	}

	a, err := s.service.AnalyzeYouTube(ctx, req.YouTubeURL)
	if err != nil {
		s.log.Errorf("YouTube analysis failed: %v", err)
		s.respondError(w, statusFor(err), fmt.Sprintf("Failed to analyse YouTube video: %v", err))
		return
	}
	s.respondJSON(w, http.StatusOK, a)
}

// handleListTracks handles GET /api/tracks
func (s *Server) handleListTracks(w http.ResponseWriter, r *http.Request) {
	tracks, err := s.service.ListTracks()
	if err != nil {
		s.log.Errorf("Failed to list tracks: %v", err)
		s.respondError(w, http.StatusInternalServerError, "Failed to retrieve tracks")
		return
	}
	if tracks == nil {
		tracks = []models.Track{}
	}
	s.respondJSON(w, http.StatusOK, ListTracksResponse{Tracks: tracks, Count: len(tracks)})
}

// handleTracks routes requests to /api/tracks
func (s *Server) handleTracks(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.respondError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	s.handleListTracks(w, r)
}

// handleTrack routes requests to /api/tracks/{id}
func (s *Server) handleTrack(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/api/tracks/")
	if id == "" {
		s.respondError(w, http.StatusBadRequest, "Track ID required")
		return
	}
	if !utils.IsUUID(id) {
		s.respondError(w, http.StatusBadRequest, "Invalid track ID")
		return
	}

	switch r.Method {
	case http.MethodGet:
		a, err := s.service.GetTrack(id)
		if err != nil {
			s.respondError(w, statusFor(err), fmt.Sprintf("Track %s not found", id))
			return
		}
		s.respondJSON(w, http.StatusOK, a)
	case http.MethodDelete:
		if err := s.service.DeleteTrack(id); err != nil {
			s.respondError(w, statusFor(err), fmt.Sprintf("Failed to delete track %s: %v", id, err))
			return
		}
		s.respondJSON(w, http.StatusOK, DeleteTrackResponse{Message: "Track deleted successfully", ID: id})
	default:
		s.respondError(w, http.StatusMethodNotAllowed, "Method not allowed")
	}
}

// postOnly rejects anything but POST.
func (s *Server) postOnly(h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			s.respondError(w, http.StatusMethodNotAllowed, "Method not allowed")
			return
		}
		h(w, r)
	}
}
