package main

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/himanishpuri/TempoDNA/internal/audio"
	"github.com/himanishpuri/TempoDNA/internal/metrics"
	"github.com/himanishpuri/TempoDNA/internal/testutil"
	"github.com/himanishpuri/TempoDNA/pkg/logger"
	"github.com/himanishpuri/TempoDNA/pkg/models"
	"github.com/himanishpuri/TempoDNA/pkg/tempodna"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) (http.Handler, *metrics.Metrics) {
	t.Helper()
	dir := t.TempDir()
	m, err := metrics.New(nil)
	require.NoError(t, err)

	svc, err := tempodna.NewService(
		tempodna.WithDBPath(filepath.Join(dir, "server.sqlite3")),
		tempodna.WithTempDir(filepath.Join(dir, "tmp")),
		tempodna.WithLogger(logger.New(logger.Config{Level: logger.ERROR, Output: io.Discard})),
		tempodna.WithRecorder(m),
	)
	require.NoError(t, err)
	t.Cleanup(func() { svc.Close() })

	srv := NewServer(svc, &ServerConfig{
		Port:           "0",
		TempDir:        filepath.Join(dir, "uploads"),
		SampleRate:     22050,
		AllowedOrigins: []string{"*"},
	}, m)
	srv.log = logger.New(logger.Config{Level: logger.ERROR, Output: io.Discard})
	return srv.setupRoutes(), m
}

func do(t *testing.T, h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func uploadRequest(t *testing.T, filename string, content []byte) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("audio", filename)
	require.NoError(t, err)
	_, err = fw.Write(content)
	require.NoError(t, err)
	require.NoError(t, mw.WriteField("title", "upload"))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/tempo", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func clickWav(t *testing.T, bpm float64) []byte {
	t.Helper()
	opts := testutil.DefaultClicks()
	opts.BPM = bpm
	path := filepath.Join(t.TempDir(), "clicks.wav")
	require.NoError(t, audio.WriteWavFloat64(path, testutil.ClickTrack(opts), opts.SampleRate))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return data
}

func TestRootAndHealth(t *testing.T) {
	h, _ := newTestServer(t)

	rec := do(t, h, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "/api/tempo")

	rec = do(t, h, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "healthy")

	rec = do(t, h, httptest.NewRequest(http.MethodGet, "/nope", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestUploadAnalyzeAndManageTrack(t *testing.T) {
	h, _ := newTestServer(t)

	rec := do(t, h, uploadRequest(t, "clicks.wav", clickWav(t, 120)))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var a models.Analysis
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &a))
	assert.InDelta(t, 120, a.BPM, 2)
	assert.Equal(t, "upload", a.Title)
	assert.Equal(t, "clicks.wav", a.SourcePath, "the temp copy must not be recorded")
	assert.NotEmpty(t, a.BeatTimes)

	rec = do(t, h, httptest.NewRequest(http.MethodGet, "/api/tracks", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var list ListTracksResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	assert.Equal(t, 1, list.Count)

	rec = do(t, h, httptest.NewRequest(http.MethodGet, "/api/tracks/"+a.ID, nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	var stored models.Analysis
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stored))
	assert.Equal(t, "clicks.wav", stored.SourcePath)

	rec = do(t, h, httptest.NewRequest(http.MethodDelete, "/api/tracks/"+a.ID, nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, h, httptest.NewRequest(http.MethodGet, "/api/tracks/"+a.ID, nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, h, httptest.NewRequest(http.MethodGet, "/api/tracks/not-a-uuid", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUploadSilenceIsUnprocessable(t *testing.T) {
	h, _ := newTestServer(t)
	path := filepath.Join(t.TempDir(), "silence.wav")
	require.NoError(t, audio.WriteWavFloat64(path, testutil.Silence(22050, 3), 22050))
	data, err := os.ReadFile(path)
	require.NoError(t, err)

	rec := do(t, h, uploadRequest(t, "silence.wav", data))
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestUploadWithoutFile(t *testing.T) {
	h, _ := newTestServer(t)
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	require.NoError(t, mw.WriteField("title", "x"))
	require.NoError(t, mw.Close())
	req := httptest.NewRequest(http.MethodPost, "/api/tempo", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())

	rec := do(t, h, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAnalyzeSamples(t *testing.T) {
	h, m := newTestServer(t)
	opts := testutil.DefaultClicks()
	mono := testutil.ClickTrack(opts)
	stereo := make([]float64, 2*len(mono))
	for i, v := range mono {
		stereo[2*i], stereo[2*i+1] = v, v
	}

	body, err := json.Marshal(SamplesRequest{Samples: stereo, SampleRate: opts.SampleRate, Channels: 2, Title: "browser"})
	require.NoError(t, err)
	rec := do(t, h, httptest.NewRequest(http.MethodPost, "/api/tempo/samples", bytes.NewReader(body)))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var a models.Analysis
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &a))
	assert.InDelta(t, 120, a.BPM, 2)
	assert.Equal(t, "browser", a.Title)

	rec = do(t, h, httptest.NewRequest(http.MethodPost, "/api/tempo/samples", bytes.NewReader(body)))
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &a))
	assert.True(t, a.Cached)
	assert.Equal(t, int64(1), m.Snapshot().CacheHits)
}

func TestAnalyzeSamplesRejectsBadInput(t *testing.T) {
	h, _ := newTestServer(t)
	tests := []struct {
		name string
		body string
	}{
		{"not json", `{`},
		{"empty", `{"samples": [], "sample_rate": 22050}`},
		{"no rate", `{"samples": [0.1, 0.2]}`},
		{"odd stereo", `{"samples": [0.1, 0.2, 0.3], "sample_rate": 22050, "channels": 2}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, h, httptest.NewRequest(http.MethodPost, "/api/tempo/samples", bytes.NewBufferString(tt.body)))
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestYouTubeRejectsBadURL(t *testing.T) {
	h, _ := newTestServer(t)
	rec := do(t, h, httptest.NewRequest(http.MethodPost, "/api/tempo/youtube", bytes.NewBufferString(`{"youtube_url": "https://vimeo.com/1"}`)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, h, httptest.NewRequest(http.MethodPost, "/api/tempo/youtube", bytes.NewBufferString(`{}`)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMethodNotAllowed(t *testing.T) {
	h, _ := newTestServer(t)
	for _, path := range []string{"/api/tempo", "/api/tempo/samples", "/api/tempo/youtube"} {
		rec := do(t, h, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusMethodNotAllowed, rec.Code, path)
	}
	rec := do(t, h, httptest.NewRequest(http.MethodPost, "/api/tracks", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestCORSPreflight(t *testing.T) {
	h, _ := newTestServer(t)
	req := httptest.NewRequest(http.MethodOptions, "/api/tempo", nil)
	req.Header.Set("Origin", "https://example.com")

	rec := do(t, h, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestCORSAllowList(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})
	h := corsMiddleware([]string{"https://ok.example"})(next)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Origin", "https://ok.example")
	rec := do(t, h, req)
	assert.Equal(t, "https://ok.example", rec.Header().Get("Access-Control-Allow-Origin"))

	req.Header.Set("Origin", "https://evil.example")
	rec = do(t, h, req)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestMetricsEndpoints(t *testing.T) {
	h, _ := newTestServer(t)
	do(t, h, httptest.NewRequest(http.MethodGet, "/health", nil))

	rec := do(t, h, httptest.NewRequest(http.MethodGet, "/api/health/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var resp MetricsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "healthy", resp.Status)
	assert.Equal(t, 22050, resp.SampleRate)

	rec = do(t, h, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `tempodna_http_requests_total{method="GET",path="/health",status_code="200"} 1`)
}

func TestRouteLabelAndClientIP(t *testing.T) {
	assert.Equal(t, "/api/tracks/{id}", routeLabel("/api/tracks/123"))
	assert.Equal(t, "/api/tempo", routeLabel("/api/tempo"))
	assert.Equal(t, "other", routeLabel("/favicon.ico"))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.1:1234"
	assert.Equal(t, "10.0.0.1", getClientIP(req))
	req.Header.Set("X-Forwarded-For", "1.2.3.4, 5.6.7.8")
	assert.Equal(t, "1.2.3.4", getClientIP(req))
}
