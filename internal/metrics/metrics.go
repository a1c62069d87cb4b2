// Package metrics exposes TempoDNA's Prometheus collectors.
package metrics

import (
	"errors"
	"log"
	"net/http"
	"os"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/himanishpuri/TempoDNA/pkg/tempodna/tempo"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "tempodna"

// Metrics implements tempodna.Recorder and records HTTP traffic.
type Metrics struct {
	registry *prometheus.Registry

	analysesTotal    *prometheus.CounterVec
	analysisDuration *prometheus.HistogramVec
	cacheLookups     *prometheus.CounterVec
	detectedBPM      prometheus.Histogram
	octaveMismatches prometheus.Counter

	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	analyses  atomic.Int64
	failures  atomic.Int64
	cacheHits atomic.Int64
}

// Snapshot is a cheap summary for the JSON health endpoint.
type Snapshot struct {
	Analyses  int64
	Failures  int64
	CacheHits int64
}

// New creates the collectors and registers them on registry. A nil registry
// gets a fresh one.
func New(registry *prometheus.Registry) (*Metrics, error) {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}
	m := &Metrics{registry: registry}

	m.analysesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "analyses_total",
			Help:      "Tempo analyses by source and outcome",
		},
		[]string{"source", "status"}, // status: ok, invalid, insufficient_signal, no_beats, error
	)
	m.analysisDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "analysis_duration_seconds",
			Help:      "Wall time of one analysis including decoding",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"source"},
	)
	m.cacheLookups = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_lookups_total",
			Help:      "In-memory analysis cache lookups",
		},
		[]string{"result"},
	)
	m.detectedBPM = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "detected_bpm",
		Help:      "Distribution of reported tempi",
		Buckets:   prometheus.LinearBuckets(40, 20, 11),
	})
	m.octaveMismatches = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "octave_mismatches_total",
		Help:      "Analyses where tracker and estimator tempi disagree beyond tolerance",
	})
	m.httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "path", "status_code"},
	)
	m.httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "Time taken for HTTP requests",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	for _, c := range []prometheus.Collector{
		m.analysesTotal, m.analysisDuration, m.cacheLookups,
		m.detectedBPM, m.octaveMismatches,
		m.httpRequestsTotal, m.httpRequestDuration,
	} {
		if err := registry.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Metrics) ObserveAnalysis(source string, elapsed time.Duration, err error) {
	m.analyses.Add(1)
	if err != nil {
		m.failures.Add(1)
	}
	m.analysesTotal.WithLabelValues(source, Status(err)).Inc()
	m.analysisDuration.WithLabelValues(source).Observe(elapsed.Seconds())
}

func (m *Metrics) ObserveCache(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
		m.cacheHits.Add(1)
	}
	m.cacheLookups.WithLabelValues(result).Inc()
}

func (m *Metrics) ObserveTempo(bpm int, octaveMismatch bool) {
	m.detectedBPM.Observe(float64(bpm))
	if octaveMismatch {
		m.octaveMismatches.Inc()
	}
}

// ObserveRequest records one served HTTP request.
func (m *Metrics) ObserveRequest(method, path string, status int, elapsed time.Duration) {
	m.httpRequestsTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	m.httpRequestDuration.WithLabelValues(method, path).Observe(elapsed.Seconds())
}

func (m *Metrics) Snapshot() Snapshot {
	return Snapshot{
		Analyses:  m.analyses.Load(),
		Failures:  m.failures.Load(),
		CacheHits: m.cacheHits.Load(),
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		ErrorLog:      log.New(os.Stderr, "metrics handler: ", log.LstdFlags),
		ErrorHandling: promhttp.HTTPErrorOnError,
	})
}

// Status maps an analysis error onto a low-cardinality label.
func Status(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, tempo.ErrInvalidParameters):
		return "invalid"
	case errors.Is(err, tempo.ErrInsufficientSignal):
		return "insufficient_signal"
	case errors.Is(err, tempo.ErrNoBeatsFound):
		return "no_beats"
	default:
		return "error"
	}
}
