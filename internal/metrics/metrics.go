// Package metrics exposes Prometheus instrumentation for the service.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTP metrics
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "waterwatch",
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "Total HTTP requests processed",
	}, []string{"method", "route", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "waterwatch",
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request latency in seconds",
		Buckets:   []float64{0.005, 0.05, 0.25, 1, 2.5, 5, 10, 30, 60, 120},
	}, []string{"method", "route"})

	// Pipeline metrics
	PipelineRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "waterwatch",
		Subsystem: "pipeline",
		Name:      "runs_total",
		Help:      "Pipeline runs by variant and outcome",
	}, []string{"variant", "outcome"})

	PipelineDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "waterwatch",
		Subsystem: "pipeline",
		Name:      "duration_seconds",
		Help:      "End-to-end pipeline duration",
		Buckets:   []float64{1, 2.5, 5, 10, 20, 40, 80, 160},
	}, []string{"variant"})

	SceneSearchRelaxed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "waterwatch",
		Subsystem: "pipeline",
		Name:      "scene_search_relaxed_total",
		Help:      "Scene searches that fell back to the unfiltered query",
	}, []string{"variant"})

	// Remote compute service metrics
	remoteRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "waterwatch",
		Subsystem: "remote",
		Name:      "requests_total",
		Help:      "Requests to remote services by operation and status",
	}, []string{"service", "op", "status"})

	remoteRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "waterwatch",
		Subsystem: "remote",
		Name:      "request_duration_seconds",
		Help:      "Remote request latency in seconds",
		Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
	}, []string{"service", "op"})

	ArtifactsStored = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "waterwatch",
		Subsystem: "artifacts",
		Name:      "stored",
		Help:      "Request artifact directories currently on disk",
	})
)

// ObserveRemote records one remote call. status is the HTTP status code, or 0
// for transport failures.
func ObserveRemote(service, op string, status int, d time.Duration) {
	remoteRequestsTotal.WithLabelValues(service, op, strconv.Itoa(status)).Inc()
	remoteRequestDuration.WithLabelValues(service, op).Observe(d.Seconds())
}

// Handler serves the default Prometheus registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware records request counts and latency, labelled by the chi route
// pattern rather than the raw path to keep cardinality bounded.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				route = pattern
			}
		}

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}

		httpRequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
		httpRequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}
