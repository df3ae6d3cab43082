// Package metrics exposes Prometheus collectors for the classification service.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/Brownie44l1/dogbreed-api/internal/core"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "dogbreed"

// Service holds the collectors on a private registry.
type Service struct {
	registry *prometheus.Registry

	httpRequests       *prometheus.CounterVec
	httpDuration       *prometheus.HistogramVec
	predictions        *prometheus.CounterVec
	predictionDuration *prometheus.HistogramVec
	modelLoads         *prometheus.CounterVec
	modelLoadDuration  *prometheus.HistogramVec
	fetches            *prometheus.CounterVec
	fetchDuration      prometheus.Histogram
}

// New creates and registers all collectors.
func New() *Service {
	s := &Service{
		registry: prometheus.NewRegistry(),
		httpRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			}, []string{"path", "method", "status"},
		),
		httpDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "Duration of HTTP requests in seconds",
				Buckets:   prometheus.DefBuckets,
			}, []string{"path"},
		),
		predictions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "predictions_total",
				Help:      "Prediction requests by endpoint, model and outcome",
			}, []string{"endpoint", "model", "outcome"},
		),
		predictionDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "prediction_duration_seconds",
				Help:      "End-to-end prediction pipeline duration in seconds",
				Buckets:   prometheus.DefBuckets,
			}, []string{"endpoint"},
		),
		modelLoads: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "model_loads_total",
				Help:      "Model load attempts by model and outcome",
			}, []string{"model", "outcome"},
		),
		modelLoadDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "model_load_duration_seconds",
				Help:      "Model load duration in seconds",
				Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
			}, []string{"model"},
		),
		fetches: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "image_fetches_total",
				Help:      "Remote image fetches by outcome",
			}, []string{"outcome"},
		),
		fetchDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "image_fetch_duration_seconds",
				Help:      "Remote image fetch duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
		),
	}

	s.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		s.httpRequests, s.httpDuration,
		s.predictions, s.predictionDuration,
		s.modelLoads, s.modelLoadDuration,
		s.fetches, s.fetchDuration,
	)
	return s
}

// Handler serves the registry in the Prometheus exposition format.
func (s *Service) Handler() http.Handler {
	return promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{})
}

// ObserveHTTP records one served HTTP request.
func (s *Service) ObserveHTTP(path, method string, status int, duration time.Duration) {
	s.httpRequests.WithLabelValues(path, method, strconv.Itoa(status)).Inc()
	s.httpDuration.WithLabelValues(path).Observe(duration.Seconds())
}

func (s *Service) RecordModelLoad(model string, duration time.Duration, success bool) {
	s.modelLoads.WithLabelValues(model, outcome(success)).Inc()
	s.modelLoadDuration.WithLabelValues(model).Observe(duration.Seconds())
}

// RecordPrediction counts a pipeline run. Failures are labelled with their kind.
func (s *Service) RecordPrediction(endpoint, model string, duration time.Duration, kind core.Kind, success bool) {
	result := outcome(success)
	if !success {
		result = kind.String()
	}
	s.predictions.WithLabelValues(endpoint, model, result).Inc()
	s.predictionDuration.WithLabelValues(endpoint).Observe(duration.Seconds())
}

func (s *Service) RecordFetch(duration time.Duration, success bool) {
	s.fetches.WithLabelValues(outcome(success)).Inc()
	s.fetchDuration.Observe(duration.Seconds())
}

func outcome(success bool) string {
	if success {
		return "success"
	}
	return "failure"
}
