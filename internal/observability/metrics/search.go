package metrics

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/kirillkom/hybrid-legal-search/internal/core/domain"
)

// SearchMetrics implements ports.SearchObserver on top of prometheus collectors.
type SearchMetrics struct {
	service string

	searchesTotal  *prometheus.CounterVec
	modeTotal      *prometheus.CounterVec
	sourceFailures *prometheus.CounterVec
	confidence     *prometheus.HistogramVec
	searchDuration *prometheus.HistogramVec
}

func NewSearchMetrics(service string, registerer prometheus.Registerer) *SearchMetrics {
	searchesTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "hls",
			Subsystem: "search",
			Name:      "requests_total",
			Help:      "Total orchestrated searches by strategy and outcome.",
		},
		[]string{"service", "endpoint", "strategy", "status"},
	)
	modeTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "hls",
			Subsystem: "search",
			Name:      "mode_used_total",
			Help:      "Total searches in which a retrieval mode contributed results.",
		},
		[]string{"service", "endpoint", "mode"},
	)
	sourceFailures := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "hls",
			Subsystem: "search",
			Name:      "source_failures_total",
			Help:      "Total failed calls to a retrieval source.",
		},
		[]string{"service", "mode"},
	)
	confidence := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "hls",
			Subsystem: "search",
			Name:      "knowledge_confidence",
			Help:      "Knowledge confidence of successful searches.",
			Buckets:   []float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 0.95},
		},
		[]string{"service", "strategy"},
	)
	searchDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "hls",
			Subsystem: "search",
			Name:      "duration_seconds",
			Help:      "Orchestration duration in seconds.",
			Buckets:   []float64{0.25, 0.5, 1, 2, 5, 10, 20, 30, 60, 90},
		},
		[]string{"service", "endpoint", "strategy"},
	)

	registerer.MustRegister(searchesTotal, modeTotal, sourceFailures, confidence, searchDuration)

	return &SearchMetrics{
		service:        service,
		searchesTotal:  searchesTotal,
		modeTotal:      modeTotal,
		sourceFailures: sourceFailures,
		confidence:     confidence,
		searchDuration: searchDuration,
	}
}

func (m *SearchMetrics) ObserveSearch(endpoint string, strategy domain.Strategy, modes []domain.SearchMode, confidence float64, duration time.Duration, err error) {
	strategyLabel := string(strategy)
	if strategyLabel == "" {
		strategyLabel = "unknown"
	}

	m.searchesTotal.WithLabelValues(m.service, endpoint, strategyLabel, searchStatus(err)).Inc()
	m.searchDuration.WithLabelValues(m.service, endpoint, strategyLabel).Observe(duration.Seconds())
	if err != nil {
		return
	}
	for _, mode := range modes {
		m.modeTotal.WithLabelValues(m.service, endpoint, string(mode)).Inc()
		if mode == domain.ModeKnowledge {
			m.confidence.WithLabelValues(m.service, strategyLabel).Observe(confidence)
		}
	}
}

func (m *SearchMetrics) ObserveSourceFailure(mode domain.SearchMode) {
	m.sourceFailures.WithLabelValues(m.service, string(mode)).Inc()
}

func searchStatus(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, domain.ErrInvalidQuery):
		return "invalid"
	case errors.Is(err, domain.ErrAllSourcesFailed):
		return "all_failed"
	default:
		return "error"
	}
}
