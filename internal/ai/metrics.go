package ai

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	kindChat  = "chat"
	kindImage = "image"

	statusSuccess = "success"
	statusError   = "error"
	statusEmpty   = "error_empty_response"
)

var (
	requestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "noirline_ai_requests_total",
			Help: "Total number of requests to the AI API.",
		},
		[]string{"model", "kind", "status"},
	)
	requestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "noirline_ai_request_duration_seconds",
			Help: "Histogram of AI API request durations.",
			// Completions take seconds, images tens of seconds.
			Buckets: []float64{0.25, 0.5, 1, 2.5, 5, 10, 20, 40, 80},
		},
		[]string{"model", "kind"},
	)
	completionTokens = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "noirline_ai_completion_tokens",
			Help:    "Histogram of completion token counts.",
			Buckets: prometheus.LinearBuckets(100, 200, 10), //nolint:mnd // 100, 300, ..., 1900
		},
		[]string{"model"},
	)
)
