package media

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	stageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "story_stage_duration_seconds",
			Help:    "Duration of pipeline stage calls including upload.",
			Buckets: []float64{0.5, 1, 2, 5, 10, 20, 40, 60, 120, 300},
		},
		[]string{"stage", "status"},
	)

	stageRetriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "story_stage_retries_total",
			Help: "Total number of retryable stage failures.",
		},
		[]string{"stage"},
	)

	uploadedBytesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "story_artifact_uploaded_bytes_total",
			Help: "Total number of bytes uploaded to artifact storage by kind.",
		},
		[]string{"kind"},
	)
)
