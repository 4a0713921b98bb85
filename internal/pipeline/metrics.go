package pipeline

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	jobsSubmittedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "story_jobs_submitted_total",
		Help: "Total number of accepted story generation jobs.",
	})

	jobsFinishedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "story_jobs_finished_total",
			Help: "Total number of finished story jobs by terminal status.",
		},
		[]string{"status"},
	)

	jobsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "story_jobs_active",
		Help: "Number of story jobs currently running.",
	})

	jobDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "story_job_duration_seconds",
			Help:    "End-to-end duration of story jobs.",
			Buckets: []float64{5, 15, 30, 60, 120, 180, 300, 600},
		},
		[]string{"status"},
	)
)
