// Package metrics registers the Prometheus instruments for the
// attendance device.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// SessionsStarted counts started sessions by action.
	SessionsStarted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "attendance_sessions_started_total",
			Help: "Total number of started attendance sessions by action",
		},
		[]string{"action"},
	)

	// SessionsCompleted counts terminal session outcomes.
	SessionsCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "attendance_sessions_completed_total",
			Help: "Total number of completed attendance sessions by outcome",
		},
		[]string{"outcome"},
	)

	// FramesProcessed counts frames consumed by the decision loop.
	FramesProcessed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "attendance_frames_processed_total",
			Help: "Total number of frames consumed by decision loops",
		},
	)

	// FrameFailures counts per-frame recognition failures degraded to Unknown.
	FrameFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "attendance_frame_failures_total",
			Help: "Total number of per-frame recognition failures by kind",
		},
		[]string{"kind"},
	)

	// SinkFailures counts failed attendance posts to the HR backend.
	SinkFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "attendance_sink_failures_total",
			Help: "Total number of failed attendance posts",
		},
	)

	// MatchDuration observes the latency of a full per-frame recognition
	// pass (detect, align, embed, match).
	MatchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "attendance_match_duration_seconds",
			Help:    "Latency of a full per-frame recognition pass",
			Buckets: prometheus.DefBuckets,
		},
	)

	// GallerySize tracks the number of enrolled identities.
	GallerySize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "attendance_gallery_entries",
			Help: "Number of enrolled gallery entries",
		},
	)
)
