package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// FramesTotal counts complete frames received from the scale.
	FramesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "scale_frames_total",
			Help: "Total number of complete frames read from the serial link",
		},
	)

	// FrameErrorsTotal counts frames the parser rejected.
	FrameErrorsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "scale_frame_errors_total",
			Help: "Total number of malformed frames discarded by the parser",
		},
	)

	// ReconnectsTotal counts serial reconnect cycles.
	ReconnectsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "scale_reconnects_total",
			Help: "Total number of serial reconnect attempts",
		},
	)

	// ScaleConnected is 1 while the serial link is up.
	ScaleConnected = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "scale_connected",
			Help: "Whether the scale serial link is currently connected",
		},
	)

	// CurrentWeight mirrors the latest parsed reading.
	CurrentWeight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "scale_weight_kilograms",
			Help: "Most recent weight reading in kilograms",
		},
	)

	// WeightStable is 1 while the stability window holds.
	WeightStable = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "scale_weight_stable",
			Help: "Whether the current reading is considered stable",
		},
	)

	// UploadsTotal counts finished uploads by terminal status.
	UploadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "uploads_total",
			Help: "Total number of uploads by terminal status",
		},
		[]string{"status"},
	)

	// UploadAttemptsTotal counts individual HTTP delivery attempts.
	UploadAttemptsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "upload_attempts_total",
			Help: "Total number of upload HTTP attempts including retries",
		},
	)

	// UploadDuration observes one HTTP attempt end to end.
	UploadDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "upload_request_duration_seconds",
			Help:    "Upload HTTP request duration in seconds",
			Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10},
		},
	)

	// PendingUploads tracks the work the queue still owes the server.
	PendingUploads = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "uploads_pending",
			Help: "Number of upload records currently pending delivery",
		},
	)
)
