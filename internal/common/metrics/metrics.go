// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RenderJobsCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "render_jobs_completed_total",
			Help: "Total number of render jobs completed",
		},
		[]string{"template_id"},
	)

	RenderJobsFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "render_jobs_failed_total",
			Help: "Total number of render jobs failed",
		},
		[]string{"template_id", "error_code"},
	)

	RenderStageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "render_stage_duration_seconds",
			Help: "Duration of each render pipeline stage in seconds",
		},
		[]string{"stage"},
	)

	RenderJobsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "render_jobs_active",
			Help: "Number of render jobs currently in flight",
		},
	)

	BatchesSubmitted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "render_batches_submitted_total",
			Help: "Total number of render batches submitted",
		},
	)

	BatchesCancelled = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "render_batches_cancelled_total",
			Help: "Total number of render batches cancelled",
		},
	)

	AssetsDeduplicated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "assets_deduplicated_total",
			Help: "Total number of asset stores that hit an existing content hash",
		},
	)

	AssetsSwept = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "assets_swept_total",
			Help: "Total number of unreferenced assets reclaimed by the sweeper",
		},
	)
)
