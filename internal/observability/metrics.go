package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the application
type Metrics struct {
	// HTTP metrics
	HTTPAttempts *prometheus.CounterVec
	HTTPRequests *prometheus.CounterVec

	// Scan metrics
	StatusPolls    prometheus.Counter
	ScanDuration   prometheus.Histogram
	SBOMComponents prometheus.Gauge

	// Run metrics
	RunsTotal   *prometheus.CounterVec
	RunDuration prometheus.Histogram

	// Findings metrics
	FindingsReported *prometheus.CounterVec
}

var (
	metricsInstance *Metrics
	metricsOnce     sync.Once
)

// GetMetrics returns the singleton metrics instance
func GetMetrics() *Metrics {
	metricsOnce.Do(func() {
		metricsInstance = &Metrics{
			// HTTP metrics
			HTTPAttempts: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "sbomscan_http_attempts_total",
					Help: "Total number of HTTP request attempts by method and outcome",
				},
				[]string{"method", "outcome"}, // response, transport_error
			),
			HTTPRequests: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "sbomscan_http_requests_total",
					Help: "Total number of logical HTTP requests by method and result",
				},
				[]string{"method", "result"}, // success, error
			),

			// Scan metrics
			StatusPolls: promauto.NewCounter(prometheus.CounterOpts{
				Name: "sbomscan_status_polls_total",
				Help: "Total number of scan status queries",
			}),
			ScanDuration: promauto.NewHistogram(prometheus.HistogramOpts{
				Name:    "sbomscan_scan_wait_seconds",
				Help:    "Time spent waiting for the remote scan to resolve",
				Buckets: prometheus.ExponentialBuckets(1, 2, 11), // 1s to ~34min
			}),
			SBOMComponents: promauto.NewGauge(prometheus.GaugeOpts{
				Name: "sbomscan_sbom_components",
				Help: "Number of components in the generated SBOM",
			}),

			// Run metrics
			RunsTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "sbomscan_runs_total",
					Help: "Total number of runs by terminal status",
				},
				[]string{"status"},
			),
			RunDuration: promauto.NewHistogram(prometheus.HistogramOpts{
				Name:    "sbomscan_run_duration_seconds",
				Help:    "Duration of complete runs in seconds",
				Buckets: prometheus.ExponentialBuckets(1, 2, 11),
			}),

			// Findings metrics
			FindingsReported: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "sbomscan_findings_reported_total",
					Help: "Total number of findings reported by severity",
				},
				[]string{"severity"},
			),
		}
	})
	return metricsInstance
}
