package metrics

import (
	"net/http"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// PrometheusRecorder implements Recorder using Prometheus metrics.
type PrometheusRecorder struct {
	scanDuration  prom.Histogram
	postsTotal    prom.Gauge
	skippedFiles  *prom.CounterVec
	operations    *prom.CounterVec
	cacheDuration prom.Histogram
}

// NewPrometheusRecorder constructs and registers the blog metrics on reg.
func NewPrometheusRecorder(reg *prom.Registry) *PrometheusRecorder {
	if reg == nil {
		reg = prom.NewRegistry()
	}
	pr := &PrometheusRecorder{
		scanDuration: prom.NewHistogram(prom.HistogramOpts{
			Namespace: "blog",
			Name:      "content_scan_duration_seconds",
			Help:      "Duration of a full content directory scan",
			Buckets:   prom.DefBuckets,
		}),
		postsTotal: prom.NewGauge(prom.GaugeOpts{
			Namespace: "blog",
			Name:      "posts",
			Help:      "Live posts found by the last scan",
		}),
		skippedFiles: prom.NewCounterVec(prom.CounterOpts{
			Namespace: "blog",
			Name:      "skipped_files_total",
			Help:      "Content files skipped during a scan, by reason",
		}, []string{"reason"}),
		operations: prom.NewCounterVec(prom.CounterOpts{
			Namespace: "blog",
			Name:      "repository_operations_total",
			Help:      "Repository mutations by operation and result",
		}, []string{"op", "result"}),
		cacheDuration: prom.NewHistogram(prom.HistogramOpts{
			Namespace: "blog",
			Name:      "cache_write_duration_seconds",
			Help:      "Duration of a cache index rewrite",
			Buckets:   prom.DefBuckets,
		}),
	}
	reg.MustRegister(pr.scanDuration, pr.postsTotal, pr.skippedFiles, pr.operations, pr.cacheDuration)
	return pr
}

func (p *PrometheusRecorder) ObserveScanDuration(d time.Duration) {
	if p == nil {
		return
	}
	p.scanDuration.Observe(d.Seconds())
}

func (p *PrometheusRecorder) SetPostsTotal(n int) {
	if p == nil {
		return
	}
	p.postsTotal.Set(float64(n))
}

func (p *PrometheusRecorder) IncSkippedFile(reason string) {
	if p == nil {
		return
	}
	p.skippedFiles.WithLabelValues(reason).Inc()
}

func (p *PrometheusRecorder) IncOperation(op string, result ResultLabel) {
	if p == nil {
		return
	}
	p.operations.WithLabelValues(op, string(result)).Inc()
}

func (p *PrometheusRecorder) ObserveCacheWrite(d time.Duration) {
	if p == nil {
		return
	}
	p.cacheDuration.Observe(d.Seconds())
}

// HTTPHandler serves the metrics gathered by reg.
func HTTPHandler(reg *prom.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}
