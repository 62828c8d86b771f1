// Package metrics records generation and export outcomes in Prometheus.
package metrics

import (
	"net/http"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder is nil-safe: a nil *Recorder records nothing.
type Recorder struct {
	reg             *prom.Registry
	generateTotal   *prom.CounterVec
	generateSeconds *prom.HistogramVec
	exportTotal     *prom.CounterVec
	exportSeconds   *prom.HistogramVec
	exportBytes     *prom.HistogramVec
	cacheHits       *prom.CounterVec
}

// NewRecorder registers the service metrics on reg, or on a fresh registry
// with Go and process collectors when reg is nil.
func NewRecorder(reg *prom.Registry) *Recorder {
	if reg == nil {
		reg = prom.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	}
	r := &Recorder{
		reg: reg,
		generateTotal: prom.NewCounterVec(prom.CounterOpts{
			Namespace: "code2diagram",
			Name:      "generate_requests_total",
			Help:      "Diagram generation requests by kind and result class",
		}, []string{"kind", "result"}),
		generateSeconds: prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: "code2diagram",
			Name:      "generate_duration_seconds",
			Help:      "Duration of diagram generation including the model call",
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 20, 30, 60, 90},
		}, []string{"kind"}),
		exportTotal: prom.NewCounterVec(prom.CounterOpts{
			Namespace: "code2diagram",
			Name:      "export_requests_total",
			Help:      "Diagram export requests by format and result class",
		}, []string{"format", "result"}),
		exportSeconds: prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: "code2diagram",
			Name:      "export_duration_seconds",
			Help:      "Duration of diagram rendering",
			Buckets:   prom.DefBuckets,
		}, []string{"format"}),
		exportBytes: prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: "code2diagram",
			Name:      "export_artifact_bytes",
			Help:      "Size of rendered artifacts",
			Buckets:   prom.ExponentialBuckets(1024, 4, 8),
		}, []string{"format"}),
		cacheHits: prom.NewCounterVec(prom.CounterOpts{
			Namespace: "code2diagram",
			Name:      "diagram_cache_lookups_total",
			Help:      "Generated-diagram cache lookups by outcome",
		}, []string{"outcome"}),
	}
	reg.MustRegister(r.generateTotal, r.generateSeconds, r.exportTotal, r.exportSeconds, r.exportBytes, r.cacheHits)
	return r
}

// Registry exposes the underlying registry.
func (r *Recorder) Registry() *prom.Registry {
	if r == nil {
		return nil
	}
	return r.reg
}

// ObserveGenerate records one generation. result is "success" or an error class.
func (r *Recorder) ObserveGenerate(kind, result string, d time.Duration) {
	if r == nil {
		return
	}
	r.generateTotal.WithLabelValues(kind, result).Inc()
	r.generateSeconds.WithLabelValues(kind).Observe(d.Seconds())
}

// ObserveExport records one export; size is ignored on failure.
func (r *Recorder) ObserveExport(format, result string, d time.Duration, size int) {
	if r == nil {
		return
	}
	r.exportTotal.WithLabelValues(format, result).Inc()
	r.exportSeconds.WithLabelValues(format).Observe(d.Seconds())
	if result == "success" {
		r.exportBytes.WithLabelValues(format).Observe(float64(size))
	}
}

func (r *Recorder) IncCache(hit bool) {
	if r == nil {
		return
	}
	outcome := "miss"
	if hit {
		outcome = "hit"
	}
	r.cacheHits.WithLabelValues(outcome).Inc()
}

// HTTPHandler serves the registry in the Prometheus exposition format.
func (r *Recorder) HTTPHandler() http.Handler {
	if r == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{EnableOpenMetrics: true})
}
