package metrics

import (
	"net/http"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "vitae"

// PrometheusRecorder implements Recorder using Prometheus metrics.
type PrometheusRecorder struct {
	compileDuration *prom.HistogramVec
	lookups         *prom.CounterVec
	evictions       prom.Counter
	resident        prom.Gauge
	swept           prom.Counter
}

// NewPrometheusRecorder constructs the metrics and registers them on reg.
// A nil reg gets a fresh registry.
func NewPrometheusRecorder(reg *prom.Registry) *PrometheusRecorder {
	if reg == nil {
		reg = prom.NewRegistry()
	}
	pr := &PrometheusRecorder{
		compileDuration: prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: namespace,
			Name:      "compile_duration_seconds",
			Help:      "Duration of toolchain compiles by outcome",
			Buckets:   []float64{0.25, 0.5, 1, 2, 4, 8, 16, 32, 64},
		}, []string{"outcome"}),
		lookups: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "build_cache_lookups_total",
			Help:      "Build cache lookups by result",
		}, []string{"result"}),
		evictions: prom.NewCounter(prom.CounterOpts{
			Namespace: namespace,
			Name:      "build_cache_evictions_total",
			Help:      "Builds evicted for capacity",
		}),
		resident: prom.NewGauge(prom.GaugeOpts{
			Namespace: namespace,
			Name:      "build_cache_resident",
			Help:      "Builds currently resident on disk",
		}),
		swept: prom.NewCounter(prom.CounterOpts{
			Namespace: namespace,
			Name:      "scratch_swept_total",
			Help:      "Orphaned scratch directories removed at startup",
		}),
	}
	reg.MustRegister(pr.compileDuration, pr.lookups, pr.evictions, pr.resident, pr.swept)
	return pr
}

func (p *PrometheusRecorder) ObserveCompile(d time.Duration, outcome Outcome) {
	if p == nil {
		return
	}
	p.compileDuration.WithLabelValues(string(outcome)).Observe(d.Seconds())
}

func (p *PrometheusRecorder) IncLookup(hit bool) {
	if p == nil {
		return
	}
	res := "miss"
	if hit {
		res = "hit"
	}
	p.lookups.WithLabelValues(res).Inc()
}

func (p *PrometheusRecorder) IncEviction() {
	if p == nil {
		return
	}
	p.evictions.Inc()
}

func (p *PrometheusRecorder) SetResident(n int) {
	if p == nil {
		return
	}
	p.resident.Set(float64(n))
}

func (p *PrometheusRecorder) AddSwept(n int) {
	if p == nil {
		return
	}
	p.swept.Add(float64(n))
}

// HTTPHandler returns an http.Handler that serves metrics for reg.
func HTTPHandler(reg *prom.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{EnableOpenMetrics: true})
}
