package metrics

import (
	"sync"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
)

// PrometheusRecorder implements Recorder using Prometheus metrics.
type PrometheusRecorder struct {
	once              sync.Once
	requestDuration   *prom.HistogramVec
	requests          *prom.CounterVec
	pageFetches       *prom.CounterVec
	reconcileOutcomes *prom.CounterVec
}

// NewPrometheusRecorder constructs and registers Prometheus metrics (idempotent).
func NewPrometheusRecorder(reg *prom.Registry) *PrometheusRecorder {
	if reg == nil {
		reg = prom.NewRegistry()
	}
	pr := &PrometheusRecorder{}
	pr.once.Do(func() {
		pr.requestDuration = prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: "stashhook",
			Name:      "request_duration_seconds",
			Help:      "Duration of Bitbucket REST requests",
			Buckets:   prom.DefBuckets,
		}, []string{"method", "status_class"})
		pr.requests = prom.NewCounterVec(prom.CounterOpts{
			Namespace: "stashhook",
			Name:      "requests_total",
			Help:      "Bitbucket REST request counts by method and status class",
		}, []string{"method", "status_class"})
		pr.pageFetches = prom.NewCounterVec(prom.CounterOpts{
			Namespace: "stashhook",
			Name:      "page_fetches_total",
			Help:      "Paginated collection fetches by resource",
		}, []string{"resource"})
		pr.reconcileOutcomes = prom.NewCounterVec(prom.CounterOpts{
			Namespace: "stashhook",
			Name:      "reconcile_outcomes_total",
			Help:      "Webhook reconcile outcomes by result",
		}, []string{"outcome"})
		reg.MustRegister(pr.requestDuration, pr.requests, pr.pageFetches, pr.reconcileOutcomes)
	})
	return pr
}

func (p *PrometheusRecorder) ObserveRequestDuration(method, statusClass string, d time.Duration) {
	if p == nil || p.requestDuration == nil {
		return
	}
	p.requestDuration.WithLabelValues(method, statusClass).Observe(d.Seconds())
}

func (p *PrometheusRecorder) IncRequest(method, statusClass string) {
	if p == nil || p.requests == nil {
		return
	}
	p.requests.WithLabelValues(method, statusClass).Inc()
}

func (p *PrometheusRecorder) IncPageFetch(resource string) {
	if p == nil || p.pageFetches == nil {
		return
	}
	p.pageFetches.WithLabelValues(resource).Inc()
}

func (p *PrometheusRecorder) IncReconcileOutcome(outcome ReconcileOutcome) {
	if p == nil || p.reconcileOutcomes == nil {
		return
	}
	p.reconcileOutcomes.WithLabelValues(string(outcome)).Inc()
}
