package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "linkpulse"

// PrometheusRecorder exports Recorder events as Prometheus collectors.
type PrometheusRecorder struct {
	links            *prometheus.CounterVec
	collisions       *prometheus.CounterVec
	escalations      *prometheus.CounterVec
	fallbacks        prometheus.Counter
	clicks           *prometheus.CounterVec
	redirects        *prometheus.CounterVec
	redirectDuration prometheus.Histogram
	cache            *prometheus.CounterVec
}

// NewPrometheus builds a recorder and registers its collectors with reg.
func NewPrometheus(reg prometheus.Registerer) (*PrometheusRecorder, error) {
	r := &PrometheusRecorder{
		links: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "links_total",
			Help:      "Link lifecycle events by action.",
		}, []string{"action"}),
		collisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "code_collisions_total",
			Help:      "Short code collisions by detection stage.",
		}, []string{"stage"}),
		escalations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "code_length_escalations_total",
			Help:      "Code length escalations by new length.",
		}, []string{"length"}),
		fallbacks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "code_fallbacks_total",
			Help:      "Codes issued by the unconstrained fallback after a store error.",
		}),
		clicks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "clicks_total",
			Help:      "Click tracking outcomes.",
		}, []string{"status"}),
		redirects: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "redirects_total",
			Help:      "Redirect lookups by result.",
		}, []string{"result"}),
		redirectDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "redirect_duration_seconds",
			Help:      "Latency of code resolution on the redirect path.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 12),
		}),
		cache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "redirect_cache_total",
			Help:      "Redirect cache lookups by outcome.",
		}, []string{"outcome"}),
	}

	for _, c := range []prometheus.Collector{
		r.links, r.collisions, r.escalations, r.fallbacks,
		r.clicks, r.redirects, r.redirectDuration, r.cache,
	} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return r, nil
}

func (r *PrometheusRecorder) IncLinkCreated()      { r.links.WithLabelValues("created").Inc() }
func (r *PrometheusRecorder) IncLinkDeduplicated() { r.links.WithLabelValues("deduplicated").Inc() }
func (r *PrometheusRecorder) IncLinkUpdated()      { r.links.WithLabelValues("updated").Inc() }
func (r *PrometheusRecorder) IncLinkDeleted()      { r.links.WithLabelValues("deleted").Inc() }

func (r *PrometheusRecorder) IncCodeCollision(stage string) {
	r.collisions.WithLabelValues(stage).Inc()
}

func (r *PrometheusRecorder) IncCodeEscalation(length int) {
	r.escalations.WithLabelValues(strconv.Itoa(length)).Inc()
}

func (r *PrometheusRecorder) IncCodeFallback()  { r.fallbacks.Inc() }
func (r *PrometheusRecorder) IncClickRecorded() { r.clicks.WithLabelValues("recorded").Inc() }
func (r *PrometheusRecorder) IncClickFailed()   { r.clicks.WithLabelValues("failed").Inc() }

func (r *PrometheusRecorder) IncRedirect(result string) {
	r.redirects.WithLabelValues(result).Inc()
}

func (r *PrometheusRecorder) ObserveRedirectDuration(duration time.Duration) {
	r.redirectDuration.Observe(duration.Seconds())
}

func (r *PrometheusRecorder) IncRedirectCacheHit()  { r.cache.WithLabelValues("hit").Inc() }
func (r *PrometheusRecorder) IncRedirectCacheMiss() { r.cache.WithLabelValues("miss").Inc() }
