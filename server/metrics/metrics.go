// Package metrics exposes arena counters and HTTP timings to Prometheus.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"graphicarena/server/arena"
)

// Option applies a configuration option to the Manager.
type Option func(*Manager)

// WithNamespace sets the namespace for all metrics.
func WithNamespace(namespace string) Option {
	return func(m *Manager) {
		if namespace != "" {
			m.namespace = namespace
		}
	}
}

// WithHistogramBuckets sets the buckets used for latency histograms.
func WithHistogramBuckets(buckets []float64) Option {
	return func(m *Manager) {
		if len(buckets) > 0 {
			m.buckets = buckets
		}
	}
}

// WithRegistry sets the registry metrics are registered on and served from.
func WithRegistry(reg *prometheus.Registry) Option {
	return func(m *Manager) {
		if reg != nil {
			m.registry = reg
		}
	}
}

// WithProcessCollectors adds the Go runtime and process collectors.
func WithProcessCollectors() Option {
	return func(m *Manager) { m.process = true }
}

// Manager owns every arena metric. It implements arena.Observer.
type Manager struct {
	namespace string
	buckets   []float64
	registry  *prometheus.Registry
	process   bool

	matchesCreated   *prometheus.CounterVec
	votes            *prometheus.CounterVec
	providerFailures *prometheus.CounterVec
	quotaRejections  prometheus.Counter
	cachedResolved   *prometheus.CounterVec
	persistFailures  *prometheus.CounterVec

	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
}

// NewManager registers all metrics on a fresh registry unless one is given.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace: "graphicarena",
		buckets:   prometheus.DefBuckets,
		registry:  prometheus.NewRegistry(),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.process {
		m.registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}
	m.initializeMetrics()
	return m
}

func (m *Manager) initializeMetrics() {
	auto := promauto.With(m.registry)

	m.matchesCreated = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: "arena",
		Name:      "matches_created_total",
		Help:      "Matches created, by kind (live or cached)",
	}, []string{"kind"})

	m.votes = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: "arena",
		Name:      "votes_total",
		Help:      "Votes accepted, split by first reveal or re-vote",
	}, []string{"reveal"})

	m.providerFailures = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: "arena",
		Name:      "provider_failures_total",
		Help:      "Generations that fell back to placeholder code, by provider",
	}, []string{"provider"})

	m.quotaRejections = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: "arena",
		Name:      "quota_rejections_total",
		Help:      "Generation requests rejected by the session prompt quota",
	})

	m.cachedResolved = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: "arena",
		Name:      "cached_resolved_total",
		Help:      "Cached comparisons resolved, by source tier",
	}, []string{"tier"})

	m.persistFailures = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: "store",
		Name:      "persist_failures_total",
		Help:      "Durable mirror writes that failed, by operation",
	}, []string{"op"})

	m.httpRequests = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "HTTP requests by route, method and status code",
	}, []string{"route", "method", "status_code"})

	m.httpRequestDuration = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request latency by route and method",
		Buckets:   m.buckets,
	}, []string{"route", "method"})
}

func (m *Manager) MatchCreated(kind string) { m.matchesCreated.WithLabelValues(kind).Inc() }

func (m *Manager) VoteRecorded(first bool) {
	label := "revote"
	if first {
		label = "first"
	}
	m.votes.WithLabelValues(label).Inc()
}

// ProviderFailure is labelled by provider, not model, to bound cardinality.
func (m *Manager) ProviderFailure(model string) {
	m.providerFailures.WithLabelValues(arena.Provider(model)).Inc()
}

func (m *Manager) QuotaRejected() { m.quotaRejections.Inc() }

func (m *Manager) CachedResolved(tier string) {
	m.cachedResolved.WithLabelValues(tier).Inc()
}

func (m *Manager) PersistFailed(op string) {
	m.persistFailures.WithLabelValues(op).Inc()
}

// Middleware records request counts and latency labelled by chi route pattern.
func (m *Manager) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if p := rctx.RoutePattern(); p != "" {
				route = p
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		m.httpRequests.WithLabelValues(route, r.Method, strconv.Itoa(status)).Inc()
		m.httpRequestDuration.WithLabelValues(route, r.Method).Observe(time.Since(start).Seconds())
	})
}

// Handler serves the registry in the Prometheus text format.
func (m *Manager) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

var _ arena.Observer = (*Manager)(nil)
