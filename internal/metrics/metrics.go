// Package metrics exposes Prometheus collectors for fetching, scraping and
// the HTTP API.
package metrics

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "articlevault"

// Metrics holds every collector, registered on its own registry so tests and
// multiple instances never collide on the global one.
type Metrics struct {
	registry *prometheus.Registry

	fetchAttempts  *prometheus.CounterVec
	fetchRetries   *prometheus.CounterVec
	fetchDuration  *prometheus.HistogramVec
	fetchBytes     *prometheus.CounterVec
	throttleWait   prometheus.Histogram
	scrapes        *prometheus.CounterVec
	articlesStored prometheus.Counter
	httpRequests   *prometheus.CounterVec
	httpDuration   *prometheus.HistogramVec
}

// New creates the collectors. Process and Go runtime collectors are included.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,
		fetchAttempts: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fetch_attempts_total",
			Help:      "Outbound fetch attempts, labeled by host and outcome.",
		}, []string{"host", "outcome"}),
		fetchRetries: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fetch_retries_total",
			Help:      "Fetch attempts that were retries of an earlier failure.",
		}, []string{"host"}),
		fetchDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "fetch_duration_seconds",
			Help:      "Latency of single fetch attempts.",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 5, 10},
		}, []string{"host"}),
		fetchBytes: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fetch_bytes_total",
			Help:      "Response bytes read by successful fetches.",
		}, []string{"host"}),
		throttleWait: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "throttle_wait_seconds",
			Help:      "Time spent waiting for the politeness interval.",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10},
		}),
		scrapes: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scrapes_total",
			Help:      "Finished scrapes, labeled by final stage.",
		}, []string{"stage"}),
		articlesStored: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "articles_stored_total",
			Help:      "Articles persisted by ingestion.",
		}),
		httpRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests served, labeled by method and code.",
		}, []string{"method", "code"}),
		httpDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latencies, labeled by method and route.",
			Buckets:   []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		}, []string{"method", "route"}),
	}
}

// Registry returns the registry the collectors live on.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// SanitizeHost extracts a lowercase hostname from a URL for use as a label.
// It returns "unknown" if the URL is invalid.
func SanitizeHost(rawURL string) string {
	if !strings.HasPrefix(rawURL, "http") {
		rawURL = "http://" + rawURL
	}
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return "unknown"
	}
	return strings.ToLower(u.Hostname())
}

// ObserveFetch records one fetch attempt. attempt is zero-based.
func (m *Metrics) ObserveFetch(rawURL string, attempt int, err error, bytesRead int, d time.Duration) {
	host := SanitizeHost(rawURL)
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	m.fetchAttempts.WithLabelValues(host, outcome).Inc()
	m.fetchDuration.WithLabelValues(host).Observe(d.Seconds())
	if attempt > 0 {
		m.fetchRetries.WithLabelValues(host).Inc()
	}
	if err == nil && bytesRead > 0 {
		m.fetchBytes.WithLabelValues(host).Add(float64(bytesRead))
	}
}

// ObserveThrottleWait records a politeness wait.
func (m *Metrics) ObserveThrottleWait(d time.Duration) {
	if d > 0 {
		m.throttleWait.Observe(d.Seconds())
	}
}

// ObserveScrape records the terminal stage of one scrape.
func (m *Metrics) ObserveScrape(stage string) {
	m.scrapes.WithLabelValues(stage).Inc()
}

// IncArticlesStored counts a persisted article.
func (m *Metrics) IncArticlesStored() {
	m.articlesStored.Inc()
}

// Middleware is a chi middleware that records HTTP request metrics. The
// wrapped writer keeps http.Flusher so streaming handlers still work.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unknown"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}

		m.httpRequests.WithLabelValues(r.Method, strconv.Itoa(status)).Inc()
		m.httpDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}
