// Package metrics exposes crawl counters through Prometheus.
//
// A Recorder is safe to use from the crawl goroutine while the exposition
// handler scrapes it. All methods are nil-safe so components can accept an
// optional *Recorder without guarding every call site.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// namespace prefixes every metric name.
const namespace = "mailspider"

// Session outcomes used as the "outcome" label of SessionsTotal.
const (
	OutcomeCompleted = "completed"
	OutcomeCancelled = "cancelled"
)

// Recorder groups the collectors updated by the crawler.
//
// Design decision: We register collectors on a caller-supplied registry
// rather than the global default registry because:
//  1. Tests can create isolated recorders and run in parallel
//  2. The CLI only exposes metrics when --metrics-addr is set
type Recorder struct {
	registry *prometheus.Registry

	// LinksVisited counts frontier dequeues (one per LinkVisited event).
	LinksVisited prometheus.Counter

	// PagesFetched counts successful document fetches.
	PagesFetched prometheus.Counter

	// FetchFailures counts failed fetches by reason.
	FetchFailures *prometheus.CounterVec

	// EmailsFound counts distinct emails reported per session.
	EmailsFound prometheus.Counter

	// FrontierLength is the number of targets waiting in the frontier.
	FrontierLength prometheus.Gauge

	// SessionsTotal counts finished sessions by outcome.
	SessionsTotal *prometheus.CounterVec
}

// NewRecorder creates a Recorder whose collectors are registered on a new
// registry.
func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		LinksVisited: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "links_visited_total",
			Help:      "Number of targets dequeued from the frontier.",
		}),
		PagesFetched: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pages_fetched_total",
			Help:      "Number of pages fetched successfully.",
		}),
		FetchFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fetch_failures_total",
			Help:      "Number of failed page fetches.",
		}, []string{"reason"}),
		EmailsFound: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "emails_found_total",
			Help:      "Number of distinct emails reported.",
		}),
		FrontierLength: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "frontier_length",
			Help:      "Targets waiting in the frontier of the running session.",
		}),
		SessionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_total",
			Help:      "Number of finished crawl sessions.",
		}, []string{"outcome"}),
	}

	r.registry.MustRegister(
		r.LinksVisited,
		r.PagesFetched,
		r.FetchFailures,
		r.EmailsFound,
		r.FrontierLength,
		r.SessionsTotal,
	)

	return r
}

// Handler returns an http.Handler serving the recorder's registry in the
// Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

// Registry returns the underlying registry.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// LinkVisited records one frontier dequeue.
func (r *Recorder) LinkVisited() {
	if r == nil {
		return
	}
	r.LinksVisited.Inc()
}

// PageFetched records one successful fetch.
func (r *Recorder) PageFetched() {
	if r == nil {
		return
	}
	r.PagesFetched.Inc()
}

// FetchFailed records one failed fetch with the given reason label.
func (r *Recorder) FetchFailed(reason string) {
	if r == nil {
		return
	}
	r.FetchFailures.WithLabelValues(reason).Inc()
}

// EmailFound records one newly reported email.
func (r *Recorder) EmailFound() {
	if r == nil {
		return
	}
	r.EmailsFound.Inc()
}

// SetFrontierLength updates the frontier gauge.
func (r *Recorder) SetFrontierLength(n int) {
	if r == nil {
		return
	}
	r.FrontierLength.Set(float64(n))
}

// SessionFinished records a finished session.
func (r *Recorder) SessionFinished(outcome string) {
	if r == nil {
		return
	}
	r.SessionsTotal.WithLabelValues(outcome).Inc()
	r.FrontierLength.Set(0)
}
