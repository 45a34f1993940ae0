package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/YoshitsuguKoike/loanstage/internal/application/port/output"
)

const namespace = "loanstage"

// Recorder implements output.Metrics with Prometheus collectors on its own registry
type Recorder struct {
	registry *prometheus.Registry

	transitions *prometheus.CounterVec
	retries     prometheus.Counter
	submitted   prometheus.Counter
	overrides   prometheus.Counter

	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec
}

var _ output.Metrics = (*Recorder)(nil)

// NewRecorder creates and registers the collectors
func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		transitions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "applications",
				Name:      "transitions_total",
				Help:      "Transition attempts by source stage, target stage and outcome.",
			},
			[]string{"from", "to", "outcome"},
		),
		retries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "applications",
			Name:      "conflict_retries_total",
			Help:      "Transitions retried after a concurrent modification.",
		}),
		submitted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "applications",
			Name:      "submitted_total",
			Help:      "Applications created.",
		}),
		overrides: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "underwriting",
			Name:      "score_overrides_total",
			Help:      "Score overrides appended to the ledger.",
		}),
		httpRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "requests_total",
				Help:      "Total number of HTTP requests handled.",
			},
			[]string{"method", "path", "status"},
		),
		httpDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "request_duration_seconds",
				Help:      "Duration of HTTP requests.",
				Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10), // 5ms to ~5s
			},
			[]string{"method", "path"},
		),
	}

	r.registry.MustRegister(
		r.transitions,
		r.retries,
		r.submitted,
		r.overrides,
		r.httpRequests,
		r.httpDuration,
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		prometheus.NewGoCollector(),
	)
	return r
}

func (r *Recorder) TransitionAttempted(from, to, outcome string) {
	r.transitions.WithLabelValues(from, to, outcome).Inc()
}

func (r *Recorder) ConflictRetried()      { r.retries.Inc() }
func (r *Recorder) ApplicationSubmitted() { r.submitted.Inc() }
func (r *Recorder) ScoreOverridden()      { r.overrides.Inc() }

// ObserveHTTP records one served request; path should be the route template
func (r *Recorder) ObserveHTTP(method, path string, status int, elapsed time.Duration) {
	r.httpRequests.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	r.httpDuration.WithLabelValues(method, path).Observe(elapsed.Seconds())
}

// Registry exposes the underlying registry
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// Handler returns an HTTP handler exposing the registered metrics
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}
