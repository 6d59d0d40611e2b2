// Package metrics exposes service counters in the Prometheus format.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/serroba/shortlinks/internal/idgen"
)

const namespace = "shortlinks"

// Metrics holds every collector the service reports. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	idsGenerated       prometheus.Counter
	idFailures         prometheus.Counter
	clockStalls        prometheus.Histogram
	linkEvents         *prometheus.CounterVec
	tokenRejections    prometheus.Counter
	credentialRejected prometheus.Counter
	requestDuration    *prometheus.HistogramVec
}

// New creates the collectors on a fresh registry that also carries the Go
// runtime and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		registry: reg,
		idsGenerated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ids_generated_total",
			Help:      "Identifiers handed out by the id generator.",
		}),
		idFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "id_generation_failures_total",
			Help:      "Identifier requests refused by the id generator.",
		}),
		clockStalls: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "id_clock_stall_seconds",
			Help:      "Time the id generator blocked waiting for the clock.",
			Buckets:   []float64{.001, .01, .1, .5, 1, 2, 5},
		}),
		linkEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "link_events_total",
			Help:      "Link lifecycle events by kind.",
		}, []string{"event"}),
		tokenRejections: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "token_rejections_total",
			Help:      "Bearer tokens that failed verification.",
		}),
		credentialRejected: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "credential_rejections_total",
			Help:      "Login and password change attempts with bad credentials.",
		}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by operation and status.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation", "status"}),
	}

	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.idsGenerated,
		m.idFailures,
		m.clockStalls,
		m.linkEvents,
		m.tokenRejections,
		m.credentialRejected,
		m.requestDuration,
	)

	return m
}

// Registry returns the registry holding the collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the exposition format for the registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Link event kinds.
const (
	LinkCreated  = "created"
	LinkResolved = "resolved"
	LinkUpdated  = "updated"
	LinkDeleted  = "deleted"
)

// LinkEvent counts one link lifecycle event.
func (m *Metrics) LinkEvent(kind string) {
	if m == nil {
		return
	}

	m.linkEvents.WithLabelValues(kind).Inc()
}

// LinkEvents counts n link lifecycle events.
func (m *Metrics) LinkEvents(kind string, n int) {
	if m == nil || n <= 0 {
		return
	}

	m.linkEvents.WithLabelValues(kind).Add(float64(n))
}

// ClockStalled records one blocking wait of the id generator.
func (m *Metrics) ClockStalled(d time.Duration) {
	if m == nil {
		return
	}

	m.clockStalls.Observe(d.Seconds())
}

// TokenRejected counts a failed token verification.
func (m *Metrics) TokenRejected() {
	if m == nil {
		return
	}

	m.tokenRejections.Inc()
}

// CredentialRejected counts a failed credential check.
func (m *Metrics) CredentialRejected() {
	if m == nil {
		return
	}

	m.credentialRejected.Inc()
}

// Middleware records the latency of every huma operation.
func (m *Metrics) Middleware() func(ctx huma.Context, next func(huma.Context)) {
	return func(ctx huma.Context, next func(huma.Context)) {
		start := time.Now()

		next(ctx)

		if m == nil {
			return
		}

		operation := "unknown"
		if op := ctx.Operation(); op != nil && op.OperationID != "" {
			operation = op.OperationID
		}

		m.requestDuration.
			WithLabelValues(operation, strconv.Itoa(ctx.Status())).
			Observe(time.Since(start).Seconds())
	}
}

// IDGenerator is the generator Instrument wraps.
type IDGenerator interface {
	Generate() (idgen.ID, error)
}

// InstrumentedGenerator counts the ids produced and refused by a generator.
type InstrumentedGenerator struct {
	next    IDGenerator
	metrics *Metrics
}

// Instrument wraps gen so every call is counted.
func Instrument(gen IDGenerator, m *Metrics) *InstrumentedGenerator {
	return &InstrumentedGenerator{next: gen, metrics: m}
}

func (g *InstrumentedGenerator) Generate() (idgen.ID, error) {
	id, err := g.next.Generate()

	if g.metrics != nil {
		if err != nil {
			g.metrics.idFailures.Inc()
		} else {
			g.metrics.idsGenerated.Inc()
		}
	}

	return id, err
}
