package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Collectors groups the counters a replay run updates. Each run owns its own
// registry so nothing leaks between runs or tests.
type Collectors struct {
	registry *prometheus.Registry

	routerCalls    *prometheus.CounterVec
	routerRetries  *prometheus.CounterVec
	routerDuration *prometheus.HistogramVec
	lines          *prometheus.CounterVec
	topology       *prometheus.CounterVec
	divergences    prometheus.Counter
}

// New registers all collectors on a fresh registry.
func New() *Collectors {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)

	return &Collectors{
		registry: reg,
		routerCalls: f.NewCounterVec(prometheus.CounterOpts{
			Name: "routediff_router_calls_total",
			Help: "Logical router calls by endpoint and outcome",
		}, []string{"endpoint", "outcome"}),
		routerRetries: f.NewCounterVec(prometheus.CounterOpts{
			Name: "routediff_router_retries_total",
			Help: "Router call retries by endpoint",
		}, []string{"endpoint"}),
		routerDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "routediff_router_call_duration_seconds",
			Help:    "Duration of logical router calls including retries",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12), // 10ms to ~40s
		}, []string{"endpoint"}),
		lines: f.NewCounterVec(prometheus.CounterOpts{
			Name: "routediff_log_lines_total",
			Help: "Log lines by processing outcome",
		}, []string{"outcome"}),
		topology: f.NewCounterVec(prometheus.CounterOpts{
			Name: "routediff_topology_paths_total",
			Help: "Considered old paths by topology match result",
		}, []string{"result"}),
		divergences: f.NewCounter(prometheus.CounterOpts{
			Name: "routediff_divergences_total",
			Help: "Matched path pairs above the divergence threshold",
		}),
	}
}

// Registry exposes the underlying registry, e.g. for tests or HTTP exposition.
func (c *Collectors) Registry() *prometheus.Registry {
	return c.registry
}

func (c *Collectors) ObserveCall(endpoint, outcome string, d time.Duration) {
	c.routerCalls.WithLabelValues(endpoint, outcome).Inc()
	c.routerDuration.WithLabelValues(endpoint).Observe(d.Seconds())
}

func (c *Collectors) IncRetry(endpoint string) {
	c.routerRetries.WithLabelValues(endpoint).Inc()
}

func (c *Collectors) IncLine(outcome string) {
	c.lines.WithLabelValues(outcome).Inc()
}

func (c *Collectors) AddTopology(matched, mismatched int) {
	c.topology.WithLabelValues("matched").Add(float64(matched))
	c.topology.WithLabelValues("mismatched").Add(float64(mismatched))
}

func (c *Collectors) IncDivergence() {
	c.divergences.Inc()
}

// WriteTextfile dumps the registry in the node_exporter textfile format.
func (c *Collectors) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, c.registry)
}
