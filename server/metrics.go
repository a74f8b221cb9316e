package server

import (
	"github.com/metal-stack/clientdir/directory"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Metrics holds the prometheus collectors of one directory server. A
// nil *Metrics records nothing.
type Metrics struct {
	registry  *prometheus.Registry
	requests  *prometheus.CounterVec
	evictions *prometheus.CounterVec
}

// NewMetrics creates the collectors for a server backed by reg, on a
// private prometheus registry.
func NewMetrics(reg *directory.Registry) *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clientdir",
			Name:      "requests_total",
			Help:      "Requests handled, by request kind and result.",
		}, []string{"request", "result"}),
		evictions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clientdir",
			Name:      "evictions_total",
			Help:      "IP addresses evicted from the directory, by cause.",
		}, []string{"cause"}),
	}
	m.registry.MustRegister(
		m.requests,
		m.evictions,
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: "clientdir",
			Name:      "clients",
			Help:      "Clients currently registered.",
		}, func() float64 { return float64(reg.Snapshot().Clients) }),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: "clientdir",
			Name:      "capacity",
			Help:      "Maximum number of registered clients.",
		}, func() float64 { return float64(reg.Snapshot().Capacity) }),
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Gatherer exposes the collected metrics.
func (m *Metrics) Gatherer() prometheus.Gatherer {
	return m.registry
}

func (m *Metrics) request(name, result string) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(name, result).Inc()
}

func (m *Metrics) evicted(cause string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.evictions.WithLabelValues(cause).Add(float64(n))
}
