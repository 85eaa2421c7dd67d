// Package metrics supplies the Prometheus collectors used by the C10
// Metered wrapper. Gauge and Registry are also provided; no other package
// in this module uses them. Grounded on the
// teacher's own cmd/zoekt-sourcegraph-indexserver/metrics.go RED-metrics
// idiom (count/duration/error vectors built from a name and label set);
// this package generalises that idiom from HTTP-handler RED metrics to
// per-operation-kind latency tracking over Storage/Index calls.
package metrics

import (
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// OpHistogram is a latency distribution over every operation it observes,
// exported both as a Prometheus histogram labelled by op and component (for
// scraping) and as one running min/avg/max (for the Metered wrapper's
// in-process snapshot, spec §4.9). The running min/avg/max is not split by
// operation kind.
type OpHistogram struct {
	name string

	mu      sync.Mutex
	count   int64
	sum     time.Duration
	min     time.Duration
	max     time.Duration

	hist *prometheus.HistogramVec
}

// NewOpHistogram registers a new per-operation latency tracker under name,
// with a "component" label so the same metric family serves every wrapped
// Storage/Index instance (mirrors the teacher's WithLabels option).
func NewOpHistogram(name string) *OpHistogram {
	return &OpHistogram{
		name: name,
		hist: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name: fmt.Sprintf("kotadb_%s_duration_seconds", name),
				Help: fmt.Sprintf("Time in seconds spent performing %s operations", name),
			},
			[]string{"op", "component"},
		),
	}
}

// Collector exposes the underlying Prometheus collector for registration.
func (h *OpHistogram) Collector() prometheus.Collector { return h.hist }

// Observe records one operation's latency, both into the Prometheus
// histogram and into the running min/avg/max.
func (h *OpHistogram) Observe(op, component string, d time.Duration) {
	h.hist.WithLabelValues(op, component).Observe(d.Seconds())

	h.mu.Lock()
	defer h.mu.Unlock()
	h.count++
	h.sum += d
	if h.min == 0 || d < h.min {
		h.min = d
	}
	if d > h.max {
		h.max = d
	}
}

// Snapshot is the min/avg/max view the Metered wrapper reports. It covers
// every operation the histogram observed, whatever its kind.
type Snapshot struct {
	Count int64
	Min   time.Duration
	Avg   time.Duration
	Max   time.Duration
}

func (h *OpHistogram) Snapshot() Snapshot {
	h.mu.Lock()
	defer h.mu.Unlock()
	s := Snapshot{Count: h.count, Min: h.min, Max: h.max}
	if h.count > 0 {
		s.Avg = h.sum / time.Duration(h.count)
	}
	return s
}

// Gauge wraps a single float64 gauge vector with the given labels. No
// other package in this module uses it.
type Gauge struct {
	name string
	g    *prometheus.GaugeVec
}

func NewGauge(name, help string, labels ...string) *Gauge {
	return &Gauge{
		name: name,
		g: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{Name: fmt.Sprintf("kotadb_%s", name), Help: help},
			labels,
		),
	}
}

func (g *Gauge) Collector() prometheus.Collector { return g.g }

func (g *Gauge) Set(value float64, labelValues ...string) {
	g.g.WithLabelValues(labelValues...).Set(value)
}

// Registry bundles the collectors this module exposes so callers can
// register all of them against a single prometheus.Registerer in one call.
type Registry struct {
	Histograms []*OpHistogram
	Gauges     []*Gauge
}

func NewRegistry() *Registry { return &Registry{} }

func (r *Registry) Histogram(name string) *OpHistogram {
	h := NewOpHistogram(name)
	r.Histograms = append(r.Histograms, h)
	return h
}

func (r *Registry) NewGauge(name, help string, labels ...string) *Gauge {
	g := NewGauge(name, help, labels...)
	r.Gauges = append(r.Gauges, g)
	return g
}

// MustRegister registers every collector in r against reg, matching the
// teacher's eager prometheus.MustRegister call sites (e.g.
// cmd/zoekt-sourcegraph-indexserver/main.go).
func (r *Registry) MustRegister(reg prometheus.Registerer) {
	for _, h := range r.Histograms {
		reg.MustRegister(h.Collector())
	}
	for _, g := range r.Gauges {
		reg.MustRegister(g.Collector())
	}
}
