package library

import (
	"errors"
	"sort"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics counts lifecycle operations and tracks catalog sizes on a private
// prometheus registry.
type Metrics struct {
	registry  *prometheus.Registry
	ops       *prometheus.CounterVec
	books     prometheus.Gauge
	users     prometheus.Gauge
	openLoans prometheus.Gauge
	queued    prometheus.Gauge
}

// NewMetrics registers the library collectors on a fresh registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		ops: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "library",
			Name:      "operations_total",
			Help:      "Library operations by name and result.",
		}, []string{"op", "result"}),
		books: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "library", Name: "books", Help: "Books in the catalog.",
		}),
		users: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "library", Name: "users", Help: "Registered users.",
		}),
		openLoans: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "library", Name: "open_loans", Help: "Unreturned borrow records.",
		}),
		queued: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "library", Name: "queued_reservations", Help: "Users waiting in reservation queues.",
		}),
	}
	m.registry.MustRegister(m.ops, m.books, m.users, m.openLoans, m.queued)
	return m
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Observe counts one call of op with the result derived from err.
func (m *Metrics) Observe(op string, err error) {
	m.ops.WithLabelValues(op, resultLabel(err)).Inc()
}

func resultLabel(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrDuplicateID):
		return "duplicate"
	case errors.Is(err, ErrInvalidState):
		return "invalid_state"
	case errors.Is(err, ErrCapacityExceeded):
		return "capacity_exceeded"
	case errors.Is(err, ErrAllocation):
		return "allocation"
	}
	return "error"
}

// Refresh sets the gauges from l.
func (m *Metrics) Refresh(l *Library) {
	m.books.Set(float64(l.catalog.Len()))
	m.users.Set(float64(l.users.Len()))
	m.openLoans.Set(float64(l.OpenLoans()))
	n := 0
	for _, id := range l.queues.Books() {
		n += l.queues.Len(id)
	}
	m.queued.Set(float64(n))
}

// Sample is one gathered metric value.
type Sample struct {
	Name   string
	Labels map[string]string
	Value  float64
}

// Gather returns every sample, sorted by name and labels.
func (m *Metrics) Gather() ([]Sample, error) {
	families, err := m.registry.Gather()
	if err != nil {
		return nil, err
	}
	var out []Sample
	for _, f := range families {
		for _, metric := range f.GetMetric() {
			s := Sample{Name: f.GetName(), Labels: map[string]string{}}
			for _, lp := range metric.GetLabel() {
				s.Labels[lp.GetName()] = lp.GetValue()
			}
			switch {
			case metric.GetCounter() != nil:
				s.Value = metric.GetCounter().GetValue()
			case metric.GetGauge() != nil:
				s.Value = metric.GetGauge().GetValue()
			}
			out = append(out, s)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].Labels["op"]+out[i].Labels["result"] < out[j].Labels["op"]+out[j].Labels["result"]
	})
	return out, nil
}
