package events

import "github.com/prometheus/client_golang/prometheus"

// MetricsPublisher mirrors the event stream into Prometheus counters so the
// arbiter and services stay free of metrics plumbing.
type MetricsPublisher struct {
	eventsTotal      *prometheus.CounterVec
	allocatedGBTotal prometheus.Counter
	evictedGBTotal   prometheus.Counter
	queuedTotal      prometheus.Counter
}

// NewMetricsPublisher registers its collectors on reg. Pass a fresh
// prometheus.NewRegistry in tests to avoid duplicate registration.
func NewMetricsPublisher(reg prometheus.Registerer) *MetricsPublisher {
	p := &MetricsPublisher{
		eventsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "vramd",
				Subsystem: "events",
				Name:      "published_total",
				Help:      "Total events published, by kind",
			},
			[]string{"kind"},
		),
		allocatedGBTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "vramd",
			Subsystem: "vram",
			Name:      "allocated_gb_total",
			Help:      "Cumulative GB granted by the arbiter",
		}),
		evictedGBTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "vramd",
			Subsystem: "vram",
			Name:      "released_gb_total",
			Help:      "Cumulative GB released (voluntarily or by eviction)",
		}),
		queuedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "vramd",
			Subsystem: "vram",
			Name:      "queued_requests_total",
			Help:      "Allocation requests deferred to the pending queue",
		}),
	}
	reg.MustRegister(p.eventsTotal, p.allocatedGBTotal, p.evictedGBTotal, p.queuedTotal)
	return p
}

func (p *MetricsPublisher) Publish(e Event) {
	p.eventsTotal.WithLabelValues(string(e.Kind())).Inc()
	switch t := e.(type) {
	case VRAMAllocated:
		p.allocatedGBTotal.Add(t.AmountGB)
	case VRAMReleased:
		p.evictedGBTotal.Add(t.AmountGB)
	case VRAMAllocationFailed:
		if t.Queued {
			p.queuedTotal.Inc()
		}
	}
}
