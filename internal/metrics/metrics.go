// Package metrics exposes invoicing engine signals to Prometheus.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"einvoicing/internal/core"
)

// InvoiceMetrics implements core.Recorder.
type InvoiceMetrics struct {
	created            prometheus.Counter
	createDuration     prometheus.Histogram
	transitions        *prometheus.CounterVec
	allocationFailures *prometheus.CounterVec
}

var _ core.Recorder = (*InvoiceMetrics)(nil)

// New registers the invoice collectors on registerer; nil means the default registerer.
func New(registerer prometheus.Registerer) *InvoiceMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	m := &InvoiceMetrics{
		created: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "einvoice_invoices_created_total",
			Help: "Draft invoices created.",
		}),
		createDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "einvoice_create_duration_seconds",
			Help:    "Latency of invoice creation including number allocation.",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "einvoice_transitions_total",
			Help: "Invoice lifecycle transitions.",
		}, []string{"from", "to"}),
		allocationFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "einvoice_sequence_allocation_failures_total",
			Help: "Failed invoice number allocations by reason.",
		}, []string{"reason"}),
	}

	registerer.MustRegister(m.created, m.createDuration, m.transitions, m.allocationFailures)
	return m
}

// InvoiceCreated counts across all companies. The company id is unbounded, so
// per-company counts live in the creation log line rather than in a label.
func (m *InvoiceMetrics) InvoiceCreated(_ int, elapsed time.Duration) {
	m.created.Inc()
	m.createDuration.Observe(elapsed.Seconds())
}

func (m *InvoiceMetrics) InvoiceTransitioned(from, to core.InvoiceState) {
	m.transitions.WithLabelValues(string(from), string(to)).Inc()
}

func (m *InvoiceMetrics) AllocationFailed(reason string) {
	m.allocationFailures.WithLabelValues(reason).Inc()
}

// Handler serves the collectors of gatherer; nil means the default gatherer.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
