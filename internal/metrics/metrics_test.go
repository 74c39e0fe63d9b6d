package metrics

import (
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"einvoicing/internal/core"
)

func TestInvoiceMetrics_Record(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := New(registry)

	m.InvoiceCreated(7, 20*time.Millisecond)
	m.InvoiceCreated(8, 30*time.Millisecond)
	m.InvoiceTransitioned(core.StateDraft, core.StateIssued)
	m.AllocationFailed("conflict")

	assert.Equal(t, float64(2), testutil.ToFloat64(m.created))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.transitions.WithLabelValues("DRAFT", "ISSUED")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.allocationFailures.WithLabelValues("conflict")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.createDuration))
}

func TestHandler_ServesRegisteredCollectors(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := New(registry)
	m.AllocationFailed("range_exhausted")
	m.InvoiceCreated(42, time.Millisecond)

	rec := httptest.NewRecorder()
	Handler(registry).ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `einvoice_sequence_allocation_failures_total{reason="range_exhausted"} 1`)
	assert.Contains(t, string(body), "einvoice_invoices_created_total 1\n")
	assert.NotContains(t, string(body), "company_id")
}
