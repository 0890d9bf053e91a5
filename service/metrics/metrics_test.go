package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestNilMetricsAreSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.RecordSessionTransition("connected")
		m.RecordProviderCall("connect", nil, 0.1)
		m.RecordTransaction("Confirmed", "SOL", 1)
		m.RecordHTTPRequest("GET /health", "GET", 200, 0.01)
		m.RecordNATSPublish("sessions", errors.New("boom"), 0.01)
	})
}

func TestRecordProviderCall(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	m.RecordProviderCall("connect", nil, 0.2)
	m.RecordProviderCall("connect", errors.New("rejected"), 0.3)
	m.RecordProviderCall("connect", nil, 0.1)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.providerCallsTotal.WithLabelValues("connect", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.providerCallsTotal.WithLabelValues("connect", "error")))
}

func TestRecordTransaction(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	m.RecordTransaction("Confirmed", "SOL", 1.5)
	m.RecordTransaction("Failed", "SOL", 2)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.transactionsTotal.WithLabelValues("Confirmed", "SOL")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.transactionsTotal.WithLabelValues("Failed", "SOL")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.transactionAmount))
}

func TestHTTPMetricsMiddleware(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	handler := HTTPMetricsMiddleware(m, "GET /teapot")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/teapot", nil))

	assert.Equal(t, http.StatusTeapot, rec.Code)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.httpRequestsTotal.WithLabelValues("GET /teapot", "GET", "4xx")))
}

func TestStatusCodeToString(t *testing.T) {
	tests := map[int]string{
		200: "2xx",
		301: "3xx",
		404: "4xx",
		503: "5xx",
		99:  "unknown",
	}
	for code, want := range tests {
		assert.Equal(t, want, statusCodeToString(code))
	}
}
