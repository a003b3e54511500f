package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetrics_Counters(t *testing.T) {
	m := New()

	m.SignatureFailure("mismatch")
	m.SignatureFailure("mismatch")
	m.SignatureFailure("key_fetch")
	m.GatewayCall("create_or_update", "ok")
	m.StoreFailure("update_status")
	m.ObserveRequest("/iute/confirmation", http.StatusOK, 12*time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.SignatureFailures.WithLabelValues("mismatch")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SignatureFailures.WithLabelValues("key_fetch")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.GatewayCalls.WithLabelValues("create_or_update", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.StoreFailures.WithLabelValues("update_status")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Requests.WithLabelValues("/iute/confirmation", "OK")))
}

func TestMetrics_IndependentRegistries(t *testing.T) {
	assert.NotPanics(t, func() {
		New()
		New()
	})
}

func TestMetrics_NilSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.SignatureFailure("mismatch")
		m.GatewayCall("status", "ok")
		m.StoreFailure("upsert")
		m.ObserveRequest("/", http.StatusOK, time.Millisecond)
	})

	w := httptest.NewRecorder()
	m.Handler().ServeHTTP(w, httptest.NewRequest("GET", "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHandler_Exposes(t *testing.T) {
	m := New()
	m.SignatureFailure("key_parse")

	w := httptest.NewRecorder()
	m.Handler().ServeHTTP(w, httptest.NewRequest("GET", "/metrics", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `iute_bridge_webhook_signature_failures_total{code="key_parse"} 1`)
}
