package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestServerMetrics_Middleware(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewServerMetrics(reg, "api")

	r := chi.NewRouter()
	r.Use(m.Middleware)
	r.Get("/orders/{id}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/orders/42", nil))
	require.Equal(t, http.StatusTeapot, rec.Code)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.Requests.WithLabelValues("/orders/{id}", "GET", "418")))
}

func TestWorkflow_Counters(t *testing.T) {
	w := NewNopWorkflow()
	w.Transitions.WithLabelValues("Order", "confirm").Inc()
	w.NotificationFailures.WithLabelValues("order_shipped").Add(2)

	assert.Equal(t, 1.0, testutil.ToFloat64(w.Transitions.WithLabelValues("Order", "confirm")))
	assert.Equal(t, 2.0, testutil.ToFloat64(w.NotificationFailures.WithLabelValues("order_shipped")))
}

func TestHandler_ServesRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	w := NewWorkflow(reg)
	w.Transitions.WithLabelValues("Payout", "mark_paid").Inc()

	rec := httptest.NewRecorder()
	Handler(reg).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "marketplace_transitions_total")
}
