package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestIncPhase(t *testing.T) {
	before := testutil.ToFloat64(phaseTotalMetric.WithLabelValues("BuildMethodDecision", "fallback"))
	IncPhase("BuildMethodDecision", "fallback")
	after := testutil.ToFloat64(phaseTotalMetric.WithLabelValues("BuildMethodDecision", "fallback"))
	assert.Equal(t, before+1, after)
}

func TestObserveOracleCall(t *testing.T) {
	before := testutil.ToFloat64(oracleCallsMetric.WithLabelValues("validation", "ok"))
	ObserveOracleCall("validation", "ok", 20*time.Millisecond)
	assert.Equal(t, before+1, testutil.ToFloat64(oracleCallsMetric.WithLabelValues("validation", "ok")))
}

func TestMiddlewareUsesRoutePattern(t *testing.T) {
	r := chi.NewRouter()
	r.Use(Middleware)
	r.Get("/api/v1/audit/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	before := testutil.ToFloat64(httpRequestsMetric.WithLabelValues("404", "GET", "/api/v1/audit/{id}"))
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/v1/audit/abc", nil))
	after := testutil.ToFloat64(httpRequestsMetric.WithLabelValues("404", "GET", "/api/v1/audit/{id}"))
	assert.Equal(t, before+1, after)
}
