package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPMiddleware(t *testing.T) {
	reg := NewRegistry()
	handler := HTTPMiddleware(reg)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/v1/backtests", nil))

	assert.Equal(t, http.StatusAccepted, w.Code)
	assert.Equal(t, 1.0, testutil.ToFloat64(reg.httpRequests.WithLabelValues("POST", "/api/v1/backtests", "2xx")))
	assert.Equal(t, 1, testutil.CollectAndCount(reg.httpDuration))
}

func TestHTTPMiddleware_StatusClass(t *testing.T) {
	reg := NewRegistry()
	handler := HTTPMiddleware(reg)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/v1/runs/x", nil))

	assert.Equal(t, 1.0, testutil.ToFloat64(reg.httpRequests.WithLabelValues("GET", "/api/v1/runs/x", "4xx")))
	assert.Equal(t, 0.0, testutil.ToFloat64(reg.httpRequests.WithLabelValues("GET", "/api/v1/runs/x", "2xx")))
}

func TestHTTPMiddleware_TracksInFlight(t *testing.T) {
	reg := NewRegistry()
	var during float64
	handler := HTTPMiddleware(reg)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		during = testutil.ToFloat64(reg.httpInFlight)
	}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/health", nil))

	assert.Equal(t, 1.0, during)
	assert.Equal(t, 0.0, testutil.ToFloat64(reg.httpInFlight))
}

func TestHTTPMiddleware_LabelsByPattern(t *testing.T) {
	reg := NewRegistry()
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/jobs/{id}", func(w http.ResponseWriter, r *http.Request) {})
	handler := HTTPMiddleware(reg)(mux)

	for _, id := range []string{"a", "b"} {
		handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/v1/jobs/"+id, nil))
	}

	assert.Equal(t, 1, testutil.CollectAndCount(reg.httpRequests), "one series for both ids")
	assert.Equal(t, 2.0, testutil.ToFloat64(reg.httpRequests.WithLabelValues("GET", "GET /api/v1/jobs/{id}", "2xx")))
}

func TestRegistry_Handler(t *testing.T) {
	reg := NewRegistry()
	reg.RecordCapitalExhausted()

	w := httptest.NewRecorder()
	reg.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "enercast_capital_exhausted_total 1")
	assert.Contains(t, w.Body.String(), "go_goroutines")
}
