package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func serveLogged(t *testing.T, req *http.Request, status int) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	obs, logs := observer.New(zapcore.InfoLevel)
	handler := LoggingMiddleware(zap.New(obs))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	entries := logs.FilterMessage("http request").All()
	require.Len(t, entries, 1)
	return w, entries[0].ContextMap()
}

func TestLoggingMiddleware(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/backtests", nil)
	req.RemoteAddr = "192.168.1.1:12345"

	_, fields := serveLogged(t, req, http.StatusAccepted)

	assert.Equal(t, "POST", fields["method"])
	assert.Equal(t, "/api/v1/backtests", fields["path"])
	assert.EqualValues(t, http.StatusAccepted, fields["status"])
	assert.Equal(t, "192.168.1.1:12345", fields["client_ip"])
	assert.Contains(t, fields, "duration_ms")
}

func TestLoggingMiddleware_RequestID(t *testing.T) {
	w, fields := serveLogged(t, httptest.NewRequest(http.MethodGet, "/api/v1/jobs", nil), http.StatusOK)

	id := w.Header().Get(RequestIDHeader)
	require.NotEmpty(t, id)
	assert.Equal(t, id, fields["request_id"])

	req := httptest.NewRequest(http.MethodGet, "/api/v1/jobs", nil)
	req.Header.Set(RequestIDHeader, "batch-42")
	w, fields = serveLogged(t, req, http.StatusOK)
	assert.Equal(t, "batch-42", w.Header().Get(RequestIDHeader), "caller id reused")
	assert.Equal(t, "batch-42", fields["request_id"])
}

func TestLoggingMiddleware_XForwardedFor(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	req.Header.Set("X-Forwarded-For", "203.0.113.50, 10.0.0.2")
	req.RemoteAddr = "10.0.0.1:54321"

	_, fields := serveLogged(t, req, http.StatusOK)
	assert.Equal(t, "203.0.113.50", fields["client_ip"])
}
