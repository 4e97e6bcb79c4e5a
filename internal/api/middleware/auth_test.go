package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/newthinker/enercast/internal/api/response"
)

func TestAPIKeyAuth(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	tests := []struct {
		name     string
		apiKey   string
		path     string
		header   string
		value    string
		want     int
		wantCode string
	}{
		{"valid key", "secret-key", "/api/v1/jobs", APIKeyHeader, "secret-key", http.StatusOK, ""},
		{"bearer token", "secret-key", "/api/v1/backtests", "Authorization", "Bearer secret-key", http.StatusOK, ""},
		{"missing key", "secret-key", "/api/v1/jobs", "", "", http.StatusUnauthorized, "CONFIG_MISSING"},
		{"wrong key", "secret-key", "/api/v1/jobs", APIKeyHeader, "wrong-key", http.StatusUnauthorized, "CONFIG_INVALID"},
		{"basic auth is not a key", "secret-key", "/api/v1/jobs", "Authorization", "Basic c2VjcmV0", http.StatusUnauthorized, "CONFIG_MISSING"},
		{"auth disabled", "", "/api/v1/jobs", "", "", http.StatusOK, ""},
		{"exempt health", "secret-key", "/api/health", "", "", http.StatusOK, ""},
		{"exempt metrics", "secret-key", "/metrics", "", "", http.StatusOK, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := APIKeyAuth(tt.apiKey, "/api/health", "/metrics")(ok)
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			if tt.header != "" {
				req.Header.Set(tt.header, tt.value)
			}
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)

			require.Equal(t, tt.want, w.Code)
			if tt.wantCode != "" {
				var resp response.ErrorResponse
				require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
				assert.Equal(t, tt.wantCode, resp.Error.Code)
			}
		})
	}
}
