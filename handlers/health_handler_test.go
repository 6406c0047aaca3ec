package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/upb/devportal/cognito"
	"go.uber.org/zap"
)

func TestHandleHealth(t *testing.T) {
	handler := NewHealthHandler(nil, ReadinessConfig{}, zap.NewNop())

	for _, method := range []string{http.MethodGet, http.MethodHead} {
		t.Run(method, func(t *testing.T) {
			req := httptest.NewRequest(method, "/health", nil)
			w := httptest.NewRecorder()

			handler.HandleHealth(w, req)

			assert.Equal(t, http.StatusOK, w.Code)
			assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
			assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
		})
	}
}

func TestHandleReadiness(t *testing.T) {
	logger := zap.NewNop()

	t.Run("ready with cognito configured and a cold cache", func(t *testing.T) {
		keys := cognito.NewKeySetCache("http://127.0.0.1:0/jwks.json", time.Second)
		handler := NewHealthHandler(keys, ReadinessConfig{
			CognitoConfigured: true,
			DocsBucket:        "docs",
			ClusterName:       "portal",
		}, logger)
		handler.now = func() time.Time { return time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC) }

		w := httptest.NewRecorder()
		handler.HandleReadiness(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))

		assert.Equal(t, http.StatusOK, w.Code)

		var response ReadinessResponse
		require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
		assert.Equal(t, "ready", response.Status)
		assert.Equal(t, "2024-05-01T00:00:00Z", response.Timestamp)
		assert.Equal(t, map[string]string{
			"cognito":     "configured",
			"docs_bucket": "configured",
			"cluster":     "configured",
			"jwks":        "cold",
		}, response.Checks)
		assert.False(t, response.KeySet.Cached)
		assert.Equal(t, uint64(0), response.KeySet.Fetches)
	})

	t.Run("not ready without cognito", func(t *testing.T) {
		handler := NewHealthHandler(nil, ReadinessConfig{ClusterName: "portal"}, logger)

		w := httptest.NewRecorder()
		handler.HandleReadiness(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))

		assert.Equal(t, http.StatusServiceUnavailable, w.Code)

		var response ReadinessResponse
		require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
		assert.Equal(t, "not_ready", response.Status)
		assert.Equal(t, "not_configured", response.Checks["cognito"])
		assert.Equal(t, "not_configured", response.Checks["docs_bucket"])
	})
}
