package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func decodeHealth(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var response map[string]interface{}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&response))
	return response["data"].(map[string]interface{})
}

func TestHandleHealth(t *testing.T) {
	logger := zap.NewNop()

	t.Run("always returns healthy", func(t *testing.T) {
		handler := NewHealthHandler(logger, ReadinessCheck{
			Name:  "never_called",
			Check: func(context.Context) error { return errors.New("down") },
		})

		req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
		w := httptest.NewRecorder()

		handler.HandleHealth(w, req)

		assert.Equal(t, http.StatusOK, w.Code)

		data := decodeHealth(t, w)
		assert.Equal(t, "healthy", data["status"])
		assert.NotEmpty(t, data["timestamp"])
	})
}

func TestHandleReadiness(t *testing.T) {
	logger := zap.NewNop()
	ok := func(context.Context) error { return nil }

	t.Run("healthy when all checks pass", func(t *testing.T) {
		handler := NewHealthHandler(logger,
			ReadinessCheck{Name: "google_jwks", Check: ok},
			ReadinessCheck{Name: "allow_list", Check: ok},
		)

		w := httptest.NewRecorder()
		handler.HandleReadiness(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))

		assert.Equal(t, http.StatusOK, w.Code)
		data := decodeHealth(t, w)
		assert.Equal(t, "healthy", data["status"])
		checks := data["checks"].(map[string]interface{})
		assert.Equal(t, "healthy", checks["google_jwks"])
		assert.Equal(t, "healthy", checks["allow_list"])
	})

	t.Run("unhealthy when a check fails", func(t *testing.T) {
		handler := NewHealthHandler(logger,
			ReadinessCheck{Name: "google_jwks", Check: func(context.Context) error { return errors.New("fetch failed") }},
			ReadinessCheck{Name: "allow_list", Check: ok},
		)

		w := httptest.NewRecorder()
		handler.HandleReadiness(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))

		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
		data := decodeHealth(t, w)
		assert.Equal(t, "unhealthy", data["status"])
		checks := data["checks"].(map[string]interface{})
		assert.Equal(t, "unhealthy", checks["google_jwks"])
		assert.Equal(t, "healthy", checks["allow_list"])
	})

	t.Run("details reported for failing and passing checks", func(t *testing.T) {
		handler := NewHealthHandler(logger,
			ReadinessCheck{
				Name:    "google_jwks",
				Check:   func(context.Context) error { return errors.New("fetch failed") },
				Details: func() map[string]interface{} { return map[string]interface{}{"jwks_cached": false} },
			},
			ReadinessCheck{Name: "allow_list", Check: ok},
		)

		w := httptest.NewRecorder()
		handler.HandleReadiness(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))

		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
		data := decodeHealth(t, w)
		details := data["details"].(map[string]interface{})
		assert.Equal(t, map[string]interface{}{"jwks_cached": false}, details["google_jwks"])
		assert.NotContains(t, details, "allow_list")
	})

	t.Run("details omitted when no check reports any", func(t *testing.T) {
		handler := NewHealthHandler(logger, ReadinessCheck{Name: "allow_list", Check: ok})

		w := httptest.NewRecorder()
		handler.HandleReadiness(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))

		data := decodeHealth(t, w)
		assert.NotContains(t, data, "details")
	})

	t.Run("checks receive a deadline", func(t *testing.T) {
		var hasDeadline bool
		handler := NewHealthHandler(logger, ReadinessCheck{
			Name: "deadline",
			Check: func(ctx context.Context) error {
				_, hasDeadline = ctx.Deadline()
				return nil
			},
		})

		handler.HandleReadiness(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/readyz", nil))
		assert.True(t, hasDeadline)
	})

	t.Run("no checks is healthy", func(t *testing.T) {
		handler := NewHealthHandler(nil)

		w := httptest.NewRecorder()
		handler.HandleReadiness(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))

		assert.Equal(t, http.StatusOK, w.Code)
	})
}
