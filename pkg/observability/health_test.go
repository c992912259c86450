package observability_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/itree/pkg/observability"
)

var errNotLoaded = errors.New("index not loaded")

func serveHealth(t *testing.T, handler http.Handler) (int, map[string]string) {
	t.Helper()

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", http.NoBody))

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	return rec.Code, body
}

func TestHealthHandler_AlwaysOK(t *testing.T) {
	t.Parallel()

	code, body := serveHealth(t, observability.HealthHandler())
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ok", body["status"])
}

func TestReadyHandler(t *testing.T) {
	t.Parallel()

	pass := func(context.Context) error { return nil }
	fail := func(context.Context) error { return errNotLoaded }

	code, body := serveHealth(t, observability.ReadyHandler())
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ok", body["status"])

	code, _ = serveHealth(t, observability.ReadyHandler(pass, pass))
	assert.Equal(t, http.StatusOK, code)

	code, body = serveHealth(t, observability.ReadyHandler(pass, fail))
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, "unavailable", body["status"])
	assert.Equal(t, errNotLoaded.Error(), body["reason"])
}
