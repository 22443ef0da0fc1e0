package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ensemble/internal/director"
	"ensemble/internal/registry"
)

func newTestAPI(t *testing.T) (*Server, *registry.Registry) {
	t.Helper()
	rooms := registry.New(director.NewScripted(), nil)
	return NewServer(rooms), rooms
}

func TestHealthEndpoint(t *testing.T) {
	server, _ := newTestAPI(t)

	rec := httptest.NewRecorder()
	server.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK", rec.Body.String())
}

func TestHealthEndpointRejectsPost(t *testing.T) {
	server, _ := newTestAPI(t)

	rec := httptest.NewRecorder()
	server.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/health", nil))

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestStatsEndpoint(t *testing.T) {
	server, rooms := newTestAPI(t)
	rooms.CreateRoom(context.Background(), false)

	rec := httptest.NewRecorder()
	server.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/stats", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var stats map[string]int
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	// The lobby plus the created room.
	assert.Equal(t, 2, stats["rooms"])
}

func TestUnknownPath(t *testing.T) {
	server, _ := newTestAPI(t)

	rec := httptest.NewRecorder()
	server.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/nope", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
}
