package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantpulse/opportune/internal/discovery"
)

type stubDiscoverer struct {
	last discovery.Request
}

func (s *stubDiscoverer) Discover(_ context.Context, req discovery.Request) *discovery.Response {
	s.last = req
	return &discovery.Response{
		Success:            true,
		ScanID:             "scan-123",
		UserID:             req.UserID,
		TotalOpportunities: 0,
	}
}

func TestHealthEndpoint(t *testing.T) {
	srv := New(&stubDiscoverer{}, nil, nil, zerolog.Nop())
	rec := httptest.NewRecorder()
	srv.Routes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
}

func TestDiscoverEndpoint(t *testing.T) {
	stub := &stubDiscoverer{}
	srv := New(stub, nil, nil, zerolog.Nop())

	payload := strings.NewReader(`{"force_refresh":true,"include_strategy_recommendations":true}`)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/users/u42/opportunities", payload)
	rec := httptest.NewRecorder()
	srv.Routes().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "u42", stub.last.UserID)
	assert.True(t, stub.last.ForceRefresh)
	assert.True(t, stub.last.IncludeRecommendations)

	var resp discovery.Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, "scan-123", resp.ScanID)
}

func TestDiscoverEndpointAcceptsEmptyBody(t *testing.T) {
	stub := &stubDiscoverer{}
	srv := New(stub, nil, nil, zerolog.Nop())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/users/u1/opportunities", nil)
	rec := httptest.NewRecorder()
	srv.Routes().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, stub.last.ForceRefresh)
}

func TestDiscoverEndpointAcceptsQueryParams(t *testing.T) {
	stub := &stubDiscoverer{}
	srv := New(stub, nil, nil, zerolog.Nop())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/users/u1/opportunities?force_refresh=true&include_recommendations=true", nil)
	rec := httptest.NewRecorder()
	srv.Routes().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, stub.last.ForceRefresh)
	assert.True(t, stub.last.IncludeRecommendations)
}

func TestDiscoverEndpointRejectsBadJSON(t *testing.T) {
	srv := New(&stubDiscoverer{}, nil, nil, zerolog.Nop())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/users/u1/opportunities", strings.NewReader("{not json"))
	rec := httptest.NewRecorder()
	srv.Routes().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestStreamDeliversProgressEvents(t *testing.T) {
	bus := discovery.NewProgressBus()
	srv := New(&stubDiscoverer{}, bus, nil, zerolog.Nop())

	ts := httptest.NewServer(srv.Routes())
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/v1/scans/stream?user_id=u1"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	// Give the subscription a beat to register before publishing.
	time.Sleep(50 * time.Millisecond)
	bus.Publish(discovery.ProgressEvent{ScanID: "s1", UserID: "u2", Stage: "pending"})
	bus.Publish(discovery.ProgressEvent{ScanID: "s2", UserID: "u1", Stage: "complete"})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var ev discovery.ProgressEvent
	require.NoError(t, conn.ReadJSON(&ev))
	assert.Equal(t, "s2", ev.ScanID, "events for other users are filtered out")
	assert.Equal(t, "complete", ev.Stage)
}

func TestStreamUnavailableWithoutBus(t *testing.T) {
	srv := New(&stubDiscoverer{}, nil, nil, zerolog.Nop())
	rec := httptest.NewRecorder()
	srv.Routes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/scans/stream", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
