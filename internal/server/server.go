// Package server exposes the discovery engine over HTTP: the scan endpoint,
// health and metrics, and a websocket stream of scan progress.
package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/quantpulse/opportune/internal/discovery"
)

// Discoverer is the single operation the API fronts.
type Discoverer interface {
	Discover(ctx context.Context, req discovery.Request) *discovery.Response
}

// Server is the HTTP surface of the engine.
type Server struct {
	orch     Discoverer
	progress *discovery.ProgressBus
	metrics  http.Handler
	upgrader websocket.Upgrader
	log      zerolog.Logger
}

// New builds the server. metricsHandler and progress may be nil.
func New(orch Discoverer, progress *discovery.ProgressBus, metricsHandler http.Handler, log zerolog.Logger) *Server {
	return &Server{
		orch:     orch,
		progress: progress,
		metrics:  metricsHandler,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		log: log.With().Str("component", "server").Logger(),
	}
}

// Routes wires the handler tree.
func (s *Server) Routes() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	if s.metrics != nil {
		r.Handle("/metrics", s.metrics).Methods(http.MethodGet)
	}
	api := r.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/users/{user_id}/opportunities", s.handleDiscover).Methods(http.MethodPost)
	api.HandleFunc("/scans/stream", s.handleStream).Methods(http.MethodGet)
	return r
}

// Run serves until ctx is cancelled, then drains with a 10s grace period.
func (s *Server) Run(ctx context.Context, listen string) error {
	srv := &http.Server{
		Addr:              listen,
		Handler:           s.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		s.log.Info().Str("listen", listen).Msg("http server starting")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

type discoverBody struct {
	ForceRefresh           bool `json:"force_refresh"`
	IncludeRecommendations bool `json:"include_strategy_recommendations"`
}

func (s *Server) handleDiscover(w http.ResponseWriter, r *http.Request) {
	userID := mux.Vars(r)["user_id"]
	if userID == "" {
		s.writeError(w, http.StatusBadRequest, "user_id is required")
		return
	}

	var body discoverBody
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			s.writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}
	// Query params are an alternative to the JSON body for curl-style calls.
	if r.URL.Query().Get("force_refresh") == "true" {
		body.ForceRefresh = true
	}
	if r.URL.Query().Get("include_recommendations") == "true" {
		body.IncludeRecommendations = true
	}

	resp := s.orch.Discover(r.Context(), discovery.Request{
		UserID:                 userID,
		ForceRefresh:           body.ForceRefresh,
		IncludeRecommendations: body.IncludeRecommendations,
	})
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// handleStream upgrades to websocket and forwards scan progress events. An
// optional user_id query filters the stream to one user.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	if s.progress == nil {
		s.writeError(w, http.StatusServiceUnavailable, "progress streaming disabled")
		return
	}
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}
	defer conn.Close()

	userFilter := r.URL.Query().Get("user_id")
	events, cancel := s.progress.Subscribe()
	defer cancel()

	// Drain reads so client close frames are noticed.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-done:
			return
		case <-r.Context().Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			if userFilter != "" && ev.UserID != userFilter {
				continue
			}
			conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
			if err := conn.WriteJSON(ev); err != nil {
				return
			}
		}
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Error().Err(err).Msg("response encode failed")
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, map[string]interface{}{"success": false, "error": msg})
}
