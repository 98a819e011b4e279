package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/bryanchriswhite/dimsway/internal/dimmer"
	"github.com/bryanchriswhite/dimsway/internal/logger"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
)

// Version is reported by the health endpoint
var Version = "dev"

// Server is the local HTTP control surface
type Server struct {
	router   *mux.Router
	dimmer   *dimmer.Dimmer
	upgrader websocket.Upgrader
}

// NewServer creates a new API server
func NewServer(d *dimmer.Dimmer) *Server {
	s := &Server{
		router: mux.NewRouter(),
		dimmer: d,
		upgrader: websocket.Upgrader{
			CheckOrigin: sameOrigin,
		},
	}

	s.setupRoutes()
	return s
}

// setupRoutes configures the API routes
func (s *Server) setupRoutes() {
	api := s.router.PathPrefix("/api").Subrouter()

	api.HandleFunc("/health", s.handleHealth).Methods("GET")
	api.HandleFunc("/state", s.handleGetState).Methods("GET")

	// Runtime opacity control
	api.HandleFunc("/opacity", s.handleSetOpacity).Methods("PUT")
	api.HandleFunc("/opacity/increase", s.handleIncrease).Methods("POST")
	api.HandleFunc("/opacity/decrease", s.handleDecrease).Methods("POST")

	api.HandleFunc("/focus/stream", s.handleFocusStream)
}

// Handler exposes the router, mainly for tests
func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe serves on addr until ctx is cancelled
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	log := logger.WithComponent("api")
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Info().Str("addr", addr).Msg("Control API listening")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// sameOrigin only admits browsers on the same host; non-browser clients
// send no Origin header.
func sameOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	return origin == "" || origin == "http://"+r.Host
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]string{
		"status":  "healthy",
		"version": Version,
	})
}

func (s *Server) handleGetState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.dimmer.State())
}

func (s *Server) handleSetOpacity(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Unfocused *float64 `json:"unfocused"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if req.Unfocused == nil {
		http.Error(w, "missing field: unfocused", http.StatusBadRequest)
		return
	}

	if err := s.dimmer.Levels().SetUnfocused(*req.Unfocused); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	writeJSON(w, s.dimmer.Levels().Snapshot())
}

func (s *Server) handleIncrease(w http.ResponseWriter, r *http.Request) {
	s.dimmer.Levels().Increase()
	writeJSON(w, s.dimmer.Levels().Snapshot())
}

func (s *Server) handleDecrease(w http.ResponseWriter, r *http.Request) {
	s.dimmer.Levels().Decrease()
	writeJSON(w, s.dimmer.Levels().Snapshot())
}

func (s *Server) handleFocusStream(w http.ResponseWriter, r *http.Request) {
	log := logger.WithComponent("api")
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Msg("WebSocket upgrade error")
		return
	}
	defer conn.Close()

	updates := s.dimmer.Subscribe()
	defer s.dimmer.Unsubscribe(updates)

	// Send current state first
	if err := conn.WriteJSON(s.dimmer.State()); err != nil {
		log.Debug().Err(err).Msg("WebSocket write error")
		return
	}

	// Reader detects the client going away
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-gone:
			return
		case <-r.Context().Done():
			return
		case t := <-updates:
			if err := conn.WriteJSON(t); err != nil {
				log.Debug().Err(err).Msg("WebSocket write error")
				return
			}
		}
	}
}
