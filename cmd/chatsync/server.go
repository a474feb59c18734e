package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"

	"chatsync/internal/service"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
)

// Server exposes the daemon's observability surface: health, metrics, and a
// read-only view of each synced channel's timeline.
type Server struct {
	router   *mux.Router
	logger   *logrus.Logger
	sessions map[string]*service.ChannelSession
	server   *http.Server
}

func NewServer(logger *logrus.Logger, sessions map[string]*service.ChannelSession) *Server {
	s := &Server{
		router:   mux.NewRouter(),
		logger:   logger,
		sessions: sessions,
	}

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.HandleFunc("/health", s.handleHealth()).Methods(http.MethodGet)
	s.router.HandleFunc("/metrics", s.handleMetrics()).Methods(http.MethodGet)

	channels := s.router.PathPrefix("/channels/{channelId}").Subrouter()
	channels.HandleFunc("/messages", s.handleChannelMessages()).Methods(http.MethodGet)
	channels.HandleFunc("/typing", s.handleChannelTyping()).Methods(http.MethodGet)
}

func (s *Server) Start() error {
	port := os.Getenv("PORT")
	if port == "" {
		port = "8082"
	}

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%s", port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	s.logger.Infof("Starting server on port %s", port)
	return s.server.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func (s *Server) handleHealth() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"status":   "ok",
			"channels": len(s.sessions),
		})
	}
}

// handleChannelMessages serves the rendered timeline for one synced channel.
func (s *Server) handleChannelMessages() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		channelID := mux.Vars(r)["channelId"]
		session, ok := s.sessions[channelID]
		if !ok {
			http.Error(w, "channel not synced", http.StatusNotFound)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(session.Messages()); err != nil {
			s.logger.WithError(err).Error("Failed to encode timeline response")
		}
	}
}

func (s *Server) handleChannelTyping() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		channelID := mux.Vars(r)["channelId"]
		session, ok := s.sessions[channelID]
		if !ok {
			http.Error(w, "channel not synced", http.StatusNotFound)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{
			"summary": session.TypingSummary(),
		})
	}
}
