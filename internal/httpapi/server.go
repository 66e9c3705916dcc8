// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Haven Contributors

// Package httpapi exposes the community chat over HTTP: JSON mutation
// endpoints and the server-sent-events stream.
package httpapi

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/go-playground/validator/v10"
	"github.com/samber/oops"

	"github.com/havenchat/haven/internal/chat"
	"github.com/havenchat/haven/internal/config"
)

// Server serves the chat HTTP API.
type Server struct {
	addr     string
	svc      *chat.Service
	bus      *chat.Bus
	stream   config.StreamConfig
	log      *slog.Logger
	validate *validator.Validate

	listener   net.Listener
	httpServer *http.Server
	running    atomic.Bool
}

// NewServer creates a chat API server.
func NewServer(addr string, svc *chat.Service, bus *chat.Bus, stream config.StreamConfig, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	return &Server{
		addr:     addr,
		svc:      svc,
		bus:      bus,
		stream:   stream,
		log:      log,
		validate: validator.New(),
	}
}

// Router builds the HTTP routes.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", "Cache-Control"},
		MaxAge:         300,
	}))

	r.Route("/api/chat", func(r chi.Router) {
		r.Post("/messages", s.handleAddMessage)
		r.Delete("/messages", s.handleDeleteMessage)
		r.Get("/messages", s.handleListMessages)
		r.Get("/stream", s.handleStream)
	})

	return r
}

// Start begins serving the API. It returns an error channel that receives
// any error from the HTTP server after startup; the channel is closed on
// graceful stop.
func (s *Server) Start() (<-chan error, error) {
	if !s.running.CompareAndSwap(false, true) {
		return nil, oops.Errorf("chat API server already running")
	}

	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		s.running.Store(false)
		return nil, oops.With("addr", s.addr).Wrap(err)
	}
	s.listener = listener

	httpSrv := &http.Server{
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
		// No WriteTimeout: the stream endpoint holds its response open
		// until the cycle deadline.
	}
	s.httpServer = httpSrv

	errCh := make(chan error, 1)
	go func() {
		defer close(errCh)
		if serveErr := httpSrv.Serve(listener); serveErr != nil && serveErr != http.ErrServerClosed {
			s.log.Error("chat API server error", "error", serveErr)
			errCh <- serveErr
		}
	}()

	s.log.Info("chat API server started", "addr", listener.Addr().String())
	return errCh, nil
}

// Stop gracefully shuts down the API server. Open stream connections end
// when their contexts are cancelled by the shutdown.
func (s *Server) Stop(ctx context.Context) error {
	if !s.running.CompareAndSwap(true, false) {
		return nil
	}

	if s.httpServer != nil {
		if err := s.httpServer.Shutdown(ctx); err != nil {
			s.running.Store(true)
			return oops.With("operation", "shutdown_chat_api_server").Wrap(err)
		}
	}

	s.log.Info("chat API server stopped")
	return nil
}

// Addr returns the address the server is listening on, or "" if stopped.
func (s *Server) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return ""
}
