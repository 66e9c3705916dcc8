// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Haven Contributors

// Package observability provides HTTP endpoints for metrics and health checks.
package observability

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/samber/oops"
)

// ReadinessChecker returns whether the service is ready to accept connections.
type ReadinessChecker func() bool

// Package-level counters let the bus and stream handlers record events
// without holding a Server reference.
var (
	eventsPublished = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "haven_events_published_total",
			Help: "Total number of events published on the bus by channel",
		},
		[]string{"channel"},
	)
	handlerPanics = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "haven_bus_handler_panics_total",
			Help: "Total number of recovered subscriber panics by channel",
		},
		[]string{"channel"},
	)
	streamEventsDropped = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "haven_stream_events_dropped_total",
			Help: "Total number of events dropped because a stream client's buffer was full",
		},
	)
	messagesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "haven_messages_total",
			Help: "Total number of chat message mutations by action",
		},
		[]string{"action"},
	)
	streamConnections = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "haven_stream_connections",
			Help: "Number of currently open stream connections",
		},
	)
)

// RecordEventPublished increments the publish counter for a channel.
func RecordEventPublished(channel string) {
	eventsPublished.WithLabelValues(channel).Inc()
}

// RecordHandlerPanic increments the recovered-panic counter for a channel.
func RecordHandlerPanic(channel string) {
	handlerPanics.WithLabelValues(channel).Inc()
}

// RecordStreamEventDropped increments the dropped-event counter.
func RecordStreamEventDropped() {
	streamEventsDropped.Inc()
}

// RecordMessage increments the mutation counter for an action ("add", "delete").
func RecordMessage(action string) {
	messagesTotal.WithLabelValues(action).Inc()
}

// StreamConnected marks a stream connection as open.
func StreamConnected() {
	streamConnections.Inc()
}

// StreamDisconnected marks a stream connection as closed.
func StreamDisconnected() {
	streamConnections.Dec()
}

// Server provides HTTP endpoints for observability (metrics and health probes).
type Server struct {
	addr       string
	listener   net.Listener
	httpServer *http.Server
	registry   *prometheus.Registry
	isReady    ReadinessChecker
	running    atomic.Bool
}

// NewServer creates a new observability server.
// addr: listen address in "host:port" format (":9100" for all interfaces).
func NewServer(addr string, readinessChecker ReadinessChecker) *Server {
	// Own registry to avoid polluting the global one.
	registry := prometheus.NewRegistry()

	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	registry.MustRegister(eventsPublished)
	registry.MustRegister(handlerPanics)
	registry.MustRegister(streamEventsDropped)
	registry.MustRegister(messagesTotal)
	registry.MustRegister(streamConnections)

	return &Server{
		addr:     addr,
		registry: registry,
		isReady:  readinessChecker,
	}
}

// Start begins serving observability endpoints. It returns an error
// channel that receives any error from the HTTP server after startup; the
// channel is closed on graceful stop. Callers should monitor it.
func (s *Server) Start() (<-chan error, error) {
	if !s.running.CompareAndSwap(false, true) {
		return nil, oops.Errorf("observability server already running")
	}

	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		s.running.Store(false)
		return nil, oops.With("addr", s.addr).Wrap(err)
	}
	s.listener = listener

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	}))
	mux.HandleFunc("/healthz/liveness", s.handleLiveness)
	mux.HandleFunc("/healthz/readiness", s.handleReadiness)

	httpSrv := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.httpServer = httpSrv

	errCh := make(chan error, 1)
	go func() {
		defer close(errCh)
		if serveErr := httpSrv.Serve(listener); serveErr != nil && serveErr != http.ErrServerClosed {
			slog.Error("observability server error", "error", serveErr)
			errCh <- serveErr
		}
	}()

	slog.Info("observability server started", "addr", listener.Addr().String())
	return errCh, nil
}

// Stop gracefully shuts down the observability server.
func (s *Server) Stop(ctx context.Context) error {
	if !s.running.CompareAndSwap(true, false) {
		return nil
	}

	if s.httpServer != nil {
		if err := s.httpServer.Shutdown(ctx); err != nil {
			// Restore running state on failure so the server can be stopped again.
			s.running.Store(true)
			return oops.With("operation", "shutdown_observability_server").Wrap(err)
		}
	}

	slog.Info("observability server stopped")
	return nil
}

// Addr returns the address the server is listening on, or "" if stopped.
func (s *Server) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return ""
}

func (s *Server) handleLiveness(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	//nolint:errcheck // health check write error is acceptable, client may disconnect
	w.Write([]byte("ok\n"))
}

func (s *Server) handleReadiness(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")

	if s.isReady == nil || s.isReady() {
		w.WriteHeader(http.StatusOK)
		//nolint:errcheck // health check write error is acceptable, client may disconnect
		w.Write([]byte("ok\n"))
		return
	}

	w.WriteHeader(http.StatusServiceUnavailable)
	//nolint:errcheck // health check write error is acceptable, client may disconnect
	w.Write([]byte("not ready\n"))
}
