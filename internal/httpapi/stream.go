// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Haven Contributors

package httpapi

import (
	"fmt"
	"net/http"
	"time"

	"github.com/havenchat/haven/internal/chat"
	"github.com/havenchat/haven/internal/observability"
)

// handleStream serves one long-lived server-sent-events connection.
//
// The connection subscribes to both chat channels, greets the client with
// a connection event plus a replay batch, then races four things in one
// loop: the next subscribed event, the keepalive tick, the proactive
// cycle deadline, and client disconnect. The cycle deadline closes the
// connection cleanly before upstream infrastructure would cut it at 60s;
// clients treat that as an ordinary reconnect. Deferred cancels guarantee
// both subscriptions are released on every exit path.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	// Fan-out handlers run synchronously inside Publish, so they hand the
	// event to this connection's buffered queue instead of writing the
	// response themselves. A full queue drops the event rather than
	// stalling every other subscriber behind a slow client.
	events := make(chan chat.Event, s.stream.BufferSize)
	forward := func(ev chat.Event) {
		select {
		case events <- ev:
		default:
			s.log.Warn("stream event dropped: client buffer full",
				"remote", r.RemoteAddr,
			)
			observability.RecordStreamEventDropped()
		}
	}

	cancelNew := s.bus.Subscribe(chat.ChannelNewMessage, forward)
	defer cancelNew()
	cancelDelete := s.bus.Subscribe(chat.ChannelDeleteMessage, forward)
	defer cancelDelete()

	observability.StreamConnected()
	defer observability.StreamDisconnected()

	if err := s.writeEvent(w, flusher, chat.ConnectedEvent{}); err != nil {
		return
	}
	if recent := s.bus.RecentMessages(); len(recent) > 0 {
		if err := s.writeEvent(w, flusher, chat.BatchEvent{Messages: recent}); err != nil {
			return
		}
	}

	keepalive := time.NewTicker(s.stream.KeepaliveInterval)
	defer keepalive.Stop()
	cycle := time.NewTimer(s.stream.CycleAfter)
	defer cycle.Stop()

	for {
		select {
		case <-r.Context().Done():
			s.log.Debug("stream client disconnected", "remote", r.RemoteAddr)
			return

		case <-cycle.C:
			s.log.Debug("cycling stream connection", "remote", r.RemoteAddr)
			return

		case <-keepalive.C:
			if _, err := fmt.Fprint(w, ": ping\n\n"); err != nil {
				s.log.Debug("stream keepalive write failed", "remote", r.RemoteAddr, "error", err)
				return
			}
			flusher.Flush()

		case ev := <-events:
			if err := s.writeEvent(w, flusher, ev); err != nil {
				s.log.Debug("stream write failed", "remote", r.RemoteAddr, "error", err)
				return
			}
		}
	}
}

// writeEvent serializes and sends one event frame. An encode failure is
// logged and swallowed so a single bad event cannot kill the connection;
// only a transport write failure is returned.
func (s *Server) writeEvent(w http.ResponseWriter, flusher http.Flusher, ev chat.Event) error {
	b, err := chat.EncodeEvent(ev)
	if err != nil {
		s.log.Error("stream event encode failed", "error", err)
		return nil
	}
	if _, err := fmt.Fprintf(w, "data: %s\n\n", b); err != nil {
		return err
	}
	flusher.Flush()
	return nil
}
