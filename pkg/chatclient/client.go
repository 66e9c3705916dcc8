// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Haven Contributors

// Package chatclient is a reconnecting consumer for the chat event
// stream. The server cycles every stream connection on a timer, so the
// reconnect loop here is part of the protocol, not error handling: the
// client backs off exponentially (1.5x, capped) on failures, resets the
// backoff as soon as a connection delivers an event, and merges replay
// batches by message ID so a reconnect never makes messages flicker.
package chatclient

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/havenchat/haven/internal/chat"
)

// Reconnect backoff defaults.
const (
	DefaultBaseDelay = 500 * time.Millisecond
	DefaultMaxDelay  = 10 * time.Second
)

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets the HTTP client used for stream connections.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithLogger sets the client logger.
func WithLogger(log *slog.Logger) Option {
	return func(c *Client) { c.log = log }
}

// WithBackoff overrides the reconnect backoff parameters.
func WithBackoff(base, ceiling time.Duration) Option {
	return func(c *Client) {
		c.baseDelay = base
		c.maxDelay = ceiling
	}
}

// WithEventHandler registers a callback invoked for every decoded event,
// after it has been applied to local state.
func WithEventHandler(fn func(chat.Event)) Option {
	return func(c *Client) { c.onEvent = fn }
}

// Client consumes a chat event stream and maintains a merged local view
// of the messages it has seen.
type Client struct {
	url        string
	httpClient *http.Client
	log        *slog.Logger
	baseDelay  time.Duration
	maxDelay   time.Duration
	onEvent    func(chat.Event)

	mu   sync.RWMutex
	byID map[string]chat.Message
}

// New creates a client for the stream at url.
func New(url string, opts ...Option) *Client {
	c := &Client{
		url:        url,
		httpClient: http.DefaultClient,
		log:        slog.Default(),
		baseDelay:  DefaultBaseDelay,
		maxDelay:   DefaultMaxDelay,
		byID:       make(map[string]chat.Message),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Run consumes the stream until ctx is cancelled, reconnecting on any
// stream error or server-side cycle. It returns ctx.Err() on cancellation.
func (c *Client) Run(ctx context.Context) error {
	backoff := newBackoff(c.baseDelay, c.maxDelay)

	for {
		sawEvent, err := c.consume(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err != nil {
			c.log.Debug("stream connection ended", "error", err)
		}

		// Any successfully delivered event proves the server was
		// reachable; start the backoff curve over.
		if sawEvent {
			backoff = newBackoff(c.baseDelay, c.maxDelay)
		}

		delay, _ := backoff.Next()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
}

// Messages returns the merged local view, oldest first. Message IDs are
// ULIDs, so sorting by ID is chronological.
func (c *Client) Messages() []chat.Message {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]chat.Message, 0, len(c.byID))
	for _, m := range c.byID {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// MergeList folds a list-fetch result into local state, deduplicating on
// message ID. A message already delivered live is not duplicated and not
// replaced, so a racing fetch cannot clobber newer local state.
func (c *Client) MergeList(msgs []chat.Message) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, m := range msgs {
		if _, ok := c.byID[m.ID]; !ok {
			c.byID[m.ID] = m
		}
	}
}

// consume runs a single stream connection to completion. It reports
// whether at least one event was decoded on this connection.
func (c *Client) consume(ctx context.Context) (sawEvent bool, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return false, fmt.Errorf("build stream request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false, fmt.Errorf("connect stream: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck // read side already drained or failed

	if resp.StatusCode != http.StatusOK {
		return false, fmt.Errorf("stream returned status %d", resp.StatusCode)
	}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var data []string
	for scanner.Scan() {
		line := scanner.Text()

		switch {
		case line == "":
			// Frame boundary.
			if len(data) > 0 {
				if c.handleFrame(strings.Join(data, "\n")) {
					sawEvent = true
				}
				data = data[:0]
			}
		case strings.HasPrefix(line, ":"):
			// Keepalive comment, not data.
		case strings.HasPrefix(line, "data:"):
			data = append(data, strings.TrimPrefix(strings.TrimPrefix(line, "data:"), " "))
		}
	}
	if err := scanner.Err(); err != nil && ctx.Err() == nil {
		return sawEvent, fmt.Errorf("read stream: %w", err)
	}
	return sawEvent, nil
}

// handleFrame decodes and applies one data frame. Reports whether the
// frame held a valid event.
func (c *Client) handleFrame(payload string) bool {
	ev, err := chat.DecodeEvent([]byte(payload))
	if err != nil {
		c.log.Warn("dropping undecodable stream frame", "error", err)
		return false
	}

	c.apply(ev)
	if c.onEvent != nil {
		c.onEvent(ev)
	}
	return true
}

func (c *Client) apply(ev chat.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch e := ev.(type) {
	case chat.ConnectedEvent:
		// Nothing to merge; resets backoff via the caller.
	case chat.NewMessageEvent:
		c.byID[e.Message.ID] = e.Message
	case chat.DeleteMessageEvent:
		delete(c.byID, e.MessageID)
	case chat.BatchEvent:
		for _, m := range e.Messages {
			if _, ok := c.byID[m.ID]; !ok {
				c.byID[m.ID] = m
			}
		}
	}
}
