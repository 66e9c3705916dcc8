// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Haven Contributors

package chat

import (
	"log/slog"
	"sync"

	"github.com/havenchat/haven/internal/observability"
)

// Channel names for community chat fan-out.
const (
	ChannelNewMessage    = "newMessage"
	ChannelDeleteMessage = "deleteMessage"
)

// Handler receives events published on a channel.
type Handler func(Event)

// DefaultRecentCapacity bounds the replay buffer when no capacity is
// configured.
const DefaultRecentCapacity = 50

// Bus is a single-process publish/subscribe registry with short-term
// retention of recent messages. One Bus exists per process; it is
// constructed at startup and injected into the handlers that need it.
//
// Handlers run synchronously inside Publish, in registration order, under
// the bus mutex. That gives FIFO delivery per channel and makes cancel a
// hard barrier: once a cancel func returns, its handler will never run
// again. Handlers must not call back into the bus.
//
// Fan-out is best effort within one process. Separate processes have
// independent buses and replay buffers; a broker-backed implementation of
// the same Subscribe/Publish contract would be the drop-in fix if
// horizontal scaling is ever needed.
type Bus struct {
	mu     sync.Mutex
	subs   map[string][]*subscription
	recent *recentBuffer
	log    *slog.Logger
}

type subscription struct {
	channel string
	handler Handler
}

// NewBus creates a bus whose replay buffer holds recentCapacity messages.
// A non-positive capacity falls back to DefaultRecentCapacity.
func NewBus(log *slog.Logger, recentCapacity int) *Bus {
	if log == nil {
		log = slog.Default()
	}
	if recentCapacity <= 0 {
		recentCapacity = DefaultRecentCapacity
	}
	return &Bus{
		subs:   make(map[string][]*subscription),
		recent: newRecentBuffer(recentCapacity),
		log:    log,
	}
}

// Subscribe registers a handler for a channel and returns its cancel func.
// Cancelling is idempotent and removes exactly this registration; other
// subscriptions on the channel are unaffected.
func (b *Bus) Subscribe(channel string, h Handler) (cancel func()) {
	sub := &subscription{channel: channel, handler: h}

	b.mu.Lock()
	b.subs[channel] = append(b.subs[channel], sub)
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()

			subs := b.subs[channel]
			for i, s := range subs {
				if s == sub {
					b.subs[channel] = append(subs[:i], subs[i+1:]...)
					break
				}
			}
			if len(b.subs[channel]) == 0 {
				delete(b.subs, channel)
			}
		})
	}
}

// Publish delivers an event to every handler currently subscribed to the
// channel, in registration order. A panicking handler is recovered and
// logged; the remaining handlers still run and nothing propagates to the
// publisher. New-message events are retained in the replay buffer and
// delete events evict their match from it.
func (b *Bus) Publish(channel string, ev Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch e := ev.(type) {
	case NewMessageEvent:
		if channel == ChannelNewMessage {
			b.recent.add(e.Message)
		}
	case DeleteMessageEvent:
		if channel == ChannelDeleteMessage {
			b.recent.remove(e.MessageID)
		}
	}

	observability.RecordEventPublished(channel)

	for _, sub := range b.subs[channel] {
		b.dispatch(sub, ev)
	}
}

// SubscriberCount reports how many handlers are subscribed to a channel.
func (b *Bus) SubscriberCount(channel string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs[channel])
}

// RecentMessages returns a defensive copy of the replay buffer, oldest
// first.
func (b *Bus) RecentMessages() []Message {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.recent.snapshot()
}

func (b *Bus) dispatch(sub *subscription, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			b.log.Error("chat subscriber panicked",
				"channel", sub.channel,
				"panic", r,
			)
			observability.RecordHandlerPanic(sub.channel)
		}
	}()
	sub.handler(ev)
}
