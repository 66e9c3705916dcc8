// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Haven Contributors

package chat

import (
	"context"
	"sync"
)

// MessageStore persists and retrieves chat messages.
type MessageStore interface {
	// Insert persists a new message.
	Insert(ctx context.Context, m Message) error

	// Get returns a message by ID, or ErrNotFound.
	Get(ctx context.Context, id string) (Message, error)

	// Delete removes a message by ID, or returns ErrNotFound.
	Delete(ctx context.Context, id string) error

	// ListRecent returns up to limit messages ordered newest first,
	// skipping offset messages.
	ListRecent(ctx context.Context, limit, offset int) ([]Message, error)
}

// MemoryMessageStore is an in-memory MessageStore for testing.
type MemoryMessageStore struct {
	mu   sync.RWMutex
	msgs []Message
}

// NewMemoryMessageStore creates a new in-memory message store.
func NewMemoryMessageStore() *MemoryMessageStore {
	return &MemoryMessageStore{}
}

// Insert persists a message in memory.
func (s *MemoryMessageStore) Insert(_ context.Context, m Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.msgs = append(s.msgs, m)
	return nil
}

// Get returns a message by ID.
func (s *MemoryMessageStore) Get(_ context.Context, id string) (Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, m := range s.msgs {
		if m.ID == id {
			return m, nil
		}
	}
	return Message{}, ErrNotFound
}

// Delete removes a message by ID.
func (s *MemoryMessageStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, m := range s.msgs {
		if m.ID == id {
			s.msgs = append(s.msgs[:i], s.msgs[i+1:]...)
			return nil
		}
	}
	return ErrNotFound
}

// ListRecent returns up to limit messages, newest first.
func (s *MemoryMessageStore) ListRecent(_ context.Context, limit, offset int) ([]Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	// msgs is insertion-ordered (oldest first); walk backwards.
	var out []Message
	for i := len(s.msgs) - 1 - offset; i >= 0 && len(out) < limit; i-- {
		out = append(out, s.msgs[i])
	}
	return out, nil
}
