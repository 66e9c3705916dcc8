// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Haven Contributors

// Package chat contains the community chat domain: messages, the in-process
// event bus with its replay buffer, and the service that ties persistence
// to fan-out.
package chat

import (
	"crypto/rand"
	"fmt"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// Message is a single community chat message. Once persisted it is
// immutable; the only mutation is a hard delete by its author.
type Message struct {
	ID           string    `json:"id"`
	AuthorID     string    `json:"authorId"`
	AuthorName   string    `json:"authorName"`
	AuthorAvatar string    `json:"authorAvatar"`
	Body         string    `json:"body"`
	CreatedAt    time.Time `json:"createdAt"`
}

var (
	entropy     = ulid.Monotonic(rand.Reader, 0)
	entropyLock sync.Mutex
)

// NewMessageID generates a new message ID. IDs are ULIDs, so lexicographic
// order matches creation order.
func NewMessageID() string {
	entropyLock.Lock()
	defer entropyLock.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now()), entropy).String()
}

// ParseMessageID validates a message ID string.
func ParseMessageID(s string) (string, error) {
	id, err := ulid.Parse(s)
	if err != nil {
		return "", fmt.Errorf("invalid message ID %q: %w", s, err)
	}
	return id.String(), nil
}
