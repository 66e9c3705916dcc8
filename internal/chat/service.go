// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Haven Contributors

package chat

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"time"

	"github.com/samber/oops"

	"github.com/havenchat/haven/internal/observability"
	"github.com/havenchat/haven/internal/user"
)

// Defaults for list reads.
const (
	DefaultListCap     = 100
	DefaultListTimeout = 8 * time.Second
)

// Service implements the community chat mutations: it writes to the
// message store and then announces the write on the bus. A publish can
// never undo a persisted write; reconnecting clients recover missed
// events from the replay buffer or a list fetch.
type Service struct {
	store MessageStore
	users user.Directory
	bus   *Bus
	log   *slog.Logger

	// ListCap bounds how many messages a single list read returns,
	// regardless of the requested limit.
	ListCap int
	// ListTimeout bounds how long a list read may take before it is
	// abandoned with ErrTimeout.
	ListTimeout time.Duration
}

// NewService creates a chat service.
func NewService(store MessageStore, users user.Directory, bus *Bus, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		store:       store,
		users:       users,
		bus:         bus,
		log:         log,
		ListCap:     DefaultListCap,
		ListTimeout: DefaultListTimeout,
	}
}

// AddMessage persists a new message for authorID and publishes it on the
// newMessage channel. The author's display name and avatar come from the
// user directory; an unknown author gets the default profile.
func (s *Service) AddMessage(ctx context.Context, authorID, body string) (Message, error) {
	if authorID == "" || body == "" {
		return Message{}, ErrInvalidInput
	}

	profile, err := s.users.Lookup(ctx, authorID)
	switch {
	case errors.Is(err, user.ErrNotFound):
		profile = user.DefaultProfile(authorID)
	case err != nil:
		return Message{}, oops.Code("PROFILE_LOOKUP_FAILED").
			With("author_id", authorID).
			Wrap(err)
	}

	msg := Message{
		ID:           NewMessageID(),
		AuthorID:     authorID,
		AuthorName:   profile.DisplayName,
		AuthorAvatar: profile.AvatarURL,
		Body:         body,
		CreatedAt:    time.Now().UTC(),
	}

	if err := s.store.Insert(ctx, msg); err != nil {
		return Message{}, oops.Code("MESSAGE_INSERT_FAILED").
			With("message_id", msg.ID).
			Wrap(err)
	}

	observability.RecordMessage("add")

	if s.bus != nil {
		s.bus.Publish(ChannelNewMessage, NewMessageEvent{Message: msg})
	}

	return msg, nil
}

// DeleteMessage hard-deletes a message and publishes the deletion. Only
// the author may delete; the check trusts the caller-supplied ID.
func (s *Service) DeleteMessage(ctx context.Context, authorID, messageID string) error {
	if authorID == "" || messageID == "" {
		return ErrInvalidInput
	}

	msg, err := s.store.Get(ctx, messageID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return ErrNotFound
		}
		return oops.Code("MESSAGE_GET_FAILED").
			With("message_id", messageID).
			Wrap(err)
	}

	if msg.AuthorID != authorID {
		return ErrNotAuthorized
	}

	if err := s.store.Delete(ctx, messageID); err != nil {
		if errors.Is(err, ErrNotFound) {
			return ErrNotFound
		}
		return oops.Code("MESSAGE_DELETE_FAILED").
			With("message_id", messageID).
			Wrap(err)
	}

	observability.RecordMessage("delete")

	if s.bus != nil {
		s.bus.Publish(ChannelDeleteMessage, DeleteMessageEvent{MessageID: messageID})
	}

	return nil
}

// ListMessages reads the most recent messages and returns them in
// chronological order for display. The read is bounded by ListCap and
// ListTimeout; a deadline hit surfaces as ErrTimeout instead of hanging.
func (s *Service) ListMessages(ctx context.Context, limit, offset int) ([]Message, error) {
	if limit <= 0 || limit > s.ListCap {
		limit = s.ListCap
	}
	if offset < 0 {
		offset = 0
	}

	ctx, cancel := context.WithTimeout(ctx, s.ListTimeout)
	defer cancel()

	msgs, err := s.store.ListRecent(ctx, limit, offset)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, ErrTimeout
		}
		return nil, oops.Code("MESSAGE_LIST_FAILED").
			With("limit", limit).
			With("offset", offset).
			Wrap(err)
	}

	// Store order is newest first; clients render oldest first.
	slices.Reverse(msgs)
	return msgs, nil
}
