// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Haven Contributors

package chat

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/havenchat/haven/pkg/errutil"

	"github.com/havenchat/haven/internal/user"
)

// fakeDirectory resolves profiles from a fixed map. Unknown IDs return
// user.ErrNotFound; a non-nil err overrides everything.
type fakeDirectory struct {
	profiles map[string]user.Profile
	err      error
}

func (d *fakeDirectory) Lookup(_ context.Context, id string) (user.Profile, error) {
	if d.err != nil {
		return user.Profile{}, d.err
	}
	p, ok := d.profiles[id]
	if !ok {
		return user.Profile{}, user.ErrNotFound
	}
	return p, nil
}

func newTestService(t *testing.T) (*Service, *MemoryMessageStore, *Bus) {
	t.Helper()
	store := NewMemoryMessageStore()
	bus := NewBus(nil, 0)
	dir := &fakeDirectory{profiles: map[string]user.Profile{
		"u1": {ID: "u1", DisplayName: "Ada", AvatarURL: "https://example.com/ada.png"},
	}}
	return NewService(store, dir, bus, nil), store, bus
}

func TestService_AddMessage(t *testing.T) {
	svc, store, bus := newTestService(t)

	var published []Event
	cancel := bus.Subscribe(ChannelNewMessage, func(ev Event) {
		published = append(published, ev)
	})
	defer cancel()

	msg, err := svc.AddMessage(context.Background(), "u1", "hello")
	require.NoError(t, err)

	assert.NotEmpty(t, msg.ID)
	assert.Equal(t, "u1", msg.AuthorID)
	assert.Equal(t, "Ada", msg.AuthorName)
	assert.Equal(t, "https://example.com/ada.png", msg.AuthorAvatar)
	assert.Equal(t, "hello", msg.Body)
	assert.False(t, msg.CreatedAt.IsZero())

	stored, err := store.Get(context.Background(), msg.ID)
	require.NoError(t, err)
	assert.Equal(t, msg, stored)

	require.Len(t, published, 1)
	assert.Equal(t, NewMessageEvent{Message: msg}, published[0])
}

func TestService_AddMessage_UnknownAuthorGetsDefaultProfile(t *testing.T) {
	svc, _, _ := newTestService(t)

	msg, err := svc.AddMessage(context.Background(), "stranger", "hi there")
	require.NoError(t, err)

	assert.Equal(t, "Community Member", msg.AuthorName)
	assert.NotEmpty(t, msg.AuthorAvatar)
}

func TestService_AddMessage_DirectoryFailure(t *testing.T) {
	store := NewMemoryMessageStore()
	dir := &fakeDirectory{err: errors.New("connection refused")}
	svc := NewService(store, dir, nil, nil)

	_, err := svc.AddMessage(context.Background(), "u1", "hello")
	require.Error(t, err)
	errutil.AssertErrorCode(t, err, "PROFILE_LOOKUP_FAILED")
}

func TestService_AddMessage_EmptyInput(t *testing.T) {
	svc, _, _ := newTestService(t)

	_, err := svc.AddMessage(context.Background(), "", "hello")
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = svc.AddMessage(context.Background(), "u1", "")
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestService_DeleteMessage(t *testing.T) {
	svc, store, bus := newTestService(t)

	msg, err := svc.AddMessage(context.Background(), "u1", "delete me")
	require.NoError(t, err)

	var published []Event
	cancel := bus.Subscribe(ChannelDeleteMessage, func(ev Event) {
		published = append(published, ev)
	})
	defer cancel()

	require.NoError(t, svc.DeleteMessage(context.Background(), "u1", msg.ID))

	_, err = store.Get(context.Background(), msg.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	require.Len(t, published, 1)
	assert.Equal(t, DeleteMessageEvent{MessageID: msg.ID}, published[0])
}

func TestService_DeleteMessage_NotAuthor(t *testing.T) {
	svc, store, _ := newTestService(t)

	msg, err := svc.AddMessage(context.Background(), "u1", "mine")
	require.NoError(t, err)

	err = svc.DeleteMessage(context.Background(), "u2", msg.ID)
	assert.ErrorIs(t, err, ErrNotAuthorized)

	// The message must survive a rejected delete.
	_, err = store.Get(context.Background(), msg.ID)
	assert.NoError(t, err)
}

func TestService_DeleteMessage_NotFound(t *testing.T) {
	svc, _, _ := newTestService(t)

	err := svc.DeleteMessage(context.Background(), "u1", NewMessageID())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestService_ListMessages(t *testing.T) {
	svc, _, _ := newTestService(t)

	var ids []string
	for i := 0; i < 5; i++ {
		msg, err := svc.AddMessage(context.Background(), "u1", fmt.Sprintf("m%d", i))
		require.NoError(t, err)
		ids = append(ids, msg.ID)
	}

	// Chronological order for display.
	msgs, err := svc.ListMessages(context.Background(), 10, 0)
	require.NoError(t, err)
	require.Len(t, msgs, 5)
	for i, m := range msgs {
		assert.Equal(t, ids[i], m.ID)
	}

	// Offset skips the newest messages, still chronological.
	msgs, err = svc.ListMessages(context.Background(), 2, 1)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, ids[2], msgs[0].ID)
	assert.Equal(t, ids[3], msgs[1].ID)
}

func TestService_ListMessages_CapsLimit(t *testing.T) {
	svc, _, _ := newTestService(t)
	svc.ListCap = 3

	for i := 0; i < 5; i++ {
		_, err := svc.AddMessage(context.Background(), "u1", fmt.Sprintf("m%d", i))
		require.NoError(t, err)
	}

	msgs, err := svc.ListMessages(context.Background(), 100, 0)
	require.NoError(t, err)
	assert.Len(t, msgs, 3)

	// Zero and negative limits fall back to the cap too.
	msgs, err = svc.ListMessages(context.Background(), 0, -1)
	require.NoError(t, err)
	assert.Len(t, msgs, 3)
}

// blockingStore hangs list reads until the context expires.
type blockingStore struct {
	MemoryMessageStore
}

func (s *blockingStore) ListRecent(ctx context.Context, _, _ int) ([]Message, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestService_ListMessages_Timeout(t *testing.T) {
	svc := NewService(&blockingStore{}, &fakeDirectory{}, nil, nil)
	svc.ListTimeout = 20 * time.Millisecond

	start := time.Now()
	_, err := svc.ListMessages(context.Background(), 10, 0)
	assert.ErrorIs(t, err, ErrTimeout)
	assert.Less(t, time.Since(start), 5*time.Second)
}
