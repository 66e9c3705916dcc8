//go:build integration

// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Haven Contributors

package postgres_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/havenchat/haven/internal/chat"
	chatpg "github.com/havenchat/haven/internal/chat/postgres"
	"github.com/havenchat/haven/internal/store"
	"github.com/havenchat/haven/internal/user"
	userpg "github.com/havenchat/haven/internal/user/postgres"
)

// setupDatabase starts a PostgreSQL container and applies migrations.
func setupDatabase(t *testing.T) *pgxpool.Pool {
	t.Helper()
	ctx := context.Background()

	container, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("haven_test"),
		tcpostgres.WithUsername("haven"),
		tcpostgres.WithPassword("haven"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	migrator, err := store.NewMigrator(connStr)
	require.NoError(t, err)
	require.NoError(t, migrator.Up())
	require.NoError(t, migrator.Close())

	pool, err := store.NewPool(ctx, connStr)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	return pool
}

func TestMessageRepository_Integration(t *testing.T) {
	pool := setupDatabase(t)
	repo := chatpg.NewMessageRepository(pool)
	ctx := context.Background()

	m := chat.Message{
		ID:           chat.NewMessageID(),
		AuthorID:     "u1",
		AuthorName:   "Ada",
		AuthorAvatar: "https://example.com/ada.png",
		Body:         "hello from the integration test",
		CreatedAt:    time.Now().UTC().Truncate(time.Microsecond),
	}

	require.NoError(t, repo.Insert(ctx, m))

	got, err := repo.Get(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, m.ID, got.ID)
	assert.Equal(t, m.Body, got.Body)
	assert.WithinDuration(t, m.CreatedAt, got.CreatedAt, time.Millisecond)

	// Duplicate insert trips the primary key.
	err = repo.Insert(ctx, m)
	require.Error(t, err)

	require.NoError(t, repo.Delete(ctx, m.ID))
	_, err = repo.Get(ctx, m.ID)
	assert.ErrorIs(t, err, chat.ErrNotFound)
	assert.ErrorIs(t, repo.Delete(ctx, m.ID), chat.ErrNotFound)
}

func TestMessageRepository_ListRecent_Integration(t *testing.T) {
	pool := setupDatabase(t)
	repo := chatpg.NewMessageRepository(pool)
	ctx := context.Background()

	var ids []string
	for i := 0; i < 5; i++ {
		m := chat.Message{
			ID:        chat.NewMessageID(),
			AuthorID:  "u1",
			Body:      fmt.Sprintf("m%d", i),
			CreatedAt: time.Now().UTC(),
		}
		ids = append(ids, m.ID)
		require.NoError(t, repo.Insert(ctx, m))
	}

	msgs, err := repo.ListRecent(ctx, 3, 0)
	require.NoError(t, err)
	require.Len(t, msgs, 3)
	assert.Equal(t, ids[4], msgs[0].ID, "newest first")
	assert.Equal(t, ids[2], msgs[2].ID)

	msgs, err = repo.ListRecent(ctx, 10, 3)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, ids[1], msgs[0].ID)
	assert.Equal(t, ids[0], msgs[1].ID)
}

func TestProfileRepository_Integration(t *testing.T) {
	pool := setupDatabase(t)
	repo := userpg.NewProfileRepository(pool)
	ctx := context.Background()

	_, err := pool.Exec(ctx,
		`INSERT INTO profiles (id, display_name, avatar_url) VALUES ($1, $2, $3)`,
		"u1", "Ada", "https://example.com/ada.png")
	require.NoError(t, err)

	p, err := repo.Lookup(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "Ada", p.DisplayName)

	_, err = repo.Lookup(ctx, "missing")
	assert.ErrorIs(t, err, user.ErrNotFound)
}
