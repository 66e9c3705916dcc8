// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Haven Contributors

// Package postgres implements the chat message store on PostgreSQL.
package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/samber/oops"

	"github.com/havenchat/haven/internal/chat"
)

// DB is the subset of pgxpool.Pool the repository needs. It matches
// pgxmock.PgxPoolIface for tests.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// MessageRepository implements chat.MessageStore using PostgreSQL.
type MessageRepository struct {
	db DB
}

// NewMessageRepository creates a new MessageRepository.
func NewMessageRepository(db DB) *MessageRepository {
	return &MessageRepository{db: db}
}

// Insert persists a new message.
func (r *MessageRepository) Insert(ctx context.Context, m chat.Message) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO chat_messages (id, author_id, author_name, author_avatar, body, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`,
		m.ID,
		m.AuthorID,
		m.AuthorName,
		m.AuthorAvatar,
		m.Body,
		m.CreatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return oops.Code("MESSAGE_DUPLICATE_ID").
				With("message_id", m.ID).
				Wrap(err)
		}
		return oops.Code("MESSAGE_INSERT_FAILED").
			With("operation", "insert chat_message").
			With("message_id", m.ID).
			Wrap(err)
	}
	return nil
}

// Get returns a message by ID, or chat.ErrNotFound.
func (r *MessageRepository) Get(ctx context.Context, id string) (chat.Message, error) {
	var m chat.Message
	err := r.db.QueryRow(ctx, `
		SELECT id, author_id, author_name, author_avatar, body, created_at
		FROM chat_messages
		WHERE id = $1
	`, id).Scan(&m.ID, &m.AuthorID, &m.AuthorName, &m.AuthorAvatar, &m.Body, &m.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return chat.Message{}, oops.Code("MESSAGE_NOT_FOUND").
			With("message_id", id).
			Wrap(chat.ErrNotFound)
	}
	if err != nil {
		return chat.Message{}, oops.Code("MESSAGE_GET_FAILED").
			With("operation", "get chat_message by id").
			With("message_id", id).
			Wrap(err)
	}
	return m, nil
}

// Delete removes a message by ID, or returns chat.ErrNotFound.
func (r *MessageRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM chat_messages WHERE id = $1`, id)
	if err != nil {
		return oops.Code("MESSAGE_DELETE_FAILED").
			With("operation", "delete chat_message").
			With("message_id", id).
			Wrap(err)
	}
	if tag.RowsAffected() == 0 {
		return oops.Code("MESSAGE_NOT_FOUND").
			With("message_id", id).
			Wrap(chat.ErrNotFound)
	}
	return nil
}

// ListRecent returns up to limit messages ordered newest first. IDs are
// ULIDs, so ordering by ID matches ordering by creation time.
func (r *MessageRepository) ListRecent(ctx context.Context, limit, offset int) ([]chat.Message, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, author_id, author_name, author_avatar, body, created_at
		FROM chat_messages
		ORDER BY id DESC
		LIMIT $1 OFFSET $2
	`, limit, offset)
	if err != nil {
		return nil, oops.Code("MESSAGE_LIST_FAILED").
			With("operation", "list chat_messages").
			Wrap(err)
	}
	defer rows.Close()

	var msgs []chat.Message
	for rows.Next() {
		var m chat.Message
		if err := rows.Scan(&m.ID, &m.AuthorID, &m.AuthorName, &m.AuthorAvatar, &m.Body, &m.CreatedAt); err != nil {
			return nil, oops.Code("MESSAGE_LIST_FAILED").
				With("operation", "scan chat_message row").
				Wrap(err)
		}
		msgs = append(msgs, m)
	}
	if err := rows.Err(); err != nil {
		return nil, oops.Code("MESSAGE_LIST_FAILED").
			With("operation", "iterate chat_messages").
			Wrap(err)
	}
	return msgs, nil
}
