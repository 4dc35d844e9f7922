package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Connect creates a pgx pool and verifies the connection.
func Connect(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return pool, nil
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id UUID PRIMARY KEY,
		email TEXT NOT NULL UNIQUE,
		name TEXT NOT NULL,
		password_hash TEXT NOT NULL,
		avatar TEXT,
		bio TEXT NOT NULL DEFAULT '',
		status_message TEXT NOT NULL DEFAULT 'Hey there! I am using this app.',
		is_online BOOLEAN NOT NULL DEFAULT FALSE,
		last_seen TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS chats (
		id UUID PRIMARY KEY,
		participant_a UUID NOT NULL REFERENCES users(id),
		participant_b UUID NOT NULL REFERENCES users(id),
		pair_key TEXT NOT NULL UNIQUE,
		last_message_id UUID,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS messages (
		id UUID PRIMARY KEY,
		chat_id UUID NOT NULL REFERENCES chats(id),
		sender_id UUID NOT NULL REFERENCES users(id),
		content TEXT NOT NULL,
		attachments JSONB NOT NULL DEFAULT '[]',
		status TEXT NOT NULL DEFAULT 'sent',
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS messages_chat_created_idx ON messages (chat_id, created_at)`,
	`CREATE TABLE IF NOT EXISTS contacts (
		id UUID PRIMARY KEY,
		user_id UUID NOT NULL REFERENCES users(id),
		contact_id UUID NOT NULL REFERENCES users(id),
		added_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		UNIQUE (user_id, contact_id)
	)`,
	`CREATE TABLE IF NOT EXISTS blocks (
		user_id UUID NOT NULL REFERENCES users(id),
		blocked_id UUID NOT NULL REFERENCES users(id),
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		PRIMARY KEY (user_id, blocked_id)
	)`,
}

// Migrate creates the tables if they do not exist. The unique pair_key
// index on chats is what makes concurrent chat creation safe.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	for _, stmt := range schema {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}
