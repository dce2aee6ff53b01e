package persistence

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// schema holds the idempotent DDL statements, applied in order at startup.
var schema = []string{
	`CREATE EXTENSION IF NOT EXISTS "pgcrypto"`,
	`CREATE TABLE IF NOT EXISTS users (
		id            UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		username      TEXT NOT NULL,
		email         TEXT NOT NULL UNIQUE,
		password_hash TEXT NOT NULL,
		role          TEXT NOT NULL DEFAULT 'MEMBER',
		avatar        TEXT,
		banned        BOOLEAN NOT NULL DEFAULT FALSE,
		ban_reason    TEXT,
		banned_by_id  UUID REFERENCES users(id),
		banned_at     TIMESTAMPTZ,
		created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at    TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		last_seen_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS products (
		id          UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		title       TEXT NOT NULL,
		description TEXT NOT NULL,
		category    TEXT NOT NULL,
		thumbnail   TEXT,
		price       NUMERIC(12,2) NOT NULL CHECK (price >= 0),
		quantity    INTEGER NOT NULL DEFAULT 1 CHECK (quantity >= 0),
		featured    BOOLEAN NOT NULL DEFAULT FALSE,
		active      BOOLEAN NOT NULL DEFAULT TRUE,
		author_id   UUID NOT NULL REFERENCES users(id),
		created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS tickets (
		id           UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		kind         TEXT NOT NULL,
		opener_id    UUID NOT NULL REFERENCES users(id),
		product_id   UUID REFERENCES products(id),
		title        TEXT NOT NULL DEFAULT '',
		description  TEXT NOT NULL DEFAULT '',
		quantity     INTEGER NOT NULL DEFAULT 0,
		total_price  NUMERIC(12,2) NOT NULL DEFAULT 0,
		status       TEXT NOT NULL DEFAULT 'open',
		message_seq  INTEGER NOT NULL DEFAULT 0,
		close_reason TEXT,
		closed_by_id UUID REFERENCES users(id),
		closed_at    TIMESTAMPTZ,
		created_at   TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at   TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	// At most one open commerce ticket per (opener, product) and one open
	// support ticket per (opener, title).
	`CREATE UNIQUE INDEX IF NOT EXISTS tickets_open_commerce_uniq
		ON tickets (opener_id, product_id)
		WHERE kind = 'COMMERCE' AND status = 'open'`,
	`CREATE UNIQUE INDEX IF NOT EXISTS tickets_open_support_uniq
		ON tickets (opener_id, title)
		WHERE kind = 'SUPPORT' AND status = 'open'`,
	`CREATE TABLE IF NOT EXISTS ticket_messages (
		id         UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		ticket_id  UUID NOT NULL REFERENCES tickets(id) ON DELETE CASCADE,
		seq        INTEGER NOT NULL,
		sender_id  UUID NOT NULL REFERENCES users(id),
		content    TEXT NOT NULL DEFAULT '',
		image_url  TEXT,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		UNIQUE (ticket_id, seq)
	)`,
	`CREATE TABLE IF NOT EXISTS staff_messages (
		id         UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		sender_id  UUID NOT NULL REFERENCES users(id),
		content    TEXT NOT NULL DEFAULT '',
		image_url  TEXT,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS notifications (
		id         UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		user_id    UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		type       TEXT NOT NULL,
		message    TEXT NOT NULL,
		read       BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS audit_logs (
		id         UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		type       TEXT NOT NULL,
		message    TEXT NOT NULL,
		actor_id   UUID,
		actor_name TEXT NOT NULL DEFAULT 'system',
		target     TEXT,
		meta       JSONB NOT NULL DEFAULT '{}'::jsonb,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS tickets_opener_idx ON tickets (opener_id, created_at DESC)`,
	`CREATE INDEX IF NOT EXISTS ticket_messages_ticket_idx ON ticket_messages (ticket_id, seq)`,
	`CREATE INDEX IF NOT EXISTS notifications_user_idx ON notifications (user_id, created_at DESC)`,
	`CREATE INDEX IF NOT EXISTS audit_logs_created_idx ON audit_logs (created_at DESC)`,
	`CREATE INDEX IF NOT EXISTS staff_messages_created_idx ON staff_messages (created_at DESC)`,
}

// RunMigrations applies the embedded schema statements.
func RunMigrations(ctx context.Context, pool *pgxpool.Pool, logger *zap.Logger) error {
	if pool == nil {
		logger.Warn("no postgres pool available; skipping migrations")
		return nil
	}

	for i, stmt := range schema {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema statement %d: %w", i, err)
		}
	}

	logger.Info("migrations applied", zap.Int("count", len(schema)))
	return nil
}
