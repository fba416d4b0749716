package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Connect establishes a connection pool to the database and returns the pool
func Connect(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	// Parse config from DSN
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, err
	}
	// Set max connections and create pool
	cfg.MaxConns = 10
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	// Ping the database to verify connection
	ctxPing, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(ctxPing); err != nil {
		pool.Close()
		return nil, err
	}
	return pool, nil
}

// schemaStatements are executed in order by EnsureSchema. Each statement is
// idempotent so repeated startups against the same database are safe.
var schemaStatements = []string{
	`CREATE SCHEMA IF NOT EXISTS webhooks`,

	`CREATE TABLE IF NOT EXISTS webhooks.endpoints (
		id             UUID PRIMARY KEY,
		tenant_id      TEXT NOT NULL,
		url            TEXT NOT NULL,
		secret         TEXT NOT NULL,
		description    TEXT NOT NULL DEFAULT '',
		status         TEXT NOT NULL DEFAULT 'active',
		total_failed   BIGINT NOT NULL DEFAULT 0,
		last_failed_at TIMESTAMPTZ,
		created_at     TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at     TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,

	`CREATE INDEX IF NOT EXISTS endpoints_tenant_idx
		ON webhooks.endpoints (tenant_id)`,

	`CREATE TABLE IF NOT EXISTS webhooks.subscriptions (
		tenant_id   TEXT NOT NULL,
		event_type  TEXT NOT NULL,
		endpoint_id UUID NOT NULL REFERENCES webhooks.endpoints(id) ON DELETE CASCADE,
		created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
		PRIMARY KEY (tenant_id, event_type, endpoint_id)
	)`,

	`CREATE TABLE IF NOT EXISTS webhooks.dead_letters (
		delivery_id   UUID PRIMARY KEY,
		tenant_id     TEXT NOT NULL,
		endpoint_id   UUID NOT NULL,
		event         JSONB NOT NULL,
		final_attempt INT NOT NULL,
		last_error    TEXT NOT NULL DEFAULT '',
		reason        TEXT NOT NULL DEFAULT '',
		failed_at     TIMESTAMPTZ NOT NULL,
		replayed_at   TIMESTAMPTZ,
		created_at    TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,

	`CREATE INDEX IF NOT EXISTS dead_letters_tenant_created_idx
		ON webhooks.dead_letters (tenant_id, created_at DESC)`,
}

// EnsureSchema creates the webhooks schema, tables and indexes if they do
// not already exist. Intended for development and test environments where
// migrations are applied at startup.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	for _, stmt := range schemaStatements {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}
