package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/abduss/objectd/internal/config"
	"github.com/jackc/pgx/v5/pgxpool"
)

const defaultDBTimeout = 5 * time.Second

// NewPostgresPool connects to PostgreSQL using pgx.
func NewPostgresPool(ctx context.Context, cfg config.PostgresConfig) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("parse postgres config: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create postgres pool: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, defaultDBTimeout)
	defer cancel()

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	return pool, nil
}

const schema = `
CREATE TABLE IF NOT EXISTS buckets (
    name       TEXT PRIMARY KEY,
    owner      TEXT,
    public     BOOLEAN NOT NULL DEFAULT FALSE,
    adapter    TEXT NOT NULL,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS file_objects (
    id          TEXT PRIMARY KEY,
    bucket_name TEXT NOT NULL REFERENCES buckets(name) ON DELETE CASCADE,
    key         TEXT NOT NULL,
    size        BIGINT NOT NULL DEFAULT 0,
    mime_type   TEXT NOT NULL,
    public      BOOLEAN NOT NULL DEFAULT FALSE,
    parent_id   TEXT REFERENCES file_objects(id) ON DELETE SET NULL,
    status      TEXT NOT NULL DEFAULT 'pending',
    created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    CONSTRAINT file_objects_bucket_key UNIQUE (bucket_name, key)
);

CREATE INDEX IF NOT EXISTS file_objects_parent_idx ON file_objects (parent_id);
CREATE INDEX IF NOT EXISTS file_objects_pending_idx ON file_objects (status, created_at) WHERE status = 'pending';
`

// EnsureSchema creates the metadata tables when they are missing.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	ctx, cancel := context.WithTimeout(ctx, defaultDBTimeout)
	defer cancel()

	if _, err := pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}
