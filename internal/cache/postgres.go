package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS %s (
	id          UUID PRIMARY KEY,
	cache_key   TEXT NOT NULL UNIQUE,
	fetched_at  TIMESTAMPTZ NOT NULL,
	data        JSON NOT NULL
)`

// Documents are kept as JSON text: jsonb reorders object keys, and a
// Series encodes its column order as key order.
const migrateSQL = `ALTER TABLE %s ALTER COLUMN data TYPE JSON USING data::text::json`

// Postgres is a Store backed by a single table, one JSON document per key.
type Postgres[T any] struct {
	pool  *pgxpool.Pool
	table string
}

// Connect opens a pgx pool for the given connection URL.
func Connect(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	if databaseURL == "" {
		return nil, errors.New("database url is empty")
	}
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database config: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return pool, nil
}

// NewPostgres creates a store over table. The table name is used verbatim in
// SQL and must be a trusted identifier.
func NewPostgres[T any](pool *pgxpool.Pool, table string) *Postgres[T] {
	return &Postgres[T]{pool: pool, table: table}
}

// EnsureSchema creates the cache table if it does not exist and converts a
// data column left over as jsonb to json.
func (p *Postgres[T]) EnsureSchema(ctx context.Context) error {
	if _, err := p.pool.Exec(ctx, fmt.Sprintf(schemaSQL, p.table)); err != nil {
		return fmt.Errorf("create %s: %w", p.table, err)
	}
	var dataType string
	err := p.pool.QueryRow(ctx, `
		SELECT data_type FROM information_schema.columns
		WHERE table_schema = current_schema() AND table_name = lower($1) AND column_name = 'data'`,
		p.table).Scan(&dataType)
	if err != nil {
		return fmt.Errorf("inspect %s: %w", p.table, err)
	}
	if dataType != "jsonb" {
		return nil
	}
	if _, err := p.pool.Exec(ctx, fmt.Sprintf(migrateSQL, p.table)); err != nil {
		return fmt.Errorf("migrate %s: %w", p.table, err)
	}
	return nil
}

// Get loads the entry for key.
func (p *Postgres[T]) Get(ctx context.Context, key string) (Entry[T], bool, error) {
	var (
		e    Entry[T]
		data []byte
	)
	q := fmt.Sprintf(`SELECT data, fetched_at FROM %s WHERE cache_key = $1`, p.table)
	err := p.pool.QueryRow(ctx, q, key).Scan(&data, &e.FetchedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return e, false, nil
	}
	if err != nil {
		return e, false, fmt.Errorf("query %s: %w", key, err)
	}
	if err := json.Unmarshal(data, &e.Value); err != nil {
		return e, false, fmt.Errorf("decode %s: %w", key, err)
	}
	return e, true, nil
}

// Set upserts the entry for key.
func (p *Postgres[T]) Set(ctx context.Context, key string, e Entry[T]) error {
	data, err := json.Marshal(e.Value)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	q := fmt.Sprintf(`
		INSERT INTO %s (id, cache_key, fetched_at, data)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (cache_key) DO UPDATE
		SET fetched_at = EXCLUDED.fetched_at, data = EXCLUDED.data`, p.table)
	if _, err := p.pool.Exec(ctx, q, uuid.NewString(), key, e.FetchedAt.UTC(), data); err != nil {
		return fmt.Errorf("upsert %s: %w", key, err)
	}
	return nil
}

// Invalidate deletes the entry for key.
func (p *Postgres[T]) Invalidate(ctx context.Context, key string) error {
	q := fmt.Sprintf(`DELETE FROM %s WHERE cache_key = $1`, p.table)
	if _, err := p.pool.Exec(ctx, q, key); err != nil {
		return fmt.Errorf("delete %s: %w", key, err)
	}
	return nil
}

// Purge deletes entries fetched before cutoff.
func (p *Postgres[T]) Purge(ctx context.Context, cutoff time.Time) (int64, error) {
	q := fmt.Sprintf(`DELETE FROM %s WHERE fetched_at < $1`, p.table)
	tag, err := p.pool.Exec(ctx, q, cutoff.UTC())
	if err != nil {
		return 0, fmt.Errorf("purge %s: %w", p.table, err)
	}
	return tag.RowsAffected(), nil
}
