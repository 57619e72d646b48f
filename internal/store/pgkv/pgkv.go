// Package pgkv provides a PostgreSQL-backed cold tier, for runs whose
// transaction history should land in a shared database.
package pgkv

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/iho/payengine/internal/store/coldstore"
)

// PostgreSQL error codes worth retrying.
const (
	pgErrDeadlock             = "40P01"
	pgErrSerializationFailure = "40001"
)

const schema = `
CREATE TABLE IF NOT EXISTS tx_records (
	id   BIGINT PRIMARY KEY,
	data BYTEA NOT NULL
);`

// Store implements coldstore.Backend on a pgx connection pool.
type Store struct {
	pool *pgxpool.Pool
}

// Open connects to PostgreSQL, verifies the connection and ensures the
// record table exists.
func Open(ctx context.Context, databaseURL string, maxConns int) (*Store, error) {
	config, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %w", err)
	}
	config.MaxConns = int32(maxConns)

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("create record table: %w", err)
	}

	return &Store{pool: pool}, nil
}

func (s *Store) Put(ctx context.Context, id uint32, value []byte) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO tx_records (id, data) VALUES ($1, $2)
		 ON CONFLICT (id) DO UPDATE SET data = EXCLUDED.data`,
		int64(id), value)
	if err != nil {
		return fmt.Errorf("put record %d: %w", id, err)
	}
	return nil
}

func (s *Store) Get(ctx context.Context, id uint32) ([]byte, error) {
	var data []byte
	err := s.pool.QueryRow(ctx,
		`SELECT data FROM tx_records WHERE id = $1`, int64(id)).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, coldstore.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get record %d: %w", id, err)
	}
	return data, nil
}

func (s *Store) Delete(ctx context.Context, id uint32) error {
	_, err := s.pool.Exec(ctx,
		`DELETE FROM tx_records WHERE id = $1`, int64(id))
	if err != nil {
		return fmt.Errorf("delete record %d: %w", id, err)
	}
	return nil
}

func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

// IsTransient reports whether a PostgreSQL error should trigger a retry.
func IsTransient(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgErrDeadlock, pgErrSerializationFailure:
			return true
		}
	}
	return pgconn.SafeToRetry(err)
}
