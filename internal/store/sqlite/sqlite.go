// Package sqlite provides the default cold-tier backend: an embedded
// SQLite database holding one key-value table of serialized
// transaction records.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	sqlite3 "github.com/mattn/go-sqlite3"

	"github.com/iho/payengine/internal/store/coldstore"
)

const schema = `
CREATE TABLE IF NOT EXISTS tx_records (
	id   INTEGER PRIMARY KEY,
	data BLOB NOT NULL
);`

// Store implements coldstore.Backend on an SQLite file.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the database at path and ensures the record
// table exists. WAL mode keeps concurrent readers off the writers'
// backs; the busy timeout covers the rest.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path+"?_journal=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create record table: %w", err)
	}

	return &Store{db: db}, nil
}

func (s *Store) Put(ctx context.Context, id uint32, value []byte) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO tx_records (id, data) VALUES (?, ?)
		 ON CONFLICT(id) DO UPDATE SET data = excluded.data`,
		int64(id), value)
	if err != nil {
		return fmt.Errorf("put record %d: %w", id, err)
	}
	return nil
}

func (s *Store) Get(ctx context.Context, id uint32) ([]byte, error) {
	var data []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT data FROM tx_records WHERE id = ?`, int64(id)).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, coldstore.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get record %d: %w", id, err)
	}
	return data, nil
}

func (s *Store) Delete(ctx context.Context, id uint32) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM tx_records WHERE id = ?`, int64(id))
	if err != nil {
		return fmt.Errorf("delete record %d: %w", id, err)
	}
	return nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// IsTransient reports whether err is a lock contention error worth
// retrying rather than a permanent failure.
func IsTransient(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.Code == sqlite3.ErrBusy || sqliteErr.Code == sqlite3.ErrLocked
	}
	return false
}
