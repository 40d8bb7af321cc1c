// Package storage implements the cross-process shared key-value store
// described in spec.md §6 ("Shared storage layout"): the keyboard host
// process and the keyboard extension both read and write the same
// namespaced keys, so the backing store has to survive process restarts
// and be safe for two processes to open concurrently. A SQLite file (via
// github.com/mattn/go-sqlite3) fits that exactly — it is the same role
// this module's teacher gives SQLite for its own durable memory service
// (memory/sqlite).
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

const defaultInitTimeout = 5 * time.Second

// ErrUnavailable is returned when the store cannot be opened or reached,
// mapping to the StorageUnavailable error kind of §7.
var ErrUnavailable = errors.New("storage: shared store unavailable")

const sqlCreateKV = `
CREATE TABLE IF NOT EXISTS kv_store (
  namespace TEXT NOT NULL,
  key TEXT NOT NULL,
  value BLOB NOT NULL,
  updated_at INTEGER NOT NULL,
  PRIMARY KEY (namespace, key)
);`

// KV is the read/write surface every C1/C2/C3/C10 component depends on.
// It intentionally has no transactional, multi-key operations: §5 states
// "no transactional guarantees across keys; each key is atomic
// individually."
type KV interface {
	// Get reads raw bytes for (namespace, key). ok is false if absent.
	Get(ctx context.Context, namespace, key string) (value []byte, ok bool, err error)
	// Put writes raw bytes for (namespace, key), overwriting any prior value.
	Put(ctx context.Context, namespace, key string, value []byte) error
	// Delete removes (namespace, key), if present.
	Delete(ctx context.Context, namespace, key string) error
}

// SQLiteStore is the default KV implementation, a single SQLite file shared
// by the host process and the extension.
type SQLiteStore struct {
	db *sql.DB
}

// Open opens (and, if needed, creates) the shared SQLite store at dsn.
// A dsn of "" opens an in-memory database in shared-cache mode — useful for
// tests and for a process that has no shared-storage path configured. It
// stores and reads values normally, but nothing in it outlives the process
// and no other process can see it.
func Open(dsn string) (*SQLiteStore, error) {
	if dsn == "" {
		dsn = "file::memory:?cache=shared"
	}
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("storage: open: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	s := &SQLiteStore{db: db}
	ctx, cancel := context.WithTimeout(context.Background(), defaultInitTimeout)
	defer cancel()
	if err := s.initSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) initSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, sqlCreateKV); err != nil {
		return fmt.Errorf("storage: init schema: %w", err)
	}
	return nil
}

// Close releases the underlying database handle.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Get implements KV.
func (s *SQLiteStore) Get(ctx context.Context, namespace, key string) ([]byte, bool, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT value FROM kv_store WHERE namespace = ? AND key = ?`, namespace, key)
	var value []byte
	if err := row.Scan(&value); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return value, true, nil
}

// Put implements KV.
func (s *SQLiteStore) Put(ctx context.Context, namespace, key string, value []byte) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO kv_store (namespace, key, value, updated_at)
		 VALUES (?, ?, ?, strftime('%s','now'))
		 ON CONFLICT(namespace, key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		namespace, key, value)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// Delete implements KV.
func (s *SQLiteStore) Delete(ctx context.Context, namespace, key string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM kv_store WHERE namespace = ? AND key = ?`, namespace, key)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}
