// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package cache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// SQLiteStore persists entries in a single table. Header columns sit next
// to the payload BLOB so freshness checks select only integers.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens or creates the cache database at path.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating cache directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("opening cache database: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) createSchema() error {
	_, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS cache_entries (
		term TEXT NOT NULL,
		provider TEXT NOT NULL,
		inserted_at INTEGER NOT NULL,
		ttl_ms INTEGER NOT NULL,
		grace_ms INTEGER NOT NULL,
		payload BLOB NOT NULL,
		PRIMARY KEY (term, provider)
	)`)
	return err
}

func (s *SQLiteStore) Header(ctx context.Context, key Key) (Header, bool, error) {
	var insertedAt, ttlMS, graceMS int64
	err := s.db.QueryRowContext(ctx,
		`SELECT inserted_at, ttl_ms, grace_ms FROM cache_entries WHERE term = ? AND provider = ?`,
		key.Term, key.Provider,
	).Scan(&insertedAt, &ttlMS, &graceMS)
	if errors.Is(err, sql.ErrNoRows) {
		return Header{}, false, nil
	}
	if err != nil {
		return Header{}, false, fmt.Errorf("querying cache header: %w", err)
	}
	return toHeader(insertedAt, ttlMS, graceMS), true, nil
}

func (s *SQLiteStore) Get(ctx context.Context, key Key) (Entry, bool, error) {
	var insertedAt, ttlMS, graceMS int64
	var payload []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT inserted_at, ttl_ms, grace_ms, payload FROM cache_entries WHERE term = ? AND provider = ?`,
		key.Term, key.Provider,
	).Scan(&insertedAt, &ttlMS, &graceMS, &payload)
	if errors.Is(err, sql.ErrNoRows) {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, fmt.Errorf("querying cache entry: %w", err)
	}
	return Entry{Key: key, Header: toHeader(insertedAt, ttlMS, graceMS), Payload: payload}, true, nil
}

func (s *SQLiteStore) Put(ctx context.Context, e Entry) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO cache_entries (term, provider, inserted_at, ttl_ms, grace_ms, payload)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(term, provider) DO UPDATE SET
			inserted_at = excluded.inserted_at,
			ttl_ms = excluded.ttl_ms,
			grace_ms = excluded.grace_ms,
			payload = excluded.payload`,
		e.Term, e.Provider, e.InsertedAt.UnixNano(), e.TTL.Milliseconds(), e.Grace.Milliseconds(), e.Payload,
	)
	if err != nil {
		return fmt.Errorf("writing cache entry: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Delete(ctx context.Context, key Key) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM cache_entries WHERE term = ? AND provider = ?`, key.Term, key.Provider)
	if err != nil {
		return fmt.Errorf("deleting cache entry: %w", err)
	}
	return nil
}

func (s *SQLiteStore) DeleteIfUnchanged(ctx context.Context, key Key, insertedAt time.Time) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM cache_entries WHERE term = ? AND provider = ? AND inserted_at = ?`,
		key.Term, key.Provider, insertedAt.UnixNano())
	if err != nil {
		return false, fmt.Errorf("deleting cache entry: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *SQLiteStore) DeleteTerm(ctx context.Context, term string) (int, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM cache_entries WHERE term = ?`, term)
	if err != nil {
		return 0, fmt.Errorf("deleting cache entries for %q: %w", term, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

func (s *SQLiteStore) DeleteAll(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM cache_entries`); err != nil {
		return fmt.Errorf("purging cache: %w", err)
	}
	return nil
}

// Close releases the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func toHeader(insertedAt, ttlMS, graceMS int64) Header {
	return Header{
		InsertedAt: time.Unix(0, insertedAt).UTC(),
		TTL:        time.Duration(ttlMS) * time.Millisecond,
		Grace:      time.Duration(graceMS) * time.Millisecond,
	}
}
