package osdr

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/nishad/runsheet/internal/errors"
)

// Store persists file listings in SQLite so repeated runs skip the API.
type Store struct {
	db   *sql.DB
	path string
	now  func() time.Time
}

// OpenStore opens or creates the listing database at path.
func OpenStore(path string) (*Store, error) {
	const op errors.Op = "osdr.OpenStore"

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, errors.E(op, errors.KindIO, err)
	}
	db, err := sql.Open("sqlite3", path+"?_journal=WAL&_timeout=5000&_sync=NORMAL")
	if err != nil {
		return nil, errors.E(op, errors.KindIO, err, "failed to open cache database")
	}

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 10000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, errors.E(op, errors.KindIO, err, fmt.Sprintf("failed to set %s", pragma))
		}
	}
	if err := createTables(db); err != nil {
		db.Close()
		return nil, errors.E(op, errors.KindIO, err, "failed to create tables")
	}
	db.SetMaxOpenConns(4)
	db.SetConnMaxLifetime(5 * time.Minute)

	return &Store{db: db, path: path, now: time.Now}, nil
}

func createTables(db *sql.DB) error {
	_, err := db.Exec(`
	CREATE TABLE IF NOT EXISTS file_listings (
		accession TEXT PRIMARY KEY,
		files JSON NOT NULL,
		fetched_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_listing_fetched ON file_listings(fetched_at);
	`)
	return err
}

// Path returns the database file.
func (s *Store) Path() string { return s.path }

// Close closes the database.
func (s *Store) Close() error { return s.db.Close() }

// Get returns the listing of accession when it was stored less than ttl ago.
func (s *Store) Get(ctx context.Context, accession string, ttl time.Duration) ([]File, bool, error) {
	const op errors.Op = "osdr.Store.Get"

	var raw string
	var fetched int64
	err := s.db.QueryRowContext(ctx,
		`SELECT files, fetched_at FROM file_listings WHERE accession = ?`, accession).Scan(&raw, &fetched)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, errors.E(op, errors.KindIO, err)
	}
	if ttl > 0 && s.now().Sub(time.Unix(fetched, 0)) > ttl {
		return nil, false, nil
	}
	var files []File
	if err := json.Unmarshal([]byte(raw), &files); err != nil {
		return nil, false, errors.E(op, errors.KindParse, err)
	}
	return files, true, nil
}

// Put stores or replaces the listing of accession.
func (s *Store) Put(ctx context.Context, accession string, files []File) error {
	const op errors.Op = "osdr.Store.Put"

	raw, err := json.Marshal(files)
	if err != nil {
		return errors.E(op, errors.KindParse, err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO file_listings (accession, files, fetched_at) VALUES (?, ?, ?)
		ON CONFLICT(accession) DO UPDATE SET files = excluded.files, fetched_at = excluded.fetched_at`,
		accession, string(raw), s.now().Unix())
	if err != nil {
		return errors.E(op, errors.KindIO, err)
	}
	return nil
}

// Purge deletes listings older than ttl and returns how many were removed.
func (s *Store) Purge(ctx context.Context, ttl time.Duration) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM file_listings WHERE fetched_at < ?`, s.now().Add(-ttl).Unix())
	if err != nil {
		return 0, errors.E(errors.Op("osdr.Store.Purge"), errors.KindIO, err)
	}
	return res.RowsAffected()
}

// Count returns the number of stored listings.
func (s *Store) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM file_listings`).Scan(&n); err != nil {
		return 0, errors.E(errors.Op("osdr.Store.Count"), errors.KindIO, err)
	}
	return n, nil
}
