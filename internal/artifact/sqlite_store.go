package artifact

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/wonny/frontier/internal/contracts"

	_ "modernc.org/sqlite"
)

// SQLiteFile is the database file created inside each period directory
const SQLiteFile = "artifacts.db"

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS artifacts (
	stage      TEXT NOT NULL,
	method     TEXT NOT NULL,
	payload    BLOB NOT NULL,
	updated_at TEXT NOT NULL,
	PRIMARY KEY (stage, method)
)`

// SQLiteStore keeps one SQLite database per period directory
type SQLiteStore struct {
	root string

	mu  sync.Mutex
	dbs map[string]*sql.DB
}

// NewSQLiteStore creates a store rooted at root. Databases open lazily.
func NewSQLiteStore(root string) *SQLiteStore {
	return &SQLiteStore{root: root, dbs: make(map[string]*sql.DB)}
}

// db returns the period database. With create=false a missing file yields nil.
func (s *SQLiteStore) db(ctx context.Context, period string, create bool) (*sql.DB, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if db, ok := s.dbs[period]; ok {
		return db, nil
	}

	dir := filepath.Join(s.root, period)
	path := filepath.Join(dir, SQLiteFile)
	if !create {
		if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create period dir: %w", err)
	}

	// cache profile: WAL, relaxed fsync, waits on a busy writer
	connStr := path + "?_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=busy_timeout(5000)"
	db, err := sql.Open("sqlite", connStr)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate %s: %w", path, err)
	}

	s.dbs[period] = db
	return db, nil
}

// Get reads a payload
func (s *SQLiteStore) Get(ctx context.Context, key Key) ([]byte, bool, error) {
	if err := key.Validate(); err != nil {
		return nil, false, err
	}
	db, err := s.db(ctx, key.Period, false)
	if err != nil || db == nil {
		return nil, false, err
	}

	var payload []byte
	err = db.QueryRowContext(ctx,
		`SELECT payload FROM artifacts WHERE stage = ? AND method = ?`,
		string(key.Stage), key.Method,
	).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("read artifact %s: %w", key, err)
	}
	if payload == nil {
		payload = []byte{}
	}
	return payload, true, nil
}

// Put upserts a payload
func (s *SQLiteStore) Put(ctx context.Context, key Key, payload []byte) error {
	if err := key.Validate(); err != nil {
		return err
	}
	db, err := s.db(ctx, key.Period, true)
	if err != nil {
		return err
	}
	if payload == nil {
		payload = []byte{}
	}

	_, err = db.ExecContext(ctx, `
		INSERT INTO artifacts (stage, method, payload, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (stage, method) DO UPDATE SET
			payload = excluded.payload,
			updated_at = excluded.updated_at`,
		string(key.Stage), key.Method, payload, time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("write artifact %s: %w", key, err)
	}
	return nil
}

// Delete removes a payload
func (s *SQLiteStore) Delete(ctx context.Context, key Key) error {
	if err := key.Validate(); err != nil {
		return err
	}
	db, err := s.db(ctx, key.Period, false)
	if err != nil || db == nil {
		return err
	}
	if _, err := db.ExecContext(ctx,
		`DELETE FROM artifacts WHERE stage = ? AND method = ?`,
		string(key.Stage), key.Method,
	); err != nil {
		return fmt.Errorf("delete artifact %s: %w", key, err)
	}
	return nil
}

// List returns the keys stored for a period
func (s *SQLiteStore) List(ctx context.Context, period string) ([]Key, error) {
	db, err := s.db(ctx, period, false)
	if err != nil || db == nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx, `SELECT stage, method FROM artifacts ORDER BY stage, method`)
	if err != nil {
		return nil, fmt.Errorf("list period %s: %w", period, err)
	}
	defer rows.Close()

	var keys []Key
	for rows.Next() {
		var stage, method string
		if err := rows.Scan(&stage, &method); err != nil {
			return nil, fmt.Errorf("scan artifact key: %w", err)
		}
		keys = append(keys, Key{Period: period, Stage: contracts.Stage(stage), Method: method})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate artifact keys: %w", err)
	}
	return keys, nil
}

// Close closes every opened period database
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var errs []error
	for period, db := range s.dbs {
		if err := db.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", period, err))
		}
		delete(s.dbs, period)
	}
	return errors.Join(errs...)
}
