package store

import (
	"database/sql"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

const sqliteSchema = `
	PRAGMA busy_timeout = 5000;
	CREATE TABLE IF NOT EXISTS journeys (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		id TEXT NOT NULL UNIQUE,
		session_id TEXT NOT NULL,
		selected_path TEXT,
		current_screen TEXT NOT NULL DEFAULT 'landing',
		completed_at INTEGER,
		constellation_json TEXT,
		last_seq INTEGER NOT NULL DEFAULT 0,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_journeys_session ON journeys(session_id);
	CREATE INDEX IF NOT EXISTS idx_journeys_created ON journeys(created_at);

	CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		username TEXT NOT NULL UNIQUE,
		password_hash TEXT NOT NULL,
		created_at INTEGER NOT NULL
	);
`

// NewSQLite creates a SQLite-backed repository. The path ":memory:" opens a
// private in-memory database on a single connection.
func NewSQLite(dbPath string, opts ...Option) (*SQLStore, error) {
	inMemory := dbPath == ":memory:"

	dsn := dbPath
	if !inMemory {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
		var err error
		if dsn, err = sqliteDSN(dbPath); err != nil {
			return nil, err
		}
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if inMemory {
		// Every connection to :memory: is a separate database.
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(25)
		db.SetMaxIdleConns(5)
		db.SetConnMaxLifetime(5 * time.Minute)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	s, err := newSQLStore(db, dialect{
		name:            "sqlite",
		schema:          sqliteSchema,
		serializeWrites: true,
	}, opts)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// sqliteDSN builds a file: URI for dbPath with the path escaped, so names
// containing '?' or '#' are not read as query or fragment.
func sqliteDSN(dbPath string) (string, error) {
	abs, err := filepath.Abs(dbPath)
	if err != nil {
		return "", fmt.Errorf("resolve database path: %w", err)
	}
	u := url.URL{
		Scheme: "file",
		Path:   filepath.ToSlash(abs),
		// WAL mode for better read concurrency.
		RawQuery: "_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=busy_timeout(5000)",
	}
	return u.String(), nil
}
