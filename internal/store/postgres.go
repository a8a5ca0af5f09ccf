package store

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"
)

const postgresSchema = `
	CREATE TABLE IF NOT EXISTS journeys (
		seq BIGSERIAL PRIMARY KEY,
		id TEXT NOT NULL UNIQUE,
		session_id TEXT NOT NULL,
		selected_path TEXT CHECK (selected_path IN ('wonder', 'reflection')),
		current_screen TEXT NOT NULL DEFAULT 'landing'
			CHECK (current_screen IN ('landing', 'journey', 'branch', 'climactic')),
		completed_at BIGINT,
		constellation_json JSONB,
		last_seq BIGINT NOT NULL DEFAULT 0,
		created_at BIGINT NOT NULL,
		updated_at BIGINT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_journeys_session ON journeys(session_id);
	CREATE INDEX IF NOT EXISTS idx_journeys_created ON journeys(created_at);

	CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		username TEXT NOT NULL UNIQUE,
		password_hash TEXT NOT NULL,
		created_at BIGINT NOT NULL
	);
`

// NewPostgres creates a PostgreSQL-backed repository.
func NewPostgres(databaseURL string, opts ...Option) (*SQLStore, error) {
	if databaseURL == "" {
		return nil, fmt.Errorf("postgres store requires a database URL")
	}

	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	s, err := newSQLStore(db, dialect{
		name:       "postgres",
		schema:     postgresSchema,
		numbered:   true,
		lockClause: " FOR UPDATE",
	}, opts)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}
