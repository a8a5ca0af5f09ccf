package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/ashureev/cosmic-journey/internal/domain"
	"github.com/ashureev/cosmic-journey/internal/shared"
)

// dialect captures what differs between the SQL backends.
type dialect struct {
	name            string
	schema          string
	numbered        bool   // $1, $2 placeholders instead of ?
	lockClause      string // appended to the SELECT of a read-modify-write
	serializeWrites bool
}

// SQLStore implements Repository on database/sql.
type SQLStore struct {
	db      *sql.DB
	dialect dialect
	opts    options
	writeMu sync.Mutex // held around writes when dialect.serializeWrites is set
}

const journeyColumns = `id, session_id, selected_path, current_screen, completed_at,
	constellation_json, last_seq, created_at, updated_at`

func newSQLStore(db *sql.DB, d dialect, opts []Option) (*SQLStore, error) {
	s := &SQLStore{db: db, dialect: d, opts: buildOptions(opts)}
	if err := s.initSchema(); err != nil {
		return nil, fmt.Errorf("initialize schema: %w", err)
	}
	return s, nil
}

func (s *SQLStore) initSchema() error {
	if _, err := s.db.Exec(s.dialect.schema); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// rebind rewrites ? placeholders for dialects that number them.
func (s *SQLStore) rebind(query string) string {
	if !s.dialect.numbered {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (s *SQLStore) lockWrites() func() {
	if !s.dialect.serializeWrites {
		return func() {}
	}
	s.writeMu.Lock()
	return s.writeMu.Unlock
}

// Ping verifies database connectivity.
func (s *SQLStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection.
func (s *SQLStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close database: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJourney(row rowScanner) (*domain.Journey, error) {
	var (
		j                    domain.Journey
		path, constellation  sql.NullString
		completedAt          sql.NullInt64
		screen               string
		createdAt, updatedAt int64
	)
	if err := row.Scan(
		&j.ID, &j.SessionID, &path, &screen, &completedAt,
		&constellation, &j.LastSeq, &createdAt, &updatedAt,
	); err != nil {
		return nil, err
	}

	j.CurrentScreen = domain.Screen(screen)
	j.CreatedAt = time.Unix(0, createdAt).UTC()
	j.UpdatedAt = time.Unix(0, updatedAt).UTC()
	if path.Valid {
		j.SelectedPath = domain.PathPtr(domain.Path(path.String))
	}
	if completedAt.Valid {
		ts := time.Unix(0, completedAt.Int64).UTC()
		j.CompletedAt = &ts
	}
	if constellation.Valid {
		var c domain.Constellation
		if err := json.Unmarshal([]byte(constellation.String), &c); err != nil {
			return nil, fmt.Errorf("decode constellation for journey %s: %w", j.ID, err)
		}
		j.ConstellationData = &c
	}
	return &j, nil
}

// journeyArgs returns the nullable column values of j in journeyColumns order,
// skipping id.
func journeyArgs(j *domain.Journey) ([]any, error) {
	var path, completedAt, constellation any
	if j.SelectedPath != nil {
		path = string(*j.SelectedPath)
	}
	if j.CompletedAt != nil {
		completedAt = j.CompletedAt.UnixNano()
	}
	if j.ConstellationData != nil {
		raw, err := json.Marshal(j.ConstellationData)
		if err != nil {
			return nil, fmt.Errorf("encode constellation: %w", err)
		}
		constellation = string(raw)
	}
	return []any{
		j.SessionID, path, string(j.CurrentScreen), completedAt,
		constellation, j.LastSeq, j.CreatedAt.UnixNano(), j.UpdatedAt.UnixNano(),
	}, nil
}

// CreateJourney stores a new journey.
func (s *SQLStore) CreateJourney(ctx context.Context, in domain.NewJourney) (j *domain.Journey, err error) {
	start := time.Now()
	defer func() { s.opts.metrics.ObserveStore("create_journey", start, err) }()

	j = in.Build(s.opts.newID(), s.opts.stamp())
	args, err := journeyArgs(j)
	if err != nil {
		return nil, err
	}

	unlock := s.lockWrites()
	defer unlock()

	query := s.rebind(`INSERT INTO journeys (` + journeyColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if _, err := s.db.ExecContext(ctx, query, append([]any{j.ID}, args...)...); err != nil {
		return nil, fmt.Errorf("insert journey: %w", err)
	}

	s.opts.metrics.Transition(j.CurrentScreen)
	return j, nil
}

// GetJourney retrieves a journey by id.
func (s *SQLStore) GetJourney(ctx context.Context, id string) (j *domain.Journey, err error) {
	start := time.Now()
	defer func() { s.opts.metrics.ObserveStore("get_journey", start, err) }()

	query := s.rebind(`SELECT ` + journeyColumns + ` FROM journeys WHERE id = ?`)
	j, err = scanJourney(s.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("journey %s: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("scan journey row: %w", err)
	}
	return j, nil
}

// GetJourneyBySessionID returns the earliest inserted journey for sessionID.
func (s *SQLStore) GetJourneyBySessionID(ctx context.Context, sessionID string) (j *domain.Journey, err error) {
	start := time.Now()
	defer func() { s.opts.metrics.ObserveStore("get_journey_by_session", start, err) }()

	query := s.rebind(`SELECT ` + journeyColumns + ` FROM journeys WHERE session_id = ? ORDER BY seq ASC LIMIT 1`)
	j, err = scanJourney(s.db.QueryRowContext(ctx, query, sessionID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("journey for session %s: %w", sessionID, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("scan journey row: %w", err)
	}
	return j, nil
}

// UpdateJourney merges upd into the stored journey inside one transaction.
// SQLITE_BUSY failures are retried with exponential backoff.
func (s *SQLStore) UpdateJourney(ctx context.Context, id string, upd domain.JourneyUpdate) (j *domain.Journey, err error) {
	start := time.Now()
	defer func() { s.opts.metrics.ObserveStore("update_journey", start, err) }()

	unlock := s.lockWrites()
	defer unlock()

	err = retryOnConflict(ctx, func() error {
		var opErr error
		j, opErr = s.updateJourneyOnce(ctx, id, upd)
		return opErr
	}, func(attempt int, delay time.Duration) {
		slog.Debug("UpdateJourney hit a locked database, retrying",
			"journey_id", id,
			"attempt", attempt,
			"delay", delay)
	})
	if err != nil {
		return nil, err
	}
	s.opts.metrics.Transition(j.CurrentScreen)
	return j, nil
}

// retryOnConflict runs fn up to three times while it fails with a SQLite
// BUSY/LOCKED error, backing off 50ms then 100ms. The wait ends early when
// ctx is done.
func retryOnConflict(ctx context.Context, fn func() error, onRetry func(attempt int, delay time.Duration)) error {
	maxRetries := 3
	baseDelay := 50 * time.Millisecond
	var err error
	for i := 0; i < maxRetries; i++ {
		err = fn()
		if err == nil || !shared.IsSQLiteConflictError(err) || i == maxRetries-1 {
			return err
		}
		delay := baseDelay * time.Duration(1<<i)
		onRetry(i+1, delay)
		select {
		case <-ctx.Done():
			return fmt.Errorf("retry after %v: %w", err, ctx.Err())
		case <-time.After(delay):
		}
	}
	return err
}

func (s *SQLStore) updateJourneyOnce(ctx context.Context, id string, upd domain.JourneyUpdate) (*domain.Journey, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin update: %w", err)
	}
	defer func() {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			slog.Warn("failed to roll back journey update", "journey_id", id, "error", rbErr)
		}
	}()

	query := s.rebind(`SELECT ` + journeyColumns + ` FROM journeys WHERE id = ?` + s.dialect.lockClause)
	j, err := scanJourney(tx.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("journey %s: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("scan journey row: %w", err)
	}

	if err := j.Apply(upd, s.opts.stamp()); err != nil {
		return nil, fmt.Errorf("journey %s: %w", id, err)
	}

	args, err := journeyArgs(j)
	if err != nil {
		return nil, err
	}
	// Columns are rewritten in full; created_at never changes.
	update := s.rebind(`
		UPDATE journeys SET
			session_id = ?, selected_path = ?, current_screen = ?, completed_at = ?,
			constellation_json = ?, last_seq = ?, created_at = ?, updated_at = ?
		WHERE id = ?`)
	if _, err := tx.ExecContext(ctx, update, append(args, j.ID)...); err != nil {
		return nil, fmt.Errorf("update journey: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit journey update: %w", err)
	}
	return j, nil
}

// RecentJourneys returns up to limit journeys, newest first.
func (s *SQLStore) RecentJourneys(ctx context.Context, limit int) (out []*domain.Journey, err error) {
	start := time.Now()
	defer func() { s.opts.metrics.ObserveStore("recent_journeys", start, err) }()

	query := s.rebind(`SELECT ` + journeyColumns + ` FROM journeys ORDER BY created_at DESC, seq DESC LIMIT ?`)
	rows, err := s.db.QueryContext(ctx, query, normalizeLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("query recent journeys: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			slog.Warn("failed to close recent journeys rows", "error", closeErr)
		}
	}()

	out = []*domain.Journey{}
	for rows.Next() {
		j, err := scanJourney(rows)
		if err != nil {
			return nil, fmt.Errorf("scan recent journey row: %w", err)
		}
		out = append(out, j)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate recent journeys: %w", err)
	}
	return out, nil
}

// CreateUser stores a new user; the unique index rejects duplicate usernames.
func (s *SQLStore) CreateUser(ctx context.Context, in domain.NewUser) (u *domain.User, err error) {
	start := time.Now()
	defer func() { s.opts.metrics.ObserveStore("create_user", start, err) }()

	u = &domain.User{
		ID:           s.opts.newID(),
		Username:     in.Username,
		PasswordHash: in.PasswordHash,
		CreatedAt:    s.opts.stamp(),
	}

	unlock := s.lockWrites()
	defer unlock()

	query := s.rebind(`INSERT INTO users (id, username, password_hash, created_at) VALUES (?, ?, ?, ?)`)
	if _, err := s.db.ExecContext(ctx, query, u.ID, u.Username, u.PasswordHash, u.CreatedAt.UnixNano()); err != nil {
		if shared.IsUniqueViolation(err) {
			return nil, fmt.Errorf("username %q: %w", in.Username, domain.ErrConflict)
		}
		return nil, fmt.Errorf("insert user: %w", err)
	}
	return u, nil
}

// GetUser retrieves a user by id.
func (s *SQLStore) GetUser(ctx context.Context, id string) (*domain.User, error) {
	return s.getUserWhere(ctx, "id", id)
}

// GetUserByUsername retrieves a user by username.
func (s *SQLStore) GetUserByUsername(ctx context.Context, username string) (*domain.User, error) {
	return s.getUserWhere(ctx, "username", username)
}

func (s *SQLStore) getUserWhere(ctx context.Context, column, value string) (*domain.User, error) {
	query := s.rebind(`SELECT id, username, password_hash, created_at FROM users WHERE ` + column + ` = ?`)

	var u domain.User
	var createdAt int64
	err := s.db.QueryRowContext(ctx, query, value).Scan(&u.ID, &u.Username, &u.PasswordHash, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("user %s=%s: %w", column, value, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("scan user row: %w", err)
	}
	u.CreatedAt = time.Unix(0, createdAt).UTC()
	return &u, nil
}
