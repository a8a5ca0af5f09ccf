// Package store provides data persistence interfaces and implementations.
package store

import (
	"context"
	"fmt"
	"time"

	"github.com/ashureev/cosmic-journey/internal/config"
	"github.com/ashureev/cosmic-journey/internal/domain"
	"github.com/ashureev/cosmic-journey/internal/metrics"
	"github.com/google/uuid"
)

// DefaultRecentLimit is used by RecentJourneys when limit is not positive.
const DefaultRecentLimit = 10

// Repository defines the interface for persisting journeys and users.
// Lookups that find nothing return an error wrapping domain.ErrNotFound.
type Repository interface {
	// CreateJourney stores a new journey. It never checks session uniqueness.
	CreateJourney(ctx context.Context, in domain.NewJourney) (*domain.Journey, error)

	// GetJourney retrieves a journey by id.
	GetJourney(ctx context.Context, id string) (*domain.Journey, error)

	// GetJourneyBySessionID retrieves the first journey created for sessionID.
	GetJourneyBySessionID(ctx context.Context, sessionID string) (*domain.Journey, error)

	// UpdateJourney merges the supplied fields into an existing journey.
	UpdateJourney(ctx context.Context, id string, upd domain.JourneyUpdate) (*domain.Journey, error)

	// RecentJourneys returns up to limit journeys, newest first.
	RecentJourneys(ctx context.Context, limit int) ([]*domain.Journey, error)

	// CreateUser stores a new user. Usernames are unique.
	CreateUser(ctx context.Context, in domain.NewUser) (*domain.User, error)

	// GetUser retrieves a user by id.
	GetUser(ctx context.Context, id string) (*domain.User, error)

	// GetUserByUsername retrieves a user by username.
	GetUserByUsername(ctx context.Context, username string) (*domain.User, error)

	// Ping verifies the backing storage is reachable.
	Ping(ctx context.Context) error

	// Close releases the backing storage.
	Close() error
}

// Option configures a store.
type Option func(*options)

type options struct {
	now     func() time.Time
	newID   func() string
	metrics *metrics.Collector
}

func defaultOptions() options {
	return options{
		now:   time.Now,
		newID: uuid.NewString,
	}
}

func buildOptions(opts []Option) options {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// WithClock overrides the clock used for createdAt/updatedAt stamps.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// WithIDGenerator overrides the id generator for new records.
func WithIDGenerator(gen func() string) Option {
	return func(o *options) { o.newID = gen }
}

// WithMetrics records every operation on c.
func WithMetrics(c *metrics.Collector) Option {
	return func(o *options) { o.metrics = c }
}

func (o options) stamp() time.Time {
	return o.now().UTC()
}

func normalizeLimit(limit int) int {
	if limit <= 0 {
		return DefaultRecentLimit
	}
	return limit
}

// Open builds the repository selected by cfg.StoreDriver.
func Open(cfg *config.Config, opts ...Option) (Repository, error) {
	switch cfg.StoreDriver {
	case config.DriverMemory:
		return NewMemory(opts...), nil
	case config.DriverSQLite:
		return NewSQLite(cfg.DBPath, opts...)
	case config.DriverPostgres:
		return NewPostgres(cfg.DatabaseURL, opts...)
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
	}
}
