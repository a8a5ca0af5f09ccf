package store

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/ashureev/cosmic-journey/internal/domain"
)

// MemoryStore implements Repository with keyed maps. It is not durable.
type MemoryStore struct {
	mu        sync.RWMutex
	journeys  map[string]*domain.Journey
	order     []string // journey ids in insertion order
	users     map[string]*domain.User
	userOrder []string
	opts      options
}

// NewMemory creates an empty in-memory repository.
func NewMemory(opts ...Option) *MemoryStore {
	return &MemoryStore{
		journeys: make(map[string]*domain.Journey),
		users:    make(map[string]*domain.User),
		opts:     buildOptions(opts),
	}
}

// CreateJourney stores a new journey.
func (s *MemoryStore) CreateJourney(_ context.Context, in domain.NewJourney) (*domain.Journey, error) {
	start := time.Now()
	j := in.Build(s.opts.newID(), s.opts.stamp())

	s.mu.Lock()
	s.journeys[j.ID] = j
	s.order = append(s.order, j.ID)
	s.mu.Unlock()

	s.opts.metrics.ObserveStore("create_journey", start, nil)
	s.opts.metrics.Transition(j.CurrentScreen)
	return j.Clone(), nil
}

// GetJourney retrieves a journey by id.
func (s *MemoryStore) GetJourney(_ context.Context, id string) (*domain.Journey, error) {
	start := time.Now()
	s.mu.RLock()
	j, ok := s.journeys[id]
	s.mu.RUnlock()

	if !ok {
		err := fmt.Errorf("journey %s: %w", id, domain.ErrNotFound)
		s.opts.metrics.ObserveStore("get_journey", start, err)
		return nil, err
	}
	s.opts.metrics.ObserveStore("get_journey", start, nil)
	return j.Clone(), nil
}

// GetJourneyBySessionID scans in insertion order and returns the first match.
func (s *MemoryStore) GetJourneyBySessionID(_ context.Context, sessionID string) (*domain.Journey, error) {
	start := time.Now()
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, id := range s.order {
		if j := s.journeys[id]; j.SessionID == sessionID {
			s.opts.metrics.ObserveStore("get_journey_by_session", start, nil)
			return j.Clone(), nil
		}
	}
	err := fmt.Errorf("journey for session %s: %w", sessionID, domain.ErrNotFound)
	s.opts.metrics.ObserveStore("get_journey_by_session", start, err)
	return nil, err
}

// UpdateJourney merges upd into the stored journey.
func (s *MemoryStore) UpdateJourney(_ context.Context, id string, upd domain.JourneyUpdate) (*domain.Journey, error) {
	start := time.Now()
	s.mu.Lock()
	defer s.mu.Unlock()

	j, ok := s.journeys[id]
	if !ok {
		err := fmt.Errorf("journey %s: %w", id, domain.ErrNotFound)
		s.opts.metrics.ObserveStore("update_journey", start, err)
		return nil, err
	}

	// Merge into a copy so a rejected update leaves the record untouched.
	merged := j.Clone()
	if err := merged.Apply(upd, s.opts.stamp()); err != nil {
		err = fmt.Errorf("journey %s: %w", id, err)
		s.opts.metrics.ObserveStore("update_journey", start, err)
		return nil, err
	}
	s.journeys[id] = merged

	s.opts.metrics.ObserveStore("update_journey", start, nil)
	s.opts.metrics.Transition(merged.CurrentScreen)
	return merged.Clone(), nil
}

// RecentJourneys returns up to limit journeys ordered by createdAt descending.
// Equal timestamps keep reverse insertion order.
func (s *MemoryStore) RecentJourneys(_ context.Context, limit int) ([]*domain.Journey, error) {
	start := time.Now()
	limit = normalizeLimit(limit)

	s.mu.RLock()
	all := make([]*domain.Journey, 0, len(s.order))
	for i := len(s.order) - 1; i >= 0; i-- {
		all = append(all, s.journeys[s.order[i]])
	}
	s.mu.RUnlock()

	slices.SortStableFunc(all, func(a, b *domain.Journey) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	if len(all) > limit {
		all = all[:limit]
	}

	out := make([]*domain.Journey, len(all))
	for i, j := range all {
		out[i] = j.Clone()
	}
	s.opts.metrics.ObserveStore("recent_journeys", start, nil)
	return out, nil
}

// CreateUser stores a new user, rejecting duplicate usernames.
func (s *MemoryStore) CreateUser(_ context.Context, in domain.NewUser) (*domain.User, error) {
	start := time.Now()
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, id := range s.userOrder {
		if s.users[id].Username == in.Username {
			err := fmt.Errorf("username %q: %w", in.Username, domain.ErrConflict)
			s.opts.metrics.ObserveStore("create_user", start, err)
			return nil, err
		}
	}

	u := &domain.User{
		ID:           s.opts.newID(),
		Username:     in.Username,
		PasswordHash: in.PasswordHash,
		CreatedAt:    s.opts.stamp(),
	}
	s.users[u.ID] = u
	s.userOrder = append(s.userOrder, u.ID)

	s.opts.metrics.ObserveStore("create_user", start, nil)
	copied := *u
	return &copied, nil
}

// GetUser retrieves a user by id.
func (s *MemoryStore) GetUser(_ context.Context, id string) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return nil, fmt.Errorf("user %s: %w", id, domain.ErrNotFound)
	}
	copied := *u
	return &copied, nil
}

// GetUserByUsername scans users in insertion order.
func (s *MemoryStore) GetUserByUsername(_ context.Context, username string) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, id := range s.userOrder {
		if u := s.users[id]; u.Username == username {
			copied := *u
			return &copied, nil
		}
	}
	return nil, fmt.Errorf("user %q: %w", username, domain.ErrNotFound)
}

// Ping always succeeds.
func (s *MemoryStore) Ping(context.Context) error { return nil }

// Close is a no-op.
func (s *MemoryStore) Close() error { return nil }
