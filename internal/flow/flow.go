// Package flow implements the four-screen narrative state machine:
// landing, journey, branch, climactic.
//
// A Machine is not safe for concurrent use; callers serialize access.
package flow

import (
	"errors"
	"fmt"

	"github.com/ashureev/cosmic-journey/internal/domain"
)

// ErrInvalidTransition is returned when an action does not apply to the
// current screen.
var ErrInvalidTransition = errors.New("invalid transition")

// Transition describes a committed screen change and the state to persist.
type Transition struct {
	Screen        domain.Screen
	Path          *domain.Path
	Constellation *domain.Constellation

	// FallbackPath is set when the climax ran without a selected path.
	FallbackPath bool
}

// Machine holds the live screen, path and constellation of one visitor.
type Machine struct {
	screen        domain.Screen
	path          *domain.Path
	constellation *domain.Constellation
}

// New returns a machine on the landing screen.
func New() *Machine {
	return &Machine{screen: domain.ScreenLanding}
}

// Screen returns the current screen.
func (m *Machine) Screen() domain.Screen { return m.screen }

// Path returns the selected path, or nil.
func (m *Machine) Path() *domain.Path {
	if m.path == nil {
		return nil
	}
	return domain.PathPtr(*m.path)
}

// Constellation returns the generated constellation, or nil before the climax.
func (m *Machine) Constellation() *domain.Constellation {
	return m.constellation.Clone()
}

// Start moves landing -> journey.
func (m *Machine) Start() (Transition, error) {
	if m.screen != domain.ScreenLanding {
		return Transition{}, m.invalid("start", domain.ScreenLanding)
	}
	m.screen = domain.ScreenJourney
	return Transition{Screen: m.screen}, nil
}

// SelectPath moves journey -> branch with the chosen path.
func (m *Machine) SelectPath(p domain.Path) (Transition, error) {
	if !p.Valid() {
		return Transition{}, fmt.Errorf("%w: unknown path %q", domain.ErrValidation, p)
	}
	if m.screen != domain.ScreenJourney {
		return Transition{}, m.invalid("select path", domain.ScreenJourney)
	}
	m.screen = domain.ScreenBranch
	m.path = domain.PathPtr(p)
	return Transition{Screen: m.screen, Path: m.Path()}, nil
}

// ContinueToClimax moves branch -> climactic and generates the constellation
// for the selected path. Without a path the wonder constellation is used and
// the transition reports FallbackPath.
func (m *Machine) ContinueToClimax() (Transition, error) {
	if m.screen != domain.ScreenBranch {
		return Transition{}, m.invalid("continue to climax", domain.ScreenBranch)
	}

	path, fallback := domain.PathWonder, true
	if m.path != nil {
		path, fallback = *m.path, false
	}
	c := ConstellationFor(path)

	m.screen = domain.ScreenClimactic
	m.constellation = &c
	return Transition{
		Screen:        m.screen,
		Path:          m.Path(),
		Constellation: m.Constellation(),
		FallbackPath:  fallback,
	}, nil
}

// Reset discards path and constellation and returns to landing.
func (m *Machine) Reset() {
	m.screen = domain.ScreenLanding
	m.path = nil
	m.constellation = nil
}

// Restore rehydrates the machine from a persisted journey. An invalid screen
// falls back to landing.
func (m *Machine) Restore(screen domain.Screen, path *domain.Path, c *domain.Constellation) {
	if !screen.Valid() {
		screen = domain.ScreenLanding
	}
	m.screen = screen
	m.path = nil
	if path != nil && path.Valid() {
		m.path = domain.PathPtr(*path)
	}
	m.constellation = c.Clone()
}

func (m *Machine) invalid(action string, want domain.Screen) error {
	return fmt.Errorf("%w: %s requires screen %s, current is %s", ErrInvalidTransition, action, want, m.screen)
}
