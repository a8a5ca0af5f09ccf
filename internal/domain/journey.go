package domain

import (
	"fmt"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Screen is a step of the narrative flow.
type Screen string

// Screens in flow order.
const (
	ScreenLanding   Screen = "landing"
	ScreenJourney   Screen = "journey"
	ScreenBranch    Screen = "branch"
	ScreenClimactic Screen = "climactic"
)

// Valid reports whether s is one of the four known screens.
func (s Screen) Valid() bool {
	switch s {
	case ScreenLanding, ScreenJourney, ScreenBranch, ScreenClimactic:
		return true
	}
	return false
}

// Label returns the screen name in title case, e.g. "Climactic".
func (s Screen) Label() string {
	return cases.Title(language.English).String(string(s))
}

// Path is one of the two narrative branches.
type Path string

// Narrative paths.
const (
	PathWonder     Path = "wonder"
	PathReflection Path = "reflection"
)

// Valid reports whether p is a known path.
func (p Path) Valid() bool {
	return p == PathWonder || p == PathReflection
}

// Label returns the path name in title case, e.g. "Wonder".
func (p Path) Label() string {
	return cases.Title(language.English).String(string(p))
}

// PathPtr returns a pointer to p.
func PathPtr(p Path) *Path { return &p }

// Journey is the persisted record of one visitor session.
type Journey struct {
	ID                string         `json:"id"`
	SessionID         string         `json:"sessionId"`
	SelectedPath      *Path          `json:"selectedPath"`
	CurrentScreen     Screen         `json:"currentScreen"`
	CompletedAt       *time.Time     `json:"completedAt"`
	ConstellationData *Constellation `json:"constellationData"`
	CreatedAt         time.Time      `json:"createdAt"`
	UpdatedAt         time.Time      `json:"updatedAt"`

	// LastSeq is the highest update sequence number applied so far.
	LastSeq int64 `json:"-"`
}

// NewJourney carries the fields accepted when a journey is created.
type NewJourney struct {
	SessionID         string
	SelectedPath      *Path
	CurrentScreen     Screen
	CompletedAt       *time.Time
	ConstellationData *Constellation
}

// JourneyUpdate is a partial update. Nil fields are left untouched.
// A positive Seq must be greater than the record's LastSeq to apply.
type JourneyUpdate struct {
	SessionID         *string
	SelectedPath      *Path
	CurrentScreen     *Screen
	CompletedAt       *time.Time
	ConstellationData *Constellation
	Seq               int64
}

// Build returns the journey described by n, with id and timestamps set.
func (n NewJourney) Build(id string, now time.Time) *Journey {
	screen := n.CurrentScreen
	if screen == "" {
		screen = ScreenLanding
	}
	j := &Journey{
		ID:                id,
		SessionID:         n.SessionID,
		CurrentScreen:     screen,
		ConstellationData: n.ConstellationData.Clone(),
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if n.SelectedPath != nil {
		j.SelectedPath = PathPtr(*n.SelectedPath)
	}
	if n.CompletedAt != nil {
		t := *n.CompletedAt
		j.CompletedAt = &t
	}
	return j
}

// Apply merges u into j as a shallow field merge and refreshes UpdatedAt.
// It returns ErrStaleUpdate, leaving j untouched, when u.Seq is positive and
// not greater than j.LastSeq.
func (j *Journey) Apply(u JourneyUpdate, now time.Time) error {
	if u.Seq > 0 && u.Seq <= j.LastSeq {
		return fmt.Errorf("%w: seq %d <= %d", ErrStaleUpdate, u.Seq, j.LastSeq)
	}
	if u.SessionID != nil {
		j.SessionID = *u.SessionID
	}
	if u.SelectedPath != nil {
		j.SelectedPath = PathPtr(*u.SelectedPath)
	}
	if u.CurrentScreen != nil {
		j.CurrentScreen = *u.CurrentScreen
	}
	if u.CompletedAt != nil {
		t := *u.CompletedAt
		j.CompletedAt = &t
	}
	if u.ConstellationData != nil {
		j.ConstellationData = u.ConstellationData.Clone()
	}
	if u.Seq > 0 {
		j.LastSeq = u.Seq
	}
	j.UpdatedAt = now
	return nil
}

// Clone returns a deep copy of j.
func (j *Journey) Clone() *Journey {
	if j == nil {
		return nil
	}
	c := *j
	if j.SelectedPath != nil {
		c.SelectedPath = PathPtr(*j.SelectedPath)
	}
	if j.CompletedAt != nil {
		t := *j.CompletedAt
		c.CompletedAt = &t
	}
	c.ConstellationData = j.ConstellationData.Clone()
	return &c
}

// Completed reports whether the journey reached the climactic screen.
func (j *Journey) Completed() bool {
	return j.CompletedAt != nil
}

// Title is the admin heading for the journey.
func (j *Journey) Title() string {
	if j.SelectedPath == nil {
		return "Journey Started"
	}
	return "Path of " + j.SelectedPath.Label()
}
