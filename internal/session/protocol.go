// Package session keeps one visitor's screen flow in step with the journey
// record stored on the server.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ashureev/cosmic-journey/internal/domain"
	"github.com/ashureev/cosmic-journey/internal/flow"
	"github.com/ashureev/cosmic-journey/internal/identity"
)

// JourneyAPI is the remote journey store the protocol persists through.
type JourneyAPI interface {
	CreateJourney(ctx context.Context, in domain.NewJourney) (*domain.Journey, error)
	UpdateJourney(ctx context.Context, id string, upd domain.JourneyUpdate) (*domain.Journey, error)
	GetJourneyBySession(ctx context.Context, sessionID string) (*domain.Journey, error)
}

// State is a snapshot of the protocol's local view.
type State struct {
	SessionID     string
	JourneyID     string
	Screen        domain.Screen
	Path          *domain.Path
	Constellation *domain.Constellation
}

// Option configures a Protocol.
type Option func(*Protocol)

// WithSessionID resumes an existing session instead of minting a new one.
func WithSessionID(id string) Option {
	return func(p *Protocol) {
		if id = identity.SanitizeSessionID(id); id != "" {
			p.track = &track{sessionID: id}
		}
	}
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(p *Protocol) { p.logger = l }
}

// WithErrorHandler registers fn to receive every persistence failure.
// It runs on the worker goroutine.
func WithErrorHandler(fn func(op string, err error)) Option {
	return func(p *Protocol) { p.onError = fn }
}

// WithClock overrides the clock used for completedAt and sequence numbers.
func WithClock(now func() time.Time) Option {
	return func(p *Protocol) { p.now = now }
}

// WithSessionIDGenerator overrides how session ids are minted on New and Reset.
func WithSessionIDGenerator(fn func() string) Option {
	return func(p *Protocol) { p.newSessionID = fn }
}

// track binds a session id to the journey record created for it. Queued
// calls hold the track they were issued under, so calls issued before a
// reset still land on the old record.
type track struct {
	sessionID string
	journeyID string
}

type op struct {
	name string
	run  func(ctx context.Context) error
}

// Protocol drives a flow.Machine and persists every committed transition.
// Transitions return immediately; persistence runs in order on one worker.
// It is safe for concurrent use.
type Protocol struct {
	api          JourneyAPI
	logger       *slog.Logger
	onError      func(op string, err error)
	now          func() time.Time
	newSessionID func() string

	mu      sync.Mutex
	cond    *sync.Cond
	machine *flow.Machine
	track   *track
	lastSeq int64

	queue   []op
	busy    bool
	started bool
	closed  bool
	done    chan struct{}
}

// New returns a protocol on the landing screen. Call Start to begin.
func New(api JourneyAPI, opts ...Option) *Protocol {
	p := &Protocol{
		api:          api,
		logger:       slog.Default(),
		now:          time.Now,
		newSessionID: identity.NewSessionID,
		machine:      flow.New(),
		done:         make(chan struct{}),
	}
	p.cond = sync.NewCond(&p.mu)
	for _, opt := range opts {
		opt(p)
	}
	if p.track == nil {
		p.track = &track{sessionID: p.newSessionID()}
	}
	return p
}

// Start launches the persistence worker and queues the lookup of the
// session's existing record ahead of any transition already queued.
func (p *Protocol) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started || p.closed {
		return
	}
	p.started = true

	t := p.track
	lookup := op{name: "restore", run: func(ctx context.Context) error { return p.restore(ctx, t) }}
	p.queue = append([]op{lookup}, p.queue...)

	go p.run(ctx)
	p.logger.Info("Journey session started", "session_id", t.sessionID)
}

// StartJourney moves landing -> journey.
func (p *Protocol) StartJourney() (flow.Transition, error) {
	return p.transition(func(m *flow.Machine) (flow.Transition, error) { return m.Start() })
}

// SelectPath moves journey -> branch.
func (p *Protocol) SelectPath(path domain.Path) (flow.Transition, error) {
	return p.transition(func(m *flow.Machine) (flow.Transition, error) { return m.SelectPath(path) })
}

// ContinueToClimax moves branch -> climactic and persists the constellation.
func (p *Protocol) ContinueToClimax() (flow.Transition, error) {
	return p.transition(func(m *flow.Machine) (flow.Transition, error) { return m.ContinueToClimax() })
}

// Reset abandons the current record: a new session id is minted, the
// journey id is cleared and the machine returns to landing. Nothing is sent
// to the server.
func (p *Protocol) Reset() State {
	p.mu.Lock()
	defer p.mu.Unlock()

	old := p.track.sessionID
	p.track = &track{sessionID: p.newSessionID()}
	p.machine.Reset()
	p.logger.Info("Journey reset", "old_session_id", old, "session_id", p.track.sessionID)
	return p.stateLocked()
}

// State returns a snapshot of the local state.
func (p *Protocol) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stateLocked()
}

// Wait blocks until every queued call has finished or ctx is done.
// It returns immediately if the worker was never started.
func (p *Protocol) Wait(ctx context.Context) error {
	idle := make(chan struct{})
	go func() {
		p.mu.Lock()
		for p.started && !p.exitedLocked() && (len(p.queue) > 0 || p.busy) {
			p.cond.Wait()
		}
		p.mu.Unlock()
		close(idle)
	}()

	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close drains queued calls and stops the worker.
func (p *Protocol) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	started := p.started
	p.cond.Broadcast()
	p.mu.Unlock()

	if started {
		<-p.done
	}
	return nil
}

func (p *Protocol) exitedLocked() bool {
	select {
	case <-p.done:
		return true
	default:
		return false
	}
}

func (p *Protocol) stateLocked() State {
	return State{
		SessionID:     p.track.sessionID,
		JourneyID:     p.track.journeyID,
		Screen:        p.machine.Screen(),
		Path:          p.machine.Path(),
		Constellation: p.machine.Constellation(),
	}
}

func (p *Protocol) transition(step func(*flow.Machine) (flow.Transition, error)) (flow.Transition, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return flow.Transition{}, errors.New("session: protocol closed")
	}
	tr, err := step(p.machine)
	if err != nil {
		return flow.Transition{}, err
	}
	if tr.FallbackPath {
		p.logger.Warn("Climax reached without a selected path, using wonder constellation",
			"session_id", p.track.sessionID)
	}

	p.enqueueLocked(p.persistOp(p.track, tr, p.nextSeqLocked()))
	return tr, nil
}

// nextSeqLocked keeps sequence numbers increasing across restarts of the
// client by never going below the wall clock in nanoseconds.
func (p *Protocol) nextSeqLocked() int64 {
	seq := p.lastSeq + 1
	if wall := p.now().UnixNano(); wall > seq {
		seq = wall
	}
	p.lastSeq = seq
	return seq
}

func (p *Protocol) enqueueLocked(o op) {
	p.queue = append(p.queue, o)
	p.cond.Broadcast()
}

func (p *Protocol) persistOp(t *track, tr flow.Transition, seq int64) op {
	var completedAt *time.Time
	if tr.Screen == domain.ScreenClimactic {
		now := p.now().UTC()
		completedAt = &now
	}
	screen := tr.Screen
	var path *domain.Path
	if tr.Path != nil {
		path = domain.PathPtr(*tr.Path)
	}
	constellation := tr.Constellation.Clone()

	return op{name: "persist " + string(screen), run: func(ctx context.Context) error {
		p.mu.Lock()
		journeyID := t.journeyID
		p.mu.Unlock()

		if journeyID != "" {
			_, err := p.api.UpdateJourney(ctx, journeyID, domain.JourneyUpdate{
				CurrentScreen:     &screen,
				SelectedPath:      path,
				CompletedAt:       completedAt,
				ConstellationData: constellation,
				Seq:               seq,
			})
			if err != nil {
				return fmt.Errorf("update journey %s: %w", journeyID, err)
			}
			p.logger.Debug("Journey updated", "journey_id", journeyID, "screen", screen, "seq", seq)
			return nil
		}

		j, err := p.api.CreateJourney(ctx, domain.NewJourney{
			SessionID:         t.sessionID,
			CurrentScreen:     screen,
			SelectedPath:      path,
			CompletedAt:       completedAt,
			ConstellationData: constellation,
		})
		if err != nil {
			return fmt.Errorf("create journey: %w", err)
		}

		p.mu.Lock()
		t.journeyID = j.ID
		p.mu.Unlock()
		p.logger.Info("Journey created", "journey_id", j.ID, "session_id", t.sessionID, "screen", screen)
		return nil
	}}
}

// restore adopts the server record for t only while t is current, holds no
// journey id and is still on landing. Otherwise the next transition creates
// a fresh record.
func (p *Protocol) restore(ctx context.Context, t *track) error {
	j, err := p.api.GetJourneyBySession(ctx, t.sessionID)
	if errors.Is(err, domain.ErrNotFound) {
		p.logger.Debug("No journey to restore", "session_id", t.sessionID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("lookup session %s: %w", t.sessionID, err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if t.journeyID != "" || p.track != t {
		return nil
	}
	if p.machine.Screen() != domain.ScreenLanding {
		p.logger.Info("Local progress ahead of stored journey, not restoring",
			"journey_id", j.ID, "screen", p.machine.Screen())
		return nil
	}
	t.journeyID = j.ID
	p.machine.Restore(j.CurrentScreen, j.SelectedPath, j.ConstellationData)
	p.logger.Info("Journey restored", "journey_id", j.ID, "screen", p.machine.Screen())
	return nil
}

func (p *Protocol) run(ctx context.Context) {
	defer func() {
		p.mu.Lock()
		close(p.done)
		p.cond.Broadcast()
		p.mu.Unlock()
	}()

	for {
		p.mu.Lock()
		for len(p.queue) == 0 && !p.closed {
			p.cond.Wait()
		}
		if len(p.queue) == 0 {
			p.mu.Unlock()
			return
		}
		next := p.queue[0]
		p.queue = p.queue[1:]
		p.busy = true
		p.mu.Unlock()

		if err := next.run(ctx); err != nil {
			p.logger.Error("Journey persistence failed", "op", next.name, "error", err)
			if p.onError != nil {
				p.onError(next.name, err)
			}
		}

		p.mu.Lock()
		p.busy = false
		p.cond.Broadcast()
		p.mu.Unlock()
	}
}
