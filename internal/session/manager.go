package session

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log"
	"math/big"
	"sort"
	"sync"
	"time"

	"github.com/suturelab/tissuesim/internal/config"
	"github.com/suturelab/tissuesim/internal/models"
	"github.com/suturelab/tissuesim/internal/tissue"
)

// EventStore persists sessions and their contacts.
type EventStore interface {
	CreateSession(ctx context.Context, sess *models.SimSession) error
	GetSession(ctx context.Context, sessionID string) (*models.SimSession, error)
	SaveEvent(ctx context.Context, ev *models.InteractionEvent) error
	ListEvents(ctx context.Context, sessionID string) ([]models.InteractionEvent, error)
	CloseSession(ctx context.Context, sess *models.SimSession) error
}

// Relay forwards local contacts to other instances and shares summaries.
type Relay interface {
	PublishContact(ctx context.Context, sessionID string, c tissue.ToolContact) error
	CacheSummary(ctx context.Context, sum Summary) error
}

// Broadcaster pushes frames to connected viewers.
type Broadcaster interface {
	BroadcastFrame(sessionID string, f Frame)
}

// Options tune the session loops.
type Options struct {
	InstanceID     string
	TickInterval   time.Duration
	BroadcastEvery int
	SummaryEvery   int
	IdleTimeout    time.Duration
	InboxSize      int
	// EventLogSize bounds the events kept in memory per session. Older
	// events are read back from the store.
	EventLogSize int
}

// OptionsFromConfig maps the server config onto loop options.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		InstanceID:     cfg.InstanceID,
		TickInterval:   cfg.TickInterval(),
		BroadcastEvery: cfg.FrameBroadcastEvery,
		SummaryEvery:   cfg.TickHz,
		IdleTimeout:    cfg.SessionIdleTimeout(),
		InboxSize:      cfg.InboxSize,
		EventLogSize:   cfg.EventLogSize,
	}
}

// CreateRequest describes a new session. An empty ID is generated.
type CreateRequest struct {
	ID     string
	Params tissue.BodyParams
}

// Manager owns every live session on this instance.
type Manager struct {
	ctx      context.Context
	registry tissue.MaterialRegistry
	opts     Options

	store       EventStore
	relay       Relay
	broadcaster Broadcaster
	now         func() time.Time

	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewManager creates a manager whose session loops live until ctx ends.
// store and relay may be nil.
func NewManager(ctx context.Context, registry tissue.MaterialRegistry, opts Options, store EventStore, relay Relay) *Manager {
	if opts.TickInterval <= 0 {
		opts.TickInterval = time.Second / 60
	}
	if opts.InboxSize <= 0 {
		opts.InboxSize = 256
	}
	if opts.EventLogSize <= 0 {
		opts.EventLogSize = 1024
	}
	return &Manager{
		ctx:      ctx,
		registry: registry,
		opts:     opts,
		store:    store,
		relay:    relay,
		now:      time.Now,
		sessions: make(map[string]*Session),
	}
}

// SetBroadcaster wires the viewer hub. Call before creating sessions.
func (m *Manager) SetBroadcaster(b Broadcaster) {
	m.broadcaster = b
}

func (m *Manager) Registry() tissue.MaterialRegistry { return m.registry }

func (m *Manager) Options() Options { return m.opts }

// Create builds the simulation, registers it and starts its loop.
func (m *Manager) Create(ctx context.Context, req CreateRequest) (*Session, error) {
	sim, err := tissue.NewSimulation(m.registry, req.Params)
	if err != nil {
		return nil, err
	}

	id := req.ID
	if id == "" {
		id = generateSessionID()
	}

	m.mu.Lock()
	if _, exists := m.sessions[id]; exists {
		m.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrSessionExists, id)
	}
	s := newSession(id, req.Params, sim, m)
	m.sessions[id] = s
	m.mu.Unlock()

	if m.store != nil {
		row := SessionRow(id, m.opts.InstanceID, req.Params)
		if err := m.store.CreateSession(ctx, &row); err != nil {
			log.Printf("[SESSION] failed to persist session %s: %v", id, err)
		}
	}

	s.start(m.ctx)
	log.Printf("[SESSION] created %s material=%s res=%dx%dx%d seed=%d", id, req.Params.Material,
		req.Params.Resolution.X, req.Params.Resolution.Y, req.Params.Resolution.Z, req.Params.Seed)
	return s, nil
}

// Get returns a live session.
func (m *Manager) Get(id string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	return s, nil
}

// List returns the summaries of all live sessions ordered by id.
func (m *Manager) List() []Summary {
	m.mu.RLock()
	sessions := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		sessions = append(sessions, s)
	}
	m.mu.RUnlock()

	out := make([]Summary, 0, len(sessions))
	for _, s := range sessions {
		out = append(out, s.Summary())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SessionID < out[j].SessionID })
	return out
}

// Close stops a session and records its final summary with status.
func (m *Manager) Close(ctx context.Context, id, status string) (Summary, error) {
	m.mu.Lock()
	s, ok := m.sessions[id]
	if ok {
		delete(m.sessions, id)
	}
	m.mu.Unlock()
	if !ok {
		return Summary{}, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}

	s.stop()
	sum := s.Summary()

	if m.store != nil {
		row := SessionRow(id, m.opts.InstanceID, s.params)
		row.Status = status
		row.FinalFrame = int64(sum.Frame)
		row.PeakDamage = sum.Damage.Peak
		row.ActiveLinks = sum.ActiveLinks
		if err := m.store.CloseSession(ctx, &row); err != nil {
			log.Printf("[SESSION] failed to close session %s in store: %v", id, err)
		}
	}
	log.Printf("[SESSION] %s %s at frame %d (events=%d peak_damage=%.3f)", id, status, sum.Frame, sum.Events, sum.Damage.Peak)
	return sum, nil
}

// DeliverRemote feeds a contact relayed from another instance. Sessions
// this instance does not host are ignored.
func (m *Manager) DeliverRemote(sessionID string, c tissue.ToolContact) error {
	s, err := m.Get(sessionID)
	if err != nil {
		return err
	}
	return s.deliverRemote(c)
}

// Events returns a session's event log: from memory while the session is
// live, otherwise from the store. Events trimmed from memory are read back
// from the store; without one only the in-memory tail is returned.
func (m *Manager) Events(ctx context.Context, id string) ([]Event, error) {
	if s, err := m.Get(id); err == nil {
		tail, last := s.eventLog()
		events, err := m.completeLog(ctx, id, tail, last)
		if errors.Is(err, ErrLogIncomplete) {
			log.Printf("[SESSION] %v, serving the last %d events", err, len(tail))
			return tail, nil
		}
		return events, err
	}
	if m.store == nil {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	rows, err := m.store.ListEvents(ctx, id)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	events := make([]Event, len(rows))
	for i, r := range rows {
		events[i] = EventFromRow(r)
	}
	return events, nil
}

// completeLog returns events 1..last, topping up the in-memory tail with
// older rows from the store.
func (m *Manager) completeLog(ctx context.Context, id string, tail []Event, last int64) ([]Event, error) {
	if int64(len(tail)) == last {
		return tail, nil
	}
	if m.store == nil {
		return nil, fmt.Errorf("%w: %s has %d of %d events in memory", ErrLogIncomplete, id, len(tail), last)
	}
	rows, err := m.store.ListEvents(ctx, id)
	if err != nil {
		return nil, err
	}
	first := last + 1
	if len(tail) > 0 {
		first = tail[0].Seq
	}
	out := make([]Event, 0, last)
	for _, r := range rows {
		if r.Seq < first {
			out = append(out, EventFromRow(r))
		}
	}
	out = append(out, tail...)
	for i, ev := range out {
		if ev.Seq != int64(i+1) {
			return nil, fmt.Errorf("%w: %s is missing event %d", ErrLogIncomplete, id, i+1)
		}
	}
	if int64(len(out)) != last {
		return nil, fmt.Errorf("%w: %s has %d of %d events", ErrLogIncomplete, id, len(out), last)
	}
	return out, nil
}

// Shutdown closes every live session.
func (m *Manager) Shutdown(ctx context.Context) {
	m.mu.RLock()
	ids := make([]string, 0, len(m.sessions))
	for id := range m.sessions {
		ids = append(ids, id)
	}
	m.mu.RUnlock()

	for _, id := range ids {
		m.Close(ctx, id, models.SessionClosed)
	}
}

// generateSessionID generates a random session id
func generateSessionID() string {
	const charset = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	result := make([]byte, 10)
	for i := range result {
		n, _ := rand.Int(rand.Reader, big.NewInt(int64(len(charset))))
		result[i] = charset[n.Int64()]
	}
	return "SIM_" + string(result)
}
