package session

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/suturelab/tissuesim/internal/models"
	"github.com/suturelab/tissuesim/internal/tissue"
)

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrSessionClosed   = errors.New("session closed")
	ErrSessionExists   = errors.New("session already exists")
	ErrLogIncomplete   = errors.New("event log incomplete")
)

// Event is one contact as it was applied to a session.
type Event struct {
	Seq     int64                    `json:"seq"`
	Frame   uint64                   `json:"frame"`
	Source  string                   `json:"source"`
	Contact tissue.ToolContact       `json:"contact"`
	Result  tissue.InteractionResult `json:"result"`
	At      time.Time                `json:"at"`
}

// Frame is the render payload pushed to viewers.
type Frame struct {
	SessionID string                `json:"session_id"`
	Frame     uint64                `json:"frame"`
	Time      float64               `json:"time"`
	Nodes     []tissue.NodeState    `json:"nodes"`
	Damage    []float64             `json:"damage"`
	Blood     []tissue.ParticleView `json:"blood"`
	Markers   []tissue.MarkerView   `json:"markers"`
}

// Summary is the small description of a session shared across instances.
type Summary struct {
	SessionID      string                `json:"session_id"`
	InstanceID     string                `json:"instance_id"`
	Material       string                `json:"material"`
	Resolution     tissue.GridResolution `json:"resolution"`
	Frame          uint64                `json:"frame"`
	Time           float64               `json:"time"`
	NodeCount      int                   `json:"node_count"`
	TotalLinks     int                   `json:"total_links"`
	ActiveLinks    int                   `json:"active_links"`
	BloodParticles int                   `json:"blood_particles"`
	Markers        int                   `json:"markers"`
	Damage         tissue.RegionDamage   `json:"damage"`
	Events         int64                 `json:"events"`
	CreatedAt      time.Time             `json:"created_at"`
	LastActivity   time.Time             `json:"last_activity"`
}

type contactRequest struct {
	contact tissue.ToolContact
	source  string
	reply   chan contactReply // nil for remote contacts
}

type contactReply struct {
	event Event
	err   error
}

type outboxItem struct {
	event   *Event
	summary *Summary
}

// Session owns one simulation. Only the run goroutine mutates it; readers
// take the read lock.
type Session struct {
	ID        string
	params    tissue.BodyParams
	createdAt time.Time
	mgr       *Manager

	mu           sync.RWMutex
	sim          *tissue.Simulation
	seq          int64
	events       []Event
	lastActivity time.Time

	inbox  chan contactRequest
	outbox chan outboxItem
	cancel context.CancelFunc
	done   chan struct{}
	closed chan struct{}
}

func newSession(id string, params tissue.BodyParams, sim *tissue.Simulation, mgr *Manager) *Session {
	now := mgr.now()
	return &Session{
		ID:           id,
		params:       params,
		createdAt:    now,
		mgr:          mgr,
		sim:          sim,
		lastActivity: now,
		inbox:        make(chan contactRequest, mgr.opts.InboxSize),
		outbox:       make(chan outboxItem, mgr.opts.InboxSize),
		done:         make(chan struct{}),
		closed:       make(chan struct{}),
	}
}

// start launches the frame loop and the side-effect writer.
func (s *Session) start(parent context.Context) {
	ctx, cancel := context.WithCancel(parent)
	s.cancel = cancel
	go s.writeOutbox()
	go s.run(ctx)
}

func (s *Session) run(ctx context.Context) {
	defer close(s.done)
	ticker := time.NewTicker(s.mgr.opts.TickInterval)
	defer ticker.Stop()

	log.Printf("[SESSION] %s loop started (material=%s nodes=%d)", s.ID, s.params.Material, s.sim.Body().NodeCount())
	for {
		select {
		case <-ctx.Done():
			s.drainInbox()
			log.Printf("[SESSION] %s loop stopped at frame %d", s.ID, s.sim.Frame())
			return
		case req := <-s.inbox:
			s.apply(req)
		case <-ticker.C:
			s.step()
		}
	}
}

// drainInbox fails any pending local contacts once the loop is stopping.
func (s *Session) drainInbox() {
	for {
		select {
		case req := <-s.inbox:
			if req.reply != nil {
				req.reply <- contactReply{err: ErrSessionClosed}
			}
		default:
			return
		}
	}
}

// apply resolves one contact between frames.
func (s *Session) apply(req contactRequest) {
	s.mu.Lock()
	res, err := s.sim.ApplyToolContact(req.contact)
	if err != nil {
		s.mu.Unlock()
		if req.reply != nil {
			req.reply <- contactReply{err: err}
		} else {
			log.Printf("[SESSION] %s dropped %s contact: %v", s.ID, req.source, err)
		}
		return
	}
	s.seq++
	ev := Event{
		Seq:     s.seq,
		Frame:   s.sim.Frame(),
		Source:  req.source,
		Contact: req.contact,
		Result:  res,
		At:      s.mgr.now(),
	}
	s.events = append(s.events, ev)
	s.trimEvents()
	s.lastActivity = ev.At
	s.mu.Unlock()

	if req.reply != nil {
		req.reply <- contactReply{event: ev}
	}
	s.enqueue(outboxItem{event: &ev})
}

// trimEvents drops the oldest events once the log holds twice the limit,
// copying so the old backing array can be collected.
func (s *Session) trimEvents() {
	limit := s.mgr.opts.EventLogSize
	if len(s.events) < 2*limit {
		return
	}
	kept := make([]Event, limit, 2*limit)
	copy(kept, s.events[len(s.events)-limit:])
	s.events = kept
}

// tailLocked is the most recent EventLogSize events.
func (s *Session) tailLocked() []Event {
	events := s.events
	if limit := s.mgr.opts.EventLogSize; len(events) > limit {
		events = events[len(events)-limit:]
	}
	out := make([]Event, len(events))
	copy(out, events)
	return out
}

// step advances one fixed frame and emits whatever is due.
func (s *Session) step() {
	s.mu.Lock()
	s.sim.Step(tissue.FixedTimestep)
	frame := s.sim.Frame()
	var f *Frame
	if every := s.mgr.opts.BroadcastEvery; every > 0 && frame%uint64(every) == 0 && s.mgr.broadcaster != nil {
		fr := s.frameLocked()
		f = &fr
	}
	var sum *Summary
	if every := s.mgr.opts.SummaryEvery; every > 0 && frame%uint64(every) == 0 && s.mgr.relay != nil {
		sm := s.summaryLocked()
		sum = &sm
	}
	s.mu.Unlock()

	if f != nil {
		s.mgr.broadcaster.BroadcastFrame(s.ID, *f)
	}
	if sum != nil {
		s.enqueue(outboxItem{summary: sum})
	}
}

func (s *Session) enqueue(item outboxItem) {
	if s.mgr.store == nil && s.mgr.relay == nil {
		return
	}
	select {
	case s.outbox <- item:
	default:
		log.Printf("[SESSION] %s outbox full, dropping side effect", s.ID)
	}
}

// writeOutbox persists and publishes in order, off the frame loop.
func (s *Session) writeOutbox() {
	defer close(s.closed)
	for item := range s.outbox {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if item.event != nil {
			s.persist(ctx, item.event)
		}
		if item.summary != nil && s.mgr.relay != nil {
			if err := s.mgr.relay.CacheSummary(ctx, *item.summary); err != nil {
				log.Printf("[SESSION] %s cache summary failed: %v", s.ID, err)
			}
		}
		cancel()
	}
}

func (s *Session) persist(ctx context.Context, ev *Event) {
	if s.mgr.store != nil {
		row := EventRow(s.ID, *ev)
		if err := s.mgr.store.SaveEvent(ctx, &row); err != nil {
			log.Printf("[SESSION] %s save event %d failed: %v", s.ID, ev.Seq, err)
		}
	}
	if s.mgr.relay != nil && ev.Source == models.SourceLocal {
		if err := s.mgr.relay.PublishContact(ctx, s.ID, ev.Contact); err != nil {
			log.Printf("[SESSION] %s publish contact %d failed: %v", s.ID, ev.Seq, err)
		}
	}
}

// stop ends the loop and flushes pending side effects.
func (s *Session) stop() {
	s.cancel()
	<-s.done
	close(s.outbox)
	<-s.closed
}

// Submit queues a local contact and waits for it to be applied.
func (s *Session) Submit(ctx context.Context, c tissue.ToolContact) (Event, error) {
	if _, err := tissue.BaseForce(c.Tool); err != nil {
		return Event{}, err
	}
	req := contactRequest{contact: c, source: models.SourceLocal, reply: make(chan contactReply, 1)}
	select {
	case s.inbox <- req:
	case <-s.done:
		return Event{}, ErrSessionClosed
	case <-ctx.Done():
		return Event{}, ctx.Err()
	}
	select {
	case r := <-req.reply:
		return r.event, r.err
	case <-s.done:
		// The loop may have answered just before exiting.
		select {
		case r := <-req.reply:
			return r.event, r.err
		default:
			return Event{}, ErrSessionClosed
		}
	case <-ctx.Done():
		return Event{}, ctx.Err()
	}
}

// deliverRemote queues a contact relayed from another instance without waiting.
func (s *Session) deliverRemote(c tissue.ToolContact) error {
	select {
	case <-s.done:
		return ErrSessionClosed
	default:
	}
	select {
	case s.inbox <- contactRequest{contact: c, source: models.SourceRemote}:
		return nil
	default:
		return fmt.Errorf("session %s inbox full", s.ID)
	}
}

func (s *Session) Params() tissue.BodyParams { return s.params }

func (s *Session) Snapshot() []tissue.NodeState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sim.Snapshot()
}

func (s *Session) Markers() []tissue.MarkerView {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sim.DamageMarkers()
}

func (s *Session) Blood() []tissue.ParticleView {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sim.BloodSnapshot()
}

func (s *Session) DamageLevels() []float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sim.DamageLevels()
}

// Events returns a copy of the in-memory event log, which holds at most
// the last EventLogSize events.
func (s *Session) Events() []Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tailLocked()
}

// eventLog returns the in-memory tail and the sequence number of the
// newest event.
func (s *Session) eventLog() ([]Event, int64) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tailLocked(), s.seq
}

// auditState is everything an audit needs, read under one lock.
type auditState struct {
	params tissue.BodyParams
	tail   []Event
	last   int64
	frame  uint64
	nodes  []tissue.NodeState
	sum    Summary
}

func (s *Session) auditState() auditState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return auditState{
		params: s.params,
		tail:   s.tailLocked(),
		last:   s.seq,
		frame:  s.sim.Frame(),
		nodes:  s.sim.Snapshot(),
		sum:    s.summaryLocked(),
	}
}

func (s *Session) Frame() Frame {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.frameLocked()
}

func (s *Session) Summary() Summary {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.summaryLocked()
}

func (s *Session) LastActivity() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastActivity
}

func (s *Session) frameLocked() Frame {
	return Frame{
		SessionID: s.ID,
		Frame:     s.sim.Frame(),
		Time:      s.sim.Time(),
		Nodes:     s.sim.Snapshot(),
		Damage:    s.sim.DamageLevels(),
		Blood:     s.sim.BloodSnapshot(),
		Markers:   s.sim.DamageMarkers(),
	}
}

func (s *Session) summaryLocked() Summary {
	b := s.sim.Body()
	return Summary{
		SessionID:      s.ID,
		InstanceID:     s.mgr.opts.InstanceID,
		Material:       s.params.Material,
		Resolution:     b.Resolution(),
		Frame:          s.sim.Frame(),
		Time:           s.sim.Time(),
		NodeCount:      b.NodeCount(),
		TotalLinks:     b.LinkCount(),
		ActiveLinks:    s.sim.ActiveLinks(),
		BloodParticles: s.sim.BloodCount(),
		Markers:        len(s.sim.DamageMarkers()),
		Damage:         s.sim.RegionDamage(),
		Events:         s.seq,
		CreatedAt:      s.createdAt,
		LastActivity:   s.lastActivity,
	}
}
