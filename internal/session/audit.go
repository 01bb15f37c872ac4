package session

import (
	"context"
	"fmt"
	"reflect"

	"github.com/suturelab/tissuesim/internal/models"
	"github.com/suturelab/tissuesim/internal/tissue"
)

const (
	AuditLive  = "live"
	AuditStore = "store"
)

// AuditReport is the state a session's event log rebuilds to.
type AuditReport struct {
	SessionID      string              `json:"session_id"`
	Source         string              `json:"source"`
	Status         string              `json:"status"`
	Material       string              `json:"material"`
	Frame          uint64              `json:"frame"`
	Events         int                 `json:"events"`
	TotalLinks     int                 `json:"total_links"`
	ActiveLinks    int                 `json:"active_links"`
	BloodParticles int                 `json:"blood_particles"`
	Damage         tissue.RegionDamage `json:"damage"`
	Markers        []tissue.MarkerView `json:"markers"`
	// Matches is set for live sessions: whether the rebuilt nodes equal
	// the running simulation at the same frame.
	Matches *bool `json:"matches,omitempty"`
}

// Audit replays a session's recorded contacts on a fresh body. Live
// sessions are replayed to their current frame and compared against the
// running simulation; closed ones are rebuilt from the store up to the
// frame they were closed at.
func (m *Manager) Audit(ctx context.Context, id string) (AuditReport, error) {
	if s, err := m.Get(id); err == nil {
		return m.auditLive(ctx, s)
	}
	if m.store == nil {
		return AuditReport{}, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}

	row, err := m.store.GetSession(ctx, id)
	if err != nil {
		return AuditReport{}, err
	}
	rows, err := m.store.ListEvents(ctx, id)
	if err != nil {
		return AuditReport{}, err
	}
	events := make([]Event, len(rows))
	for i, r := range rows {
		events[i] = EventFromRow(r)
	}

	// Sessions still open on another instance have no final frame yet.
	until := uint64(row.FinalFrame)
	if until == 0 && len(events) > 0 {
		until = events[len(events)-1].Frame
	}
	sim, err := Replay(m.registry, ParamsFromRow(*row), events, until)
	if err != nil {
		return AuditReport{}, err
	}
	return newAuditReport(id, AuditStore, row.Status, row.Material, sim, len(events)), nil
}

func (m *Manager) auditLive(ctx context.Context, s *Session) (AuditReport, error) {
	st := s.auditState()
	events, err := m.completeLog(ctx, s.ID, st.tail, st.last)
	if err != nil {
		return AuditReport{}, err
	}
	sim, err := Replay(m.registry, st.params, events, st.frame)
	if err != nil {
		return AuditReport{}, err
	}
	report := newAuditReport(s.ID, AuditLive, models.SessionActive, st.params.Material, sim, len(events))
	matches := reflect.DeepEqual(sim.Snapshot(), st.nodes) && report.ActiveLinks == st.sum.ActiveLinks
	report.Matches = &matches
	return report, nil
}

func newAuditReport(id, source, status, material string, sim *tissue.Simulation, events int) AuditReport {
	return AuditReport{
		SessionID:      id,
		Source:         source,
		Status:         status,
		Material:       material,
		Frame:          sim.Frame(),
		Events:         events,
		TotalLinks:     sim.Body().LinkCount(),
		ActiveLinks:    sim.ActiveLinks(),
		BloodParticles: sim.BloodCount(),
		Damage:         sim.RegionDamage(),
		Markers:        sim.DamageMarkers(),
	}
}
