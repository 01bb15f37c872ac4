package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/suturelab/tissuesim/internal/models"
)

var ErrSessionNotFound = errors.New("session not found in store")

// Store persists sessions and their interaction events in PostgreSQL.
type Store struct {
	db *sqlx.DB
}

func New(db *sqlx.DB) *Store {
	return &Store{db: db}
}

// CreateSession inserts s and fills in its generated id and created_at.
func (s *Store) CreateSession(ctx context.Context, sess *models.SimSession) error {
	row := s.db.QueryRowxContext(ctx, `
		INSERT INTO sim_sessions (session_id, material, res_x, res_y, res_z, size_x, size_y, size_z,
			origin_x, origin_y, origin_z, seed, instance_id, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, NOW())
		RETURNING id, created_at`,
		sess.SessionID, sess.Material, sess.ResX, sess.ResY, sess.ResZ,
		sess.SizeX, sess.SizeY, sess.SizeZ, sess.OriginX, sess.OriginY, sess.OriginZ,
		sess.Seed, sess.InstanceID, sess.Status)
	if err := row.Scan(&sess.ID, &sess.CreatedAt); err != nil {
		return fmt.Errorf("insert session %s: %w", sess.SessionID, err)
	}
	return nil
}

// GetSession loads one session row.
func (s *Store) GetSession(ctx context.Context, sessionID string) (*models.SimSession, error) {
	var sess models.SimSession
	err := s.db.GetContext(ctx, &sess, `SELECT * FROM sim_sessions WHERE session_id = $1`, sessionID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}
	if err != nil {
		return nil, err
	}
	return &sess, nil
}

// SaveEvent appends one interaction event.
func (s *Store) SaveEvent(ctx context.Context, ev *models.InteractionEvent) error {
	_, err := s.db.NamedExecContext(ctx, `
		INSERT INTO interaction_events (session_id, seq, frame, tool, impact_velocity,
			point_x, point_y, point_z, normal_x, normal_y, normal_z,
			source, cut, bled, cutting_force, created_at)
		VALUES (:session_id, :seq, :frame, :tool, :impact_velocity,
			:point_x, :point_y, :point_z, :normal_x, :normal_y, :normal_z,
			:source, :cut, :bled, :cutting_force, NOW())
		ON CONFLICT (session_id, seq) DO NOTHING`, ev)
	if err != nil {
		return fmt.Errorf("insert event %s#%d: %w", ev.SessionID, ev.Seq, err)
	}
	return nil
}

// ListEvents returns a session's events in application order.
func (s *Store) ListEvents(ctx context.Context, sessionID string) ([]models.InteractionEvent, error) {
	events := []models.InteractionEvent{}
	err := s.db.SelectContext(ctx, &events, `
		SELECT * FROM interaction_events WHERE session_id = $1 ORDER BY seq ASC`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list events %s: %w", sessionID, err)
	}
	return events, nil
}

// CloseSession records the final summary of a session.
func (s *Store) CloseSession(ctx context.Context, sess *models.SimSession) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE sim_sessions
		SET status = $1, closed_at = NOW(), final_frame = $2, peak_damage = $3, active_links = $4
		WHERE session_id = $5`,
		sess.Status, sess.FinalFrame, sess.PeakDamage, sess.ActiveLinks, sess.SessionID)
	if err != nil {
		return fmt.Errorf("close session %s: %w", sess.SessionID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, sess.SessionID)
	}
	return nil
}
