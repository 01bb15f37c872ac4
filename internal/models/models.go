package models

import (
	"database/sql"
	"time"
)

// SimSession is one persisted simulation session.
type SimSession struct {
	ID          int          `db:"id" json:"id"`
	SessionID   string       `db:"session_id" json:"session_id"`
	Material    string       `db:"material" json:"material"`
	ResX        int          `db:"res_x" json:"res_x"`
	ResY        int          `db:"res_y" json:"res_y"`
	ResZ        int          `db:"res_z" json:"res_z"`
	SizeX       float64      `db:"size_x" json:"size_x"`
	SizeY       float64      `db:"size_y" json:"size_y"`
	SizeZ       float64      `db:"size_z" json:"size_z"`
	OriginX     float64      `db:"origin_x" json:"origin_x"`
	OriginY     float64      `db:"origin_y" json:"origin_y"`
	OriginZ     float64      `db:"origin_z" json:"origin_z"`
	Seed        int64        `db:"seed" json:"seed"`
	InstanceID  string       `db:"instance_id" json:"instance_id"`
	Status      string       `db:"status" json:"status"`
	CreatedAt   time.Time    `db:"created_at" json:"created_at"`
	ClosedAt    sql.NullTime `db:"closed_at" json:"closed_at,omitempty"`
	FinalFrame  int64        `db:"final_frame" json:"final_frame"`
	PeakDamage  float64      `db:"peak_damage" json:"peak_damage"`
	ActiveLinks int          `db:"active_links" json:"active_links"`
}

// InteractionEvent is one applied tool contact.
type InteractionEvent struct {
	ID             int       `db:"id" json:"id"`
	SessionID      string    `db:"session_id" json:"session_id"`
	Seq            int64     `db:"seq" json:"seq"`
	Frame          int64     `db:"frame" json:"frame"`
	Tool           string    `db:"tool" json:"tool"`
	ImpactVelocity float64   `db:"impact_velocity" json:"impact_velocity"`
	PointX         float64   `db:"point_x" json:"point_x"`
	PointY         float64   `db:"point_y" json:"point_y"`
	PointZ         float64   `db:"point_z" json:"point_z"`
	NormalX        float64   `db:"normal_x" json:"normal_x"`
	NormalY        float64   `db:"normal_y" json:"normal_y"`
	NormalZ        float64   `db:"normal_z" json:"normal_z"`
	Source         string    `db:"source" json:"source"`
	Cut            bool      `db:"cut" json:"cut"`
	Bled           bool      `db:"bled" json:"bled"`
	CuttingForce   float64   `db:"cutting_force" json:"cutting_force"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
}

// Session statuses
const (
	SessionActive  = "ACTIVE"
	SessionClosed  = "CLOSED"
	SessionExpired = "EXPIRED"
)

// Event sources
const (
	SourceLocal  = "local"
	SourceRemote = "remote"
)
