package session

import (
	"github.com/suturelab/tissuesim/internal/models"
	"github.com/suturelab/tissuesim/internal/tissue"
)

// SessionRow maps body parameters onto a sim_sessions row.
func SessionRow(id, instanceID string, p tissue.BodyParams) models.SimSession {
	return models.SimSession{
		SessionID:  id,
		Material:   p.Material,
		ResX:       p.Resolution.X,
		ResY:       p.Resolution.Y,
		ResZ:       p.Resolution.Z,
		SizeX:      p.Size.X,
		SizeY:      p.Size.Y,
		SizeZ:      p.Size.Z,
		OriginX:    p.Origin.X,
		OriginY:    p.Origin.Y,
		OriginZ:    p.Origin.Z,
		Seed:       int64(p.Seed),
		InstanceID: instanceID,
		Status:     models.SessionActive,
	}
}

// ParamsFromRow rebuilds the body parameters a session was created with.
func ParamsFromRow(row models.SimSession) tissue.BodyParams {
	return tissue.BodyParams{
		Origin:     tissue.NewVec3(row.OriginX, row.OriginY, row.OriginZ),
		Size:       tissue.NewVec3(row.SizeX, row.SizeY, row.SizeZ),
		Resolution: tissue.GridResolution{X: row.ResX, Y: row.ResY, Z: row.ResZ},
		Material:   row.Material,
		Seed:       uint64(row.Seed),
	}
}

// EventRow maps an applied event onto an interaction_events row.
func EventRow(sessionID string, ev Event) models.InteractionEvent {
	c := ev.Contact
	return models.InteractionEvent{
		SessionID:      sessionID,
		Seq:            ev.Seq,
		Frame:          int64(ev.Frame),
		Tool:           string(c.Tool),
		ImpactVelocity: c.ImpactVelocity,
		PointX:         c.Point.X,
		PointY:         c.Point.Y,
		PointZ:         c.Point.Z,
		NormalX:        c.Normal.X,
		NormalY:        c.Normal.Y,
		NormalZ:        c.Normal.Z,
		Source:         ev.Source,
		Cut:            ev.Result.Cut,
		Bled:           ev.Result.Bled,
		CuttingForce:   ev.Result.CuttingForce,
		CreatedAt:      ev.At,
	}
}

// EventFromRow is the inverse of EventRow. Only the result flags and force
// survive the round trip; replaying recovers the rest.
func EventFromRow(row models.InteractionEvent) Event {
	return Event{
		Seq:    row.Seq,
		Frame:  uint64(row.Frame),
		Source: row.Source,
		Contact: tissue.ToolContact{
			Tool:           tissue.ToolType(row.Tool),
			ImpactVelocity: row.ImpactVelocity,
			Point:          tissue.NewVec3(row.PointX, row.PointY, row.PointZ),
			Normal:         tissue.NewVec3(row.NormalX, row.NormalY, row.NormalZ),
		},
		Result: tissue.InteractionResult{
			CuttingForce: row.CuttingForce,
			Cut:          row.Cut,
			Bled:         row.Bled,
		},
		At: row.CreatedAt,
	}
}
