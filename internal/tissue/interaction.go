package tissue

import (
	"errors"
	"fmt"
	"math"
)

var ErrUnknownTool = errors.New("unknown tool type")

// ToolType identifies a surgical instrument.
type ToolType string

const (
	ToolScalpel  ToolType = "scalpel"
	ToolScissors ToolType = "scissors"
	ToolNeedle   ToolType = "needle"
	ToolForceps  ToolType = "forceps"
	ToolProbe    ToolType = "probe"
)

// toolBaseForce is the cutting force each tool delivers at V_REF on
// material of hardness 1. Sharp tools sit at the top.
var toolBaseForce = map[ToolType]float64{
	ToolScalpel:  50,
	ToolScissors: 40,
	ToolNeedle:   25,
	ToolForceps:  10,
	ToolProbe:    5,
}

// BaseForce returns the tool's base force constant.
func BaseForce(tool ToolType) (float64, error) {
	f, ok := toolBaseForce[tool]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownTool, tool)
	}
	return f, nil
}

// Tools lists the known tool types, sharpest first.
func Tools() []ToolType {
	return []ToolType{ToolScalpel, ToolScissors, ToolNeedle, ToolForceps, ToolProbe}
}

// ToolContact is one discrete collision between a tool and the tissue.
type ToolContact struct {
	Tool           ToolType `json:"tool"`
	ImpactVelocity float64  `json:"impact_velocity"`
	Point          Vec3     `json:"point"`
	Normal         Vec3     `json:"normal"` // outward surface normal at the contact
}

// InteractionResult describes what a contact did to the tissue.
type InteractionResult struct {
	CuttingForce  float64 `json:"cutting_force"`
	Force         Vec3    `json:"force"`
	Cut           bool    `json:"cut"`
	Bled          bool    `json:"bled"`
	AffectedNodes []int   `json:"affected_nodes,omitempty"`
	Particles     int     `json:"particles"`
	Severity      float64 `json:"severity"`
}

// CuttingForce computes base × hardness × min(v/V_REF, cap).
func CuttingForce(tool ToolType, impactVelocity float64, m MaterialProfile) (float64, error) {
	base, err := BaseForce(tool)
	if err != nil {
		return 0, err
	}
	v := math.Max(0, impactVelocity)
	if math.IsNaN(v) {
		v = 0
	}
	return base * m.Hardness * math.Min(v/ReferenceVelocity, MaxVelocityFactor), nil
}

// Resolver turns tool contacts into force, cut, damage and bleeding calls.
type Resolver struct {
	body    *Body
	tracker *DamageTracker
	blood   *BloodSystem
}

func NewResolver(body *Body, tracker *DamageTracker, blood *BloodSystem) *Resolver {
	return &Resolver{body: body, tracker: tracker, blood: blood}
}

// Resolve applies one contact. Unknown tools are rejected before anything
// is mutated; contacts with no node within the contact radius are silent
// no-ops that neither cut nor bleed.
func (r *Resolver) Resolve(c ToolContact) (InteractionResult, error) {
	m := r.body.material
	cutting, err := CuttingForce(c.Tool, c.ImpactVelocity, m)
	if err != nil {
		return InteractionResult{}, err
	}

	// The tool pushes into the tissue, against the outward normal.
	normal := c.Normal.Normalize()
	if normal.IsZero() {
		normal = NewVec3(0, 1, 0)
	}
	force := normal.Invert().Times(cutting)
	res := InteractionResult{CuttingForce: cutting, Force: force}

	radius := r.body.spacing * ContactRadiusFactor
	if !r.body.touches(c.Point, radius) {
		return res, nil
	}
	r.body.ApplyForceAtPoint(force, c.Point, radius)

	if cutting > m.TearThreshold {
		start, end := cutSegment(c.Point, force)
		affected := r.body.Cut(start, end, r.body.spacing*CutWidthFactor)
		if len(affected) > 0 {
			res.Cut = true
			res.AffectedNodes = affected
			res.Severity = clamp(cutting/(m.TearThreshold*SeveritySpan), 0, m.MaxDamage)
			r.tracker.RecordDamage(affected, res.Severity)
		}
	}

	if cutting > m.TearThreshold*BruiseRatio {
		intensity := m.Bloodiness * math.Min(cutting/m.TearThreshold, BleedIntensityCap)
		// Blood sprays back out of the wound.
		res.Particles = r.blood.Emit(c.Point, force.Invert(), intensity)
		res.Bled = res.Particles > 0
	}

	return res, nil
}
