package tissue

import (
	"math"
	"math/rand/v2"
)

// DamageMarker is a timestamped record of localized damage.
type DamageMarker struct {
	Position  Vec3    `json:"position"`
	Severity  float64 `json:"severity"`
	CreatedAt float64 `json:"created_at"` // simulation seconds
	Healing   bool    `json:"healing"`
}

// MarkerView is a marker as reported to consumers, with its current age.
type MarkerView struct {
	Position Vec3    `json:"position"`
	Severity float64 `json:"severity"`
	Age      float64 `json:"age"`
	Healing  bool    `json:"healing"`
}

// RegionDamage aggregates damage over the whole body.
type RegionDamage struct {
	Mean         float64 `json:"mean"`
	Peak         float64 `json:"peak"`
	DamagedNodes int     `json:"damaged_nodes"`
}

// DamageTracker accumulates per-node damage on a body and heals it over time.
type DamageTracker struct {
	body    *Body
	levels  []float64
	markers []DamageMarker // oldest first, at most MaxDamageMarkers
	clock   float64
	rng     *rand.Rand
}

func NewDamageTracker(body *Body, rng *rand.Rand) *DamageTracker {
	if rng == nil {
		rng = rand.New(rand.NewPCG(1, 2))
	}
	return &DamageTracker{
		body:    body,
		levels:  make([]float64, body.NodeCount()),
		markers: make([]DamageMarker, 0, MaxDamageMarkers),
		rng:     rng,
	}
}

// RecordDamage adds severity to each node, scaled by its rest-position
// distance from the group's centroid, and nudges the node inward/downward.
// One marker is appended at the centroid of the current positions.
func (t *DamageTracker) RecordDamage(nodes []int, severity float64) {
	if len(nodes) == 0 || severity <= 0 || math.IsNaN(severity) {
		return
	}
	maxDamage := t.body.material.MaxDamage

	valid := make([]int, 0, len(nodes))
	var restCentroid, centroid Vec3
	for _, i := range nodes {
		if !t.body.validNode(i) {
			continue
		}
		valid = append(valid, i)
		restCentroid = restCentroid.Plus(t.body.nodes[i].RestPosition)
		centroid = centroid.Plus(t.body.nodes[i].Position)
	}
	if len(valid) == 0 {
		return
	}
	inv := 1 / float64(len(valid))
	restCentroid = restCentroid.Times(inv)
	centroid = centroid.Times(inv)

	reach := t.body.spacing
	for _, i := range valid {
		if d := t.body.nodes[i].RestPosition.DistanceTo(restCentroid) + t.body.spacing; d > reach {
			reach = d
		}
	}

	for _, i := range valid {
		n := &t.body.nodes[i]
		falloff := math.Max(ProximityFalloffFloor, 1-n.RestPosition.DistanceTo(restCentroid)/reach)
		amount := severity * falloff

		before := t.levels[i]
		t.levels[i] = clamp(before+amount, 0, maxDamage)
		applied := t.levels[i] - before

		offset := NewVec3(
			(t.rng.Float64()-0.5)*0.5,
			-(0.5 + 0.5*t.rng.Float64()),
			(t.rng.Float64()-0.5)*0.5,
		)
		n.Position = n.Position.Plus(offset.Times(applied / maxDamage * DamageDisplacement * t.body.spacing))
	}

	t.markers = append(t.markers, DamageMarker{
		Position:  centroid,
		Severity:  clamp(severity, 0, maxDamage),
		CreatedAt: t.clock,
	})
	if excess := len(t.markers) - MaxDamageMarkers; excess > 0 {
		t.markers = append(t.markers[:0], t.markers[excess:]...)
	}
}

// Tick heals every damaged node by healingRate*dt, pulls it back toward its
// rest position, and ages the markers.
func (t *DamageTracker) Tick(dt float64) {
	if dt <= 0 || math.IsNaN(dt) || math.IsInf(dt, 0) {
		return
	}
	t.clock += dt

	m := t.body.material
	heal := m.HealingRate * dt
	for i, level := range t.levels {
		if level <= 0 {
			continue
		}
		n := &t.body.nodes[i]
		pull := n.RestPosition.Minus(n.Position).Times(m.Elasticity * RestoreStiffness * dt / n.Mass)
		n.Velocity = n.Velocity.Plus(pull)

		level -= heal
		if level <= DamagedThreshold {
			level = 0
		}
		t.levels[i] = level
	}

	kept := t.markers[:0]
	for _, mk := range t.markers {
		age := t.clock - mk.CreatedAt
		if age > MarkerMaxAge {
			continue
		}
		if age >= MarkerHealingAge {
			mk.Healing = true
		}
		kept = append(kept, mk)
	}
	t.markers = kept
}

// Level returns node i's current damage.
func (t *DamageTracker) Level(i int) float64 {
	if i < 0 || i >= len(t.levels) {
		return 0
	}
	return t.levels[i]
}

// Levels returns a copy of every node's damage.
func (t *DamageTracker) Levels() []float64 {
	out := make([]float64, len(t.levels))
	copy(out, t.levels)
	return out
}

// IsDamaged reports whether node i is above the damaged threshold.
func (t *DamageTracker) IsDamaged(i int) bool {
	return t.Level(i) > DamagedThreshold
}

// Markers returns the live markers, oldest first.
func (t *DamageTracker) Markers() []MarkerView {
	out := make([]MarkerView, len(t.markers))
	for i, mk := range t.markers {
		out[i] = MarkerView{
			Position: mk.Position,
			Severity: mk.Severity,
			Age:      t.clock - mk.CreatedAt,
			Healing:  mk.Healing,
		}
	}
	return out
}

func (t *DamageTracker) Region() RegionDamage {
	var r RegionDamage
	if len(t.levels) == 0 {
		return r
	}
	var sum float64
	for _, l := range t.levels {
		sum += l
		if l > r.Peak {
			r.Peak = l
		}
		if l > DamagedThreshold {
			r.DamagedNodes++
		}
	}
	r.Mean = sum / float64(len(t.levels))
	return r
}

// Clock returns the simulation time seen by the tracker, in seconds.
func (t *DamageTracker) Clock() float64 { return t.clock }

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
