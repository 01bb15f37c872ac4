package tissue

import (
	"errors"
	"fmt"
	"math"
)

var (
	ErrInvalidResolution = errors.New("invalid grid resolution")
	ErrInvalidSize       = errors.New("invalid body size")
	ErrInvalidMaterial   = errors.New("invalid material profile")
)

// MaxGridNodes bounds the lattice allocation for a single body.
const MaxGridNodes = 64 * 64 * 64

// GridResolution is the node count along each axis.
type GridResolution struct {
	X int `json:"x"`
	Y int `json:"y"`
	Z int `json:"z"`
}

func (g GridResolution) Count() int {
	return g.X * g.Y * g.Z
}

// within reports whether X*Y*Z <= limit for positive axes, dividing
// instead of multiplying so huge axes cannot wrap.
func (g GridResolution) within(limit int) bool {
	if g.X > limit {
		return false
	}
	rest := limit / g.X
	if g.Y > rest {
		return false
	}
	return g.Z <= rest/g.Y
}

// ParticleNode is a point mass in the lattice.
type ParticleNode struct {
	Position     Vec3    `json:"position"`
	RestPosition Vec3    `json:"rest_position"`
	Velocity     Vec3    `json:"velocity"`
	Mass         float64 `json:"mass"`
	Damping      float64 `json:"damping"`
}

// SpringLink connects two nodes by index. Severed links stay in the slice
// so link indices remain stable.
type SpringLink struct {
	A          int     `json:"a"`
	B          int     `json:"b"`
	RestLength float64 `json:"rest_length"`
	Stiffness  float64 `json:"stiffness"`
	Damping    float64 `json:"damping"`
	Active     bool    `json:"active"`
}

// NodeState is one entry of a deformation snapshot.
type NodeState struct {
	Position Vec3    `json:"position"`
	Velocity Vec3    `json:"velocity"`
	Stress   float64 `json:"stress"` // |velocity|, a visualization proxy
}

// Body is a 3D lattice of particle nodes joined by spring links.
// It is not safe for concurrent use.
type Body struct {
	material   MaterialProfile
	resolution GridResolution
	origin     Vec3
	spacing    float64

	nodes     []ParticleNode
	links     []SpringLink
	nodeLinks [][]int // node index -> link indices touching it
	forces    []Vec3  // per-step accumulator, reused
}

// NewBody builds a lattice filling size around origin. It fails without
// allocating anything on invalid parameters.
func NewBody(origin, size Vec3, res GridResolution, material MaterialProfile) (*Body, error) {
	if res.X <= 0 || res.Y <= 0 || res.Z <= 0 {
		return nil, fmt.Errorf("%w: %dx%dx%d (every axis must be at least 1)", ErrInvalidResolution, res.X, res.Y, res.Z)
	}
	if !res.within(MaxGridNodes) {
		return nil, fmt.Errorf("%w: %dx%dx%d exceeds limit of %d nodes", ErrInvalidResolution, res.X, res.Y, res.Z, MaxGridNodes)
	}
	if !size.IsFinite() || size.X <= 0 || size.Y <= 0 || size.Z <= 0 {
		return nil, fmt.Errorf("%w: (%g, %g, %g) (every axis must be positive)", ErrInvalidSize, size.X, size.Y, size.Z)
	}
	if !origin.IsFinite() {
		return nil, fmt.Errorf("%w: origin is not finite", ErrInvalidSize)
	}
	if material.Density <= 0 || material.Elasticity < 0 || material.Damping < 0 || material.MaxDamage <= 0 {
		return nil, fmt.Errorf("%w: %q", ErrInvalidMaterial, material.Name)
	}

	spacing := latticeSpacing(size, res)
	count := res.Count()

	mass := material.Density * MassScale / float64(count)
	if mass < MinNodeMass {
		mass = MinNodeMass
	}

	b := &Body{
		material:   material,
		resolution: res,
		origin:     origin,
		spacing:    spacing,
		nodes:      make([]ParticleNode, count),
		nodeLinks:  make([][]int, count),
		forces:     make([]Vec3, count),
	}

	half := NewVec3(float64(res.X-1)/2, float64(res.Y-1)/2, float64(res.Z-1)/2)
	for z := 0; z < res.Z; z++ {
		for y := 0; y < res.Y; y++ {
			for x := 0; x < res.X; x++ {
				p := origin.Plus(NewVec3(
					(float64(x)-half.X)*spacing,
					(float64(y)-half.Y)*spacing,
					(float64(z)-half.Z)*spacing,
				))
				b.nodes[b.Index(x, y, z)] = ParticleNode{
					Position:     p,
					RestPosition: p,
					Mass:         mass,
					Damping:      material.Damping,
				}
			}
		}
	}

	b.links = make([]SpringLink, 0, 3*count)
	for z := 0; z < res.Z; z++ {
		for y := 0; y < res.Y; y++ {
			for x := 0; x < res.X; x++ {
				i := b.Index(x, y, z)
				if x+1 < res.X {
					b.addLink(i, b.Index(x+1, y, z))
				}
				if y+1 < res.Y {
					b.addLink(i, b.Index(x, y+1, z))
				}
				if z+1 < res.Z {
					b.addLink(i, b.Index(x, y, z+1))
				}
			}
		}
	}

	return b, nil
}

// latticeSpacing picks the uniform spacing that fits every multi-node axis.
func latticeSpacing(size Vec3, res GridResolution) float64 {
	spacing := math.Inf(1)
	axes := [3]struct {
		extent float64
		n      int
	}{{size.X, res.X}, {size.Y, res.Y}, {size.Z, res.Z}}
	for _, a := range axes {
		if a.n > 1 {
			spacing = math.Min(spacing, a.extent/float64(a.n-1))
		}
	}
	if math.IsInf(spacing, 1) {
		spacing = math.Min(size.X, math.Min(size.Y, size.Z))
	}
	return spacing
}

func (b *Body) addLink(a, c int) {
	// Rest length comes from the actual rest positions so the lattice
	// starts with zero extension.
	rest := b.nodes[a].RestPosition.DistanceTo(b.nodes[c].RestPosition)
	idx := len(b.links)
	b.links = append(b.links, SpringLink{
		A:          a,
		B:          c,
		RestLength: rest,
		Stiffness:  b.material.Elasticity * StiffnessScale,
		Damping:    b.material.Damping * DampingScale,
		Active:     true,
	})
	b.nodeLinks[a] = append(b.nodeLinks[a], idx)
	b.nodeLinks[c] = append(b.nodeLinks[c], idx)
}

// Index maps grid coordinates to a node index.
func (b *Body) Index(x, y, z int) int {
	return x + b.resolution.X*(y+b.resolution.Y*z)
}

// Coords maps a node index back to grid coordinates.
func (b *Body) Coords(i int) (x, y, z int) {
	x = i % b.resolution.X
	y = (i / b.resolution.X) % b.resolution.Y
	z = i / (b.resolution.X * b.resolution.Y)
	return x, y, z
}

func (b *Body) Material() MaterialProfile { return b.material }
func (b *Body) Resolution() GridResolution { return b.resolution }
func (b *Body) Origin() Vec3 { return b.origin }
func (b *Body) Spacing() float64 { return b.spacing }
func (b *Body) NodeCount() int { return len(b.nodes) }
func (b *Body) LinkCount() int { return len(b.links) }
func (b *Body) Node(i int) ParticleNode { return b.nodes[i] }
func (b *Body) Link(i int) SpringLink { return b.links[i] }
func (b *Body) IsSevered(link int) bool { return !b.links[link].Active }
func (b *Body) validNode(i int) bool { return i >= 0 && i < len(b.nodes) }

// ActiveLinkCount returns the number of links that have not been severed.
func (b *Body) ActiveLinkCount() int {
	n := 0
	for i := range b.links {
		if b.links[i].Active {
			n++
		}
	}
	return n
}

// LinksOf returns the indices of active links touching node i.
func (b *Body) LinksOf(i int) []int {
	out := make([]int, 0, len(b.nodeLinks[i]))
	for _, li := range b.nodeLinks[i] {
		if b.links[li].Active {
			out = append(out, li)
		}
	}
	return out
}

// Step advances the lattice by dt. Forces from every active link are
// accumulated first, then each node is integrated independently, so the
// result does not depend on link iteration order.
func (b *Body) Step(dt float64) {
	if dt <= 0 || math.IsNaN(dt) || math.IsInf(dt, 0) {
		return
	}

	for i := range b.forces {
		b.forces[i] = Vec3{}
	}

	for i := range b.links {
		l := &b.links[i]
		if !l.Active {
			continue
		}
		na, nb := &b.nodes[l.A], &b.nodes[l.B]
		delta := nb.Position.Minus(na.Position)
		length := delta.Magnitude()
		if length < MinLinkLength {
			continue
		}
		dir := delta.Times(1 / length)

		extension := length - l.RestLength
		relVel := nb.Velocity.Minus(na.Velocity).Dot(dir)
		magnitude := l.Stiffness*extension + l.Damping*relVel

		f := dir.Times(magnitude).ClampMagnitude(MaxLinkForce)
		b.forces[l.A] = b.forces[l.A].Plus(f)
		b.forces[l.B] = b.forces[l.B].Minus(f)
	}

	maxDisp := b.spacing * MaxDisplacementPerStep
	for i := range b.nodes {
		n := &b.nodes[i]
		f := b.forces[i]
		if f.IsZero() && n.Velocity.IsZero() {
			continue
		}

		v := n.Velocity.Plus(f.Times(dt / n.Mass))
		v = v.Times(math.Max(0, 1-n.Damping*dt))

		disp := v.Times(dt)
		if d := disp.Magnitude(); d > maxDisp {
			disp = disp.Times(maxDisp / d)
			v = disp.Times(1 / dt)
		}

		if !v.IsFinite() || !disp.IsFinite() {
			n.Velocity = Vec3{}
			continue
		}
		n.Velocity = v
		n.Position = n.Position.Plus(disp)
	}
}

// ApplyForceAtPoint pushes every node within radius of point by force,
// weighted by a linear falloff. The force acts over one fixed timestep.
func (b *Body) ApplyForceAtPoint(force, point Vec3, radius float64) {
	if radius <= 0 || !force.IsFinite() || !point.IsFinite() {
		return
	}
	for i := range b.nodes {
		n := &b.nodes[i]
		d := n.Position.DistanceTo(point)
		if d > radius {
			continue
		}
		w := math.Max(0, 1-d/radius)
		if w == 0 {
			continue
		}
		n.Velocity = n.Velocity.Plus(force.Times(w * FixedTimestep / n.Mass))
	}
}

// touches reports whether any node lies within radius of point.
func (b *Body) touches(point Vec3, radius float64) bool {
	if radius <= 0 || !point.IsFinite() {
		return false
	}
	for i := range b.nodes {
		if b.nodes[i].Position.DistanceTo(point) < radius {
			return true
		}
	}
	return false
}

// Snapshot returns position, velocity and stress for every node.
func (b *Body) Snapshot() []NodeState {
	out := make([]NodeState, len(b.nodes))
	for i := range b.nodes {
		n := &b.nodes[i]
		out[i] = NodeState{
			Position: n.Position,
			Velocity: n.Velocity,
			Stress:   n.Velocity.Magnitude(),
		}
	}
	return out
}
