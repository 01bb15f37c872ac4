package tissue

import (
	"errors"
	"math"
	"testing"
)

// newTestBody builds an n×n×n skin body of edge length size centred on the origin.
func newTestBody(t *testing.T, n int, size float64) *Body {
	t.Helper()
	skin, err := DefaultMaterials().Lookup(MaterialSkin)
	if err != nil {
		t.Fatalf("lookup skin: %v", err)
	}
	b, err := NewBody(Vec3{}, NewVec3(size, size, size), GridResolution{n, n, n}, skin)
	if err != nil {
		t.Fatalf("NewBody: %v", err)
	}
	return b
}

func expectedNeighbours(res GridResolution, x, y, z int) int {
	n := 0
	for _, c := range [][2]int{{x, res.X}, {y, res.Y}, {z, res.Z}} {
		if c[0] > 0 {
			n++
		}
		if c[0] < c[1]-1 {
			n++
		}
	}
	return n
}

func TestLatticeNodeAndLinkCounts(t *testing.T) {
	skin, _ := DefaultMaterials().Lookup(MaterialSkin)
	res := GridResolution{4, 3, 5}
	b, err := NewBody(Vec3{}, NewVec3(3, 2, 4), res, skin)
	if err != nil {
		t.Fatalf("NewBody: %v", err)
	}

	if b.NodeCount() != 60 {
		t.Errorf("expected 60 nodes, got %d", b.NodeCount())
	}
	// (nx-1)·ny·nz + nx·(ny-1)·nz + nx·ny·(nz-1)
	wantLinks := 3*3*5 + 4*2*5 + 4*3*4
	if b.LinkCount() != wantLinks || b.ActiveLinkCount() != wantLinks {
		t.Errorf("expected %d links, got %d (active %d)", wantLinks, b.LinkCount(), b.ActiveLinkCount())
	}

	for i := 0; i < b.NodeCount(); i++ {
		x, y, z := b.Coords(i)
		if b.Index(x, y, z) != i {
			t.Fatalf("index/coords mismatch at %d", i)
		}
		if got, want := len(b.LinksOf(i)), expectedNeighbours(res, x, y, z); got != want {
			t.Errorf("node (%d,%d,%d): expected %d links, got %d", x, y, z, want, got)
		}
	}
}

func TestInteriorNodeHasSixLinks(t *testing.T) {
	b := newTestBody(t, 3, 2)

	if got := len(b.LinksOf(b.Index(1, 1, 1))); got != 6 {
		t.Errorf("centre node: expected 6 links, got %d", got)
	}
	if got := len(b.LinksOf(b.Index(0, 0, 0))); got != 3 {
		t.Errorf("corner node: expected 3 links, got %d", got)
	}
	if got := len(b.LinksOf(b.Index(1, 0, 0))); got != 4 {
		t.Errorf("edge node: expected 4 links, got %d", got)
	}
	if got := len(b.LinksOf(b.Index(1, 1, 0))); got != 5 {
		t.Errorf("face node: expected 5 links, got %d", got)
	}
}

func TestLatticeSpacingAndMass(t *testing.T) {
	b := newTestBody(t, 5, 1)

	if math.Abs(b.Spacing()-0.25) > 1e-12 {
		t.Errorf("expected spacing 0.25, got %v", b.Spacing())
	}
	wantMass := 1.10 * MassScale / 125
	if math.Abs(b.Node(0).Mass-wantMass) > 1e-12 {
		t.Errorf("expected mass %v, got %v", wantMass, b.Node(0).Mass)
	}
	if b.Node(0).Damping != 0.30 {
		t.Errorf("expected node damping 0.30, got %v", b.Node(0).Damping)
	}
	l := b.Link(0)
	if math.Abs(l.RestLength-0.25) > 1e-12 {
		t.Errorf("expected rest length 0.25, got %v", l.RestLength)
	}
	if l.Stiffness != 0.80*StiffnessScale || l.Damping != 0.30*DampingScale {
		t.Errorf("unexpected link constants: %+v", l)
	}

	// Lattice is centred on the origin.
	first, last := b.Node(0).RestPosition, b.Node(b.NodeCount()-1).RestPosition
	if first.Plus(last).Magnitude() > 1e-12 {
		t.Errorf("lattice not centred: first=%v last=%v", first, last)
	}
}

func TestHighResolutionMassIsFloored(t *testing.T) {
	b := newTestBody(t, 20, 1)
	if b.Node(0).Mass != MinNodeMass {
		t.Errorf("expected floored mass %v, got %v", MinNodeMass, b.Node(0).Mass)
	}
}

func TestConstructionRejectsInvalidParameters(t *testing.T) {
	skin, _ := DefaultMaterials().Lookup(MaterialSkin)
	cases := []struct {
		name string
		size Vec3
		res  GridResolution
		want error
	}{
		{"zero resolution", NewVec3(1, 1, 1), GridResolution{0, 3, 3}, ErrInvalidResolution},
		{"negative resolution", NewVec3(1, 1, 1), GridResolution{3, -1, 3}, ErrInvalidResolution},
		{"too many nodes", NewVec3(1, 1, 1), GridResolution{100, 100, 100}, ErrInvalidResolution},
		{"product wraps int", NewVec3(1, 1, 1), GridResolution{1 << 32, 1 << 32, 1}, ErrInvalidResolution},
		{"huge on every axis", NewVec3(1, 1, 1), GridResolution{1 << 21, 1 << 21, 1 << 21}, ErrInvalidResolution},
		{"one huge axis", NewVec3(1, 1, 1), GridResolution{1, 1, MaxGridNodes + 1}, ErrInvalidResolution},
		{"zero size", NewVec3(1, 0, 1), GridResolution{3, 3, 3}, ErrInvalidSize},
		{"negative size", NewVec3(-1, 1, 1), GridResolution{3, 3, 3}, ErrInvalidSize},
		{"nan size", NewVec3(math.NaN(), 1, 1), GridResolution{3, 3, 3}, ErrInvalidSize},
	}
	for _, tc := range cases {
		b, err := NewBody(Vec3{}, tc.size, tc.res, skin)
		if b != nil {
			t.Errorf("%s: expected no body", tc.name)
		}
		if !errors.Is(err, tc.want) {
			t.Errorf("%s: expected %v, got %v", tc.name, tc.want, err)
		}
	}

	if _, err := NewBody(Vec3{}, NewVec3(1, 1, 1), GridResolution{2, 2, 2}, MaterialProfile{Name: "void"}); !errors.Is(err, ErrInvalidMaterial) {
		t.Errorf("expected ErrInvalidMaterial, got %v", err)
	}
}

func TestResolutionAtNodeLimitIsAccepted(t *testing.T) {
	if !(GridResolution{64, 64, 64}).within(MaxGridNodes) {
		t.Errorf("64x64x64 should fit the node limit")
	}
	if !(GridResolution{1, 1, MaxGridNodes}).within(MaxGridNodes) {
		t.Errorf("a single row of MaxGridNodes should fit")
	}
	if (GridResolution{64, 64, 65}).within(MaxGridNodes) {
		t.Errorf("64x64x65 should exceed the node limit")
	}
}

func TestRestBodyStaysAtRest(t *testing.T) {
	b := newTestBody(t, 5, 1)

	for i := 0; i < 600; i++ {
		b.Step(FixedTimestep)
	}

	for i := 0; i < b.NodeCount(); i++ {
		n := b.Node(i)
		if d := n.Position.DistanceTo(n.RestPosition); d > 1e-9 {
			t.Fatalf("node %d drifted %g from rest", i, d)
		}
	}
}

func TestApplyForceAtPointIsLocal(t *testing.T) {
	b := newTestBody(t, 5, 1)
	point := b.Node(b.Index(0, 0, 0)).Position
	radius := b.Spacing() * 1.5

	b.ApplyForceAtPoint(NewVec3(0, -20, 0), point, radius)

	touched := 0
	for i := 0; i < b.NodeCount(); i++ {
		n := b.Node(i)
		d := n.Position.DistanceTo(point)
		if d > radius && !n.Velocity.IsZero() {
			t.Errorf("node %d at distance %.3f outside radius %.3f gained velocity %v", i, d, radius, n.Velocity)
		}
		if d < radius && n.Velocity.Y >= 0 {
			t.Errorf("node %d inside radius did not move down: %v", i, n.Velocity)
		}
		if d < radius {
			touched++
		}
	}
	// Corner, its three axis neighbours and three face diagonals.
	if touched != 7 {
		t.Errorf("expected 7 nodes in range, got %d", touched)
	}
}

func TestApplyForceFalloffIsLinear(t *testing.T) {
	b := newTestBody(t, 5, 1)
	centre := b.Index(2, 2, 2)
	neighbour := b.Index(3, 2, 2)
	radius := b.Spacing() * 2

	b.ApplyForceAtPoint(NewVec3(10, 0, 0), b.Node(centre).Position, radius)

	vc := b.Node(centre).Velocity.X
	vn := b.Node(neighbour).Velocity.X
	if math.Abs(vn/vc-0.5) > 1e-9 {
		t.Errorf("expected neighbour to get half the impulse, ratio %v", vn/vc)
	}
}

func TestApplyForceFarAwayIsNoop(t *testing.T) {
	b := newTestBody(t, 3, 1)
	b.ApplyForceAtPoint(NewVec3(100, 100, 100), NewVec3(50, 50, 50), 1)
	for _, s := range b.Snapshot() {
		if !s.Velocity.IsZero() {
			t.Fatalf("expected no velocity change, got %v", s.Velocity)
		}
	}
}

func TestDisplacedNodeRelaxes(t *testing.T) {
	b := newTestBody(t, 5, 1)
	i := b.Index(2, 4, 2)
	b.nodes[i].Position.Y += 0.2 * b.Spacing()

	for s := 0; s < 1200; s++ {
		b.Step(FixedTimestep)
	}

	below := b.Index(2, 3, 2)
	gap := b.Node(i).Position.DistanceTo(b.Node(below).Position)
	if math.Abs(gap-b.Spacing()) > 0.01*b.Spacing() {
		t.Errorf("link did not relax: gap=%.5f spacing=%.5f", gap, b.Spacing())
	}
}

func TestStepClampsExtremeInput(t *testing.T) {
	b := newTestBody(t, 4, 1)
	b.ApplyForceAtPoint(NewVec3(1e12, -1e12, 1e12), b.Node(0).Position, b.Spacing()*3)

	before := b.Snapshot()
	b.Step(10)
	after := b.Snapshot()

	maxDisp := b.Spacing() * MaxDisplacementPerStep
	for i := range after {
		if !after[i].Position.IsFinite() || !after[i].Velocity.IsFinite() {
			t.Fatalf("node %d diverged: %+v", i, after[i])
		}
		if d := after[i].Position.DistanceTo(before[i].Position); d > maxDisp+1e-9 {
			t.Errorf("node %d moved %g, cap %g", i, d, maxDisp)
		}
	}

	for s := 0; s < 100; s++ {
		b.Step(FixedTimestep)
	}
	for i, n := range b.Snapshot() {
		if !n.Position.IsFinite() {
			t.Fatalf("node %d diverged after recovery steps", i)
		}
	}
}

func TestStepIgnoresInvalidTimestep(t *testing.T) {
	b := newTestBody(t, 3, 1)
	b.ApplyForceAtPoint(NewVec3(5, 0, 0), b.Node(0).Position, b.Spacing())
	before := b.Snapshot()

	b.Step(0)
	b.Step(-1)
	b.Step(math.NaN())

	for i, s := range b.Snapshot() {
		if s != before[i] {
			t.Fatalf("node %d changed on invalid timestep", i)
		}
	}
}

func TestSnapshotStressIsSpeed(t *testing.T) {
	b := newTestBody(t, 3, 1)
	b.nodes[4].Velocity = NewVec3(3, 4, 0)

	snap := b.Snapshot()
	if len(snap) != b.NodeCount() {
		t.Fatalf("expected %d entries, got %d", b.NodeCount(), len(snap))
	}
	if snap[4].Stress != 5 {
		t.Errorf("expected stress 5, got %v", snap[4].Stress)
	}
	if snap[0].Stress != 0 {
		t.Errorf("expected zero stress at rest, got %v", snap[0].Stress)
	}
}
