package tissue

import "math"

// Cut severs every link touching a node that lies inside the slab around
// segment start→end: projection onto the segment within [0, length] and
// perpendicular distance below width. Links are deactivated, never removed.
// Returns the affected node indices in ascending order.
func (b *Body) Cut(start, end Vec3, width float64) []int {
	if width <= 0 || !start.IsFinite() || !end.IsFinite() {
		return nil
	}

	seg := end.Minus(start)
	length := seg.Magnitude()
	var dir Vec3
	if length > 0 {
		dir = seg.Times(1 / length)
	}

	var affected []int
	for i := range b.nodes {
		if nodeInSlab(b.nodes[i].Position, start, dir, length, width) {
			affected = append(affected, i)
		}
	}

	for _, i := range affected {
		for _, li := range b.nodeLinks[i] {
			b.links[li].Active = false
		}
	}

	return affected
}

// nodeInSlab tests p against the cylinder of radius width around the
// segment. A zero-length segment degenerates to a sphere test at start.
func nodeInSlab(p, start, dir Vec3, length, width float64) bool {
	rel := p.Minus(start)
	t := rel.Dot(dir)
	if t < 0 || t > length {
		return false
	}
	perp := rel.Minus(dir.Times(t))
	return perp.Magnitude() < width
}

// cutSegment returns the incision segment for a contact: it starts at the
// contact point and runs along the force direction.
func cutSegment(point, force Vec3) (Vec3, Vec3) {
	length := math.Min(force.Magnitude()*CutLengthScale, MaxCutLength)
	end := point.Plus(force.Normalize().Times(length))
	return point, end
}
