package query

import (
	"github.com/o0olele/quadnav/geometry"
	"github.com/o0olele/quadnav/graph"
	"github.com/o0olele/quadnav/math32"
)

// Smooth returns a Catmull-Rom curve through the waypoints with segments
// samples per span. The curve passes through every waypoint; the end
// tangents are clamped by repeating the first and last point.
func (p *Path) Smooth(segments int) []math32.Vector3 {
	points := p.Waypoints()
	if segments <= 1 || len(points) <= 2 {
		return points
	}

	curve := make([]math32.Vector3, 0, (len(points)-1)*segments+1)
	for i := 0; i < len(points)-1; i++ {
		p0 := points[max(i-1, 0)]
		p1 := points[i]
		p2 := points[i+1]
		p3 := points[min(i+2, len(points)-1)]
		for s := 0; s < segments; s++ {
			t := float32(s) / float32(segments)
			curve = append(curve, catmullRom(p0, p1, p2, p3, t))
		}
	}
	return append(curve, points[len(points)-1])
}

func catmullRom(p0, p1, p2, p3 math32.Vector3, t float32) math32.Vector3 {
	t2 := t * t
	t3 := t2 * t
	a := p1.Scale(2)
	b := p2.Sub(p0).Scale(t)
	c := p0.Scale(2).Sub(p1.Scale(5)).Add(p2.Scale(4)).Sub(p3).Scale(t2)
	d := p1.Scale(3).Sub(p0).Sub(p2.Scale(3)).Add(p3).Scale(t3)
	return a.Add(b).Add(c).Add(d).Scale(0.5)
}

// Simplify drops waypoints that can be skipped in a straight line. From each
// kept point it jumps to the farthest later waypoint whose segment only
// crosses passable nodes of g, sampled every step units.
func (p *Path) Simplify(g graph.Graph, filter *QueryFilter, step float32) []math32.Vector3 {
	return lineOfSight(p.Waypoints(), g, filter, step)
}

// SimplifyCrossings is Simplify over CrossingPoints instead of Waypoints.
func (p *Path) SimplifyCrossings(g graph.Graph, filter *QueryFilter, step float32) []math32.Vector3 {
	return lineOfSight(p.CrossingPoints(), g, filter, step)
}

// CrossingPoints returns Start, the point where the route crosses from each
// node into the next, then End. Between cells that share an edge the
// crossing is where the segment joining their centers meets the shared part
// of that edge; diagonal cells cross at their common corner. Nodes without
// bounds cross halfway between their centers.
func (p *Path) CrossingPoints() []math32.Vector3 {
	points := make([]math32.Vector3, 0, len(p.Nodes)+1)
	points = append(points, p.Start)
	for i := 1; i < len(p.Nodes); i++ {
		points = append(points, crossingPoint(p.Nodes[i-1], p.Nodes[i]))
	}
	return append(points, p.End)
}

type boundedNode interface {
	Bounds() geometry.AABB
}

const crossingEpsilon = 1e-5

func crossingPoint(a, b graph.Node) math32.Vector3 {
	from, to := a.Center(), b.Center()
	halfway := from.Lerp(to, 0.5)

	ba, okA := a.(boundedNode)
	bb, okB := b.(boundedNode)
	if !okA || !okB {
		return halfway
	}
	boundsA, boundsB := ba.Bounds(), bb.Bounds()

	// shared part of the two boxes on X/Z, zero width across the shared edge
	lo := boundsA.Min.MaxComponents(boundsB.Min)
	hi := boundsA.Max.MinComponents(boundsB.Max)
	if lo.X > hi.X+crossingEpsilon || lo.Z > hi.Z+crossingEpsilon {
		return halfway
	}

	dir := to.Sub(from)
	t := float32(0.5)
	switch {
	case hi.X-lo.X <= crossingEpsilon && math32.Abs(dir.X) > crossingEpsilon:
		t = (lo.X - from.X) / dir.X
	case hi.Z-lo.Z <= crossingEpsilon && math32.Abs(dir.Z) > crossingEpsilon:
		t = (lo.Z - from.Z) / dir.Z
	}

	point := from.Lerp(to, math32.Clamp(t, 0, 1))
	point.X = math32.Clamp(point.X, lo.X, hi.X)
	point.Z = math32.Clamp(point.Z, lo.Z, hi.Z)
	return point
}

func lineOfSight(points []math32.Vector3, g graph.Graph, filter *QueryFilter, step float32) []math32.Vector3 {
	if len(points) <= 2 {
		return points
	}
	if filter == nil {
		filter = NewQueryFilter()
	}
	step = math32.Max(step, 0.1)

	smoothed := []math32.Vector3{points[0]}
	current := 0
	for current < len(points)-1 {
		farthest := current
		for next := current + 1; next < len(points); next++ {
			if isPathClear(g, filter, points[current], points[next], step) {
				farthest = next
			}
		}
		if farthest == current {
			farthest = current + 1
		}

		smoothed = append(smoothed, points[farthest])
		current = farthest
	}
	return smoothed
}

// isPathClear samples the segment start-end and checks every sample lands in
// an open, passable node.
func isPathClear(g graph.Graph, filter *QueryFilter, start, end math32.Vector3, step float32) bool {
	direction := end.Sub(start)
	distance := direction.Length()
	if distance < 0.001 {
		return true
	}

	steps := math32.CeilToInt(distance / step)
	for i := 0; i <= steps; i++ {
		t := float32(i) / float32(steps)
		sample := start.Lerp(end, t)
		n := g.FindNode(sample)
		if n == nil || n.State() == graph.StateClosed || !filter.IsPassable(n) {
			return false
		}
	}
	return true
}
