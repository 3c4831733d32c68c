package query

import (
	"github.com/o0olele/quadnav/graph"
	"github.com/o0olele/quadnav/math32"
)

// Path is a solved route: the visited nodes from start to goal plus the
// positions the caller asked for.
type Path struct {
	Nodes []graph.Node
	Start math32.Vector3
	End   math32.Vector3
}

// Waypoints returns Start, every node center, then End.
func (p *Path) Waypoints() []math32.Vector3 {
	points := make([]math32.Vector3, 0, len(p.Nodes)+2)
	points = append(points, p.Start)
	for _, n := range p.Nodes {
		points = append(points, n.Center())
	}
	return append(points, p.End)
}

// IDs returns the ids of the visited nodes.
func (p *Path) IDs() []int {
	ids := make([]int, len(p.Nodes))
	for i, n := range p.Nodes {
		ids[i] = n.ID()
	}
	return ids
}

// Length is the total length of the waypoint polyline.
func (p *Path) Length() float32 {
	return polylineLength(p.Waypoints())
}

func polylineLength(points []math32.Vector3) float32 {
	var total float32
	for i := 1; i < len(points); i++ {
		total += points[i-1].Distance(points[i])
	}
	return total
}
