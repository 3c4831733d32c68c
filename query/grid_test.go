package query

import (
	"github.com/o0olele/quadnav/graph"
	"github.com/o0olele/quadnav/math32"
)

// gridNode is a unit cell of a test grid centered at (x, 0, z).
type gridNode struct {
	id        int
	center    math32.Vector3
	state     graph.State
	flags     graph.Flags
	area      graph.Area
	cost      float32
	neighbors [graph.NeighborCount]graph.Node
}

func (n *gridNode) ID() int                                    { return n.id }
func (n *gridNode) Center() math32.Vector3                     { return n.center }
func (n *gridNode) Cost() float32                              { return n.cost }
func (n *gridNode) State() graph.State                         { return n.state }
func (n *gridNode) Flags() graph.Flags                         { return n.flags }
func (n *gridNode) Area() graph.Area                           { return n.area }
func (n *gridNode) Neighbors() [graph.NeighborCount]graph.Node { return n.neighbors }

// gridGraph is a width x height grid with unit spacing. Connectivity is
// fixed at construction: 4 orthogonal links, plus 4 diagonals if asked.
type gridGraph struct {
	width, height int
	nodes         []*gridNode
}

func newGridGraph(width, height int, diagonal bool) *gridGraph {
	g := &gridGraph{width: width, height: height}
	for z := 0; z < height; z++ {
		for x := 0; x < width; x++ {
			g.nodes = append(g.nodes, &gridNode{
				id:     z*width + x,
				center: math32.Vector3{X: float32(x), Z: float32(z)},
				flags:  graph.FlagWalk,
				area:   graph.AreaGround,
			})
		}
	}

	offsets := [graph.NeighborCount][2]int{
		{0, -1}, {1, 0}, {0, 1}, {-1, 0}, // top, right, bottom, left
		{-1, -1}, {1, -1}, {-1, 1}, {1, 1},
	}
	for _, n := range g.nodes {
		x, z := n.id%width, n.id/width
		for slot, off := range offsets {
			if slot >= 4 && !diagonal {
				break
			}
			if other := g.at(x+off[0], z+off[1]); other != nil {
				n.neighbors[slot] = other
			}
		}
	}
	return g
}

func (g *gridGraph) at(x, z int) *gridNode {
	if x < 0 || z < 0 || x >= g.width || z >= g.height {
		return nil
	}
	return g.nodes[z*g.width+x]
}

func (g *gridGraph) FindNode(pos math32.Vector3) graph.Node {
	n := g.at(int(pos.X+0.5), int(pos.Z+0.5))
	if n == nil || pos.X < -0.5 || pos.Z < -0.5 {
		return nil
	}
	return n
}

func pos(x, z float32) math32.Vector3 {
	return math32.Vector3{X: x, Z: z}
}
