package graph

import (
	"errors"
	"fmt"
	"math"
	"sync/atomic"

	"github.com/o0olele/quadnav/geometry"
	"github.com/o0olele/quadnav/math32"
	"github.com/o0olele/quadnav/quadtree"
)

var (
	ErrUnknownCell  = errors.New("graph: unknown cell")
	ErrNegativeCost = errors.New("graph: cost must not be negative")
)

// Cell is a quadtree leaf exposed as a graph node. Attributes are atomic so
// obstacles can be toggled while searches run.
type Cell struct {
	id        int32
	bounds    geometry.AABB
	center    math32.Vector3
	neighbors [NeighborCount]Node

	state atomic.Int32
	cost  atomic.Uint32 // float32 bits
	flags atomic.Uint32
	area  atomic.Uint32
}

func (c *Cell) ID() int {
	return int(c.id)
}

func (c *Cell) Center() math32.Vector3 {
	return c.center
}

func (c *Cell) Bounds() geometry.AABB {
	return c.bounds
}

func (c *Cell) Cost() float32 {
	return math.Float32frombits(c.cost.Load())
}

func (c *Cell) State() State {
	return State(c.state.Load())
}

func (c *Cell) Flags() Flags {
	return Flags(c.flags.Load())
}

func (c *Cell) Area() Area {
	return Area(c.area.Load())
}

func (c *Cell) Neighbors() [NeighborCount]Node {
	return c.neighbors
}

func (c *Cell) String() string {
	return fmt.Sprintf("cell(%d)", c.id)
}

func (c *Cell) setCost(cost float32) {
	c.cost.Store(math.Float32bits(cost))
}

func (c *Cell) mark(area Area, flags Flags) {
	c.area.Store(uint32(area))
	c.flags.Store(uint32(flags))
}

// MarkedTriangle is a source triangle with the area and flags it stamps on
// the cells it touches.
type MarkedTriangle struct {
	Triangle geometry.Triangle `json:"triangle" yaml:"triangle" msgpack:"triangle"`
	Area     Area              `json:"area" yaml:"area" msgpack:"area"`
	Flags    Flags             `json:"flags" yaml:"flags" msgpack:"flags"`
}

// QuadGraph is a Graph over the leaves of a quadtree.
type QuadGraph struct {
	tree  *quadtree.Tree
	cells []*Cell
}

var _ Graph = (*QuadGraph)(nil)

// NewQuadGraph wraps every leaf of tree as a Cell. Neighbor slots mirror the
// leaf's neighbor links. Cells start clear, with zero cost and no flags.
func NewQuadGraph(tree *quadtree.Tree) *QuadGraph {
	leaves := tree.GetLeafNodes()
	g := &QuadGraph{
		tree:  tree,
		cells: make([]*Cell, len(leaves)),
	}
	for i, leaf := range leaves {
		g.cells[i] = &Cell{
			id:     leaf.ID,
			bounds: leaf.Bounds,
			center: leaf.Bounds.Center(),
		}
	}

	for i, leaf := range leaves {
		cell := g.cells[i]
		for d := quadtree.Direction(0); d < quadtree.NeighborCount; d++ {
			n := tree.Neighbor(leaf, d)
			if n == nil || !n.IsLeaf() {
				continue
			}
			cell.neighbors[d] = g.cells[n.ID]
		}
	}
	return g
}

// Tree returns the underlying quadtree.
func (g *QuadGraph) Tree() *quadtree.Tree {
	return g.tree
}

// Cells returns the cells in id order.
func (g *QuadGraph) Cells() []*Cell {
	return g.cells
}

// Cell returns the cell with the given id, nil if out of range.
func (g *QuadGraph) Cell(id int) *Cell {
	if id < 0 || id >= len(g.cells) {
		return nil
	}
	return g.cells[id]
}

// FindNode returns the cell containing position.
func (g *QuadGraph) FindNode(position math32.Vector3) Node {
	leaf := g.tree.GetNode(position)
	if leaf == nil {
		return nil
	}
	return g.cells[leaf.ID]
}

// AddTriangle stamps area and flags on every cell the triangle touches and
// returns how many cells were marked. Later triangles overwrite earlier ones.
func (g *QuadGraph) AddTriangle(tri geometry.Triangle, area Area, flags Flags) int {
	leaves := g.tree.GetNodesInVolume(tri)
	for _, leaf := range leaves {
		g.cells[leaf.ID].mark(area, flags)
	}
	return len(leaves)
}

// AddTriangles stamps a batch of triangles in order.
func (g *QuadGraph) AddTriangles(tris []MarkedTriangle) int {
	marked := 0
	for _, t := range tris {
		marked += g.AddTriangle(t.Triangle, t.Area, t.Flags)
	}
	return marked
}

// Fill stamps area and flags on every cell.
func (g *QuadGraph) Fill(area Area, flags Flags) {
	for _, c := range g.cells {
		c.mark(area, flags)
	}
}

// SetState changes a cell's traversal state.
func (g *QuadGraph) SetState(id int, state State) error {
	c := g.Cell(id)
	if c == nil {
		return fmt.Errorf("%w: %d", ErrUnknownCell, id)
	}
	c.state.Store(int32(state))
	return nil
}

// SetCost changes a cell's entry cost.
func (g *QuadGraph) SetCost(id int, cost float32) error {
	c := g.Cell(id)
	if c == nil {
		return fmt.Errorf("%w: %d", ErrUnknownCell, id)
	}
	if cost < 0 {
		return ErrNegativeCost
	}
	c.setCost(cost)
	return nil
}

// SetArea changes a single cell's area and flags.
func (g *QuadGraph) SetArea(id int, area Area, flags Flags) error {
	c := g.Cell(id)
	if c == nil {
		return fmt.Errorf("%w: %d", ErrUnknownCell, id)
	}
	c.mark(area, flags)
	return nil
}

// Counts returns how many cells are in each state.
func (g *QuadGraph) Counts() map[State]int {
	counts := make(map[State]int)
	for _, c := range g.cells {
		counts[c.State()]++
	}
	return counts
}
