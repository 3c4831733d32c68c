// Package quadtree partitions a box into a uniform quadtree stored in a flat
// arena. Parent, child and neighbor relations are arena indexes; -1 means
// "no node".
package quadtree

import (
	"github.com/o0olele/quadnav/geometry"
)

// None marks an absent link or the id of an internal node.
const None int32 = -1

// Quadrant is the position of a node inside its parent.
type Quadrant int8

const (
	NoQuadrant  Quadrant = -1
	TopLeft     Quadrant = geometry.QuadTopLeft
	TopRight    Quadrant = geometry.QuadTopRight
	BottomLeft  Quadrant = geometry.QuadBottomLeft
	BottomRight Quadrant = geometry.QuadBottomRight
)

// Direction indexes the neighbor links. Cardinals come first.
type Direction int8

const (
	Top Direction = iota
	Right
	Bottom
	Left
	TopLeftDiagonal
	TopRightDiagonal
	BottomLeftDiagonal
	BottomRightDiagonal
)

// NeighborCount is the number of neighbor slots per node.
const NeighborCount = 8

var directionNames = [NeighborCount]string{"top", "right", "bottom", "left", "top_left", "top_right", "bottom_left", "bottom_right"}

func (d Direction) String() string {
	if d < 0 || int(d) >= NeighborCount {
		return "unknown"
	}
	return directionNames[d]
}

// Opposite returns the direction pointing back.
func (d Direction) Opposite() Direction {
	switch d {
	case Top:
		return Bottom
	case Bottom:
		return Top
	case Left:
		return Right
	case Right:
		return Left
	case TopLeftDiagonal:
		return BottomRightDiagonal
	case BottomRightDiagonal:
		return TopLeftDiagonal
	case TopRightDiagonal:
		return BottomLeftDiagonal
	case BottomLeftDiagonal:
		return TopRightDiagonal
	}
	return d
}

// Node is one box of the tree. Nodes are read-only once Build returns.
type Node struct {
	Index     int32                `json:"index"`
	ID        int32                `json:"id"` // leaf id, None for internal nodes
	Depth     uint8                `json:"depth"`
	Quadrant  Quadrant             `json:"quadrant"`
	Bounds    geometry.AABB        `json:"bounds"`
	Parent    int32                `json:"parent"`
	Children  [4]int32             `json:"children"`
	Neighbors [NeighborCount]int32 `json:"neighbors"`
}

// IsLeaf reports whether the node has no children.
func (n *Node) IsLeaf() bool {
	return n.ID != None
}

// IsRoot reports whether the node has no parent.
func (n *Node) IsRoot() bool {
	return n.Parent == None
}

func newNode(index int32, bounds geometry.AABB, depth int, parent int32, q Quadrant) Node {
	n := Node{
		Index:    index,
		ID:       None,
		Depth:    uint8(depth),
		Quadrant: q,
		Bounds:   bounds,
		Parent:   parent,
	}
	for i := range n.Children {
		n.Children[i] = None
	}
	for i := range n.Neighbors {
		n.Neighbors[i] = None
	}
	return n
}

// Tree is a built and linked quadtree.
type Tree struct {
	nodes    []Node
	leaves   []int32 // leaf id -> arena index
	maxDepth int
}

// MaxDepth returns the configured leaf depth.
func (t *Tree) MaxDepth() int {
	return t.maxDepth
}

// Bounds returns the root box.
func (t *Tree) Bounds() geometry.AABB {
	return t.nodes[0].Bounds
}

// Root returns the root node.
func (t *Tree) Root() *Node {
	return &t.nodes[0]
}

// NodeCount returns the number of nodes in the arena.
func (t *Tree) NodeCount() int {
	return len(t.nodes)
}

// LeafCount returns the number of leaves.
func (t *Tree) LeafCount() int {
	return len(t.leaves)
}

// Node returns the node at an arena index, nil for None or out of range.
func (t *Tree) Node(index int32) *Node {
	if index < 0 || int(index) >= len(t.nodes) {
		return nil
	}
	return &t.nodes[index]
}

// Leaf returns the leaf with the given id.
func (t *Tree) Leaf(id int32) *Node {
	if id < 0 || int(id) >= len(t.leaves) {
		return nil
	}
	return &t.nodes[t.leaves[id]]
}

// Parent returns the parent of n, nil at the root.
func (t *Tree) Parent(n *Node) *Node {
	return t.Node(n.Parent)
}

// Child returns the child of n in quadrant q, nil for leaves.
func (t *Tree) Child(n *Node, q Quadrant) *Node {
	if q < 0 || int(q) >= len(n.Children) {
		return nil
	}
	return t.Node(n.Children[q])
}

// Neighbor returns the neighbor of n in direction d, nil at the boundary.
func (t *Tree) Neighbor(n *Node, d Direction) *Node {
	if d < 0 || int(d) >= NeighborCount {
		return nil
	}
	return t.Node(n.Neighbors[d])
}
