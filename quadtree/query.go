package quadtree

import (
	"github.com/o0olele/quadnav/geometry"
	"github.com/o0olele/quadnav/math32"
)

// GetNodesInVolume returns every leaf whose box is not disjoint from the
// volume. Subtrees fully inside the volume are collected without further
// tests.
func (t *Tree) GetNodesInVolume(volume geometry.Volume) []*Node {
	var result []*Node
	t.queryVolume(0, volume, &result)
	return result
}

func (t *Tree) queryVolume(index int32, volume geometry.Volume, result *[]*Node) {
	n := &t.nodes[index]
	switch volume.ClassifyAABB(n.Bounds) {
	case geometry.Disjoint:
		return
	case geometry.Contains:
		t.collectLeaves(index, result)
		return
	}

	if n.IsLeaf() {
		*result = append(*result, n)
		return
	}
	for _, child := range n.Children {
		if child != None {
			t.queryVolume(child, volume, result)
		}
	}
}

func (t *Tree) collectLeaves(index int32, result *[]*Node) {
	n := &t.nodes[index]
	if n.IsLeaf() {
		*result = append(*result, n)
		return
	}
	for _, child := range n.Children {
		if child != None {
			t.collectLeaves(child, result)
		}
	}
}

// GetNode returns the leaf containing point, nil outside the tree. Points on
// a shared face go to the first matching child.
func (t *Tree) GetNode(point math32.Vector3) *Node {
	n := &t.nodes[0]
	if !n.Bounds.Contains(point) {
		return nil
	}

	for !n.IsLeaf() {
		next := None
		for _, child := range n.Children {
			if child != None && t.nodes[child].Bounds.Contains(point) {
				next = child
				break
			}
		}
		if next == None {
			return nil
		}
		n = &t.nodes[next]
	}
	return n
}

// GetLeafNodes returns all leaves in id order.
func (t *Tree) GetLeafNodes() []*Node {
	result := make([]*Node, len(t.leaves))
	for id, index := range t.leaves {
		result[id] = &t.nodes[index]
	}
	return result
}

// GetBoundingBoxes returns the boxes of all nodes in pre-order, not
// descending below maxDepth. maxDepth <= 0 walks down to the leaves.
func (t *Tree) GetBoundingBoxes(maxDepth int) []geometry.AABB {
	var boxes []geometry.AABB
	t.Walk(func(n *Node) bool {
		boxes = append(boxes, n.Bounds)
		return maxDepth <= 0 || int(n.Depth) < maxDepth
	})
	return boxes
}

// Walk visits nodes in pre-order. Returning false skips the node's children.
func (t *Tree) Walk(fn func(n *Node) bool) {
	t.walk(0, fn)
}

func (t *Tree) walk(index int32, fn func(n *Node) bool) {
	n := &t.nodes[index]
	if !fn(n) {
		return
	}
	for _, child := range n.Children {
		if child != None {
			t.walk(child, fn)
		}
	}
}
