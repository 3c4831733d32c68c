package quadtree

import (
	"encoding/json"

	"github.com/o0olele/quadnav/geometry"
)

// TreeExport is the JSON form of a tree.
type TreeExport struct {
	Root     *NodeExport `json:"root"`
	MaxDepth int         `json:"max_depth"`
	Leaves   int         `json:"leaves"`
}

type NodeExport struct {
	ID       int32         `json:"id"`
	Bounds   geometry.AABB `json:"bounds"`
	Children []*NodeExport `json:"children,omitempty"`
	IsLeaf   bool          `json:"is_leaf"`
	Depth    uint8         `json:"depth"`
}

// ToJSON exports the tree down to maxDepth (<= 0 for all levels).
func (t *Tree) ToJSON(maxDepth int) ([]byte, error) {
	export := &TreeExport{
		Root:     t.nodeToExport(0, maxDepth),
		MaxDepth: t.maxDepth,
		Leaves:   len(t.leaves),
	}
	return json.Marshal(export)
}

func (t *Tree) nodeToExport(index int32, maxDepth int) *NodeExport {
	n := &t.nodes[index]
	export := &NodeExport{
		ID:     n.ID,
		Bounds: n.Bounds,
		IsLeaf: n.IsLeaf(),
		Depth:  n.Depth,
	}

	if maxDepth > 0 && int(n.Depth) >= maxDepth {
		return export
	}
	for _, child := range n.Children {
		if child != None {
			export.Children = append(export.Children, t.nodeToExport(child, maxDepth))
		}
	}
	return export
}
