package quadtree

import (
	"context"
	"encoding/json"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/o0olele/quadnav/geometry"
	"github.com/o0olele/quadnav/math32"
)

func vec(x, y, z float32) math32.Vector3 {
	return math32.Vector3{X: x, Y: y, Z: z}
}

// testBounds is 8x8 on X/Z; at depth 2 every leaf is a 2x2 cell.
var testBounds = geometry.AABB{Min: vec(0, 0, 0), Max: vec(8, 1, 8)}

func mustBuild(t *testing.T, maxDepth int) *Tree {
	t.Helper()
	tree, err := Build(testBounds, maxDepth)
	require.NoError(t, err)
	return tree
}

func leafIDs(nodes []*Node) []int {
	ids := make([]int, 0, len(nodes))
	for _, n := range nodes {
		ids = append(ids, int(n.ID))
	}
	sort.Ints(ids)
	return ids
}

func TestBuild_RejectsBadInput(t *testing.T) {
	tests := []struct {
		name     string
		bounds   geometry.AABB
		maxDepth int
		want     error
	}{
		{"negative depth", testBounds, -1, ErrInvalidDepth},
		{"depth above ceiling", testBounds, MaxSupportedDepth + 1, ErrDepthTooLarge},
		{"flat on X", geometry.AABB{Min: vec(1, 0, 0), Max: vec(1, 1, 8)}, 2, ErrEmptyBounds},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tree, err := Build(tt.bounds, tt.maxDepth)
			assert.ErrorIs(t, err, tt.want)
			assert.Nil(t, tree)

			tree, err = BuildParallel(context.Background(), tt.bounds, tt.maxDepth)
			assert.ErrorIs(t, err, tt.want)
			assert.Nil(t, tree)
		})
	}
}

func TestBuild_DepthZeroIsSingleLeaf(t *testing.T) {
	tree := mustBuild(t, 0)

	require.Equal(t, 1, tree.NodeCount())
	require.Equal(t, 1, tree.LeafCount())
	root := tree.Root()
	assert.True(t, root.IsLeaf())
	assert.True(t, root.IsRoot())
	assert.Equal(t, int32(0), root.ID)
	for d := Direction(0); d < NeighborCount; d++ {
		assert.Nil(t, tree.Neighbor(root, d), d.String())
	}
	assert.Same(t, root, tree.GetNode(vec(4, 0.5, 4)))
}

func TestBuild_Structure(t *testing.T) {
	tree := mustBuild(t, 3)

	assert.Equal(t, 85, tree.NodeCount())
	assert.Equal(t, 64, tree.LeafCount())

	tree.Walk(func(n *Node) bool {
		if int(n.Depth) == tree.MaxDepth() {
			assert.True(t, n.IsLeaf())
			assert.GreaterOrEqual(t, n.ID, int32(0))
			for _, c := range n.Children {
				assert.Equal(t, None, c)
			}
			return true
		}

		assert.False(t, n.IsLeaf())
		assert.Equal(t, None, n.ID)

		var area float32
		for q, c := range n.Children {
			child := tree.Node(c)
			require.NotNil(t, child)
			assert.Equal(t, n.Index, child.Parent)
			assert.Equal(t, Quadrant(q), child.Quadrant)
			assert.True(t, n.Bounds.ContainsAABB(child.Bounds))
			size := child.Bounds.Size()
			area += size.X * size.Z
		}
		size := n.Bounds.Size()
		assert.InDelta(t, size.X*size.Z, area, 1e-4)
		return true
	})
}

func TestBuild_LeafIDOrder(t *testing.T) {
	tree := mustBuild(t, 1)

	want := []math32.Vector3{
		vec(2, 0.5, 2), // top-left: min X, min Z
		vec(6, 0.5, 2),
		vec(2, 0.5, 6),
		vec(6, 0.5, 6),
	}
	leaves := tree.GetLeafNodes()
	require.Len(t, leaves, 4)
	for i, leaf := range leaves {
		assert.Equal(t, int32(i), leaf.ID)
		assert.Equal(t, want[i], leaf.Bounds.Center())
		assert.Same(t, leaf, tree.Leaf(int32(i)))
	}
	assert.Nil(t, tree.Leaf(4))
	assert.Nil(t, tree.Leaf(-1))
}

func TestGetNode_ReturnsTheContainingLeaf(t *testing.T) {
	tree := mustBuild(t, 3)

	for _, leaf := range tree.GetLeafNodes() {
		c := leaf.Bounds.Center()
		assert.Same(t, leaf, tree.GetNode(c))

		matches := 0
		for _, other := range tree.GetLeafNodes() {
			if other.Bounds.Contains(c) {
				matches++
			}
		}
		assert.Equal(t, 1, matches)
	}

	assert.Nil(t, tree.GetNode(vec(-1, 0.5, 4)))
	assert.Nil(t, tree.GetNode(vec(4, 2, 4)))
}

var directionOffsets = [NeighborCount][2]float32{
	Top:                 {0, -1},
	Right:               {1, 0},
	Bottom:              {0, 1},
	Left:                {-1, 0},
	TopLeftDiagonal:     {-1, -1},
	TopRightDiagonal:    {1, -1},
	BottomLeftDiagonal:  {-1, 1},
	BottomRightDiagonal: {1, 1},
}

func TestConnectNodes_MatchesGridPositions(t *testing.T) {
	for depth := 1; depth <= 4; depth++ {
		tree := mustBuild(t, depth)
		cell := tree.Leaf(0).Bounds.Size()

		for _, leaf := range tree.GetLeafNodes() {
			c := leaf.Bounds.Center()
			for d := Direction(0); d < NeighborCount; d++ {
				off := directionOffsets[d]
				p := vec(c.X+off[0]*cell.X, c.Y, c.Z+off[1]*cell.Z)
				want := tree.GetNode(p)
				got := tree.Neighbor(leaf, d)
				if want == nil {
					assert.Nil(t, got, "depth %d leaf %d %s", depth, leaf.ID, d)
					continue
				}
				assert.Same(t, want, got, "depth %d leaf %d %s", depth, leaf.ID, d)
			}
		}
	}
}

func TestConnectNodes_Symmetric(t *testing.T) {
	tree := mustBuild(t, 4)

	tree.Walk(func(n *Node) bool {
		for d := Direction(0); d < NeighborCount; d++ {
			other := tree.Neighbor(n, d)
			if other == nil {
				continue
			}
			assert.Equal(t, n.Depth, other.Depth)
			back := tree.Neighbor(other, d.Opposite())
			assert.Same(t, n, back, "node %d %s", n.Index, d)
		}
		return true
	})
}

func TestConnectNodes_Idempotent(t *testing.T) {
	tree := mustBuild(t, 3)
	before := make([]Node, len(tree.nodes))
	copy(before, tree.nodes)

	tree.ConnectNodes()
	assert.Equal(t, before, tree.nodes)
}

func TestFindCardinal_BudgetStopsClimb(t *testing.T) {
	tree := mustBuild(t, 2)

	// Leaf 3 is the bottom-right cell of the top-left quadrant; its right
	// neighbor needs one climb.
	leaf := tree.Leaf(3)
	assert.NotEqual(t, None, tree.findCardinal(leaf.Index, Right, int(leaf.Depth)))
	assert.Equal(t, None, tree.findCardinal(leaf.Index, Right, 1))
}

func TestBuildParallel_MatchesSequential(t *testing.T) {
	for depth := 0; depth <= 5; depth++ {
		seq, err := Build(testBounds, depth)
		require.NoError(t, err)
		par, err := BuildParallel(context.Background(), testBounds, depth)
		require.NoError(t, err)

		assert.Equal(t, seq.maxDepth, par.maxDepth)
		assert.Equal(t, seq.leaves, par.leaves, "depth %d", depth)
		assert.Equal(t, seq.nodes, par.nodes, "depth %d", depth)
	}
}

func TestBuildParallel_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	tree, err := BuildParallel(ctx, testBounds, 3)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, tree)
}

func TestGetNodesInVolume(t *testing.T) {
	tree := mustBuild(t, 2)
	identity := [16]float32{1, 0, 0, 0, 0, 1, 0, 0, 0, 0, 1, 0, 0, 0, 0, 1}

	tests := []struct {
		name   string
		volume geometry.Volume
		want   []int
	}{
		{
			name:   "box over the top-left quadrant",
			volume: geometry.Box{Center: vec(2, 0.5, 2), Size: vec(3, 1, 3)},
			want:   []int{0, 1, 2, 3},
		},
		{
			name:   "sphere inside one cell",
			volume: geometry.Sphere{Center: vec(1, 0.5, 1), Radius: 0.5},
			want:   []int{0},
		},
		{
			name:   "box far away",
			volume: geometry.Box{Center: vec(20, 0.5, 20), Size: vec(1, 1, 1)},
			want:   []int{},
		},
		{
			name:   "whole tree",
			volume: geometry.AABB{Min: vec(-1, -1, -1), Max: vec(9, 2, 9)},
			want:   []int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15},
		},
		{
			name: "triangle in one cell",
			volume: geometry.Triangle{
				A: vec(6.5, 0.5, 6.5),
				B: vec(7.5, 0.5, 6.5),
				C: vec(6.5, 0.5, 7.5),
			},
			want: []int{15},
		},
		{
			name:   "identity frustum is the unit clip cube",
			volume: geometry.NewFrustumFromMatrix(identity),
			want:   []int{0},
		},
		{
			name: "slanted frustum",
			volume: geometry.Frustum{Planes: [6]geometry.Plane{
				geometry.NewPlane(vec(1, 0, 0), vec(4.5, 0, 0)),
				geometry.NewPlane(vec(-1, 0, 1), vec(4.5, 0, 3)), // x <= z+1.5
				geometry.NewPlane(vec(0, 1, 0), vec(0, -1, 0)),
				geometry.NewPlane(vec(0, -1, 0), vec(0, 2, 0)),
				geometry.NewPlane(vec(0, 0, 1), vec(0, 0, 2.5)),
				geometry.NewPlane(vec(0, 0, -1), vec(0, 0, 3.5)),
			}},
			want: []int{6},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tree.GetNodesInVolume(tt.volume)
			assert.Equal(t, tt.want, leafIDs(got))
			for _, n := range got {
				assert.True(t, n.IsLeaf())
			}
		})
	}
}

func TestGetBoundingBoxes(t *testing.T) {
	tree := mustBuild(t, 2)

	assert.Len(t, tree.GetBoundingBoxes(0), 21)
	assert.Len(t, tree.GetBoundingBoxes(-3), 21)
	assert.Len(t, tree.GetBoundingBoxes(1), 5)
	assert.Len(t, tree.GetBoundingBoxes(2), 21)
	assert.Len(t, tree.GetBoundingBoxes(7), 21)
	assert.Equal(t, testBounds, tree.GetBoundingBoxes(1)[0])
}

func TestToJSON(t *testing.T) {
	tree := mustBuild(t, 2)

	data, err := tree.ToJSON(1)
	require.NoError(t, err)

	var export TreeExport
	require.NoError(t, json.Unmarshal(data, &export))
	assert.Equal(t, 2, export.MaxDepth)
	assert.Equal(t, 16, export.Leaves)
	require.NotNil(t, export.Root)
	assert.Len(t, export.Root.Children, 4)
	assert.Empty(t, export.Root.Children[0].Children)
}
