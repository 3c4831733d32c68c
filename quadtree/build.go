package quadtree

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/o0olele/quadnav/geometry"
)

// MaxSupportedDepth bounds the arena size: depth 10 is about 1.4M nodes.
const MaxSupportedDepth = 10

var (
	ErrInvalidDepth  = errors.New("quadtree: max depth must not be negative")
	ErrDepthTooLarge = fmt.Errorf("quadtree: max depth exceeds %d", MaxSupportedDepth)
	ErrEmptyBounds   = errors.New("quadtree: bounds have no area on X/Z")
)

var tracer = otel.Tracer("github.com/o0olele/quadnav/quadtree")

func validate(bounds geometry.AABB, maxDepth int) error {
	if maxDepth < 0 {
		return ErrInvalidDepth
	}
	if maxDepth > MaxSupportedDepth {
		return ErrDepthTooLarge
	}
	if bounds.IsEmpty() {
		return ErrEmptyBounds
	}
	return nil
}

// pow4 returns 4^n.
func pow4(n int) int {
	return 1 << (2 * n)
}

// subtreeSize is the node count of a full subtree of the given height.
func subtreeSize(height int) int {
	return (pow4(height+1) - 1) / 3
}

// Build subdivides bounds down to maxDepth and links neighbors. Leaves get
// ids in depth-first TL, TR, BL, BR order.
func Build(bounds geometry.AABB, maxDepth int) (*Tree, error) {
	if err := validate(bounds, maxDepth); err != nil {
		return nil, err
	}

	t := &Tree{
		nodes:    make([]Node, 0, subtreeSize(maxDepth)),
		leaves:   make([]int32, 0, pow4(maxDepth)),
		maxDepth: maxDepth,
	}
	var counter int32
	t.buildNode(bounds, 0, None, NoQuadrant, &counter)
	t.ConnectNodes()
	return t, nil
}

func (t *Tree) buildNode(bounds geometry.AABB, depth int, parent int32, q Quadrant, counter *int32) int32 {
	index := int32(len(t.nodes))
	t.nodes = append(t.nodes, newNode(index, bounds, depth, parent, q))

	if depth == t.maxDepth {
		t.nodes[index].ID = *counter
		t.leaves = append(t.leaves, index)
		*counter++
		return index
	}

	quads := bounds.Quadrants()
	for i := range quads {
		child := t.buildNode(quads[i], depth+1, index, Quadrant(i), counter)
		t.nodes[index].Children[i] = child
	}
	return index
}

// BuildParallel produces the same tree as Build. Arena indexes and leaf ids
// of every subtree are computed up front, so the four root subtrees are
// filled concurrently without a shared counter.
func BuildParallel(ctx context.Context, bounds geometry.AABB, maxDepth int) (*Tree, error) {
	if err := validate(bounds, maxDepth); err != nil {
		return nil, err
	}

	_, span := tracer.Start(ctx, "quadtree.BuildParallel",
		trace.WithAttributes(attribute.Int("max_depth", maxDepth)))
	defer span.End()

	t := &Tree{
		nodes:    make([]Node, subtreeSize(maxDepth)),
		leaves:   make([]int32, pow4(maxDepth)),
		maxDepth: maxDepth,
	}

	t.nodes[0] = newNode(0, bounds, 0, None, NoQuadrant)
	if maxDepth == 0 {
		t.nodes[0].ID = 0
		t.leaves[0] = 0
		t.ConnectNodes()
		return t, nil
	}

	quads := bounds.Quadrants()
	childSize := subtreeSize(maxDepth - 1)
	childLeaves := pow4(maxDepth - 1)

	g, gctx := errgroup.WithContext(ctx)
	for i := range quads {
		index := int32(1 + i*childSize)
		leafBase := int32(i * childLeaves)
		t.nodes[0].Children[i] = index
		box := quads[i]
		q := Quadrant(i)
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			t.fillNode(index, box, 1, 0, q, leafBase)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to build quadtree: %w", err)
	}

	t.ConnectNodes()
	return t, nil
}

func (t *Tree) fillNode(index int32, bounds geometry.AABB, depth int, parent int32, q Quadrant, leafBase int32) {
	t.nodes[index] = newNode(index, bounds, depth, parent, q)

	if depth == t.maxDepth {
		t.nodes[index].ID = leafBase
		t.leaves[leafBase] = index
		return
	}

	quads := bounds.Quadrants()
	childSize := int32(subtreeSize(t.maxDepth - depth - 1))
	childLeaves := int32(pow4(t.maxDepth - depth - 1))
	for i := range quads {
		child := index + 1 + int32(i)*childSize
		t.nodes[index].Children[i] = child
		t.fillNode(child, quads[i], depth+1, index, Quadrant(i), leafBase+int32(i)*childLeaves)
	}
}
