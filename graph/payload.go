package graph

import (
	"errors"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/o0olele/quadnav/geometry"
	"github.com/o0olele/quadnav/quadtree"
)

// ErrPayloadMismatch is returned when stored cells do not fit the rebuilt tree.
var ErrPayloadMismatch = errors.New("graph: payload does not match tree layout")

type cellRecord struct {
	_msgpack struct{} `msgpack:",as_array"`
	ID       int32
	Cost     float32
	State    State
	Flags    Flags
	Area     Area
}

type quadGraphPayload struct {
	Bounds   geometry.AABB `msgpack:"bounds"`
	MaxDepth int           `msgpack:"max_depth"`
	Cells    []cellRecord  `msgpack:"cells"`
}

// MarshalBinary encodes the tree layout and per-cell attributes. Neighbor
// links are not stored; they are rebuilt on load.
func (g *QuadGraph) MarshalBinary() ([]byte, error) {
	payload := quadGraphPayload{
		Bounds:   g.tree.Bounds(),
		MaxDepth: g.tree.MaxDepth(),
		Cells:    make([]cellRecord, 0, len(g.cells)),
	}
	for _, c := range g.cells {
		payload.Cells = append(payload.Cells, cellRecord{
			ID:    c.id,
			Cost:  c.Cost(),
			State: c.State(),
			Flags: c.Flags(),
			Area:  c.Area(),
		})
	}

	data, err := msgpack.Marshal(&payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode quad graph: %w", err)
	}
	return data, nil
}

// UnmarshalQuadGraph rebuilds a QuadGraph from MarshalBinary output.
func UnmarshalQuadGraph(data []byte) (*QuadGraph, error) {
	var payload quadGraphPayload
	if err := msgpack.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("failed to decode quad graph: %w", err)
	}

	tree, err := quadtree.Build(payload.Bounds, payload.MaxDepth)
	if err != nil {
		return nil, fmt.Errorf("failed to rebuild quadtree: %w", err)
	}
	if len(payload.Cells) != tree.LeafCount() {
		return nil, fmt.Errorf("%w: %d cells for %d leaves", ErrPayloadMismatch, len(payload.Cells), tree.LeafCount())
	}

	g := NewQuadGraph(tree)
	seen := make([]bool, len(payload.Cells))
	for _, rec := range payload.Cells {
		c := g.Cell(int(rec.ID))
		if c == nil {
			return nil, fmt.Errorf("%w: cell %d", ErrPayloadMismatch, rec.ID)
		}
		if seen[rec.ID] {
			return nil, fmt.Errorf("%w: duplicate cell %d", ErrPayloadMismatch, rec.ID)
		}
		seen[rec.ID] = true
		c.state.Store(int32(rec.State))
		c.setCost(rec.Cost)
		c.mark(rec.Area, rec.Flags)
	}
	return g, nil
}
