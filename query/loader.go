package query

import (
	"context"
	"fmt"

	"github.com/o0olele/quadnav/builder"
	"github.com/o0olele/quadnav/graph"
	"github.com/o0olele/quadnav/math32"
)

// Navigator pairs a loaded graph with a solver.
type Navigator struct {
	Graph  *graph.QuadGraph
	Solver *Solver
}

// FindPath searches the navigator's graph.
func (n *Navigator) FindPath(ctx context.Context, start, end math32.Vector3, h Heuristic, weight float32) (*Path, bool) {
	return n.Solver.FindPath(ctx, n.Graph, start, end, h, weight)
}

// LoadAndQuery loads the navigation data and creates the queryer (one-stop).
// A file built from other sources yields builder.ErrNoGraph.
func LoadAndQuery(filename string, expectedHash uint64, profile string, opts ...Option) (*Navigator, error) {
	env, ok, err := builder.Load(filename, expectedHash)
	if err != nil {
		return nil, fmt.Errorf("failed to load navigation data: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s is stale", builder.ErrNoGraph, filename)
	}
	return NewNavigator(env, profile, opts...)
}

// NewNavigator decodes the graph of profile with a fresh cache and filter.
func NewNavigator(env *builder.Envelope, profile string, opts ...Option) (*Navigator, error) {
	g, err := env.Graph(profile)
	if err != nil {
		return nil, err
	}
	return &Navigator{
		Graph:  g,
		Solver: NewSolver(nil, nil, opts...),
	}, nil
}
