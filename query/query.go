// Package query runs A* searches over a graph.Graph, guarded by a
// QueryFilter and backed by a FIFO PathCache.
package query

import (
	"container/heap"
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/singleflight"

	"github.com/o0olele/quadnav/graph"
	"github.com/o0olele/quadnav/math32"
)

// CostMode selects how the cost of entering a neighbor is accumulated.
type CostMode int

const (
	// CostModeFilter adds filter.StepCost between the two centers, scaled by
	// the current node's area and by the obstructed factor when the neighbor
	// is obstructed, plus the neighbor's own cost.
	CostModeFilter CostMode = iota
	// CostModeStateOrdinal adds the ordinal of the neighbor's state. With
	// every node clear this makes the search greedy on the heuristic.
	CostModeStateOrdinal
)

func (m CostMode) String() string {
	switch m {
	case CostModeFilter:
		return "filter"
	case CostModeStateOrdinal:
		return "state_ordinal"
	}
	return fmt.Sprintf("cost_mode(%d)", int(m))
}

// ParseCostMode maps a name to a CostMode.
func ParseCostMode(name string) (CostMode, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "filter", "":
		return CostModeFilter, nil
	case "state_ordinal", "ordinal":
		return CostModeStateOrdinal, nil
	}
	return 0, fmt.Errorf("unknown cost mode %q", name)
}

type marker uint8

const (
	unvisited marker = iota
	open
	closed
)

// pathFinderData is per-search scratch for one reached node.
type pathFinderData struct {
	cost   float32
	parent graph.Node
	marker marker
}

// Solver finds routes between positions. It owns a PathCache shared by all
// callers; searches themselves keep no shared state.
type Solver struct {
	cache    *PathCache
	filter   *QueryFilter
	costMode CostMode
	logger   *slog.Logger
	group    singleflight.Group
}

// Option configures a Solver.
type Option func(*Solver)

// WithCostMode selects the edge cost accumulation.
func WithCostMode(mode CostMode) Option {
	return func(s *Solver) {
		s.costMode = mode
	}
}

// WithLogger sets the logger used for search timing.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Solver) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewSolver creates a solver. A nil cache or filter is replaced by a default.
func NewSolver(cache *PathCache, filter *QueryFilter, opts ...Option) *Solver {
	if cache == nil {
		cache = NewPathCache(DefaultCacheCapacity)
	}
	if filter == nil {
		filter = NewQueryFilter()
	}
	s := &Solver{
		cache:    cache,
		filter:   filter,
		costMode: CostModeFilter,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Solver) Cache() *PathCache {
	return s.cache
}

func (s *Solver) Filter() *QueryFilter {
	return s.filter
}

func (s *Solver) CostMode() CostMode {
	return s.costMode
}

// FindPath resolves start and end to nodes of g and returns the cheapest
// route between them. ok is false when either position has no node or no
// route exists. A cached route for the same node pair is returned without
// searching. An unknown heuristic panics.
//
// ctx only carries the trace span; a running search is not cancelled.
func (s *Solver) FindPath(ctx context.Context, g graph.Graph, start, end math32.Vector3, h Heuristic, weight float32) (*Path, bool) {
	if !h.Valid() {
		panic(fmt.Sprintf("query: unknown heuristic %d", int(h)))
	}

	_, span := tracer.Start(ctx, "query.FindPath")
	defer span.End()
	span.SetAttributes(
		attribute.String("heuristic", h.String()),
		attribute.Float64("weight", float64(weight)),
	)

	startNode := g.FindNode(start)
	endNode := g.FindNode(end)
	if startNode == nil || endNode == nil {
		pathRequestsTotal.WithLabelValues(resultUnresolved).Inc()
		span.SetAttributes(attribute.String("result", resultUnresolved))
		return nil, false
	}

	if nodes, ok := s.cache.Get(startNode, endNode); ok {
		pathCacheTotal.WithLabelValues(outcomeHit).Inc()
		pathRequestsTotal.WithLabelValues(resultFound).Inc()
		span.SetAttributes(attribute.Bool("cache_hit", true), attribute.String("result", resultFound))
		return &Path{Nodes: nodes, Start: start, End: end}, true
	}
	pathCacheTotal.WithLabelValues(outcomeMiss).Inc()

	// Searches started before a Clear neither join nor feed searches after it.
	generation := s.cache.Generation()
	key := fmt.Sprintf("%p/%d/%d/%d/%g/%d", g, startNode.ID(), endNode.ID(), h, weight, generation)
	v, _, shared := s.group.Do(key, func() (any, error) {
		nodes := s.search(startNode, endNode, h, weight)
		if nodes == nil {
			return nodes, nil
		}
		stored, evicted := s.cache.PutIfCurrent(generation, startNode, endNode, nodes)
		if !stored {
			pathCacheTotal.WithLabelValues(outcomeDiscarded).Inc()
		}
		if evicted {
			pathCacheTotal.WithLabelValues(outcomeEviction).Inc()
		}
		return nodes, nil
	})
	if shared {
		pathCacheTotal.WithLabelValues(outcomeShared).Inc()
	}

	nodes, _ := v.([]graph.Node)
	if nodes == nil {
		pathRequestsTotal.WithLabelValues(resultNotFound).Inc()
		span.SetAttributes(attribute.String("result", resultNotFound))
		return nil, false
	}

	pathRequestsTotal.WithLabelValues(resultFound).Inc()
	span.SetAttributes(attribute.String("result", resultFound), attribute.Int("nodes", len(nodes)))
	return &Path{Nodes: slices.Clone(nodes), Start: start, End: end}, true
}

// search runs A* from start to end. It returns nil when the open list runs
// dry before end is closed.
func (s *Solver) search(start, end graph.Node, h Heuristic, weight float32) []graph.Node {
	startTime := time.Now()
	if start == end {
		return []graph.Node{start}
	}

	scratch := make(map[graph.Node]*pathFinderData)
	openSet := &nodeHeap{}
	defer openSet.Clear()

	endCenter := end.Center()
	var seq uint64
	push := func(n graph.Node, g float32) {
		f := g + weight*h.Distance(n.Center(), endCenter)
		heap.Push(openSet, newHeapNode(n, f, seq))
		seq++
	}

	scratch[start] = &pathFinderData{marker: open}
	push(start, 0)

	expanded := 0
	for openSet.Len() > 0 {
		item := heap.Pop(openSet).(*heapNode)
		current := item.node
		releaseHeapNode(item)

		data := scratch[current]
		if data.marker == closed {
			continue
		}
		data.marker = closed
		expanded++

		if current == end {
			path := reconstruct(scratch, start, end)
			s.observe(startTime, expanded, len(path))
			return path
		}

		for _, next := range current.Neighbors() {
			if next == nil || next.State() == graph.StateClosed || !s.filter.IsPassable(next) {
				continue
			}

			tentative := s.edgeCost(data.cost, current, next)
			nextData, seen := scratch[next]
			if !seen {
				scratch[next] = &pathFinderData{cost: tentative, parent: current, marker: open}
				push(next, tentative)
				continue
			}
			if nextData.marker == closed || tentative >= nextData.cost {
				continue
			}
			nextData.cost = tentative
			nextData.parent = current
			push(next, tentative)
		}
	}

	s.observe(startTime, expanded, 0)
	return nil
}

func (s *Solver) edgeCost(g float32, current, next graph.Node) float32 {
	if s.costMode == CostModeStateOrdinal {
		return g + float32(next.State())
	}
	return g + s.filter.StepCost(current, next) + next.Cost()
}

func (s *Solver) observe(startTime time.Time, expanded, length int) {
	took := time.Since(startTime)
	pathSearchDuration.Observe(took.Seconds())
	pathExpandedNodes.Observe(float64(expanded))
	s.logger.Debug("A* search finished",
		slog.Duration("duration", took),
		slog.Int("expanded", expanded),
		slog.Int("nodes", length),
		slog.String("cost_mode", s.costMode.String()),
	)
}

func reconstruct(scratch map[graph.Node]*pathFinderData, start, end graph.Node) []graph.Node {
	var path []graph.Node
	for n := end; n != nil; n = scratch[n].parent {
		path = append(path, n)
		if n == start {
			break
		}
	}
	slices.Reverse(path)
	return path
}
