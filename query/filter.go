package query

import (
	"errors"
	"fmt"

	"github.com/o0olele/quadnav/graph"
	"github.com/o0olele/quadnav/math32"
)

var (
	ErrInvalidArea         = errors.New("query: area out of range")
	ErrNegativeAreaCost    = errors.New("query: area cost must not be negative")
	ErrInvalidObstructCost = errors.New("query: obstructed cost must be at least 1")
)

// DefaultWaterCost is the default cost factor of graph.AreaWater.
const DefaultWaterCost = 10.0

// DefaultObstructedCost multiplies the cost of stepping into an obstructed node.
const DefaultObstructedCost = 4.0

// QueryFilter decides which nodes may be entered and what crossing them
// costs. It is read on every relaxation and must not be changed while a
// search runs.
type QueryFilter struct {
	includeFlags   graph.Flags
	excludeFlags   graph.Flags
	areaCost       [graph.MaxAreas]float32
	obstructedCost float32
}

// NewQueryFilter includes every flag, excludes none and costs every area 1,
// except water.
func NewQueryFilter() *QueryFilter {
	f := &QueryFilter{
		includeFlags:   graph.FlagAll,
		excludeFlags:   0,
		obstructedCost: DefaultObstructedCost,
	}
	for i := range f.areaCost {
		f.areaCost[i] = 1.0
	}
	f.areaCost[graph.AreaWater] = DefaultWaterCost
	return f
}

func (f *QueryFilter) IncludeFlags() graph.Flags {
	return f.includeFlags
}

func (f *QueryFilter) SetIncludeFlags(flags graph.Flags) {
	f.includeFlags = flags
}

func (f *QueryFilter) ExcludeFlags() graph.Flags {
	return f.excludeFlags
}

func (f *QueryFilter) SetExcludeFlags(flags graph.Flags) {
	f.excludeFlags = flags
}

// AreaCost returns the cost factor of area. Areas outside the table cost 1.
func (f *QueryFilter) AreaCost(area graph.Area) float32 {
	if int(area) >= graph.MaxAreas {
		return 1.0
	}
	return f.areaCost[area]
}

// SetAreaCost sets the cost factor of area.
func (f *QueryFilter) SetAreaCost(area graph.Area, cost float32) error {
	if int(area) >= graph.MaxAreas {
		return fmt.Errorf("%w: %d", ErrInvalidArea, area)
	}
	if cost < 0 {
		return fmt.Errorf("%w: %s=%v", ErrNegativeAreaCost, area, cost)
	}
	f.areaCost[area] = cost
	return nil
}

// ObstructedCost returns the factor applied when entering an obstructed node.
func (f *QueryFilter) ObstructedCost() float32 {
	return f.obstructedCost
}

// SetObstructedCost sets the obstructed factor. 1 prices obstructed nodes
// like clear ones.
func (f *QueryFilter) SetObstructedCost(cost float32) error {
	if cost < 1 {
		return fmt.Errorf("%w: %v", ErrInvalidObstructCost, cost)
	}
	f.obstructedCost = cost
	return nil
}

// IsPassable reports whether node has an included flag and no excluded one.
func (f *QueryFilter) IsPassable(node graph.Node) bool {
	flags := node.Flags()
	return flags&f.includeFlags != 0 && flags&f.excludeFlags == 0
}

// EdgeCost is the 3D length of segment a-b scaled by the area cost of the
// node being crossed.
func (f *QueryFilter) EdgeCost(a, b math32.Vector3, current graph.Node) float32 {
	return a.Distance(b) * f.AreaCost(current.Area())
}

// StepCost is EdgeCost from current to next, times the obstructed factor
// when next is obstructed.
func (f *QueryFilter) StepCost(current, next graph.Node) float32 {
	cost := f.EdgeCost(current.Center(), next.Center(), current)
	if next.State() == graph.StateObstructed {
		cost *= f.obstructedCost
	}
	return cost
}
