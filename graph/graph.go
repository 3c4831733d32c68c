// Package graph defines the searchable node contract and the quad graph
// built from quadtree leaves.
package graph

import (
	"fmt"
	"strings"

	"github.com/o0olele/quadnav/math32"
)

// NeighborCount is the size of every node's neighbor array.
const NeighborCount = 8

// MaxAreas is the size of the area cost table.
const MaxAreas = 64

// State is the structural traversal state of a node.
type State int32

const (
	StateClear State = iota
	// StateObstructed stays passable at a higher price: the filter's
	// obstructed factor in filter cost mode, the ordinal in state-ordinal mode.
	StateObstructed
	// StateClosed is never entered.
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateClear:
		return "clear"
	case StateObstructed:
		return "obstructed"
	case StateClosed:
		return "closed"
	}
	return fmt.Sprintf("state(%d)", int32(s))
}

// ParseState maps a state name to its value.
func ParseState(name string) (State, error) {
	switch strings.ToLower(name) {
	case "clear":
		return StateClear, nil
	case "obstructed":
		return StateObstructed, nil
	case "closed":
		return StateClosed, nil
	}
	return 0, fmt.Errorf("unknown state %q", name)
}

// Flags is a bit set of traversal abilities a node allows.
type Flags uint16

const (
	FlagWalk     Flags = 1 << iota // ground, grass, road
	FlagSwim                       // water
	FlagDoor                       // doors
	FlagJump                       // jump links
	FlagDisabled                   // disabled cells

	FlagAll Flags = 0xffff
)

var flagNames = []struct {
	flag Flags
	name string
}{
	{FlagWalk, "walk"},
	{FlagSwim, "swim"},
	{FlagDoor, "door"},
	{FlagJump, "jump"},
	{FlagDisabled, "disabled"},
}

func (f Flags) String() string {
	if f == 0 {
		return "none"
	}
	var parts []string
	for _, fn := range flagNames {
		if f&fn.flag != 0 {
			parts = append(parts, fn.name)
		}
	}
	if rest := f &^ (FlagWalk | FlagSwim | FlagDoor | FlagJump | FlagDisabled); rest != 0 {
		parts = append(parts, fmt.Sprintf("0x%x", uint16(rest)))
	}
	return strings.Join(parts, "|")
}

// ParseFlags ORs together named flags. "all" selects every bit.
func ParseFlags(names []string) (Flags, error) {
	var f Flags
	for _, name := range names {
		name = strings.ToLower(strings.TrimSpace(name))
		if name == "all" {
			f |= FlagAll
			continue
		}
		found := false
		for _, fn := range flagNames {
			if fn.name == name {
				f |= fn.flag
				found = true
				break
			}
		}
		if !found {
			return 0, fmt.Errorf("unknown flag %q", name)
		}
	}
	return f, nil
}

// Area is the terrain type of a node, an index into the area cost table.
type Area uint8

const (
	AreaGround Area = iota
	AreaWater
	AreaRoad
	AreaGrass
	AreaJump
)

var areaNames = map[Area]string{
	AreaGround: "ground",
	AreaWater:  "water",
	AreaRoad:   "road",
	AreaGrass:  "grass",
	AreaJump:   "jump",
}

func (a Area) String() string {
	if name, ok := areaNames[a]; ok {
		return name
	}
	return fmt.Sprintf("area(%d)", uint8(a))
}

// ParseArea accepts a known area name.
func ParseArea(name string) (Area, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	for a, n := range areaNames {
		if n == name {
			return a, nil
		}
	}
	return 0, fmt.Errorf("unknown area %q", name)
}

// Node is a searchable vertex. Identity is interface equality, so
// implementations are expected to be pointers.
type Node interface {
	ID() int
	Center() math32.Vector3
	// Cost is a non-negative extra cost for entering the node.
	Cost() float32
	State() State
	Flags() Flags
	Area() Area
	// Neighbors returns a fixed array; missing slots are nil.
	Neighbors() [NeighborCount]Node
}

// Graph resolves world positions to nodes. FindNode returns nil when no
// node covers the position.
type Graph interface {
	FindNode(position math32.Vector3) Node
}
