package query

import (
	"fmt"
	"strings"

	"github.com/o0olele/quadnav/math32"
)

// Heuristic selects the distance estimate used to order the open list.
type Heuristic int

const (
	// Euclidean is sqrt(dx²+dz²).
	Euclidean Heuristic = iota
	// Manhattan is |dx|+|dz|.
	Manhattan
	// Diagonal is max(|dx|,|dz|).
	Diagonal
	// DiagonalChebyshev is (|dx|+|dz|) + (√2-2)·min(|dx|,|dz|).
	DiagonalChebyshev
	// Hex is max(|dx|,|dy|,|dx-dy|) with X and Y as the hex axes.
	Hex
)

var heuristicNames = [...]string{
	Euclidean:         "euclidean",
	Manhattan:         "manhattan",
	Diagonal:          "diagonal",
	DiagonalChebyshev: "diagonal_chebyshev",
	Hex:               "hex",
}

// Valid reports whether h is a known heuristic.
func (h Heuristic) Valid() bool {
	return h >= Euclidean && h <= Hex
}

func (h Heuristic) String() string {
	if !h.Valid() {
		return fmt.Sprintf("heuristic(%d)", int(h))
	}
	return heuristicNames[h]
}

// ParseHeuristic maps a name to a Heuristic.
func ParseHeuristic(name string) (Heuristic, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	for h, n := range heuristicNames {
		if n == name {
			return Heuristic(h), nil
		}
	}
	return 0, fmt.Errorf("unknown heuristic %q", name)
}

// Distance estimates the distance from a to b. It panics on an unknown
// heuristic.
func (h Heuristic) Distance(a, b math32.Vector3) float32 {
	switch h {
	case Euclidean:
		dx, dz := a.X-b.X, a.Z-b.Z
		return math32.Sqrt(dx*dx + dz*dz)
	case Manhattan:
		return math32.Abs(a.X-b.X) + math32.Abs(a.Z-b.Z)
	case Diagonal:
		return math32.Max(math32.Abs(a.X-b.X), math32.Abs(a.Z-b.Z))
	case DiagonalChebyshev:
		dx, dz := math32.Abs(a.X-b.X), math32.Abs(a.Z-b.Z)
		return (dx + dz) + (math32.Sqrt2-2)*math32.Min(dx, dz)
	case Hex:
		dx, dy := a.X-b.X, a.Y-b.Y
		return math32.Max(math32.Max(math32.Abs(dx), math32.Abs(dy)), math32.Abs(dx-dy))
	}
	panic(fmt.Sprintf("query: unknown heuristic %d", int(h)))
}
