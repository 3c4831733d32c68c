package geometry

import "github.com/o0olele/quadnav/math32"

// AABB is axis-aligned bounding box
type AABB struct {
	Min math32.Vector3 `json:"min" yaml:"min" msgpack:"min"`
	Max math32.Vector3 `json:"max" yaml:"max" msgpack:"max"`
}

// Quadrant indexes of Quadrants.
const (
	QuadTopLeft = iota
	QuadTopRight
	QuadBottomLeft
	QuadBottomRight
)

// NewAABB builds a box from two arbitrary corners.
func NewAABB(a, b math32.Vector3) AABB {
	return AABB{Min: a.MinComponents(b), Max: a.MaxComponents(b)}
}

// Contains checks if the point is inside the AABB (faces included)
func (aabb AABB) Contains(point math32.Vector3) bool {
	return point.X >= aabb.Min.X && point.X <= aabb.Max.X &&
		point.Y >= aabb.Min.Y && point.Y <= aabb.Max.Y &&
		point.Z >= aabb.Min.Z && point.Z <= aabb.Max.Z
}

// ContainsAABB checks if other lies fully inside the AABB
func (aabb AABB) ContainsAABB(other AABB) bool {
	return other.Min.X >= aabb.Min.X && other.Max.X <= aabb.Max.X &&
		other.Min.Y >= aabb.Min.Y && other.Max.Y <= aabb.Max.Y &&
		other.Min.Z >= aabb.Min.Z && other.Max.Z <= aabb.Max.Z
}

// Center returns the center of the AABB
func (aabb AABB) Center() math32.Vector3 {
	return math32.Vector3{
		X: (aabb.Min.X + aabb.Max.X) / 2,
		Y: (aabb.Min.Y + aabb.Max.Y) / 2,
		Z: (aabb.Min.Z + aabb.Max.Z) / 2,
	}
}

// Size returns the size of the AABB
func (aabb AABB) Size() math32.Vector3 {
	return aabb.Max.Sub(aabb.Min)
}

// Volume returns the box volume, zero for degenerate boxes.
func (aabb AABB) Volume() float32 {
	s := aabb.Size()
	if s.X <= 0 || s.Y <= 0 || s.Z <= 0 {
		return 0
	}
	return s.X * s.Y * s.Z
}

// Intersects checks if the AABB intersects with another AABB (touching counts)
func (aabb AABB) Intersects(other AABB) bool {
	return aabb.Min.X <= other.Max.X && aabb.Max.X >= other.Min.X &&
		aabb.Min.Y <= other.Max.Y && aabb.Max.Y >= other.Min.Y &&
		aabb.Min.Z <= other.Max.Z && aabb.Max.Z >= other.Min.Z
}

// Intersection returns the overlapping box; ok is false when disjoint.
func (aabb AABB) Intersection(other AABB) (AABB, bool) {
	if !aabb.Intersects(other) {
		return AABB{}, false
	}
	return AABB{
		Min: aabb.Min.MaxComponents(other.Min),
		Max: aabb.Max.MinComponents(other.Max),
	}, true
}

// IsEmpty checks if the AABB is empty (invalid)
func (aabb AABB) IsEmpty() bool {
	return aabb.Min.X >= aabb.Max.X || aabb.Min.Y > aabb.Max.Y || aabb.Min.Z >= aabb.Max.Z
}

// GetBounds returns the box itself.
func (aabb AABB) GetBounds() AABB {
	return aabb
}

// ClassifyAABB reports how box relates to this box used as a query volume.
func (aabb AABB) ClassifyAABB(box AABB) Containment {
	if !aabb.Intersects(box) {
		return Disjoint
	}
	if aabb.ContainsAABB(box) {
		return Contains
	}
	return Intersects
}

// Quadrants splits the box on X and Z around its center. Y keeps the full
// span. Order is top-left, top-right, bottom-left, bottom-right where left is
// min X and top is min Z.
func (aabb AABB) Quadrants() [4]AABB {
	mid := aabb.Center()
	return [4]AABB{
		QuadTopLeft: {
			Min: math32.Vector3{X: aabb.Min.X, Y: aabb.Min.Y, Z: aabb.Min.Z},
			Max: math32.Vector3{X: mid.X, Y: aabb.Max.Y, Z: mid.Z},
		},
		QuadTopRight: {
			Min: math32.Vector3{X: mid.X, Y: aabb.Min.Y, Z: aabb.Min.Z},
			Max: math32.Vector3{X: aabb.Max.X, Y: aabb.Max.Y, Z: mid.Z},
		},
		QuadBottomLeft: {
			Min: math32.Vector3{X: aabb.Min.X, Y: aabb.Min.Y, Z: mid.Z},
			Max: math32.Vector3{X: mid.X, Y: aabb.Max.Y, Z: aabb.Max.Z},
		},
		QuadBottomRight: {
			Min: math32.Vector3{X: mid.X, Y: aabb.Min.Y, Z: mid.Z},
			Max: math32.Vector3{X: aabb.Max.X, Y: aabb.Max.Y, Z: aabb.Max.Z},
		},
	}
}

// Corners returns the eight corners of the box.
func (aabb AABB) Corners() [8]math32.Vector3 {
	lo, hi := aabb.Min, aabb.Max
	return [8]math32.Vector3{
		{X: lo.X, Y: lo.Y, Z: lo.Z},
		{X: hi.X, Y: lo.Y, Z: lo.Z},
		{X: lo.X, Y: hi.Y, Z: lo.Z},
		{X: hi.X, Y: hi.Y, Z: lo.Z},
		{X: lo.X, Y: lo.Y, Z: hi.Z},
		{X: hi.X, Y: lo.Y, Z: hi.Z},
		{X: lo.X, Y: hi.Y, Z: hi.Z},
		{X: hi.X, Y: hi.Y, Z: hi.Z},
	}
}

// ClosestPoint clamps point into the box.
func (aabb AABB) ClosestPoint(point math32.Vector3) math32.Vector3 {
	return math32.Vector3{
		X: math32.Clamp(point.X, aabb.Min.X, aabb.Max.X),
		Y: math32.Clamp(point.Y, aabb.Min.Y, aabb.Max.Y),
		Z: math32.Clamp(point.Z, aabb.Min.Z, aabb.Max.Z),
	}
}
