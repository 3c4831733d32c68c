package geometry

import "github.com/o0olele/quadnav/math32"

// Sphere is a query sphere.
type Sphere struct {
	Center math32.Vector3 `json:"center"`
	Radius float32        `json:"radius"`
}

// GetBounds returns the bounding box of the sphere
func (s Sphere) GetBounds() AABB {
	r := math32.Vector3{X: s.Radius, Y: s.Radius, Z: s.Radius}
	return AABB{Min: s.Center.Sub(r), Max: s.Center.Add(r)}
}

// ContainsPoint checks if the point is inside the sphere
func (s Sphere) ContainsPoint(point math32.Vector3) bool {
	return s.Center.DistanceSquared(point) <= s.Radius*s.Radius
}

// ClassifyAABB tests the box against the sphere.
func (s Sphere) ClassifyAABB(box AABB) Containment {
	r2 := s.Radius * s.Radius
	if s.Center.DistanceSquared(box.ClosestPoint(s.Center)) > r2 {
		return Disjoint
	}
	for _, corner := range box.Corners() {
		if s.Center.DistanceSquared(corner) > r2 {
			return Intersects
		}
	}
	return Contains
}
