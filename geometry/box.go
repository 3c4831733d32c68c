package geometry

import "github.com/o0olele/quadnav/math32"

// Box is a box geometry given by center and size
type Box struct {
	Center math32.Vector3 `json:"center"`
	Size   math32.Vector3 `json:"size"`
}

// GetBounds returns the bounding box of the box
func (b Box) GetBounds() AABB {
	halfSize := b.Size.Scale(0.5)
	return AABB{
		Min: b.Center.Sub(halfSize),
		Max: b.Center.Add(halfSize),
	}
}

// ClassifyAABB tests aabb against the box.
func (b Box) ClassifyAABB(aabb AABB) Containment {
	return b.GetBounds().ClassifyAABB(aabb)
}

// ContainsPoint checks if the point is inside the box
func (b Box) ContainsPoint(point math32.Vector3) bool {
	return b.GetBounds().Contains(point)
}
