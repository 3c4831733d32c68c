package geometry

// Containment is the relation of a volume to a box.
type Containment uint8

const (
	// Disjoint means the volume and the box do not touch.
	Disjoint Containment = iota
	// Contains means the box lies entirely inside the volume.
	Contains
	// Intersects means the volume and the box partially overlap.
	Intersects
)

func (c Containment) String() string {
	switch c {
	case Disjoint:
		return "disjoint"
	case Contains:
		return "contains"
	case Intersects:
		return "intersects"
	}
	return "unknown"
}

// Volume is anything a spatial index can be queried with.
// Anything other than Disjoint counts as a hit for broad-phase queries.
type Volume interface {
	ClassifyAABB(box AABB) Containment
}

// Geometry is a bounded shape usable as a query volume.
type Geometry interface {
	Volume
	GetBounds() AABB
}
