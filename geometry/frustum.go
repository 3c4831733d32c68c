package geometry

import "github.com/o0olele/quadnav/math32"

// Plane is n·p + D = 0 with the normal pointing to the inside half-space.
type Plane struct {
	Normal math32.Vector3 `json:"normal"`
	D      float32        `json:"d"`
}

// NewPlane builds a plane from an inward normal and a point on it.
func NewPlane(normal, point math32.Vector3) Plane {
	n := normal.Normalize()
	return Plane{Normal: n, D: -n.Dot(point)}
}

// Distance returns the signed distance of point, positive inside.
func (p Plane) Distance(point math32.Vector3) float32 {
	return p.Normal.Dot(point) + p.D
}

func (p Plane) normalized() Plane {
	l := p.Normal.Length()
	if l == 0 {
		return p
	}
	return Plane{Normal: p.Normal.Scale(1 / l), D: p.D / l}
}

// Frustum is a convex volume bounded by six inward-facing planes
// (left, right, bottom, top, near, far).
type Frustum struct {
	Planes [6]Plane `json:"planes"`
}

// NewFrustumFromMatrix extracts the planes of a column-major
// view-projection matrix (Gribb/Hartmann).
func NewFrustumFromMatrix(m [16]float32) Frustum {
	row := func(i int) [4]float32 {
		return [4]float32{m[i], m[4+i], m[8+i], m[12+i]}
	}
	r0, r1, r2, r3 := row(0), row(1), row(2), row(3)
	plane := func(a [4]float32, b [4]float32, sign float32) Plane {
		return Plane{
			Normal: math32.Vector3{X: a[0] + sign*b[0], Y: a[1] + sign*b[1], Z: a[2] + sign*b[2]},
			D:      a[3] + sign*b[3],
		}.normalized()
	}
	return Frustum{Planes: [6]Plane{
		plane(r3, r0, 1),
		plane(r3, r0, -1),
		plane(r3, r1, 1),
		plane(r3, r1, -1),
		plane(r3, r2, 1),
		plane(r3, r2, -1),
	}}
}

// ClassifyAABB uses the positive/negative vertex test per plane.
func (f Frustum) ClassifyAABB(box AABB) Containment {
	result := Contains
	for _, p := range f.Planes {
		var pos, neg math32.Vector3
		pos, neg = box.Min, box.Max
		if p.Normal.X >= 0 {
			pos.X, neg.X = box.Max.X, box.Min.X
		}
		if p.Normal.Y >= 0 {
			pos.Y, neg.Y = box.Max.Y, box.Min.Y
		}
		if p.Normal.Z >= 0 {
			pos.Z, neg.Z = box.Max.Z, box.Min.Z
		}
		if p.Distance(pos) < 0 {
			return Disjoint
		}
		if p.Distance(neg) < 0 {
			result = Intersects
		}
	}
	return result
}

// ContainsPoint checks if the point is inside every plane
func (f Frustum) ContainsPoint(point math32.Vector3) bool {
	for _, p := range f.Planes {
		if p.Distance(point) < 0 {
			return false
		}
	}
	return true
}
