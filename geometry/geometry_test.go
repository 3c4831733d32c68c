package geometry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/o0olele/quadnav/math32"
)

func vec(x, y, z float32) math32.Vector3 {
	return math32.Vector3{X: x, Y: y, Z: z}
}

func TestAABB_QuadrantsPartitionParent(t *testing.T) {
	boxes := []AABB{
		{Min: vec(0, 0, 0), Max: vec(8, 2, 8)},
		{Min: vec(-10, -1, -4), Max: vec(6, 1, 12)},
		{Min: vec(0.5, 0, 0.25), Max: vec(1.5, 0, 3.75)},
	}

	for _, parent := range boxes {
		quads := parent.Quadrants()

		var sum float32
		var union AABB = quads[0]
		for _, q := range quads {
			assert.True(t, parent.ContainsAABB(q))
			assert.Equal(t, parent.Min.Y, q.Min.Y, "Y spans the full box")
			assert.Equal(t, parent.Max.Y, q.Max.Y, "Y spans the full box")
			union = AABB{Min: union.Min.MinComponents(q.Min), Max: union.Max.MaxComponents(q.Max)}
			sum += (q.Max.X - q.Min.X) * (q.Max.Z - q.Min.Z)
		}
		assert.Equal(t, parent, union)

		parentArea := (parent.Max.X - parent.Min.X) * (parent.Max.Z - parent.Min.Z)
		assert.InDelta(t, parentArea, sum, 1e-4, "quadrant areas add up to the parent")

		for i := 0; i < 4; i++ {
			for j := i + 1; j < 4; j++ {
				overlap, ok := quads[i].Intersection(quads[j])
				if ok {
					assert.Zero(t, overlap.Volume(), "quadrants %d and %d overlap", i, j)
				}
			}
		}

		mid := parent.Center()
		assert.Equal(t, mid.X, quads[QuadTopLeft].Max.X)
		assert.Equal(t, mid.Z, quads[QuadTopLeft].Max.Z)
		assert.Equal(t, mid.X, quads[QuadBottomRight].Min.X)
		assert.Equal(t, mid.Z, quads[QuadBottomRight].Min.Z)
	}
}

func TestAABB_Classify(t *testing.T) {
	volume := AABB{Min: vec(0, 0, 0), Max: vec(10, 10, 10)}

	tests := []struct {
		name string
		box  AABB
		want Containment
	}{
		{"inside", AABB{Min: vec(1, 1, 1), Max: vec(2, 2, 2)}, Contains},
		{"equal", volume, Contains},
		{"partial", AABB{Min: vec(9, 9, 9), Max: vec(11, 11, 11)}, Intersects},
		{"touching face", AABB{Min: vec(10, 0, 0), Max: vec(12, 10, 10)}, Intersects},
		{"outside", AABB{Min: vec(11, 0, 0), Max: vec(12, 1, 1)}, Disjoint},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, volume.ClassifyAABB(tt.box))
		})
	}
}

func TestSphere_Classify(t *testing.T) {
	s := Sphere{Center: vec(0, 0, 0), Radius: 2}

	assert.Equal(t, Contains, s.ClassifyAABB(AABB{Min: vec(-1, -1, -1), Max: vec(1, 1, 1)}))
	assert.Equal(t, Intersects, s.ClassifyAABB(AABB{Min: vec(1, 1, 1), Max: vec(3, 3, 3)}))
	assert.Equal(t, Disjoint, s.ClassifyAABB(AABB{Min: vec(2, 2, 2), Max: vec(3, 3, 3)}))
	assert.True(t, s.ContainsPoint(vec(0, 2, 0)))
}

func TestFrustum_Classify(t *testing.T) {
	// An axis aligned "frustum" equal to the box [0,10]^3.
	f := Frustum{Planes: [6]Plane{
		NewPlane(vec(1, 0, 0), vec(0, 0, 0)),
		NewPlane(vec(-1, 0, 0), vec(10, 0, 0)),
		NewPlane(vec(0, 1, 0), vec(0, 0, 0)),
		NewPlane(vec(0, -1, 0), vec(0, 10, 0)),
		NewPlane(vec(0, 0, 1), vec(0, 0, 0)),
		NewPlane(vec(0, 0, -1), vec(0, 0, 10)),
	}}

	assert.Equal(t, Contains, f.ClassifyAABB(AABB{Min: vec(1, 1, 1), Max: vec(2, 2, 2)}))
	assert.Equal(t, Intersects, f.ClassifyAABB(AABB{Min: vec(-1, 1, 1), Max: vec(2, 2, 2)}))
	assert.Equal(t, Disjoint, f.ClassifyAABB(AABB{Min: vec(11, 1, 1), Max: vec(12, 2, 2)}))
	assert.True(t, f.ContainsPoint(vec(5, 5, 5)))
	assert.False(t, f.ContainsPoint(vec(5, 5, -1)))
}

func TestFrustumFromIdentityMatrix(t *testing.T) {
	identity := [16]float32{1, 0, 0, 0, 0, 1, 0, 0, 0, 0, 1, 0, 0, 0, 0, 1}
	f := NewFrustumFromMatrix(identity)

	// Identity clip space is the cube [-1,1]^3.
	assert.Equal(t, Contains, f.ClassifyAABB(AABB{Min: vec(-0.5, -0.5, -0.5), Max: vec(0.5, 0.5, 0.5)}))
	assert.Equal(t, Disjoint, f.ClassifyAABB(AABB{Min: vec(2, 2, 2), Max: vec(3, 3, 3)}))
}

func TestTriangle_Classify(t *testing.T) {
	tri := Triangle{A: vec(0, 0, 0), B: vec(4, 0, 0), C: vec(0, 0, 4)}

	assert.Equal(t, Intersects, tri.ClassifyAABB(AABB{Min: vec(0, -1, 0), Max: vec(1, 1, 1)}))
	assert.Equal(t, Disjoint, tri.ClassifyAABB(AABB{Min: vec(3, -1, 3), Max: vec(4, 1, 4)}), "box beyond the hypotenuse")
	assert.InDelta(t, 8, tri.Area(), 1e-6)
}

func TestHashTriangles(t *testing.T) {
	a := []Triangle{{A: vec(0, 0, 0), B: vec(1, 0, 0), C: vec(0, 0, 1)}}
	b := []Triangle{{A: vec(0, 0, 0), B: vec(1, 0, 0), C: vec(0, 0, 1.0001)}}

	require.Equal(t, HashTriangles(a), HashTriangles(a))
	assert.NotEqual(t, HashTriangles(a), HashTriangles(b))
	assert.NotEqual(t, HashTriangles(nil), HashTriangles(a))
}
