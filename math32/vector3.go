package math32

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Vector3 represents a 3D vector.
type Vector3 struct {
	X float32 `json:"x" yaml:"x" msgpack:"x"`
	Y float32 `json:"y" yaml:"y" msgpack:"y"`
	Z float32 `json:"z" yaml:"z" msgpack:"z"`
}

// Add adds two vectors.
func (v Vector3) Add(other Vector3) Vector3 {
	return Vector3{v.X + other.X, v.Y + other.Y, v.Z + other.Z}
}

// Sub subtracts two vectors.
func (v Vector3) Sub(other Vector3) Vector3 {
	return Vector3{v.X - other.X, v.Y - other.Y, v.Z - other.Z}
}

// Scale scales a vector by a scalar.
func (v Vector3) Scale(s float32) Vector3 {
	return Vector3{v.X * s, v.Y * s, v.Z * s}
}

// Lerp interpolates between v and other, t in [0,1].
func (v Vector3) Lerp(other Vector3, t float32) Vector3 {
	return Vector3{
		v.X + (other.X-v.X)*t,
		v.Y + (other.Y-v.Y)*t,
		v.Z + (other.Z-v.Z)*t,
	}
}

// Distance calculates the distance between two vectors.
func (v Vector3) Distance(other Vector3) float32 {
	diff := v.Sub(other)
	return diff.Length()
}

// DistanceSquared calculates the squared distance between two vectors.
func (v Vector3) DistanceSquared(other Vector3) float32 {
	diff := v.Sub(other)
	return diff.X*diff.X + diff.Y*diff.Y + diff.Z*diff.Z
}

// Length calculates the length of a vector.
func (v Vector3) Length() float32 {
	return float32(math.Sqrt(float64(v.X*v.X + v.Y*v.Y + v.Z*v.Z)))
}

// Dot calculates the dot product of two vectors.
func (v Vector3) Dot(other Vector3) float32 {
	return v.X*other.X + v.Y*other.Y + v.Z*other.Z
}

// Cross calculates the cross product of two vectors.
func (v Vector3) Cross(other Vector3) Vector3 {
	return Vector3{
		v.Y*other.Z - v.Z*other.Y,
		v.Z*other.X - v.X*other.Z,
		v.X*other.Y - v.Y*other.X,
	}
}

// Normalize normalizes a vector. The zero vector stays zero.
func (v Vector3) Normalize() Vector3 {
	l := v.Length()
	if l == 0 {
		return Vector3{}
	}
	return v.Scale(1.0 / l)
}

// MinComponents returns the component-wise minimum.
func (v Vector3) MinComponents(other Vector3) Vector3 {
	return Vector3{Min(v.X, other.X), Min(v.Y, other.Y), Min(v.Z, other.Z)}
}

// MaxComponents returns the component-wise maximum.
func (v Vector3) MaxComponents(other Vector3) Vector3 {
	return Vector3{Max(v.X, other.X), Max(v.Y, other.Y), Max(v.Z, other.Z)}
}

// String returns a string representation of the vector.
func (v Vector3) String() string {
	return fmt.Sprintf("[%.2f,%.2f,%.2f]", v.X, v.Y, v.Z)
}

// Get returns the value of the vector at the given index.
func (v Vector3) Get(i int) float32 {
	switch i {
	case 0:
		return v.X
	case 1:
		return v.Y
	case 2:
		return v.Z
	}
	return 0
}

// ParseVector3 parses "x,y,z".
func ParseVector3(v string) (Vector3, error) {
	parts := strings.Split(v, ",")
	if len(parts) != 3 {
		return Vector3{}, fmt.Errorf("invalid vector %q", v)
	}
	var xyz [3]float32
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 32)
		if err != nil {
			return Vector3{}, fmt.Errorf("invalid vector %q: %w", v, err)
		}
		xyz[i] = float32(f)
	}
	return Vector3{X: xyz[0], Y: xyz[1], Z: xyz[2]}, nil
}
