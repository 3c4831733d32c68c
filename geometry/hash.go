package geometry

import (
	"encoding/binary"
	"math"

	"github.com/cespare/xxhash/v2"

	"github.com/o0olele/quadnav/math32"
)

// Hasher accumulates a deterministic content hash over geometry.
// Floats are hashed by their IEEE-754 bits in little-endian order, so
// +0 and -0 hash differently and NaN payloads are preserved.
type Hasher struct {
	digest *xxhash.Digest
	buf    [8]byte
}

// NewHasher returns an empty hasher.
func NewHasher() *Hasher {
	return &Hasher{digest: xxhash.New()}
}

// WriteUint32 mixes v into the hash.
func (h *Hasher) WriteUint32(v uint32) {
	binary.LittleEndian.PutUint32(h.buf[:4], v)
	_, _ = h.digest.Write(h.buf[:4])
}

// WriteString mixes a length-prefixed string into the hash.
func (h *Hasher) WriteString(s string) {
	h.WriteUint32(uint32(len(s)))
	_, _ = h.digest.WriteString(s)
}

// WriteFloat32 mixes f into the hash.
func (h *Hasher) WriteFloat32(f float32) {
	h.WriteUint32(math.Float32bits(f))
}

// WriteVector3 mixes v into the hash.
func (h *Hasher) WriteVector3(v math32.Vector3) {
	h.WriteFloat32(v.X)
	h.WriteFloat32(v.Y)
	h.WriteFloat32(v.Z)
}

// WriteTriangle mixes the three vertices in order.
func (h *Hasher) WriteTriangle(t Triangle) {
	h.WriteVector3(t.A)
	h.WriteVector3(t.B)
	h.WriteVector3(t.C)
}

// Sum64 returns the current hash.
func (h *Hasher) Sum64() uint64 {
	return h.digest.Sum64()
}

// HashTriangles hashes a triangle soup. Order matters.
func HashTriangles(triangles []Triangle) uint64 {
	h := NewHasher()
	h.WriteUint32(uint32(len(triangles)))
	for _, t := range triangles {
		h.WriteTriangle(t)
	}
	return h.Sum64()
}
