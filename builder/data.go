package builder

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/o0olele/quadnav/geometry"
	"github.com/o0olele/quadnav/graph"
)

// File format constants.
const (
	NAVIGATION_FILE_MAGIC   = 0x56414E51 // "QNAV" on disk
	NAVIGATION_FILE_VERSION = 1
)

// DefaultProfile is the agent profile used when none is configured.
const DefaultProfile = "default"

var (
	ErrBadMagic           = errors.New("builder: not a navigation file")
	ErrUnsupportedVersion = errors.New("builder: unsupported navigation file version")
	ErrUnknownProfile     = errors.New("builder: unknown agent profile")
	ErrCorrupt            = errors.New("builder: navigation file is corrupt")
	ErrNoGraph            = errors.New("builder: no navigation graph available")
	ErrInvalidSettings    = errors.New("builder: invalid build settings")
)

// FileHeader is written uncompressed in front of the envelope body so the
// hash can be checked without decoding.
type FileHeader struct {
	Magic   uint32
	Version uint32
	Hash    uint64
}

// Agent describes one agent profile.
type Agent struct {
	Name     string  `json:"name" yaml:"name" msgpack:"name"`
	Radius   float32 `json:"radius" yaml:"radius" msgpack:"radius"`
	Height   float32 `json:"height" yaml:"height" msgpack:"height"`
	MaxSlope float32 `json:"max_slope" yaml:"max_slope" msgpack:"max_slope"` // degrees
}

// DefaultAgent returns the default profile.
func DefaultAgent() Agent {
	return Agent{Name: DefaultProfile, Radius: 0.4, Height: 1.8, MaxSlope: 45}
}

// BuildSettings are the inputs of a build besides the triangles.
type BuildSettings struct {
	Bounds   geometry.AABB `json:"bounds" yaml:"bounds" msgpack:"bounds"`
	MaxDepth int           `json:"max_depth" yaml:"max_depth" msgpack:"max_depth"`
	Agents   []Agent       `json:"agents" yaml:"agents" msgpack:"agents"`
}

// Validate checks the settings without building anything.
func (s *BuildSettings) Validate() error {
	if s.MaxDepth < 0 {
		return fmt.Errorf("%w: max depth %d", ErrInvalidSettings, s.MaxDepth)
	}
	if s.Bounds.IsEmpty() {
		return fmt.Errorf("%w: empty bounds", ErrInvalidSettings)
	}
	seen := make(map[string]bool, len(s.Agents))
	for _, a := range s.Agents {
		if a.Name == "" {
			return fmt.Errorf("%w: agent without name", ErrInvalidSettings)
		}
		if seen[a.Name] {
			return fmt.Errorf("%w: duplicate agent %q", ErrInvalidSettings, a.Name)
		}
		seen[a.Name] = true
	}
	return nil
}

// Envelope is the persisted result of a build: settings, one serialized
// graph per agent profile and the hash of the sources it was built from.
type Envelope struct {
	Version   uint32            `msgpack:"version"`
	BuildID   uuid.UUID         `msgpack:"build_id"`
	CreatedAt time.Time         `msgpack:"created_at"`
	Settings  BuildSettings     `msgpack:"settings"`
	Payloads  map[string][]byte `msgpack:"payloads"`
	Hash      uint64            `msgpack:"hash"`
}

// NewEnvelope creates an empty envelope for settings and hash.
func NewEnvelope(settings BuildSettings, hash uint64) *Envelope {
	return &Envelope{
		Version:   NAVIGATION_FILE_VERSION,
		BuildID:   uuid.New(),
		CreatedAt: time.Now().UTC(),
		Settings:  settings,
		Payloads:  make(map[string][]byte),
		Hash:      hash,
	}
}

// SetGraph stores the serialized graph of a profile.
func (e *Envelope) SetGraph(profile string, g *graph.QuadGraph) error {
	data, err := g.MarshalBinary()
	if err != nil {
		return fmt.Errorf("failed to serialize graph %q: %w", profile, err)
	}
	if e.Payloads == nil {
		e.Payloads = make(map[string][]byte)
	}
	e.Payloads[profile] = data
	return nil
}

// Graph decodes the graph of a profile.
func (e *Envelope) Graph(profile string) (*graph.QuadGraph, error) {
	data, ok := e.Payloads[profile]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownProfile, profile)
	}
	g, err := graph.UnmarshalQuadGraph(data)
	if err != nil {
		return nil, fmt.Errorf("failed to deserialize graph %q: %w", profile, err)
	}
	return g, nil
}

// Profiles returns the stored profile names, sorted.
func (e *Envelope) Profiles() []string {
	names := make([]string, 0, len(e.Payloads))
	for name := range e.Payloads {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// DataSize is the total size of the serialized payloads in bytes.
func (e *Envelope) DataSize() int {
	size := 0
	for _, p := range e.Payloads {
		size += len(p)
	}
	return size
}
