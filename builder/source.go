package builder

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/o0olele/quadnav/graph"
)

// Source is a geometry file: marked triangles and, optionally, the settings
// to build them with. YAML and JSON files are both accepted.
type Source struct {
	Settings  *BuildSettings         `yaml:"settings,omitempty" json:"settings,omitempty"`
	Triangles []graph.MarkedTriangle `yaml:"triangles" json:"triangles"`
}

// LoadSource reads a geometry file.
func LoadSource(filename string) (*Source, error) {
	content, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read geometry file: %w", err)
	}

	src := &Source{}
	if err := yaml.Unmarshal(content, src); err != nil {
		return nil, fmt.Errorf("failed to parse geometry file %s: %w", filename, err)
	}
	return src, nil
}

// SaveSource writes a geometry file as YAML.
func SaveSource(filename string, src *Source) error {
	content, err := yaml.Marshal(src)
	if err != nil {
		return fmt.Errorf("failed to encode geometry file: %w", err)
	}
	if err := os.WriteFile(filename, content, 0644); err != nil {
		return fmt.Errorf("failed to write geometry file: %w", err)
	}
	return nil
}

// NewSourceBuilder creates a builder for src. Settings in the file win over
// fallback.
func NewSourceBuilder(src *Source, fallback BuildSettings) *Builder {
	settings := fallback
	if src.Settings != nil {
		settings = *src.Settings
	}
	b := NewBuilder(settings)
	b.AddTriangles(src.Triangles)
	return b
}
