package builder

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/o0olele/quadnav/geometry"
	"github.com/o0olele/quadnav/graph"
	"github.com/o0olele/quadnav/math32"
	"github.com/o0olele/quadnav/quadtree"
)

var tracer = otel.Tracer("github.com/o0olele/quadnav/builder")

// Builder turns marked triangles into one quad graph per
// agent profile.
type Builder struct {
	settings    BuildSettings
	triangles   []graph.MarkedTriangle
	useParallel bool
	logger      *slog.Logger
}

// NewBuilder creates a builder. Without agents the default profile is used.
func NewBuilder(settings BuildSettings) *Builder {
	if len(settings.Agents) == 0 {
		settings.Agents = []Agent{DefaultAgent()}
	}
	return &Builder{
		settings:    settings,
		useParallel: true,
		logger:      slog.Default(),
	}
}

// SetParallel selects the parallel tree build.
func (nb *Builder) SetParallel(parallel bool) {
	nb.useParallel = parallel
}

// SetLogger sets the build logger.
func (nb *Builder) SetLogger(logger *slog.Logger) {
	if logger != nil {
		nb.logger = logger
	}
}

func (nb *Builder) Settings() BuildSettings {
	return nb.settings
}

// AddTriangle adds one marked triangle.
func (nb *Builder) AddTriangle(triangle geometry.Triangle, area graph.Area, flags graph.Flags) {
	nb.triangles = append(nb.triangles, graph.MarkedTriangle{Triangle: triangle, Area: area, Flags: flags})
}

// AddTriangles adds a batch of marked triangles.
func (nb *Builder) AddTriangles(triangles []graph.MarkedTriangle) {
	nb.triangles = append(nb.triangles, triangles...)
}

// Triangles returns the triangles added so far.
func (nb *Builder) Triangles() []graph.MarkedTriangle {
	return nb.triangles
}

// Hash is the content hash of everything that shapes the build: settings
// and marked triangles in insertion order.
func (nb *Builder) Hash() uint64 {
	return HashSources(nb.settings, nb.triangles)
}

// HashSources hashes build settings and marked triangles.
func HashSources(settings BuildSettings, triangles []graph.MarkedTriangle) uint64 {
	h := geometry.NewHasher()
	h.WriteVector3(settings.Bounds.Min)
	h.WriteVector3(settings.Bounds.Max)
	h.WriteUint32(uint32(settings.MaxDepth))
	h.WriteUint32(uint32(len(settings.Agents)))
	for _, a := range settings.Agents {
		h.WriteString(a.Name)
		h.WriteFloat32(a.Radius)
		h.WriteFloat32(a.Height)
		h.WriteFloat32(a.MaxSlope)
	}
	h.WriteUint32(uint32(len(triangles)))
	for _, t := range triangles {
		h.WriteTriangle(t.Triangle)
		h.WriteUint32(uint32(t.Area))
		h.WriteUint32(uint32(t.Flags))
	}
	return h.Sum64()
}

// Build builds one graph per agent, wrapped in an envelope.
func (nb *Builder) Build(ctx context.Context) (*Envelope, error) {
	ctx, span := tracer.Start(ctx, "builder.Build",
		trace.WithAttributes(attribute.Int("max_depth", nb.settings.MaxDepth)))
	defer span.End()

	if err := nb.settings.Validate(); err != nil {
		return nil, err
	}

	startTime := time.Now()
	env := NewEnvelope(nb.settings, nb.Hash())
	for _, agent := range nb.settings.Agents {
		g, err := nb.BuildGraph(ctx, agent)
		if err != nil {
			span.RecordError(err)
			return nil, err
		}
		if err := env.SetGraph(agent.Name, g); err != nil {
			return nil, err
		}
	}

	span.SetAttributes(
		attribute.Int("agents", len(nb.settings.Agents)),
		attribute.Int("triangles", len(nb.triangles)),
	)
	nb.logger.Info("navigation data built",
		slog.Duration("duration", time.Since(startTime)),
		slog.Int("agents", len(nb.settings.Agents)),
		slog.Int("triangles", len(nb.triangles)),
		slog.Int("bytes", env.DataSize()),
		slog.String("build_id", env.BuildID.String()),
	)
	return env, nil
}

// BuildGraph builds the quad graph of one agent profile. Cells touched by a
// triangle steeper than the agent's max slope are closed.
func (nb *Builder) BuildGraph(ctx context.Context, agent Agent) (*graph.QuadGraph, error) {
	treeStart := time.Now()
	var (
		tree *quadtree.Tree
		err  error
	)
	if nb.useParallel {
		tree, err = quadtree.BuildParallel(ctx, nb.settings.Bounds, nb.settings.MaxDepth)
	} else {
		tree, err = quadtree.Build(nb.settings.Bounds, nb.settings.MaxDepth)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to build quadtree: %w", err)
	}
	nb.logger.Debug("quadtree built",
		slog.String("agent", agent.Name),
		slog.Duration("duration", time.Since(treeStart)),
		slog.Int("nodes", tree.NodeCount()),
		slog.Int("leaves", tree.LeafCount()),
	)

	g := graph.NewQuadGraph(tree)
	marked := g.AddTriangles(nb.triangles)

	closed := 0
	for _, t := range nb.triangles {
		if slopeDegrees(t.Triangle) <= agent.MaxSlope {
			continue
		}
		for _, leaf := range tree.GetNodesInVolume(t.Triangle) {
			if err := g.SetState(int(leaf.ID), graph.StateClosed); err == nil {
				closed++
			}
		}
	}
	nb.logger.Debug("quad graph classified",
		slog.String("agent", agent.Name),
		slog.Int("marked", marked),
		slog.Int("closed", closed),
	)
	return g, nil
}

// slopeDegrees is the angle between the triangle normal and +Y. Degenerate
// triangles count as flat.
func slopeDegrees(t geometry.Triangle) float32 {
	n := t.GetNormal()
	if n.Length() == 0 {
		return 0
	}
	cos := math32.Clamp(math32.Abs(n.Y), 0, 1)
	return float32(math.Acos(float64(cos)) * 180 / math.Pi)
}
