package builder

import (
	"bytes"
	"context"
	"encoding/binary"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/o0olele/quadnav/geometry"
	"github.com/o0olele/quadnav/graph"
	"github.com/o0olele/quadnav/math32"
)

func vec(x, y, z float32) math32.Vector3 {
	return math32.Vector3{X: x, Y: y, Z: z}
}

func testSettings() BuildSettings {
	return BuildSettings{
		Bounds:   geometry.AABB{Min: vec(0, 0, 0), Max: vec(8, 1, 8)},
		MaxDepth: 2,
	}
}

func floorTriangles() []graph.MarkedTriangle {
	return []graph.MarkedTriangle{
		{Triangle: geometry.Triangle{A: vec(0, 0.5, 0), B: vec(8, 0.5, 0), C: vec(0, 0.5, 8)}, Area: graph.AreaGround, Flags: graph.FlagWalk},
		{Triangle: geometry.Triangle{A: vec(8, 0.5, 0), B: vec(8, 0.5, 8), C: vec(0, 0.5, 8)}, Area: graph.AreaGround, Flags: graph.FlagWalk},
	}
}

// wall is a vertical triangle inside cell 12 (x 4..6, z 4..6).
var wall = geometry.Triangle{A: vec(5, 0.1, 5.2), B: vec(5, 0.9, 5.2), C: vec(5, 0.5, 5.8)}

func newTestBuilder() *Builder {
	b := NewBuilder(testSettings())
	b.SetLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
	b.AddTriangles(floorTriangles())
	return b
}

func TestBuilder_Build(t *testing.T) {
	b := newTestBuilder()
	b.AddTriangle(wall, graph.AreaGround, graph.FlagWalk)

	env, err := b.Build(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint32(NAVIGATION_FILE_VERSION), env.Version)
	assert.Equal(t, b.Hash(), env.Hash)
	assert.Equal(t, []string{DefaultProfile}, env.Profiles())
	assert.NotEqual(t, [16]byte{}, [16]byte(env.BuildID))

	g, err := env.Graph(DefaultProfile)
	require.NoError(t, err)
	require.Len(t, g.Cells(), 16)
	for _, c := range g.Cells() {
		assert.Equal(t, graph.FlagWalk, c.Flags(), "cell %d", c.ID())
		if c.ID() == 12 {
			assert.Equal(t, graph.StateClosed, c.State(), "steep wall closes its cell")
		} else {
			assert.Equal(t, graph.StateClear, c.State(), "cell %d", c.ID())
		}
	}

	_, err = env.Graph("giant")
	assert.ErrorIs(t, err, ErrUnknownProfile)
}

func TestBuilder_AgentSlopeLimit(t *testing.T) {
	settings := testSettings()
	settings.Agents = []Agent{
		{Name: "walker", MaxSlope: 45},
		{Name: "climber", MaxSlope: 90},
	}
	b := NewBuilder(settings)
	b.SetLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
	b.AddTriangles(floorTriangles())
	b.AddTriangle(wall, graph.AreaGround, graph.FlagWalk)

	env, err := b.Build(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"climber", "walker"}, env.Profiles())

	walker, err := env.Graph("walker")
	require.NoError(t, err)
	climber, err := env.Graph("climber")
	require.NoError(t, err)
	assert.Equal(t, graph.StateClosed, walker.Cell(12).State())
	assert.Equal(t, graph.StateClear, climber.Cell(12).State())
}

func TestBuilder_ParallelMatchesSequential(t *testing.T) {
	seq := newTestBuilder()
	seq.SetParallel(false)
	par := newTestBuilder()
	par.SetParallel(true)

	a, err := seq.BuildGraph(context.Background(), DefaultAgent())
	require.NoError(t, err)
	b, err := par.BuildGraph(context.Background(), DefaultAgent())
	require.NoError(t, err)

	da, err := a.MarshalBinary()
	require.NoError(t, err)
	db, err := b.MarshalBinary()
	require.NoError(t, err)
	assert.Equal(t, da, db)
}

func TestBuilder_InvalidSettings(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*BuildSettings)
	}{
		{"negative depth", func(s *BuildSettings) { s.MaxDepth = -1 }},
		{"empty bounds", func(s *BuildSettings) { s.Bounds = geometry.AABB{} }},
		{"duplicate agent", func(s *BuildSettings) { s.Agents = []Agent{DefaultAgent(), DefaultAgent()} }},
		{"unnamed agent", func(s *BuildSettings) { s.Agents = []Agent{{MaxSlope: 45}} }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			settings := testSettings()
			tt.mutate(&settings)
			b := NewBuilder(settings)
			_, err := b.Build(context.Background())
			assert.ErrorIs(t, err, ErrInvalidSettings)
		})
	}
}

func TestHashSources(t *testing.T) {
	a := newTestBuilder()
	b := newTestBuilder()
	assert.Equal(t, a.Hash(), b.Hash())

	b.AddTriangle(wall, graph.AreaGround, graph.FlagWalk)
	assert.NotEqual(t, a.Hash(), b.Hash())

	c := newTestBuilder()
	c.AddTriangle(wall, graph.AreaWater, graph.FlagWalk)
	assert.NotEqual(t, b.Hash(), c.Hash(), "area is part of the hash")

	settings := testSettings()
	settings.MaxDepth = 3
	d := NewBuilder(settings)
	d.AddTriangles(floorTriangles())
	assert.NotEqual(t, a.Hash(), d.Hash(), "settings are part of the hash")
}

func TestSaveLoad_HashValidated(t *testing.T) {
	b := newTestBuilder()
	env, err := b.Build(context.Background())
	require.NoError(t, err)

	filename := filepath.Join(t.TempDir(), "nav.bin")
	h1 := b.Hash()
	require.NoError(t, Save(filename, env))

	t.Run("same hash loads", func(t *testing.T) {
		loaded, ok, err := Load(filename, h1)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, env.BuildID, loaded.BuildID)
		assert.True(t, env.CreatedAt.Equal(loaded.CreatedAt))
		assert.Equal(t, env.Settings, loaded.Settings)
		assert.Equal(t, env.Payloads, loaded.Payloads)

		g, err := loaded.Graph(DefaultProfile)
		require.NoError(t, err)
		assert.Len(t, g.Cells(), 16)
	})

	t.Run("different hash is no graph and no error", func(t *testing.T) {
		loaded, ok, err := Load(filename, h1+1)
		assert.NoError(t, err)
		assert.False(t, ok)
		assert.Nil(t, loaded)
	})

	t.Run("info reads the header", func(t *testing.T) {
		info, err := Info(filename)
		require.NoError(t, err)
		assert.Equal(t, h1, info.Hash)
		assert.Equal(t, uint32(NAVIGATION_FILE_VERSION), info.Version)
		assert.Greater(t, info.FileSize, int64(headerSize))
	})
}

func TestLoad_Failures(t *testing.T) {
	b := newTestBuilder()
	env, err := b.Build(context.Background())
	require.NoError(t, err)
	good, err := Encode(env)
	require.NoError(t, err)

	dir := t.TempDir()
	write := func(name string, content []byte) string {
		path := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(path, content, 0644))
		return path
	}

	t.Run("missing file", func(t *testing.T) {
		_, ok, err := Load(filepath.Join(dir, "missing.bin"), env.Hash)
		assert.False(t, ok)
		assert.ErrorIs(t, err, fs.ErrNotExist)
	})

	t.Run("bad magic", func(t *testing.T) {
		content := bytes.Clone(good)
		content[0] ^= 0xff
		_, ok, err := Load(write("magic.bin", content), env.Hash)
		assert.False(t, ok)
		assert.ErrorIs(t, err, ErrBadMagic)
	})

	t.Run("unsupported version", func(t *testing.T) {
		content := bytes.Clone(good)
		binary.LittleEndian.PutUint32(content[4:8], 99)
		_, ok, err := Load(write("version.bin", content), env.Hash)
		assert.False(t, ok)
		assert.ErrorIs(t, err, ErrUnsupportedVersion)
	})

	t.Run("truncated header", func(t *testing.T) {
		_, ok, err := Load(write("short.bin", good[:5]), env.Hash)
		assert.False(t, ok)
		assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
	})

	t.Run("corrupted body", func(t *testing.T) {
		content := bytes.Clone(good[:headerSize])
		content = append(content, []byte("definitely not zstd")...)
		loaded, ok, err := Load(write("body.bin", content), env.Hash)
		assert.False(t, ok)
		assert.Nil(t, loaded)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to decompress envelope")
	})

	t.Run("corrupted body with stale hash is a plain mismatch", func(t *testing.T) {
		content := bytes.Clone(good[:headerSize])
		content = append(content, 0x00, 0x01)
		_, ok, err := Load(write("stale.bin", content), env.Hash+1)
		assert.False(t, ok)
		assert.NoError(t, err)
	})
}

func TestLoadOrBuild(t *testing.T) {
	filename := filepath.Join(t.TempDir(), "nav.bin")
	ctx := context.Background()

	first, loaded, err := LoadOrBuild(ctx, newTestBuilder(), filename)
	require.NoError(t, err)
	assert.False(t, loaded)

	second, loaded, err := LoadOrBuild(ctx, newTestBuilder(), filename)
	require.NoError(t, err)
	assert.True(t, loaded)
	assert.Equal(t, first.BuildID, second.BuildID)

	changed := newTestBuilder()
	changed.AddTriangle(wall, graph.AreaGround, graph.FlagWalk)
	third, loaded, err := LoadOrBuild(ctx, changed, filename)
	require.NoError(t, err)
	assert.False(t, loaded)
	assert.NotEqual(t, first.BuildID, third.BuildID)

	require.NoError(t, os.WriteFile(filename, []byte("garbage"), 0644))
	fourth, loaded, err := LoadOrBuild(ctx, changed, filename)
	require.NoError(t, err)
	assert.False(t, loaded)
	assert.Equal(t, changed.Hash(), fourth.Hash)
}

func TestSource_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	settings := testSettings()
	src := &Source{Settings: &settings, Triangles: floorTriangles()}

	filename := filepath.Join(dir, "level.yaml")
	require.NoError(t, SaveSource(filename, src))

	loaded, err := LoadSource(filename)
	require.NoError(t, err)
	assert.Equal(t, src.Triangles, loaded.Triangles)
	require.NotNil(t, loaded.Settings)
	assert.Equal(t, settings.Bounds, loaded.Settings.Bounds)

	b := NewSourceBuilder(loaded, BuildSettings{MaxDepth: 5})
	assert.Equal(t, 2, b.Settings().MaxDepth)
	assert.Len(t, b.Triangles(), 2)
}

func TestSource_JSON(t *testing.T) {
	filename := filepath.Join(t.TempDir(), "level.json")
	content := `{"triangles": [{"triangle": {"a": {"x": 0, "y": 0, "z": 0}, "b": {"x": 1, "y": 0, "z": 0}, "c": {"x": 0, "y": 0, "z": 1}}, "area": 1, "flags": 2}]}`
	require.NoError(t, os.WriteFile(filename, []byte(content), 0644))

	src, err := LoadSource(filename)
	require.NoError(t, err)
	assert.Nil(t, src.Settings)
	require.Len(t, src.Triangles, 1)
	assert.Equal(t, graph.AreaWater, src.Triangles[0].Area)
	assert.Equal(t, graph.FlagSwim, src.Triangles[0].Flags)
	assert.Equal(t, vec(1, 0, 0), src.Triangles[0].Triangle.B)

	b := NewSourceBuilder(src, testSettings())
	assert.Equal(t, testSettings().Bounds, b.Settings().Bounds)
}
