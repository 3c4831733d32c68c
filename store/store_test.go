package store

import (
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/o0olele/quadnav/builder"
	"github.com/o0olele/quadnav/geometry"
	"github.com/o0olele/quadnav/graph"
	"github.com/o0olele/quadnav/math32"
	"github.com/o0olele/quadnav/quadtree"
)

func testEnvelope(t *testing.T, hash uint64) *builder.Envelope {
	t.Helper()
	settings := builder.BuildSettings{
		Bounds:   geometry.AABB{Max: math32.Vector3{X: 4, Y: 1, Z: 4}},
		MaxDepth: 1,
		Agents:   []builder.Agent{builder.DefaultAgent()},
	}
	tree, err := quadtree.Build(settings.Bounds, settings.MaxDepth)
	require.NoError(t, err)
	g := graph.NewQuadGraph(tree)
	g.Fill(graph.AreaGround, graph.FlagWalk)

	env := builder.NewEnvelope(settings, hash)
	require.NoError(t, env.SetGraph(builder.DefaultProfile, g))
	return env
}

func openInMemory(t *testing.T) *Store {
	t.Helper()
	s, err := Open(InMemoryConfig())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestStore_PutGet(t *testing.T) {
	s := openInMemory(t)
	env := testEnvelope(t, 42)
	require.NoError(t, s.Put("level-1", env))

	t.Run("matching hash", func(t *testing.T) {
		got, ok, err := s.Get("level-1", 42)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, env.BuildID, got.BuildID)

		g, err := got.Graph(builder.DefaultProfile)
		require.NoError(t, err)
		assert.Len(t, g.Cells(), 4)
	})

	t.Run("stale hash", func(t *testing.T) {
		got, ok, err := s.Get("level-1", 43)
		assert.NoError(t, err)
		assert.False(t, ok)
		assert.Nil(t, got)
	})

	t.Run("missing key", func(t *testing.T) {
		_, ok, err := s.Get("level-2", 42)
		assert.False(t, ok)
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("empty key", func(t *testing.T) {
		assert.ErrorIs(t, s.Put("", env), ErrInvalidKey)
		_, _, err := s.Get("", 42)
		assert.ErrorIs(t, err, ErrInvalidKey)
	})
}

func TestStore_Overwrite(t *testing.T) {
	s := openInMemory(t)
	require.NoError(t, s.Put("level", testEnvelope(t, 1)))
	second := testEnvelope(t, 2)
	require.NoError(t, s.Put("level", second))

	_, ok, err := s.Get("level", 1)
	require.NoError(t, err)
	assert.False(t, ok)

	got, ok, err := s.Get("level", 2)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, second.BuildID, got.BuildID)
}

func TestStore_KeysDelete(t *testing.T) {
	s := openInMemory(t)
	for _, key := range []string{"b", "a", "c"} {
		require.NoError(t, s.Put(key, testEnvelope(t, 7)))
	}

	keys, err := s.Keys()
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, keys)

	require.NoError(t, s.Delete("b"))
	require.NoError(t, s.Delete("missing"))

	keys, err = s.Keys()
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "c"}, keys)

	_, _, err = s.Get("b", 7)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStore_Persistent(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "db")
	cfg := DefaultConfig()
	cfg.Path = dir
	cfg.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))

	s, err := Open(cfg)
	require.NoError(t, err)
	env := testEnvelope(t, 9)
	require.NoError(t, s.Put("level", env))
	require.NoError(t, s.Close())

	s, err = Open(cfg)
	require.NoError(t, err)
	defer s.Close()

	got, ok, err := s.Get("level", 9)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, env.BuildID, got.BuildID)
}

func TestOpen_RequiresPath(t *testing.T) {
	_, err := Open(DefaultConfig())
	assert.ErrorIs(t, err, ErrNoPath)
}
