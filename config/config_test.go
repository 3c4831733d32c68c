package config

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/o0olele/quadnav/graph"
	"github.com/o0olele/quadnav/query"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestDefault_Valid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, query.DefaultCacheCapacity, cfg.Solver.CacheCapacity)
}

func TestLoad_YAML(t *testing.T) {
	path := writeFile(t, "quadnav.yaml", `
server:
  addr: ":9090"
log:
  level: debug
  json: true
tree:
  bounds:
    min: {x: 0, y: 0, z: 0}
    max: {x: 16, y: 2, z: 16}
  max_depth: 3
  parallel: false
solver:
  heuristic: manhattan
  weight: 1.5
  cost_mode: state_ordinal
filter:
  include: [walk, swim]
  exclude: [disabled]
  area_costs:
    water: 4
    road: 0.5
store:
  enabled: true
  in_memory: true
  gc_interval: 1m
geometry:
  file: level.yaml
  watch: true
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.Equal(t, []string{"*"}, cfg.Server.CORSOrigins, "unset keys keep defaults")
	assert.True(t, cfg.Log.JSON)
	assert.Equal(t, 3, cfg.Tree.MaxDepth)
	assert.Equal(t, float32(16), cfg.Tree.Bounds.Max.X)
	assert.False(t, cfg.Tree.Parallel)
	assert.True(t, cfg.Store.InMemory)
	assert.Equal(t, "1m0s", cfg.Store.GCInterval.String())
	assert.True(t, cfg.Geometry.Watch)

	solver, search, err := cfg.NewSolver(nil)
	require.NoError(t, err)
	assert.Equal(t, query.Manhattan, search.Heuristic)
	assert.Equal(t, float32(1.5), search.Weight)
	assert.Equal(t, query.CostModeStateOrdinal, solver.CostMode())

	f := solver.Filter()
	assert.Equal(t, graph.FlagWalk|graph.FlagSwim, f.IncludeFlags())
	assert.Equal(t, graph.FlagDisabled, f.ExcludeFlags())
	assert.Equal(t, float32(4), f.AreaCost(graph.AreaWater))
	assert.Equal(t, float32(0.5), f.AreaCost(graph.AreaRoad))
	assert.Equal(t, float32(1), f.AreaCost(graph.AreaGround))
}

func TestLoad_JSON(t *testing.T) {
	path := writeFile(t, "quadnav.json", `{
  "server": {"addr": ":9090"},
  "solver": {"cache_capacity": 4, "heuristic": "manhattan"},
  "filter": {"obstructed_cost": 6}
}`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.Equal(t, 4, cfg.Solver.CacheCapacity)
	assert.Equal(t, "manhattan", cfg.Solver.Heuristic)
	assert.Equal(t, float32(6), cfg.Filter.ObstructedCost)
	assert.Equal(t, Default().Tree, cfg.Tree, "sections not in the file keep their defaults")

	f, err := cfg.Filter.NewFilter()
	require.NoError(t, err)
	assert.Equal(t, float32(6), f.ObstructedCost())
}

func TestLoad_Malformed(t *testing.T) {
	path := writeFile(t, "quadnav.yaml", "server: [unclosed")
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse config")

	path = writeFile(t, "quadnav.yaml", "filter:\n  obstructed_cost: 0.5\n")
	_, err = Load(path)
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestLoad_MissingFileKeepsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default().Server, cfg.Server)
}

func TestLoad_Env(t *testing.T) {
	t.Setenv("QUADNAV_ADDR", ":7000")
	t.Setenv("QUADNAV_MAX_DEPTH", "4")
	t.Setenv("QUADNAV_CACHE_CAPACITY", "not a number")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, ":7000", cfg.Server.Addr)
	assert.Equal(t, 4, cfg.Tree.MaxDepth)
	assert.Equal(t, query.DefaultCacheCapacity, cfg.Solver.CacheCapacity)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"log level", func(c *Config) { c.Log.Level = "loud" }},
		{"tree depth", func(c *Config) { c.Tree.MaxDepth = -1 }},
		{"cache capacity", func(c *Config) { c.Solver.CacheCapacity = 0 }},
		{"weight", func(c *Config) { c.Solver.Weight = 0 }},
		{"heuristic", func(c *Config) { c.Solver.Heuristic = "octile" }},
		{"cost mode", func(c *Config) { c.Solver.CostMode = "random" }},
		{"flag", func(c *Config) { c.Filter.Include = []string{"fly"} }},
		{"area", func(c *Config) { c.Filter.AreaCosts = map[string]float32{"lava": 2} }},
		{"area cost", func(c *Config) { c.Filter.AreaCosts = map[string]float32{"water": -1} }},
		{"profile", func(c *Config) { c.Envelope.Profile = "" }},
		{"store path", func(c *Config) { c.Store.Enabled = true }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			assert.ErrorIs(t, cfg.Validate(), ErrInvalid)
		})
	}
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger, err := LogConfig{Level: "warn", JSON: true}.NewLogger(&buf)
	require.NoError(t, err)

	logger.Info("hidden")
	logger.Warn("shown")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), `"msg":"shown"`)
}
