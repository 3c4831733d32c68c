// Package config loads the quadnav configuration file.
package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/o0olele/quadnav/builder"
	"github.com/o0olele/quadnav/geometry"
	"github.com/o0olele/quadnav/graph"
	"github.com/o0olele/quadnav/math32"
	"github.com/o0olele/quadnav/query"
	"github.com/o0olele/quadnav/store"
)

var ErrInvalid = errors.New("config: invalid configuration")

// Config is the root of the configuration file.
type Config struct {
	Server   ServerConfig   `yaml:"server" json:"server"`
	Log      LogConfig      `yaml:"log" json:"log"`
	Tree     TreeConfig     `yaml:"tree" json:"tree"`
	Solver   SolverConfig   `yaml:"solver" json:"solver"`
	Filter   FilterConfig   `yaml:"filter" json:"filter"`
	Envelope EnvelopeConfig `yaml:"envelope" json:"envelope"`
	Store    StoreConfig    `yaml:"store" json:"store"`
	Geometry GeometryConfig `yaml:"geometry" json:"geometry"`
}

type ServerConfig struct {
	Addr        string   `yaml:"addr" json:"addr"`
	PprofAddr   string   `yaml:"pprof_addr" json:"pprof_addr"` // empty disables pprof
	CORSOrigins []string `yaml:"cors_origins" json:"cors_origins"`
	StaticDir   string   `yaml:"static_dir" json:"static_dir"`
}

type LogConfig struct {
	Level string `yaml:"level" json:"level"`
	JSON  bool   `yaml:"json" json:"json"`
}

// TreeConfig is the build settings plus how to build.
type TreeConfig struct {
	builder.BuildSettings `yaml:",inline"`
	Parallel              bool `yaml:"parallel" json:"parallel"`
}

type SolverConfig struct {
	CacheCapacity int     `yaml:"cache_capacity" json:"cache_capacity"`
	Heuristic     string  `yaml:"heuristic" json:"heuristic"`
	Weight        float32 `yaml:"weight" json:"weight"`
	CostMode      string  `yaml:"cost_mode" json:"cost_mode"`
}

// FilterConfig names flags and areas instead of using raw bits.
type FilterConfig struct {
	Include        []string           `yaml:"include" json:"include"`
	Exclude        []string           `yaml:"exclude" json:"exclude"`
	AreaCosts      map[string]float32 `yaml:"area_costs" json:"area_costs"`
	ObstructedCost float32            `yaml:"obstructed_cost" json:"obstructed_cost"`
}

type EnvelopeConfig struct {
	Path    string `yaml:"path" json:"path"`
	Profile string `yaml:"profile" json:"profile"`
}

type StoreConfig struct {
	Enabled      bool   `yaml:"enabled" json:"enabled"`
	Key          string `yaml:"key" json:"key"`
	store.Config `yaml:",inline"`
}

type GeometryConfig struct {
	File  string `yaml:"file" json:"file"`
	Watch bool   `yaml:"watch" json:"watch"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Addr:        ":8080",
			CORSOrigins: []string{"*"},
			StaticDir:   "./web",
		},
		Log: LogConfig{Level: "info"},
		Tree: TreeConfig{
			BuildSettings: builder.BuildSettings{
				Bounds: geometry.AABB{
					Min: math32.Vector3{X: -32, Y: -8, Z: -32},
					Max: math32.Vector3{X: 32, Y: 8, Z: 32},
				},
				MaxDepth: 6,
				Agents:   []builder.Agent{builder.DefaultAgent()},
			},
			Parallel: true,
		},
		Solver: SolverConfig{
			CacheCapacity: query.DefaultCacheCapacity,
			Heuristic:     query.Euclidean.String(),
			Weight:        1,
			CostMode:      query.CostModeFilter.String(),
		},
		Filter: FilterConfig{
			Include:        []string{"all"},
			AreaCosts:      map[string]float32{graph.AreaWater.String(): query.DefaultWaterCost},
			ObstructedCost: query.DefaultObstructedCost,
		},
		Envelope: EnvelopeConfig{
			Path:    "navigation.bin",
			Profile: builder.DefaultProfile,
		},
		Store: StoreConfig{
			Key:    "default",
			Config: store.DefaultConfig(),
		},
	}
}

// Load starts from Default, overlays the file at path (YAML or JSON) and
// then QUADNAV_* environment variables. A missing file keeps the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		if err := loadFile(path, &cfg); err != nil {
			return cfg, fmt.Errorf("failed to load config file: %w", err)
		}
	}
	loadEnv(&cfg)

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func loadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	// JSON files parse as YAML too.
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	return nil
}

func loadEnv(cfg *Config) {
	if v := os.Getenv("QUADNAV_ADDR"); v != "" {
		cfg.Server.Addr = v
	}
	if v := os.Getenv("QUADNAV_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("QUADNAV_LOG_JSON"); v != "" {
		cfg.Log.JSON = v == "true" || v == "1"
	}
	if v := os.Getenv("QUADNAV_ENVELOPE"); v != "" {
		cfg.Envelope.Path = v
	}
	if v := os.Getenv("QUADNAV_GEOMETRY"); v != "" {
		cfg.Geometry.File = v
	}
	if v := os.Getenv("QUADNAV_MAX_DEPTH"); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			cfg.Tree.MaxDepth = i
		}
	}
	if v := os.Getenv("QUADNAV_CACHE_CAPACITY"); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			cfg.Solver.CacheCapacity = i
		}
	}
}

// Validate checks every section and parses every name.
func (c Config) Validate() error {
	if _, err := c.Log.level(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if err := c.Tree.Validate(); err != nil {
		return fmt.Errorf("%w: tree: %v", ErrInvalid, err)
	}
	if c.Solver.CacheCapacity < 1 {
		return fmt.Errorf("%w: cache_capacity must be >= 1", ErrInvalid)
	}
	if c.Solver.Weight <= 0 {
		return fmt.Errorf("%w: weight must be > 0", ErrInvalid)
	}
	if _, err := query.ParseHeuristic(c.Solver.Heuristic); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if _, err := query.ParseCostMode(c.Solver.CostMode); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if _, err := c.Filter.NewFilter(); err != nil {
		return fmt.Errorf("%w: filter: %v", ErrInvalid, err)
	}
	if c.Envelope.Profile == "" {
		return fmt.Errorf("%w: envelope profile is required", ErrInvalid)
	}
	if c.Store.Enabled {
		if c.Store.Key == "" {
			return fmt.Errorf("%w: store key is required", ErrInvalid)
		}
		if !c.Store.InMemory && c.Store.Path == "" {
			return fmt.Errorf("%w: store path is required", ErrInvalid)
		}
	}
	return nil
}

func (c LogConfig) level() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(c.Level))); err != nil {
		return level, fmt.Errorf("unknown log level %q", c.Level)
	}
	return level, nil
}

// NewLogger builds a text or JSON logger writing to w.
func (c LogConfig) NewLogger(w io.Writer) (*slog.Logger, error) {
	level, err := c.level()
	if err != nil {
		return nil, err
	}
	opts := &slog.HandlerOptions{Level: level}
	if c.JSON {
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	}
	return slog.New(slog.NewTextHandler(w, opts)), nil
}

// NewFilter builds a query filter from the named flags and area costs. A zero
// ObstructedCost keeps query.DefaultObstructedCost.
func (c FilterConfig) NewFilter() (*query.QueryFilter, error) {
	f := query.NewQueryFilter()
	if len(c.Include) > 0 {
		include, err := graph.ParseFlags(c.Include)
		if err != nil {
			return nil, err
		}
		f.SetIncludeFlags(include)
	}
	exclude, err := graph.ParseFlags(c.Exclude)
	if err != nil {
		return nil, err
	}
	f.SetExcludeFlags(exclude)

	for name, cost := range c.AreaCosts {
		area, err := graph.ParseArea(name)
		if err != nil {
			return nil, err
		}
		if err := f.SetAreaCost(area, cost); err != nil {
			return nil, err
		}
	}
	if c.ObstructedCost != 0 {
		if err := f.SetObstructedCost(c.ObstructedCost); err != nil {
			return nil, err
		}
	}
	return f, nil
}

// Search holds the parsed per-request search defaults.
type Search struct {
	Heuristic query.Heuristic
	Weight    float32
}

// NewSolver builds a solver with its own cache and filter, plus the search
// defaults.
func (c Config) NewSolver(logger *slog.Logger) (*query.Solver, Search, error) {
	h, err := query.ParseHeuristic(c.Solver.Heuristic)
	if err != nil {
		return nil, Search{}, err
	}
	mode, err := query.ParseCostMode(c.Solver.CostMode)
	if err != nil {
		return nil, Search{}, err
	}
	filter, err := c.Filter.NewFilter()
	if err != nil {
		return nil, Search{}, err
	}

	opts := []query.Option{query.WithCostMode(mode)}
	if logger != nil {
		opts = append(opts, query.WithLogger(logger))
	}
	solver := query.NewSolver(query.NewPathCache(c.Solver.CacheCapacity), filter, opts...)
	return solver, Search{Heuristic: h, Weight: c.Solver.Weight}, nil
}
