// Package server exposes the navigation graph over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"sync"
	"time"

	_ "net/http/pprof"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"

	"github.com/o0olele/quadnav/builder"
	"github.com/o0olele/quadnav/config"
	"github.com/o0olele/quadnav/graph"
	"github.com/o0olele/quadnav/query"
	"github.com/o0olele/quadnav/store"
)

var (
	ErrNotInitialized = errors.New("server: navigation graph not initialized")
	ErrNoStore        = errors.New("server: no store configured")
	ErrBadFilename    = errors.New("server: file name must stay inside the envelope directory")
)

// Server holds one live navigation graph, the sources it was built from and
// the solver that searches it.
type Server struct {
	cfg    config.Config
	logger *slog.Logger
	store  *store.Store
	search config.Search
	solver *query.Solver

	mu      sync.RWMutex
	builder *builder.Builder
	graph   *graph.QuadGraph
	hash    uint64
	buildID string
}

// New creates a server from cfg. st may be nil when no store is configured.
func New(cfg config.Config, logger *slog.Logger, st *store.Store) (*Server, error) {
	if logger == nil {
		logger = slog.Default()
	}
	solver, search, err := cfg.NewSolver(logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create solver: %w", err)
	}
	return &Server{
		cfg:    cfg,
		logger: logger,
		store:  st,
		search: search,
		solver: solver,
	}, nil
}

// Solver returns the shared solver.
func (s *Server) Solver() *query.Solver {
	return s.solver
}

// Graph returns the live graph, or nil before initialization.
func (s *Server) Graph() *graph.QuadGraph {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.graph
}

func (s *Server) newBuilder(settings builder.BuildSettings) *builder.Builder {
	b := builder.NewBuilder(settings)
	b.SetParallel(s.cfg.Tree.Parallel)
	b.SetLogger(s.logger)
	return b
}

// agent returns the configured profile of b's settings.
func (s *Server) agent(b *builder.Builder) (builder.Agent, error) {
	for _, a := range b.Settings().Agents {
		if a.Name == s.cfg.Envelope.Profile {
			return a, nil
		}
	}
	return builder.Agent{}, fmt.Errorf("%w: %q", builder.ErrUnknownProfile, s.cfg.Envelope.Profile)
}

// install swaps in a new graph and drops every cached path.
// Caller must hold s.mu.
func (s *Server) install(b *builder.Builder, g *graph.QuadGraph, hash uint64, buildID string) {
	s.builder = b
	s.graph = g
	s.hash = hash
	s.buildID = buildID
	s.solver.Cache().Clear()
}

// Rebuild builds the graph of b for the configured profile and installs it.
func (s *Server) Rebuild(ctx context.Context, b *builder.Builder) error {
	settings := b.Settings()
	if err := settings.Validate(); err != nil {
		return err
	}
	agent, err := s.agent(b)
	if err != nil {
		return err
	}
	g, err := b.BuildGraph(ctx, agent)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.install(b, g, b.Hash(), "")
	s.mu.Unlock()
	return nil
}

// ReloadGeometry reads the configured geometry file, reuses the envelope
// file when it matches and rebuilds it otherwise.
func (s *Server) ReloadGeometry(ctx context.Context) error {
	src, err := builder.LoadSource(s.cfg.Geometry.File)
	if err != nil {
		return err
	}
	b := builder.NewSourceBuilder(src, s.cfg.Tree.BuildSettings)
	b.SetParallel(s.cfg.Tree.Parallel)
	b.SetLogger(s.logger)

	startTime := time.Now()
	env, loaded, err := builder.LoadOrBuild(ctx, b, s.cfg.Envelope.Path)
	if err != nil {
		return err
	}
	g, err := env.Graph(s.cfg.Envelope.Profile)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.install(b, g, env.Hash, env.BuildID.String())
	s.mu.Unlock()

	s.logger.Info("geometry loaded",
		slog.String("file", s.cfg.Geometry.File),
		slog.Bool("from_envelope", loaded),
		slog.Int("triangles", len(b.Triangles())),
		slog.Duration("duration", time.Since(startTime)),
	)
	return nil
}

// LoadEnvelope installs the graph stored in filename. The file must have
// been built from the current sources unless none are loaded yet, in which
// case its own header hash is trusted.
func (s *Server) LoadEnvelope(filename string) error {
	expected, err := s.expectedHash(func() (uint64, error) {
		info, err := builder.Info(filename)
		if err != nil {
			return 0, err
		}
		return info.Hash, nil
	})
	if err != nil {
		return err
	}

	env, ok, err := builder.Load(filename, expected)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: %s was built from other sources", builder.ErrNoGraph, filename)
	}
	return s.installEnvelope(env)
}

// LoadFromStore installs the graph stored under key, with the same hash
// rule as LoadEnvelope.
func (s *Server) LoadFromStore(key string) error {
	if s.store == nil {
		return ErrNoStore
	}
	expected, err := s.expectedHash(func() (uint64, error) {
		return s.store.Hash(key)
	})
	if err != nil {
		return err
	}

	env, ok, err := s.store.Get(key, expected)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: %q was built from other sources", builder.ErrNoGraph, key)
	}
	return s.installEnvelope(env)
}

func (s *Server) expectedHash(fallback func() (uint64, error)) (uint64, error) {
	s.mu.RLock()
	b := s.builder
	hash := s.hash
	s.mu.RUnlock()
	if b != nil && len(b.Triangles()) > 0 {
		return hash, nil
	}
	return fallback()
}

func (s *Server) installEnvelope(env *builder.Envelope) error {
	g, err := env.Graph(s.cfg.Envelope.Profile)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	b := s.builder
	if b == nil || len(b.Triangles()) == 0 {
		b = s.newBuilder(env.Settings)
	}
	s.install(b, g, env.Hash, env.BuildID.String())
	return nil
}

// snapshot wraps the live graph, dynamic obstacles included, in an envelope.
func (s *Server) snapshot() (*builder.Envelope, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.graph == nil {
		return nil, ErrNotInitialized
	}
	env := builder.NewEnvelope(s.builder.Settings(), s.hash)
	if err := env.SetGraph(s.cfg.Envelope.Profile, s.graph); err != nil {
		return nil, err
	}
	return env, nil
}

// SaveEnvelope writes the live graph to filename.
func (s *Server) SaveEnvelope(filename string) (*builder.Envelope, error) {
	env, err := s.snapshot()
	if err != nil {
		return nil, err
	}
	if err := builder.Save(filename, env); err != nil {
		return nil, err
	}
	return env, nil
}

// SaveToStore writes the live graph under key.
func (s *Server) SaveToStore(key string) (*builder.Envelope, error) {
	if s.store == nil {
		return nil, ErrNoStore
	}
	env, err := s.snapshot()
	if err != nil {
		return nil, err
	}
	if err := s.store.Put(key, env); err != nil {
		return nil, err
	}
	return env, nil
}

// Bootstrap loads the initial graph: from the geometry file if one is
// configured, else from the envelope file if it exists. Without either the
// server starts empty and waits for /api/init.
func (s *Server) Bootstrap(ctx context.Context) error {
	if s.cfg.Geometry.File != "" {
		return s.ReloadGeometry(ctx)
	}
	if s.store != nil && s.cfg.Store.Key != "" {
		err := s.LoadFromStore(s.cfg.Store.Key)
		if err == nil {
			return nil
		}
		if !errors.Is(err, store.ErrNotFound) {
			return err
		}
	}
	if _, err := os.Stat(s.cfg.Envelope.Path); err == nil {
		return s.LoadEnvelope(s.cfg.Envelope.Path)
	}
	s.logger.Info("starting without navigation graph")
	return nil
}

// Handler returns the routed, CORS-wrapped HTTP handler.
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()

	// API routes
	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/init", s.initHandler).Methods("POST")
	api.HandleFunc("/mesh", s.addMeshHandler).Methods("POST")
	api.HandleFunc("/pathfind", s.findPathHandler).Methods("POST")
	api.HandleFunc("/obstacle", s.obstacleHandler).Methods("POST")
	api.HandleFunc("/cache/clear", s.clearCacheHandler).Methods("POST")
	api.HandleFunc("/quadtree", s.getQuadtreeHandler).Methods("GET")
	api.HandleFunc("/volume", s.volumeHandler).Methods("GET")
	api.HandleFunc("/save", s.saveHandler).Methods("POST")
	api.HandleFunc("/load", s.loadHandler).Methods("POST")
	api.HandleFunc("/stats", s.statsHandler).Methods("GET")
	api.HandleFunc("/navigation/info", s.navigationInfoHandler).Methods("GET")

	r.Handle("/metrics", promhttp.Handler()).Methods("GET")

	// static files
	if s.cfg.Server.StaticDir != "" {
		r.PathPrefix("/").Handler(http.FileServer(http.Dir(s.cfg.Server.StaticDir)))
	}

	// CORS
	c := cors.New(cors.Options{
		AllowedOrigins: s.cfg.Server.CORSOrigins,
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"*"},
	})
	return c.Handler(r)
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	if s.cfg.Server.PprofAddr != "" {
		go func() {
			// net/http/pprof registers on the default mux
			err := http.ListenAndServe(s.cfg.Server.PprofAddr, nil)
			s.logger.Warn("pprof server stopped", slog.String("error", err.Error()))
		}()
	}

	if s.cfg.Geometry.File != "" && s.cfg.Geometry.Watch {
		w, err := NewGeometryWatcher(s.cfg.Geometry.File, func() {
			if err := s.ReloadGeometry(ctx); err != nil {
				s.logger.Error("failed to reload geometry", slog.String("error", err.Error()))
			}
		}, s.logger)
		if err != nil {
			return fmt.Errorf("failed to watch geometry: %w", err)
		}
		if err := w.Start(ctx); err != nil {
			return fmt.Errorf("failed to watch geometry: %w", err)
		}
		defer w.Stop()
	}

	srv := &http.Server{
		Addr:              s.cfg.Server.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server listening", slog.String("addr", srv.Addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down server: %w", err)
	}
	return nil
}
