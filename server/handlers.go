package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/o0olele/quadnav/builder"
	"github.com/o0olele/quadnav/geometry"
	"github.com/o0olele/quadnav/graph"
	"github.com/o0olele/quadnav/math32"
	"github.com/o0olele/quadnav/query"
	"github.com/o0olele/quadnav/quadtree"
	"github.com/o0olele/quadnav/store"
)

// InitRequest describes the graph bounds and agents for /api/init.
type InitRequest struct {
	Bounds   geometry.AABB   `json:"bounds"`
	MaxDepth int             `json:"max_depth"`
	Agents   []builder.Agent `json:"agents,omitempty"`
}

// PathfindRequest is the body of /api/pathfind.
type PathfindRequest struct {
	Start          math32.Vector3 `json:"start"`
	End            math32.Vector3 `json:"end"`
	Heuristic      string         `json:"heuristic,omitempty"`
	Weight         float32        `json:"weight,omitempty"`
	SmoothSegments int            `json:"smooth_segments,omitempty"`
	Simplify       bool           `json:"simplify,omitempty"`
	// CrossPoints reports cell edge crossings and simplifies over them.
	CrossPoints bool `json:"cross_points,omitempty"`
}

// PathfindResponse is the answer of /api/pathfind.
type PathfindResponse struct {
	Path       []math32.Vector3 `json:"path"`
	Cells      []int            `json:"cells"`
	Found      bool             `json:"found"`
	Length     float32          `json:"length"`
	Smoothed   []math32.Vector3 `json:"smoothed,omitempty"`
	Simplified []math32.Vector3 `json:"simplified,omitempty"`
	Crossings  []math32.Vector3 `json:"crossings,omitempty"`
}

// ObstacleRequest changes one cell. Cost is left alone when omitted.
// "obstructed" makes the cell more expensive to enter (filter.obstructed_cost),
// "closed" removes it from every route.
type ObstacleRequest struct {
	ID    int      `json:"id"`
	State string   `json:"state"`
	Cost  *float32 `json:"cost,omitempty"`
}

// EnvelopeRequest names a file inside the envelope directory, or a store key
// when Key is set.
type EnvelopeRequest struct {
	NavigationFilename string `json:"navigation_filename,omitempty"`
	Key                string `json:"key,omitempty"`
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

func statusOf(err error) int {
	switch {
	case errors.Is(err, ErrNotInitialized),
		errors.Is(err, builder.ErrInvalidSettings),
		errors.Is(err, builder.ErrUnknownProfile),
		errors.Is(err, builder.ErrBadMagic),
		errors.Is(err, builder.ErrUnsupportedVersion),
		errors.Is(err, graph.ErrUnknownCell),
		errors.Is(err, graph.ErrNegativeCost),
		errors.Is(err, quadtree.ErrInvalidDepth),
		errors.Is(err, quadtree.ErrDepthTooLarge),
		errors.Is(err, quadtree.ErrEmptyBounds),
		errors.Is(err, store.ErrInvalidKey),
		errors.Is(err, ErrNoStore),
		errors.Is(err, ErrBadFilename):
		return http.StatusBadRequest
	case errors.Is(err, fs.ErrNotExist), errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, builder.ErrNoGraph):
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, msg string, err error) {
	status := statusOf(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error(msg, slog.String("path", r.URL.Path), slog.String("error", err.Error()))
	}
	http.Error(w, fmt.Sprintf("%s: %v", msg, err), status)
}

// initHandler installs an empty graph over the given bounds.
func (s *Server) initHandler(w http.ResponseWriter, r *http.Request) {
	var req InitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}

	b := s.newBuilder(builder.BuildSettings{
		Bounds:   req.Bounds,
		MaxDepth: req.MaxDepth,
		Agents:   req.Agents,
	})
	if err := s.Rebuild(r.Context(), b); err != nil {
		s.fail(w, r, "Failed to initialize", err)
		return
	}

	g := s.Graph()
	writeJSON(w, map[string]any{
		"status": "initialized",
		"cells":  len(g.Cells()),
	})
}

// addMeshHandler adds triangles and rebuilds the graph from all triangles so far.
func (s *Server) addMeshHandler(w http.ResponseWriter, r *http.Request) {
	var triangles []graph.MarkedTriangle
	if err := json.NewDecoder(r.Body).Decode(&triangles); err != nil {
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}

	s.mu.RLock()
	current := s.builder
	s.mu.RUnlock()
	if current == nil {
		s.fail(w, r, "Failed to add mesh", ErrNotInitialized)
		return
	}

	b := s.newBuilder(current.Settings())
	b.AddTriangles(current.Triangles())
	b.AddTriangles(triangles)
	if err := s.Rebuild(r.Context(), b); err != nil {
		s.fail(w, r, "Failed to add mesh", err)
		return
	}

	writeJSON(w, map[string]any{
		"status": "added",
		"count":  len(triangles),
		"total":  len(b.Triangles()),
	})
}

// findPathHandler runs one path query.
func (s *Server) findPathHandler(w http.ResponseWriter, r *http.Request) {
	var req PathfindRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}

	g := s.Graph()
	if g == nil {
		s.fail(w, r, "No pathfinder available", ErrNotInitialized)
		return
	}

	h := s.search.Heuristic
	if req.Heuristic != "" {
		parsed, err := query.ParseHeuristic(req.Heuristic)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		h = parsed
	}
	weight := s.search.Weight
	if req.Weight > 0 {
		weight = req.Weight
	}

	begTime := time.Now()
	path, found := s.solver.FindPath(r.Context(), g, req.Start, req.End, h, weight)
	s.logger.Debug("pathfinding",
		slog.Duration("duration", time.Since(begTime)),
		slog.Bool("found", found),
	)

	resp := PathfindResponse{Found: found}
	if found {
		resp.Path = path.Waypoints()
		resp.Cells = path.IDs()
		resp.Length = path.Length()
		if req.SmoothSegments > 0 {
			resp.Smoothed = path.Smooth(req.SmoothSegments)
		}
		if req.CrossPoints {
			resp.Crossings = path.CrossingPoints()
		}
		switch {
		case req.Simplify && req.CrossPoints:
			resp.Simplified = path.SimplifyCrossings(g, s.solver.Filter(), simplifyStep(g))
		case req.Simplify:
			resp.Simplified = path.Simplify(g, s.solver.Filter(), simplifyStep(g))
		}
	}
	writeJSON(w, resp)
}

// simplifyStep samples line of sight at half the smallest cell size.
func simplifyStep(g *graph.QuadGraph) float32 {
	cells := g.Cells()
	if len(cells) == 0 {
		return 1
	}
	size := cells[0].Bounds().Size()
	return math32.Min(size.X, size.Z) / 2
}

// obstacleHandler sets the state and optionally the cost of one cell.
func (s *Server) obstacleHandler(w http.ResponseWriter, r *http.Request) {
	var req ObstacleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}
	state, err := graph.ParseState(req.State)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	g := s.Graph()
	if g == nil {
		s.fail(w, r, "Failed to set obstacle", ErrNotInitialized)
		return
	}
	if err := g.SetState(req.ID, state); err != nil {
		s.fail(w, r, "Failed to set obstacle", err)
		return
	}
	if req.Cost != nil {
		if err := g.SetCost(req.ID, *req.Cost); err != nil {
			s.fail(w, r, "Failed to set obstacle", err)
			return
		}
	}
	// cached paths may cross the cell
	s.solver.Cache().Clear()

	writeJSON(w, map[string]any{
		"status": "updated",
		"cell":   g.Cell(req.ID).String(),
	})
}

func (s *Server) clearCacheHandler(w http.ResponseWriter, r *http.Request) {
	s.solver.Cache().Clear()
	writeJSON(w, map[string]string{"status": "cleared"})
}

// getQuadtreeHandler exports the tree structure.
func (s *Server) getQuadtreeHandler(w http.ResponseWriter, r *http.Request) {
	g := s.Graph()
	if g == nil {
		s.fail(w, r, "Quadtree not initialized", ErrNotInitialized)
		return
	}

	depth := 0
	if v := r.URL.Query().Get("depth"); v != "" {
		d, err := strconv.Atoi(v)
		if err != nil {
			http.Error(w, "Invalid depth", http.StatusBadRequest)
			return
		}
		depth = d
	}

	if r.URL.Query().Get("format") == "tree" {
		data, err := g.Tree().ToJSON(depth)
		if err != nil {
			s.fail(w, r, "Failed to serialize quadtree", err)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write(data)
		return
	}

	writeJSON(w, map[string]any{
		"max_depth": g.Tree().MaxDepth(),
		"boxes":     g.Tree().GetBoundingBoxes(depth),
	})
}

// volumeFromQuery builds the query volume: box (min, max), centered
// (center, size), sphere (center, radius) or frustum (column-major
// view-projection matrix).
func volumeFromQuery(r *http.Request) (geometry.Volume, error) {
	q := r.URL.Query()
	switch q.Get("type") {
	case "box", "":
		minV, err := math32.ParseVector3(q.Get("min"))
		if err != nil {
			return nil, err
		}
		maxV, err := math32.ParseVector3(q.Get("max"))
		if err != nil {
			return nil, err
		}
		return geometry.NewAABB(minV, maxV), nil
	case "centered":
		center, err := math32.ParseVector3(q.Get("center"))
		if err != nil {
			return nil, err
		}
		size, err := math32.ParseVector3(q.Get("size"))
		if err != nil {
			return nil, err
		}
		return geometry.Box{Center: center, Size: size}, nil
	case "frustum":
		parts := strings.Split(q.Get("matrix"), ",")
		if len(parts) != 16 {
			return nil, fmt.Errorf("frustum matrix needs 16 values, got %d", len(parts))
		}
		var m [16]float32
		for i, p := range parts {
			f, err := strconv.ParseFloat(strings.TrimSpace(p), 32)
			if err != nil {
				return nil, fmt.Errorf("invalid frustum matrix: %w", err)
			}
			m[i] = float32(f)
		}
		return geometry.NewFrustumFromMatrix(m), nil
	case "sphere":
		center, err := math32.ParseVector3(q.Get("center"))
		if err != nil {
			return nil, err
		}
		radius, err := strconv.ParseFloat(q.Get("radius"), 32)
		if err != nil || radius < 0 {
			return nil, fmt.Errorf("invalid radius %q", q.Get("radius"))
		}
		return geometry.Sphere{Center: center, Radius: float32(radius)}, nil
	}
	return nil, fmt.Errorf("unknown volume type %q", q.Get("type"))
}

// volumeHandler returns the leaf ids touched by a volume.
func (s *Server) volumeHandler(w http.ResponseWriter, r *http.Request) {
	g := s.Graph()
	if g == nil {
		s.fail(w, r, "Quadtree not initialized", ErrNotInitialized)
		return
	}
	volume, err := volumeFromQuery(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	leaves := g.Tree().GetNodesInVolume(volume)
	ids := make([]int, len(leaves))
	for i, leaf := range leaves {
		ids[i] = int(leaf.ID)
	}
	writeJSON(w, map[string]any{"ids": ids})
}

func (s *Server) envelopeRequest(w http.ResponseWriter, r *http.Request) (EnvelopeRequest, bool) {
	var req EnvelopeRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "Invalid JSON", http.StatusBadRequest)
			return req, false
		}
	}
	if req.Key == "" {
		filename, err := s.envelopeFile(req.NavigationFilename)
		if err != nil {
			http.Error(w, err.Error(), statusOf(err))
			return req, false
		}
		req.NavigationFilename = filename
	}
	return req, true
}

// envelopeFile resolves a client-supplied file name inside the directory of
// envelope.path. An empty name is envelope.path itself. Absolute names and
// names climbing out with ".." are rejected.
func (s *Server) envelopeFile(name string) (string, error) {
	if name == "" {
		return s.cfg.Envelope.Path, nil
	}
	if !filepath.IsLocal(name) {
		return "", fmt.Errorf("%w: %q", ErrBadFilename, name)
	}
	return filepath.Join(filepath.Dir(s.cfg.Envelope.Path), name), nil
}

// saveHandler writes the current envelope.
func (s *Server) saveHandler(w http.ResponseWriter, r *http.Request) {
	req, ok := s.envelopeRequest(w, r)
	if !ok {
		return
	}

	var (
		env *builder.Envelope
		err error
	)
	if req.Key != "" {
		env, err = s.SaveToStore(req.Key)
	} else {
		env, err = s.SaveEnvelope(req.NavigationFilename)
	}
	if err != nil {
		s.fail(w, r, "Failed to save navigation data", err)
		return
	}

	writeJSON(w, map[string]any{
		"status":   "saved",
		"build_id": env.BuildID.String(),
		"hash":     fmt.Sprintf("%016x", env.Hash),
	})
}

// loadHandler installs an envelope from a file or the store.
func (s *Server) loadHandler(w http.ResponseWriter, r *http.Request) {
	req, ok := s.envelopeRequest(w, r)
	if !ok {
		return
	}

	begTime := time.Now()
	var err error
	if req.Key != "" {
		err = s.LoadFromStore(req.Key)
	} else {
		err = s.LoadEnvelope(req.NavigationFilename)
	}
	if err != nil {
		s.fail(w, r, "Failed to load navigation data", err)
		return
	}
	s.logger.Info("navigation data loaded", slog.Duration("duration", time.Since(begTime)))

	writeJSON(w, map[string]any{
		"status": "loaded",
		"stats":  s.Stats(),
	})
}

// Stats describes the live graph and the solver cache.
type Stats struct {
	Initialized bool              `json:"initialized"`
	Hash        string            `json:"hash,omitempty"`
	BuildID     string            `json:"build_id,omitempty"`
	MaxDepth    int               `json:"max_depth"`
	NodeCount   int               `json:"node_count"`
	LeafCount   int               `json:"leaf_count"`
	Triangles   int               `json:"triangles"`
	Cells       map[string]int    `json:"cells,omitempty"`
	Cache       math32.CacheStats `json:"cache"`
	CostMode    string            `json:"cost_mode"`
	Heuristic   string            `json:"heuristic"`
}

// Stats snapshots the server state.
func (s *Server) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := Stats{
		Cache:     s.solver.Cache().Stats(),
		CostMode:  s.solver.CostMode().String(),
		Heuristic: s.search.Heuristic.String(),
	}
	if s.graph == nil {
		return stats
	}

	tree := s.graph.Tree()
	stats.Initialized = true
	stats.Hash = fmt.Sprintf("%016x", s.hash)
	stats.BuildID = s.buildID
	stats.MaxDepth = tree.MaxDepth()
	stats.NodeCount = tree.NodeCount()
	stats.LeafCount = tree.LeafCount()
	stats.Triangles = len(s.builder.Triangles())
	stats.Cells = make(map[string]int)
	for state, n := range s.graph.Counts() {
		stats.Cells[state.String()] = n
	}
	return stats
}

func (s *Server) statsHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.Stats())
}

// navigationInfoHandler reads an envelope header.
func (s *Server) navigationInfoHandler(w http.ResponseWriter, r *http.Request) {
	filename, err := s.envelopeFile(r.URL.Query().Get("filename"))
	if err != nil {
		http.Error(w, err.Error(), statusOf(err))
		return
	}

	info, err := builder.Info(filename)
	if err != nil {
		s.fail(w, r, "Failed to get file info", err)
		return
	}
	writeJSON(w, info)
}
