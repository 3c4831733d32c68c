package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/o0olele/quadnav/builder"
	"github.com/o0olele/quadnav/math32"
	"github.com/o0olele/quadnav/query"
	"github.com/o0olele/quadnav/server"
	"github.com/o0olele/quadnav/store"
)

func openStore() (*store.Store, error) {
	if !cfg.Store.Enabled {
		return nil, nil
	}
	storeCfg := cfg.Store.Config
	storeCfg.Logger = logger
	return store.Open(storeCfg)
}

func ServeCmd() *cobra.Command {
	var addr string
	c := &cobra.Command{
		Use:   "serve",
		Short: "serve the navigation HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			if addr != "" {
				cfg.Server.Addr = addr
			}
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			st, err := openStore()
			if err != nil {
				return err
			}
			if st != nil {
				defer st.Close()
			}

			srv, err := server.New(cfg, logger, st)
			if err != nil {
				return err
			}
			if err := srv.Bootstrap(ctx); err != nil {
				return err
			}
			return srv.Run(ctx)
		},
	}
	c.Flags().StringVar(&addr, "addr", "", "listen address, overrides server.addr")
	return c
}

func BuildCmd() *cobra.Command {
	var (
		geometryFile string
		out          string
		force        bool
		key          string
	)
	c := &cobra.Command{
		Use:   "build",
		Short: "build a navigation envelope from a geometry file",
		RunE: func(cmd *cobra.Command, args []string) error {
			if geometryFile == "" {
				geometryFile = cfg.Geometry.File
			}
			if geometryFile == "" {
				return fmt.Errorf("no geometry file: pass --geometry or set geometry.file")
			}
			if out == "" {
				out = cfg.Envelope.Path
			}

			src, err := builder.LoadSource(geometryFile)
			if err != nil {
				return err
			}
			b := builder.NewSourceBuilder(src, cfg.Tree.BuildSettings)
			b.SetParallel(cfg.Tree.Parallel)
			b.SetLogger(logger)

			ctx := cmd.Context()
			var (
				env    *builder.Envelope
				loaded bool
			)
			if force {
				env, err = builder.BuildAndSave(ctx, b, out)
			} else {
				env, loaded, err = builder.LoadOrBuild(ctx, b, out)
			}
			if err != nil {
				return err
			}

			if key != "" {
				st, err := openStore()
				if err != nil {
					return err
				}
				if st == nil {
					return fmt.Errorf("--key needs store.enabled in the config")
				}
				defer st.Close()
				if err := st.Put(key, env); err != nil {
					return err
				}
			}

			status := "built"
			if loaded {
				status = "up to date"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %s (hash %016x, build %s, profiles %v)\n",
				out, status, env.Hash, env.BuildID, env.Profiles())
			return nil
		},
	}
	c.Flags().StringVar(&geometryFile, "geometry", "", "geometry file (YAML or JSON)")
	c.Flags().StringVarP(&out, "out", "o", "", "envelope file, defaults to envelope.path")
	c.Flags().BoolVar(&force, "force", false, "rebuild even if the envelope is up to date")
	c.Flags().StringVar(&key, "key", "", "also store the envelope under this key")
	return c
}

func PathCmd() *cobra.Command {
	var (
		envelopeFile string
		profile      string
		heuristic    string
		weight       float32
		smooth       int
		asJSON       bool
	)
	c := &cobra.Command{
		Use:   "path START END",
		Short: "find a path in an envelope, positions given as x,y,z",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			start, err := math32.ParseVector3(args[0])
			if err != nil {
				return err
			}
			end, err := math32.ParseVector3(args[1])
			if err != nil {
				return err
			}
			if envelopeFile == "" {
				envelopeFile = cfg.Envelope.Path
			}
			if profile == "" {
				profile = cfg.Envelope.Profile
			}

			solver, search, err := cfg.NewSolver(logger)
			if err != nil {
				return err
			}
			if heuristic != "" {
				if search.Heuristic, err = query.ParseHeuristic(heuristic); err != nil {
					return err
				}
			}
			if weight > 0 {
				search.Weight = weight
			}

			info, err := builder.Info(envelopeFile)
			if err != nil {
				return err
			}
			env, ok, err := builder.Load(envelopeFile, info.Hash)
			if err != nil {
				return err
			}
			if !ok {
				return builder.ErrNoGraph
			}
			nav, err := query.NewNavigator(env, profile)
			if err != nil {
				return err
			}
			nav.Solver = solver

			path, found := nav.FindPath(cmd.Context(), start, end, search.Heuristic, search.Weight)
			if !found {
				return fmt.Errorf("no path from %v to %v", start, end)
			}

			points := path.Waypoints()
			if smooth > 0 {
				points = path.Smooth(smooth)
			}
			w := cmd.OutOrStdout()
			if asJSON {
				return json.NewEncoder(w).Encode(map[string]any{
					"path":   points,
					"cells":  path.IDs(),
					"length": path.Length(),
				})
			}
			for _, p := range points {
				fmt.Fprintf(w, "%g %g %g\n", p.X, p.Y, p.Z)
			}
			return nil
		},
	}
	c.Flags().StringVarP(&envelopeFile, "envelope", "e", "", "envelope file, defaults to envelope.path")
	c.Flags().StringVar(&profile, "profile", "", "agent profile, defaults to envelope.profile")
	c.Flags().StringVar(&heuristic, "heuristic", "", "euclidean, manhattan, diagonal, diagonal_chebyshev or hex")
	c.Flags().Float32Var(&weight, "weight", 0, "heuristic weight")
	c.Flags().IntVar(&smooth, "smooth", 0, "Catmull-Rom segments per span, 0 for raw waypoints")
	c.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	return c
}

func InfoCmd() *cobra.Command {
	c := &cobra.Command{
		Use:   "info [FILE]",
		Short: "print the header of an envelope file",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			filename := cfg.Envelope.Path
			if len(args) == 1 {
				filename = args[0]
			}
			info, err := builder.Info(filename)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(info)
		},
	}
	return c
}
