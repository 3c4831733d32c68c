package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/o0olele/quadnav/config"
)

var (
	configFile string
	logLevel   string

	cfg    config.Config
	logger *slog.Logger
)

func main() {
	root := &cobra.Command{
		Use:           "quadnav",
		Short:         "Quadtree navigation graphs and A* path queries",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			cfg, err = config.Load(configFile)
			if err != nil {
				return err
			}
			if logLevel != "" {
				cfg.Log.Level = logLevel
			}
			logger, err = cfg.Log.NewLogger(os.Stderr)
			if err != nil {
				return err
			}
			slog.SetDefault(logger)
			return nil
		},
	}
	root.PersistentFlags().StringVar(&configFile, "config", "quadnav.yaml", "config file")
	root.PersistentFlags().StringVar(&logLevel, "log-level", "", "override the configured log level")

	root.AddCommand(
		ServeCmd(),
		BuildCmd(),
		PathCmd(),
		InfoCmd(),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
