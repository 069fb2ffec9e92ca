package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"umlrender/internal/config"
	"umlrender/internal/infra/logging"
)

var flagConfigPath string

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "umlrender:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "umlrender",
		Short:        "PlantUML rendering service",
		SilenceUsage: true,
		// serving is the default action
		RunE: runServe,
	}
	root.PersistentFlags().StringVar(&flagConfigPath, "config", "", "config file (default $CONFIG_PATH or config.yaml)")

	root.AddCommand(&cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE:  runServe,
	})
	root.AddCommand(newRenderCmd())
	root.AddCommand(newVersionCmd())
	return root
}

// loadConfig reads the configuration and initialises logging from it.
func loadConfig() (cfg config.Config, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%v", r)
		}
	}()
	if flagConfigPath != "" {
		cfg = config.LoadFrom(flagConfigPath)
	} else {
		cfg = config.Load()
	}
	logging.InitLogger(
		cfg.Logger.File,
		cfg.Logger.MaxSizeMB,
		cfg.Logger.MaxBackups,
		cfg.Logger.MaxAgeDays,
		cfg.Logger.Compress,
		cfg.Logger.Level,
	)
	return cfg, nil
}
