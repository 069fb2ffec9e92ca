package main

import (
	"fmt"
	"runtime/debug"

	"github.com/spf13/cobra"

	"umlrender/internal/render"
)

func newVersionCmd() *cobra.Command {
	var engine bool
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print build information and, with --engine, the PlantUML version",
		RunE: func(cmd *cobra.Command, _ []string) error {
			w := cmd.OutOrStdout()
			if info, ok := debug.ReadBuildInfo(); ok {
				fmt.Fprintf(w, "umlrender: %s\n", info.Main.Version)
				fmt.Fprintf(w, "go:        %s\n", info.GoVersion)
				for _, s := range info.Settings {
					if s.Key == "vcs.revision" {
						fmt.Fprintf(w, "commit:    %s\n", s.Value)
					}
				}
			} else {
				fmt.Fprintln(w, "umlrender: version info not available")
			}
			if !engine {
				return nil
			}

			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			svc, err := render.NewFromConfig(cfg, nil)
			if err != nil {
				return err
			}
			st := svc.Status(cmd.Context())
			fmt.Fprintf(w, "plantuml:  %s (%s)\n", st.EngineVersion, cfg.Engine.Kind)
			if !st.Healthy {
				return fmt.Errorf("engine unreachable")
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&engine, "engine", false, "also query the configured PlantUML engine")
	return cmd
}
