package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"umlrender/internal/domain"
	"umlrender/internal/infra/logging"
	"umlrender/internal/render"
)

func newRenderCmd() *cobra.Command {
	var in, out, format string
	cmd := &cobra.Command{
		Use:   "render",
		Short: "Render a diagram file once and exit",
		Example: "  umlrender render --in diagram.puml --format svg --out diagram.svg\n" +
			"  cat diagram.puml | umlrender render --format txt",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			// stdout may carry the artifact
			logging.SetOutput(cmd.ErrOrStderr())
			source, err := readSource(cmd.InOrStdin(), in)
			if err != nil {
				return err
			}
			svc, err := render.NewFromConfig(cfg, nil)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			res, err := svc.Render(ctx, domain.RenderRequest{SourceText: source, Format: format}).Await(ctx)
			if err != nil {
				de := domain.Classify(err)
				return fmt.Errorf("%s: %s", de.Code(), de.Message)
			}
			if err := writeArtifact(cmd.OutOrStdout(), out, res.ImageBytes); err != nil {
				return err
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "rendered %s in %dms\n", res.Format, res.RenderTimeMs)
			return nil
		},
	}
	cmd.Flags().StringVar(&in, "in", "-", "diagram source file, - for stdin")
	cmd.Flags().StringVar(&out, "out", "-", "output file, - for stdout")
	cmd.Flags().StringVar(&format, "format", string(domain.DefaultFormat), "output format: png, svg or txt")
	return cmd
}

func readSource(stdin io.Reader, path string) (string, error) {
	if path == "" || path == "-" {
		b, err := io.ReadAll(stdin)
		return string(b), err
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func writeArtifact(stdout io.Writer, path string, data []byte) error {
	if path == "" || path == "-" {
		_, err := stdout.Write(data)
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
