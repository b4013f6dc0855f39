package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/matzehuels/mtxlayout/pkg/config"
	"github.com/matzehuels/mtxlayout/pkg/pipeline"
	"github.com/matzehuels/mtxlayout/pkg/simplify"
)

// inspectCommand creates the inspect command.
func (c *CLI) inspectCommand() *cobra.Command {
	var (
		dryRun     bool
		configPath string
	)

	cmd := &cobra.Command{
		Use:   "inspect [file]",
		Short: "Summarize a matrix or checkpoint file",
		Long: `Summarize a matrix (.mtx) or checkpoint (.mtxs) file.

For matrices the header dimension and the pairs read, dropped and kept are
reported. For checkpoints the node and edge counts and the bounding box of
the layout are reported. With --simplify the graph is also simplified and
the resulting aggregates are counted; nothing is written.`,
		Args:              cobra.ExactArgs(1),
		ValidArgsFunction: matrixFiles,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Default()
			if configPath != "" {
				var err error
				if cfg, err = config.Load(configPath); err != nil {
					return err
				}
			}
			return c.runInspect(cmd, args[0], cfg, dryRun)
		},
	}

	cmd.Flags().BoolVar(&dryRun, "simplify", false, "simplify the graph and report aggregates")
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "simulation config file (.toml, .yaml)")

	return cmd
}

func (c *CLI) runInspect(cmd *cobra.Command, path string, cfg config.Simulation, dryRun bool) error {
	runner := pipeline.NewRunner(nil, c.Logger)
	defer runner.Close()

	g, info, err := runner.Load(cmd.Context(), path, cfg)
	if err != nil {
		return err
	}

	printSuccess("%s", path)
	switch info.Kind {
	case pipeline.KindMatrix:
		printMatrixInfo(info)
	case pipeline.KindCheckpoint:
		lo, hi := g.Bounds()
		printKeyValue("Center", formatVec(g.Center()))
		printKeyValue("Bounds", formatVec(lo)+" .. "+formatVec(hi))
		printKeyValue("Extent", formatVec(r3.Sub(hi, lo)))
	}

	if dryRun {
		if g.AggregateCount() > 0 {
			printWarning("Graph is already simplified")
		} else {
			res := simplify.Run(g, cfg)
			printKeyValue("Aggregates", fmt.Sprintf("%d", res.Aggregates))
			printKeyValue("Absorbed", fmt.Sprintf("%d", res.Absorbed))
			printKeyValue("Active", fmt.Sprintf("%d entities", len(g.ActiveEntities())))
		}
	}

	printStats(g.NodeCount(), g.EdgeCount(), string(info.Kind))
	return nil
}

func formatVec(v r3.Vec) string {
	return fmt.Sprintf("(%.3f, %.3f, %.3f)", v.X, v.Y, v.Z)
}
