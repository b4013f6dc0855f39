package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/matzehuels/mtxlayout/pkg/mtx"
	"github.com/matzehuels/mtxlayout/pkg/pipeline"
)

// convertCommand creates the convert command for similarity matrices.
func (c *CLI) convertCommand() *cobra.Command {
	var (
		output string
		cutoff float64
		force  bool
	)

	cmd := &cobra.Command{
		Use:   "convert [similarity.csv]",
		Short: "Turn a CSV similarity matrix into a matrix file",
		Long: `Turn a CSV similarity matrix into a matrix file.

Row i of the CSV holds the similarity of item i to every other item. Items
i and j are connected when their similarity lies strictly between --cutoff
and 1. Only the lower triangle is read.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runConvert(args[0], output, cutoff, force)
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default: <input>.mtx)")
	cmd.Flags().Float64Var(&cutoff, "cutoff", mtx.DefaultCutoff, "minimum similarity of connected items")
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing output file")

	return cmd
}

func (c *CLI) runConvert(input, output string, cutoff float64, force bool) error {
	adj, err := mtx.ImportSimilarity(input, cutoff)
	if err != nil {
		return err
	}

	if output == "" {
		output = strings.TrimSuffix(input, filepath.Ext(input)) + pipeline.ExtMatrix
	}
	flags := os.O_WRONLY | os.O_CREATE | os.O_EXCL
	if force {
		flags = os.O_WRONLY | os.O_CREATE | os.O_TRUNC
	}
	f, err := os.OpenFile(output, flags, 0o644)
	if err != nil {
		if os.IsExist(err) {
			return fmt.Errorf("%s exists (use --force to overwrite)", output)
		}
		return err
	}
	if err := mtx.WriteAdjacency(f, adj); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", output, err)
	}
	if err := f.Close(); err != nil {
		return err
	}

	c.Logger.Debug("converted similarity matrix", "input", input, "cutoff", cutoff, "pairs", len(adj.Entries))
	printSuccess("Converted %d items", adj.N)
	printFile(output)
	printDetail("%d pairs above %.3g", len(adj.Entries), cutoff)
	printNewline()
	printNextStep("Solve", fmt.Sprintf("%s solve %s", appName, output))
	return nil
}
