package cli

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/matzehuels/mtxlayout/pkg/mtx"
	"github.com/matzehuels/mtxlayout/pkg/pipeline"
	"github.com/matzehuels/mtxlayout/pkg/render"
	"github.com/matzehuels/mtxlayout/pkg/store"
)

// formatJSON is handled here rather than by pkg/render: it is a data
// export, not a drawing.
const formatJSON = "json"

// renderOpts holds the command-line flags for the render command.
type renderOpts struct {
	output      string  // output file (default: <name>.<format> next to the input)
	format      string  // dot, svg or json
	plane       string  // projected axes: xy, xz, yz
	scale       float64 // inches per layout unit
	colorFactor float64 // edge length, in means, that maps to the last gradient color
	labels      bool    // write matrix IDs next to nodes
	store       storeFlags
}

// renderCommand creates the render command.
func (c *CLI) renderCommand() *cobra.Command {
	var opts renderOpts

	cmd := &cobra.Command{
		Use:   "render [checkpoint.mtxs | name]",
		Short: "Draw a solved layout as SVG or DOT",
		Long: `Draw a solved layout as SVG or DOT.

The argument is a checkpoint file or, when no such file exists, the name of
a checkpoint in the store. Nodes are projected onto one axis plane and
pinned; edges are colored by length from red (short) to blue (long).
--format json exports the positions and edges instead.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runRender(cmd.Context(), args[0], opts)
		},
	}

	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "output file (default: <name>.<format>)")
	cmd.Flags().StringVarP(&opts.format, "format", "f", string(render.FormatSVG), "output format: svg, dot, json")
	cmd.Flags().StringVar(&opts.plane, "plane", string(render.PlaneXY), "projection plane: xy, xz, yz")
	cmd.Flags().Float64Var(&opts.scale, "scale", render.DefaultScale, "inches per layout unit")
	cmd.Flags().Float64Var(&opts.colorFactor, "color-factor", render.DefaultColorFactor, "edge length, in means, drawn in the last color")
	cmd.Flags().BoolVar(&opts.labels, "labels", false, "label nodes with their matrix IDs")
	opts.store.register(cmd)

	return cmd
}

func (c *CLI) runRender(ctx context.Context, arg string, opts renderOpts) error {
	prog := newProgress(c.Logger)

	cp, name, err := loadCheckpoint(ctx, arg, &opts.store)
	if err != nil {
		return err
	}

	var data []byte
	ext := opts.format
	if opts.format == formatJSON {
		var buf bytes.Buffer
		if err := mtx.WriteJSON(&buf, cp); err != nil {
			return err
		}
		data = buf.Bytes()
	} else {
		format, err := render.ParseFormat(opts.format)
		if err != nil {
			return err
		}
		ext = string(format)
		plane, err := render.ParsePlane(opts.plane)
		if err != nil {
			return err
		}
		spinner := newSpinner(ctx, fmt.Sprintf("Rendering %s...", name))
		spinner.Start()
		data, err = render.Render(ctx, cp, format, render.Options{
			Plane:       plane,
			Scale:       opts.scale,
			ColorFactor: opts.colorFactor,
			Labels:      opts.labels,
		})
		spinner.Stop()
		if err != nil {
			return fmt.Errorf("render %s: %w", name, err)
		}
	}

	out := opts.output
	if out == "" {
		out = name + "." + ext
	}
	if err := os.WriteFile(out, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", out, err)
	}
	prog.done("Rendered " + out)

	printSuccess("Rendered %s", name)
	printFile(out)
	printStats(len(cp.Nodes), len(cp.Edges), ext)
	return nil
}

// loadCheckpoint reads arg as a checkpoint file if it exists, otherwise as
// a name in the store. It returns the checkpoint and its display name.
func loadCheckpoint(ctx context.Context, arg string, flags *storeFlags) (*mtx.Checkpoint, string, error) {
	if _, err := os.Stat(arg); err == nil {
		cp, err := mtx.ImportSolved(arg)
		if err != nil {
			return nil, "", err
		}
		name := strings.TrimSuffix(filepath.Base(arg), filepath.Ext(arg))
		return cp, name, nil
	}

	name := strings.TrimSuffix(arg, pipeline.ExtCheckpoint)
	s, err := store.Open(ctx, flags.options())
	if err != nil {
		return nil, "", fmt.Errorf("open store: %w", err)
	}
	defer s.Close()

	data, err := s.Load(ctx, name)
	if err != nil {
		return nil, "", fmt.Errorf("load %s: %w", name, err)
	}
	cp, err := mtx.ReadSolved(bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("%s: %w", name, err)
	}
	return cp, filepath.Base(name), nil
}
